package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/intake-engine/internal/booking"
	"github.com/wolfman30/intake-engine/internal/business"
	httpmiddleware "github.com/wolfman30/intake-engine/internal/http/middleware"
	"github.com/wolfman30/intake-engine/internal/leads"
	"github.com/wolfman30/intake-engine/internal/webchat"
	"github.com/wolfman30/intake-engine/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	WidgetHandler      *webchat.Handler
	LeadsHandler       *leads.Handler
	BookingHandler     *booking.Handler
	BusinessHandler    *business.Handler
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	// RateLimiter throttles the public widget, lead and appointment
	// routes per client IP. Nil disables throttling.
	RateLimiter  *httpmiddleware.RateLimiter
	HealthChecks map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthHandler(cfg.HealthChecks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Public visitor-facing routes
	r.Group(func(public chi.Router) {
		if cfg.RateLimiter != nil {
			public.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}
		if h := cfg.WidgetHandler; h != nil {
			public.Route("/widget", func(wr chi.Router) {
				wr.Post("/mount", h.HandleMount)
				wr.Post("/unload", h.HandleUnload)
				wr.Get("/state", h.HandleState)
				wr.Post("/message", h.HandleMessage)
				wr.Post("/contact", h.HandleContact)
				wr.Post("/appointment/open", h.HandleOpenAppointment)
				wr.Post("/appointment/cancel", h.HandleCancelAppointment)
				wr.Post("/appointment", h.HandleSubmitAppointment)
				wr.Post("/confirmation/dismiss", h.HandleDismissConfirmation)
				wr.Get("/slots", h.HandleSlots)
				wr.Post("/command", h.HandleCommand)
				wr.Delete("/history", h.HandleClearHistory)
				wr.Get("/ws", h.HandleWebSocket)
			})
		}
		if cfg.LeadsHandler != nil {
			public.Post("/leads", cfg.LeadsHandler.CreateLead)
		}
		if cfg.BookingHandler != nil {
			public.Post("/appointments", cfg.BookingHandler.Create)
		}
	})

	// Admin routes (HMAC JWT)
	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			if cfg.BookingHandler != nil {
				admin.Get("/appointments", cfg.BookingHandler.ListAppointments)
			}
			if cfg.LeadsHandler != nil {
				admin.Get("/leads", cfg.LeadsHandler.ListLeads)
			}
			if cfg.BusinessHandler != nil {
				admin.Get("/business-hours", cfg.BusinessHandler.GetHours)
				admin.Put("/business-hours", cfg.BusinessHandler.UpdateHours)
			}
		})
	}

	return r
}
