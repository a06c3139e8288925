package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/intake-engine/internal/booking"
	"github.com/wolfman30/intake-engine/internal/business"
	"github.com/wolfman30/intake-engine/internal/events"
	httpmiddleware "github.com/wolfman30/intake-engine/internal/http/middleware"
	"github.com/wolfman30/intake-engine/internal/intake"
	"github.com/wolfman30/intake-engine/internal/leads"
	"github.com/wolfman30/intake-engine/internal/observability/metrics"
	"github.com/wolfman30/intake-engine/internal/session"
	"github.com/wolfman30/intake-engine/internal/webchat"
	"github.com/wolfman30/intake-engine/internal/widget"
	"github.com/wolfman30/intake-engine/pkg/logging"
)

const testSecret = "router-test-secret"

var testNow = time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)

func newTestConfig(t *testing.T) *Config {
	t.Helper()

	logger := logging.New("error")
	registry := prometheus.NewRegistry()
	m := metrics.NewIntakeMetrics(registry)
	publisher := events.NewMemoryPublisher()

	profiles := business.NewMemoryStore(business.Profile{
		Name:     "Northwind Studio",
		Services: []string{"SEO", "Web Design"},
		Hours:    business.DefaultPolicy("UTC"),
	})
	leadService := leads.NewService(leads.NewInMemoryRepository(), publisher, m, logger)
	bookingService := booking.NewService(profiles, booking.NewMemoryRepository(), publisher, nil,
		booking.Config{Now: func() time.Time { return testNow }}, m, logger)

	commands := intake.NewCommandBus()
	manager := webchat.NewManager(widget.Dependencies{
		Sessions: session.NewStore(session.NewMemoryKV(), session.Options{Welcome: "Welcome!"}, logger),
		Profiles: profiles,
		Contacts: leadService,
		Bookings: bookingService,
		Commands: commands,
		Metrics:  m,
		Logger:   logger,
	}, widget.Options{VisitorTimezone: "UTC", Now: func() time.Time { return testNow }}, logger)

	return &Config{
		Logger:          logger,
		WidgetHandler:   webchat.NewHandler(manager, commands, logger),
		LeadsHandler:    leads.NewHandler(leadService, logger),
		BookingHandler:  booking.NewHandler(bookingService, logger),
		BusinessHandler: business.NewHandler(profiles, logger),
		AdminAuthSecret: testSecret,
		MetricsHandler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	return New(newTestConfig(t))
}

func adminToken(t *testing.T, role string) string {
	t.Helper()
	claims := httpmiddleware.AdminClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops@example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp healthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}

	if resp.Status != "ok" {
		t.Errorf("expected status 'ok', got %q", resp.Status)
	}
}

func TestRouterHealthEndpointReportsFailingDependency(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.HealthChecks = map[string]HealthCheck{
		"redis":    func(context.Context) error { return errors.New("connection refused") },
		"postgres": func(context.Context) error { return nil },
	}
	router := New(cfg)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}
	var resp healthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "degraded" || resp.Checks["postgres"] != "ok" || resp.Checks["redis"] != "connection refused" {
		t.Errorf("unexpected health body: %+v", resp)
	}
}

func TestRouterLeadsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	payload := leads.CreateLeadRequest{
		Name:    "Router Test",
		Email:   "router@example.com",
		Phone:   "+12223334444",
		Message: "Interested in services",
		Source:  "test",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/leads", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d (%s)", http.StatusCreated, rr.Code, rr.Body.String())
	}
}

func TestRouterWidgetMount(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/widget/mount", strings.NewReader(`{"visitor_id":"v1","tab_id":"t1","page_id":"p1"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d (%s)", http.StatusOK, rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/widget/state", nil)
	req.Header.Set("X-Page-ID", "p1")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected state status %d, got %d", http.StatusOK, rr.Code)
	}
	var snap widget.Snapshot
	if err := json.NewDecoder(rr.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.State != intake.ContactFormOpen {
		t.Errorf("expected contact form on fresh load, got %s", snap.State)
	}
}

func TestRouterWidgetRateLimited(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.RateLimiter = httpmiddleware.NewRateLimiter(0.001, 1)
	router := New(cfg)

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/widget/state?page=missing", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send(); code != http.StatusNotFound {
		t.Fatalf("expected first request to reach the handler, got %d", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled, got %d", code)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("health must not be throttled, got %d", rr.Code)
	}
}

func TestRouterAdminRequiresToken(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/admin/appointments", "/admin/leads", "/admin/business-hours"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rr.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "viewer"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-admin role, got %d", rr.Code)
	}
}

func TestRouterAdminEndpoints(t *testing.T) {
	router := newTestRouter(t)
	token := adminToken(t, httpmiddleware.AdminRole)

	for _, path := range []string{"/admin/appointments", "/admin/leads", "/admin/business-hours"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d (%s)", path, rr.Code, rr.Body.String())
		}
	}
}

func TestRouterAdminRoutesAbsentWithoutSecret(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.AdminAuthSecret = ""
	router := New(cfg)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/appointments", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/widget/mount", strings.NewReader(`{"page_id":"p2"}`))
	router.ServeHTTP(httptest.NewRecorder(), req)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected metrics status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "intake_") {
		t.Errorf("expected intake metrics in exposition, got %q", rr.Body.String())
	}
}
