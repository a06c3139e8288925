package booking

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/wolfman30/intake-engine/internal/intake"
	"github.com/wolfman30/intake-engine/pkg/logging"
)

// Handler exposes the booking endpoint over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

type errorResponse struct {
	Error      string            `json:"error"`
	Kind       FailureKind       `json:"kind"`
	Fields     map[string]string `json:"fields,omitempty"`
	ValidHours []string          `json:"valid_hours,omitempty"`
}

// Create handles POST /appointments.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req AppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Kind: FailureValidation})
		return
	}

	conf, err := h.service.Submit(r.Context(), req)
	if err != nil {
		status, body := errorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("appointment submission failed", "error", err)
		}
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusCreated, conf)
}

func errorStatus(err error) (int, errorResponse) {
	kind := Classify(err)
	body := errorResponse{Error: err.Error(), Kind: kind}
	switch kind {
	case FailureValidation:
		var fields intake.FieldErrors
		if errors.As(err, &fields) {
			body.Fields = fields
		}
		return http.StatusUnprocessableEntity, body
	case FailureBusinessRule:
		body.ValidHours = ValidHours(err)
		return http.StatusConflict, body
	case FailureConnectivity:
		body.Error = "booking storage unavailable"
		return http.StatusServiceUnavailable, body
	default:
		body.Error = "internal server error"
		return http.StatusInternalServerError, body
	}
}

// ListAppointments handles GET /admin/appointments.
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	items, err := h.service.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []AppointmentRequest{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": items, "count": len(items)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
