package business

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/wolfman30/intake-engine/pkg/logging"
)

// ProfileStore reads and writes the business profile.
type ProfileStore interface {
	Get(ctx context.Context) (*Profile, error)
	Set(ctx context.Context, p *Profile) error
}

// Handler provides admin endpoints for the hours policy.
type Handler struct {
	store  ProfileStore
	logger *logging.Logger
}

// NewHandler creates a business hours handler.
func NewHandler(store ProfileStore, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// GetHours returns the current policy.
// GET /admin/business-hours
func (h *Handler) GetHours(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.Get(r.Context())
	if err != nil {
		h.logger.Error("failed to load business profile", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, p.Hours)
}

// UpdateHours replaces the policy after validation.
// PUT /admin/business-hours
func (h *Handler) UpdateHours(w http.ResponseWriter, r *http.Request) {
	var policy Policy
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	p, err := h.store.Get(r.Context())
	if err != nil {
		h.logger.Error("failed to load business profile", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	p.Hours = policy

	if err := h.store.Set(r.Context(), p); err != nil {
		if IsPolicyError(err) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		h.logger.Error("failed to save business profile", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	h.logger.Info("business hours updated", "timezone", policy.Timezone)
	writeJSON(w, http.StatusOK, p.Hours)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
