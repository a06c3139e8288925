package business

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wolfman30/intake-engine/pkg/logging"
)

func TestGetHours(t *testing.T) {
	h := NewHandler(NewMemoryStore(testProfile()), logging.New("error"))

	req := httptest.NewRequest(http.MethodGet, "/admin/business-hours", nil)
	w := httptest.NewRecorder()
	h.GetHours(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var policy Policy
	if err := json.NewDecoder(w.Body).Decode(&policy); err != nil {
		t.Fatal(err)
	}
	if policy.Timezone != "UTC" {
		t.Fatalf("timezone = %q", policy.Timezone)
	}
}

func TestUpdateHours(t *testing.T) {
	store := NewMemoryStore(testProfile())
	h := NewHandler(store, logging.New("error"))

	body, _ := json.Marshal(Policy{
		Timezone: "America/Chicago",
		Tuesday:  &DayHours{Open: "18:00", Close: "03:00"},
	})
	req := httptest.NewRequest(http.MethodPut, "/admin/business-hours", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.UpdateHours(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	p, _ := store.Get(req.Context())
	if p.Hours.Timezone != "America/Chicago" || p.Hours.Monday != nil {
		t.Fatalf("policy not replaced: %+v", p.Hours)
	}
	if p.Name != "Studio" {
		t.Fatalf("profile fields should survive an hours update, got %q", p.Name)
	}
}

func TestUpdateHoursValidation(t *testing.T) {
	h := NewHandler(NewMemoryStore(testProfile()), logging.New("error"))

	body := []byte(`{"timezone":"UTC","monday":{"open":"25:00","close":"03:00"}}`)
	req := httptest.NewRequest(http.MethodPut, "/admin/business-hours", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.UpdateHours(w, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPut, "/admin/business-hours", bytes.NewReader([]byte("{")))
	w = httptest.NewRecorder()
	h.UpdateHours(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
