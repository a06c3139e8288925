package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	appconfig "github.com/wolfman30/intake-engine/internal/config"
	"github.com/wolfman30/intake-engine/pkg/logging"
)

func TestSetupMetricsExposesMetrics(t *testing.T) {
	handler, metrics := setupMetrics()
	if handler == nil || metrics == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	metrics.ObserveSubmission("appointment", "created")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "intake_submissions_total") {
		t.Fatalf("expected submission counter to be exported")
	}
}

func TestBuildApplicationInMemory(t *testing.T) {
	cfg := &appconfig.Config{
		UseMemoryStore:     true,
		BusinessName:       "Northwind Studio",
		Services:           []string{"SEO"},
		ReferenceTimezone:  "UTC",
		SlotDuration:       time.Hour,
		ReplyLimited:       true,
		ReplyLimit:         4,
		ReplyTimeout:       time.Second,
		WelcomeText:        "Welcome!",
		RateLimitPerSecond: 5,
		RateLimitBurst:     10,
	}
	app, err := buildApplication(context.Background(), cfg, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer app.close()
	if app.limiter == nil {
		t.Fatalf("expected rate limiter")
	}
	if app.retry == nil {
		t.Fatalf("expected email retry worker")
	}

	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/widget/mount", strings.NewReader(`{"page_id":"p1","visitor_id":"v1","tab_id":"t1"}`))
	rr = httptest.NewRecorder()
	app.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected mount 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	if app.widgets.Len() != 1 {
		t.Fatalf("expected one mounted widget, got %d", app.widgets.Len())
	}
	app.widgets.CloseAll(context.Background())
	if app.widgets.Len() != 0 {
		t.Fatalf("expected widgets closed")
	}
}

func TestBuildApplicationRejectsBadHours(t *testing.T) {
	cfg := &appconfig.Config{UseMemoryStore: true, ReferenceTimezone: "Nowhere/Atlantis"}
	if _, err := buildApplication(context.Background(), cfg, logging.New("error")); err == nil {
		t.Fatalf("expected error for unknown timezone")
	}
}

func TestSweepInterval(t *testing.T) {
	cases := map[time.Duration]time.Duration{
		time.Second:      10 * time.Second,
		2 * time.Minute:  30 * time.Second,
		30 * time.Minute: time.Minute,
	}
	for idle, want := range cases {
		if got := sweepInterval(idle); got != want {
			t.Errorf("sweepInterval(%s) = %s, want %s", idle, got, want)
		}
	}
}
