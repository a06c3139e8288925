package leads

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/intake-engine/internal/events"
	"github.com/wolfman30/intake-engine/internal/observability/metrics"
	"github.com/wolfman30/intake-engine/pkg/logging"
)

// Service is the contact capture endpoint.
type Service struct {
	repo      Repository
	publisher events.Publisher
	notifier  ContactNotifier
	metrics   *metrics.IntakeMetrics
	logger    *logging.Logger
}

// ContactNotifier tells the business about a captured contact.
type ContactNotifier interface {
	NotifyContactCaptured(ctx context.Context, evt events.ContactCapturedV1) error
}

// NewService wires the repository and optional event publisher.
func NewService(repo Repository, publisher events.Publisher, m *metrics.IntakeMetrics, logger *logging.Logger) *Service {
	if repo == nil {
		panic("leads: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, publisher: publisher, metrics: m, logger: logger}
}

// WithNotifier emails the business for every captured lead.
func (s *Service) WithNotifier(n ContactNotifier) *Service {
	s.notifier = n
	return s
}

// Capture stores a widget contact profile.
func (s *Service) Capture(ctx context.Context, profile ContactProfile) (*Lead, error) {
	return s.Submit(ctx, &CreateLeadRequest{
		Name:   profile.Name,
		Email:  profile.Email,
		Phone:  profile.Phone,
		Source: SourceWidget,
	})
}

// Submit validates and stores a lead, then announces it.
func (s *Service) Submit(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	lead, err := s.repo.Create(ctx, req)
	if err != nil {
		outcome := "failed"
		if !errors.Is(err, ErrStorage) {
			outcome = "invalid"
		}
		s.metrics.ObserveSubmission("contact", outcome)
		return nil, fmt.Errorf("leads: capture: %w", err)
	}
	s.metrics.ObserveSubmission("contact", "captured")

	evt := events.ContactCapturedV1{
		EventID:    lead.ID,
		LeadID:     lead.ID,
		Name:       lead.Name,
		Email:      lead.Email,
		Phone:      lead.Phone,
		Source:     lead.Source,
		CapturedAt: lead.CreatedAt,
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.TypeContactCaptured, evt); err != nil {
			s.logger.Warn("contact event publish failed", "error", err, "lead_id", lead.ID)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyContactCaptured(ctx, evt); err != nil {
			s.logger.Warn("contact notification failed", "error", err, "lead_id", lead.ID)
		}
	}

	s.logger.Info("lead captured", "id", lead.ID, "source", lead.Source)
	return lead, nil
}

// ListRecent returns the newest leads.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*Lead, error) {
	return s.repo.ListRecent(ctx, limit)
}
