package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/intake-engine/internal/business"
	"github.com/wolfman30/intake-engine/internal/events"
	"github.com/wolfman30/intake-engine/internal/intake"
	"github.com/wolfman30/intake-engine/internal/notify"
	"github.com/wolfman30/intake-engine/internal/observability/metrics"
	"github.com/wolfman30/intake-engine/internal/scheduling"
	"github.com/wolfman30/intake-engine/pkg/logging"
)

// Config tunes the booking rules.
type Config struct {
	SlotDuration time.Duration
	// Capacity caps requests per slot. Zero allows any number.
	Capacity int
	Now      func() time.Time
}

// Service is the in-process booking endpoint.
type Service struct {
	profiles  business.Source
	repo      Repository
	publisher events.Publisher
	notifier  *notify.Notifier
	cfg       Config
	metrics   *metrics.IntakeMetrics
	tracer    trace.Tracer
	logger    *logging.Logger
}

// NewService wires the booking endpoint. Publisher and notifier are optional.
func NewService(profiles business.Source, repo Repository, publisher events.Publisher, notifier *notify.Notifier, cfg Config, m *metrics.IntakeMetrics, logger *logging.Logger) *Service {
	if profiles == nil || repo == nil {
		panic("booking: profile source and repository required")
	}
	if cfg.SlotDuration <= 0 {
		cfg.SlotDuration = scheduling.DefaultSlotDuration
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		profiles:  profiles,
		repo:      repo,
		publisher: publisher,
		notifier:  notifier,
		cfg:       cfg,
		metrics:   m,
		tracer:    otel.Tracer("intake.internal.booking"),
		logger:    logger,
	}
}

// Submit re-checks the request against the hours policy, stores it and
// announces it. Event and email failures are logged only.
func (s *Service) Submit(ctx context.Context, req AppointmentRequest) (*Confirmation, error) {
	ctx, span := s.tracer.Start(ctx, "booking.submit", trace.WithAttributes(
		attribute.String("date", req.Date),
		attribute.String("source_timezone", req.SourceTimezone),
	))
	defer span.End()

	conf, err := s.submit(ctx, req)
	if err != nil {
		kind := Classify(err)
		s.metrics.ObserveSubmission("appointment", string(kind))
		span.SetStatus(codes.Error, string(kind))
		span.RecordError(err)
		return nil, err
	}
	s.metrics.ObserveSubmission("appointment", "accepted")
	return conf, nil
}

func (s *Service) submit(ctx context.Context, req AppointmentRequest) (*Confirmation, error) {
	profile, err := s.profiles.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load business profile: %v", ErrConnectivity, err)
	}

	now := s.cfg.Now()
	conv := scheduling.NewConverter(profile.Hours.Timezone, req.SourceTimezone, now)
	loc := conv.Location()

	var slots []scheduling.LocalSlot
	date, dateErr := scheduling.ParseDate(req.Date, loc)
	if dateErr == nil {
		slots, err = scheduling.NewGenerator(s.cfg.SlotDuration).Generate(date, &profile.Hours, conv)
		if err != nil {
			return nil, fmt.Errorf("booking: generate slots: %w", err)
		}
		slots = scheduling.FilterPast(date, slots, now, loc)
	}

	if errs := intake.ValidateAppointment(req.Form(), intake.Calendar{Now: now, Location: loc, Slots: slots}); !errs.Valid() {
		return nil, fmt.Errorf("booking: %w", errs)
	}

	slot, ok := scheduling.FindSlot(slots, req.TimeSlot)
	if !ok || slot.Past {
		return nil, &BusinessRuleError{
			Err:        ErrOutsideBusinessHours,
			Date:       req.Date,
			ValidHours: scheduling.Labels(scheduling.Open(slots)),
		}
	}
	startsAt := slot.StartsAt(date, loc)
	if !profile.Hours.IsOpenBetween(startsAt, startsAt.Add(s.cfg.SlotDuration)) {
		return nil, &BusinessRuleError{
			Err:        ErrOutsideBusinessHours,
			Date:       req.Date,
			ValidHours: scheduling.Labels(scheduling.Open(slots)),
		}
	}

	req.ID = uuid.NewString()
	req.Status = StatusPending
	req.TimeSlot = slot.Label
	req.Services = req.Form().SelectedServices()
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.CreatedAt = now.UTC()
	req.StartsAt = startsAt.UTC()
	if strings.TrimSpace(req.SourceTimezone) == "" || conv.Fallback() {
		req.SourceTimezone = conv.ZoneLabel()
	}

	if err := s.repo.Create(ctx, &req, s.cfg.Capacity); err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			return nil, &BusinessRuleError{
				Err:        ErrSlotUnavailable,
				Date:       req.Date,
				ValidHours: s.openWithCapacity(ctx, date, loc, slots, slot),
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	s.logger.Info("appointment requested", "appointment_id", req.ID, "date", req.Date, "time_slot", req.TimeSlot, "timezone", req.SourceTimezone)

	s.announce(ctx, req)
	return &Confirmation{ID: req.ID, Status: req.Status, TimeSlot: req.TimeSlot, StartsAt: req.StartsAt}, nil
}

func (s *Service) openWithCapacity(ctx context.Context, date time.Time, loc *time.Location, slots []scheduling.LocalSlot, taken scheduling.LocalSlot) []string {
	var out []string
	for _, sl := range scheduling.Open(slots) {
		if sl.Offset == taken.Offset {
			continue
		}
		n, err := s.repo.CountForSlot(ctx, sl.StartsAt(date, loc))
		if err == nil && n < s.cfg.Capacity {
			out = append(out, sl.Label)
		}
	}
	return out
}

func (s *Service) announce(ctx context.Context, req AppointmentRequest) {
	evt := events.AppointmentCreatedV1{
		EventID:        uuid.NewString(),
		AppointmentID:  req.ID,
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		Services:       req.Services,
		Date:           req.Date,
		TimeSlot:       req.TimeSlot,
		SourceTimezone: req.SourceTimezone,
		StartsAt:       req.StartsAt,
		CreatedAt:      req.CreatedAt,
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.TypeAppointmentCreated, evt); err != nil {
			s.logger.Warn("appointment event publish failed", "error", err, "appointment_id", req.ID)
		}
	}
	if err := s.notifier.NotifyAppointmentCreated(ctx, evt); err != nil {
		s.logger.Warn("appointment notification failed", "error", err, "appointment_id", req.ID)
	}
}

// ListRecent returns the newest requests for the admin listing.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]AppointmentRequest, error) {
	out, err := s.repo.ListRecent(ctx, limit)
	if err != nil && !errors.Is(err, ErrConnectivity) {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	return out, err
}
