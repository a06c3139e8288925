package widget

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/intake-engine/internal/booking"
	"github.com/wolfman30/intake-engine/internal/intake"
	"github.com/wolfman30/intake-engine/internal/scheduling"
	"github.com/wolfman30/intake-engine/internal/session"
)

// DayAvailability is what the date picker shows for one date.
type DayAvailability struct {
	Date  string                 `json:"date"`
	Slots []scheduling.LocalSlot `json:"slots"`
	// Closed is set when the business has no hours that weekday.
	Closed bool `json:"closed"`
	// NoMoreToday is set when the date is today and every slot has started.
	NoMoreToday bool `json:"no_more_today"`
	// ReferenceZone is set when times are shown in the business's zone
	// because the visitor's could not be resolved.
	ReferenceZone bool   `json:"reference_zone"`
	Timezone      string `json:"timezone"`
}

// OpenAppointment opens the appointment form on the visitor's request.
func (w *Widget) OpenAppointment() (Snapshot, error) {
	return w.transition(intake.AppointmentRequested{Trigger: intake.TriggerVisitor})
}

// CancelAppointment closes the appointment form without booking.
func (w *Widget) CancelAppointment() (Snapshot, error) {
	return w.transition(intake.AppointmentCancelled{})
}

// DismissConfirmation closes the thank-you view.
func (w *Widget) DismissConfirmation() (Snapshot, error) {
	return w.transition(intake.ConfirmationDismissed{})
}

func (w *Widget) transition(e intake.Event) (Snapshot, error) {
	w.mu.Lock()
	if err := w.usableLocked(); err != nil {
		w.mu.Unlock()
		return Snapshot{}, err
	}
	if _, ok := e.(intake.AppointmentCancelled); ok && w.processing {
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, ErrSubmissionInFlight
	}
	before := w.machine.State
	if !w.applyLocked(e) {
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, fmt.Errorf("%w: %s in %s", intake.ErrInvalidTransition, intake.EventName(e), before)
	}
	if _, ok := e.(intake.ConfirmationDismissed); ok {
		w.confirmation = nil
	}
	w.touchLocked()
	snap := w.snapshotLocked()
	w.mu.Unlock()
	w.notify(snap)
	return snap, nil
}

// SelectDate returns the slots for date in the visitor's zone. A selected
// time that is not open on the new date is cleared from the draft.
func (w *Widget) SelectDate(date string) (DayAvailability, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.usableLocked(); err != nil {
		return DayAvailability{}, err
	}

	now := w.opts.Now()
	day, err := w.availabilityLocked(date, w.converter(now), now)
	if err != nil {
		return day, err
	}
	w.deps.Metrics.ObserveSlotsOffered(len(scheduling.Open(day.Slots)), day.ReferenceZone)

	w.draft.Date = day.Date
	if slot, ok := scheduling.FindSlot(day.Slots, w.draft.Time); !ok || slot.Past {
		w.draft.Time = ""
	}
	w.touchLocked()
	return day, nil
}

func (w *Widget) availabilityLocked(date string, conv *scheduling.Converter, now time.Time) (DayAvailability, error) {
	loc := conv.Location()
	day := DayAvailability{
		Date:          strings.TrimSpace(date),
		ReferenceZone: conv.Fallback(),
		Timezone:      conv.ZoneLabel(),
	}
	d, err := scheduling.ParseDate(date, loc)
	if err != nil {
		return day, intake.FieldErrors{"date": "Please enter a valid date"}
	}
	slots, err := scheduling.NewGenerator(w.opts.SlotDuration).Generate(d, &w.business.Hours, conv)
	if err != nil {
		return day, fmt.Errorf("widget: generate slots: %w", err)
	}
	day.Slots = scheduling.FilterPast(d, slots, now, loc)
	day.Closed = len(day.Slots) == 0
	day.NoMoreToday = scheduling.CompareDay(d, now, loc) == 0 && scheduling.AllPast(day.Slots)
	return day, nil
}

// SubmitAppointment validates the form locally and, when it passes, sends it
// to the booking endpoint. Failures keep the form open with the draft intact
// and add a message to the transcript saying what went wrong.
func (w *Widget) SubmitAppointment(ctx context.Context, form intake.AppointmentForm) (Snapshot, error) {
	w.mu.Lock()
	if err := w.usableLocked(); err != nil {
		w.mu.Unlock()
		return Snapshot{}, err
	}
	if w.processing {
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, ErrSubmissionInFlight
	}
	if w.machine.State != intake.AppointmentFormOpen {
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, fmt.Errorf("%w: appointment form is not open", intake.ErrInvalidTransition)
	}
	w.draft = form
	w.touchLocked()

	now := w.opts.Now()
	conv := w.converter(now)
	day, dayErr := w.availabilityLocked(form.Date, conv, now)
	var fieldErrs intake.FieldErrors
	if dayErr != nil && !errors.As(dayErr, &fieldErrs) {
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, dayErr
	}

	errs := intake.ValidateAppointment(form, intake.Calendar{Now: now, Location: conv.Location(), Slots: day.Slots})
	if day.NoMoreToday {
		delete(errs, "time")
		errs["date"] = "There are no openings left today, please choose another date"
	}
	if !errs.Valid() {
		snap := w.snapshotLocked()
		w.mu.Unlock()
		w.deps.Metrics.ObserveSubmission("appointment", "local_validation")
		return snap, errs
	}

	slot, ok := scheduling.FindSlot(day.Slots, form.Time)
	if !ok || slot.Past {
		rule := &booking.BusinessRuleError{
			Err:        booking.ErrOutsideBusinessHours,
			Date:       day.Date,
			ValidHours: scheduling.Labels(scheduling.Open(day.Slots)),
		}
		snap, msg := w.failLocked(rule, booking.FailureBusinessRule)
		w.mu.Unlock()
		w.deps.Metrics.ObserveSubmission("appointment", "local_business_rule")
		w.persist(ctx, msg)
		w.notify(snap)
		return snap, rule
	}

	req := booking.NewRequest(form, conv.ZoneLabel())
	req.TimeSlot = slot.Label
	w.processing = true
	gen := w.generation
	snap := w.snapshotLocked()
	w.mu.Unlock()
	w.notify(snap)

	var conf *booking.Confirmation
	var err error
	if w.deps.Bookings == nil {
		err = fmt.Errorf("%w: no booking endpoint configured", booking.ErrConnectivity)
	} else {
		conf, err = w.deps.Bookings.Submit(ctx, req)
	}

	w.mu.Lock()
	if w.closed || gen != w.generation {
		w.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	w.processing = false

	if err != nil {
		kind := booking.Classify(err)
		if kind == booking.FailureUnknown {
			w.logger.Error("appointment submission failed", "error", err, "date", req.Date)
		} else {
			w.logger.Warn("appointment submission rejected", "error", err, "kind", string(kind))
		}
		snap, msg := w.failLocked(err, kind)
		w.mu.Unlock()
		w.persist(ctx, msg)
		w.notify(snap)
		return snap, err
	}

	w.applyLocked(intake.AppointmentConfirmed{})
	w.confirmation = conf
	msg := w.newMessage(confirmationMessage(req, conf), session.SenderBot)
	w.transcript = append(w.transcript, msg)
	w.draft = w.prefillLocked(intake.AppointmentForm{})
	snap = w.snapshotLocked()
	w.mu.Unlock()

	w.logger.Info("appointment submitted", "appointment_id", conf.ID, "date", req.Date, "time_slot", conf.TimeSlot)
	w.persist(ctx, msg)
	w.notify(snap)
	return snap, nil
}

// failLocked records a failed submission. The draft is left as submitted.
func (w *Widget) failLocked(err error, kind booking.FailureKind) (Snapshot, session.Message) {
	w.applyLocked(intake.SubmissionFailed{Kind: string(kind)})
	msg := w.newMessage(failureMessage(kind, err, w.draft.Date), session.SenderBot)
	w.transcript = append(w.transcript, msg)
	return w.snapshotLocked(), msg
}

func confirmationMessage(req booking.AppointmentRequest, conf *booking.Confirmation) string {
	slot := req.TimeSlot
	if conf != nil && conf.TimeSlot != "" {
		slot = conf.TimeSlot
	}
	return fmt.Sprintf("Thanks, %s! We received your request for %s on %s. We'll confirm by email shortly.", firstName(req.Name), slot, req.Date)
}
