package widget

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/intake-engine/internal/intake"
	"github.com/wolfman30/intake-engine/internal/leads"
	"github.com/wolfman30/intake-engine/internal/replies"
	"github.com/wolfman30/intake-engine/internal/session"
)

const unavailableReply = "Sorry, I'm having trouble answering right now. You can book a call with the form below and we'll get back to you."

// SendMessage appends the visitor's message, waits for a reply and applies
// the reply's form flags. Only one reply may be in flight.
func (w *Widget) SendMessage(ctx context.Context, text string) (Snapshot, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return w.Snapshot(), ErrEmptyMessage
	}

	w.mu.Lock()
	if err := w.usableLocked(); err != nil {
		w.mu.Unlock()
		return Snapshot{}, err
	}
	if w.typing {
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, ErrReplyInFlight
	}
	if !w.machine.CanChat() {
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, ErrChatDisabled
	}
	lastBot := w.lastBotLocked()
	userMsg := w.newMessage(text, session.SenderUser)
	w.transcript = append(w.transcript, userMsg)
	w.typing = true
	w.touchLocked()
	gen := w.generation
	req := replies.Request{Message: text, Context: w.replyContextLocked()}
	svc := w.replies
	snap := w.snapshotLocked()
	w.mu.Unlock()
	w.notify(snap)

	w.persist(ctx, userMsg)

	resp, err := svc.Reply(ctx, req)
	if err != nil || resp.Empty() {
		w.logger.Warn("no reply available", "error", err)
		resp = replies.Response{Reply: unavailableReply, Fallback: true}
	}

	w.mu.Lock()
	if w.closed || gen != w.generation {
		w.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	w.typing = false
	botMsg := w.newMessage(resp.Reply, session.SenderBot)
	w.transcript = append(w.transcript, botMsg)
	w.applyReplyLocked(resp, intake.DetectSchedulingIntent(text, lastBot))
	snap = w.snapshotLocked()
	w.mu.Unlock()

	w.persist(ctx, botMsg)
	w.notify(snap)
	return snap, nil
}

// applyReplyLocked counts the reply and opens whichever form it asked for.
// The appointment form wins over the contact form.
func (w *Widget) applyReplyLocked(resp replies.Response, intent bool) {
	if resp.ShowContactForm && !resp.WantsAppointment() {
		w.applyLocked(intake.ContactRequested{})
	}
	w.applyLocked(intake.BotReplied{})

	switch {
	case w.machine.State == intake.AppointmentFormOpen:
	case resp.WantsAppointment():
		w.applyLocked(intake.AppointmentRequested{Trigger: intake.TriggerReply})
	case intent:
		w.applyLocked(intake.AppointmentRequested{Trigger: intake.TriggerIntent})
	}
}

func (w *Widget) replyContextLocked() replies.Context {
	rc := replies.Context{ConversationLength: len(w.transcript)}
	if w.business != nil {
		rc.BusinessProfile = w.business.Tag
	}
	if w.profile != nil {
		rc.Name = w.profile.Name
		rc.Email = w.profile.Email
		rc.Phone = w.profile.Phone
	}
	return rc
}

// SubmitContact validates the contact form, sends it to the contact endpoint
// and then stores it as the visitor's profile.
func (w *Widget) SubmitContact(ctx context.Context, form intake.ContactForm) (Snapshot, error) {
	w.mu.Lock()
	if err := w.usableLocked(); err != nil {
		w.mu.Unlock()
		return Snapshot{}, err
	}
	if w.machine.State != intake.ContactFormOpen {
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, fmt.Errorf("%w: contact form is not open", intake.ErrInvalidTransition)
	}
	if w.processing {
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, ErrSubmissionInFlight
	}
	if errs := intake.ValidateContact(form); !errs.Valid() {
		snap := w.snapshotLocked()
		w.mu.Unlock()
		w.deps.Metrics.ObserveSubmission("contact", "local_validation")
		return snap, errs
	}
	w.processing = true
	w.touchLocked()
	gen := w.generation
	w.mu.Unlock()

	profile := leads.ContactProfile{
		Name:  strings.TrimSpace(form.Name),
		Email: strings.TrimSpace(form.Email),
		Phone: strings.TrimSpace(form.Phone),
	}
	var err error
	if w.deps.Contacts != nil {
		_, err = w.deps.Contacts.Capture(ctx, profile)
	}

	w.mu.Lock()
	if w.closed || gen != w.generation {
		w.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	w.processing = false
	if err != nil {
		snap := w.snapshotLocked()
		w.mu.Unlock()
		if !errors.Is(err, intake.ErrValidation) {
			w.logger.Error("contact capture failed", "error", err)
		}
		return snap, fmt.Errorf("widget: capture contact: %w", err)
	}
	w.profile = &profile
	w.applyLocked(intake.ContactSubmitted{})
	thanks := w.newMessage(fmt.Sprintf("Thanks, %s! What can we help you with?", firstName(profile.Name)), session.SenderBot)
	w.transcript = append(w.transcript, thanks)
	pending := w.pendingContext
	w.pendingContext = ""
	snap := w.snapshotLocked()
	w.mu.Unlock()

	if err := w.deps.Sessions.SaveProfile(ctx, w.scope.VisitorID, profile); err != nil {
		w.logger.Warn("profile not saved", "error", err)
	}
	if err := w.deps.Sessions.MarkSubmitted(ctx, w.scope.VisitorID); err != nil {
		w.logger.Warn("submitted flag not saved", "error", err)
	}
	w.persist(ctx, thanks)
	w.notify(snap)

	if pending != "" {
		return w.SendMessage(ctx, pending)
	}
	return snap, nil
}

// HandleCommand applies an open-intake command from elsewhere on the page.
// A context message is sent as the visitor's first message once chat is
// possible.
func (w *Widget) HandleCommand(ctx context.Context, cmd intake.OpenIntakeCommand) (Snapshot, error) {
	message := strings.TrimSpace(cmd.ContextMessage)

	w.mu.Lock()
	if err := w.usableLocked(); err != nil {
		w.mu.Unlock()
		return Snapshot{}, err
	}
	w.touchLocked()
	if cmd.ForceAppointment {
		w.applyLocked(intake.AppointmentRequested{Trigger: intake.TriggerCommand})
		if message != "" && strings.TrimSpace(w.draft.Notes) == "" {
			w.draft.Notes = message
		}
		snap := w.snapshotLocked()
		w.mu.Unlock()
		w.notify(snap)
		return snap, nil
	}
	if message == "" {
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, nil
	}
	if !w.machine.CanChat() {
		w.pendingContext = message
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, nil
	}
	w.mu.Unlock()
	return w.SendMessage(ctx, message)
}

func firstName(name string) string {
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	return "there"
}
