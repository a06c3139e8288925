// Package widget drives one intake widget instance: the chat transcript, the
// contact and appointment forms and the state machine that decides which of
// them is showing.
package widget

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/intake-engine/internal/booking"
	"github.com/wolfman30/intake-engine/internal/business"
	"github.com/wolfman30/intake-engine/internal/intake"
	"github.com/wolfman30/intake-engine/internal/leads"
	"github.com/wolfman30/intake-engine/internal/observability/metrics"
	"github.com/wolfman30/intake-engine/internal/replies"
	"github.com/wolfman30/intake-engine/internal/scheduling"
	"github.com/wolfman30/intake-engine/internal/session"
	"github.com/wolfman30/intake-engine/pkg/logging"
)

var (
	ErrClosed             = errors.New("widget: closed")
	ErrNotMounted         = errors.New("widget: not mounted")
	ErrEmptyMessage       = errors.New("widget: empty message")
	ErrChatDisabled       = errors.New("widget: chat is not available")
	ErrReplyInFlight      = errors.New("widget: reply already in flight")
	ErrSubmissionInFlight = errors.New("widget: submission already in flight")
)

// ContactEndpoint accepts a captured contact profile.
type ContactEndpoint interface {
	Capture(ctx context.Context, profile leads.ContactProfile) (*leads.Lead, error)
}

// Dependencies are shared by every widget on the server.
type Dependencies struct {
	Sessions *session.Store
	Profiles business.Source
	// Replies is the remote reply generator. Nil answers every message
	// from the local fallback.
	Replies  replies.Service
	Contacts ContactEndpoint
	Bookings booking.Endpoint
	Commands *intake.CommandBus
	Metrics  *metrics.IntakeMetrics
	Logger   *logging.Logger
}

// Options are per page load.
type Options struct {
	// Limited turns on the reply budget. After ReplyLimit automated
	// replies free text is disabled and the appointment form opens.
	Limited         bool
	ReplyLimit      int
	ReplyTimeout    time.Duration
	VisitorTimezone string
	SlotDuration    time.Duration
	Now             func() time.Time
}

// Snapshot is the render state of a widget.
type Snapshot struct {
	Scope          session.Scope          `json:"scope"`
	State          intake.State           `json:"state"`
	Replies        int                    `json:"replies"`
	ReplyLimit     int                    `json:"reply_limit"`
	Locked         bool                   `json:"locked"`
	CanChat        bool                   `json:"can_chat"`
	Typing         bool                   `json:"typing"`
	Processing     bool                   `json:"processing"`
	Transcript     []session.Message      `json:"transcript"`
	Profile        *leads.ContactProfile  `json:"profile,omitempty"`
	Draft          intake.AppointmentForm `json:"draft"`
	Services       []string               `json:"services"`
	Timezone       string                 `json:"timezone"`
	Confirmation   *booking.Confirmation  `json:"confirmation,omitempty"`
	SessionMode    string                 `json:"session_mode,omitempty"`
	ReferenceZone  bool                   `json:"reference_zone"`
	LastActivityAt time.Time              `json:"last_activity_at"`
}

// Widget is one mounted intake widget. All methods are safe for concurrent use.
type Widget struct {
	scope  session.Scope
	deps   Dependencies
	opts   Options
	logger *logging.Logger

	mu             sync.Mutex
	machine        intake.Machine
	transcript     []session.Message
	profile        *leads.ContactProfile
	draft          intake.AppointmentForm
	business       *business.Profile
	replies        replies.Service
	confirmation   *booking.Confirmation
	mode           session.Mode
	typing         bool
	processing     bool
	mounted        bool
	closed         bool
	generation     uint64
	pendingContext string
	unsubscribe    func()
	lastActivity   time.Time

	watchMu   sync.Mutex
	watchers  map[int]chan Snapshot
	nextWatch int
}

// watchBuffer bounds the snapshots queued per watcher. A watcher that falls
// further behind misses intermediate snapshots.
const watchBuffer = 16

// New builds an unmounted widget for scope.
func New(scope session.Scope, deps Dependencies, opts Options) *Widget {
	if deps.Sessions == nil || deps.Profiles == nil {
		panic("widget: session store and business profile source required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if opts.ReplyTimeout <= 0 {
		opts.ReplyTimeout = replies.DefaultTimeout
	}
	if opts.SlotDuration <= 0 {
		opts.SlotDuration = scheduling.DefaultSlotDuration
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Widget{
		scope:    scope,
		deps:     deps,
		opts:     opts,
		logger:   deps.Logger.With("page_id", scope.PageID, "visitor_id", scope.VisitorID),
		machine:  intake.NewMachine(opts.ReplyLimit, opts.Limited),
		watchers: make(map[int]chan Snapshot),
	}
}

// Scope identifies the widget.
func (w *Widget) Scope() session.Scope { return w.scope }

// Mount restores the session and opens the first view. Mounting twice
// returns the current snapshot.
func (w *Widget) Mount(ctx context.Context) (Snapshot, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if w.mounted {
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, nil
	}
	w.mounted = true
	w.mu.Unlock()

	profile, err := w.deps.Profiles.Get(ctx)
	if err != nil {
		w.resetMount()
		return Snapshot{}, fmt.Errorf("widget: load business profile: %w", err)
	}
	restored, err := w.deps.Sessions.Open(ctx, w.scope)
	if err != nil {
		w.resetMount()
		return Snapshot{}, fmt.Errorf("widget: open session: %w", err)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	w.business = profile
	w.replies = replies.WithFallback(w.deps.Replies, replies.NewFallback(profile.Name, profile.Services), w.opts.ReplyTimeout, w.deps.Metrics, w.logger)
	w.transcript = restored.Transcript
	w.profile = restored.Profile
	w.mode = restored.Mode
	w.applyLocked(intake.Mounted{ProfileSubmitted: restored.Submitted})
	w.draft = w.prefillLocked(intake.AppointmentForm{})
	w.touchLocked()
	if w.deps.Commands != nil {
		w.unsubscribe = w.deps.Commands.Subscribe(w.scope.PageID, func(cmd intake.OpenIntakeCommand) {
			if _, err := w.HandleCommand(context.Background(), cmd); err != nil && !errors.Is(err, ErrClosed) {
				w.logger.Warn("widget command failed", "error", err)
			}
		})
	}
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.deps.Metrics.ObserveSession(restored.Mode.String())
	w.logger.Info("widget mounted", "mode", restored.Mode.String(), "state", snap.State.String())
	w.notify(snap)
	return snap, nil
}

func (w *Widget) resetMount() {
	w.mu.Lock()
	w.mounted = false
	w.mu.Unlock()
}

// Close unmounts the widget. In-flight replies and submissions that finish
// afterwards are dropped.
func (w *Widget) Close(ctx context.Context, reason session.UnloadReason) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.generation++
	unsubscribe := w.unsubscribe
	w.unsubscribe = nil
	w.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	w.watchMu.Lock()
	for id, ch := range w.watchers {
		close(ch)
		delete(w.watchers, id)
	}
	w.watchMu.Unlock()

	if err := w.deps.Sessions.Unload(ctx, w.scope, reason); err != nil {
		return fmt.Errorf("widget: unload: %w", err)
	}
	w.logger.Info("widget closed", "reason", string(reason))
	return nil
}

// Closed reports whether Close has run.
func (w *Widget) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Snapshot returns the current render state.
func (w *Widget) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// LastActivity is when the visitor last did something.
func (w *Widget) LastActivity() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActivity
}

// Watch registers fn to receive snapshots after each change. fn runs on its
// own goroutine in order; a watcher that cannot keep up misses snapshots
// rather than stalling the widget. The returned function removes it.
func (w *Widget) Watch(fn func(Snapshot)) func() {
	ch := make(chan Snapshot, watchBuffer)
	w.watchMu.Lock()
	w.nextWatch++
	id := w.nextWatch
	w.watchers[id] = ch
	w.watchMu.Unlock()

	go func() {
		for snap := range ch {
			fn(snap)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.watchMu.Lock()
			if _, ok := w.watchers[id]; ok {
				delete(w.watchers, id)
				close(ch)
			}
			w.watchMu.Unlock()
		})
	}
}

// notify never blocks on a watcher.
func (w *Widget) notify(snap Snapshot) {
	w.watchMu.Lock()
	defer w.watchMu.Unlock()
	for id, ch := range w.watchers {
		select {
		case ch <- snap:
		default:
			w.logger.Debug("widget: watcher behind, snapshot dropped", "watcher", id)
		}
	}
}

// ClearHistory resets the transcript to the welcome message. The contact
// profile and submitted flag are kept.
func (w *Widget) ClearHistory(ctx context.Context) (Snapshot, error) {
	w.mu.Lock()
	if err := w.usableLocked(); err != nil {
		w.mu.Unlock()
		return Snapshot{}, err
	}
	w.mu.Unlock()

	if err := w.deps.Sessions.ClearHistory(ctx, w.scope.VisitorID); err != nil {
		return w.Snapshot(), fmt.Errorf("widget: clear history: %w", err)
	}
	welcome := w.deps.Sessions.WelcomeMessage()
	if err := w.deps.Sessions.SaveTranscript(ctx, w.scope.VisitorID, []session.Message{welcome}); err != nil {
		w.logger.Warn("welcome message not saved", "error", err)
	}

	w.mu.Lock()
	w.transcript = []session.Message{welcome}
	w.touchLocked()
	snap := w.snapshotLocked()
	w.mu.Unlock()
	w.notify(snap)
	return snap, nil
}

func (w *Widget) usableLocked() error {
	if w.closed {
		return ErrClosed
	}
	if !w.mounted || w.business == nil {
		return ErrNotMounted
	}
	return nil
}

// applyLocked runs a transition and reports whether it applied. Invalid
// transitions leave the machine as it was.
func (w *Widget) applyLocked(e intake.Event) bool {
	before := w.machine.State
	next, err := intake.Transition(w.machine, e)
	if err != nil {
		w.logger.Debug("transition ignored", "event", intake.EventName(e), "state", before.String())
		return false
	}
	w.machine = next
	w.deps.Metrics.ObserveTransition(intake.EventName(e), next.State.String())
	if next.State == intake.AppointmentFormOpen && before != intake.AppointmentFormOpen {
		w.draft = w.prefillLocked(w.draft)
	}
	return true
}

// prefillLocked copies the stored contact profile into empty draft fields.
func (w *Widget) prefillLocked(draft intake.AppointmentForm) intake.AppointmentForm {
	if w.profile == nil {
		return draft
	}
	if strings.TrimSpace(draft.Name) == "" {
		draft.Name = w.profile.Name
	}
	if strings.TrimSpace(draft.Email) == "" {
		draft.Email = w.profile.Email
	}
	if strings.TrimSpace(draft.Phone) == "" {
		draft.Phone = w.profile.Phone
	}
	return draft
}

func (w *Widget) converter(now time.Time) *scheduling.Converter {
	return scheduling.NewConverter(w.business.Hours.Timezone, w.opts.VisitorTimezone, now)
}

func (w *Widget) newMessage(text string, sender session.Sender) session.Message {
	return session.Message{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    sender,
		Timestamp: w.opts.Now().UTC(),
	}
}

func (w *Widget) lastBotLocked() string {
	for i := len(w.transcript) - 1; i >= 0; i-- {
		if w.transcript[i].Sender == session.SenderBot {
			return w.transcript[i].Text
		}
	}
	return ""
}

func (w *Widget) touchLocked() {
	w.lastActivity = w.opts.Now()
}

// persist appends msgs to the stored transcript. Storage problems are logged
// only; the in-memory transcript stays authoritative for this page.
func (w *Widget) persist(ctx context.Context, msgs ...session.Message) {
	for _, msg := range msgs {
		if err := w.deps.Sessions.Append(ctx, w.scope.VisitorID, msg); err != nil {
			w.logger.Warn("transcript append failed", "error", err, "sender", string(msg.Sender))
			return
		}
	}
}

func (w *Widget) snapshotLocked() Snapshot {
	snap := Snapshot{
		Scope:          w.scope,
		State:          w.machine.State,
		Replies:        w.machine.Replies,
		ReplyLimit:     w.machine.Limit,
		Locked:         w.machine.Locked(),
		CanChat:        w.machine.CanChat(),
		Typing:         w.typing,
		Processing:     w.processing,
		Transcript:     append([]session.Message(nil), w.transcript...),
		Draft:          w.draft,
		Confirmation:   w.confirmation,
		LastActivityAt: w.lastActivity,
	}
	snap.Draft.Services = append([]string(nil), w.draft.Services...)
	if w.profile != nil {
		p := *w.profile
		snap.Profile = &p
	}
	if w.mounted && w.business != nil {
		snap.SessionMode = w.mode.String()
		snap.Services = append([]string(nil), w.business.Services...)
		conv := w.converter(w.opts.Now())
		snap.Timezone = conv.ZoneLabel()
		snap.ReferenceZone = conv.Fallback()
	}
	return snap
}
