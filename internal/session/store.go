// Package session decides whether a mounting widget continues an earlier
// conversation or starts fresh, and persists what the widget must keep.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/intake-engine/internal/leads"
	"github.com/wolfman30/intake-engine/pkg/logging"
)

const keyPrefix = "intake:"

// DefaultWelcome is the first message of a fresh transcript.
const DefaultWelcome = "Hi there! How can we help with your project today?"

// ErrScopeRequired is returned when the visitor or tab ID is missing.
var ErrScopeRequired = errors.New("session: visitor and tab IDs required")

// Sender is who wrote a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is a transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Scope identifies a widget instance. VisitorID is per browser, TabID per
// tab and PageID per page load.
type Scope struct {
	VisitorID string `json:"visitor_id"`
	TabID     string `json:"tab_id"`
	PageID    string `json:"page_id"`
}

func (s Scope) validate() error {
	if strings.TrimSpace(s.VisitorID) == "" || strings.TrimSpace(s.TabID) == "" {
		return ErrScopeRequired
	}
	return nil
}

// Mode is how a mount was classified.
type Mode int

const (
	FreshLoad Mode = iota
	ContinuingSession
)

func (m Mode) String() string {
	if m == ContinuingSession {
		return "continuing_session"
	}
	return "fresh_load"
}

// UnloadReason says why the page is going away.
type UnloadReason string

const (
	UnloadNavigate UnloadReason = "navigate"
	UnloadClose    UnloadReason = "close"
	UnloadReload   UnloadReason = "reload"
)

// ParseUnloadReason defaults unknown values to navigate.
func ParseUnloadReason(value string) UnloadReason {
	switch UnloadReason(strings.ToLower(strings.TrimSpace(value))) {
	case UnloadReload:
		return UnloadReload
	case UnloadClose:
		return UnloadClose
	default:
		return UnloadNavigate
	}
}

// Restored is what Open hands the widget.
type Restored struct {
	Mode       Mode
	Transcript []Message
	Profile    *leads.ContactProfile
	Submitted  bool
}

// Options configures a Store.
type Options struct {
	// TTL applies to every durable key. Zero keeps keys forever.
	TTL         time.Duration
	Welcome     string
	MaxMessages int
	Now         func() time.Time
}

// Store owns the session markers, transcript, contact profile and submitted
// flag. Each is keyed independently.
type Store struct {
	kv     KV
	opts   Options
	tracer trace.Tracer
	logger *logging.Logger
	mu     sync.Mutex
	pages  map[string]struct{}
}

// NewStore wraps kv.
func NewStore(kv KV, opts Options, logger *logging.Logger) *Store {
	if kv == nil {
		panic("session: kv required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(opts.Welcome) == "" {
		opts.Welcome = DefaultWelcome
	}
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = 250
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		kv:     kv,
		opts:   opts,
		tracer: otel.Tracer("intake.internal.session"),
		logger: logger,
		pages:  make(map[string]struct{}),
	}
}

func transcriptKey(visitorID string) string { return keyPrefix + visitorID + ":transcript" }
func profileKey(visitorID string) string    { return keyPrefix + visitorID + ":profile" }
func submittedKey(visitorID string) string  { return keyPrefix + visitorID + ":submitted" }
func activeKey(tabID string) string         { return keyPrefix + tabID + ":session_active" }

// WelcomeMessage builds the single message of a fresh transcript.
func (s *Store) WelcomeMessage() Message {
	return Message{
		ID:        uuid.NewString(),
		Text:      s.opts.Welcome,
		Sender:    SenderBot,
		Timestamp: s.opts.Now().UTC(),
	}
}

// Open classifies the mount and returns the state to start from.
func (s *Store) Open(ctx context.Context, scope Scope) (Restored, error) {
	if err := scope.validate(); err != nil {
		return Restored{}, err
	}
	ctx, span := s.tracer.Start(ctx, "session.open", trace.WithAttributes(
		attribute.String("visitor_id", scope.VisitorID),
	))
	defer span.End()

	mode, err := s.classify(ctx, scope)
	if err != nil {
		span.RecordError(err)
		return Restored{}, err
	}

	out := Restored{Mode: mode}
	if mode == ContinuingSession {
		out.Transcript, err = s.Transcript(ctx, scope.VisitorID)
		if err != nil {
			span.RecordError(err)
			return Restored{}, err
		}
	}
	if len(out.Transcript) == 0 {
		out.Transcript = []Message{s.WelcomeMessage()}
		if err := s.SaveTranscript(ctx, scope.VisitorID, out.Transcript); err != nil {
			span.RecordError(err)
			return Restored{}, err
		}
	}
	if mode == FreshLoad {
		if err := s.kv.Set(ctx, activeKey(scope.TabID), "1", s.opts.TTL); err != nil {
			span.RecordError(err)
			return Restored{}, fmt.Errorf("session: set active marker: %w", err)
		}
	}
	s.markPage(scope.PageID)

	if out.Profile, err = s.Profile(ctx, scope.VisitorID); err != nil {
		span.RecordError(err)
		return Restored{}, err
	}
	if out.Submitted, err = s.Submitted(ctx, scope.VisitorID); err != nil {
		span.RecordError(err)
		return Restored{}, err
	}

	span.SetAttributes(attribute.String("mode", mode.String()))
	s.logger.Debug("session opened", "visitor_id", scope.VisitorID, "tab_id", scope.TabID, "mode", mode.String(), "messages", len(out.Transcript))
	return out, nil
}

func (s *Store) classify(ctx context.Context, scope Scope) (Mode, error) {
	if s.hasPage(scope.PageID) {
		return ContinuingSession, nil
	}
	active, err := s.kv.Exists(ctx, activeKey(scope.TabID))
	if err != nil {
		return FreshLoad, fmt.Errorf("session: read active marker: %w", err)
	}
	if active {
		return ContinuingSession, nil
	}
	return FreshLoad, nil
}

// Unload drops the page marker. Navigation and close also clear the durable
// marker so the next mount in the tab starts fresh.
func (s *Store) Unload(ctx context.Context, scope Scope, reason UnloadReason) error {
	s.unmarkPage(scope.PageID)
	if reason == UnloadReload {
		return nil
	}
	if strings.TrimSpace(scope.TabID) == "" {
		return ErrScopeRequired
	}
	ctx, span := s.tracer.Start(ctx, "session.unload")
	defer span.End()
	if err := s.kv.Delete(ctx, activeKey(scope.TabID)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: clear active marker: %w", err)
	}
	return nil
}

// Active reports whether the durable marker is set for the tab.
func (s *Store) Active(ctx context.Context, tabID string) (bool, error) {
	return s.kv.Exists(ctx, activeKey(tabID))
}

// Transcript returns the persisted transcript, oldest first.
func (s *Store) Transcript(ctx context.Context, visitorID string) ([]Message, error) {
	raw, ok, err := s.kv.Get(ctx, transcriptKey(visitorID))
	if err != nil {
		return nil, fmt.Errorf("session: read transcript: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var msgs []Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		s.logger.Warn("discarding unreadable transcript", "visitor_id", visitorID, "error", err)
		return nil, nil
	}
	return msgs, nil
}

// SaveTranscript replaces the persisted transcript.
func (s *Store) SaveTranscript(ctx context.Context, visitorID string, msgs []Message) error {
	if len(msgs) > s.opts.MaxMessages {
		msgs = msgs[len(msgs)-s.opts.MaxMessages:]
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("session: marshal transcript: %w", err)
	}
	if err := s.kv.Set(ctx, transcriptKey(visitorID), string(data), s.opts.TTL); err != nil {
		return fmt.Errorf("session: save transcript: %w", err)
	}
	return nil
}

// Append adds one message to the persisted transcript.
func (s *Store) Append(ctx context.Context, visitorID string, msg Message) error {
	ctx, span := s.tracer.Start(ctx, "session.transcript.append")
	defer span.End()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.opts.Now().UTC()
	}
	msgs, err := s.Transcript(ctx, visitorID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	return s.SaveTranscript(ctx, visitorID, append(msgs, msg))
}

// ClearHistory deletes the transcript only.
func (s *Store) ClearHistory(ctx context.Context, visitorID string) error {
	if err := s.kv.Delete(ctx, transcriptKey(visitorID)); err != nil {
		return fmt.Errorf("session: clear transcript: %w", err)
	}
	return nil
}

// SaveProfile overwrites the whole contact profile.
func (s *Store) SaveProfile(ctx context.Context, visitorID string, profile leads.ContactProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("session: marshal profile: %w", err)
	}
	if err := s.kv.Set(ctx, profileKey(visitorID), string(data), s.opts.TTL); err != nil {
		return fmt.Errorf("session: save profile: %w", err)
	}
	return nil
}

// Profile returns the stored contact profile, or nil.
func (s *Store) Profile(ctx context.Context, visitorID string) (*leads.ContactProfile, error) {
	raw, ok, err := s.kv.Get(ctx, profileKey(visitorID))
	if err != nil {
		return nil, fmt.Errorf("session: read profile: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var profile leads.ContactProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		s.logger.Warn("discarding unreadable profile", "visitor_id", visitorID, "error", err)
		return nil, nil
	}
	return &profile, nil
}

// MarkSubmitted sets the already-submitted flag.
func (s *Store) MarkSubmitted(ctx context.Context, visitorID string) error {
	if err := s.kv.Set(ctx, submittedKey(visitorID), "true", s.opts.TTL); err != nil {
		return fmt.Errorf("session: mark submitted: %w", err)
	}
	return nil
}

// Submitted reports the already-submitted flag.
func (s *Store) Submitted(ctx context.Context, visitorID string) (bool, error) {
	ok, err := s.kv.Exists(ctx, submittedKey(visitorID))
	if err != nil {
		return false, fmt.Errorf("session: read submitted flag: %w", err)
	}
	return ok, nil
}

func (s *Store) hasPage(pageID string) bool {
	if pageID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pages[pageID]
	return ok
}

func (s *Store) markPage(pageID string) {
	if pageID == "" {
		return
	}
	s.mu.Lock()
	s.pages[pageID] = struct{}{}
	s.mu.Unlock()
}

func (s *Store) unmarkPage(pageID string) {
	s.mu.Lock()
	delete(s.pages, pageID)
	s.mu.Unlock()
}
