package webchat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/intake-engine/internal/session"
	"github.com/wolfman30/intake-engine/internal/widget"
	"github.com/wolfman30/intake-engine/pkg/logging"
)

// ErrUnknownPage is returned for a page ID with no mounted widget.
var ErrUnknownPage = errors.New("webchat: unknown page")

// Manager holds the mounted widget for every open page.
type Manager struct {
	deps     widget.Dependencies
	defaults widget.Options
	logger   *logging.Logger

	mu      sync.RWMutex
	widgets map[string]*widget.Widget
}

// NewManager creates an empty registry. defaults fill any option a mount
// request leaves unset.
func NewManager(deps widget.Dependencies, defaults widget.Options, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	return &Manager{
		deps:     deps,
		defaults: defaults,
		logger:   logger,
		widgets:  make(map[string]*widget.Widget),
	}
}

// Mount returns the widget for scope.PageID, creating and mounting it on the
// first call. A missing page ID is generated. opts.Limited is taken as given;
// other zero options fall back to the manager's defaults.
func (m *Manager) Mount(ctx context.Context, scope session.Scope, opts widget.Options) (*widget.Widget, widget.Snapshot, error) {
	if strings.TrimSpace(scope.PageID) == "" {
		scope.PageID = generateSessionID()
	}

	m.mu.Lock()
	w, ok := m.widgets[scope.PageID]
	if !ok || w.Closed() {
		w = widget.New(scope, m.deps, m.withDefaults(opts))
		m.widgets[scope.PageID] = w
	}
	m.mu.Unlock()

	snap, err := w.Mount(ctx)
	if err != nil {
		m.remove(scope.PageID, w)
		return nil, widget.Snapshot{}, err
	}
	return w, snap, nil
}

func (m *Manager) withDefaults(opts widget.Options) widget.Options {
	d := m.defaults
	if opts.ReplyLimit <= 0 {
		opts.ReplyLimit = d.ReplyLimit
	}
	if opts.ReplyTimeout <= 0 {
		opts.ReplyTimeout = d.ReplyTimeout
	}
	if strings.TrimSpace(opts.VisitorTimezone) == "" {
		opts.VisitorTimezone = d.VisitorTimezone
	}
	if opts.SlotDuration <= 0 {
		opts.SlotDuration = d.SlotDuration
	}
	if opts.Now == nil {
		opts.Now = d.Now
	}
	return opts
}

// Get looks up the widget for pageID.
func (m *Manager) Get(pageID string) (*widget.Widget, error) {
	m.mu.RLock()
	w, ok := m.widgets[pageID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownPage
	}
	return w, nil
}

// Unload closes and forgets the widget for pageID.
func (m *Manager) Unload(ctx context.Context, pageID string, reason session.UnloadReason) error {
	m.mu.Lock()
	w, ok := m.widgets[pageID]
	delete(m.widgets, pageID)
	m.mu.Unlock()
	if !ok {
		return ErrUnknownPage
	}
	return w.Close(ctx, reason)
}

func (m *Manager) remove(pageID string, w *widget.Widget) {
	m.mu.Lock()
	if m.widgets[pageID] == w {
		delete(m.widgets, pageID)
	}
	m.mu.Unlock()
}

// Len counts mounted widgets.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.widgets)
}

// Sweep closes widgets idle since before cutoff. Pages that vanished without
// an unload are treated as reloads so the tab's session survives.
func (m *Manager) Sweep(ctx context.Context, cutoff time.Time) int {
	m.mu.Lock()
	var stale []*widget.Widget
	for id, w := range m.widgets {
		if w.LastActivity().Before(cutoff) {
			stale = append(stale, w)
			delete(m.widgets, id)
		}
	}
	m.mu.Unlock()

	for _, w := range stale {
		if err := w.Close(ctx, session.UnloadReload); err != nil {
			m.logger.Warn("webchat: idle widget close failed", "error", err, "page_id", w.Scope().PageID)
		}
	}
	if len(stale) > 0 {
		m.logger.Info("webchat: swept idle widgets", "count", len(stale))
	}
	return len(stale)
}

// Run sweeps widgets idle for longer than idle every interval until ctx ends.
func (m *Manager) Run(ctx context.Context, interval, idle time.Duration) {
	if interval <= 0 || idle <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Sweep(ctx, now.Add(-idle))
		}
	}
}

// CloseAll closes every widget, keeping tab sessions for the next process.
func (m *Manager) CloseAll(ctx context.Context) {
	m.Sweep(ctx, time.Now().Add(time.Hour*24*365))
}
