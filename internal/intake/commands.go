package intake

import (
	"strings"
	"sync"
)

// OpenIntakeCommand asks a widget to open, optionally seeding the chat with
// context from the page that sent it.
type OpenIntakeCommand struct {
	ContextMessage   string `json:"context_message"`
	ForceAppointment bool   `json:"force_appointment"`
}

// CommandBus delivers OpenIntakeCommand values to the widget mounted on a
// page. Handlers run synchronously on the publisher's goroutine.
type CommandBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]func(OpenIntakeCommand)
}

// NewCommandBus returns an empty bus.
func NewCommandBus() *CommandBus {
	return &CommandBus{subs: make(map[string]map[int]func(OpenIntakeCommand))}
}

// Subscribe registers fn for pageID and returns a function that removes it.
func (b *CommandBus) Subscribe(pageID string, fn func(OpenIntakeCommand)) func() {
	pageID = strings.TrimSpace(pageID)
	if fn == nil || pageID == "" {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.subs[pageID] == nil {
		b.subs[pageID] = make(map[int]func(OpenIntakeCommand))
	}
	b.subs[pageID][id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[pageID], id)
			if len(b.subs[pageID]) == 0 {
				delete(b.subs, pageID)
			}
		})
	}
}

// Publish delivers cmd to pageID's subscribers and returns how many got it.
func (b *CommandBus) Publish(pageID string, cmd OpenIntakeCommand) int {
	b.mu.RLock()
	handlers := make([]func(OpenIntakeCommand), 0, len(b.subs[pageID]))
	for _, fn := range b.subs[pageID] {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(cmd)
	}
	return len(handlers)
}

// Subscribers counts the handlers registered for pageID.
func (b *CommandBus) Subscribers(pageID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[pageID])
}
