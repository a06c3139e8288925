package business

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Profile describes the business the widget books for.
type Profile struct {
	Name string `json:"name"`
	// Tag identifies the business profile to the reply service.
	Tag      string   `json:"tag"`
	Services []string `json:"services"`
	Hours    Policy   `json:"hours"`
}

// HasService reports whether name matches an offered service, ignoring case.
func (p *Profile) HasService(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, svc := range p.Services {
		if strings.ToLower(svc) == name {
			return true
		}
	}
	return false
}

// Source yields the current business profile.
type Source interface {
	Get(ctx context.Context) (*Profile, error)
}

const profileKey = "business:profile"

// Store persists the business profile in Redis, falling back to a seed
// profile until an admin saves one.
type Store struct {
	redis *redis.Client
	seed  Profile
}

// NewStore creates a profile store seeded with defaults.
func NewStore(redisClient *redis.Client, seed Profile) *Store {
	return &Store{redis: redisClient, seed: seed}
}

// Get retrieves the profile, returning the seed if none is stored.
func (s *Store) Get(ctx context.Context) (*Profile, error) {
	data, err := s.redis.Get(ctx, profileKey).Bytes()
	if errors.Is(err, redis.Nil) {
		seed := s.seed
		return &seed, nil
	}
	if err != nil {
		return nil, fmt.Errorf("business: get profile: %w", err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("business: unmarshal profile: %w", err)
	}
	return &p, nil
}

// Set validates and saves the profile.
func (s *Store) Set(ctx context.Context, p *Profile) error {
	if err := p.Hours.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("business: marshal profile: %w", err)
	}
	if err := s.redis.Set(ctx, profileKey, data, 0).Err(); err != nil {
		return fmt.Errorf("business: set profile: %w", err)
	}
	return nil
}

// MemoryStore keeps the profile in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	profile Profile
}

// NewMemoryStore creates an in-memory profile store.
func NewMemoryStore(p Profile) *MemoryStore {
	return &MemoryStore{profile: p}
}

// Get returns a copy of the stored profile.
func (s *MemoryStore) Get(_ context.Context) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.profile
	return &p, nil
}

// Set validates and replaces the profile.
func (s *MemoryStore) Set(_ context.Context, p *Profile) error {
	if err := p.Hours.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.profile = *p
	s.mu.Unlock()
	return nil
}
