package notifyworker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/intake-engine/internal/notify"
)

// PendingEmail is an email waiting for another delivery attempt.
type PendingEmail struct {
	ID          string              `json:"id"`
	Message     notify.EmailMessage `json:"message"`
	Attempts    int                 `json:"attempts"`
	NextAttempt time.Time           `json:"next_attempt"`
}

// Outbox holds pending emails ordered by their next attempt.
type Outbox interface {
	Put(ctx context.Context, p PendingEmail) error
	Due(ctx context.Context, now time.Time, limit int) ([]PendingEmail, error)
	Remove(ctx context.Context, id string) error
}

const (
	outboxScheduleKey = "notify:outbox:schedule"
	outboxItemsKey    = "notify:outbox:items"
)

// RedisOutbox keeps the schedule in a sorted set scored by next attempt and
// the payloads in a hash, so pending emails survive restarts.
type RedisOutbox struct {
	redis redis.Cmdable
}

func NewRedisOutbox(client redis.Cmdable) *RedisOutbox {
	if client == nil {
		panic("notifyworker: redis client required")
	}
	return &RedisOutbox{redis: client}
}

func (o *RedisOutbox) Put(ctx context.Context, p PendingEmail) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("notifyworker: marshal pending email: %w", err)
	}
	_, err = o.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, outboxItemsKey, p.ID, payload)
		pipe.ZAdd(ctx, outboxScheduleKey, redis.Z{Score: float64(p.NextAttempt.UnixMilli()), Member: p.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("notifyworker: put %s: %w", p.ID, err)
	}
	return nil
}

func (o *RedisOutbox) Due(ctx context.Context, now time.Time, limit int) ([]PendingEmail, error) {
	ids, err := o.redis.ZRangeByScore(ctx, outboxScheduleKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("notifyworker: list due: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	raw, err := o.redis.HMGet(ctx, outboxItemsKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("notifyworker: load due: %w", err)
	}
	out := make([]PendingEmail, 0, len(raw))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			// payload gone; drop the orphaned schedule entry
			o.redis.ZRem(ctx, outboxScheduleKey, ids[i])
			continue
		}
		var p PendingEmail
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			return nil, fmt.Errorf("notifyworker: decode %s: %w", ids[i], err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (o *RedisOutbox) Remove(ctx context.Context, id string) error {
	_, err := o.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, outboxScheduleKey, id)
		pipe.HDel(ctx, outboxItemsKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("notifyworker: remove %s: %w", id, err)
	}
	return nil
}

// MemoryOutbox is the process-local outbox used without Redis.
type MemoryOutbox struct {
	mu    sync.Mutex
	items map[string]PendingEmail
}

func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{items: make(map[string]PendingEmail)}
}

func (o *MemoryOutbox) Put(_ context.Context, p PendingEmail) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items[p.ID] = p
	return nil
}

func (o *MemoryOutbox) Due(_ context.Context, now time.Time, limit int) ([]PendingEmail, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []PendingEmail
	for _, p := range o.items {
		if !p.NextAttempt.After(now) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextAttempt.Before(out[j].NextAttempt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (o *MemoryOutbox) Remove(_ context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.items, id)
	return nil
}

// Len reports how many emails are pending.
func (o *MemoryOutbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}
