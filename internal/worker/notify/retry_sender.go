package notifyworker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/intake-engine/internal/notify"
	"github.com/wolfman30/intake-engine/pkg/logging"
)

// RetrySender retries failed notification emails until max attempts.
type RetrySender struct {
	outbox      Outbox
	email       notify.EmailSender
	logger      *logging.Logger
	maxAttempts int
	baseDelay   time.Duration
	interval    time.Duration
	batchSize   int
	now         func() time.Time
}

func NewRetrySender(outbox Outbox, email notify.EmailSender, logger *logging.Logger) *RetrySender {
	if logger == nil {
		logger = logging.Default()
	}
	return &RetrySender{
		outbox:      outbox,
		email:       email,
		logger:      logger,
		maxAttempts: 5,
		baseDelay:   time.Minute,
		interval:    30 * time.Second,
		batchSize:   25,
		now:         time.Now,
	}
}

func (r *RetrySender) WithMaxAttempts(n int) *RetrySender {
	if n > 0 {
		r.maxAttempts = n
	}
	return r
}

func (r *RetrySender) WithBaseDelay(d time.Duration) *RetrySender {
	if d > 0 {
		r.baseDelay = d
	}
	return r
}

func (r *RetrySender) WithInterval(d time.Duration) *RetrySender {
	if d > 0 {
		r.interval = d
	}
	return r
}

func (r *RetrySender) WithBatchSize(n int) *RetrySender {
	if n > 0 {
		r.batchSize = n
	}
	return r
}

// Enqueue schedules msg for its second attempt. The first already failed.
func (r *RetrySender) Enqueue(ctx context.Context, msg notify.EmailMessage) error {
	if r.outbox == nil {
		return nil
	}
	return r.outbox.Put(ctx, PendingEmail{
		ID:          uuid.NewString(),
		Message:     msg,
		Attempts:    1,
		NextAttempt: r.now().Add(r.nextDelay(0)),
	})
}

func (r *RetrySender) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	r.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

func (r *RetrySender) drain(ctx context.Context) {
	if r.outbox == nil || r.email == nil {
		return
	}
	due, err := r.outbox.Due(ctx, r.now(), r.batchSize)
	if err != nil {
		r.logger.Error("retry fetch failed", "error", err)
		return
	}
	for _, p := range due {
		if err := r.email.Send(ctx, p.Message); err != nil {
			p.Attempts++
			if p.Attempts >= r.maxAttempts {
				r.logger.Error("email retries exhausted", "error", err, "retry_id", p.ID, "to", p.Message.To, "attempts", p.Attempts)
				if err := r.outbox.Remove(ctx, p.ID); err != nil {
					r.logger.Error("remove exhausted email failed", "error", err, "retry_id", p.ID)
				}
				continue
			}
			p.NextAttempt = r.now().Add(r.nextDelay(p.Attempts - 1))
			if err := r.outbox.Put(ctx, p); err != nil {
				r.logger.Error("schedule retry failed", "error", err, "retry_id", p.ID)
			}
			continue
		}
		if err := r.outbox.Remove(ctx, p.ID); err != nil {
			r.logger.Error("remove delivered email failed", "error", err, "retry_id", p.ID)
		}
		r.logger.Info("email delivered on retry", "retry_id", p.ID, "attempts", p.Attempts+1)
	}
}

func (r *RetrySender) nextDelay(attempts int) time.Duration {
	delay := r.baseDelay * time.Duration(1<<attempts)
	if delay > 24*time.Hour {
		delay = 24 * time.Hour
	}
	return delay
}
