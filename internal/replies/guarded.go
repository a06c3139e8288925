package replies

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/intake-engine/internal/observability/metrics"
	"github.com/wolfman30/intake-engine/pkg/logging"
)

// DefaultTimeout bounds a reply before the local fallback answers.
const DefaultTimeout = 12 * time.Second

// Guarded bounds the primary service and substitutes the fallback on
// timeout, error or an empty reply.
type Guarded struct {
	primary  Service
	fallback Service
	timeout  time.Duration
	metrics  *metrics.IntakeMetrics
	tracer   trace.Tracer
	logger   *logging.Logger
}

// WithFallback wraps primary. A nil primary always uses the fallback.
func WithFallback(primary, fallback Service, timeout time.Duration, m *metrics.IntakeMetrics, logger *logging.Logger) *Guarded {
	if fallback == nil {
		panic("replies: fallback required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Guarded{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
		metrics:  m,
		tracer:   otel.Tracer("intake.internal.replies"),
		logger:   logger,
	}
}

type result struct {
	resp Response
	err  error
}

// Reply always returns a non-empty response unless the fallback itself fails.
func (g *Guarded) Reply(ctx context.Context, req Request) (Response, error) {
	ctx, span := g.tracer.Start(ctx, "replies.reply")
	defer span.End()

	if g.primary == nil {
		return g.useFallback(ctx, req, Response{}, "unconfigured", 0, span)
	}

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		resp, err := g.primary.Reply(callCtx, req)
		done <- result{resp: resp, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-callCtx.Done():
		res = result{err: callCtx.Err()}
	}
	latency := time.Since(start)

	switch {
	case errors.Is(res.err, context.DeadlineExceeded):
		g.logger.Warn("reply service timed out", "timeout", g.timeout.String())
		return g.useFallback(ctx, req, Response{}, "timeout", latency, span)
	case res.err != nil:
		span.RecordError(res.err)
		g.logger.Warn("reply service failed, using fallback", "error", res.err)
		return g.useFallback(ctx, req, Response{}, "error", latency, span)
	case res.resp.Empty():
		return g.useFallback(ctx, req, res.resp, "empty", latency, span)
	}

	g.metrics.ObserveReply("service", "ok", latency)
	span.SetAttributes(attribute.String("reply.source", "service"))
	return res.resp, nil
}

// useFallback keeps any flags the primary set alongside an empty reply.
func (g *Guarded) useFallback(ctx context.Context, req Request, partial Response, reason string, latency time.Duration, span trace.Span) (Response, error) {
	g.metrics.ObserveReply("fallback", reason, latency)
	span.SetAttributes(attribute.String("reply.source", "fallback"), attribute.String("reply.reason", reason))

	resp, err := g.fallback.Reply(ctx, req)
	if err != nil {
		return Response{}, err
	}
	resp.ShowContactForm = resp.ShowContactForm || partial.ShowContactForm
	resp.ShowAppointmentForm = resp.ShowAppointmentForm || partial.ShowAppointmentForm
	if resp.Action == "" {
		resp.Action = partial.Action
	}
	resp.Fallback = true
	return resp, nil
}
