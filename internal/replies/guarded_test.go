package replies

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/intake-engine/internal/observability/metrics"
)

type serviceFunc func(ctx context.Context, req Request) (Response, error)

func (f serviceFunc) Reply(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }

func TestGuardedUsesPrimary(t *testing.T) {
	primary := serviceFunc(func(ctx context.Context, req Request) (Response, error) {
		return Response{Reply: "from service"}, nil
	})
	g := WithFallback(primary, NewFallback("Studio", nil), time.Second, metrics.NewIntakeMetrics(prometheus.NewRegistry()), nil)

	resp, err := g.Reply(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "from service", resp.Reply)
	assert.False(t, resp.Fallback)
}

func TestGuardedFallsBackOnTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	primary := serviceFunc(func(ctx context.Context, req Request) (Response, error) {
		<-release
		return Response{Reply: "too late"}, nil
	})
	g := WithFallback(primary, NewFallback("Studio", nil), 20*time.Millisecond, nil, nil)

	start := time.Now()
	resp, err := g.Reply(context.Background(), Request{Message: "hello"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, resp.Fallback)
	assert.NotEmpty(t, resp.Reply)
}

func TestGuardedFallsBackOnError(t *testing.T) {
	primary := serviceFunc(func(ctx context.Context, req Request) (Response, error) {
		return Response{}, ErrUnavailable
	})
	g := WithFallback(primary, NewFallback("Studio", nil), time.Second, nil, nil)

	resp, err := g.Reply(context.Background(), Request{Message: "how much does it cost"})
	require.NoError(t, err)
	assert.True(t, resp.Fallback)
	assert.Contains(t, resp.Reply, "Pricing")
}

func TestGuardedEmptyReplyKeepsFlags(t *testing.T) {
	primary := serviceFunc(func(ctx context.Context, req Request) (Response, error) {
		return Response{Reply: "  ", ShowContactForm: true}, nil
	})
	g := WithFallback(primary, NewFallback("Studio", nil), time.Second, nil, nil)

	resp, err := g.Reply(context.Background(), Request{Message: "something unusual"})
	require.NoError(t, err)
	assert.True(t, resp.Fallback)
	assert.True(t, resp.ShowContactForm)
	assert.False(t, resp.Empty())
}

func TestGuardedWithoutPrimary(t *testing.T) {
	g := WithFallback(nil, NewFallback("Studio", nil), 0, nil, nil)
	resp, err := g.Reply(context.Background(), Request{Message: "book a call"})
	require.NoError(t, err)
	assert.True(t, resp.WantsAppointment())
}

func TestGuardedFallbackError(t *testing.T) {
	failing := serviceFunc(func(ctx context.Context, req Request) (Response, error) {
		return Response{}, errors.New("nope")
	})
	g := WithFallback(failing, failing, time.Second, nil, nil)
	_, err := g.Reply(context.Background(), Request{Message: "hi"})
	assert.Error(t, err)
}
