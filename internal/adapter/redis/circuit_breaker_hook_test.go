package redis

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastSettings() gobreaker.Settings {
	s := DefaultBreakerSettings()
	s.Name = "redis-test"
	s.Timeout = 100 * time.Millisecond
	s.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.Requests >= 3 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
	}
	return s
}

func publishCmd(ctx context.Context) *goredis.IntCmd {
	return goredis.NewIntCmd(ctx, "publish", ScoresChannel, "{}")
}

func failing(ctx context.Context, cmd goredis.Cmder) error { return errors.New("connection refused") }
func succeeding(ctx context.Context, cmd goredis.Cmder) error { return nil }

func trip(t *testing.T, hook *CircuitBreakerHook, n int) {
	t.Helper()
	ctx := context.Background()
	process := hook.ProcessHook(failing)
	for range n {
		_ = process(ctx, publishCmd(ctx))
	}
	require.Equal(t, gobreaker.StateOpen, hook.GetState())
}

func TestCircuitBreakerHook_NormalOperation(t *testing.T) {
	hook := NewCircuitBreakerHook(DefaultBreakerSettings(), nil)
	ctx := context.Background()

	process := hook.ProcessHook(succeeding)
	for range 10 {
		assert.NoError(t, process(ctx, publishCmd(ctx)))
	}

	assert.Equal(t, gobreaker.StateClosed, hook.GetState())
	counts := hook.GetCounts()
	assert.Equal(t, uint32(10), counts.Requests)
	assert.Equal(t, uint32(10), counts.TotalSuccesses)
	assert.Equal(t, uint32(0), counts.TotalFailures)
}

func TestCircuitBreakerHook_NilReplyIsSuccess(t *testing.T) {
	hook := NewCircuitBreakerHook(DefaultBreakerSettings(), nil)
	ctx := context.Background()

	process := hook.ProcessHook(func(context.Context, goredis.Cmder) error { return goredis.Nil })
	err := process(ctx, goredis.NewStringCmd(ctx, "get", "missing"))

	assert.ErrorIs(t, err, goredis.Nil)
	assert.Equal(t, uint32(1), hook.GetCounts().TotalSuccesses)
}

func TestCircuitBreakerHook_TransientFailuresStayClosed(t *testing.T) {
	hook := NewCircuitBreakerHook(DefaultBreakerSettings(), nil)
	ctx := context.Background()

	process := hook.ProcessHook(failing)
	for range 2 {
		err := process(ctx, publishCmd(ctx))
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}

	assert.Equal(t, gobreaker.StateClosed, hook.GetState())
}

func TestCircuitBreakerHook_OpensAfterSustainedFailures(t *testing.T) {
	hook := NewCircuitBreakerHook(DefaultBreakerSettings(), nil)
	trip(t, hook, 5)
}

func TestCircuitBreakerHook_FailsFastWhenOpen(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRedisMetrics(reg)
	hook := NewCircuitBreakerHook(DefaultBreakerSettings(), m)
	trip(t, hook, 5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CircuitBreakerState))

	called := false
	ctx := context.Background()
	err := hook.ProcessHook(func(context.Context, goredis.Cmder) error {
		called = true
		return nil
	})(ctx, publishCmd(ctx))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.False(t, called, "Redis should not be called when circuit is open")
}

func TestCircuitBreakerHook_RecoversAfterTimeout(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRedisMetrics(reg)
	hook := NewCircuitBreakerHook(fastSettings(), m)
	trip(t, hook, 3)

	time.Sleep(150 * time.Millisecond)

	ctx := context.Background()
	require.NoError(t, hook.ProcessHook(succeeding)(ctx, publishCmd(ctx)))

	// MaxRequests is 1, so one successful probe closes the breaker
	assert.Equal(t, gobreaker.StateClosed, hook.GetState())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CircuitBreakerState))
}

func TestCircuitBreakerHook_DialRejectedWhenOpen(t *testing.T) {
	hook := NewCircuitBreakerHook(DefaultBreakerSettings(), nil)
	trip(t, hook, 5)

	dialed := false
	dial := hook.DialHook(func(context.Context, string, string) (net.Conn, error) {
		dialed = true
		return nil, nil
	})

	_, err := dial(context.Background(), "tcp", "localhost:6379")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker dial failed")
	assert.False(t, dialed)
}

func TestCircuitBreakerHook_PipelineCounted(t *testing.T) {
	hook := NewCircuitBreakerHook(DefaultBreakerSettings(), nil)
	ctx := context.Background()

	err := hook.ProcessPipelineHook(func(context.Context, []goredis.Cmder) error {
		return errors.New("broken pipe")
	})(ctx, []goredis.Cmder{publishCmd(ctx)})

	require.Error(t, err)
	assert.Equal(t, uint32(1), hook.GetCounts().TotalFailures)
}
