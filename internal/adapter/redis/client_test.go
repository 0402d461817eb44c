package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/adapter/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_ConnectsWithHooks(t *testing.T) {
	mr := miniredis.RunT(t)
	m := metrics.NewRedisMetrics(prometheus.NewRegistry())
	ctx := context.Background()

	rdb, err := NewClient(ctx, "redis://"+mr.Addr(), clockwork.NewRealClock(),
		NewMetricsHook(m),
		NewCircuitBreakerHook(DefaultBreakerSettings(), m),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	require.NoError(t, rdb.Publish(ctx, ScoresChannel, "{}").Err())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OpsTotal.WithLabelValues("ping", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OpsTotal.WithLabelValues("publish", "success")))
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(context.Background(), "http://not-redis", clockwork.NewRealClock())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse redis URL")
}

func TestNewClient_GivesUpWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	m := metrics.NewRedisMetrics(prometheus.NewRegistry())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClock()
	done := make(chan error, 1)
	go func() {
		_, err := NewClient(ctx, "redis://"+addr, clock, NewMetricsHook(m))
		done <- err
	}()

	for range connectPolicy.MaxAttempts - 1 {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(connectPolicy.MaxBackoff)
	}

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to connect to redis")
	case <-ctx.Done():
		t.Fatal("NewClient did not give up")
	}
	assert.Positive(t, testutil.ToFloat64(m.ConnectionErrors))
}
