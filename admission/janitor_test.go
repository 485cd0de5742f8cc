package admission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindhaven/gate/pkg/clock"
)

func TestSweepReclaimsExpiredCounters(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Now())
	svc, _ := newTestService(t, testConfig(), clk)

	_, err := svc.limiter.Allow("client-a", BucketAPI)
	require.NoError(t, err)
	_, err = svc.limiter.Allow("client-b", BucketChat)
	require.NoError(t, err)
	require.Equal(t, 2, svc.limiter.Len())

	// Windows still live: nothing is removed.
	svc.sweepOnce()
	assert.Equal(t, 2, svc.limiter.Len())

	clk.Advance(2 * time.Second)
	svc.sweepOnce()
	assert.Zero(t, svc.limiter.Len())
}

func TestSweepSparesActiveStreams(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Now())
	svc, _ := newTestService(t, testConfig(), clk)

	require.True(t, svc.gate.TryAcquire("busy", 2))
	require.True(t, svc.gate.TryAcquire("idle", 2))
	svc.gate.Release("idle")

	// Far beyond any grace period: the idle entry goes, the held one stays.
	clk.Advance(time.Hour)
	svc.sweepOnce()

	assert.Equal(t, 1, svc.gate.Inflight("busy"), "entries with open slots are never reclaimed")
	assert.Equal(t, 1, svc.gate.Len())
}

func TestIdleGraceDelaysReclaim(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Now())
	svc, _ := newTestService(t, testConfig(), clk)

	require.True(t, svc.gate.TryAcquire("c", 2))
	svc.gate.Release("c")

	// ChatWindow is 1s so the grace floor of one minute applies.
	clk.Advance(30 * time.Second)
	svc.sweepOnce()
	assert.Equal(t, 1, svc.gate.Len(), "entry within grace must survive")

	clk.Advance(31 * time.Second)
	svc.sweepOnce()
	assert.Zero(t, svc.gate.Len())
}

func TestJanitorLifecycle(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, testConfig(), nil)

	done := make(chan error, 1)
	go func() {
		done <- svc.Start(context.Background())
	}()

	require.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return svc.cancel != nil
	}, time.Second, 10*time.Millisecond)

	// Second Start while running is rejected.
	assert.ErrorIs(t, svc.Start(context.Background()), ErrJanitorRunning)

	require.NoError(t, svc.Stop())
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}

	// Stop is idempotent, and the service can be started again.
	assert.NoError(t, svc.Stop())

	go func() {
		done <- svc.Start(context.Background())
	}()
	require.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return svc.cancel != nil
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, svc.Stop())
	<-done
}

func TestRunTreatsCancelAsClean(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Run(ctx)()
	}()

	require.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return svc.cancel != nil
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("janitor did not exit on context cancel")
	}
}

func TestCleanupIntervalFloor(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.CleanupInterval = time.Millisecond
	assert.Equal(t, MinCleanupInterval, cfg.cleanupInterval())

	cfg.CleanupInterval = time.Hour
	assert.Equal(t, time.Hour, cfg.cleanupInterval())
}
