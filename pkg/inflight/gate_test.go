package inflight_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mindhaven/gate/pkg/clock"
	"github.com/mindhaven/gate/pkg/inflight"
)

// Covers the reference scenario: with a cap of 2, two acquires succeed,
// the third fails, and one release frees exactly one further admission.
func TestAcquireReleaseScenario(t *testing.T) {
	t.Parallel()

	g := inflight.New()

	assert.True(t, g.TryAcquire("key", 2))
	assert.True(t, g.TryAcquire("key", 2))
	assert.False(t, g.TryAcquire("key", 2), "third acquire must fail at cap 2")
	assert.Equal(t, 2, g.Inflight("key"))

	g.Release("key")
	assert.Equal(t, 1, g.Inflight("key"))

	assert.True(t, g.TryAcquire("key", 2), "released slot must be reusable")
	assert.False(t, g.TryAcquire("key", 2))
}

func TestRejectedAcquireMutatesNothing(t *testing.T) {
	t.Parallel()

	g := inflight.New()

	assert.True(t, g.TryAcquire("key", 1))
	assert.False(t, g.TryAcquire("key", 1))
	assert.False(t, g.TryAcquire("key", 1))
	assert.Equal(t, 1, g.Inflight("key"))

	g.Release("key")
	assert.Equal(t, 0, g.Inflight("key"))
}

func TestReleaseFloorsAtZero(t *testing.T) {
	t.Parallel()

	g := inflight.New()

	g.Release("never-acquired")
	assert.Equal(t, 0, g.Inflight("never-acquired"))

	assert.True(t, g.TryAcquire("key", 1))
	g.Release("key")
	g.Release("key")
	g.Release("key")
	assert.Equal(t, 0, g.Inflight("key"))

	assert.True(t, g.TryAcquire("key", 1), "floor must not create phantom capacity debt")
}

func TestKeysAreIndependent(t *testing.T) {
	t.Parallel()

	g := inflight.New()

	assert.True(t, g.TryAcquire("alice", 1))
	assert.False(t, g.TryAcquire("alice", 1))
	assert.True(t, g.TryAcquire("bob", 1))
}

func TestAtCapacity(t *testing.T) {
	t.Parallel()

	g := inflight.New()

	assert.False(t, g.AtCapacity("key", 1), "unknown key is not saturated")
	assert.True(t, g.AtCapacity("key", 0), "non-positive cap admits nothing")

	g.TryAcquire("key", 1)
	assert.True(t, g.AtCapacity("key", 1))

	g.Release("key")
	assert.False(t, g.AtCapacity("key", 1))
}

func TestZeroCapAdmitsNothing(t *testing.T) {
	t.Parallel()

	g := inflight.New()
	assert.False(t, g.TryAcquire("key", 0))
	assert.False(t, g.TryAcquire("key", -1))
}

func TestSweep(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Unix(1000, 0))
	g := inflight.New(inflight.WithClock(clk))
	grace := time.Minute

	g.TryAcquire("idle", 2)
	g.Release("idle")
	g.TryAcquire("busy", 2)

	// Within the grace period nothing is removed.
	assert.Equal(t, 0, g.Sweep(clk.Now(), grace))

	clk.Advance(grace + time.Second)

	// The idle zero-count entry goes; the one with an open slot stays no
	// matter how stale its timestamp is.
	assert.Equal(t, 1, g.Sweep(clk.Now(), grace))
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, 1, g.Inflight("busy"))

	g.Release("busy")
	clk.Advance(grace + time.Second)
	assert.Equal(t, 1, g.Sweep(clk.Now(), grace))
	assert.Equal(t, 0, g.Len())
}

func TestConcurrentAcquireAtMostN(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping race test in short mode")
	}

	t.Parallel()

	g := inflight.New()
	const max = 8
	const goroutines = 100

	var wg sync.WaitGroup
	var acquired atomic.Int64

	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			if g.TryAcquire("shared", max) {
				acquired.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(max), acquired.Load(), "exactly max slots under contention")
	assert.Equal(t, max, g.Inflight("shared"))
}

func TestConcurrentAcquireReleaseBalance(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping race test in short mode")
	}

	t.Parallel()

	g := inflight.New()
	const goroutines = 50
	const iterations = 100

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				if g.TryAcquire("shared", 4) {
					g.Release("shared")
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, g.Inflight("shared"), "every acquire must be balanced by its release")
}
