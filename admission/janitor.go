package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrJanitorRunning is returned by Start if the cleanup loop is already
// running.
var ErrJanitorRunning = errors.New("cleanup scheduler already running")

// Start runs the cleanup loop until the context is canceled or Stop is
// called. Each pass sweeps expired rate-limit windows and idle inflight
// entries. Blocks; run it in a goroutine or via Run.
func (s *Service[C]) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrJanitorRunning
	}
	jctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	interval := s.cfg.cleanupInterval()
	s.logger.Info("cleanup scheduler started",
		slog.Duration("interval", interval),
		slog.Duration("idle_grace", s.cfg.idleGrace()),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-jctx.Done():
			s.logger.Info("cleanup scheduler stopped")
			return jctx.Err()
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

// Stop cancels the cleanup loop and waits for an in-progress sweep to
// finish, bounded by ShutdownTimeout. Safe to call more than once; only
// the first call cancels.
func (s *Service[C]) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(s.cfg.shutdownTimeout()):
		return fmt.Errorf("cleanup scheduler: shutdown timed out after %s", s.cfg.shutdownTimeout())
	}
}

// Run adapts the janitor to an errgroup-style closure: it starts the
// loop and treats context cancellation as a clean exit.
func (s *Service[C]) Run(ctx context.Context) func() error {
	return func() error {
		err := s.Start(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

// sweepOnce performs one cleanup pass over both stores. Entries still in
// use are never removed: the limiter only drops fully elapsed windows and
// the gate only drops zero-count entries past the idle grace.
func (s *Service[C]) sweepOnce() {
	s.wg.Add(1)
	defer s.wg.Done()

	now := s.clock.Now()
	expired := s.limiter.Sweep(now)
	idle := s.gate.Sweep(now, s.cfg.idleGrace())

	if expired > 0 || idle > 0 {
		s.logger.Debug("cleanup pass finished",
			slog.Int("expired_counters", expired),
			slog.Int("idle_slots", idle),
		)
	}
}
