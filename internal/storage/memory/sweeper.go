package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper periodically removes expired keys from a Store.
//
// There is one Sweeper per Store. Start and Stop are idempotent and safe for
// concurrent use.
type Sweeper struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newSweeper(store *Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the sweep loop. It returns false if the loop is already
// running. The loop ends when ctx is cancelled or Stop is called.
func (w *Sweeper) Start(ctx context.Context) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done != nil {
		select {
		case <-w.done:
			// Previous loop ended with its parent context; allow a restart.
		default:
			return false
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(ctx, w.done)

	w.logger.Debug("expiration sweeper started", "interval", w.interval)
	return true
}

// Stop cancels the loop and waits for an in-progress sweep to finish.
// No sweep mutates the store after Stop returns, including for concurrent
// callers: every Stop waits on the same done channel.
func (w *Sweeper) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.mu.Unlock()

	if done == nil {
		return
	}
	if cancel != nil {
		cancel()
	}
	<-done
	if cancel != nil {
		w.logger.Debug("expiration sweeper stopped")
	}
}

// Running reports whether the sweep loop is active.
func (w *Sweeper) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done == nil {
		return false
	}
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

func (w *Sweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Both cases may be ready at once; cancellation wins.
			if ctx.Err() != nil {
				return
			}
			if removed := w.store.SweepExpired(); removed > 0 {
				w.logger.Debug("expired keys swept", "removed", removed)
			}
		}
	}
}

// StartSweeper starts the store's background expiration. It returns false if
// it is already running.
func (s *Store) StartSweeper(ctx context.Context) bool {
	return s.sweeper.Start(ctx)
}

// StopSweeper stops background expiration and waits for it to finish.
func (s *Store) StopSweeper() {
	s.sweeper.Stop()
}

// SweeperRunning reports whether background expiration is active.
func (s *Store) SweeperRunning() bool {
	return s.sweeper.Running()
}
