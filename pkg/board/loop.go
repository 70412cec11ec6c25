package board

import (
	"context"
	"sync"
	"time"
)

// loopState tracks the background evaporation goroutine.
type loopState struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// StartEvaporationLoop runs Evaporate on a fixed interval until
// StopEvaporationLoop is called or the parent context is cancelled.
// Evaporation is idempotent, so the loop is safe alongside explicit
// Evaporate calls. A non-positive interval disables the loop.
func (b *Board) StartEvaporationLoop(parentCtx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	b.loop.mu.Lock()
	defer b.loop.mu.Unlock()
	if b.loop.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(parentCtx)
	done := make(chan struct{})
	b.loop.cancel = cancel
	b.loop.done = done

	b.logger.Info("starting evaporation loop", "interval", interval)

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := b.Evaporate(ctx); err != nil && ctx.Err() == nil {
					b.logger.Error("evaporation sweep failed", "error", err)
				}
			}
		}
	}()
}

// StopEvaporationLoop stops the background sweep and waits for it to exit.
// Safe to call when the loop was never started.
func (b *Board) StopEvaporationLoop() {
	b.loop.mu.Lock()
	cancel := b.loop.cancel
	done := b.loop.done
	b.loop.cancel = nil
	b.loop.done = nil
	b.loop.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	b.logger.Info("evaporation loop stopped")
}
