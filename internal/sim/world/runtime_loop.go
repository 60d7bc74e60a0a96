package world

import (
	"context"
	"errors"
	"time"
)

var ErrStopped = errors.New("world stopped")

type doReq struct {
	fn   func()
	done chan struct{}
}

// Run drives the tick clock and executes queued Do requests until ctx is
// cancelled or Stop is called. All world state is touched only from here.
func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	// Pending and later Do calls must not wait on a dead loop.
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.do:
			req.fn()
			close(req.done)
		case <-ticker.C:
			w.tick.Add(1)
		}
	}
}

// Stop ends Run. Safe to call more than once.
func (w *World) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// Do runs fn on the world loop goroutine and waits for it to finish.
// It is safe to call from other goroutines (e.g. control socket handlers).
func (w *World) Do(ctx context.Context, fn func()) error {
	req := doReq{fn: fn, done: make(chan struct{})}
	select {
	case w.do <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-w.stop:
		return ErrStopped
	}
	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.stop:
		return ErrStopped
	}
}
