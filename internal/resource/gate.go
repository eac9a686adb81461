// Package resource serializes access to GPU-resident local models: at
// most one job may hold a local STT/TTS model loaded at a time, since
// concurrent local jobs together would exceed the host's VRAM.
package resource

import (
	"context"
	"sync"
)

// CleanupFunc unloads a model and clears any allocator cache. It runs
// between acquisitions regardless of whether the prior holder
// succeeded, so the next acquirer always observes a clean GPU state.
type CleanupFunc func()

// Gate is a single-slot semaphore with a guaranteed cleanup hook. It
// has no priority queue and no reentrance: a goroutine that already
// holds the gate must not call Acquire again.
type Gate struct {
	slot chan struct{}
}

// NewGate returns a gate with its single slot free.
func NewGate() *Gate {
	g := &Gate{slot: make(chan struct{}, 1)}
	g.slot <- struct{}{}
	return g
}

// Guard is returned by Acquire and releases the slot exactly once,
// invoking cleanup first, whether Release is called after success or
// via a deferred call on an error path.
type Guard struct {
	gate    *Gate
	cleanup CleanupFunc
	once    sync.Once
}

// Acquire blocks until the gate is free or ctx is done, whichever
// comes first. cleanup runs
// unconditionally when the returned Guard is released.
func (g *Gate) Acquire(ctx context.Context, cleanup CleanupFunc) (*Guard, error) {
	select {
	case <-g.slot:
		return &Guard{gate: g, cleanup: cleanup}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release runs the cleanup hook and returns the slot. Safe to call
// more than once; only the first call has effect, matching guard
// semantics that must survive being reached from multiple defer/error paths.
func (guard *Guard) Release() {
	guard.once.Do(func() {
		if guard.cleanup != nil {
			guard.cleanup()
		}
		guard.gate.slot <- struct{}{}
	})
}
