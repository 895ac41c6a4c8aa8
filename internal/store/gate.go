package store

import (
	"context"
	"sync"
)

// Gate is a one-shot readiness barrier. It is released exactly once, either
// when the schema is ready or when initialisation gives up; waiters are never
// left blocked.
type Gate struct {
	once sync.Once
	done chan struct{}
	err  error
}

// NewGate returns an unreleased gate.
func NewGate() *Gate {
	return &Gate{done: make(chan struct{})}
}

// Release opens the gate and records the initialisation outcome.
// Only the first call has an effect; it reports whether this call released.
func (g *Gate) Release(err error) bool {
	released := false
	g.once.Do(func() {
		g.err = err
		close(g.done)
		released = true
	})
	return released
}

// Wait blocks until the gate is released or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done exposes the release channel.
func (g *Gate) Done() <-chan struct{} {
	return g.done
}

// Err returns the initialisation error once released, nil before that.
func (g *Gate) Err() error {
	select {
	case <-g.done:
		return g.err
	default:
		return nil
	}
}
