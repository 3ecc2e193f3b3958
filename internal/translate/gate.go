package translate

import (
	"context"
	"sync"
)

// Gate is a cooperative pause point. The pipeline waits on it at chunk
// boundaries only; an in-flight provider call is never interrupted.
type Gate struct {
	mu     sync.Mutex
	paused bool
	resume chan struct{} // closed on Resume; nil while running
}

// NewGate returns an open (running) gate.
func NewGate() *Gate {
	return &Gate{}
}

// Pause closes the gate. Safe to call repeatedly.
func (g *Gate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		return
	}
	g.paused = true
	g.resume = make(chan struct{})
}

// Resume opens the gate, releasing any waiter.
func (g *Gate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return
	}
	g.paused = false
	close(g.resume)
	g.resume = nil
}

// Paused reports whether the gate is currently closed.
func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Wait blocks while the gate is paused, returning early if the context is
// cancelled.
func (g *Gate) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		if !g.paused {
			g.mu.Unlock()
			return nil
		}
		resume := g.resume
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-resume:
		}
	}
}
