// Package pacer spaces outgoing requests by a minimum interval.
package pacer

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum gap between requests. A nil Pacer never waits,
// so callers can pass through an unconfigured value without checks.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
	clock    Timer
}

// New creates a Pacer using real time. A non-positive interval disables
// pacing by returning nil.
func New(interval time.Duration) *Pacer {
	return NewWithTimer(interval, Clock{})
}

// NewWithTimer creates a Pacer with a custom clock.
func NewWithTimer(interval time.Duration, clock Timer) *Pacer {
	if interval <= 0 {
		return nil
	}

	if clock == nil {
		clock = Clock{}
	}

	return &Pacer{
		interval: interval,
		clock:    clock,
	}
}

// Wait blocks until the next allowed request time or context cancellation.
// The first call passes immediately.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	now := p.clock.Now()

	if p.next.IsZero() || !now.Before(p.next) {
		p.next = now.Add(p.interval)
		p.mu.Unlock()

		return nil
	}

	wait := p.next.Sub(now)
	p.next = p.next.Add(p.interval)
	p.mu.Unlock()

	return p.clock.Sleep(ctx, wait)
}
