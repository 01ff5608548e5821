// Package ratelimit caps how many videos a client may assemble per calendar day.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Store keeps generation timestamps per client identity.
type Store interface {
	// Count returns how many generations identity recorded at or after since.
	Count(ctx context.Context, identity string, since time.Time) (int, error)
	// Add records one generation at the given time.
	Add(ctx context.Context, identity string, at time.Time) error
}

// Limiter is a soft daily quota. Allow and Record are separate calls, so two
// concurrent requests can both pass Allow and overshoot by one.
type Limiter struct {
	store Store
	max   int
	now   func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(store Store, maxPerDay int, opts ...Option) *Limiter {
	l := &Limiter{
		store: store,
		max:   maxPerDay,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Max returns the daily cap.
func (l *Limiter) Max() int {
	return l.max
}

// Allow reports whether identity is still under today's cap.
func (l *Limiter) Allow(ctx context.Context, identity string) (bool, error) {
	used, err := l.used(ctx, identity)
	if err != nil {
		return false, err
	}
	return used < l.max, nil
}

// Record stores one generation for identity at the current time.
func (l *Limiter) Record(ctx context.Context, identity string) error {
	if err := l.store.Add(ctx, identity, l.now()); err != nil {
		return fmt.Errorf("failed to record generation: %w", err)
	}
	return nil
}

// Remaining returns how many generations identity has left today.
func (l *Limiter) Remaining(ctx context.Context, identity string) (int, error) {
	used, err := l.used(ctx, identity)
	if err != nil {
		return 0, err
	}
	if used >= l.max {
		return 0, nil
	}
	return l.max - used, nil
}

func (l *Limiter) used(ctx context.Context, identity string) (int, error) {
	n, err := l.store.Count(ctx, identity, startOfDay(l.now()))
	if err != nil {
		return 0, fmt.Errorf("failed to read generation count: %w", err)
	}
	return n, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
