// Package ratelimit throttles credential attempts per (source, identifier)
// key using a fixed window. It guards password login before any password
// verification work happens.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultMaxAttempts and DefaultWindow are policy defaults; both are
	// configurable through options.
	DefaultMaxAttempts = 5
	DefaultWindow      = 15 * time.Minute
)

var (
	// ErrRateLimited is returned when a key's attempt budget is exhausted.
	ErrRateLimited = errors.New("ratelimit: too many attempts")

	// ErrUnavailable signals an attempt store failure, never a denial.
	ErrUnavailable = errors.New("ratelimit: store unavailable")
)

// Entry is one key's attempt state inside the current window.
type Entry struct {
	Count       int
	WindowStart time.Time
}

// AttemptStore persists attempt counters. The in-memory implementation is
// the single-instance default; the Redis one backs multi-instance
// deployments.
type AttemptStore interface {
	// Increment bumps the key's counter, resetting the window first when
	// it has elapsed. Must be atomic per key.
	Increment(ctx context.Context, key string, now time.Time, window time.Duration) (Entry, error)

	// Get returns the key's entry; ok=false when the key is unseen.
	Get(ctx context.Context, key string, now time.Time, window time.Duration) (Entry, bool, error)

	Delete(ctx context.Context, key string) error
}

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed   bool
	Remaining int
	// ResetAt is set only when the request is not allowed.
	ResetAt time.Time
}

// Limiter applies the fixed-window policy on top of an AttemptStore.
type Limiter struct {
	store       AttemptStore
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithMaxAttempts overrides the attempt budget per window.
func WithMaxAttempts(n int) LimiterOption {
	return func(l *Limiter) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

// WithWindow overrides the fixed window length.
func WithWindow(d time.Duration) LimiterOption {
	return func(l *Limiter) {
		if d > 0 {
			l.window = d
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) LimiterOption {
	return func(l *Limiter) {
		if fn != nil {
			l.now = fn
		}
	}
}

// NewLimiter constructs a Limiter over store.
func NewLimiter(store AttemptStore, opts ...LimiterOption) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("ratelimit: attempt store is required")
	}
	l := &Limiter{
		store:       store,
		maxAttempts: DefaultMaxAttempts,
		window:      DefaultWindow,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Key builds the attempt key. Keys are independent per pair: throttling
// one identifier from an address never affects another identifier from
// the same address.
func Key(source, identifier string) string {
	return strings.TrimSpace(strings.ToLower(source)) + "|" + strings.TrimSpace(strings.ToLower(identifier))
}

// RecordAttempt counts one failed attempt against the pair.
func (l *Limiter) RecordAttempt(ctx context.Context, source, identifier string) error {
	if _, err := l.store.Increment(ctx, Key(source, identifier), l.now(), l.window); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Check reports whether another attempt is allowed for the pair.
func (l *Limiter) Check(ctx context.Context, source, identifier string) (Decision, error) {
	now := l.now()
	entry, ok, err := l.store.Get(ctx, Key(source, identifier), now, l.window)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok || now.Sub(entry.WindowStart) >= l.window {
		return Decision{Allowed: true, Remaining: l.maxAttempts}, nil
	}
	remaining := l.maxAttempts - entry.Count
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{Allowed: remaining > 0, Remaining: remaining}
	if !d.Allowed {
		d.ResetAt = entry.WindowStart.Add(l.window)
	}
	return d, nil
}

// Reset clears the pair's counter (used after a successful login).
func (l *Limiter) Reset(ctx context.Context, source, identifier string) error {
	if err := l.store.Delete(ctx, Key(source, identifier)); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
