package ingest

// limiter.go bounds how many ingestions run at once. Acquire waits a
// bounded time for a slot so brief bursts queue instead of failing, then
// gives up with ErrTooManyIngests. WaitForDrain lets shutdown hold the
// server open until in-flight ingestions finish.

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTooManyIngests is returned when every slot stays occupied for the
// whole acquire wait.
var ErrTooManyIngests = errors.New("too many concurrent uploads, please try again later")

const (
	// DefaultMaxConcurrent is the slot count when none is configured.
	DefaultMaxConcurrent = 3

	// DefaultAcquireWait is how long Acquire queues for a slot before
	// giving up.
	DefaultAcquireWait = 30 * time.Second
)

// Limiter is a semaphore over ingestion slots.
type Limiter struct {
	sem     *semaphore.Weighted
	max     int
	maxWait time.Duration

	mu     sync.RWMutex
	active int
}

// NewLimiter creates a limiter with the given slot count and acquire
// wait. Non-positive arguments fall back to the defaults.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = DefaultAcquireWait
	}
	return &Limiter{
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		max:     maxConcurrent,
		maxWait: maxWait,
	}
}

// Acquire blocks until a slot frees, the wait elapses, or ctx is done.
// Returns ErrTooManyIngests when the wait elapses with no slot.
func (l *Limiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyIngests
	}

	l.mu.Lock()
	l.active++
	l.mu.Unlock()
	return nil
}

// TryAcquire grabs a slot without waiting.
func (l *Limiter) TryAcquire() bool {
	if !l.sem.TryAcquire(1) {
		return false
	}
	l.mu.Lock()
	l.active++
	l.mu.Unlock()
	return true
}

// Release returns a slot. Must pair with a successful acquire.
func (l *Limiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	l.sem.Release(1)
}

// Active returns the number of held slots.
func (l *Limiter) Active() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// LimiterStatus is a point-in-time snapshot of slot occupancy.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status snapshots the limiter.
func (l *Limiter) Status() LimiterStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return LimiterStatus{
		Active:        l.active,
		Available:     l.max - l.active,
		MaxConcurrent: l.max,
	}
}

// WaitForDrain blocks until no slots are held or ctx is done.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.Active() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
