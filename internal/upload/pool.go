package upload

// pool.go bounds how many uploads run at once.
//
// A Limiter is a semaphore shared by every run in the process, so a daemon
// that starts runs back to back never exceeds its configured parallelism.
// RunPool fans a run's uploads out over an errgroup; the first failure
// cancels the rest.

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the default number of parallel uploads.
const DefaultConcurrency = 4

// Limiter caps concurrent uploads using a semaphore.
type Limiter struct {
	semaphore chan struct{}

	mu     sync.RWMutex
	active int
}

// NewLimiter creates a limiter allowing maxConcurrent simultaneous uploads.
func NewLimiter(maxConcurrent int) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultConcurrency
	}
	return &Limiter{semaphore: make(chan struct{}, maxConcurrent)}
}

// Acquire blocks until a slot is free or ctx is done.
// The caller MUST call Release when the upload completes.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (l *Limiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.semaphore
}

// ActiveCount returns the number of uploads in flight.
func (l *Limiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// MaxConcurrent returns the slot count.
func (l *Limiter) MaxConcurrent() int {
	return cap(l.semaphore)
}

// WaitForDrain blocks until no upload is in flight or ctx is done.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a snapshot of a limiter.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the limiter state for monitoring.
func (l *Limiter) Status() LimiterStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return LimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}

// RunPool calls fn for indexes 0..n-1 with at most limit calls in flight,
// each also holding a slot of lim (a private limiter when nil). It returns the first error; the context
// passed to fn is cancelled once any call fails.
func RunPool(ctx context.Context, lim *Limiter, limit, n int, fn func(ctx context.Context, i int) error) error {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	if lim == nil {
		lim = NewLimiter(limit)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range n {
		g.Go(func() error {
			if err := lim.Acquire(ctx); err != nil {
				return err
			}
			defer lim.Release()
			return fn(ctx, i)
		})
	}
	return g.Wait()
}
