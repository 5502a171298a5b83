package ratelimit

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// ProviderLimiter is a process-wide, per-provider concurrency cap. Wrappers
// acquire before the outbound call and release on any exit path (spec.md
// §4.8: "Wrappers take the semaphore before the HTTP call and release on
// any exit path").
type ProviderLimiter struct {
	sem *semaphore.Weighted
}

func NewProviderLimiter(concurrency int) *ProviderLimiter {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ProviderLimiter{sem: semaphore.NewWeighted(int64(concurrency))}
}

// Acquire blocks until a slot is free or ctx is done. The returned release
// function must be called exactly once, typically via defer.
func (l *ProviderLimiter) Acquire(ctx context.Context) (release func(), err error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { l.sem.Release(1) }, nil
}
