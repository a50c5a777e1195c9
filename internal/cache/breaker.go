package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/model"
)

// Breaker wraps a Cache with a circuit breaker so a dead backing store makes
// the API fail fast with 503s instead of stacking up timed-out round trips.
// Only infrastructure errors trip the breaker; ErrNotFound and failed CAS
// guards count as successes.
type Breaker struct {
	inner Cache
	cb    *gobreaker.CircuitBreaker
}

func NewBreaker(inner Cache) *Breaker {
	return &Breaker{
		inner: inner,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "status-cache",
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			Timeout: 10 * time.Second,
		}),
	}
}

// execute runs fn under the breaker. Infrastructure errors count as breaker
// failures; every other error passes through to the caller unchanged.
func (b *Breaker) execute(fn func() error) error {
	var domainErr error
	_, err := b.cb.Execute(func() (any, error) {
		err := fn()
		if err != nil && errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		domainErr = err
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit open", ErrUnavailable)
	}
	if err != nil {
		return err
	}
	return domainErr
}

func (b *Breaker) Put(ctx context.Context, rec *model.StatusRecord, ttl time.Duration) error {
	return b.execute(func() error { return b.inner.Put(ctx, rec, ttl) })
}

func (b *Breaker) Get(ctx context.Context, id string) (*model.StatusRecord, error) {
	var rec *model.StatusRecord
	err := b.execute(func() error {
		r, err := b.inner.Get(ctx, id)
		rec = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (b *Breaker) CompareAndSet(ctx context.Context, id string, expected model.Status, rec *model.StatusRecord, ttl time.Duration) (bool, error) {
	var swapped bool
	err := b.execute(func() error {
		ok, err := b.inner.CompareAndSet(ctx, id, expected, rec, ttl)
		swapped = ok
		return err
	})
	return swapped, err
}

func (b *Breaker) Touch(ctx context.Context, id string, ttl time.Duration) error {
	return b.execute(func() error { return b.inner.Touch(ctx, id, ttl) })
}
