// Package cache is the TTL-bounded status store pollers read. It is the only
// channel between workers and the API; the API never reads worker memory.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/model"
)

// ErrNotFound is returned for ids with no live record.
var ErrNotFound = errors.New("status record not found")

// ErrUnavailable marks infrastructure failures of the store itself.
var ErrUnavailable = errors.New("status cache unavailable")

// Cache stores one status record per submission id.
type Cache interface {
	// Put overwrites the record atomically and resets its TTL.
	Put(ctx context.Context, rec *model.StatusRecord, ttl time.Duration) error
	// Get reads the record; ErrNotFound when absent or expired.
	Get(ctx context.Context, id string) (*model.StatusRecord, error)
	// CompareAndSet replaces the record iff the stored status equals
	// expected. Returns false without error when the guard fails.
	CompareAndSet(ctx context.Context, id string, expected model.Status, rec *model.StatusRecord, ttl time.Duration) (bool, error)
	// Touch extends the TTL of an existing record.
	Touch(ctx context.Context, id string, ttl time.Duration) error
}
