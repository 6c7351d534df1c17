package ledger

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/lib/pq"
)

const (
	maxAttempts  = 3
	retryBackoff = 25 * time.Millisecond
)

// IsSerializationFailure reports whether err is a transient conflict
// (serialization failure or deadlock) worth retrying.
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

// WithRetry runs op, retrying a bounded number of times on transient
// conflicts. Each retry sees the previous attempt's committed state, so
// ops must re-read inside op, never capture stale rows. After the last
// attempt the conflict surfaces as ErrConcurrencyConflict.
func WithRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = op()
		if err == nil || !IsSerializationFailure(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff*time.Duration(attempt) + time.Duration(rand.Intn(10))*time.Millisecond):
		}
	}
	return ErrConcurrencyConflict
}
