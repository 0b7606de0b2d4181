package ratelimit

import (
	"context"
	"time"
)

// Store keeps a sliding log of hits per key. A hit counts while it is
// younger than the window.
type Store interface {
	// RecordIfBelow atomically records hit id under key when fewer than
	// limit hits are live. It returns whether the hit was recorded, the live
	// count afterwards and the time until the oldest live hit expires.
	RecordIfBelow(ctx context.Context, key, id string, limit int, window time.Duration) (allowed bool, count int64, resetIn time.Duration, err error)

	// Count returns the live hits for key without recording.
	Count(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)

	// Remove drops a single hit. Missing hits are not an error.
	Remove(ctx context.Context, key, id string) error

	// Delete drops every hit for key.
	Delete(ctx context.Context, key string) error
}

// Reservation is the outcome of Limiter.Allow. An allowed reservation holds
// one slot until it ages out of the window or is cancelled.
type Reservation struct {
	Key     string
	ID      string
	Allowed bool
	Count   int
	Limit   int
	ResetIn time.Duration
}

// Status is a point-in-time view of one key.
type Status struct {
	Key       string
	Count     int
	Limit     int
	Remaining int
	ResetIn   time.Duration
}
