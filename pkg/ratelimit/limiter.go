package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Limiter answers allow/deny against a caller-computed limit over a sliding
// window. Once a key reaches its limit it stays denied until its oldest hit
// ages out.
type Limiter struct {
	store  Store
	window time.Duration
}

// New returns a Limiter counting over window.
func New(store Store, window time.Duration) (*Limiter, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	return &Limiter{store: store, window: window}, nil
}

// Window returns the counting window.
func (l *Limiter) Window() time.Duration { return l.window }

// Allow checks key against limit and consumes a slot in the same store
// operation, so concurrent callers never overshoot the limit. Store faults
// are returned wrapped in ErrStoreUnavailable so callers can choose to fail
// open or closed.
func (l *Limiter) Allow(ctx context.Context, key string, limit int) (Reservation, error) {
	if key == "" {
		return Reservation{}, ErrKeyRequired
	}
	res := Reservation{Key: key, Limit: limit}
	if limit <= 0 {
		return res, nil
	}

	id := uuid.NewString()
	allowed, count, resetIn, err := l.store.RecordIfBelow(ctx, key, id, limit, l.window)
	if err != nil {
		return res, errors.Join(ErrStoreUnavailable, err)
	}
	res.Allowed = allowed
	res.Count = int(count)
	res.ResetIn = resetIn
	if allowed {
		res.ID = id
	}
	return res, nil
}

// Cancel gives back the slot held by an allowed reservation. Denied or zero
// reservations are ignored.
func (l *Limiter) Cancel(ctx context.Context, res Reservation) error {
	if !res.Allowed || res.ID == "" {
		return nil
	}
	if err := l.store.Remove(ctx, res.Key, res.ID); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// Status reports the live hits for key against limit without consuming.
func (l *Limiter) Status(ctx context.Context, key string, limit int) (Status, error) {
	if key == "" {
		return Status{}, ErrKeyRequired
	}
	count, resetIn, err := l.store.Count(ctx, key, l.window)
	if err != nil {
		return Status{}, errors.Join(ErrStoreUnavailable, err)
	}
	return Status{
		Key:       key,
		Count:     int(count),
		Limit:     limit,
		Remaining: max(0, limit-int(count)),
		ResetIn:   resetIn,
	}, nil
}

// Reset clears key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyRequired
	}
	if err := l.store.Delete(ctx, key); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
