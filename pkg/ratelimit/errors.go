package ratelimit

import "errors"

var (
	ErrInvalidWindow = errors.New("invalid window")
	ErrKeyRequired   = errors.New("key is required")
	ErrStoreRequired = errors.New("store is required")
	// ErrStoreUnavailable wraps backing-store faults. It is never a denial.
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
)
