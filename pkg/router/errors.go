package router

import "errors"

var (
	ErrLimiterRequired    = errors.New("router: rate limiter is required")
	ErrNoProcessor        = errors.New("router: no processor registered for channel")
	ErrProcessorPanicked  = errors.New("router: processor panicked")
	ErrInvalidFallbackDoc = errors.New("router: invalid fallback document")
)
