package stream

import "errors"

var (
	ErrRegistryRequired    = errors.New("stream: connection registry is required")
	ErrLimiterRequired     = errors.New("stream: rate limiter is required")
	ErrLedgerRequired      = errors.New("stream: delivery ledger is required")
	ErrQueueFull           = errors.New("stream: dispatch queue is full")
	ErrAlreadyStarted      = errors.New("stream: service already started")
	ErrNotStarted          = errors.New("stream: service not started")
	ErrConnectionInactive  = errors.New("stream: connection is not active")
	ErrDuplicateConnection = errors.New("stream: connection id already registered")
)
