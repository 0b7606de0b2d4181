package webhook

import "errors"

var (
	ErrDeliveryFailed = errors.New("webhook: delivery failed")
	ErrTransient      = errors.New("webhook: transient failure")
	ErrTimeout        = errors.New("webhook: request timed out")
	ErrCircuitOpen    = errors.New("webhook: endpoint circuit open")

	// ErrRejected wraps 4xx answers other than 408, 425 and 429. They are not retried.
	ErrRejected = errors.New("webhook: rejected by endpoint")

	ErrInvalidURL       = errors.New("webhook: invalid URL")
	ErrInvalidPayload   = errors.New("webhook: invalid payload")
	ErrNoSecret         = errors.New("webhook: signing secret is required")
	ErrInvalidSignature = errors.New("webhook: invalid signature")
)
