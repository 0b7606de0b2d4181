package amqp

import "errors"

var (
	ErrFailedToConnect = errors.New("failed to connect to amqp broker")
	ErrUnhealthy       = errors.New("amqp: connection closed")
	ErrPublisherClosed = errors.New("amqp publisher is closed")
	ErrEmptyQueue      = errors.New("queue name is required")
	ErrEncodeMessage   = errors.New("failed to encode amqp message")
)
