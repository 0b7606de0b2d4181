package events

import "errors"

var (
	ErrPublishFailed = errors.New("event publish failed")
	ErrNoBrokers     = errors.New("no kafka brokers configured")
)
