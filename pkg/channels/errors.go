package channels

import "errors"

var (
	ErrEmptyMessage      = errors.New("message is required")
	ErrMessageTooLong    = errors.New("message exceeds channel length limit")
	ErrMissingRecipient  = errors.New("recipient is missing from notification metadata")
	ErrNoLiveConnections = errors.New("no live connections for recipient")
	ErrInvalidImage      = errors.New("channel does not support images")
)
