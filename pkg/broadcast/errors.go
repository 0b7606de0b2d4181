package broadcast

import (
	"errors"
	"fmt"
)

var (
	ErrRegistryClosed       = errors.New("broadcast: registry is closed")
	ErrStreamingUnsupported = errors.New("broadcast: response writer does not support flushing")
	ErrChannelKeyRequired   = errors.New("broadcast: channel key is required")
	ErrNilHandle            = errors.New("broadcast: handle is nil")
)

// ErrHandleClosed is returned when writing to a closed handle.
type ErrHandleClosed struct {
	ID string
}

func (e ErrHandleClosed) Error() string {
	return fmt.Sprintf("broadcast: handle %s is closed", e.ID)
}
