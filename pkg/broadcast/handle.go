package broadcast

import "context"

// Handle is a live, writable connection endpoint.
type Handle interface {
	// ID is unique across all handles in a registry.
	ID() string
	// Send writes one frame. An error means the handle is no longer usable.
	Send(ctx context.Context, f Frame) error
	// Done is closed when the underlying connection goes away.
	Done() <-chan struct{}
}
