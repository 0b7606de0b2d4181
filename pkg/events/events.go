package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/pulse/pkg/logger"
)

// Event names emitted by the delivery engine.
const (
	ConnectionEstablished  = "connection.established"
	ConnectionClosed       = "connection.closed"
	ConnectionsCleanup     = "connection.cleanup"
	NotificationQueued     = "notification.queued"
	NotificationNoTargets  = "notification.no_recipients"
	NotificationDelivered  = "notification.delivered"
	NotificationRetry      = "notification.retry_scheduled"
	NotificationRouted     = "notification.routed"
	NotificationInteracted = "notification.interaction"
)

// StatusEvent returns "notification.<status>".
func StatusEvent[T ~string](status T) string {
	return "notification." + string(status)
}

// Payload is the free-form body of an event.
type Payload map[string]any

// Event is what sinks persist or forward.
type Event struct {
	Name       string    `json:"name"`
	Payload    Payload   `json:"payload"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher is the outbound event port. Implementations must be safe for
// concurrent use. Errors are reported to the caller, which treats publishing
// as best effort.
type Publisher interface {
	Publish(ctx context.Context, name string, payload Payload) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, name string, payload Payload) error

func (f PublisherFunc) Publish(ctx context.Context, name string, payload Payload) error {
	return f(ctx, name, payload)
}

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, string, Payload) error { return nil })

func newEvent(name string, payload Payload) Event {
	return Event{Name: name, Payload: payload, OccurredAt: time.Now().UTC()}
}

// Emit publishes through p and logs a failure instead of returning it.
func Emit(ctx context.Context, p Publisher, log *slog.Logger, name string, payload Payload) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, name, payload); err != nil && log != nil {
		log.LogAttrs(ctx, slog.LevelWarn, "failed to publish event", logger.Event(name), logger.Error(err))
	}
}
