package events

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/pulse/pkg/logger"
)

// LogPublisher writes events to a structured logger at debug level.
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(log *slog.Logger) *LogPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, name string, payload Payload) error {
	attrs := make([]any, 0, len(payload))
	for k, v := range payload {
		attrs = append(attrs, slog.Any(k, v))
	}
	p.log.LogAttrs(ctx, slog.LevelDebug, "event published",
		logger.Event(name),
		slog.Group("payload", attrs...),
	)
	return nil
}
