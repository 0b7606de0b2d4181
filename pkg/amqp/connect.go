package amqp

import (
	"context"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connect dials the broker, retrying up to cfg.RetryAttempts times.
func Connect(ctx context.Context, cfg Config) (*amqp.Connection, error) {
	var lastErr error
	for attempt := range max(cfg.RetryAttempts, 1) {
		conn, err := amqp.DialConfig(cfg.URL, amqp.Config{Heartbeat: cfg.Heartbeat})
		if err == nil {
			return conn, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrFailedToConnect, ctx.Err())
		case <-time.After(time.Duration(attempt+1) * cfg.RetryInterval):
		}
	}
	return nil, errors.Join(ErrFailedToConnect, lastErr)
}

// Healthcheck reports whether the connection is still open.
func Healthcheck(conn *amqp.Connection) func(context.Context) error {
	return func(context.Context) error {
		if conn == nil || conn.IsClosed() {
			return ErrUnhealthy
		}
		return nil
	}
}
