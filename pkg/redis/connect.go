package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrNoURL       = errors.New("redis: connection URL is empty")
	ErrBadURL      = errors.New("redis: invalid connection URL")
	ErrUnavailable = errors.New("redis: server unavailable")
	ErrUnhealthy   = errors.New("redis: healthcheck failed")
)

// Connect returns a client once the server answers PING. Waits between
// attempts double from cfg.RetryInterval; the whole call is bounded by
// cfg.ConnectTimeout.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	if cfg.ConnectionURL == "" {
		return nil, ErrNoURL
	}
	opts, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadURL, err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	client := redis.NewClient(opts)
	wait := cfg.RetryInterval
	attempts := max(cfg.RetryAttempts, 1)
	for attempt := 1; ; attempt++ {
		err = client.Ping(ctx).Err()
		if err == nil {
			return client, nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
		case <-time.After(wait):
		}
		wait *= 2
	}
	_ = client.Close()
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrUnavailable, attempts, err)
}

// Healthcheck is a readiness probe that expects PONG back.
func Healthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		reply, err := client.Ping(ctx).Result()
		switch {
		case err != nil:
			return fmt.Errorf("%w: %w", ErrUnhealthy, err)
		case reply != "PONG":
			return fmt.Errorf("%w: unexpected reply %q", ErrUnhealthy, reply)
		}
		return nil
	}
}
