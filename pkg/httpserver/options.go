package httpserver

import (
	"log/slog"
	"time"
)

type Option func(*config)

func WithAddr(addr string) Option {
	return func(c *config) {
		if addr != "" {
			c.addr = addr
		}
	}
}

// WithTimeouts sets the http.Server timeouts. Zero leaves a value unchanged.
func WithTimeouts(readHeader, read, write, idle time.Duration) Option {
	return func(c *config) {
		c.readHeaderTimeout = cmpOr(readHeader, c.readHeaderTimeout)
		c.readTimeout = cmpOr(read, c.readTimeout)
		c.writeTimeout = cmpOr(write, c.writeTimeout)
		c.idleTimeout = cmpOr(idle, c.idleTimeout)
	}
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(c *config) { c.shutdownTimeout = cmpOr(d, c.shutdownTimeout) }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithOnShutdown registers fn to run when shutdown begins, before waiting
// for in-flight requests. Long-lived stream handlers use it to return.
func WithOnShutdown(fn func()) Option {
	return func(c *config) {
		if fn != nil {
			c.onShutdown = append(c.onShutdown, fn)
		}
	}
}

func cmpOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
