package webhook

import (
	"net/http"
	"time"
)

// DeliveryResult describes the last attempt of a Send.
type DeliveryResult struct {
	Success    bool
	StatusCode int
	Attempts   int
	Duration   time.Duration
	DeliveryID string
}

type sendOptions struct {
	timeout    time.Duration
	headers    http.Header
	maxRetries int
	backoff    BackoffStrategy
	secret     string
	breaker    *CircuitBreaker
	onAttempt  func(attempt int, statusCode int, err error)
}

func defaultSendOptions() *sendOptions {
	return &sendOptions{
		timeout:    10 * time.Second,
		headers:    make(http.Header),
		maxRetries: 3,
		backoff:    DefaultBackoffStrategy(),
	}
}

// SendOption configures one Send call.
type SendOption func(*sendOptions)

func WithTimeout(d time.Duration) SendOption {
	return func(o *sendOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithHeader(key, value string) SendOption {
	return func(o *sendOptions) {
		if key != "" && value != "" {
			o.headers.Set(key, value)
		}
	}
}

// WithMaxRetries sets retries after the first attempt; 0 disables them.
func WithMaxRetries(n int) SendOption {
	return func(o *sendOptions) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

func WithBackoff(b BackoffStrategy) SendOption {
	return func(o *sendOptions) {
		if b != nil {
			o.backoff = b
		}
	}
}

// WithSignature signs the body with secret.
func WithSignature(secret string) SendOption {
	return func(o *sendOptions) { o.secret = secret }
}

// WithCircuitBreaker guards the endpoint. Reuse one breaker per endpoint.
func WithCircuitBreaker(cb *CircuitBreaker) SendOption {
	return func(o *sendOptions) { o.breaker = cb }
}

// WithOnAttempt observes every attempt.
func WithOnAttempt(fn func(attempt int, statusCode int, err error)) SendOption {
	return func(o *sendOptions) { o.onAttempt = fn }
}
