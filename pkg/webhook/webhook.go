package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const userAgent = "pulse-webhook/1.0"

// Sender posts JSON payloads with retries, signing and circuit breaking.
type Sender struct {
	client *http.Client
}

func NewSender() *Sender {
	return &Sender{client: &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}}
}

func NewSenderWithClient(client *http.Client) *Sender {
	if client == nil {
		return NewSender()
	}
	return &Sender{client: client}
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return u, nil
}

// Send posts data as JSON to endpoint. 4xx responses other than 408, 425
// and 429 are permanent and end the retry loop.
func (s *Sender) Send(ctx context.Context, endpoint string, data any, opts ...SendOption) (DeliveryResult, error) {
	if _, err := ValidateURL(endpoint); err != nil {
		return DeliveryResult{}, err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return DeliveryResult{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	o := defaultSendOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.breaker != nil && !o.breaker.Allow() {
		return DeliveryResult{}, ErrCircuitOpen
	}

	var (
		res     DeliveryResult
		lastErr error
	)
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(o.backoff.NextInterval(attempt)):
			}
		}

		res.Attempts = attempt + 1
		status, deliveryID, d, err := s.attempt(ctx, endpoint, payload, o)
		res.StatusCode, res.DeliveryID, res.Duration = status, deliveryID, d
		if o.onAttempt != nil {
			o.onAttempt(attempt+1, status, err)
		}
		if o.breaker != nil {
			if err == nil {
				o.breaker.RecordSuccess()
			} else {
				o.breaker.RecordFailure()
			}
		}
		if err == nil {
			res.Success = true
			return res, nil
		}
		lastErr = err
		if isPermanent(status) {
			return res, fmt.Errorf("%w: %w", ErrRejected, err)
		}
		if o.breaker != nil && !o.breaker.Allow() {
			return res, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
		}
	}
	return res, fmt.Errorf("%w after %d attempts: %w", ErrDeliveryFailed, res.Attempts, lastErr)
}

func (s *Sender) attempt(ctx context.Context, endpoint string, payload []byte, o *sendOptions) (int, string, time.Duration, error) {
	start := time.Now()
	reqCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, "", time.Since(start), fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, vs := range o.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	var deliveryID string
	if o.secret != "" {
		sig, err := Sign(o.secret, payload, time.Now())
		if err != nil {
			return 0, "", time.Since(start), err
		}
		sig.Apply(req.Header)
		deliveryID = sig.DeliveryID
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return 0, deliveryID, time.Since(start), fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return 0, deliveryID, time.Since(start), fmt.Errorf("%w: %w", ErrTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	d := time.Since(start)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, deliveryID, d, nil
	}

	msg := fmt.Sprintf("webhook returned status %d", resp.StatusCode)
	if len(body) > 0 {
		snippet := strings.ReplaceAll(string(body), "\n", " ")
		if len(snippet) > 200 {
			snippet = snippet[:200] + "..."
		}
		msg += ": " + snippet
	}
	return resp.StatusCode, deliveryID, d, errors.New(msg)
}

func isPermanent(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return true
}
