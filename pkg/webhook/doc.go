// Package webhook posts signed JSON payloads to customer endpoints.
//
//	s := webhook.NewSender()
//	res, err := s.Send(ctx, "https://example.com/hooks/pulse", payload,
//		webhook.WithSignature(secret),
//		webhook.WithMaxRetries(2),
//		webhook.WithCircuitBreaker(breakers.For(host)),
//	)
//
// Signed requests carry X-Pulse-Signature, X-Pulse-Timestamp and
// X-Pulse-Delivery. The signature is hex HMAC-SHA256 over
// "<timestamp>.<body>"; receivers check it with ParseSignature and Verify.
//
// Transport errors, timeouts, 5xx and 408/425/429 responses are retried with
// the configured backoff. Other 4xx responses fail immediately.
package webhook
