package channels

import (
	"context"
	"fmt"
	"net/url"

	"github.com/dmitrymomot/pulse/pkg/notifications"
	"github.com/dmitrymomot/pulse/pkg/router"
	"github.com/dmitrymomot/pulse/pkg/webhook"
)

// Webhook posts the payload to metadata["webhook_url"], signed with
// metadata["webhook_secret"] or the default secret.
type Webhook struct {
	sender     *webhook.Sender
	breakers   *webhook.Breakers
	secret     string
	maxRetries int
}

type WebhookOption func(*Webhook)

func WithWebhookSecret(secret string) WebhookOption {
	return func(w *Webhook) { w.secret = secret }
}

func WithWebhookRetries(n int) WebhookOption {
	return func(w *Webhook) { w.maxRetries = n }
}

func WithBreakers(b *webhook.Breakers) WebhookOption {
	return func(w *Webhook) { w.breakers = b }
}

func NewWebhook(sender *webhook.Sender, opts ...WebhookOption) *Webhook {
	w := &Webhook{sender: sender, maxRetries: 2}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Webhook) Capabilities() router.Capabilities {
	return router.Capabilities{RichContent: true, Interactive: true, Images: true, Links: true}
}

func (w *Webhook) Validate(c notifications.Content) error {
	return validateLength(c, w.Capabilities())
}

func (w *Webhook) Process(ctx context.Context, p router.Payload) (router.Receipt, error) {
	endpoint := metaString(p.Metadata, MetaWebhookURL)
	if endpoint == "" {
		return router.Receipt{}, fmt.Errorf("%w: %s", ErrMissingRecipient, MetaWebhookURL)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return router.Receipt{}, fmt.Errorf("%w: %w", webhook.ErrInvalidURL, err)
	}

	opts := []webhook.SendOption{
		webhook.WithMaxRetries(w.maxRetries),
		webhook.WithHeader("X-Pulse-Notification", p.NotificationID),
	}
	secret := metaString(p.Metadata, MetaWebhookSecret)
	if secret == "" {
		secret = w.secret
	}
	if secret != "" {
		opts = append(opts, webhook.WithSignature(secret))
	}
	if w.breakers != nil {
		opts = append(opts, webhook.WithCircuitBreaker(w.breakers.For(u.Host)))
	}

	// Metadata may carry the secret; it never leaves the engine.
	body := p
	body.Metadata = nil
	res, err := w.sender.Send(ctx, endpoint, body, opts...)
	if err != nil {
		return router.Receipt{}, err
	}
	return router.Receipt{
		MessageID: res.DeliveryID,
		Details:   map[string]any{"statusCode": res.StatusCode, "attempts": res.Attempts},
	}, nil
}
