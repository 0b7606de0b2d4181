package channels

import (
	"fmt"
	"unicode/utf8"

	"github.com/dmitrymomot/pulse/pkg/notifications"
	"github.com/dmitrymomot/pulse/pkg/router"
)

// Metadata keys read by the processors.
const (
	MetaEmail         = "email"
	MetaPhone         = "phone"
	MetaWebhookURL    = "webhook_url"
	MetaWebhookSecret = "webhook_secret"
	MetaSiteID        = "siteId"
	MetaChannelKey    = "channelKey"
)

// Set is the processor table the binary registers with the router. Nil
// members are left unregistered.
type Set struct {
	Web     *Web
	Email   *Email
	Push    *Queued
	SMS     *Queued
	Webhook *Webhook
}

// Register adds every non-nil processor of s to r.
func (s Set) Register(r *router.Router) error {
	procs := []struct {
		ch notifications.Channel
		p  router.Processor
		ok bool
	}{
		{notifications.ChannelWeb, s.Web, s.Web != nil},
		{notifications.ChannelEmail, s.Email, s.Email != nil},
		{notifications.ChannelPush, s.Push, s.Push != nil},
		{notifications.ChannelSMS, s.SMS, s.SMS != nil},
		{notifications.ChannelWebhook, s.Webhook, s.Webhook != nil},
	}
	for _, p := range procs {
		if !p.ok {
			continue
		}
		if err := r.RegisterProcessor(p.ch, p.p); err != nil {
			return fmt.Errorf("register %s: %w", p.ch, err)
		}
	}
	return nil
}

func metaString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func validateLength(c notifications.Content, caps router.Capabilities) error {
	if c.Message == "" {
		return ErrEmptyMessage
	}
	if caps.MaxLength > 0 {
		if n := utf8.RuneCountInString(c.Message); n > caps.MaxLength {
			return fmt.Errorf("%w: %d > %d", ErrMessageTooLong, n, caps.MaxLength)
		}
	}
	if c.Image != "" && !caps.Images {
		return ErrInvalidImage
	}
	return nil
}
