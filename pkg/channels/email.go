package channels

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrymomot/pulse/pkg/email"
	"github.com/dmitrymomot/pulse/pkg/notifications"
	"github.com/dmitrymomot/pulse/pkg/router"
)

// Email renders the notification into HTML and hands it to an EmailSender.
type Email struct {
	sender         email.EmailSender
	defaultSubject string
}

func NewEmail(sender email.EmailSender, defaultSubject string) *Email {
	if defaultSubject == "" {
		defaultSubject = "New notification"
	}
	return &Email{sender: sender, defaultSubject: defaultSubject}
}

func (e *Email) Capabilities() router.Capabilities {
	return router.Capabilities{RichContent: true, Images: true, Links: true}
}

func (e *Email) Validate(c notifications.Content) error {
	return validateLength(c, e.Capabilities())
}

func (e *Email) Process(ctx context.Context, p router.Payload) (router.Receipt, error) {
	to := metaString(p.Metadata, MetaEmail)
	if to == "" {
		return router.Receipt{}, fmt.Errorf("%w: %s", ErrMissingRecipient, MetaEmail)
	}

	html, err := email.RenderNotification(email.Notification{
		Title:   p.Content.Title,
		Message: p.Content.Message,
		URL:     p.Content.URL,
		Image:   p.Content.Image,
	})
	if err != nil {
		return router.Receipt{}, err
	}

	text := p.Content.Message
	if p.Content.URL != "" {
		text += "\n\n" + p.Content.URL
	}
	subject := strings.TrimSpace(p.Content.Title)
	if subject == "" {
		subject = e.defaultSubject
	}

	err = e.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   to,
		Subject:  subject,
		BodyHTML: html,
		BodyText: text,
		Tag:      "notification",
		Metadata: map[string]string{"notification_id": p.NotificationID, "priority": string(p.Priority)},
	})
	if err != nil {
		return router.Receipt{}, err
	}
	return router.Receipt{MessageID: p.NotificationID, Details: map[string]any{"to": to}}, nil
}
