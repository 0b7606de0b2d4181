package channels

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/pulse/pkg/amqp"
	"github.com/dmitrymomot/pulse/pkg/notifications"
	"github.com/dmitrymomot/pulse/pkg/router"
)

// Queue names consumed by the provider workers.
const (
	PushQueue = "push.notifications"
	SMSQueue  = "sms.notifications"
)

// QueuePublisher is satisfied by *amqp.Publisher.
type QueuePublisher interface {
	Publish(ctx context.Context, queue string, msg amqp.Message) (string, error)
}

// Queued hands notifications to an external provider worker through a
// message queue. Delivery to the device happens downstream.
type Queued struct {
	channel   notifications.Channel
	queue     string
	pub       QueuePublisher
	caps      router.Capabilities
	recipient func(router.Payload) (string, error)
}

// NewPush publishes to PushQueue. The worker resolves device tokens from
// the user id.
func NewPush(pub QueuePublisher) *Queued {
	return &Queued{
		channel: notifications.ChannelPush,
		queue:   PushQueue,
		pub:     pub,
		caps:    router.Capabilities{Images: true, Links: true, Interactive: true, MaxLength: 240},
		recipient: func(p router.Payload) (string, error) {
			if p.UserID == "" {
				return "", fmt.Errorf("%w: userId", ErrMissingRecipient)
			}
			return p.UserID, nil
		},
	}
}

// NewSMS publishes to SMSQueue. The phone number comes from metadata["phone"].
func NewSMS(pub QueuePublisher) *Queued {
	return &Queued{
		channel: notifications.ChannelSMS,
		queue:   SMSQueue,
		pub:     pub,
		caps:    router.Capabilities{Links: true, MaxLength: 160},
		recipient: func(p router.Payload) (string, error) {
			phone := metaString(p.Metadata, MetaPhone)
			if phone == "" {
				return "", fmt.Errorf("%w: %s", ErrMissingRecipient, MetaPhone)
			}
			return phone, nil
		},
	}
}

func (q *Queued) Capabilities() router.Capabilities { return q.caps }

func (q *Queued) Validate(c notifications.Content) error {
	return validateLength(c, q.caps)
}

// QueuedMessage is the body written to the queue.
type QueuedMessage struct {
	NotificationID string                 `json:"notificationId"`
	Channel        notifications.Channel  `json:"channel"`
	Recipient      string                 `json:"recipient"`
	UserID         string                 `json:"userId,omitempty"`
	Title          string                 `json:"title,omitempty"`
	Text           string                 `json:"text"`
	URL            string                 `json:"url,omitempty"`
	Image          string                 `json:"image,omitempty"`
	Data           map[string]any         `json:"data,omitempty"`
	Priority       notifications.Priority `json:"priority"`
}

func (q *Queued) Process(ctx context.Context, p router.Payload) (router.Receipt, error) {
	to, err := q.recipient(p)
	if err != nil {
		return router.Receipt{}, err
	}

	msg := QueuedMessage{
		NotificationID: p.NotificationID,
		Channel:        q.channel,
		Recipient:      to,
		UserID:         p.UserID,
		Text:           p.Content.Message,
		URL:            p.Content.URL,
		Priority:       p.Priority,
	}
	if q.caps.Images {
		msg.Image = p.Content.Image
	}
	if q.caps.RichContent || q.caps.Interactive {
		msg.Title = p.Content.Title
		msg.Data = p.Content.Data
	}

	id, err := q.pub.Publish(ctx, q.queue, amqp.Message{
		ID:       p.NotificationID,
		Type:     string(q.channel),
		Body:     msg,
		Priority: queuePriority(p.Priority),
	})
	if err != nil {
		return router.Receipt{}, err
	}
	return router.Receipt{MessageID: id, Details: map[string]any{"queue": q.queue}}, nil
}

func queuePriority(p notifications.Priority) uint8 {
	switch p {
	case notifications.PriorityUrgent:
		return 9
	case notifications.PriorityHigh:
		return 6
	case notifications.PriorityLow:
		return 1
	default:
		return 3
	}
}
