package notifications

import (
	"time"

	"github.com/google/uuid"
)

// Priority controls rate-limit headroom and retry behavior of a notification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority returns the priority for s. Empty input yields PriorityNormal.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(s); p {
	case "":
		return PriorityNormal, nil
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return p, nil
	default:
		return "", ValidationError{Field: "priority", Reason: "must be one of low, normal, high, urgent"}
	}
}

// ScaleLimit applies the priority multiplier to a base limit:
// urgent 5x, high 2x, normal 1x, low 0.5x rounded down.
// Unknown priorities are treated as normal.
func (p Priority) ScaleLimit(base int) int {
	switch p {
	case PriorityUrgent:
		return base * 5
	case PriorityHigh:
		return base * 2
	case PriorityLow:
		return base / 2
	default:
		return base
	}
}

// IsCritical reports whether failed deliveries of this priority get a retry
// and whether the notification is dispatched synchronously.
func (p Priority) IsCritical() bool {
	return p == PriorityHigh || p == PriorityUrgent
}

// Channel is a delivery medium.
type Channel string

const (
	ChannelWeb     Channel = "web"
	ChannelEmail   Channel = "email"
	ChannelPush    Channel = "push"
	ChannelSMS     Channel = "sms"
	ChannelWebhook Channel = "webhook"
)

// Content is the rendered payload of a notification.
type Content struct {
	Title   string         `json:"title,omitempty"`
	Message string         `json:"message"`
	URL     string         `json:"url,omitempty"`
	Image   string         `json:"image,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Notification is a transient send request. It is not persisted by the engine.
type Notification struct {
	ID             string         `json:"id"`
	SiteID         string         `json:"siteId"`
	Type           string         `json:"type"`
	Content        Content        `json:"content"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Priority       Priority       `json:"priority"`
	TargetUsers    []string       `json:"targetUsers,omitempty"`
	TargetSessions []string       `json:"targetSessions,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.New().String()
}

// HasTargets reports whether the notification restricts its recipients.
func (n Notification) HasTargets() bool {
	return len(n.TargetUsers) > 0 || len(n.TargetSessions) > 0
}
