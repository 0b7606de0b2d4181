package stream

import (
	"time"

	"github.com/dmitrymomot/pulse/pkg/broadcast"
	"github.com/dmitrymomot/pulse/pkg/notifications"
)

// ConnectionType is the transport of a connection.
type ConnectionType string

const (
	TypeSSE       ConnectionType = "sse"
	TypeWebSocket ConnectionType = "websocket"
	TypePolling   ConnectionType = "polling"
)

// Streaming reports whether connections of this type join the fan-out
// registry.
func (t ConnectionType) Streaming() bool {
	return t == TypeSSE || t == TypeWebSocket
}

func (t ConnectionType) valid() bool {
	return t.Streaming() || t == TypePolling
}

// ConnectionParams describes a connection to attach.
type ConnectionParams struct {
	ID        string
	SiteID    string
	UserID    string
	SessionID string
	Type      ConnectionType
	Handle    broadcast.Handle
	Metadata  map[string]any
}

// Connection is a snapshot of a tracked connection.
type Connection struct {
	ID           string         `json:"id"`
	SiteID       string         `json:"siteId"`
	UserID       string         `json:"userId,omitempty"`
	SessionID    string         `json:"sessionId"`
	Type         ConnectionType `json:"type"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Active       bool           `json:"active"`
	ConnectedAt  time.Time      `json:"connectedAt"`
	LastActivity time.Time      `json:"lastActivity"`
}

// SendParams is the input of SendNotification.
type SendParams struct {
	SiteID         string                 `json:"siteId"`
	Type           string                 `json:"type"`
	Content        notifications.Content  `json:"content"`
	Metadata       map[string]any         `json:"metadata,omitempty"`
	Priority       notifications.Priority `json:"priority,omitempty"`
	TargetUsers    []string               `json:"targetUsers,omitempty"`
	TargetSessions []string               `json:"targetSessions,omitempty"`
}

// ProcessResult counts the outcome of one dispatch. Retrying deliveries get
// their final outcome recorded by the scheduled retry.
type ProcessResult struct {
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Retrying  int `json:"retrying,omitempty"`
}

type BroadcastResult struct {
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

type Stats struct {
	Total  int                    `json:"total"`
	Active int                    `json:"active"`
	ByType map[ConnectionType]int `json:"byType"`
	BySite map[string]int         `json:"bySite"`
}

type Health struct {
	Status        string          `json:"status"`
	Running       bool            `json:"running"`
	Connections   Stats           `json:"connections"`
	Channels      broadcast.Stats `json:"channels"`
	QueueSize     int             `json:"queueSize"`
	QueueCapacity int             `json:"queueCapacity"`
	Uptime        time.Duration   `json:"-"`
	UptimeSeconds float64         `json:"uptimeSeconds"`
}

// Message is the frame payload clients receive for a notification.
type Message struct {
	ID        string                 `json:"id"`
	SiteID    string                 `json:"siteId"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title,omitempty"`
	Message   string                 `json:"message"`
	URL       string                 `json:"url,omitempty"`
	Image     string                 `json:"image,omitempty"`
	Data      map[string]any         `json:"data,omitempty"`
	Priority  notifications.Priority `json:"priority"`
	CreatedAt time.Time              `json:"createdAt"`
}

// EventNotification is the frame event name of notifications.
const EventNotification = "notification"

// Frame renders n for the wire.
func Frame(n notifications.Notification) broadcast.Frame {
	return broadcast.Frame{
		ID:    n.ID,
		Event: EventNotification,
		Data: Message{
			ID:        n.ID,
			SiteID:    n.SiteID,
			Type:      n.Type,
			Title:     n.Content.Title,
			Message:   n.Content.Message,
			URL:       n.Content.URL,
			Image:     n.Content.Image,
			Data:      n.Content.Data,
			Priority:  n.Priority,
			CreatedAt: n.CreatedAt,
		},
	}
}
