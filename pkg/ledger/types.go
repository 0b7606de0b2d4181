package ledger

import (
	"time"

	"github.com/dmitrymomot/pulse/pkg/notifications"
)

// Delivery is the input of Record.
type Delivery struct {
	NotificationID string                       `json:"notificationId"`
	ConnectionID   string                       `json:"connectionId"`
	Channel        notifications.Channel        `json:"channel"`
	Status         notifications.DeliveryStatus `json:"status"`
	Metadata       map[string]any               `json:"metadata,omitempty"`
	Error          string                       `json:"error,omitempty"`
}

// Record is one persisted delivery attempt. There is at most one record per
// (NotificationID, ConnectionID) pair.
type Record struct {
	ID             string                       `json:"id"`
	NotificationID string                       `json:"notificationId"`
	ConnectionID   string                       `json:"connectionId"`
	Channel        notifications.Channel        `json:"channel"`
	Status         notifications.DeliveryStatus `json:"status"`
	Metadata       map[string]any               `json:"metadata,omitempty"`
	Error          string                       `json:"error,omitempty"`
	Timestamp      time.Time                    `json:"timestamp"`
	UpdatedAt      *time.Time                   `json:"updatedAt,omitempty"`
}

// InteractionType names a user interaction with a delivered notification.
type InteractionType string

const (
	InteractionView    InteractionType = "view"
	InteractionClick   InteractionType = "click"
	InteractionDismiss InteractionType = "dismiss"
)

// Interaction is an append-only interaction entry.
type Interaction struct {
	ID             string          `json:"id"`
	NotificationID string          `json:"notificationId"`
	ConnectionID   string          `json:"connectionId"`
	Type           InteractionType `json:"type"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// StatusUpdate is a compare-and-set status change handed to a Store.
type StatusUpdate struct {
	NotificationID string
	ConnectionID   string
	From           notifications.DeliveryStatus
	To             notifications.DeliveryStatus
	Metadata       map[string]any
	At             time.Time
}

// StatusCount is one row of a grouped count.
type StatusCount struct {
	Status  notifications.DeliveryStatus
	Channel notifications.Channel
	Count   int
}

// Stats aggregates the records of one notification.
type Stats struct {
	NotificationID string                                                         `json:"notificationId"`
	Total          int                                                            `json:"total"`
	ByStatus       map[notifications.DeliveryStatus]int                           `json:"byStatus"`
	ByChannel      map[notifications.Channel]map[notifications.DeliveryStatus]int `json:"byChannel"`
	DeliveryRate   float64                                                        `json:"deliveryRate"`
	OpenRate       float64                                                        `json:"openRate"`
	ClickRate      float64                                                        `json:"clickRate"`
}

// ChannelRate is the delivery rate of one channel over a trailing window.
type ChannelRate struct {
	Channel      notifications.Channel `json:"channel"`
	Window       time.Duration         `json:"window"`
	Sent         int                   `json:"sent"`
	Delivered    int                   `json:"delivered"`
	Failed       int                   `json:"failed"`
	DeliveryRate float64               `json:"deliveryRate"`
}

// BatchError describes one rejected item of a batch.
type BatchError struct {
	Index          int    `json:"index"`
	NotificationID string `json:"notificationId,omitempty"`
	ConnectionID   string `json:"connectionId,omitempty"`
	Error          string `json:"error"`
}

// BatchResult counts the outcome of BatchRecord.
type BatchResult struct {
	Total      int          `json:"total"`
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	Errors     []BatchError `json:"errors,omitempty"`
}

// percent returns num/den*100, or 0 when den is 0.
func percent(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den) * 100
}

func mergeMetadata(base, extra map[string]any) map[string]any {
	if len(extra) == 0 {
		return base
	}
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
