package router

import (
	"context"

	"github.com/dmitrymomot/pulse/pkg/notifications"
)

// Capabilities describes what a channel can render.
type Capabilities struct {
	RichContent bool `json:"richContent"`
	Interactive bool `json:"interactive"`
	Images      bool `json:"images"`
	Links       bool `json:"links"`
	MaxLength   int  `json:"maxLength"`
}

// Payload is what a processor delivers.
type Payload struct {
	NotificationID string                 `json:"notificationId"`
	UserID         string                 `json:"userId,omitempty"`
	Channel        notifications.Channel  `json:"channel"`
	Content        notifications.Content  `json:"content"`
	Priority       notifications.Priority `json:"priority"`
	Metadata       map[string]any         `json:"metadata,omitempty"`
}

// Receipt is a processor's acknowledgement.
type Receipt struct {
	MessageID string         `json:"messageId,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Processor delivers notifications over one channel.
type Processor interface {
	// Validate rejects content the channel cannot carry.
	Validate(c notifications.Content) error
	Process(ctx context.Context, p Payload) (Receipt, error)
	Capabilities() Capabilities
}

// Request asks the router to deliver one notification.
type Request struct {
	ID       string                  `json:"id"`
	UserID   string                  `json:"userId,omitempty"`
	Channels []notifications.Channel `json:"channels"`
	Content  notifications.Content   `json:"content"`
	Priority notifications.Priority  `json:"priority,omitempty"`
	Metadata map[string]any          `json:"metadata,omitempty"`
}

// Outcome classifies a channel attempt.
type Outcome string

const (
	OutcomeSuccessful Outcome = "successful"
	OutcomeFailed     Outcome = "failed"
	OutcomeSkipped    Outcome = "skipped"
)

// SkipReason explains a skipped channel.
type SkipReason string

const (
	ReasonRateLimited    SkipReason = "rate_limit_exceeded"
	ReasonDisabledByUser SkipReason = "disabled_by_user"
	ReasonQuietHours     SkipReason = "quiet_hours"
)

// ChannelResult is the outcome of one channel attempt.
type ChannelResult struct {
	Channel     notifications.Channel `json:"channel"`
	Outcome     Outcome               `json:"status"`
	Reason      SkipReason            `json:"reason,omitempty"`
	Error       string                `json:"error,omitempty"`
	Receipt     *Receipt              `json:"receipt,omitempty"`
	FallbackFor notifications.Channel `json:"fallbackFor,omitempty"`
}

// Results buckets channel outcomes.
type Results struct {
	Successful []ChannelResult `json:"successful"`
	Failed     []ChannelResult `json:"failed"`
	Skipped    []ChannelResult `json:"skipped"`
}

func (r *Results) add(cr ChannelResult) {
	switch cr.Outcome {
	case OutcomeSuccessful:
		r.Successful = append(r.Successful, cr)
	case OutcomeFailed:
		r.Failed = append(r.Failed, cr)
	default:
		r.Skipped = append(r.Skipped, cr)
	}
}

// Summary counts a route. Attempted is Successful + Failed.
type Summary struct {
	Requested  int `json:"requested"`
	Attempted  int `json:"attempted"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Result is returned by Route.
type Result struct {
	NotificationID string  `json:"notificationId"`
	Results        Results `json:"results"`
	Summary        Summary `json:"summary"`
}
