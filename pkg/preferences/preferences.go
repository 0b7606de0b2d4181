package preferences

import (
	"context"
	"time"

	"github.com/dmitrymomot/pulse/pkg/notifications"
)

// QuietHours is a [StartHour, EndHour) window in local hour-of-day terms.
// StartHour > EndHour wraps midnight.
type QuietHours struct {
	StartHour int `json:"startHour" bson:"startHour"`
	EndHour   int `json:"endHour" bson:"endHour"`
}

// Contains reports whether hour falls inside the window.
func (q QuietHours) Contains(hour int) bool {
	if q.StartHour == q.EndHour {
		return false
	}
	if q.StartHour < q.EndHour {
		return hour >= q.StartHour && hour < q.EndHour
	}
	return hour >= q.StartHour || hour < q.EndHour
}

// Validate checks both bounds are hours of a day.
func (q QuietHours) Validate() error {
	if q.StartHour < 0 || q.StartHour > 23 {
		return notifications.ValidationError{Field: "quietHours.startHour", Reason: "must be between 0 and 23"}
	}
	if q.EndHour < 0 || q.EndHour > 23 {
		return notifications.ValidationError{Field: "quietHours.endHour", Reason: "must be between 0 and 23"}
	}
	return nil
}

// ChannelPreference overrides settings for one channel. A nil Enabled means
// the user has not decided, which counts as enabled.
type ChannelPreference struct {
	Enabled    *bool       `json:"enabled,omitempty" bson:"enabled,omitempty"`
	QuietHours *QuietHours `json:"quietHours,omitempty" bson:"quietHours,omitempty"`
}

// Preferences is a user's delivery configuration.
type Preferences struct {
	UserID                  string                                      `json:"userId" bson:"_id"`
	Channels                map[notifications.Channel]ChannelPreference `json:"channels,omitempty" bson:"channels,omitempty"`
	PreferredChannels       []notifications.Channel                     `json:"preferredChannels,omitempty" bson:"preferredChannels,omitempty"`
	ChannelPriority         []notifications.Channel                     `json:"channelPriority,omitempty" bson:"channelPriority,omitempty"`
	QuietHours              *QuietHours                                 `json:"quietHours,omitempty" bson:"quietHours,omitempty"`
	SkipQuietHoursForUrgent bool                                        `json:"skipQuietHoursForUrgent" bson:"skipQuietHoursForUrgent"`
	Timezone                string                                      `json:"timezone,omitempty" bson:"timezone,omitempty"`
	LastContact             map[notifications.Channel]time.Time         `json:"lastContact,omitempty" bson:"lastContact,omitempty"`
}

// Validate checks the user id, quiet-hour bounds and timezone.
func (p Preferences) Validate() error {
	if p.UserID == "" {
		return notifications.Required("userId")
	}
	if p.QuietHours != nil {
		if err := p.QuietHours.Validate(); err != nil {
			return err
		}
	}
	for _, cp := range p.Channels {
		if cp.QuietHours != nil {
			if err := cp.QuietHours.Validate(); err != nil {
				return err
			}
		}
	}
	if p.Timezone != "" {
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			return notifications.ValidationError{Field: "timezone", Reason: err.Error()}
		}
	}
	return nil
}

// Disabled reports whether the user explicitly switched ch off.
func (p *Preferences) Disabled(ch notifications.Channel) bool {
	if p == nil {
		return false
	}
	cp, ok := p.Channels[ch]
	return ok && cp.Enabled != nil && !*cp.Enabled
}

// Location returns the user's timezone, UTC when unset or unknown.
func (p *Preferences) Location() *time.Location {
	if p == nil || p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// InQuietHours reports whether now falls in the quiet window for ch. A
// channel window takes precedence over the global one.
func (p *Preferences) InQuietHours(ch notifications.Channel, now time.Time) bool {
	if p == nil {
		return false
	}
	window := p.QuietHours
	if cp, ok := p.Channels[ch]; ok && cp.QuietHours != nil {
		window = cp.QuietHours
	}
	if window == nil {
		return false
	}
	return window.Contains(now.In(p.Location()).Hour())
}

// Source is the read side consumed by the router.
type Source interface {
	// Get returns nil, nil when the user has no preferences.
	Get(ctx context.Context, userID string) (*Preferences, error)
	UpdateLastContact(ctx context.Context, userID string, ch notifications.Channel, at time.Time) error
}

// Store is a Source that can also be written.
type Store interface {
	Source
	Save(ctx context.Context, p Preferences) error
}

// Bool returns a pointer to b, for ChannelPreference.Enabled.
func Bool(b bool) *bool { return &b }
