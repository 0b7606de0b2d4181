package channels

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/pulse/pkg/broadcast"
	"github.com/dmitrymomot/pulse/pkg/notifications"
	"github.com/dmitrymomot/pulse/pkg/router"
)

// EventNotification is the frame event type used for notifications.
const EventNotification = "notification"

// Fanout is satisfied by *broadcast.Registry.
type Fanout interface {
	SendToChannel(ctx context.Context, key string, f broadcast.Frame) broadcast.Result
}

// Web pushes notifications to the live stream connections of the user.
type Web struct {
	fanout Fanout
}

func NewWeb(f Fanout) *Web {
	return &Web{fanout: f}
}

func (w *Web) Capabilities() router.Capabilities {
	return router.Capabilities{RichContent: true, Interactive: true, Images: true, Links: true, MaxLength: 4000}
}

func (w *Web) Validate(c notifications.Content) error {
	return validateLength(c, w.Capabilities())
}

// Process targets metadata["channelKey"] when set and the user key of
// metadata["siteId"] otherwise.
func (w *Web) Process(ctx context.Context, p router.Payload) (router.Receipt, error) {
	key := metaString(p.Metadata, MetaChannelKey)
	if key == "" {
		site := metaString(p.Metadata, MetaSiteID)
		if site == "" || p.UserID == "" {
			return router.Receipt{}, fmt.Errorf("%w: siteId and userId are required", ErrMissingRecipient)
		}
		key = broadcast.UserKey(site, p.UserID)
	}

	data := p
	data.Metadata = nil
	res := w.fanout.SendToChannel(ctx, key, broadcast.Frame{
		ID:    p.NotificationID,
		Event: EventNotification,
		Data:  data,
	})
	if res.Sent == 0 {
		return router.Receipt{}, fmt.Errorf("%w: %s (failed %d)", ErrNoLiveConnections, key, res.Failed)
	}
	return router.Receipt{
		MessageID: p.NotificationID,
		Details:   map[string]any{"channelKey": key, "sent": res.Sent, "failed": res.Failed},
	}, nil
}
