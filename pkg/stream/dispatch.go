package stream

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/dmitrymomot/pulse/pkg/broadcast"
	"github.com/dmitrymomot/pulse/pkg/events"
	"github.com/dmitrymomot/pulse/pkg/ledger"
	"github.com/dmitrymomot/pulse/pkg/logger"
	"github.com/dmitrymomot/pulse/pkg/notifications"
	"github.com/dmitrymomot/pulse/pkg/ratelimit"
)

// SendNotification accepts a notification for a site. It is rate limited
// per site with the priority-scaled SiteBaseLimit. High and urgent
// notifications are dispatched before SendNotification returns.
func (s *Service) SendNotification(ctx context.Context, p SendParams) (notifications.Notification, error) {
	switch {
	case p.SiteID == "":
		return notifications.Notification{}, notifications.Required("siteId")
	case p.Content.Message == "":
		return notifications.Notification{}, notifications.Required("message")
	case p.Type == "":
		return notifications.Notification{}, notifications.Required("type")
	}
	priority, err := notifications.ParsePriority(string(p.Priority))
	if err != nil {
		return notifications.Notification{}, err
	}

	key := broadcast.SiteKey(p.SiteID)
	limit := priority.ScaleLimit(s.cfg.SiteBaseLimit)
	slot, err := s.admit(ctx, key, limit)
	if err != nil {
		return notifications.Notification{}, err
	}

	n := notifications.Notification{
		ID:             notifications.NewID(),
		SiteID:         p.SiteID,
		Type:           p.Type,
		Content:        p.Content,
		Metadata:       maps.Clone(p.Metadata),
		Priority:       priority,
		TargetUsers:    slices.Clone(p.TargetUsers),
		TargetSessions: slices.Clone(p.TargetSessions),
		CreatedAt:      s.sched.Now(),
	}
	s.remember(n)

	critical := priority.IsCritical()
	if critical {
		s.claim(n.ID)
	}
	select {
	case s.queue <- n:
		s.metrics.QueueDepth(len(s.queue))
	default:
		if !critical {
			s.unadmit(ctx, slot)
			return notifications.Notification{}, ErrQueueFull
		}
		s.release(n.ID)
		s.log.LogAttrs(ctx, slog.LevelWarn, "queue full, dispatching inline only", logger.NotificationID(n.ID))
	}

	s.emit(ctx, events.NotificationQueued, events.Payload{
		"notificationId": n.ID,
		"siteId":         n.SiteID,
		"type":           n.Type,
		"priority":       string(n.Priority),
	})

	if critical {
		if _, err := s.ProcessNotification(ctx, n); err != nil {
			s.log.LogAttrs(ctx, slog.LevelError, "inline dispatch failed",
				logger.NotificationID(n.ID), logger.Error(err))
		}
	}
	return n, nil
}

// admit takes a slot from the site limiter. Store faults let the send
// through without a slot.
func (s *Service) admit(ctx context.Context, key string, limit int) (ratelimit.Reservation, error) {
	res, err := s.limiter.Allow(ctx, key, limit)
	if err != nil {
		s.log.LogAttrs(ctx, slog.LevelError, "site rate limiter unavailable, admitting",
			slog.String("key", key), logger.Error(err))
		return ratelimit.Reservation{}, nil
	}
	if !res.Allowed {
		return res, notifications.RateLimitError{Key: key, Limit: limit}
	}
	return res, nil
}

// unadmit returns a slot for a send that was never queued.
func (s *Service) unadmit(ctx context.Context, slot ratelimit.Reservation) {
	if err := s.limiter.Cancel(ctx, slot); err != nil {
		s.log.LogAttrs(ctx, slog.LevelWarn, "failed to release site slot",
			slog.String("key", slot.Key), logger.Error(err))
	}
}

// ProcessNotification delivers n to its target connections and records
// each outcome in the ledger under the web channel.
func (s *Service) ProcessNotification(ctx context.Context, n notifications.Notification) (ProcessResult, error) {
	if n.ID == "" {
		return ProcessResult{}, notifications.Required("id")
	}
	if n.SiteID == "" {
		return ProcessResult{}, notifications.Required("siteId")
	}

	targets := s.activeConnections(n.SiteID, targetFilter(n))
	if len(targets) == 0 {
		s.emit(ctx, events.NotificationNoTargets, events.Payload{
			"notificationId": n.ID,
			"siteId":         n.SiteID,
		})
		return ProcessResult{}, nil
	}

	var (
		mu  sync.Mutex
		res ProcessResult
		wg  sync.WaitGroup
	)
	for _, c := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome := s.deliverAndRecord(ctx, n, c, n.Priority.IsCritical())
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeDelivered:
				res.Delivered++
			case outcomeRetrying:
				res.Retrying++
			default:
				res.Failed++
			}
		}()
	}
	wg.Wait()

	s.emit(ctx, events.NotificationDelivered, events.Payload{
		"notificationId": n.ID,
		"siteId":         n.SiteID,
		"targets":        len(targets),
		"delivered":      res.Delivered,
		"failed":         res.Failed,
		"retrying":       res.Retrying,
	})
	return res, nil
}

type outcome int

const (
	outcomeDelivered outcome = iota
	outcomeFailed
	outcomeRetrying
)

// deliverAndRecord sends n to one connection. With retry set a failure
// schedules one retry after RetryDelay instead of being recorded.
func (s *Service) deliverAndRecord(ctx context.Context, n notifications.Notification, c Connection, retry bool) outcome {
	err := s.DeliverToConnection(ctx, n, c.ID)
	if err == nil {
		s.metrics.StreamDelivery("delivered")
		s.record(ctx, n, c, notifications.StatusDelivered, nil)
		return outcomeDelivered
	}

	if retry {
		s.metrics.StreamDelivery("retrying")
		rctx := context.WithoutCancel(ctx)
		s.sched.After(s.cfg.RetryDelay, func() {
			s.deliverAndRecord(rctx, n, c, false)
		})
		s.emit(ctx, events.NotificationRetry, events.Payload{
			"notificationId": n.ID,
			"connectionId":   c.ID,
			"delayMs":        s.cfg.RetryDelay.Milliseconds(),
			"error":          err.Error(),
		})
		return outcomeRetrying
	}

	s.metrics.StreamDelivery("failed")
	s.record(ctx, n, c, notifications.StatusFailed, err)
	return outcomeFailed
}

func (s *Service) record(ctx context.Context, n notifications.Notification, c Connection, status notifications.DeliveryStatus, cause error) {
	d := ledger.Delivery{
		NotificationID: n.ID,
		ConnectionID:   c.ID,
		Channel:        notifications.ChannelWeb,
		Status:         status,
		Metadata: map[string]any{
			"siteId":   n.SiteID,
			"type":     n.Type,
			"priority": string(n.Priority),
		},
	}
	if c.UserID != "" {
		d.Metadata["userId"] = c.UserID
	}
	if cause != nil {
		d.Error = cause.Error()
	}
	if _, err := s.ledger.Record(ctx, d); err != nil {
		s.log.LogAttrs(ctx, slog.LevelError, "failed to record delivery",
			logger.NotificationID(n.ID), logger.ConnectionID(c.ID), logger.Error(err))
	}
}

// DeliverToConnection writes n to one active connection and marks it
// active on success.
func (s *Service) DeliverToConnection(ctx context.Context, n notifications.Notification, connID string) error {
	s.mu.RLock()
	c, ok := s.conns[connID]
	var h broadcast.Handle
	active := false
	if ok {
		h, active = c.handle, c.Active
	}
	s.mu.RUnlock()

	if !ok {
		return notifications.NotFoundError{Kind: "connection", ID: connID}
	}
	if !active {
		return ErrConnectionInactive
	}
	if err := h.Send(ctx, Frame(n)); err != nil {
		var closed broadcast.ErrHandleClosed
		if errors.As(err, &closed) {
			return errors.Join(ErrConnectionInactive, err)
		}
		return err
	}
	s.Touch(connID)
	return nil
}

// BroadcastToSite writes n to every active connection of siteID, ignoring
// targeting. It bypasses the rate limiter and the ledger.
func (s *Service) BroadcastToSite(ctx context.Context, siteID string, n notifications.Notification) (BroadcastResult, error) {
	if siteID == "" {
		return BroadcastResult{}, notifications.Required("siteId")
	}
	if n.ID == "" {
		n.ID = notifications.NewID()
	}
	if n.Priority == "" {
		n.Priority = notifications.PriorityNormal
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.sched.Now()
	}
	n.SiteID = siteID

	var res BroadcastResult
	for _, c := range s.activeConnections(siteID, nil) {
		if err := s.DeliverToConnection(ctx, n, c.ID); err != nil {
			s.log.LogAttrs(ctx, slog.LevelDebug, "broadcast delivery failed",
				logger.ConnectionID(c.ID), logger.Error(err))
			res.Failed++
			continue
		}
		res.Delivered++
	}
	return res, nil
}

func targetFilter(n notifications.Notification) func(*conn) bool {
	switch {
	case len(n.TargetUsers) > 0:
		return func(c *conn) bool { return c.UserID != "" && slices.Contains(n.TargetUsers, c.UserID) }
	case len(n.TargetSessions) > 0:
		return func(c *conn) bool { return slices.Contains(n.TargetSessions, c.SessionID) }
	default:
		return nil
	}
}
