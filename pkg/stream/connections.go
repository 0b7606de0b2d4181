package stream

import (
	"context"
	"log/slog"
	"maps"

	"github.com/dmitrymomot/pulse/pkg/broadcast"
	"github.com/dmitrymomot/pulse/pkg/events"
	"github.com/dmitrymomot/pulse/pkg/logger"
	"github.com/dmitrymomot/pulse/pkg/notifications"
	"github.com/dmitrymomot/pulse/pkg/scheduler"
)

// AddConnection starts tracking a connection. Streaming connections join
// the registry under the site key and, with a user, the user key; they are
// pinged every PingInterval and dropped when their handle closes.
func (s *Service) AddConnection(ctx context.Context, p ConnectionParams) (Connection, error) {
	switch {
	case p.ID == "":
		return Connection{}, notifications.Required("id")
	case p.SiteID == "":
		return Connection{}, notifications.Required("siteId")
	case p.SessionID == "":
		return Connection{}, notifications.Required("sessionId")
	case p.Type == "":
		return Connection{}, notifications.Required("type")
	case !p.Type.valid():
		return Connection{}, notifications.ValidationError{Field: "type", Reason: "must be one of sse, websocket, polling"}
	case p.Handle == nil:
		return Connection{}, notifications.Required("handle")
	}

	now := s.sched.Now()
	c := &conn{
		Connection: Connection{
			ID:           p.ID,
			SiteID:       p.SiteID,
			UserID:       p.UserID,
			SessionID:    p.SessionID,
			Type:         p.Type,
			Metadata:     maps.Clone(p.Metadata),
			Active:       true,
			ConnectedAt:  now,
			LastActivity: now,
		},
		handle: p.Handle,
		closed: make(chan struct{}),
	}

	s.mu.Lock()
	if _, exists := s.conns[p.ID]; exists {
		s.mu.Unlock()
		return Connection{}, ErrDuplicateConnection
	}
	s.conns[p.ID] = c
	s.mu.Unlock()

	if p.Type.Streaming() {
		for _, key := range connKeys(c.SiteID, c.UserID) {
			if err := s.registry.Add(key, p.Handle); err != nil {
				s.forget(p.ID)
				for _, k := range connKeys(c.SiteID, c.UserID) {
					s.registry.Remove(k, p.Handle)
				}
				return Connection{}, err
			}
		}
		if s.cfg.PingInterval > 0 {
			task := s.sched.Every(s.cfg.PingInterval, func() { s.ping(p.ID) })
			s.mu.Lock()
			if c.Active {
				c.ping = task
			} else {
				task.Cancel()
			}
			s.mu.Unlock()
		}
	}
	go s.watch(c)

	s.metrics.ConnectionOpened(string(p.Type))
	s.log.LogAttrs(ctx, slog.LevelDebug, "connection established",
		logger.ConnectionID(p.ID), logger.SiteID(p.SiteID), logger.UserID(p.UserID))
	s.emit(ctx, events.ConnectionEstablished, events.Payload{
		"connectionId": p.ID,
		"siteId":       p.SiteID,
		"userId":       p.UserID,
		"sessionId":    p.SessionID,
		"type":         string(p.Type),
	})
	return c.Connection, nil
}

// RemoveConnection stops tracking id and closes its handle.
func (s *Service) RemoveConnection(ctx context.Context, id string) error {
	if id == "" {
		return notifications.Required("id")
	}
	c, ping := s.forget(id)
	if c == nil {
		return notifications.NotFoundError{Kind: "connection", ID: id}
	}

	if ping != nil {
		ping.Cancel()
	}
	close(c.closed)
	if c.Type.Streaming() {
		for _, key := range connKeys(c.SiteID, c.UserID) {
			s.registry.Remove(key, c.handle)
		}
	}
	if closer, ok := c.handle.(interface{ Close() }); ok {
		closer.Close()
	}

	duration := s.sched.Now().Sub(c.ConnectedAt)
	s.metrics.ConnectionClosed(string(c.Type))
	s.log.LogAttrs(ctx, slog.LevelDebug, "connection closed",
		logger.ConnectionID(id), logger.SiteID(c.SiteID), logger.Duration(duration))
	s.emit(ctx, events.ConnectionClosed, events.Payload{
		"connectionId": id,
		"siteId":       c.SiteID,
		"userId":       c.UserID,
		"sessionId":    c.SessionID,
		"durationMs":   duration.Milliseconds(),
	})
	return nil
}

// forget unlinks id and marks it inactive. It returns nil for unknown ids.
func (s *Service) forget(id string) (*conn, scheduler.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[id]
	if !ok {
		return nil, nil
	}
	delete(s.conns, id)
	c.Active = false
	return c, c.ping
}

// watch removes the connection once its transport goes away.
func (s *Service) watch(c *conn) {
	select {
	case <-c.handle.Done():
		_ = s.RemoveConnection(context.Background(), c.ID)
	case <-c.closed:
	}
}

func (s *Service) ping(id string) {
	h, ok := s.handle(id)
	if !ok {
		return
	}
	ctx := context.Background()
	if err := h.Send(ctx, broadcast.PingFrame(s.sched.Now())); err != nil {
		s.log.LogAttrs(ctx, slog.LevelDebug, "ping failed, dropping connection",
			logger.ConnectionID(id), logger.Error(err))
		_ = s.RemoveConnection(ctx, id)
		return
	}
	s.Touch(id)
}

func (s *Service) handle(id string) (broadcast.Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conns[id]
	if !ok || !c.Active {
		return nil, false
	}
	return c.handle, true
}

// Touch marks activity on id. It reports whether id is tracked.
func (s *Service) Touch(id string) bool {
	now := s.sched.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[id]
	if ok {
		c.LastActivity = now
	}
	return ok
}

// Connection returns a snapshot of id.
func (s *Service) Connection(id string) (Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conns[id]
	if !ok {
		return Connection{}, false
	}
	return c.Connection, true
}

// Handle returns the transport handle of id.
func (s *Service) Handle(id string) (broadcast.Handle, bool) {
	return s.handle(id)
}

// ConnectionStats counts connections, optionally limited to siteID.
func (s *Service) ConnectionStats(siteID string) Stats {
	st := Stats{ByType: make(map[ConnectionType]int), BySite: make(map[string]int)}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conns {
		if siteID != "" && c.SiteID != siteID {
			continue
		}
		st.Total++
		if c.Active {
			st.Active++
		}
		st.ByType[c.Type]++
		st.BySite[c.SiteID]++
	}
	return st
}

// CleanupInactiveConnections removes connections idle for longer than
// IdleTimeout and returns how many were removed.
func (s *Service) CleanupInactiveConnections(ctx context.Context) int {
	cutoff := s.sched.Now().Add(-s.cfg.IdleTimeout)

	s.mu.RLock()
	var stale []string
	for id, c := range s.conns {
		if c.LastActivity.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	removed := 0
	for _, id := range stale {
		if s.RemoveConnection(ctx, id) == nil {
			removed++
		}
	}

	if removed > 0 {
		s.log.LogAttrs(ctx, slog.LevelInfo, "removed idle connections", logger.Count("removed", removed))
	}
	s.emit(ctx, events.ConnectionsCleanup, events.Payload{
		"removed":   removed,
		"remaining": s.ConnectionStats("").Total,
	})
	return removed
}

// CloseAll removes every connection. Used on shutdown so stream handlers
// return.
func (s *Service) CloseAll(ctx context.Context) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.conns))
	for id := range s.conns {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	for _, id := range ids {
		_ = s.RemoveConnection(ctx, id)
	}
}

// activeConnections snapshots the active connections of siteID that pass
// keep.
func (s *Service) activeConnections(siteID string, keep func(*conn) bool) []Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Connection
	for _, c := range s.conns {
		if !c.Active || c.SiteID != siteID {
			continue
		}
		if keep == nil || keep(c) {
			out = append(out, c.Connection)
		}
	}
	return out
}

func connKeys(siteID, userID string) []string {
	if userID == "" {
		return []string{broadcast.SiteKey(siteID)}
	}
	return []string{broadcast.SiteKey(siteID), broadcast.UserKey(siteID, userID)}
}
