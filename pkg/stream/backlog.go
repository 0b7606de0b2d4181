package stream

import (
	"slices"

	"github.com/dmitrymomot/pulse/pkg/notifications"
)

func (s *Service) remember(n notifications.Notification) {
	size := s.cfg.BacklogSize
	if size <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.backlog[n.SiteID], n)
	if len(list) > size {
		list = slices.Clone(list[len(list)-size:])
	}
	s.backlog[n.SiteID] = list
}

// Backlog returns the recent notifications of siteID that a connection of
// userID/sessionID would have received, oldest first.
func (s *Service) Backlog(siteID, userID, sessionID string) []notifications.Notification {
	s.mu.RLock()
	list := slices.Clone(s.backlog[siteID])
	s.mu.RUnlock()

	probe := &conn{Connection: Connection{UserID: userID, SessionID: sessionID}}
	out := list[:0]
	for _, n := range list {
		if keep := targetFilter(n); keep == nil || keep(probe) {
			out = append(out, n)
		}
	}
	return out
}
