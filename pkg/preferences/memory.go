package preferences

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/pulse/pkg/notifications"
)

// MemorySource keeps preferences in process memory.
type MemorySource struct {
	mu    sync.RWMutex
	prefs map[string]Preferences
}

func NewMemorySource(seed ...Preferences) *MemorySource {
	s := &MemorySource{prefs: make(map[string]Preferences, len(seed))}
	for _, p := range seed {
		s.prefs[p.UserID] = clone(p)
	}
	return s
}

func (s *MemorySource) Get(_ context.Context, userID string) (*Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prefs[userID]
	if !ok {
		return nil, nil
	}
	c := clone(p)
	return &c, nil
}

func (s *MemorySource) Save(_ context.Context, p Preferences) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.prefs[p.UserID]; ok && p.LastContact == nil {
		p.LastContact = prev.LastContact
	}
	s.prefs[p.UserID] = clone(p)
	return nil
}

// UpdateLastContact creates an empty preference entry for unknown users.
func (s *MemorySource) UpdateLastContact(_ context.Context, userID string, ch notifications.Channel, at time.Time) error {
	if userID == "" {
		return notifications.Required("userId")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prefs[userID]
	if !ok {
		p = Preferences{UserID: userID}
	}
	lc := maps.Clone(p.LastContact)
	if lc == nil {
		lc = make(map[notifications.Channel]time.Time)
	}
	lc[ch] = at
	p.LastContact = lc
	s.prefs[userID] = p
	return nil
}

func clone(p Preferences) Preferences {
	p.Channels = maps.Clone(p.Channels)
	p.PreferredChannels = slices.Clone(p.PreferredChannels)
	p.ChannelPriority = slices.Clone(p.ChannelPriority)
	p.LastContact = maps.Clone(p.LastContact)
	if p.QuietHours != nil {
		q := *p.QuietHours
		p.QuietHours = &q
	}
	return p
}
