package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrymomot/pulse/pkg/notifications"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu           sync.RWMutex
	records      map[string]Record
	interactions []Interaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func recordKey(notificationID, connectionID string) string {
	return notificationID + ":" + connectionID
}

func (s *MemoryStore) Insert(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(r)
}

func (s *MemoryStore) insertLocked(r Record) error {
	key := recordKey(r.NotificationID, r.ConnectionID)
	if _, ok := s.records[key]; ok {
		return ErrDuplicateRecord
	}
	s.records[key] = r
	return nil
}

func (s *MemoryStore) InsertBatch(_ context.Context, rs []Record) ([]error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	errs := make([]error, len(rs))
	for i, r := range rs {
		errs[i] = s.insertLocked(r)
	}
	return errs, nil
}

func (s *MemoryStore) Get(_ context.Context, notificationID, connectionID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[recordKey(notificationID, connectionID)]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return r, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, u StatusUpdate) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey(u.NotificationID, u.ConnectionID)
	r, ok := s.records[key]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	if r.Status != u.From {
		return Record{}, ErrStatusConflict
	}
	at := u.At
	r.Status = u.To
	r.Metadata = u.Metadata
	r.UpdatedAt = &at
	s.records[key] = r
	return r, nil
}

func (s *MemoryStore) CountByNotification(_ context.Context, notificationID string) ([]StatusCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type group struct {
		status  notifications.DeliveryStatus
		channel notifications.Channel
	}
	counts := make(map[group]int)
	var order []group
	for _, r := range s.records {
		if r.NotificationID != notificationID {
			continue
		}
		g := group{r.Status, r.Channel}
		if _, ok := counts[g]; !ok {
			order = append(order, g)
		}
		counts[g]++
	}
	out := make([]StatusCount, 0, len(order))
	for _, g := range order {
		out = append(out, StatusCount{Status: g.status, Channel: g.channel, Count: counts[g]})
	}
	return out, nil
}

func (s *MemoryStore) CountByChannel(_ context.Context, channel notifications.Channel, since time.Time) (map[notifications.DeliveryStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[notifications.DeliveryStatus]int)
	for _, r := range s.records {
		if r.Channel == channel && !r.Timestamp.Before(since) {
			out[r.Status]++
		}
	}
	return out, nil
}

func (s *MemoryStore) InsertInteraction(_ context.Context, i Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions = append(s.interactions, i)
	return nil
}

// Interactions returns the interactions recorded for a notification.
func (s *MemoryStore) Interactions(notificationID string) []Interaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Interaction
	for _, i := range s.interactions {
		if i.NotificationID == notificationID {
			out = append(out, i)
		}
	}
	return out
}

func (s *MemoryStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key, r := range s.records {
		if r.Timestamp.Before(cutoff) {
			delete(s.records, key)
			n++
		}
	}
	kept := s.interactions[:0]
	for _, i := range s.interactions {
		if !i.Timestamp.Before(cutoff) {
			kept = append(kept, i)
		}
	}
	s.interactions = kept
	return n, nil
}
