package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/pulse/pkg/events"
	"github.com/dmitrymomot/pulse/pkg/logger"
	"github.com/dmitrymomot/pulse/pkg/metrics"
	"github.com/dmitrymomot/pulse/pkg/notifications"
	"github.com/dmitrymomot/pulse/pkg/scheduler"
)

const defaultCacheTTL = 5 * time.Minute

// Ledger records delivery outcomes and enforces the status state machine.
type Ledger struct {
	store    Store
	cache    Cache
	cacheTTL time.Duration
	events   events.Publisher
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
	locks    recordLocks

	// purgedBefore is the latest Cleanup cutoff in unix nanoseconds.
	// Cached records older than it are stale.
	purgedBefore atomic.Int64
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithCache(c Cache) Option {
	return func(l *Ledger) {
		if c != nil {
			l.cache = c
		}
	}
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(l *Ledger) {
		if ttl > 0 {
			l.cacheTTL = ttl
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(l *Ledger) {
		if p != nil {
			l.events = p
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

func New(store Store, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	l := &Ledger{
		store:    store,
		cache:    NewMemoryCache(10000),
		cacheTTL: defaultCacheTTL,
		events:   events.Discard,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func validateDelivery(d Delivery) error {
	switch {
	case d.NotificationID == "":
		return notifications.Required("notificationId")
	case d.ConnectionID == "":
		return notifications.Required("connectionId")
	case d.Channel == "":
		return notifications.Required("channel")
	case d.Status == "":
		return notifications.Required("status")
	case !d.Status.Valid():
		return notifications.ValidationError{Field: "status", Reason: "unknown status " + string(d.Status)}
	}
	return nil
}

func (l *Ledger) newRecord(d Delivery) Record {
	return Record{
		ID:             notifications.NewID(),
		NotificationID: d.NotificationID,
		ConnectionID:   d.ConnectionID,
		Channel:        d.Channel,
		Status:         d.Status,
		Metadata:       d.Metadata,
		Error:          d.Error,
		Timestamp:      l.now().UTC(),
	}
}

// Record persists a new delivery record.
func (l *Ledger) Record(ctx context.Context, d Delivery) (Record, error) {
	if err := validateDelivery(d); err != nil {
		return Record{}, err
	}
	r := l.newRecord(d)
	if err := l.store.Insert(ctx, r); err != nil {
		return Record{}, err
	}
	l.afterWrite(ctx, r)
	return r, nil
}

// afterWrite refreshes the cache, counts the write and emits notification.<status>.
func (l *Ledger) afterWrite(ctx context.Context, r Record) {
	l.cacheSet(ctx, r)
	l.metrics.DeliveryRecorded(string(r.Channel), string(r.Status))

	payload := events.Payload{
		"notificationId": r.NotificationID,
		"connectionId":   r.ConnectionID,
		"channel":        r.Channel,
		"status":         r.Status,
		"timestamp":      r.Timestamp,
	}
	if r.Error != "" {
		payload["error"] = r.Error
	}
	if r.UpdatedAt != nil {
		payload["updatedAt"] = *r.UpdatedAt
	}
	events.Emit(ctx, l.events, l.log, events.StatusEvent(r.Status), payload)
}

func (l *Ledger) cacheSet(ctx context.Context, r Record) {
	if err := l.cache.Set(ctx, cacheKey(r.NotificationID, r.ConnectionID), r, l.cacheTTL); err != nil {
		l.log.LogAttrs(ctx, slog.LevelWarn, "failed to cache delivery record",
			logger.Component("ledger"),
			logger.NotificationID(r.NotificationID),
			logger.ConnectionID(r.ConnectionID),
			logger.Error(err),
		)
	}
}

// load reads through the cache and reports whether the record came from it.
func (l *Ledger) load(ctx context.Context, notificationID, connectionID string) (Record, bool, error) {
	key := cacheKey(notificationID, connectionID)
	r, ok, err := l.cache.Get(ctx, key)
	if err != nil {
		l.log.LogAttrs(ctx, slog.LevelWarn, "delivery cache read failed",
			logger.Component("ledger"),
			logger.NotificationID(notificationID),
			logger.Error(err),
		)
	}
	if ok && l.purged(r) {
		if err := l.cache.Delete(ctx, key); err != nil {
			l.log.LogAttrs(ctx, slog.LevelWarn, "failed to evict purged delivery record",
				logger.Component("ledger"),
				logger.NotificationID(notificationID),
				logger.Error(err),
			)
		}
		ok = false
	}
	if ok {
		return r, true, nil
	}
	r, err = l.loadFromStore(ctx, notificationID, connectionID)
	return r, false, err
}

func (l *Ledger) purged(r Record) bool {
	cutoff := l.purgedBefore.Load()
	return cutoff != 0 && r.Timestamp.UnixNano() < cutoff
}

func (l *Ledger) loadFromStore(ctx context.Context, notificationID, connectionID string) (Record, error) {
	r, err := l.store.Get(ctx, notificationID, connectionID)
	if errors.Is(err, ErrRecordNotFound) {
		return Record{}, notifications.NotFoundError{Kind: "delivery record", ID: notificationID + "/" + connectionID}
	}
	if err != nil {
		return Record{}, err
	}
	l.cacheSet(ctx, r)
	return r, nil
}

// Get returns the current record of a pair.
func (l *Ledger) Get(ctx context.Context, notificationID, connectionID string) (Record, error) {
	if notificationID == "" {
		return Record{}, notifications.Required("notificationId")
	}
	if connectionID == "" {
		return Record{}, notifications.Required("connectionId")
	}
	r, _, err := l.load(ctx, notificationID, connectionID)
	return r, err
}

// UpdateStatus moves a record to status. Metadata keys are merged over the
// stored ones. Updates for the same pair are serialized.
func (l *Ledger) UpdateStatus(ctx context.Context, notificationID, connectionID string, status notifications.DeliveryStatus, metadata map[string]any) (Record, error) {
	switch {
	case notificationID == "":
		return Record{}, notifications.Required("notificationId")
	case connectionID == "":
		return Record{}, notifications.Required("connectionId")
	case status == "":
		return Record{}, notifications.Required("status")
	}

	mu := l.locks.get(recordKey(notificationID, connectionID))
	mu.Lock()
	defer mu.Unlock()

	current, cached, err := l.load(ctx, notificationID, connectionID)
	if err != nil {
		return Record{}, err
	}

	updated, err := l.applyStatus(ctx, current, status, metadata)
	if errors.Is(err, ErrStatusConflict) || (cached && errors.Is(err, notifications.ErrInvalidTransition)) {
		// The cached copy may lag the store. Re-check against the store once.
		_ = l.cache.Delete(ctx, cacheKey(notificationID, connectionID))
		if current, err = l.loadFromStore(ctx, notificationID, connectionID); err != nil {
			return Record{}, err
		}
		updated, err = l.applyStatus(ctx, current, status, metadata)
	}
	if errors.Is(err, ErrStatusConflict) {
		return Record{}, notifications.InvalidTransitionError{From: current.Status, To: status}
	}
	if err != nil {
		return Record{}, err
	}

	l.afterWrite(ctx, updated)
	return updated, nil
}

func (l *Ledger) applyStatus(ctx context.Context, current Record, status notifications.DeliveryStatus, metadata map[string]any) (Record, error) {
	if err := current.Status.Transition(status); err != nil {
		return Record{}, err
	}
	r, err := l.store.UpdateStatus(ctx, StatusUpdate{
		NotificationID: current.NotificationID,
		ConnectionID:   current.ConnectionID,
		From:           current.Status,
		To:             status,
		Metadata:       mergeMetadata(current.Metadata, metadata),
		At:             l.now().UTC(),
	})
	if errors.Is(err, ErrRecordNotFound) {
		return Record{}, notifications.NotFoundError{Kind: "delivery record", ID: current.NotificationID + "/" + current.ConnectionID}
	}
	return r, err
}

// Stats aggregates the records of one notification. Rates are ratios of
// current-status counts: delivered/sent, read/delivered, clicked/read.
func (l *Ledger) Stats(ctx context.Context, notificationID string) (Stats, error) {
	if notificationID == "" {
		return Stats{}, notifications.Required("notificationId")
	}
	counts, err := l.store.CountByNotification(ctx, notificationID)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{
		NotificationID: notificationID,
		ByStatus:       make(map[notifications.DeliveryStatus]int),
		ByChannel:      make(map[notifications.Channel]map[notifications.DeliveryStatus]int),
	}
	for _, c := range counts {
		st.Total += c.Count
		st.ByStatus[c.Status] += c.Count
		ch, ok := st.ByChannel[c.Channel]
		if !ok {
			ch = make(map[notifications.DeliveryStatus]int)
			st.ByChannel[c.Channel] = ch
		}
		ch[c.Status] += c.Count
	}

	sent := st.ByStatus[notifications.StatusSent]
	delivered := st.ByStatus[notifications.StatusDelivered]
	read := st.ByStatus[notifications.StatusRead]
	clicked := st.ByStatus[notifications.StatusClicked]
	st.DeliveryRate = percent(delivered, sent)
	st.OpenRate = percent(read, delivered)
	st.ClickRate = percent(clicked, read)
	return st, nil
}

// ChannelRate reports delivered/(sent+delivered+failed) over the trailing window.
func (l *Ledger) ChannelRate(ctx context.Context, channel notifications.Channel, window time.Duration) (ChannelRate, error) {
	if channel == "" {
		return ChannelRate{}, notifications.Required("channel")
	}
	if window <= 0 {
		return ChannelRate{}, notifications.ValidationError{Field: "window", Reason: "must be positive"}
	}
	counts, err := l.store.CountByChannel(ctx, channel, l.now().Add(-window))
	if err != nil {
		return ChannelRate{}, err
	}
	rate := ChannelRate{
		Channel:   channel,
		Window:    window,
		Sent:      counts[notifications.StatusSent],
		Delivered: counts[notifications.StatusDelivered],
		Failed:    counts[notifications.StatusFailed],
	}
	rate.DeliveryRate = percent(rate.Delivered, rate.Sent+rate.Delivered+rate.Failed)
	return rate, nil
}

// TrackInteraction appends an interaction. A click also advances the record
// to clicked; the transition error, if any, is returned with the stored
// interaction.
func (l *Ledger) TrackInteraction(ctx context.Context, notificationID, connectionID string, typ InteractionType, metadata map[string]any) (Interaction, error) {
	switch {
	case notificationID == "":
		return Interaction{}, notifications.Required("notificationId")
	case connectionID == "":
		return Interaction{}, notifications.Required("connectionId")
	case typ == "":
		return Interaction{}, notifications.Required("type")
	}

	i := Interaction{
		ID:             notifications.NewID(),
		NotificationID: notificationID,
		ConnectionID:   connectionID,
		Type:           typ,
		Metadata:       metadata,
		Timestamp:      l.now().UTC(),
	}
	if err := l.store.InsertInteraction(ctx, i); err != nil {
		return Interaction{}, err
	}
	events.Emit(ctx, l.events, l.log, events.NotificationInteracted, events.Payload{
		"notificationId": notificationID,
		"connectionId":   connectionID,
		"type":           typ,
		"timestamp":      i.Timestamp,
	})

	if typ == InteractionClick {
		if _, err := l.UpdateStatus(ctx, notificationID, connectionID, notifications.StatusClicked, metadata); err != nil {
			return i, err
		}
	}
	return i, nil
}

// BatchRecord records every delivery independently inside one transaction.
// Invalid or duplicate items are counted as failed and never abort the batch.
func (l *Ledger) BatchRecord(ctx context.Context, ds []Delivery) (BatchResult, error) {
	res := BatchResult{Total: len(ds)}
	records := make([]Record, 0, len(ds))
	index := make([]int, 0, len(ds))

	for i, d := range ds {
		if err := validateDelivery(d); err != nil {
			res.fail(i, d, err)
			continue
		}
		records = append(records, l.newRecord(d))
		index = append(index, i)
	}
	if len(records) == 0 {
		return res, nil
	}

	errs, err := l.store.InsertBatch(ctx, records)
	if err != nil {
		return res, err
	}
	for j, r := range records {
		if errs[j] != nil {
			res.fail(index[j], ds[index[j]], errs[j])
			continue
		}
		res.Successful++
		l.afterWrite(ctx, r)
	}
	return res, nil
}

func (r *BatchResult) fail(i int, d Delivery, err error) {
	r.Failed++
	r.Errors = append(r.Errors, BatchError{
		Index:          i,
		NotificationID: d.NotificationID,
		ConnectionID:   d.ConnectionID,
		Error:          err.Error(),
	})
}

// Cleanup deletes records older than olderThan and returns how many were
// removed. Cached copies of removed records are dropped on their next read.
func (l *Ledger) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, notifications.ValidationError{Field: "olderThan", Reason: "must be positive"}
	}
	cutoff := l.now().Add(-olderThan)
	n, err := l.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for {
		prev := l.purgedBefore.Load()
		if cutoff.UnixNano() <= prev || l.purgedBefore.CompareAndSwap(prev, cutoff.UnixNano()) {
			break
		}
	}
	l.log.LogAttrs(ctx, slog.LevelInfo, "delivery records cleaned up",
		logger.Component("ledger"),
		slog.Int64("deleted", n),
		slog.Duration("older_than", olderThan),
	)
	return n, nil
}

// ScheduleCleanup runs Cleanup every interval until the task is cancelled.
func (l *Ledger) ScheduleCleanup(s scheduler.Scheduler, interval, retention time.Duration) scheduler.Task {
	return s.Every(interval, func() {
		ctx := context.Background()
		if _, err := l.Cleanup(ctx, retention); err != nil {
			l.log.LogAttrs(ctx, slog.LevelError, "delivery record cleanup failed",
				logger.Component("ledger"),
				logger.Error(err),
			)
		}
	})
}
