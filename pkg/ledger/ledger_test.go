package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/pkg/events"
	"github.com/dmitrymomot/pulse/pkg/ledger"
	"github.com/dmitrymomot/pulse/pkg/metrics"
	"github.com/dmitrymomot/pulse/pkg/notifications"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newLedger(t *testing.T, store ledger.Store, opts ...ledger.Option) (*ledger.Ledger, *events.Recorder, *clock) {
	t.Helper()
	rec := events.NewRecorder()
	clk := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]ledger.Option{ledger.WithPublisher(rec), ledger.WithClock(clk.Now)}, opts...)
	l, err := ledger.New(store, opts...)
	require.NoError(t, err)
	return l, rec, clk
}

func delivery(nid, cid string, ch notifications.Channel, st notifications.DeliveryStatus) ledger.Delivery {
	return ledger.Delivery{NotificationID: nid, ConnectionID: cid, Channel: ch, Status: st}
}

func TestNew_RequiresStore(t *testing.T) {
	t.Parallel()

	_, err := ledger.New(nil)
	assert.ErrorIs(t, err, ledger.ErrStoreRequired)
}

func TestLedger_Record(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	l, rec, clk := newLedger(t, ledger.NewMemoryStore(), ledger.WithMetrics(metrics.New(reg)))
	ctx := context.Background()

	r, err := l.Record(ctx, delivery("n1", "c1", notifications.ChannelWeb, notifications.StatusSent))
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, clk.Now(), r.Timestamp)
	assert.Nil(t, r.UpdatedAt)

	sent := rec.Named("notification.sent")
	require.Len(t, sent, 1)
	assert.Equal(t, "n1", sent[0].Payload["notificationId"])

	n, err := testutil.GatherAndCount(reg, "pulse_delivery_records_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = l.Record(ctx, delivery("n1", "c1", notifications.ChannelWeb, notifications.StatusSent))
	assert.ErrorIs(t, err, ledger.ErrDuplicateRecord)
}

func TestLedger_RecordValidation(t *testing.T) {
	t.Parallel()

	l, rec, _ := newLedger(t, ledger.NewMemoryStore())

	tests := []struct {
		name  string
		in    ledger.Delivery
		field string
	}{
		{"notification id", delivery("", "c1", notifications.ChannelWeb, notifications.StatusSent), "notificationId"},
		{"connection id", delivery("n1", "", notifications.ChannelWeb, notifications.StatusSent), "connectionId"},
		{"channel", delivery("n1", "c1", "", notifications.StatusSent), "channel"},
		{"status", delivery("n1", "c1", notifications.ChannelWeb, ""), "status"},
		{"unknown status", delivery("n1", "c1", notifications.ChannelWeb, "bounced"), "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Record(context.Background(), tt.in)
			require.ErrorIs(t, err, notifications.ErrValidation)
			var verr notifications.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
	assert.Empty(t, rec.Events())
}

func TestLedger_UpdateStatus(t *testing.T) {
	t.Parallel()

	l, rec, clk := newLedger(t, ledger.NewMemoryStore())
	ctx := context.Background()

	_, err := l.Record(ctx, ledger.Delivery{
		NotificationID: "n1", ConnectionID: "c1",
		Channel: notifications.ChannelWeb, Status: notifications.StatusSent,
		Metadata: map[string]any{"ip": "10.0.0.1"},
	})
	require.NoError(t, err)

	clk.Advance(time.Minute)
	r, err := l.UpdateStatus(ctx, "n1", "c1", notifications.StatusDelivered, map[string]any{"userAgent": "test"})
	require.NoError(t, err)
	assert.Equal(t, notifications.StatusDelivered, r.Status)
	require.NotNil(t, r.UpdatedAt)
	assert.Equal(t, clk.Now(), *r.UpdatedAt)
	assert.Equal(t, map[string]any{"ip": "10.0.0.1", "userAgent": "test"}, r.Metadata)
	assert.Len(t, rec.Named("notification.delivered"), 1)

	_, err = l.UpdateStatus(ctx, "n1", "c1", notifications.StatusClicked, nil)
	require.NoError(t, err)

	_, err = l.UpdateStatus(ctx, "n1", "c1", notifications.StatusSent, nil)
	require.ErrorIs(t, err, notifications.ErrInvalidTransition)
	assert.Equal(t, "invalid transition from clicked to sent", err.Error())

	got, err := l.Get(ctx, "n1", "c1")
	require.NoError(t, err)
	assert.Equal(t, notifications.StatusClicked, got.Status)
}

func TestLedger_UpdateStatusNotFound(t *testing.T) {
	t.Parallel()

	l, _, _ := newLedger(t, ledger.NewMemoryStore())
	_, err := l.UpdateStatus(context.Background(), "n1", "missing", notifications.StatusDelivered, nil)
	assert.ErrorIs(t, err, notifications.ErrNotFound)

	_, err = l.UpdateStatus(context.Background(), "", "c1", notifications.StatusDelivered, nil)
	assert.ErrorIs(t, err, notifications.ErrValidation)
}

func TestLedger_UpdateStatusStaleCache(t *testing.T) {
	t.Parallel()

	store := ledger.NewMemoryStore()
	a, _, _ := newLedger(t, store)
	b, _, _ := newLedger(t, store)
	ctx := context.Background()

	_, err := a.Record(ctx, delivery("n1", "c1", notifications.ChannelWeb, notifications.StatusSent))
	require.NoError(t, err)

	// b moves the record forward; a's cache still says sent.
	_, err = b.UpdateStatus(ctx, "n1", "c1", notifications.StatusDelivered, nil)
	require.NoError(t, err)

	r, err := a.UpdateStatus(ctx, "n1", "c1", notifications.StatusRead, nil)
	require.NoError(t, err)
	assert.Equal(t, notifications.StatusRead, r.Status)
}

func TestLedger_ConcurrentUpdatesNeverRegress(t *testing.T) {
	t.Parallel()

	l, _, _ := newLedger(t, ledger.NewMemoryStore())
	ctx := context.Background()
	_, err := l.Record(ctx, delivery("n1", "c1", notifications.ChannelWeb, notifications.StatusSent))
	require.NoError(t, err)

	targets := []notifications.DeliveryStatus{
		notifications.StatusDelivered, notifications.StatusRead,
		notifications.StatusClicked, notifications.StatusFailed,
	}
	var wg sync.WaitGroup
	for i := range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.UpdateStatus(ctx, "n1", "c1", targets[i%len(targets)], nil)
		}()
	}
	wg.Wait()

	r, err := l.Get(ctx, "n1", "c1")
	require.NoError(t, err)
	assert.NotEqual(t, notifications.StatusSent, r.Status)
}

func TestLedger_Stats(t *testing.T) {
	t.Parallel()

	l, _, _ := newLedger(t, ledger.NewMemoryStore())
	ctx := context.Background()

	seed := []ledger.Delivery{
		delivery("n1", "c1", notifications.ChannelWeb, notifications.StatusSent),
		delivery("n1", "c2", notifications.ChannelWeb, notifications.StatusSent),
		delivery("n1", "c3", notifications.ChannelWeb, notifications.StatusSent),
		delivery("n1", "c4", notifications.ChannelWeb, notifications.StatusSent),
		delivery("n1", "c5", notifications.ChannelEmail, notifications.StatusDelivered),
		delivery("n1", "c6", notifications.ChannelEmail, notifications.StatusDelivered),
		delivery("n1", "c7", notifications.ChannelEmail, notifications.StatusRead),
		delivery("n1", "c8", notifications.ChannelEmail, notifications.StatusFailed),
		delivery("n2", "c1", notifications.ChannelWeb, notifications.StatusDelivered),
	}
	for _, d := range seed {
		_, err := l.Record(ctx, d)
		require.NoError(t, err)
	}

	st, err := l.Stats(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, 8, st.Total)
	assert.Equal(t, 4, st.ByStatus[notifications.StatusSent])
	assert.Equal(t, 2, st.ByStatus[notifications.StatusDelivered])
	assert.Equal(t, 4, st.ByChannel[notifications.ChannelWeb][notifications.StatusSent])
	assert.Equal(t, 1, st.ByChannel[notifications.ChannelEmail][notifications.StatusFailed])
	assert.InDelta(t, 50.0, st.DeliveryRate, 0.001)
	assert.InDelta(t, 50.0, st.OpenRate, 0.001)
	assert.InDelta(t, 0.0, st.ClickRate, 0.001)

	again, err := l.Stats(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, st, again)

	empty, err := l.Stats(ctx, "unknown")
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Zero(t, empty.DeliveryRate)
}

func TestLedger_ChannelRate(t *testing.T) {
	t.Parallel()

	l, _, clk := newLedger(t, ledger.NewMemoryStore())
	ctx := context.Background()

	_, err := l.Record(ctx, delivery("old", "c1", notifications.ChannelPush, notifications.StatusFailed))
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	for i, st := range []notifications.DeliveryStatus{
		notifications.StatusSent,
		notifications.StatusDelivered,
		notifications.StatusDelivered,
		notifications.StatusDelivered,
		notifications.StatusFailed,
	} {
		_, err := l.Record(ctx, delivery("n1", string(rune('a'+i)), notifications.ChannelPush, st))
		require.NoError(t, err)
	}

	rate, err := l.ChannelRate(ctx, notifications.ChannelPush, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, rate.Sent)
	assert.Equal(t, 3, rate.Delivered)
	assert.Equal(t, 1, rate.Failed)
	assert.InDelta(t, 60.0, rate.DeliveryRate, 0.001)

	none, err := l.ChannelRate(ctx, notifications.ChannelSMS, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, none.DeliveryRate)

	_, err = l.ChannelRate(ctx, notifications.ChannelPush, 0)
	assert.ErrorIs(t, err, notifications.ErrValidation)
}

func TestLedger_TrackInteraction(t *testing.T) {
	t.Parallel()

	store := ledger.NewMemoryStore()
	l, rec, _ := newLedger(t, store)
	ctx := context.Background()

	_, err := l.Record(ctx, delivery("n1", "c1", notifications.ChannelWeb, notifications.StatusDelivered))
	require.NoError(t, err)

	_, err = l.TrackInteraction(ctx, "n1", "c1", ledger.InteractionView, nil)
	require.NoError(t, err)
	r, err := l.Get(ctx, "n1", "c1")
	require.NoError(t, err)
	assert.Equal(t, notifications.StatusDelivered, r.Status)

	_, err = l.TrackInteraction(ctx, "n1", "c1", ledger.InteractionClick, map[string]any{"ip": "1.2.3.4"})
	require.NoError(t, err)
	r, err = l.Get(ctx, "n1", "c1")
	require.NoError(t, err)
	assert.Equal(t, notifications.StatusClicked, r.Status)
	assert.Equal(t, "1.2.3.4", r.Metadata["ip"])

	assert.Len(t, store.Interactions("n1"), 2)
	assert.Len(t, rec.Named(events.NotificationInteracted), 2)
	assert.Len(t, rec.Named("notification.clicked"), 1)

	// a click on a record that cannot move to clicked still stores the interaction
	_, err = l.Record(ctx, delivery("n2", "c1", notifications.ChannelWeb, notifications.StatusFailed))
	require.NoError(t, err)
	_, err = l.TrackInteraction(ctx, "n2", "c1", ledger.InteractionClick, nil)
	assert.ErrorIs(t, err, notifications.ErrInvalidTransition)
	assert.Len(t, store.Interactions("n2"), 1)
}

func TestLedger_BatchRecord(t *testing.T) {
	t.Parallel()

	l, rec, _ := newLedger(t, ledger.NewMemoryStore())
	ctx := context.Background()

	_, err := l.Record(ctx, delivery("n1", "dup", notifications.ChannelWeb, notifications.StatusSent))
	require.NoError(t, err)
	rec.Reset()

	res, err := l.BatchRecord(ctx, []ledger.Delivery{
		delivery("n1", "c1", notifications.ChannelWeb, notifications.StatusSent),
		delivery("n1", "", notifications.ChannelWeb, notifications.StatusSent),
		delivery("n1", "dup", notifications.ChannelWeb, notifications.StatusSent),
		delivery("n1", "c2", notifications.ChannelEmail, notifications.StatusDelivered),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 2, res.Successful)
	assert.Equal(t, 2, res.Failed)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, 1, res.Errors[0].Index)
	assert.Equal(t, 2, res.Errors[1].Index)
	assert.Len(t, rec.Events(), 2)
}

func TestLedger_Cleanup(t *testing.T) {
	t.Parallel()

	l, _, clk := newLedger(t, ledger.NewMemoryStore())
	ctx := context.Background()

	_, err := l.Record(ctx, delivery("old", "c1", notifications.ChannelWeb, notifications.StatusSent))
	require.NoError(t, err)
	clk.Advance(48 * time.Hour)
	_, err = l.Record(ctx, delivery("new", "c1", notifications.ChannelWeb, notifications.StatusSent))
	require.NoError(t, err)

	n, err := l.Cleanup(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	st, err := l.Stats(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Total)

	_, err = l.Cleanup(ctx, 0)
	assert.ErrorIs(t, err, notifications.ErrValidation)
}

func TestLedger_CleanupEvictsCachedRecords(t *testing.T) {
	t.Parallel()

	l, _, clk := newLedger(t, ledger.NewMemoryStore())
	ctx := context.Background()

	_, err := l.Record(ctx, delivery("old", "c1", notifications.ChannelWeb, notifications.StatusSent))
	require.NoError(t, err)
	_, err = l.Get(ctx, "old", "c1")
	require.NoError(t, err, "record is cached")

	clk.Advance(48 * time.Hour)
	_, err = l.Record(ctx, delivery("new", "c1", notifications.ChannelWeb, notifications.StatusSent))
	require.NoError(t, err)

	n, err := l.Cleanup(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = l.Get(ctx, "old", "c1")
	assert.ErrorIs(t, err, notifications.ErrNotFound)
	_, err = l.UpdateStatus(ctx, "old", "c1", notifications.StatusDelivered, nil)
	assert.ErrorIs(t, err, notifications.ErrNotFound)

	_, err = l.Get(ctx, "new", "c1")
	assert.NoError(t, err, "newer records stay readable")
}
