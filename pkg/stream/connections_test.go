package stream_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/pkg/broadcast"
	"github.com/dmitrymomot/pulse/pkg/events"
	"github.com/dmitrymomot/pulse/pkg/notifications"
	"github.com/dmitrymomot/pulse/pkg/stream"
)

func TestService_AddConnection_Validation(t *testing.T) {
	t.Parallel()

	valid := func() stream.ConnectionParams {
		return stream.ConnectionParams{
			ID:        "c1",
			SiteID:    "s1",
			SessionID: "sess",
			Type:      stream.TypeSSE,
			Handle:    newFakeHandle("c1"),
		}
	}

	tests := []struct {
		name   string
		mutate func(*stream.ConnectionParams)
		field  string
	}{
		{"missing id", func(p *stream.ConnectionParams) { p.ID = "" }, "id"},
		{"missing site", func(p *stream.ConnectionParams) { p.SiteID = "" }, "siteId"},
		{"missing session", func(p *stream.ConnectionParams) { p.SessionID = "" }, "sessionId"},
		{"missing type", func(p *stream.ConnectionParams) { p.Type = "" }, "type"},
		{"unknown type", func(p *stream.ConnectionParams) { p.Type = "carrier-pigeon" }, "type"},
		{"missing handle", func(p *stream.ConnectionParams) { p.Handle = nil }, "handle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			p := valid()
			tt.mutate(&p)

			_, err := f.svc.AddConnection(context.Background(), p)
			require.ErrorIs(t, err, notifications.ErrValidation)
			var verr notifications.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Zero(t, f.svc.ConnectionStats("").Total)
		})
	}
}

func TestService_AddConnection(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	f.connect(t, "c1", "s1", "u1", stream.TypeWebSocket)

	conn, ok := f.svc.Connection("c1")
	require.True(t, ok)
	assert.True(t, conn.Active)
	assert.Equal(t, f.sched.Now(), conn.ConnectedAt)
	assert.Equal(t, stream.TypeWebSocket, conn.Type)
	assert.ElementsMatch(t, []string{broadcast.SiteKey("s1"), broadcast.UserKey("s1", "u1")}, f.reg.Keys())

	_, err := f.svc.AddConnection(ctx, stream.ConnectionParams{
		ID: "c1", SiteID: "s1", SessionID: "x", Type: stream.TypeSSE, Handle: newFakeHandle("c1"),
	})
	assert.ErrorIs(t, err, stream.ErrDuplicateConnection)

	established := f.events.Named(events.ConnectionEstablished)
	require.Len(t, established, 1)
	assert.Equal(t, "c1", established[0].Payload["connectionId"])
}

func TestService_RemoveConnection(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	h := f.connect(t, "c1", "s1", "u1", stream.TypeSSE)
	f.sched.Advance(2 * time.Second)

	require.NoError(t, f.svc.RemoveConnection(ctx, "c1"))

	_, ok := f.svc.Connection("c1")
	assert.False(t, ok)
	assert.Empty(t, f.reg.Keys())
	assert.True(t, h.isClosed())
	assert.Zero(t, f.sched.Pending(), "ping task cancelled")

	closed := f.events.Named(events.ConnectionClosed)
	require.Len(t, closed, 1)
	assert.EqualValues(t, 2000, closed[0].Payload["durationMs"])

	err := f.svc.RemoveConnection(ctx, "c1")
	assert.ErrorIs(t, err, notifications.ErrNotFound)
	assert.ErrorIs(t, f.svc.RemoveConnection(ctx, ""), notifications.ErrValidation)
}

func TestService_HandleDoneRemovesConnection(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	h := f.connect(t, "c1", "s1", "", stream.TypeSSE)

	h.drop()

	require.Eventually(t, func() bool {
		_, ok := f.svc.Connection("c1")
		return !ok
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, f.reg.Keys())
}

func TestService_Ping(t *testing.T) {
	t.Parallel()

	t.Run("successful ping refreshes activity", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		h := f.connect(t, "c1", "s1", "", stream.TypeSSE)

		f.sched.Advance(30 * time.Second)

		conn, ok := f.svc.Connection("c1")
		require.True(t, ok)
		assert.Equal(t, f.sched.Now(), conn.LastActivity)
		h.mu.Lock()
		require.Len(t, h.frames, 1)
		assert.Equal(t, broadcast.EventPing, h.frames[0].Event)
		h.mu.Unlock()
	})

	t.Run("failed ping drops the connection", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		h := f.connect(t, "c1", "s1", "", stream.TypeSSE)
		h.failNext(1)

		f.sched.Advance(30 * time.Second)

		_, ok := f.svc.Connection("c1")
		assert.False(t, ok)
		assert.Zero(t, f.sched.Pending())
	})

	t.Run("polling connections are not pinged", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.connect(t, "c1", "s1", "", stream.TypePolling)
		assert.Zero(t, f.sched.Pending())
	})
}

func TestService_CleanupInactiveConnections(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.connect(t, "idle", "s1", "", stream.TypePolling)
	f.connect(t, "busy", "s1", "", stream.TypePolling)

	f.sched.Advance(5 * time.Minute)
	require.True(t, f.svc.Touch("busy"))
	f.sched.Advance(time.Minute)

	assert.Equal(t, 1, f.svc.CleanupInactiveConnections(ctx))

	_, ok := f.svc.Connection("idle")
	assert.False(t, ok)
	_, ok = f.svc.Connection("busy")
	assert.True(t, ok)

	cleanup := f.events.Named(events.ConnectionsCleanup)
	require.Len(t, cleanup, 1)
	assert.Equal(t, 1, cleanup[0].Payload["removed"])
	assert.Equal(t, 1, cleanup[0].Payload["remaining"])
}

func TestService_CleanupRunsPeriodically(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(c *stream.Config) { c.CleanupInterval = time.Minute })
	require.NoError(t, f.svc.Start(context.Background()))
	t.Cleanup(func() { _ = f.svc.Stop() })

	f.connect(t, "c1", "s1", "", stream.TypePolling)
	f.sched.Advance(6 * time.Minute)

	_, ok := f.svc.Connection("c1")
	assert.False(t, ok)
}

func TestService_ConnectionStats(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.connect(t, "a", "s1", "", stream.TypeSSE)
	f.connect(t, "b", "s1", "", stream.TypeWebSocket)
	f.connect(t, "c", "s2", "", stream.TypePolling)

	all := f.svc.ConnectionStats("")
	assert.Equal(t, 3, all.Total)
	assert.Equal(t, 3, all.Active)
	assert.Equal(t, map[string]int{"s1": 2, "s2": 1}, all.BySite)

	site := f.svc.ConnectionStats("s1")
	assert.Equal(t, 2, site.Total)
	assert.Equal(t, 1, site.ByType[stream.TypeSSE])
	assert.Equal(t, 1, site.ByType[stream.TypeWebSocket])
}

func TestService_CloseAll(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a := f.connect(t, "a", "s1", "", stream.TypeSSE)
	b := f.connect(t, "b", "s2", "u", stream.TypeWebSocket)

	f.svc.CloseAll(context.Background())

	assert.Zero(t, f.svc.ConnectionStats("").Total)
	assert.True(t, a.isClosed())
	assert.True(t, b.isClosed())
	assert.Empty(t, f.reg.Keys())
}
