package broadcast_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/pkg/broadcast"
)

func TestFrame_Encode(t *testing.T) {
	t.Parallel()

	b, err := broadcast.Frame{
		ID:    "n1",
		Event: "notification",
		Data:  map[string]string{"title": "Hi"},
	}.Encode()
	require.NoError(t, err)
	assert.Equal(t, "id: n1\nevent: notification\ndata: {\"title\":\"Hi\"}\n\n", string(b))
}

func TestFrame_EncodeStripsNewlines(t *testing.T) {
	t.Parallel()

	b, err := broadcast.Frame{ID: "a\nb", Event: "x", Data: 1}.Encode()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "id: a b\n"))
}

func TestFrame_EncodeError(t *testing.T) {
	t.Parallel()

	_, err := broadcast.Frame{ID: "n1", Data: make(chan int)}.Encode()
	assert.Error(t, err)
}

func TestPingFrame(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	f := broadcast.PingFrame(now)
	assert.Equal(t, broadcast.EventPing, f.Event)
	assert.Equal(t, map[string]any{"timestamp": "2025-01-02T03:04:05Z"}, f.Data)
}

func TestSSEHandle(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	rec := httptest.NewRecorder()

	h, err := broadcast.NewSSEHandle(ctx, "c1", rec)
	require.NoError(t, err)
	assert.Equal(t, "c1", h.ID())
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	require.NoError(t, h.Send(context.Background(), broadcast.Frame{ID: "n1", Event: "notification", Data: "x"}))
	assert.Contains(t, rec.Body.String(), "id: n1\nevent: notification\ndata: \"x\"\n\n")
	assert.True(t, rec.Flushed)

	cancel()
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("handle not closed after context cancel")
	}

	err = h.Send(context.Background(), broadcast.Frame{ID: "n2"})
	var closed broadcast.ErrHandleClosed
	assert.ErrorAs(t, err, &closed)
}

type plainWriter struct{ http.ResponseWriter }

func TestSSEHandle_RequiresFlusher(t *testing.T) {
	t.Parallel()

	_, err := broadcast.NewSSEHandle(context.Background(), "c1", plainWriter{httptest.NewRecorder()})
	assert.ErrorIs(t, err, broadcast.ErrStreamingUnsupported)
}
