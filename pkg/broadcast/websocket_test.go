package broadcast_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/pkg/broadcast"
)

func TestWebSocketHandle(t *testing.T) {
	t.Parallel()

	reg := broadcast.NewRegistry()
	t.Cleanup(reg.Close)

	up := broadcast.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ready := make(chan *broadcast.WebSocketHandle, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, err := up.Upgrade(w, r, "ws1")
		if err != nil {
			return
		}
		_ = reg.Add("site:s1", h)
		ready <- h
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	var h *broadcast.WebSocketHandle
	select {
	case h = <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not upgrade")
	}

	res := reg.SendToChannel(context.Background(), "site:s1", broadcast.Frame{ID: "n1", Event: "notification", Data: map[string]string{"title": "Hi"}})
	assert.Equal(t, broadcast.Result{Sent: 1}, res)

	var got broadcast.Frame
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, client.ReadJSON(&got))
	assert.Equal(t, "n1", got.ID)
	assert.Equal(t, "notification", got.Event)

	require.NoError(t, client.Close())
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("handle not closed after client disconnect")
	}
	require.Eventually(t, func() bool { return !reg.Has("site:s1") }, time.Second, 5*time.Millisecond)
}
