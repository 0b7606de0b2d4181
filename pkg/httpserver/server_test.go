package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/pkg/httpserver"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestServer_RunAndShutdown(t *testing.T) {
	t.Parallel()

	var shutdownHook atomic.Bool
	srv := httpserver.New(
		httpserver.WithAddr("127.0.0.1:0"),
		httpserver.WithLogger(quiet()),
		httpserver.WithShutdownTimeout(time.Second),
		httpserver.WithOnShutdown(func() { shutdownHook.Store(true) }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
	}()
	<-srv.Ready()

	resp, err := http.Get("http://" + srv.Addr())
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		require.Fail(t, "run did not return")
	}
	assert.Eventually(t, shutdownHook.Load, time.Second, 10*time.Millisecond)
	require.NoError(t, srv.Shutdown(context.Background()))
}

func TestServer_RunTwice(t *testing.T) {
	t.Parallel()

	srv := httpserver.New(httpserver.WithAddr("127.0.0.1:0"), httpserver.WithLogger(quiet()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Run(ctx, nil) }()
	<-srv.Ready()

	err := srv.Run(ctx, nil)
	assert.ErrorIs(t, err, httpserver.ErrAlreadyRunning)
}

func TestServer_BadAddr(t *testing.T) {
	t.Parallel()

	err := httpserver.New(httpserver.WithAddr("256.0.0.1:-1"), httpserver.WithLogger(quiet())).Run(context.Background(), nil)
	assert.ErrorIs(t, err, httpserver.ErrStart)
}

func TestHealthCheckHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		checks []httpserver.Check
		status int
		body   string
		result map[string]string
	}{
		{"liveness", nil, http.StatusOK, "alive", nil},
		{"ready", []httpserver.Check{
			{Name: "redis", Fn: func(context.Context) error { return nil }},
		}, http.StatusOK, "ready", map[string]string{"redis": "ok"}},
		{"not ready", []httpserver.Check{
			{Name: "redis", Fn: func(context.Context) error { return nil }},
			{Name: "postgres", Fn: func(context.Context) error { return errors.New("down") }},
		}, http.StatusServiceUnavailable, "not_ready", map[string]string{"redis": "ok", "postgres": "fail"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			httpserver.HealthCheckHandler(quiet(), time.Second, tt.checks...)(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			assert.Equal(t, tt.status, rec.Code)

			var got struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.body, got.Status)
			assert.Equal(t, tt.result, got.Checks)
		})
	}
}
