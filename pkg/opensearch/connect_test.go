package opensearch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/pkg/opensearch"
)

func TestNew(t *testing.T) {
	t.Parallel()

	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"version":{"number":"2.11.0","distribution":"opensearch"}}`))
	}))
	defer srv.Close()

	client, err := opensearch.New(context.Background(), opensearch.Config{Addresses: []string{srv.URL}, DisableRetry: true})
	require.NoError(t, err)

	healthy.Store(false)
	assert.ErrorIs(t, opensearch.Healthcheck(client)(context.Background()), opensearch.ErrUnhealthy)
}

func TestNew_Unreachable(t *testing.T) {
	t.Parallel()

	_, err := opensearch.New(context.Background(), opensearch.Config{Addresses: []string{"http://127.0.0.1:1"}, DisableRetry: true})
	assert.ErrorIs(t, err, opensearch.ErrUnhealthy)
}
