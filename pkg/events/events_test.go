package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/pkg/events"
	"github.com/dmitrymomot/pulse/pkg/logger"
)

func TestRecorder(t *testing.T) {
	t.Parallel()

	rec := events.NewRecorder()
	ctx := context.Background()
	require.NoError(t, rec.Publish(ctx, events.ConnectionEstablished, events.Payload{"connectionId": "c1"}))
	require.NoError(t, rec.Publish(ctx, events.StatusEvent("delivered"), events.Payload{"notificationId": "n1"}))

	assert.Equal(t, []string{"connection.established", "notification.delivered"}, rec.Names())
	named := rec.Named(events.ConnectionEstablished)
	require.Len(t, named, 1)
	assert.Equal(t, "c1", named[0].Payload["connectionId"])
	assert.False(t, named[0].OccurredAt.IsZero())

	rec.Reset()
	assert.Empty(t, rec.Events())
}

func TestMulti(t *testing.T) {
	t.Parallel()

	a, b := events.NewRecorder(), events.NewRecorder()
	failing := events.PublisherFunc(func(context.Context, string, events.Payload) error {
		return errors.New("sink down")
	})

	err := events.Multi{a, nil, failing, b}.Publish(context.Background(), "x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink down")
	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
}

func TestEmit_LogsFailures(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.New(logger.WithOutput(buf))
	failing := events.PublisherFunc(func(context.Context, string, events.Payload) error {
		return errors.New("sink down")
	})

	events.Emit(context.Background(), failing, log, events.NotificationQueued, nil)
	assert.Contains(t, buf.String(), "failed to publish event")
	assert.Contains(t, buf.String(), "notification.queued")

	assert.NotPanics(t, func() { events.Emit(context.Background(), nil, log, "x", nil) })
}

func TestLogPublisher(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	p := events.NewLogPublisher(logger.New(logger.WithOutput(buf), logger.WithLevelName("debug")))
	require.NoError(t, p.Publish(context.Background(), events.ConnectionClosed, events.Payload{"connectionId": "c9"}))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "connection.closed", entry["event"])
	assert.Equal(t, "c9", entry["payload"].(map[string]any)["connectionId"])
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaPublisher(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	p := events.NewKafkaPublisher(w)
	require.NoError(t, p.Publish(context.Background(), events.NotificationDelivered, events.Payload{"delivered": 3}))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "notification.delivered", string(w.msgs[0].Key))

	var ev events.Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, "notification.delivered", ev.Name)
	assert.EqualValues(t, 3, ev.Payload["delivered"])

	w.err = errors.New("broker unavailable")
	err := p.Publish(context.Background(), "x", nil)
	assert.ErrorIs(t, err, events.ErrPublishFailed)
	assert.NoError(t, p.Close())
}

func TestNewKafkaWriter(t *testing.T) {
	t.Parallel()

	_, err := events.NewKafkaWriter(events.KafkaConfig{})
	assert.ErrorIs(t, err, events.ErrNoBrokers)

	w, err := events.NewKafkaWriter(events.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t"})
	require.NoError(t, err)
	assert.Equal(t, "t", w.Topic)
}

func TestOpenSearchPublisher(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		paths []string
		docs  []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		docs = append(docs, string(body))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Path, "broken") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"mapping"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	defer srv.Close()

	client, err := opensearch.NewClient(opensearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	p := events.NewOpenSearchPublisher(client, "pulse-events")
	require.NoError(t, p.Publish(context.Background(), events.NotificationQueued, events.Payload{"siteId": "s1"}))

	mu.Lock()
	require.Len(t, paths, 1)
	assert.True(t, strings.HasPrefix(paths[0], "/pulse-events-"), paths[0])
	assert.Contains(t, docs[0], `"name":"notification.queued"`)
	mu.Unlock()

	broken := events.NewOpenSearchPublisher(client, "broken")
	assert.ErrorIs(t, broken.Publish(context.Background(), "x", nil), events.ErrPublishFailed)
}
