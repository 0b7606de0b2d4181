package channels_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/pkg/amqp"
	"github.com/dmitrymomot/pulse/pkg/broadcast"
	"github.com/dmitrymomot/pulse/pkg/channels"
	"github.com/dmitrymomot/pulse/pkg/email"
	"github.com/dmitrymomot/pulse/pkg/notifications"
	"github.com/dmitrymomot/pulse/pkg/ratelimit"
	"github.com/dmitrymomot/pulse/pkg/router"
	"github.com/dmitrymomot/pulse/pkg/webhook"
)

type handle struct {
	id   string
	mu   sync.Mutex
	got  []broadcast.Frame
	err  error
	done chan struct{}
}

func newHandle(id string) *handle { return &handle{id: id, done: make(chan struct{})} }

func (h *handle) ID() string            { return h.id }
func (h *handle) Done() <-chan struct{} { return h.done }

func (h *handle) Send(_ context.Context, f broadcast.Frame) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.got = append(h.got, f)
	return nil
}

func payload(meta map[string]any) router.Payload {
	return router.Payload{
		NotificationID: "n1",
		UserID:         "u1",
		Content:        notifications.Content{Title: "Order shipped", Message: "Your order is on the way", URL: "https://shop.test/o/1"},
		Priority:       notifications.PriorityHigh,
		Metadata:       meta,
	}
}

func TestWeb(t *testing.T) {
	t.Parallel()

	reg := broadcast.NewRegistry()
	t.Cleanup(reg.Close)
	h := newHandle("c1")
	require.NoError(t, reg.Add(broadcast.UserKey("s1", "u1"), h))

	web := channels.NewWeb(reg)

	rcpt, err := web.Process(context.Background(), payload(map[string]any{channels.MetaSiteID: "s1", channels.MetaEmail: "a@b.co"}))
	require.NoError(t, err)
	assert.Equal(t, 1, rcpt.Details["sent"])
	require.Len(t, h.got, 1)
	assert.Equal(t, "n1", h.got[0].ID)
	assert.Equal(t, channels.EventNotification, h.got[0].Event)
	assert.Nil(t, h.got[0].Data.(router.Payload).Metadata)

	_, err = web.Process(context.Background(), payload(map[string]any{channels.MetaChannelKey: broadcast.SiteKey("nobody")}))
	require.ErrorIs(t, err, channels.ErrNoLiveConnections)

	_, err = web.Process(context.Background(), payload(nil))
	require.ErrorIs(t, err, channels.ErrMissingRecipient)
}

type mockSender struct{ mock.Mock }

func (m *mockSender) SendEmail(ctx context.Context, p email.SendEmailParams) error {
	return m.Called(ctx, p).Error(0)
}

func TestEmail(t *testing.T) {
	t.Parallel()

	sender := &mockSender{}
	sender.On("SendEmail", mock.Anything, mock.MatchedBy(func(p email.SendEmailParams) bool {
		return p.SendTo == "a@b.co" &&
			p.Subject == "Order shipped" &&
			strings.Contains(p.BodyHTML, "Your order is on the way") &&
			strings.HasSuffix(p.BodyText, "https://shop.test/o/1") &&
			p.Metadata["notification_id"] == "n1"
	})).Return(nil).Once()

	e := channels.NewEmail(sender, "")
	_, err := e.Process(context.Background(), payload(map[string]any{channels.MetaEmail: "a@b.co"}))
	require.NoError(t, err)
	sender.AssertExpectations(t)

	_, err = e.Process(context.Background(), payload(nil))
	require.ErrorIs(t, err, channels.ErrMissingRecipient)

	failing := &mockSender{}
	failing.On("SendEmail", mock.Anything, mock.Anything).Return(email.ErrFailedToSendEmail)
	_, err = channels.NewEmail(failing, "").Process(context.Background(), payload(map[string]any{channels.MetaEmail: "a@b.co"}))
	require.ErrorIs(t, err, email.ErrFailedToSendEmail)
}

func TestWebhook(t *testing.T) {
	t.Parallel()

	var (
		body   []byte
		header http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Clone()
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := channels.NewWebhook(webhook.NewSender(),
		channels.WithWebhookSecret("default"),
		channels.WithBreakers(webhook.NewBreakers(3, time.Minute)))

	rcpt, err := wh.Process(context.Background(), payload(map[string]any{
		channels.MetaWebhookURL:    srv.URL,
		channels.MetaWebhookSecret: "per-site",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rcpt.Details["statusCode"])
	assert.Equal(t, "n1", header.Get("X-Pulse-Notification"))

	sig, err := webhook.ParseSignature(header)
	require.NoError(t, err)
	require.NoError(t, webhook.Verify("per-site", body, sig, time.Minute, time.Now()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.NotContains(t, got, "metadata")

	_, err = wh.Process(context.Background(), payload(nil))
	require.ErrorIs(t, err, channels.ErrMissingRecipient)
}

type fakePublisher struct {
	queue string
	msg   amqp.Message
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, queue string, msg amqp.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.queue, f.msg = queue, msg
	return msg.ID, nil
}

func TestQueued(t *testing.T) {
	t.Parallel()

	t.Run("push", func(t *testing.T) {
		t.Parallel()
		pub := &fakePublisher{}
		rcpt, err := channels.NewPush(pub).Process(context.Background(), payload(nil))
		require.NoError(t, err)
		assert.Equal(t, "n1", rcpt.MessageID)
		assert.Equal(t, channels.PushQueue, pub.queue)
		assert.Equal(t, uint8(6), pub.msg.Priority)
		body := pub.msg.Body.(channels.QueuedMessage)
		assert.Equal(t, "u1", body.Recipient)
		assert.Equal(t, "Order shipped", body.Title)
	})

	t.Run("sms", func(t *testing.T) {
		t.Parallel()
		pub := &fakePublisher{}
		sms := channels.NewSMS(pub)
		_, err := sms.Process(context.Background(), payload(map[string]any{channels.MetaPhone: "+15550100"}))
		require.NoError(t, err)
		assert.Equal(t, channels.SMSQueue, pub.queue)
		body := pub.msg.Body.(channels.QueuedMessage)
		assert.Equal(t, "+15550100", body.Recipient)
		assert.Empty(t, body.Title)

		_, err = sms.Process(context.Background(), payload(nil))
		require.ErrorIs(t, err, channels.ErrMissingRecipient)
	})

	t.Run("publish error", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("broker down")
		_, err := channels.NewPush(&fakePublisher{err: boom}).Process(context.Background(), payload(nil))
		require.ErrorIs(t, err, boom)
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	sms := channels.NewSMS(&fakePublisher{})
	tests := []struct {
		name    string
		p       router.Processor
		content notifications.Content
		wantErr error
	}{
		{"sms ok", sms, notifications.Content{Message: "short"}, nil},
		{"sms too long", sms, notifications.Content{Message: strings.Repeat("x", 161)}, channels.ErrMessageTooLong},
		{"sms image", sms, notifications.Content{Message: "hi", Image: "https://img.test/a.png"}, channels.ErrInvalidImage},
		{"empty", channels.NewEmail(&mockSender{}, ""), notifications.Content{}, channels.ErrEmptyMessage},
		{"email long", channels.NewEmail(&mockSender{}, ""), notifications.Content{Message: strings.Repeat("x", 10_000)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.p.Validate(tt.content)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSet_Register(t *testing.T) {
	t.Parallel()

	limiter, err := ratelimit.New(ratelimit.NewMemoryStore(), time.Hour)
	require.NoError(t, err)
	r, err := router.New(limiter)
	require.NoError(t, err)

	pub := &fakePublisher{}
	set := channels.Set{Push: channels.NewPush(pub), SMS: channels.NewSMS(pub)}
	require.NoError(t, set.Register(r))
	assert.Equal(t, []notifications.Channel{notifications.ChannelPush, notifications.ChannelSMS}, r.RegisteredChannels())

	caps, ok := r.ChannelCapabilities(notifications.ChannelSMS)
	require.True(t, ok)
	assert.Equal(t, 160, caps.MaxLength)
}
