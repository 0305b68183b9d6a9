package alert

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthmon/internals/domain"
	"healthmon/pkg/rabbitmq"
)

func downEvent() domain.AlertEvent {
	return domain.AlertEvent{
		ID:         uuid.New(),
		Service:    svc,
		From:       domain.StatusDegraded,
		To:         domain.StatusDown,
		At:         at,
		ErrorClass: domain.ErrTimeout,
		Message:    "context deadline exceeded",
	}
}

type captured struct {
	header http.Header
	body   []byte
}

func captureServer(t *testing.T, status int) (*httptest.Server, chan captured) {
	t.Helper()
	ch := make(chan captured, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ch <- captured{header: r.Header.Clone(), body: body}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, ch
}

func TestWebhookSignsBody(t *testing.T) {
	srv, ch := captureServer(t, http.StatusOK)
	n := NewWebhookNotifier(srv.URL, "s3cret", srv.Client())

	res := n.Notify(context.Background(), downEvent())
	assert.True(t, res.Delivered)

	got := <-ch
	assert.Equal(t, "sha256="+Sign([]byte("s3cret"), got.body), got.header.Get(SignatureHeader))
	assert.Equal(t, "application/json", got.header.Get("Content-Type"))

	var payload webhookPayload
	require.NoError(t, json.Unmarshal(got.body, &payload))
	assert.Equal(t, "api", payload.ServiceName)
	assert.Equal(t, domain.StatusDown, payload.Status)
	assert.Contains(t, payload.Message, "timeout")
}

func TestWebhookWithoutSecretHasNoSignature(t *testing.T) {
	srv, ch := captureServer(t, http.StatusNoContent)
	res := NewWebhookNotifier(srv.URL, "", srv.Client()).Notify(context.Background(), downEvent())
	assert.True(t, res.Delivered)
	assert.Empty(t, (<-ch).header.Get(SignatureHeader))
}

func TestNon2xxIsDeliveryFailure(t *testing.T) {
	srv, _ := captureServer(t, http.StatusBadGateway)
	res := NewSlackNotifier(srv.URL, srv.Client()).Notify(context.Background(), downEvent())
	assert.False(t, res.Delivered)
	assert.Contains(t, res.Reason, "502")
}

func TestDiscordPayload(t *testing.T) {
	srv, ch := captureServer(t, http.StatusNoContent)
	res := NewDiscordNotifier(srv.URL, srv.Client()).Notify(context.Background(), downEvent())
	require.True(t, res.Delivered)

	var payload map[string]any
	require.NoError(t, json.Unmarshal((<-ch).body, &payload))
	assert.Equal(t, "**api is down**", payload["content"])
	assert.Len(t, payload["embeds"], 1)
}

func TestSlackPayload(t *testing.T) {
	srv, ch := captureServer(t, http.StatusOK)
	ev := downEvent()
	ev.From, ev.To = domain.StatusDown, domain.StatusUp
	require.True(t, NewSlackNotifier(srv.URL, srv.Client()).Notify(context.Background(), ev).Delivered)

	var payload map[string]any
	require.NoError(t, json.Unmarshal((<-ch).body, &payload))
	assert.Contains(t, payload["text"], "api recovered")
	assert.Len(t, payload["blocks"], 2)
}

type fakePublisher struct {
	key  string
	body []byte
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, key string, body []byte) error {
	p.key, p.body = key, body
	return p.err
}

func TestRabbitNotifierEnvelope(t *testing.T) {
	pub := &fakePublisher{}
	n := &RabbitNotifier{pub: pub, routingKey: "healthmon.alert"}
	ev := downEvent()

	require.True(t, n.Notify(context.Background(), ev).Delivered)
	assert.Equal(t, "healthmon.alert.down", pub.key)

	var env rabbitmq.EventPayload
	require.NoError(t, json.Unmarshal(pub.body, &env))
	assert.Equal(t, ev.ID, env.ID)
	assert.Equal(t, EventType, env.Type)

	pub.err = errors.New("channel closed")
	res := n.Notify(context.Background(), ev)
	assert.False(t, res.Delivered)
	assert.Equal(t, "channel closed", res.Reason)
}
