package alert

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"healthmon/internals/domain"
)

const SignatureHeader = "X-Healthmon-Signature"

type webhookPayload struct {
	Event       string        `json:"event"`
	ID          string        `json:"id"`
	ServiceName string        `json:"service_name"`
	Target      string        `json:"target"`
	From        domain.Status `json:"from"`
	Status      domain.Status `json:"status"`
	Subject     string        `json:"subject"`
	Message     string        `json:"message"`
	Timestamp   string        `json:"timestamp"`
}

// WebhookNotifier posts a JSON document, signed with HMAC-SHA256 when a
// secret is configured.
type WebhookNotifier struct {
	url    string
	secret []byte
	client *http.Client
}

func NewWebhookNotifier(url, secret string, client *http.Client) *WebhookNotifier {
	return &WebhookNotifier{url: url, secret: []byte(secret), client: client}
}

func (n *WebhookNotifier) Name() string { return "webhook" }

func (n *WebhookNotifier) Notify(ctx context.Context, ev domain.AlertEvent) domain.DeliveryResult {
	body, err := json.Marshal(webhookPayload{
		Event:       "status_change",
		ID:          ev.ID.String(),
		ServiceName: ev.Service.Name,
		Target:      ev.Service.URL(),
		From:        ev.From,
		Status:      ev.To,
		Subject:     subject(ev),
		Message:     message(ev),
		Timestamp:   ev.At.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return domain.DeliveryFailed(err.Error())
	}

	header := http.Header{}
	if len(n.secret) > 0 {
		header.Set(SignatureHeader, "sha256="+Sign(n.secret, body))
	}
	return postJSON(ctx, n.client, n.url, body, header)
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
