package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"healthmon/internals/domain"
)

var slackEmoji = map[string]string{"down": ":red_circle:", "up": ":white_check_mark:"}

type SlackNotifier struct {
	url    string
	client *http.Client
}

func NewSlackNotifier(url string, client *http.Client) *SlackNotifier {
	return &SlackNotifier{url: url, client: client}
}

func (n *SlackNotifier) Name() string { return "slack" }

func (n *SlackNotifier) Notify(ctx context.Context, ev domain.AlertEvent) domain.DeliveryResult {
	title := fmt.Sprintf("%s %s", slackEmoji[statusType(ev)], subject(ev))
	payload := map[string]any{
		"text": title,
		"blocks": []map[string]any{
			{
				"type": "header",
				"text": map[string]any{"type": "plain_text", "text": title},
			},
			{
				"type": "section",
				"text": map[string]any{"type": "mrkdwn", "text": message(ev)},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.DeliveryFailed(err.Error())
	}
	return postJSON(ctx, n.client, n.url, body, nil)
}
