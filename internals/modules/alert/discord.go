package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"healthmon/internals/domain"
)

var discordColors = map[string]int{"down": 0xef4444, "up": 0x22c55e}

type DiscordNotifier struct {
	url    string
	client *http.Client
}

func NewDiscordNotifier(url string, client *http.Client) *DiscordNotifier {
	return &DiscordNotifier{url: url, client: client}
}

func (n *DiscordNotifier) Name() string { return "discord" }

func (n *DiscordNotifier) Notify(ctx context.Context, ev domain.AlertEvent) domain.DeliveryResult {
	st := statusType(ev)
	payload := map[string]any{
		"username": "healthmon",
		"content":  "**" + subject(ev) + "**",
		"embeds": []map[string]any{
			{
				"description": message(ev),
				"color":       discordColors[st],
				"fields": []map[string]any{
					{"name": "Service", "value": ev.Service.Name, "inline": true},
					{"name": "Status", "value": strings.ToUpper(st), "inline": true},
				},
				"timestamp": ev.At.UTC().Format(time.RFC3339),
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.DeliveryFailed(err.Error())
	}
	return postJSON(ctx, n.client, n.url, body, nil)
}
