package alert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"healthmon/internals/domain"
)

// Notifier delivers one alert. Implementations never retry.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, ev domain.AlertEvent) domain.DeliveryResult
}

func subject(ev domain.AlertEvent) string {
	if ev.IsRecovery() {
		return fmt.Sprintf("%s recovered", ev.Service.Name)
	}
	return fmt.Sprintf("%s is down", ev.Service.Name)
}

func message(ev domain.AlertEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s) changed from %s to %s at %s.",
		ev.Service.Name, ev.Service.URL(), ev.From, ev.To, ev.At.UTC().Format(time.RFC1123))
	if ev.IsRecovery() {
		if ev.Latency > 0 {
			fmt.Fprintf(&b, " Response time %s.", ev.Latency.Round(time.Millisecond))
		}
		return b.String()
	}
	if ev.ErrorClass != domain.ErrNone {
		fmt.Fprintf(&b, " Last error: %s", ev.ErrorClass)
		if ev.Message != "" {
			fmt.Fprintf(&b, " (%s)", ev.Message)
		}
		b.WriteString(".")
	}
	return b.String()
}

func statusType(ev domain.AlertEvent) string {
	return strings.ToLower(string(ev.To))
}

// postJSON sends body and maps the outcome to a DeliveryResult.
func postJSON(ctx context.Context, client *http.Client, url string, body []byte, header http.Header) domain.DeliveryResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.DeliveryFailed(err.Error())
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "healthmon/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return domain.DeliveryFailed(err.Error())
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 16<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.DeliveryFailed(fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}
	return domain.Delivered()
}
