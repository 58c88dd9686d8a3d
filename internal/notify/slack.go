package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Notifier is informed of terminal and error transitions. Implementations
// must never block the caller; reconciliation does not wait for delivery.
type Notifier interface {
	Alert(title string, fields map[string]any)
}

// SlackNotifier posts alerts to a Slack incoming-webhook URL.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Alert sends the message in the background. Delivery failures are logged
// and otherwise ignored.
func (n *SlackNotifier) Alert(title string, fields map[string]any) {
	if n.webhookURL == "" {
		return
	}
	go func() {
		text := title
		if len(fields) > 0 {
			detail, err := json.MarshalIndent(fields, "", "  ")
			if err == nil {
				text = fmt.Sprintf("%s\n```%s```", title, detail)
			}
		}
		payload, _ := json.Marshal(map[string]string{"text": text})
		resp, err := n.client.Post(n.webhookURL, "application/json", bytes.NewReader(payload))
		if err != nil {
			slog.Error("slack alert delivery failed", "title", title, "error", err)
			return
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			slog.Error("slack alert rejected", "title", title, "status", resp.StatusCode)
		}
	}()
}

// NopNotifier drops all alerts. Used when no webhook URL is configured and
// in tests.
type NopNotifier struct{}

func (NopNotifier) Alert(string, map[string]any) {}
