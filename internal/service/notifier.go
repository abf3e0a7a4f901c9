package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// WebhookNotifier posts change events to an external webhook.  Delivery
// is best effort: failures are logged and never returned.
type WebhookNotifier struct {
	client *resty.Client
	url    string
	logger *slog.Logger
}

// NewWebhookNotifier returns a notifier posting to url.  An empty url
// disables delivery.
func NewWebhookNotifier(url string, logger *slog.Logger) *WebhookNotifier {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &WebhookNotifier{client: client, url: url, logger: logger}
}

// Notify sends {"event": event, "data": data}.
func (n *WebhookNotifier) Notify(ctx context.Context, event string, data any) {
	if n.url == "" {
		return
	}
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"event": event, "data": data, "sentAt": time.Now().UTC()}).
		Post(n.url)
	if err != nil {
		n.logger.Warn("notification failed", "event", event, "error", err)
		return
	}
	if resp.IsError() {
		n.logger.Warn("notification rejected", "event", event, "status", resp.StatusCode())
	}
}
