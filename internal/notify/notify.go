// Package notify delivers a single completion message at the end of a batch.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// #region interface
// Notifier delivers a batch completion message.
type Notifier interface {
	Notify(subject, body string) error
}
// #endregion interface

// #region log-notifier
// LogNotifier writes the notification to the process log. It is the default
// when no webhook is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(subject, body string) error {
	log.Printf("[NOTIFY] %s: %s", subject, body)
	return nil
}
// #endregion log-notifier

// #region webhook-notifier
// WebhookNotifier posts the notification as JSON to a configured URL.
type WebhookNotifier struct {
	URL    string
	Client *http.Client
}

// NewWebhookNotifier builds a notifier with a bounded request timeout.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookNotifier) Notify(subject, body string) error {
	payload, err := json.Marshal(map[string]string{
		"subject": subject,
		"body":    body,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	resp, err := w.Client.Post(w.URL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("post notification: status %d", resp.StatusCode)
	}
	return nil
}
// #endregion webhook-notifier
