// Package notify delivers operational events to a webhook. Delivery is
// fire-and-forget: a failed or unconfigured notifier never affects the
// request that triggered the event.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Category routes an event to its operational channel
type Category string

const (
	CategoryBilling Category = "billing"
	CategoryJobs    Category = "jobs"
	CategorySystem  Category = "system"
)

// Severity is the event severity level
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is one operational notification
type Event struct {
	ID       string                 `json:"id"`
	Category Category               `json:"category"`
	Severity Severity               `json:"severity"`
	Message  string                 `json:"message"`
	Meta     map[string]interface{} `json:"meta,omitempty"`
	SentAt   string                 `json:"sent_at"`
}

// Notifier posts events to a configured webhook
type Notifier struct {
	url    string
	apiKey string
	client *http.Client
	logger *slog.Logger
}

// New creates a notifier. An empty URL disables delivery entirely.
func New(url, apiKey string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 2 * time.Second},
		logger: logger,
	}
}

// Send dispatches an event asynchronously and returns immediately
func (n *Notifier) Send(category Category, severity Severity, message string, meta map[string]interface{}) {
	if n.url == "" {
		return
	}

	event := Event{
		ID:       uuid.New().String(),
		Category: category,
		Severity: severity,
		Message:  message,
		Meta:     meta,
		SentAt:   time.Now().UTC().Format(time.RFC3339),
	}

	go n.deliver(event)
}

func (n *Notifier) deliver(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Warn("notify: marshal event", "err", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		n.logger.Warn("notify: build request", "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		req.Header.Set("X-Api-Key", n.apiKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("notify: delivery failed", "err", err, "event_id", event.ID)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		n.logger.Warn("notify: delivery rejected",
			"status", resp.StatusCode, "event_id", event.ID,
			"detail", fmt.Sprintf("%s %s", event.Category, event.Message))
	}
}
