// Package chat delivers end-of-run summaries to a Mattermost channel via an
// incoming webhook.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Notifier accumulates per-step outcomes during a run and posts a single
// markdown summary when told to send.
type Notifier struct {
	webhookURL string
	channel    string
	username   string
	client     *http.Client

	infos  []string
	errors []string
}

// New creates a Mattermost webhook notifier. Channel and username are
// optional; empty values fall back to the webhook's own defaults.
func New(webhookURL, channel, username string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		channel:    channel,
		username:   username,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Info records that a task step completed, for inclusion in the summary.
func (n *Notifier) Info(action string) {
	n.infos = append(n.infos, action)
}

// Error records that a task step failed, for inclusion in the summary.
func (n *Notifier) Error(action string) {
	n.errors = append(n.errors, action)
}

// Send posts the accumulated summary to the incoming webhook.
func (n *Notifier) Send(ctx context.Context) error {
	payload := webhookPayload{
		Channel:  n.channel,
		Username: n.username,
		Text:     n.buildText(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal mattermost payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create mattermost request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send mattermost notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mattermost returned status %d", resp.StatusCode)
	}
	return nil
}

func (n *Notifier) buildText() string {
	var b strings.Builder

	if len(n.errors) > 0 {
		fmt.Fprintf(&b, "#### Task run finished with %d errors\n", len(n.errors))
	} else {
		b.WriteString("#### Task run finished\n")
	}

	for _, action := range n.errors {
		fmt.Fprintf(&b, ":x: `%s` failed\n", action)
	}
	for _, action := range n.infos {
		fmt.Fprintf(&b, ":white_check_mark: `%s` completed\n", action)
	}

	return b.String()
}

type webhookPayload struct {
	Channel  string `json:"channel,omitempty"`
	Username string `json:"username,omitempty"`
	Text     string `json:"text"`
}
