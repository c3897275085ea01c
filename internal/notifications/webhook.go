package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/castellan-media/castellan/internal/taskman"
)

// Sender posts task failure notices to a single configured webhook.
// Supported shapes: "discord", "slack", "generic".
type Sender struct {
	url         string
	webhookType string
	client      *http.Client
}

func NewSender(url, webhookType string) *Sender {
	return &Sender{
		url:         url,
		webhookType: webhookType,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// TaskFailed posts a failure notice for a named background task.
func (s *Sender) TaskFailed(taskName string, taskErr error) {
	title := "Background task failed"
	message := fmt.Sprintf("%s: %v", taskName, taskErr)
	if err := s.send(title, message); err != nil {
		log.Printf("Webhook: sending failure notice for %q: %v", taskName, err)
	}
}

// WatchTask waits for a task handle in the background and posts a webhook if
// it failed. Cancellations are not failures and stay quiet.
func (s *Sender) WatchTask(h *taskman.Handle, taskName string) {
	go func() {
		_, err := h.Wait(context.Background())
		if err != nil && !errors.Is(err, taskman.ErrCanceled) {
			s.TaskFailed(taskName, err)
		}
	}()
}

func (s *Sender) send(title, message string) error {
	var payload interface{}
	switch s.webhookType {
	case "discord":
		payload = map[string]interface{}{
			"embeds": []map[string]interface{}{
				{
					"title":       title,
					"description": message,
					"color":       15158332,
					"footer":      map[string]string{"text": "castellan"},
					"timestamp":   time.Now().UTC().Format(time.RFC3339),
				},
			},
		}
	case "slack":
		payload = map[string]interface{}{
			"blocks": []map[string]interface{}{
				{
					"type": "header",
					"text": map[string]string{"type": "plain_text", "text": title},
				},
				{
					"type": "section",
					"text": map[string]string{"type": "mrkdwn", "text": message},
				},
			},
		}
	case "generic":
		payload = map[string]interface{}{
			"title":     title,
			"message":   message,
			"source":    "castellan",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
	default:
		return fmt.Errorf("unknown webhook type: %s", s.webhookType)
	}
	return s.postJSON(payload)
}

func (s *Sender) postJSON(payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	resp, err := s.client.Post(s.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
