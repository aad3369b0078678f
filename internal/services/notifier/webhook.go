package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/surge/internal/domain"
)

const (
	webhookTimeout    = 10 * time.Second
	webhookMaxRetries = 3

	// mentionMinPriority and mentionMinConfidence gate the @channel
	// mention so it fires only on strong, high-priority moves.
	mentionMinPriority   = 2
	mentionMinConfidence = 0.75
)

// Webhook posts briefings to a Slack-compatible incoming webhook. A zero
// value (empty URL) is a no-op sender.
type Webhook struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewWebhook creates a webhook sender. An empty URL disables delivery.
func NewWebhook(url string, logger *zap.Logger) *Webhook {
	return &Webhook{
		url:        url,
		httpClient: &http.Client{Timeout: webhookTimeout},
		logger:     logger,
	}
}

type webhookPayload struct {
	Text      string `json:"text"`
	LinkNames bool   `json:"link_names,omitempty"`
}

// Notify sends the briefing, prefixing an @channel mention when the top
// alert warrants waking people up.
func (w *Webhook) Notify(ctx context.Context, text string, alerts []domain.Alert) error {
	if w.url == "" || text == "" {
		return nil
	}

	payload := webhookPayload{Text: text}
	if shouldMention(alerts) {
		payload.Text = "<!channel> " + payload.Text
		payload.LinkNames = true
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal webhook payload")
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode >= 400 {
			err := errors.Errorf("webhook returned %d", resp.StatusCode)
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), webhookMaxRetries), ctx)); err != nil {
		return errors.Wrap(err, "failed to deliver webhook")
	}

	w.logger.Debug("briefing delivered", zap.Int("alerts", len(alerts)))
	return nil
}

// shouldMention alerts arrive sorted by priority, so the first one is
// the strongest.
func shouldMention(alerts []domain.Alert) bool {
	if len(alerts) == 0 {
		return false
	}
	top := alerts[0]
	return top.Priority >= mentionMinPriority && top.Candidate.Confidence >= mentionMinConfidence
}
