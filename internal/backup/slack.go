package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const slackTimeout = 30 * time.Second

// Notifier delivers job notifications.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Slack posts notifications to an incoming webhook. Without a webhook URL
// notifications are only logged.
type Slack struct {
	webhookURL string
	client     *http.Client
}

// NewSlack returns a Slack notifier. A nil client gets a default with timeout.
func NewSlack(webhookURL string, client *http.Client) *Slack {
	if client == nil {
		client = &http.Client{Timeout: slackTimeout}
	}

	return &Slack{webhookURL: webhookURL, client: client}
}

type slackPayload struct {
	Text string `json:"text"`
}

// Notify posts message to the webhook.
func (s *Slack) Notify(ctx context.Context, message string) error {
	if s.webhookURL == "" {
		log.Warn().Str("message", message).Msg("slack webhook not configured, notification dropped")
		return nil
	}

	body, err := json.Marshal(slackPayload{Text: message})
	if err != nil {
		return errors.Wrap(err, "failed to encode slack payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create slack request")
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to post slack notification")
	}

	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= http.StatusBadRequest {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024)) //nolint:mnd

		log.Error().Int("status", resp.StatusCode).Bytes("body", respBody).Msg("slack rejected notification")

		return errors.Wrapf(ErrSlack, "status %d", resp.StatusCode)
	}

	return nil
}
