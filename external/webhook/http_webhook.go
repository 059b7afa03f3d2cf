package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/foxseedlab/speechrelay/internal/webhook"
)

const (
	webhookRequestTimeout = 10 * time.Second
	webhookMaxAttempts    = 3
	webhookRetryBackoff   = 500 * time.Millisecond
	errorBodyLimit        = 512

	schemaVersionHeader = "X-Speechrelay-Schema-Version"
	connectionIDHeader  = "X-Speechrelay-Connection-Id"
)

// HTTPSender posts connection summaries as JSON. Server errors and transport
// failures are retried; client errors are not.
type HTTPSender struct {
	webhookURL string
	client     *http.Client
	backoff    time.Duration
}

func NewHTTPSender(webhookURL string) webhook.Sender {
	return &HTTPSender{
		webhookURL: strings.TrimSpace(webhookURL),
		client:     &http.Client{Timeout: webhookRequestTimeout},
		backoff:    webhookRetryBackoff,
	}
}

func (s *HTTPSender) SendConnectionSummary(ctx context.Context, payload webhook.ConnectionSummaryPayload) error {
	if s.webhookURL == "" {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal connection summary: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= webhookMaxAttempts; attempt++ {
		retry, err := s.post(ctx, payload, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || attempt == webhookMaxAttempts {
			break
		}
		slog.Warn("connection summary webhook failed; retrying", "connection_id", payload.ConnectionID, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff * time.Duration(attempt)):
		}
	}
	return lastErr
}

// post sends one request and reports whether a failure is worth retrying.
func (s *HTTPSender) post(ctx context.Context, payload webhook.ConnectionSummaryPayload, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(schemaVersionHeader, payload.SchemaVersion)
	req.Header.Set(connectionIDHeader, payload.ConnectionID)

	resp, err := s.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	return resp.StatusCode >= 500, fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}
