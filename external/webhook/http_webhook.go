package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/foxseedlab/streameval/internal/webhook"
)

const (
	requestTimeout   = 30 * time.Second
	maxAttempts      = 3
	retryBackoff     = time.Second
	maxErrorBodySize = 512
	userAgent        = "streameval-report/1"
)

type HTTPSender struct {
	webhookURL string
	client     *http.Client
	backoff    time.Duration
}

type Option func(*HTTPSender)

func WithHTTPClient(c *http.Client) Option {
	return func(s *HTTPSender) {
		if c != nil {
			s.client = c
		}
	}
}

func WithRetryBackoff(d time.Duration) Option {
	return func(s *HTTPSender) {
		s.backoff = d
	}
}

// NewHTTPSender posts run reports as JSON. An empty URL disables delivery.
func NewHTTPSender(webhookURL string, opts ...Option) webhook.Sender {
	s := &HTTPSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: requestTimeout},
		backoff:    retryBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPSender) SendReport(ctx context.Context, payload webhook.RunReportPayload) error {
	if s.webhookURL == "" {
		return nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		retryable, err := s.post(ctx, b)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || attempt == maxAttempts {
			break
		}
		slog.Warn("report webhook failed; retrying", "run_id", payload.RunID, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * s.backoff):
		}
	}
	return lastErr
}

// post sends one request and reports whether a failure is worth retrying.
func (s *HTTPSender) post(ctx context.Context, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	resp, err := s.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if isHTTPSuccessStatus(resp.StatusCode) {
		return false, nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	err = fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	return resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests, err
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
