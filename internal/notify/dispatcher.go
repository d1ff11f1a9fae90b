package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/CosmoTheDev/slacknotify/internal/config"
)

// Result describes a completed webhook round trip. Any status code counts as
// completed; callers decide what a non-2xx means to them.
type Result struct {
	StatusCode int    `json:"status_code"`
	Status     string `json:"status"`
}

// OK reports whether the webhook answered with a 2xx status.
func (r *Result) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Dispatcher posts formatted messages to Slack incoming webhooks.
// It performs exactly one request per call and never retries.
type Dispatcher struct {
	client    *http.Client
	userAgent string
}

// NewDispatcher creates a Dispatcher from cfg.
func NewDispatcher(cfg config.SlackConfig) *Dispatcher {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: cfg.UserAgent,
	}
}

// NewDispatcherWithClient creates a Dispatcher that sends through client.
func NewDispatcherWithClient(client *http.Client) *Dispatcher {
	return &Dispatcher{client: client}
}

// Dispatch posts msg to webhookURL as a form-encoded "payload" field. The
// caller is responsible for checking that webhookURL is configured.
func (d *Dispatcher) Dispatch(ctx context.Context, webhookURL string, msg Message, room string) (*Result, error) {
	b, err := json.Marshal(BuildPayload(msg, room))
	if err != nil {
		return nil, err
	}
	form := url.Values{"payload": {string(b)}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("slack: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req) // #nosec G107 -- webhookURL is a user-configured Slack incoming webhook URL
	if err != nil {
		return nil, fmt.Errorf("slack: posting to webhook: %w", err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused; the body itself is not inspected.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return &Result{StatusCode: resp.StatusCode, Status: resp.Status}, nil
}
