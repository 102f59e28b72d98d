package alerthttp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"soccopilot/internal/logger"
	"soccopilot/pkg/models"
)

// Header carrying the most urgent priority in the batch, so receivers can
// route without decoding the body.
const maxPriorityHeader = "X-SOC-Max-Priority"

// Config configures the webhook writer.
type Config struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// Writer posts alert batches to a SOAR or chat webhook.
type Writer struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// envelope is the webhook body.
type envelope struct {
	SentAt      time.Time            `json:"sent_at"`
	Count       int                  `json:"count"`
	MaxPriority models.AlertPriority `json:"max_priority"`
	ByPriority  map[string]int       `json:"by_priority"`
	Alerts      []*models.Alert      `json:"alerts"`
}

// NewWriter creates a webhook writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("alert webhook URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	return &Writer{
		url:     cfg.URL,
		headers: headers,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// WriteAlerts posts one envelope per batch. Nil alerts are dropped.
func (w *Writer) WriteAlerts(alerts []*models.Alert) error {
	env := buildEnvelope(alerts, time.Now().UTC())
	if env.Count == 0 {
		return nil
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal alert envelope: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(maxPriorityHeader, env.MaxPriority.String())
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post alerts: %w", err)
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("post alerts: status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	logger.Debugf("Posted %d alerts to webhook (max priority %s)", env.Count, env.MaxPriority)
	return nil
}

// Close is a no-op; the HTTP client holds no per-writer resources.
func (w *Writer) Close() error {
	return nil
}

func buildEnvelope(alerts []*models.Alert, now time.Time) envelope {
	env := envelope{SentAt: now, ByPriority: make(map[string]int)}
	for _, a := range alerts {
		if a == nil {
			continue
		}
		if env.Count == 0 || a.Priority.AtLeast(env.MaxPriority) {
			env.MaxPriority = a.Priority
		}
		env.ByPriority[a.Priority.String()]++
		env.Alerts = append(env.Alerts, a)
		env.Count++
	}
	return env
}
