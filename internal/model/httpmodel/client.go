package httpmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"soccopilot/pkg/models"
)

// Config configures the model sidecar client.
type Config struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// Client calls a model sidecar that hosts the anomaly scorer and the classifier.
type Client struct {
	base    string
	headers map[string]string
	client  *http.Client
}

type featuresRequest struct {
	Features []float64 `json:"features"`
}

type anomalyResponse struct {
	Score float64 `json:"score"`
}

// NewClient creates a sidecar client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("model URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		base:    strings.TrimRight(cfg.URL, "/"),
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// ScoreAnomaly returns the outlier score for vec.
func (c *Client) ScoreAnomaly(ctx context.Context, vec models.FeatureVector) (float64, error) {
	var out anomalyResponse
	if err := c.post(ctx, "/anomaly", featuresRequest{Features: vec}, &out); err != nil {
		return 0, err
	}
	return out.Score, nil
}

// Classify returns the classifier output for vec.
func (c *Client) Classify(ctx context.Context, _ *models.LogRecord, vec models.FeatureVector) (models.Classification, error) {
	var out models.Classification
	if err := c.post(ctx, "/classify", featuresRequest{Features: vec}, &out); err != nil {
		return models.Classification{}, err
	}
	if out.Label == "" {
		return models.Classification{}, fmt.Errorf("classifier returned empty label")
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("model request %s failed with status %s: %s", path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode model response: %w", err)
	}
	return nil
}

// Close releases HTTP resources.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
