package alertredis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"soccopilot/internal/logger"
	"soccopilot/pkg/models"
)

// Config configures the Redis alert writer.
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
	Timeout  time.Duration

	// MaxLen caps the list; older alerts are trimmed. Zero keeps everything.
	MaxLen int64
}

// lister is the subset of the Redis client the writer uses.
type lister interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
}

// Writer appends alerts as JSON to a capped Redis list.
type Writer struct {
	client  lister
	closer  func() error
	key     string
	maxLen  int64
	timeout time.Duration
}

// NewWriter creates a Redis list writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis alert addr is empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	w := newWriter(client, client.Close, cfg)
	logger.Infof("Alert Redis writer initialized: addr=%s key=%s max_len=%d", cfg.Addr, w.key, w.maxLen)
	return w, nil
}

func newWriter(client lister, closer func() error, cfg Config) *Writer {
	key := cfg.Key
	if key == "" {
		key = "soccopilot:alerts"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Writer{
		client:  client,
		closer:  closer,
		key:     key,
		maxLen:  cfg.MaxLen,
		timeout: timeout,
	}
}

// WriteAlerts pushes alerts to the tail of the list, then trims the head.
func (w *Writer) WriteAlerts(alerts []*models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(alerts))
	for _, alert := range alerts {
		if alert == nil {
			continue
		}
		data, err := json.Marshal(alert)
		if err != nil {
			return fmt.Errorf("failed to marshal alert: %w", err)
		}
		values = append(values, data)
	}
	if len(values) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.client.RPush(ctx, w.key, values...).Err(); err != nil {
		return fmt.Errorf("redis alert push failed: %w", err)
	}
	if w.maxLen > 0 {
		if err := w.client.LTrim(ctx, w.key, -w.maxLen, -1).Err(); err != nil {
			return fmt.Errorf("redis alert trim failed: %w", err)
		}
	}
	return nil
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	if w.closer != nil {
		return w.closer()
	}
	return nil
}
