package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"

	"soccopilot/internal/ingest"
	"soccopilot/internal/logger"
)

// Config configures a Redis list source.
type Config struct {
	Addr         string
	Password     string
	DB           int
	Key          string
	BlockTimeout time.Duration
}

// listClient is the subset of the Redis client the source uses.
type listClient interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// ListSource feeds lines popped from a Redis list into an ingestion callback.
// Each payload may hold several newline-separated lines.
type ListSource struct {
	client       listClient
	key          string
	onLine       ingest.LineFunc
	blockTimeout time.Duration
	pingTimeout  time.Duration
	errorBackoff time.Duration
	stopTimeout  time.Duration

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	doneCh  chan struct{}

	popped atomic.Uint64
	errors atomic.Uint64
}

// NewListSource creates a source that BLPOPs cfg.Key. onLine receives
// "redis:<key>" as the source name.
func NewListSource(cfg Config, onLine ingest.LineFunc) (*ListSource, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis key is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newListSource(client, cfg, onLine), nil
}

func newListSource(client listClient, cfg Config, onLine ingest.LineFunc) *ListSource {
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	return &ListSource{
		client:       client,
		key:          cfg.Key,
		onLine:       onLine,
		blockTimeout: cfg.BlockTimeout,
		pingTimeout:  2 * time.Second,
		errorBackoff: 500 * time.Millisecond,
		stopTimeout:  3 * time.Second,
		doneCh:       make(chan struct{}),
	}
}

// Name returns the source name.
func (s *ListSource) Name() string {
	return "redis:" + s.key
}

// Start checks that Redis answers, then launches the pop loop.
func (s *ListSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return fmt.Errorf("redis source %s already stopped", s.key)
	}
	if s.running {
		return nil
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), s.pingTimeout)
	err := s.client.Ping(pingCtx).Err()
	pingCancel()
	if err != nil {
		return fmt.Errorf("redis source %s: ping: %w", s.key, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	go s.readLoop(ctx)
	logger.Infof("Redis list source started: key=%s", s.key)
	return nil
}

// Stop cancels the pop loop, waits for it and closes the client.
func (s *ListSource) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	wasRunning := s.running
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	if wasRunning {
		cancel()
		select {
		case <-s.doneCh:
		case <-time.After(s.stopTimeout):
			logger.Warnf("Redis list source stop timed out: key=%s", s.key)
		}
	}
	if err := s.client.Close(); err != nil {
		logger.Errorf("Failed to close redis source client: %v", err)
	}
}

// Stats returns queue counters.
func (s *ListSource) Stats() ingest.SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	errs := s.errors.Load()
	return ingest.SourceStats{
		Kind:       ingest.KindQueue,
		Name:       s.Name(),
		Running:    running,
		ErrorCount: int(errs),
		Queue: &ingest.QueueStats{
			Key:    s.key,
			Popped: s.popped.Load(),
			Errors: errs,
		},
	}
}

func (s *ListSource) readLoop(ctx context.Context) {
	defer close(s.doneCh)
	name := s.Name()

	for {
		payload, err := s.pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.errors.Add(1)
			logger.Errorf("Failed to pop redis message: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.errorBackoff):
			}
			continue
		}
		if ctx.Err() != nil {
			return
		}
		if payload == nil {
			continue
		}
		s.popped.Add(1)
		for _, line := range strings.Split(string(payload), "\n") {
			line = strings.TrimRight(line, "\r")
			if strings.TrimSpace(line) == "" {
				continue
			}
			s.onLine(name, line)
		}
	}
}

// pop returns nil, nil when the block timeout elapses without a payload.
func (s *ListSource) pop(ctx context.Context) ([]byte, error) {
	res, err := s.client.BLPop(ctx, s.blockTimeout, s.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, nil
	}
	return []byte(res[1]), nil
}
