package killswitch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"soccopilot/internal/logger"
)

// Switch reports whether processing must halt.
type Switch interface {
	Active() bool
}

// Func adapts a Switch to the predicate the ingestion controller consumes.
func Func(s Switch) func() bool {
	if s == nil {
		return func() bool { return false }
	}
	return s.Active
}

// File is active while its flag file exists.
type File struct {
	path string
}

// NewFile creates a file-backed switch.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the flag file path.
func (f *File) Path() string {
	return f.path
}

// Active reports whether the flag file exists.
func (f *File) Active() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// Activate creates the flag file with a reason line.
func (f *File) Activate(reason string) error {
	if dir := filepath.Dir(f.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create kill switch dir: %w", err)
		}
	}
	body := fmt.Sprintf("%s %s\n", time.Now().UTC().Format(time.RFC3339), strings.TrimSpace(reason))
	if err := os.WriteFile(f.path, []byte(body), 0644); err != nil {
		return fmt.Errorf("write kill switch: %w", err)
	}
	logger.Warnf("Kill switch activated: path=%s reason=%s", f.path, reason)
	return nil
}

// Deactivate removes the flag file. Removing an absent file is not an error.
func (f *File) Deactivate() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove kill switch: %w", err)
	}
	logger.Infof("Kill switch deactivated: path=%s", f.path)
	return nil
}

// RedisConfig configures a Redis-backed switch.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
	Timeout  time.Duration
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Redis is active while its key holds a truthy value. Lookup errors count
// as active.
type Redis struct {
	client  getter
	closer  func() error
	key     string
	timeout time.Duration

	// warnLimit throttles lookup-failure warnings; Active runs per line.
	warnLimit  *rate.Limiter
	suppressed atomic.Uint64
}

// NewRedis creates a Redis-backed switch.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis kill switch key is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newRedis(client, client.Close, cfg.Key, cfg.Timeout), nil
}

func newRedis(client getter, closer func() error, key string, timeout time.Duration) *Redis {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &Redis{
		client:    client,
		closer:    closer,
		key:       key,
		timeout:   timeout,
		warnLimit: rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
}

// Active reports whether the key is set to anything but "", "0" or "false".
func (r *Redis) Active() bool {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	val, err := r.client.Get(ctx, r.key).Result()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		if r.warnLimit.Allow() {
			logger.Warnf("Kill switch lookup failed, treating as active: key=%s err=%v suppressed=%d",
				r.key, err, r.suppressed.Swap(0))
		} else {
			r.suppressed.Add(1)
		}
		return true
	}
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "", "0", "false":
		return false
	}
	return true
}

// Close releases the client.
func (r *Redis) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

// anySwitch is active when any member is active.
type anySwitch []Switch

// Any combines switches. Nil members are ignored.
func Any(switches ...Switch) Switch {
	var out anySwitch
	for _, s := range switches {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (a anySwitch) Active() bool {
	for _, s := range a {
		if s.Active() {
			return true
		}
	}
	return false
}
