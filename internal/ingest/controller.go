package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"soccopilot/internal/logger"
	"soccopilot/internal/metrics"
	"soccopilot/pkg/models"
)

// BatchFunc consumes one flushed batch. Ownership of the slice moves to the
// callee. Calls are never concurrent.
type BatchFunc func(batch []models.RawLine) error

// Config configures a Controller.
type Config struct {
	BatchInterval  time.Duration
	MaxBufferSize  int
	FlushTick      time.Duration
	StopTimeout    time.Duration
	DefaultPattern string
	Tailer         TailerConfig
	Watcher        WatcherConfig
}

func (c *Config) applyDefaults() {
	if c.BatchInterval <= 0 {
		c.BatchInterval = 5 * time.Second
	}
	if c.MaxBufferSize <= 0 {
		c.MaxBufferSize = 10000
	}
	if c.FlushTick <= 0 {
		c.FlushTick = 500 * time.Millisecond
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 3 * time.Second
	}
	if c.DefaultPattern == "" {
		c.DefaultPattern = "*.log"
	}
}

// Stats is a snapshot of controller state.
type Stats struct {
	Running        bool          `json:"running"`
	Shutdown       bool          `json:"shutdown"`
	SourcesCount   int           `json:"sources_count"`
	BatchInterval  time.Duration `json:"batch_interval"`
	LinesProcessed uint64        `json:"lines_processed"`
	BatchesSent    uint64        `json:"batches_sent"`
	Errors         uint64        `json:"errors"`
	LastActivity   time.Time     `json:"last_activity"`
	Buffer         BufferStats   `json:"buffer"`
	Sources        []SourceStats `json:"sources"`
}

// Controller drains sources into a micro-batch buffer and hands flushed
// batches to a callback. A Controller is single-use: it cannot be restarted
// after Stop.
type Controller struct {
	cfg        Config
	killswitch func() bool
	metrics    *metrics.Metrics
	buffer     *Buffer
	now        func() time.Time

	mu       sync.Mutex
	sources  []Source
	callback BatchFunc
	running  bool
	stopped  bool
	stopCh   chan struct{}
	doneCh   chan struct{}

	// intake guards shutdown. Stop takes the write lock, so once it
	// returns no OnLine call can still be adding to the buffer.
	intake   sync.RWMutex
	shutdown bool

	// flushMu serializes flushes so the callback never runs concurrently,
	// even when Stop's final flush overlaps a flush loop that outlived
	// StopTimeout. Batches are delivered in buffer order.
	flushMu sync.Mutex

	linesProcessed atomic.Uint64
	batchesSent    atomic.Uint64
	errors         atomic.Uint64
	lastActivity   atomic.Int64
}

// NewController creates a controller. killswitch may be nil; m may be nil.
func NewController(cfg Config, killswitch func() bool, m *metrics.Metrics) *Controller {
	cfg.applyDefaults()
	return &Controller{
		cfg:        cfg,
		killswitch: killswitch,
		metrics:    m,
		buffer:     NewBuffer(cfg.MaxBufferSize, cfg.BatchInterval),
		now:        time.Now,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// AddFileSource tails an existing regular file.
func (c *Controller) AddFileSource(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		logger.Warnf("Rejected file source: path=%s", path)
		return false
	}
	return c.AddSource(NewTailer(path, c.OnLine, c.cfg.Tailer))
}

// AddDirectorySource watches an existing directory. An empty pattern means the default.
func (c *Controller) AddDirectorySource(dir, pattern string) bool {
	if pattern == "" {
		pattern = c.cfg.DefaultPattern
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		logger.Warnf("Rejected directory source: dir=%s", dir)
		return false
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		logger.Warnf("Rejected directory source: dir=%s pattern=%q err=%v", dir, pattern, err)
		return false
	}
	wcfg := c.cfg.Watcher
	wcfg.Pattern = pattern
	wcfg.Tailer = c.cfg.Tailer
	return c.AddSource(NewWatcher(dir, c.OnLine, wcfg))
}

// AddSource registers an externally built source. If the controller is
// running the source is started immediately.
func (c *Controller) AddSource(s Source) bool {
	if s == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return false
	}
	if c.running {
		if err := s.Start(); err != nil {
			logger.Errorf("Failed to start source %s: %v", s.Name(), err)
			c.errors.Add(1)
			return false
		}
	}
	c.sources = append(c.sources, s)
	return true
}

// SetBatchCallback installs the batch consumer.
func (c *Controller) SetBatchCallback(fn BatchFunc) {
	c.mu.Lock()
	c.callback = fn
	c.mu.Unlock()
}

// Start starts every source and the flush loop. It returns true if the
// controller is running afterwards.
func (c *Controller) Start() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return true
	}
	if c.stopped {
		logger.Warnf("Controller start refused: already stopped")
		return false
	}
	if c.killActive() {
		logger.Warnf("Controller start refused: kill switch active")
		return false
	}

	// Sources already started stay running; Stop releases them.
	for _, s := range c.sources {
		if err := s.Start(); err != nil {
			logger.Errorf("Failed to start source %s: %v", s.Name(), err)
			c.errors.Add(1)
			return false
		}
	}

	c.running = true
	go c.flushLoop()
	logger.Infof("Ingestion started: sources=%d batch_interval=%s", len(c.sources), c.cfg.BatchInterval)
	return true
}

// Stop blocks intake, stops every source and the flush loop, then flushes
// whatever is still buffered. It is idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	wasRunning := c.running
	c.running = false
	sources := append([]Source(nil), c.sources...)
	c.mu.Unlock()

	c.intake.Lock()
	c.shutdown = true
	c.intake.Unlock()

	for _, s := range sources {
		if r := stopSource(s); r != nil {
			logger.Errorf("Source stop panicked: source=%s panic=%v", s.Name(), r)
			c.errors.Add(1)
		}
	}

	if wasRunning {
		close(c.stopCh)
		select {
		case <-c.doneCh:
		case <-time.After(c.cfg.StopTimeout):
			logger.Warnf("Flush loop stop timed out")
		}
	}

	c.flush()
	logger.Infof("Ingestion stopped: lines=%d batches=%d errors=%d",
		c.linesProcessed.Load(), c.batchesSent.Load(), c.errors.Load())
}

// IsRunning reports whether the flush loop is active.
func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// OnLine is the single intake point for every source.
func (c *Controller) OnLine(source, text string) {
	c.intake.RLock()
	defer c.intake.RUnlock()

	if c.shutdown {
		c.metrics.LineDropped(metrics.DropShutdown)
		return
	}
	if c.killActive() {
		c.metrics.LineDropped(metrics.DropKillSwitch)
		return
	}

	now := c.now()
	if !c.buffer.Add(models.RawLine{Source: source, Text: text, ArrivedAt: now}) {
		c.metrics.LineDropped(metrics.DropOverflow)
		return
	}
	c.linesProcessed.Add(1)
	c.lastActivity.Store(now.UnixNano())
	c.metrics.LineAccepted()
}

// Buffer exposes the micro-batch buffer.
func (c *Controller) Buffer() *Buffer {
	return c.buffer
}

// Stats returns a snapshot of controller and source state.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	sources := append([]Source(nil), c.sources...)
	running := c.running
	c.mu.Unlock()

	c.intake.RLock()
	shutdown := c.shutdown
	c.intake.RUnlock()

	stats := Stats{
		Running:        running,
		Shutdown:       shutdown,
		SourcesCount:   len(sources),
		BatchInterval:  c.cfg.BatchInterval,
		LinesProcessed: c.linesProcessed.Load(),
		BatchesSent:    c.batchesSent.Load(),
		Errors:         c.errors.Load(),
		Buffer:         c.buffer.Stats(),
	}
	if ts := c.lastActivity.Load(); ts != 0 {
		stats.LastActivity = time.Unix(0, ts)
	}
	for _, s := range sources {
		stats.Sources = append(stats.Sources, s.Stats())
	}
	return stats
}

func (c *Controller) flushLoop() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.cfg.FlushTick)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if c.killActive() {
				continue
			}
			if c.buffer.ShouldFlush() {
				c.flush()
			}
			c.metrics.SetBufferSize(c.buffer.Len())
		}
	}
}

func (c *Controller) flush() {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	batch := c.buffer.Flush()
	if len(batch) == 0 {
		return
	}

	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	if cb == nil {
		logger.Debugf("No batch callback set, dropping %d lines", len(batch))
		return
	}

	if err := c.deliver(cb, batch); err != nil {
		c.errors.Add(1)
		c.metrics.BatchFailed()
		logger.Errorf("Batch callback failed: size=%d err=%v", len(batch), err)
		return
	}
	c.batchesSent.Add(1)
	c.metrics.BatchSent()
}

func (c *Controller) deliver(cb BatchFunc, batch []models.RawLine) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("batch callback panic: %v", r)
		}
	}()
	return cb(batch)
}

func (c *Controller) killActive() bool {
	return c.killswitch != nil && c.killswitch()
}
