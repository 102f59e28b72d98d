package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"soccopilot/internal/logger"
)

// WatcherConfig controls directory scanning.
type WatcherConfig struct {
	Pattern      string
	PollInterval time.Duration
	StopTimeout  time.Duration
	MaxErrors    int
	Tailer       TailerConfig
}

func (c *WatcherConfig) applyDefaults() {
	if c.Pattern == "" {
		c.Pattern = "*.log"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.PollInterval < time.Second {
		c.PollInterval = time.Second
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 3 * time.Second
	}
	if c.MaxErrors <= 0 {
		c.MaxErrors = 5
	}
}

// WatcherStats is a snapshot of one directory watcher.
type WatcherStats struct {
	Directory     string        `json:"directory"`
	Pattern       string        `json:"pattern"`
	KnownFiles    int           `json:"known_files"`
	ActiveTailers int           `json:"active_tailers"`
	ErrorCount    int           `json:"error_count"`
	Running       bool          `json:"running"`
	Tailers       []TailerStats `json:"tailers"`
}

// Watcher discovers files matching a pattern in one directory and owns a
// Tailer per file. Tailers of vanished files are stopped and discarded.
type Watcher struct {
	dir    string
	onLine LineFunc
	cfg    WatcherConfig

	mu         sync.Mutex
	tailers    map[string]*Tailer
	errorCount int
	running    bool
	started    bool
	stopped    bool
	scanned    bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWatcher creates an idle watcher for dir.
func NewWatcher(dir string, onLine LineFunc, cfg WatcherConfig) *Watcher {
	cfg.applyDefaults()
	return &Watcher{
		dir:     dir,
		onLine:  onLine,
		cfg:     cfg,
		tailers: make(map[string]*Tailer),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Name returns the watched directory and pattern.
func (w *Watcher) Name() string {
	return filepath.Join(w.dir, w.cfg.Pattern)
}

// Start launches the scan loop.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return fmt.Errorf("watcher %s already stopped", w.dir)
	}
	if w.started {
		return nil
	}
	w.started = true
	w.running = true
	go w.run()
	logger.Infof("Directory watcher started: dir=%s pattern=%s", w.dir, w.cfg.Pattern)
	return nil
}

// Stop halts scanning, then stops every owned tailer.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	started := w.started
	w.mu.Unlock()

	if started {
		close(w.stopCh)
		select {
		case <-w.doneCh:
		case <-time.After(w.cfg.StopTimeout):
			logger.Warnf("Directory watcher stop timed out: dir=%s", w.dir)
		}
	}

	w.mu.Lock()
	tailers := w.tailers
	w.tailers = make(map[string]*Tailer)
	w.running = false
	w.mu.Unlock()

	for path, t := range tailers {
		if r := stopSource(t); r != nil {
			logger.Errorf("Tailer stop panicked: path=%s panic=%v", path, r)
		}
	}
}

// Stats returns the watcher snapshot wrapped as SourceStats.
func (w *Watcher) Stats() SourceStats {
	ws := w.WatcherStats()
	return SourceStats{
		Kind:       KindDirectory,
		Name:       w.Name(),
		Running:    ws.Running,
		ErrorCount: ws.ErrorCount,
		Watcher:    &ws,
	}
}

// WatcherStats returns the watcher snapshot with per-tailer stats sorted by path.
func (w *Watcher) WatcherStats() WatcherStats {
	w.mu.Lock()
	paths := make([]string, 0, len(w.tailers))
	for path := range w.tailers {
		paths = append(paths, path)
	}
	tailers := make([]*Tailer, 0, len(paths))
	sort.Strings(paths)
	for _, path := range paths {
		tailers = append(tailers, w.tailers[path])
	}
	stats := WatcherStats{
		Directory:  w.dir,
		Pattern:    w.cfg.Pattern,
		KnownFiles: len(paths),
		ErrorCount: w.errorCount,
		Running:    w.running,
	}
	w.mu.Unlock()

	for _, t := range tailers {
		ts := t.TailerStats()
		if ts.Running {
			stats.ActiveTailers++
		}
		stats.Tailers = append(stats.Tailers, ts)
	}
	return stats
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	for {
		if halt := w.scan(); halt {
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return
		}
		select {
		case <-w.stopCh:
			return
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

// scan reconciles tailers with the current directory listing.
func (w *Watcher) scan() bool {
	matches, err := w.list()
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}
	if err != nil {
		w.mu.Lock()
		w.errorCount++
		count := w.errorCount
		w.mu.Unlock()
		if count >= w.cfg.MaxErrors {
			logger.Errorf("Directory watcher stopped after %d errors: dir=%s err=%v", count, w.dir, err)
			return true
		}
		logger.Warnf("Directory scan error (%d/%d): dir=%s err=%v", count, w.cfg.MaxErrors, w.dir, err)
		return false
	}

	w.mu.Lock()
	w.errorCount = 0
	fromStart := w.scanned
	w.scanned = true
	var added []string
	for path := range matches {
		if _, ok := w.tailers[path]; !ok {
			added = append(added, path)
		}
	}
	var removed []*Tailer
	for path, t := range w.tailers {
		if _, ok := matches[path]; !ok {
			removed = append(removed, t)
			delete(w.tailers, path)
		}
	}
	w.mu.Unlock()

	for _, t := range removed {
		logger.Infof("File vanished, retiring tailer: path=%s", t.Name())
		if r := stopSource(t); r != nil {
			logger.Errorf("Tailer stop panicked: path=%s panic=%v", t.Name(), r)
		}
	}

	sort.Strings(added)
	for _, path := range added {
		tcfg := w.cfg.Tailer
		tcfg.FromStart = fromStart
		t := NewTailer(path, w.onLine, tcfg)
		if err := t.Start(); err != nil {
			logger.Warnf("Failed to start tailer: path=%s err=%v", path, err)
			continue
		}

		w.mu.Lock()
		if w.stopped {
			w.mu.Unlock()
			t.Stop()
			return false
		}
		w.tailers[path] = t
		w.mu.Unlock()
	}
	return false
}

func (w *Watcher) list() (map[string]struct{}, error) {
	if _, err := filepath.Match(w.cfg.Pattern, ""); err != nil {
		return nil, fmt.Errorf("pattern %q: %w", w.cfg.Pattern, err)
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, err
	}
	matches := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(w.cfg.Pattern, entry.Name()); !ok {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if !entry.Type().IsRegular() {
			// Symlinks count when their target is a regular file.
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
		}
		matches[path] = struct{}{}
	}
	return matches, nil
}
