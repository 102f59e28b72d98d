package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"soccopilot/internal/logger"
)

// TailerState is the lifecycle state of a Tailer.
type TailerState int

const (
	TailerIdle TailerState = iota
	TailerRunning
	TailerStopping
	TailerStopped
)

func (s TailerState) String() string {
	switch s {
	case TailerIdle:
		return "idle"
	case TailerRunning:
		return "running"
	case TailerStopping:
		return "stopping"
	case TailerStopped:
		return "stopped"
	default:
		return fmt.Sprintf("TailerState(%d)", int(s))
	}
}

// TailerConfig controls polling and error policy.
type TailerConfig struct {
	PollInterval time.Duration
	MissingWait  time.Duration
	ErrorBackoff time.Duration
	StopTimeout  time.Duration
	MaxErrors    int
	// FromStart reads an existing file from offset 0 instead of its end.
	FromStart bool
}

func (c *TailerConfig) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.MissingWait <= 0 {
		c.MissingWait = time.Second
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 2 * time.Second
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 2 * time.Second
	}
	if c.MaxErrors <= 0 {
		c.MaxErrors = 10
	}
}

// TailerStats is a snapshot of one tailer.
type TailerStats struct {
	Path           string `json:"path"`
	Position       int64  `json:"position"`
	ErrorCount     int    `json:"error_count"`
	EncodingErrors uint64 `json:"encoding_errors"`
	LinesEmitted   uint64 `json:"lines_emitted"`
	Running        bool   `json:"running"`
	FileExists     bool   `json:"file_exists"`
	State          string `json:"state"`
}

// Tailer follows one growing file and emits each complete line.
// Truncation is detected by the file size dropping below the cursor.
type Tailer struct {
	path   string
	onLine LineFunc
	cfg    TailerConfig

	mu             sync.Mutex
	state          TailerState
	position       int64
	errorCount     int
	encodingErrors uint64
	linesEmitted   uint64
	fileExists     bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewTailer creates an idle tailer for path.
func NewTailer(path string, onLine LineFunc, cfg TailerConfig) *Tailer {
	cfg.applyDefaults()
	return &Tailer{
		path:   path,
		onLine: onLine,
		cfg:    cfg,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Name returns the tailed path.
func (t *Tailer) Name() string {
	return t.path
}

// Start begins polling. Starting a running tailer is a no-op; a stopped
// tailer cannot be restarted.
func (t *Tailer) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case TailerRunning:
		return nil
	case TailerStopping, TailerStopped:
		return fmt.Errorf("tailer %s already stopped", t.path)
	}

	// Stat failures other than a missing file are left to the poll loop,
	// which counts them against MaxErrors.
	if info, err := os.Stat(t.path); err == nil {
		t.fileExists = true
		if !t.cfg.FromStart {
			t.position = info.Size()
		}
	} else {
		t.fileExists = false
		t.position = 0
	}

	t.state = TailerRunning
	go t.run()
	logger.Infof("Tailer started: path=%s position=%d", t.path, t.position)
	return nil
}

// Stop halts polling and waits for the polling goroutine, bounded by StopTimeout.
func (t *Tailer) Stop() {
	t.mu.Lock()
	switch t.state {
	case TailerIdle:
		t.state = TailerStopped
		t.mu.Unlock()
		return
	case TailerStopping:
		t.mu.Unlock()
		return
	case TailerStopped:
		t.mu.Unlock()
		return
	}
	t.state = TailerStopping
	close(t.stopCh)
	t.mu.Unlock()

	select {
	case <-t.doneCh:
	case <-time.After(t.cfg.StopTimeout):
		logger.Warnf("Tailer stop timed out: path=%s", t.path)
	}
}

// Stats returns the tailer snapshot wrapped as SourceStats.
func (t *Tailer) Stats() SourceStats {
	ts := t.TailerStats()
	return SourceStats{
		Kind:       KindFile,
		Name:       t.path,
		Running:    ts.Running,
		ErrorCount: ts.ErrorCount,
		Tailer:     &ts,
	}
}

// TailerStats returns the tailer snapshot.
func (t *Tailer) TailerStats() TailerStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TailerStats{
		Path:           t.path,
		Position:       t.position,
		ErrorCount:     t.errorCount,
		EncodingErrors: t.encodingErrors,
		LinesEmitted:   t.linesEmitted,
		Running:        t.state == TailerRunning,
		FileExists:     t.fileExists,
		State:          t.state.String(),
	}
}

func (t *Tailer) run() {
	defer func() {
		t.mu.Lock()
		t.state = TailerStopped
		t.mu.Unlock()
		close(t.doneCh)
	}()

	for {
		wait, halt := t.poll()
		if halt {
			return
		}
		select {
		case <-t.stopCh:
			return
		case <-time.After(wait):
		}
	}
}

// poll performs one read cycle and returns how long to wait before the next.
func (t *Tailer) poll() (time.Duration, bool) {
	info, err := os.Stat(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		t.mu.Lock()
		t.fileExists = false
		t.mu.Unlock()
		return t.cfg.MissingWait, false
	}
	if err != nil {
		return t.fail(fmt.Errorf("stat: %w", err))
	}

	t.mu.Lock()
	t.fileExists = true
	size := info.Size()
	if size < t.position {
		logger.Infof("File truncated or rotated: path=%s size=%d position=%d", t.path, size, t.position)
		t.position = 0
	}
	pos := t.position
	t.mu.Unlock()

	if size == pos {
		return t.cfg.PollInterval, false
	}

	lines, consumed, badLines, err := t.readFrom(pos)
	if err != nil {
		return t.fail(err)
	}

	t.mu.Lock()
	t.position = pos + consumed
	t.errorCount = 0
	t.encodingErrors += badLines
	t.linesEmitted += uint64(len(lines))
	t.mu.Unlock()

	for _, line := range lines {
		select {
		case <-t.stopCh:
			return 0, true
		default:
		}
		t.onLine(t.path, line)
	}
	return t.cfg.PollInterval, false
}

// readFrom reads complete lines starting at offset. A trailing fragment
// without a newline is not consumed.
func (t *Tailer) readFrom(offset int64) (lines []string, consumed int64, badLines uint64, err error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, 0, fmt.Errorf("seek: %w", err)
	}

	reader := bufio.NewReader(f)
	for {
		chunk, readErr := reader.ReadBytes('\n')
		if readErr != nil {
			if readErr == io.EOF {
				return lines, consumed, badLines, nil
			}
			return lines, consumed, badLines, fmt.Errorf("read: %w", readErr)
		}
		consumed += int64(len(chunk))

		if !utf8.Valid(chunk) {
			badLines++
			continue
		}
		line := strings.TrimRight(string(chunk), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
}

func (t *Tailer) fail(err error) (time.Duration, bool) {
	t.mu.Lock()
	t.errorCount++
	count := t.errorCount
	t.mu.Unlock()

	if count >= t.cfg.MaxErrors {
		logger.Errorf("Tailer stopped after %d consecutive errors: path=%s err=%v", count, t.path, err)
		return 0, true
	}
	logger.Warnf("Tailer error (%d/%d): path=%s err=%v", count, t.cfg.MaxErrors, t.path, err)
	return t.cfg.ErrorBackoff, false
}
