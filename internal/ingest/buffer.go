package ingest

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"soccopilot/internal/logger"
	"soccopilot/pkg/models"
)

// BufferStats is a snapshot of buffer counters.
type BufferStats struct {
	Count            int    `json:"count"`
	Capacity         int    `json:"capacity"`
	DroppedCount     uint64 `json:"dropped_count"`
	OverflowWarnings uint64 `json:"overflow_warnings"`
}

// Buffer is a bounded FIFO of raw lines flushed on a timer or when full.
// When full it drops the newest line and never blocks.
type Buffer struct {
	mu        sync.Mutex
	items     []models.RawLine
	capacity  int
	interval  time.Duration
	lastFlush time.Time
	dropped   uint64
	warnings  uint64
	warnLimit *rate.Limiter
	now       func() time.Time
}

// NewBuffer creates a buffer holding at most capacity lines.
func NewBuffer(capacity int, interval time.Duration) *Buffer {
	if capacity <= 0 {
		capacity = 10000
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	b := &Buffer{
		capacity:  capacity,
		interval:  interval,
		warnLimit: rate.NewLimiter(rate.Every(time.Second), 1),
		now:       time.Now,
	}
	b.lastFlush = b.now()
	return b
}

// Add appends a line. It returns false when the buffer is full.
func (b *Buffer) Add(line models.RawLine) bool {
	b.mu.Lock()
	if len(b.items) >= b.capacity {
		b.dropped++
		b.warnings++
		dropped := b.dropped
		b.mu.Unlock()
		if b.warnLimit.Allow() {
			logger.Warnf("Buffer overflow: capacity=%d dropped=%d", b.capacity, dropped)
		}
		return false
	}
	b.items = append(b.items, line)
	b.mu.Unlock()
	return true
}

// ShouldFlush reports whether the interval elapsed or the buffer is full.
func (b *Buffer) ShouldFlush() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) >= b.capacity {
		return true
	}
	return b.now().Sub(b.lastFlush) >= b.interval
}

// Flush empties the buffer and returns its contents in arrival order.
func (b *Buffer) Flush() []models.RawLine {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items
	b.items = nil
	b.lastFlush = b.now()
	return out
}

// Clear discards buffered lines without touching the counters.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.items = nil
	b.mu.Unlock()
}

// Len returns the number of buffered lines.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Stats returns a snapshot of the buffer counters.
func (b *Buffer) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Count:            len(b.items),
		Capacity:         b.capacity,
		DroppedCount:     b.dropped,
		OverflowWarnings: b.warnings,
	}
}
