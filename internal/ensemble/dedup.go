package ensemble

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sync"
	"time"
)

// Deduplicator suppresses repeated non-alert records that share a
// fingerprint within a cooldown window.
type Deduplicator struct {
	cooldown time.Duration
	now      func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewDeduplicator creates a deduplicator. A zero cooldown means 60s.
func NewDeduplicator(cooldown time.Duration) *Deduplicator {
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	return &Deduplicator{
		cooldown: cooldown,
		now:      time.Now,
		seen:     make(map[string]time.Time),
	}
}

// Fingerprint derives a stable key from the fields that identify a repeat
// event. The anomaly score is bucketed to one decimal.
func Fingerprint(label string, anomaly float64, srcIP string) string {
	bucket := math.Floor(anomaly*10) / 10
	if srcIP == "" {
		srcIP = "unknown"
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%.1f|%s", label, bucket, srcIP)))
	return hex.EncodeToString(sum[:])[:16]
}

// ShouldProcess reports whether the fingerprint is new or its cooldown expired.
func (d *Deduplicator) ShouldProcess(fp string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	last, ok := d.seen[fp]
	if ok && now.Sub(last) < d.cooldown {
		return false
	}
	d.seen[fp] = now
	return true
}

// Cleanup evicts fingerprints last seen more than maxAge ago.
func (d *Deduplicator) Cleanup(maxAge time.Duration) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	evicted := 0
	for fp, ts := range d.seen {
		if now.Sub(ts) >= maxAge {
			delete(d.seen, fp)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of tracked fingerprints.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
