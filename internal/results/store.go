package results

import (
	"sync"
	"time"

	"soccopilot/pkg/models"
)

// BatchResult summarizes one analyzed batch.
type BatchResult struct {
	BatchID           string          `json:"batch_id"`
	ReceivedAt        time.Time       `json:"received_at"`
	RecordCount       int             `json:"record_count"`
	AnalyzedCount     int             `json:"analyzed_count"`
	ErrorCount        int             `json:"error_count"`
	SuppressedCount   int             `json:"suppressed_count"`
	RiskDistribution  map[string]int  `json:"risk_distribution"`
	ClassDistribution map[string]int  `json:"class_distribution"`
	ProcessingTime    time.Duration   `json:"processing_time"`
	Alerts            []*models.Alert `json:"alerts"`
}

// Store keeps the most recent batch results in a bounded ring.
type Store struct {
	mu    sync.Mutex
	items []BatchResult
	next  int
	full  bool
}

// NewStore creates a store holding at most capacity results.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Store{items: make([]BatchResult, capacity)}
}

// Add stores a result, evicting the oldest when full.
func (s *Store) Add(r BatchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[s.next] = r
	s.next = (s.next + 1) % len(s.items)
	if s.next == 0 {
		s.full = true
	}
}

// Count returns the number of stored results.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count()
}

func (s *Store) count() int {
	if s.full {
		return len(s.items)
	}
	return s.next
}

// Latest returns up to n results, newest first.
func (s *Store) Latest(n int) []BatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.count()
	if n <= 0 || n > total {
		n = total
	}
	out := make([]BatchResult, 0, n)
	for i := 1; i <= n; i++ {
		idx := (s.next - i + len(s.items)) % len(s.items)
		out = append(out, s.items[idx])
	}
	return out
}

// ByID finds a stored result.
func (s *Store) ByID(id string) (BatchResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := s.count()
	for i := 1; i <= total; i++ {
		idx := (s.next - i + len(s.items)) % len(s.items)
		if s.items[idx].BatchID == id {
			return s.items[idx], true
		}
	}
	return BatchResult{}, false
}

// Alerts returns up to n alerts from the newest batches, newest batch first.
func (s *Store) Alerts(n int) []*models.Alert {
	var out []*models.Alert
	for _, r := range s.Latest(0) {
		for _, a := range r.Alerts {
			if n > 0 && len(out) >= n {
				return out
			}
			out = append(out, a)
		}
	}
	return out
}

// Clear drops every stored result.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		s.items[i] = BatchResult{}
	}
	s.next = 0
	s.full = false
}
