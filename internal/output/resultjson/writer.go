package resultjson

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"soccopilot/internal/logger"
	"soccopilot/pkg/models"
)

// Writer outputs analysis rows to a JSON lines file.
type Writer struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
	rows    uint64
}

// NewWriter creates a JSONL writer for analysis rows.
func NewWriter(path string) (*Writer, error) {
	if path == "" {
		return nil, fmt.Errorf("result output path is empty")
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}

	logger.Infof("Result JSON writer initialized: %s", path)
	return &Writer{
		file:    f,
		encoder: json.NewEncoder(f),
	}, nil
}

// WriteRecords writes a batch of analysis rows.
func (w *Writer) WriteRecords(records []*models.AnalysisRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, rec := range records {
		if rec == nil {
			continue
		}
		if err := w.encoder.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode analysis row: %w", err)
		}
		w.rows++
	}
	return nil
}

// Close closes the output file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		logger.Infof("Result JSON writer closed: rows=%d", w.rows)
		err := w.file.Close()
		w.file = nil
		return err
	}
	return nil
}
