package pipeline

import "soccopilot/pkg/models"

// ResultWriter writes per-record analysis rows.
type ResultWriter interface {
	WriteRecords(records []*models.AnalysisRecord) error
	Close() error
}
