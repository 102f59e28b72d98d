package rules

import (
	"context"

	"soccopilot/pkg/models"
)

// Match describes one rule that fired on a record.
type Match struct {
	ID         string                `json:"id"`
	Title      string                `json:"title"`
	Level      string                `json:"level"`
	Tactic     string                `json:"tactic,omitempty"`
	Technique  string                `json:"technique,omitempty"`
	Category   models.ThreatCategory `json:"category"`
	Confidence float64               `json:"confidence"`
}

// NoopClassifier labels every record Benign.
type NoopClassifier struct {
	Confidence float64
}

// Classify returns a Benign classification.
func (n NoopClassifier) Classify(_ context.Context, _ *models.LogRecord, _ models.FeatureVector) (models.Classification, error) {
	conf := n.Confidence
	if conf <= 0 {
		conf = defaultBenignConfidence
	}
	return models.Classification{
		Label:         string(models.CategoryBenign),
		Confidence:    conf,
		Probabilities: map[string]float64{string(models.CategoryBenign): conf},
	}, nil
}
