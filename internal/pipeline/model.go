package pipeline

import (
	"context"

	"soccopilot/pkg/models"
)

// FeatureExtractor turns a parsed record into a fixed-order vector.
type FeatureExtractor interface {
	Extract(rec *models.LogRecord) (models.FeatureVector, error)
}

// AnomalyScorer returns an outlier score in [0,1].
type AnomalyScorer interface {
	ScoreAnomaly(ctx context.Context, vec models.FeatureVector) (float64, error)
}

// Classifier returns a label with its confidence.
type Classifier interface {
	Classify(ctx context.Context, rec *models.LogRecord, vec models.FeatureVector) (models.Classification, error)
}

// StaticAnomaly scores every record with the same value. It stands in for
// the anomaly model when no sidecar is configured.
type StaticAnomaly float64

// ScoreAnomaly returns the constant score.
func (s StaticAnomaly) ScoreAnomaly(context.Context, models.FeatureVector) (float64, error) {
	return float64(s), nil
}
