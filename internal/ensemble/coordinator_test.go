package ensemble

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"soccopilot/pkg/models"
)

func TestScoreIsPure(t *testing.T) {
	c := NewCoordinator(Config{})
	probs := map[string]float64{"Malware": 0.9, "Benign": 0.1}

	first := c.Score(0.8, "Malware", 0.9, probs)
	second := c.Score(0.8, "Malware", 0.9, probs)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("score not deterministic (-first +second):\n%s", diff)
	}
}

func TestScoreCriticalMalware(t *testing.T) {
	r := NewCoordinator(DefaultConfig()).Score(0.9, "Malware", 0.9, nil)

	require.Equal(t, models.RiskCritical, r.RiskLevel)
	require.Equal(t, models.PriorityP0, r.AlertPriority)
	require.True(t, r.RequiresAlert)
	require.Equal(t, models.CategoryMalware, r.ThreatCategory)
	require.Equal(t, "Immediate investigation required", r.SuggestedAction)
	require.InDelta(t, 1.0, r.CombinedRiskScore, 1e-9)

	want := []string{
		"Classified as Malware with 90.0% confidence",
		"High anomaly score (0.90)",
		"Risk boosted: severe threat with anomalous behavior",
		"Priority P0: critical risk level",
	}
	if diff := cmp.Diff(want, r.Reasoning); diff != "" {
		t.Fatalf("reasoning mismatch (-want +got):\n%s", diff)
	}
}

func TestScoreConfidentBenign(t *testing.T) {
	r := NewCoordinator(DefaultConfig()).Score(0.2, "Benign", 0.9, nil)

	require.Equal(t, models.RiskLow, r.RiskLevel)
	require.Equal(t, models.PriorityP4, r.AlertPriority)
	require.False(t, r.RequiresAlert)
	require.Equal(t, "Monitor", r.SuggestedAction)
	require.InDelta(t, 0.04, r.CombinedRiskScore, 1e-9)
	require.Equal(t, []string{"Risk reduced: confident benign with normal behavior"}, r.Reasoning)
}

func TestScoreLowConfidenceNote(t *testing.T) {
	r := NewCoordinator(DefaultConfig()).Score(0.6, "BruteForce", 0.3, nil)

	require.Equal(t, "Low classification confidence (30.0%)", r.Reasoning[0])
	require.Equal(t, "Moderate anomaly score (0.60)", r.Reasoning[1])
	require.InDelta(t, 0.35, r.ContributingFactors["classification_contribution"], 1e-9)
	require.InDelta(t, 0.45, r.CombinedRiskScore, 1e-9)
}

func TestPriorityTableOrder(t *testing.T) {
	c := NewCoordinator(DefaultConfig())

	tests := []struct {
		name       string
		level      models.RiskLevel
		category   models.ThreatCategory
		confidence float64
		want       models.AlertPriority
	}{
		{"critical wins regardless of category", models.RiskCritical, models.CategoryBenign, 0.1, models.PriorityP0},
		{"high severe is P1", models.RiskHigh, models.CategoryExfiltration, 0.1, models.PriorityP1},
		{"high other is P2", models.RiskHigh, models.CategoryDDoS, 0.99, models.PriorityP2},
		{"medium confident is P3", models.RiskMedium, models.CategoryBruteForce, 0.7, models.PriorityP3},
		{"medium unsure is P4", models.RiskMedium, models.CategoryBruteForce, 0.69, models.PriorityP4},
		{"low is P4", models.RiskLow, models.CategoryMalware, 1.0, models.PriorityP4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := c.priority(tt.level, tt.category, tt.confidence)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestScoreHighRiskActions(t *testing.T) {
	c := NewCoordinator(DefaultConfig())

	// 0.4*1.0 + 0.6*(0.7*1.0) = 0.82 is critical, so lower the anomaly.
	r := c.Score(0.6, "BruteForce", 1.0, nil)
	require.Equal(t, models.RiskHigh, r.RiskLevel)
	require.Equal(t, models.PriorityP2, r.AlertPriority)
	require.True(t, r.RequiresAlert)
	require.Equal(t, "Verify account status and block source", r.SuggestedAction)

	r = c.Score(0.9, "DDoS", 0.9, nil)
	require.Equal(t, models.RiskHigh, r.RiskLevel)
	require.Equal(t, "Apply rate limiting and monitor", r.SuggestedAction)
}

func TestScoreUnknownLabel(t *testing.T) {
	r := NewCoordinator(DefaultConfig()).Score(0.5, "PortScan", 0.8, nil)
	require.Equal(t, models.CategoryUnknown, r.ThreatCategory)
	require.Equal(t, "PortScan", r.Classification)
	require.InDelta(t, 0.5, r.ContributingFactors["threat_severity"], 1e-9)
}

func TestScoreClampsInputs(t *testing.T) {
	r := NewCoordinator(DefaultConfig()).Score(3, "Exfiltration", -1, nil)
	require.Equal(t, 1.0, r.AnomalyScore)
	require.Equal(t, 0.0, r.ClassConfidence)
	require.LessOrEqual(t, r.CombinedRiskScore, 1.0)
	require.GreaterOrEqual(t, r.CombinedRiskScore, 0.0)
}

func TestScoreCopiesProbabilities(t *testing.T) {
	probs := map[string]float64{"DDoS": 0.7}
	r := NewCoordinator(DefaultConfig()).Score(0.1, "DDoS", 0.7, probs)
	probs["DDoS"] = 0
	require.Equal(t, 0.7, r.ClassProbabilities["DDoS"])
}
