package ensemble

import (
	"fmt"
	"math"

	"soccopilot/internal/logger"
	"soccopilot/pkg/models"
)

// Config holds weights and thresholds for ensemble scoring.
type Config struct {
	AnomalyWeight        float64
	ClassificationWeight float64

	AnomalyMedium float64
	AnomalyHigh   float64

	ConfidenceMedium   float64
	ConfidenceHigh     float64
	MinClassConfidence float64

	RiskLow      float64
	RiskMedium   float64
	RiskHigh     float64
	RiskCritical float64
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() Config {
	return Config{
		AnomalyWeight:        0.4,
		ClassificationWeight: 0.6,
		AnomalyMedium:        0.5,
		AnomalyHigh:          0.7,
		ConfidenceMedium:     0.7,
		ConfidenceHigh:       0.85,
		MinClassConfidence:   0.4,
		RiskLow:              0.25,
		RiskMedium:           0.45,
		RiskHigh:             0.65,
		RiskCritical:         0.80,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	fill := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&c.AnomalyWeight, d.AnomalyWeight)
	fill(&c.ClassificationWeight, d.ClassificationWeight)
	fill(&c.AnomalyMedium, d.AnomalyMedium)
	fill(&c.AnomalyHigh, d.AnomalyHigh)
	fill(&c.ConfidenceMedium, d.ConfidenceMedium)
	fill(&c.ConfidenceHigh, d.ConfidenceHigh)
	fill(&c.MinClassConfidence, d.MinClassConfidence)
	fill(&c.RiskLow, d.RiskLow)
	fill(&c.RiskMedium, d.RiskMedium)
	fill(&c.RiskHigh, d.RiskHigh)
	fill(&c.RiskCritical, d.RiskCritical)
	return c
}

// severity is the fixed weight of each category in the combined score.
var severity = map[models.ThreatCategory]float64{
	models.CategoryBenign:       0.0,
	models.CategoryDDoS:         0.6,
	models.CategoryBruteForce:   0.7,
	models.CategoryMalware:      0.9,
	models.CategoryExfiltration: 1.0,
	models.CategoryUnknown:      0.5,
}

// CategoryFor maps a classifier label to its threat category.
func CategoryFor(label string) models.ThreatCategory {
	switch models.ThreatCategory(label) {
	case models.CategoryBenign, models.CategoryDDoS, models.CategoryBruteForce,
		models.CategoryMalware, models.CategoryExfiltration:
		return models.ThreatCategory(label)
	default:
		return models.CategoryUnknown
	}
}

func isSevere(c models.ThreatCategory) bool {
	return c == models.CategoryMalware || c == models.CategoryExfiltration
}

// Coordinator combines an anomaly score and a classification into a risk
// assessment. It holds no state besides its configuration and is safe for
// concurrent use.
type Coordinator struct {
	cfg Config
}

// NewCoordinator creates a coordinator. Zero config fields take defaults.
func NewCoordinator(cfg Config) *Coordinator {
	return &Coordinator{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (c *Coordinator) Config() Config {
	return c.cfg
}

// Score computes the ensemble result for one record. Scores outside [0,1]
// are clamped.
func (c *Coordinator) Score(anomaly float64, label string, confidence float64, probabilities map[string]float64) models.EnsembleResult {
	anomaly = clamp01(anomaly)
	confidence = clamp01(confidence)

	result := models.EnsembleResult{
		AnomalyScore:       anomaly,
		Classification:     label,
		ClassConfidence:    confidence,
		ClassProbabilities: copyProbabilities(probabilities),
		ThreatCategory:     CategoryFor(label),
	}

	var reasoning []string
	sev := severity[result.ThreatCategory]

	var contribution float64
	if confidence >= c.cfg.MinClassConfidence {
		contribution = sev * confidence
		if result.ThreatCategory != models.CategoryBenign {
			reasoning = append(reasoning, fmt.Sprintf("Classified as %s with %.1f%% confidence", label, confidence*100))
		}
	} else {
		contribution = sev * 0.5
		reasoning = append(reasoning, fmt.Sprintf("Low classification confidence (%.1f%%)", confidence*100))
	}

	if anomaly >= c.cfg.AnomalyHigh {
		reasoning = append(reasoning, fmt.Sprintf("High anomaly score (%.2f)", anomaly))
	} else if anomaly >= c.cfg.AnomalyMedium {
		reasoning = append(reasoning, fmt.Sprintf("Moderate anomaly score (%.2f)", anomaly))
	}

	combined := c.cfg.AnomalyWeight*anomaly + c.cfg.ClassificationWeight*contribution

	if isSevere(result.ThreatCategory) && anomaly >= c.cfg.AnomalyMedium {
		combined = min(1.0, combined*1.2)
		reasoning = append(reasoning, "Risk boosted: severe threat with anomalous behavior")
	}
	if result.ThreatCategory == models.CategoryBenign && confidence >= c.cfg.ConfidenceHigh && anomaly < c.cfg.AnomalyMedium {
		combined *= 0.5
		reasoning = append(reasoning, "Risk reduced: confident benign with normal behavior")
	}
	combined = clamp01(combined)

	result.CombinedRiskScore = combined
	result.ContributingFactors = map[string]float64{
		"threat_severity":             sev,
		"classification_contribution": contribution,
		"anomaly_contribution":        anomaly,
	}
	result.RiskLevel = c.riskLevel(combined)

	priority, note := c.priority(result.RiskLevel, result.ThreatCategory, confidence)
	if note != "" {
		reasoning = append(reasoning, note)
	}
	result.AlertPriority = priority
	result.RequiresAlert = priority.AtLeast(models.PriorityP2)
	result.SuggestedAction = suggestedAction(result.RiskLevel, result.ThreatCategory)
	result.Reasoning = reasoning

	if result.ThreatCategory != models.CategoryBenign || result.RiskLevel != models.RiskLow {
		logger.Debugf("Ensemble score: risk=%.3f level=%s priority=%s label=%s",
			combined, result.RiskLevel, priority, label)
	}
	return result
}

func (c *Coordinator) riskLevel(combined float64) models.RiskLevel {
	switch {
	case combined >= c.cfg.RiskCritical:
		return models.RiskCritical
	case combined >= c.cfg.RiskHigh:
		return models.RiskHigh
	case combined >= c.cfg.RiskMedium:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// priority walks the decision table top to bottom; the first matching rule wins.
func (c *Coordinator) priority(level models.RiskLevel, category models.ThreatCategory, confidence float64) (models.AlertPriority, string) {
	switch {
	case level == models.RiskCritical:
		return models.PriorityP0, "Priority P0: critical risk level"
	case level == models.RiskHigh && isSevere(category):
		return models.PriorityP1, fmt.Sprintf("Priority P1: high risk %s threat", category)
	case level == models.RiskHigh:
		return models.PriorityP2, "Priority P2: high risk level"
	case level == models.RiskMedium && confidence >= c.cfg.ConfidenceMedium:
		return models.PriorityP3, "Priority P3: medium risk with confident classification"
	default:
		return models.PriorityP4, ""
	}
}

func suggestedAction(level models.RiskLevel, category models.ThreatCategory) string {
	switch level {
	case models.RiskCritical:
		return "Immediate investigation required"
	case models.RiskHigh:
		switch category {
		case models.CategoryMalware:
			return "Isolate endpoint and investigate"
		case models.CategoryExfiltration:
			return "Block connection and investigate data access"
		case models.CategoryBruteForce:
			return "Verify account status and block source"
		case models.CategoryDDoS:
			return "Apply rate limiting and monitor"
		}
		return "Investigate within 1 hour"
	case models.RiskMedium:
		return "Review and investigate if recurring"
	}
	return "Monitor"
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func copyProbabilities(p map[string]float64) map[string]float64 {
	if len(p) == 0 {
		return nil
	}
	out := make(map[string]float64, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
