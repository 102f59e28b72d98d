package models

import "fmt"

// RiskLevel is an ordered severity band derived from the combined risk score.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

var riskLevelNames = [...]string{"Low", "Medium", "High", "Critical"}

func (r RiskLevel) String() string {
	if r < RiskLow || r > RiskCritical {
		return fmt.Sprintf("RiskLevel(%d)", int(r))
	}
	return riskLevelNames[r]
}

// MarshalText encodes the level as its display name.
func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a display name.
func (r *RiskLevel) UnmarshalText(b []byte) error {
	for i, name := range riskLevelNames {
		if name == string(b) {
			*r = RiskLevel(i)
			return nil
		}
	}
	return fmt.Errorf("unknown risk level %q", string(b))
}

// AlertPriority orders alerts by urgency. Higher values are more urgent,
// so the zero value is the least urgent priority.
type AlertPriority int

const (
	PriorityP4 AlertPriority = iota
	PriorityP3
	PriorityP2
	PriorityP1
	PriorityP0
)

var priorityNames = [...]string{"P4-Info", "P3-Low", "P2-Medium", "P1-High", "P0-Critical"}

func (p AlertPriority) String() string {
	if p < PriorityP4 || p > PriorityP0 {
		return fmt.Sprintf("AlertPriority(%d)", int(p))
	}
	return priorityNames[p]
}

// AtLeast reports whether p is as urgent as o or more.
func (p AlertPriority) AtLeast(o AlertPriority) bool {
	return p >= o
}

// MarshalText encodes the priority as its display name.
func (p AlertPriority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a display name.
func (p *AlertPriority) UnmarshalText(b []byte) error {
	for i, name := range priorityNames {
		if name == string(b) {
			*p = AlertPriority(i)
			return nil
		}
	}
	return fmt.Errorf("unknown alert priority %q", string(b))
}

// ThreatCategory is the SOC category a classification label maps to.
type ThreatCategory string

const (
	CategoryBenign       ThreatCategory = "Benign"
	CategoryDDoS         ThreatCategory = "DDoS"
	CategoryBruteForce   ThreatCategory = "BruteForce"
	CategoryMalware      ThreatCategory = "Malware"
	CategoryExfiltration ThreatCategory = "Exfiltration"
	CategoryUnknown      ThreatCategory = "Unknown"
)

// Classification is the output of a supervised classifier for one record.
type Classification struct {
	Label         string             `json:"label"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
}

// FeatureVector is a fixed-order numeric vector. Index order is defined by
// the extractor that produced it.
type FeatureVector []float64

// EnsembleResult is the risk assessment for one analyzed record.
type EnsembleResult struct {
	AnomalyScore        float64            `json:"anomaly_score"`
	Classification      string             `json:"classification"`
	ClassConfidence     float64            `json:"class_confidence"`
	ClassProbabilities  map[string]float64 `json:"class_probabilities,omitempty"`
	CombinedRiskScore   float64            `json:"combined_risk_score"`
	RiskLevel           RiskLevel          `json:"risk_level"`
	AlertPriority       AlertPriority      `json:"alert_priority"`
	Reasoning           []string           `json:"reasoning"`
	ContributingFactors map[string]float64 `json:"contributing_factors,omitempty"`
	RequiresAlert       bool               `json:"requires_alert"`
	SuggestedAction     string             `json:"suggested_action"`
	ThreatCategory      ThreatCategory     `json:"threat_category"`
}
