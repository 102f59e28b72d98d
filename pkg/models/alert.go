package models

import "time"

// AlertStatus tracks the analyst workflow state of an alert.
type AlertStatus string

const (
	AlertNew           AlertStatus = "New"
	AlertAcknowledged  AlertStatus = "Acknowledged"
	AlertInvestigating AlertStatus = "Investigating"
	AlertResolved      AlertStatus = "Resolved"
	AlertFalsePositive AlertStatus = "FalsePositive"
	AlertEscalated     AlertStatus = "Escalated"
)

// Alert is a prioritized, analyst-facing detection.
type Alert struct {
	AlertID                  string          `json:"alert_id"`
	Timestamp                time.Time       `json:"timestamp"`
	Priority                 AlertPriority   `json:"priority"`
	RiskLevel                RiskLevel       `json:"risk_level"`
	ThreatCategory           ThreatCategory  `json:"threat_category"`
	AnomalyScore             float64         `json:"anomaly_score"`
	ClassificationConfidence float64         `json:"classification_confidence"`
	CombinedRiskScore        float64         `json:"combined_risk_score"`
	Classification           string          `json:"classification"`
	Reasoning                []string        `json:"reasoning"`
	SuggestedAction          string          `json:"suggested_action"`
	MitreTactics             []string        `json:"mitre_tactics"`
	MitreTechniques          []string        `json:"mitre_techniques"`
	Network                  *NetworkContext `json:"network,omitempty"`
	Status                   AlertStatus     `json:"status"`
}

// NetworkContext carries the optional network fields of the source record.
type NetworkContext struct {
	SourceIP        string `json:"src_ip,omitempty"`
	DestinationIP   string `json:"dst_ip,omitempty"`
	SourcePort      int    `json:"src_port,omitempty"`
	DestinationPort int    `json:"dst_port,omitempty"`
	Protocol        string `json:"protocol,omitempty"`
	RecordID        string `json:"record_id,omitempty"`
}

// IsZero reports whether no network field is set.
func (n *NetworkContext) IsZero() bool {
	return n == nil || *n == NetworkContext{}
}
