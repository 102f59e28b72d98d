package models

import "time"

// LogRecord is a parsed raw line.
type LogRecord struct {
	Source    string                 `json:"source"`
	Raw       string                 `json:"raw"`
	ArrivedAt time.Time              `json:"arrived_at"`
	Timestamp time.Time              `json:"ts"`
	Fields    map[string]interface{} `json:"fields"`
	Network   NetworkContext         `json:"network"`
}

// AnalysisRecord is a compact per-record row for result sinks.
type AnalysisRecord struct {
	Timestamp         time.Time      `json:"ts"`
	ArrivedAt         time.Time      `json:"arrived_at"`
	Source            string         `json:"source"`
	Classification    string         `json:"classification"`
	ClassConfidence   float64        `json:"class_confidence"`
	AnomalyScore      float64        `json:"anomaly_score"`
	CombinedRiskScore float64        `json:"combined_risk_score"`
	RiskLevel         RiskLevel      `json:"risk_level"`
	Priority          AlertPriority  `json:"priority"`
	ThreatCategory    ThreatCategory `json:"threat_category"`
	AlertID           string         `json:"alert_id,omitempty"`
	SrcIP             string         `json:"src_ip,omitempty"`
	DstIP             string         `json:"dst_ip,omitempty"`
}
