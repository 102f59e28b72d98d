package resultclickhouse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"soccopilot/internal/logger"
	"soccopilot/pkg/models"
)

// Config configures the ClickHouse HTTP writer.
type Config struct {
	URL      string
	Database string
	Table    string
	Username string
	Password string
	Timeout  time.Duration
	Headers  map[string]string
}

// Writer sends analysis rows to ClickHouse via HTTP JSONEachRow.
type Writer struct {
	endpoint string
	headers  map[string]string
	client   *http.Client
}

// row is the ClickHouse column layout. Enum-like fields are flattened to
// strings and timestamps to unix milliseconds.
type row struct {
	TS                int64   `json:"ts"`
	ArrivedAt         int64   `json:"arrived_at"`
	Source            string  `json:"source"`
	Classification    string  `json:"classification"`
	ClassConfidence   float64 `json:"class_confidence"`
	AnomalyScore      float64 `json:"anomaly_score"`
	CombinedRiskScore float64 `json:"combined_risk_score"`
	RiskLevel         string  `json:"risk_level"`
	Priority          string  `json:"priority"`
	ThreatCategory    string  `json:"threat_category"`
	AlertID           string  `json:"alert_id"`
	SrcIP             string  `json:"src_ip"`
	DstIP             string  `json:"dst_ip"`
}

// NewWriter creates a ClickHouse HTTP writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("clickhouse URL is empty")
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.Table == "" {
		cfg.Table = "soc_analysis"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	q := fmt.Sprintf("INSERT INTO %s.%s FORMAT JSONEachRow", quoteIdent(cfg.Database), quoteIdent(cfg.Table))
	base := strings.TrimRight(cfg.URL, "/")
	endpoint := base + "/?query=" + url.QueryEscape(q)

	headers := map[string]string{}
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	if cfg.Username != "" {
		headers["X-ClickHouse-User"] = cfg.Username
	}
	if cfg.Password != "" {
		headers["X-ClickHouse-Key"] = cfg.Password
	}

	logger.Infof("Result ClickHouse writer initialized: %s.%s", cfg.Database, cfg.Table)
	return &Writer{
		endpoint: endpoint,
		headers:  headers,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// WriteRecords sends a batch of analysis rows.
func (w *Writer) WriteRecords(records []*models.AnalysisRecord) error {
	if len(records) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, rec := range records {
		if rec == nil {
			continue
		}
		if err := enc.Encode(toRow(rec)); err != nil {
			return fmt.Errorf("failed to marshal analysis row: %w", err)
		}
	}
	if body.Len() == 0 {
		return nil
	}

	req, err := http.NewRequest(http.MethodPost, w.endpoint, &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("clickhouse request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("clickhouse request failed with status %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return nil
}

// Close releases resources.
func (w *Writer) Close() error {
	return nil
}

func toRow(rec *models.AnalysisRecord) row {
	return row{
		TS:                unixMilli(rec.Timestamp),
		ArrivedAt:         unixMilli(rec.ArrivedAt),
		Source:            rec.Source,
		Classification:    rec.Classification,
		ClassConfidence:   rec.ClassConfidence,
		AnomalyScore:      rec.AnomalyScore,
		CombinedRiskScore: rec.CombinedRiskScore,
		RiskLevel:         rec.RiskLevel.String(),
		Priority:          rec.Priority.String(),
		ThreatCategory:    string(rec.ThreatCategory),
		AlertID:           rec.AlertID,
		SrcIP:             rec.SrcIP,
		DstIP:             rec.DstIP,
	}
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func quoteIdent(v string) string {
	if v == "" {
		return ""
	}
	v = strings.ReplaceAll(v, "`", "")
	return "`" + v + "`"
}
