package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"soccopilot/internal/ensemble"
	"soccopilot/pkg/models"
)

// fieldExtractor forwards the "anomaly" field so fakeScorer can return it.
type fieldExtractor struct{}

func (fieldExtractor) Extract(rec *models.LogRecord) (models.FeatureVector, error) {
	v, _ := rec.Fields["anomaly"].(float64)
	return models.FeatureVector{v}, nil
}

type vectorScorer struct{}

func (vectorScorer) ScoreAnomaly(_ context.Context, vec models.FeatureVector) (float64, error) {
	return vec[0], nil
}

// fieldClassifier reads label and confidence from the record itself.
type fieldClassifier struct{}

func (fieldClassifier) Classify(_ context.Context, rec *models.LogRecord, _ models.FeatureVector) (models.Classification, error) {
	label, _ := rec.Fields["label"].(string)
	if label == "" {
		return models.Classification{}, errors.New("no label")
	}
	conf, _ := rec.Fields["confidence"].(float64)
	return models.Classification{Label: label, Confidence: conf}, nil
}

type memoryAlerts struct {
	mu     sync.Mutex
	alerts []*models.Alert
	err    error
	closed bool
}

func (m *memoryAlerts) WriteAlerts(alerts []*models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alerts...)
	return m.err
}

func (m *memoryAlerts) Close() error {
	m.closed = true
	return nil
}

type memoryRows struct {
	rows   []*models.AnalysisRecord
	closed bool
}

func (m *memoryRows) WriteRecords(rows []*models.AnalysisRecord) error {
	m.rows = append(m.rows, rows...)
	return nil
}

func (m *memoryRows) Close() error {
	m.closed = true
	return nil
}

func newTestAnalyzer(t *testing.T, opts AnalyzerOptions) *Analyzer {
	t.Helper()
	opts.Extractor = fieldExtractor{}
	opts.Anomaly = vectorScorer{}
	opts.Classifier = fieldClassifier{}
	a, err := NewAnalyzer(opts)
	require.NoError(t, err)
	return a
}

func line(text string) models.RawLine {
	return models.RawLine{Source: "test.log", Text: text, ArrivedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
}

func TestNewAnalyzerRequiresModels(t *testing.T) {
	_, err := NewAnalyzer(AnalyzerOptions{Extractor: fieldExtractor{}})
	require.Error(t, err)
}

func TestAnalyzeMixedBatch(t *testing.T) {
	alertSink := &memoryAlerts{}
	rowSink := &memoryRows{}
	a := newTestAnalyzer(t, AnalyzerOptions{AlertWriter: alertSink, ResultWriter: rowSink, Workers: 2})

	batch := []models.RawLine{
		line(`{"label":"Malware","confidence":0.9,"anomaly":0.9,"src_ip":"10.0.0.5"}`),
		line(`{"label":"Benign","confidence":0.9,"anomaly":0.2,"src_ip":"10.0.0.7"}`),
		line(`{"label":"Benign","confidence":0.9,"anomaly":0.2,"src_ip":"10.0.0.7"}`),
		line("   "),
		line(`{"confidence":0.5}`),
	}

	res, err := a.Analyze(context.Background(), batch)
	require.NoError(t, err)
	require.NotEmpty(t, res.BatchID)
	require.Equal(t, 5, res.RecordCount)
	require.Equal(t, 3, res.AnalyzedCount)
	require.Equal(t, 2, res.ErrorCount)
	require.Equal(t, 1, res.SuppressedCount)
	require.Equal(t, map[string]int{"Critical": 1, "Low": 2}, res.RiskDistribution)
	require.Equal(t, map[string]int{"Malware": 1, "Benign": 2}, res.ClassDistribution)

	require.Len(t, res.Alerts, 1)
	require.Equal(t, models.PriorityP0, res.Alerts[0].Priority)
	require.Equal(t, "10.0.0.5", res.Alerts[0].Network.SourceIP)
	require.Len(t, alertSink.alerts, 1)

	require.Len(t, rowSink.rows, 2)
	require.Equal(t, res.Alerts[0].AlertID, rowSink.rows[0].AlertID)
	require.Equal(t, "Benign", rowSink.rows[1].Classification)
	require.Empty(t, rowSink.rows[1].AlertID)

	stored, ok := a.Store().ByID(res.BatchID)
	require.True(t, ok)
	require.Equal(t, 3, stored.AnalyzedCount)

	stats := a.Stats()
	require.Equal(t, uint64(1), stats.Batches)
	require.Equal(t, uint64(3), stats.Analyzed)
	require.Equal(t, uint64(2), stats.Errors)
	require.Equal(t, uint64(1), stats.Suppressed)
	require.Equal(t, uint64(1), stats.Alerts)
}

func TestAlertsAreNeverSuppressed(t *testing.T) {
	a := newTestAnalyzer(t, AnalyzerOptions{Dedup: ensemble.NewDeduplicator(time.Hour)})
	text := `{"label":"Malware","confidence":0.9,"anomaly":0.9,"src_ip":"10.0.0.5"}`

	res, err := a.Analyze(context.Background(), []models.RawLine{line(text), line(text), line(text)})
	require.NoError(t, err)
	require.Len(t, res.Alerts, 3)
	require.Zero(t, res.SuppressedCount)
}

func TestAnalyzeKeepsInputOrder(t *testing.T) {
	a := newTestAnalyzer(t, AnalyzerOptions{Workers: 8})
	var batch []models.RawLine
	labels := []string{"Malware", "Exfiltration", "Malware", "Exfiltration", "Malware", "Exfiltration"}
	for _, l := range labels {
		batch = append(batch, line(`{"label":"`+l+`","confidence":0.9,"anomaly":0.9}`))
	}

	res, err := a.Analyze(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, res.Alerts, len(labels))
	for i, alert := range res.Alerts {
		require.Equal(t, labels[i], alert.Classification)
	}
}

func TestAnalyzeReturnsWriterErrors(t *testing.T) {
	sink := &memoryAlerts{err: errors.New("sink down")}
	a := newTestAnalyzer(t, AnalyzerOptions{AlertWriter: sink})

	res, err := a.Analyze(context.Background(), []models.RawLine{
		line(`{"label":"Malware","confidence":0.9,"anomaly":0.9}`),
	})
	require.ErrorContains(t, err, "sink down")
	require.Equal(t, 1, a.Store().Count())
	require.Len(t, res.Alerts, 1)
}

func TestProcessBatchSkipsWhenKilled(t *testing.T) {
	killed := true
	sink := &memoryAlerts{}
	a := newTestAnalyzer(t, AnalyzerOptions{AlertWriter: sink, KillSwitch: func() bool { return killed }})
	batch := []models.RawLine{line(`{"label":"Malware","confidence":0.9,"anomaly":0.9}`)}

	require.NoError(t, a.ProcessBatch(batch))
	require.Empty(t, sink.alerts)
	require.Equal(t, uint64(1), a.Stats().SkippedBatches)
	require.Zero(t, a.Store().Count())

	killed = false
	require.NoError(t, a.ProcessBatch(batch))
	require.Len(t, sink.alerts, 1)
}

func TestDedupCleanupRuns(t *testing.T) {
	dedup := ensemble.NewDeduplicator(time.Minute)
	a := newTestAnalyzer(t, AnalyzerOptions{Dedup: dedup, CleanupEvery: 2, CleanupMaxAge: time.Nanosecond})

	_, err := a.Analyze(context.Background(), []models.RawLine{
		line(`{"label":"Benign","confidence":0.9,"anomaly":0.2,"src_ip":"10.0.0.1"}`),
		line(`{"label":"Benign","confidence":0.9,"anomaly":0.2,"src_ip":"10.0.0.2"}`),
	})
	require.NoError(t, err)
	require.Equal(t, 0, dedup.Len())
}

func TestScoreLine(t *testing.T) {
	a := newTestAnalyzer(t, AnalyzerOptions{})
	rec, res, err := a.ScoreLine(context.Background(), line(`{"label":"Benign","confidence":0.9,"anomaly":0.2}`))
	require.NoError(t, err)
	require.Equal(t, "test.log", rec.Source)
	require.Equal(t, models.RiskLow, res.RiskLevel)

	_, _, err = a.ScoreLine(context.Background(), line(""))
	require.Error(t, err)
}

func TestStaticAnomaly(t *testing.T) {
	v, err := StaticAnomaly(0.3).ScoreAnomaly(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 0.3, v)
}

func TestCloseClosesWriters(t *testing.T) {
	alertSink := &memoryAlerts{}
	rowSink := &memoryRows{}
	a := newTestAnalyzer(t, AnalyzerOptions{AlertWriter: alertSink, ResultWriter: rowSink})
	require.NoError(t, a.Close())
	require.True(t, alertSink.closed)
	require.True(t, rowSink.closed)
}
