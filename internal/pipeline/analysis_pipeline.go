package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"soccopilot/internal/alerts"
	"soccopilot/internal/ensemble"
	"soccopilot/internal/logger"
	"soccopilot/internal/metrics"
	"soccopilot/internal/results"
	"soccopilot/internal/transform/logline"
	"soccopilot/pkg/models"
)

// AnalyzerOptions wires the collaborators of an Analyzer. Extractor,
// Anomaly, Classifier, Coordinator and Generator are required.
type AnalyzerOptions struct {
	Extractor    FeatureExtractor
	Anomaly      AnomalyScorer
	Classifier   Classifier
	Coordinator  *ensemble.Coordinator
	Generator    *alerts.Generator
	Dedup        *ensemble.Deduplicator
	AlertWriter  AlertWriter
	ResultWriter ResultWriter
	Store        *results.Store
	KillSwitch   func() bool
	Metrics      *metrics.Metrics
	Workers      int

	// CleanupEvery is the number of analyzed records between dedup cleanups.
	CleanupEvery  int
	CleanupMaxAge time.Duration
}

// AnalyzerStats holds monotone analyzer counters.
type AnalyzerStats struct {
	Batches        uint64 `json:"batches"`
	SkippedBatches uint64 `json:"skipped_batches"`
	Analyzed       uint64 `json:"analyzed"`
	Errors         uint64 `json:"errors"`
	Suppressed     uint64 `json:"suppressed"`
	Alerts         uint64 `json:"alerts"`
}

// Analyzer consumes ingestion batches: parse, featurize, score, alert, write.
type Analyzer struct {
	opts AnalyzerOptions
	now  func() time.Time

	batches        atomic.Uint64
	skippedBatches atomic.Uint64
	analyzed       atomic.Uint64
	errors         atomic.Uint64
	suppressed     atomic.Uint64
	alerts         atomic.Uint64
}

type recordOutcome struct {
	rec    *models.LogRecord
	result models.EnsembleResult
	err    error
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(opts AnalyzerOptions) (*Analyzer, error) {
	if opts.Extractor == nil || opts.Anomaly == nil || opts.Classifier == nil {
		return nil, fmt.Errorf("extractor, anomaly scorer and classifier are required")
	}
	if opts.Coordinator == nil {
		opts.Coordinator = ensemble.NewCoordinator(ensemble.DefaultConfig())
	}
	if opts.Generator == nil {
		opts.Generator = alerts.NewGenerator(true)
	}
	if opts.Dedup == nil {
		opts.Dedup = ensemble.NewDeduplicator(0)
	}
	if opts.Store == nil {
		opts.Store = results.NewStore(0)
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.CleanupEvery <= 0 {
		opts.CleanupEvery = 1000
	}
	if opts.CleanupMaxAge <= 0 {
		opts.CleanupMaxAge = time.Hour
	}
	return &Analyzer{opts: opts, now: time.Now}, nil
}

// ProcessBatch analyzes one batch. Its signature matches ingest.BatchFunc.
func (a *Analyzer) ProcessBatch(batch []models.RawLine) error {
	if a.opts.KillSwitch != nil && a.opts.KillSwitch() {
		a.skippedBatches.Add(1)
		logger.Warnf("Kill switch active, skipping batch of %d lines", len(batch))
		return nil
	}
	_, err := a.Analyze(context.Background(), batch)
	return err
}

// Analyze scores every line of batch, writes alerts and analysis rows, and
// stores the batch summary. Record-level failures are counted, not returned.
func (a *Analyzer) Analyze(ctx context.Context, batch []models.RawLine) (results.BatchResult, error) {
	started := a.now()
	a.batches.Add(1)

	outcomes := make([]recordOutcome, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for i := range batch {
		i := i
		g.Go(func() error {
			outcomes[i] = a.analyzeOne(gctx, batch[i])
			return nil
		})
	}
	_ = g.Wait()

	summary := results.BatchResult{
		BatchID:           uuid.NewString(),
		ReceivedAt:        started,
		RecordCount:       len(batch),
		RiskDistribution:  make(map[string]int),
		ClassDistribution: make(map[string]int),
	}

	var alertsOut []*models.Alert
	var rows []*models.AnalysisRecord
	for i, out := range outcomes {
		if out.err != nil {
			summary.ErrorCount++
			a.errors.Add(1)
			a.opts.Metrics.RecordFailed()
			logger.Warnf("Record analysis failed: source=%s err=%v", batch[i].Source, out.err)
			continue
		}

		res := out.result
		summary.AnalyzedCount++
		summary.RiskDistribution[res.RiskLevel.String()]++
		summary.ClassDistribution[res.Classification]++
		a.opts.Metrics.RecordAnalyzed(res.RiskLevel.String())

		if !res.RequiresAlert {
			fp := ensemble.Fingerprint(res.Classification, res.AnomalyScore, out.rec.Network.SourceIP)
			if !a.opts.Dedup.ShouldProcess(fp) {
				summary.SuppressedCount++
				a.suppressed.Add(1)
				a.opts.Metrics.RecordSuppressed()
				continue
			}
		}

		network := out.rec.Network
		alert := a.opts.Generator.Generate(res, &network)
		row := analysisRow(out.rec, res)
		if alert != nil {
			row.AlertID = alert.AlertID
			alertsOut = append(alertsOut, alert)
			a.alerts.Add(1)
			a.opts.Metrics.AlertGenerated(alert.Priority.String())
		}
		rows = append(rows, row)
	}
	summary.Alerts = alertsOut
	a.recordAnalyzed(summary.AnalyzedCount)

	var errs []error
	if a.opts.AlertWriter != nil && len(alertsOut) > 0 {
		if err := a.opts.AlertWriter.WriteAlerts(alertsOut); err != nil {
			errs = append(errs, fmt.Errorf("write alerts: %w", err))
		}
	}
	if a.opts.ResultWriter != nil && len(rows) > 0 {
		if err := a.opts.ResultWriter.WriteRecords(rows); err != nil {
			errs = append(errs, fmt.Errorf("write analysis rows: %w", err))
		}
	}

	summary.ProcessingTime = a.now().Sub(started)
	a.opts.Store.Add(summary)

	logger.Infof("Batch analyzed: id=%s records=%d analyzed=%d alerts=%d suppressed=%d errors=%d took=%s",
		summary.BatchID, summary.RecordCount, summary.AnalyzedCount, len(alertsOut),
		summary.SuppressedCount, summary.ErrorCount, summary.ProcessingTime)
	return summary, errors.Join(errs...)
}

// ScoreLine analyzes a single line without dedup or writers.
func (a *Analyzer) ScoreLine(ctx context.Context, line models.RawLine) (*models.LogRecord, models.EnsembleResult, error) {
	out := a.analyzeOne(ctx, line)
	return out.rec, out.result, out.err
}

// Stats returns analyzer counters.
func (a *Analyzer) Stats() AnalyzerStats {
	return AnalyzerStats{
		Batches:        a.batches.Load(),
		SkippedBatches: a.skippedBatches.Load(),
		Analyzed:       a.analyzed.Load(),
		Errors:         a.errors.Load(),
		Suppressed:     a.suppressed.Load(),
		Alerts:         a.alerts.Load(),
	}
}

// Store returns the batch result store.
func (a *Analyzer) Store() *results.Store {
	return a.opts.Store
}

// Close releases writers.
func (a *Analyzer) Close() error {
	if a.opts.AlertWriter != nil {
		if err := a.opts.AlertWriter.Close(); err != nil {
			logger.Errorf("Failed to close alert writer: %v", err)
		}
	}
	if a.opts.ResultWriter != nil {
		if err := a.opts.ResultWriter.Close(); err != nil {
			logger.Errorf("Failed to close result writer: %v", err)
		}
	}
	return nil
}

func (a *Analyzer) analyzeOne(ctx context.Context, line models.RawLine) recordOutcome {
	rec, err := logline.Parse(line)
	if err != nil {
		return recordOutcome{err: fmt.Errorf("parse: %w", err)}
	}
	vec, err := a.opts.Extractor.Extract(rec)
	if err != nil {
		return recordOutcome{rec: rec, err: fmt.Errorf("extract features: %w", err)}
	}
	anomaly, err := a.opts.Anomaly.ScoreAnomaly(ctx, vec)
	if err != nil {
		return recordOutcome{rec: rec, err: fmt.Errorf("anomaly score: %w", err)}
	}
	cls, err := a.opts.Classifier.Classify(ctx, rec, vec)
	if err != nil {
		return recordOutcome{rec: rec, err: fmt.Errorf("classify: %w", err)}
	}
	result := a.opts.Coordinator.Score(anomaly, cls.Label, cls.Confidence, cls.Probabilities)
	return recordOutcome{rec: rec, result: result}
}

func (a *Analyzer) recordAnalyzed(n int) {
	if n == 0 {
		return
	}
	every := uint64(a.opts.CleanupEvery)
	total := a.analyzed.Add(uint64(n))
	if total/every != (total-uint64(n))/every {
		if evicted := a.opts.Dedup.Cleanup(a.opts.CleanupMaxAge); evicted > 0 {
			logger.Debugf("Dedup cleanup evicted %d fingerprints", evicted)
		}
	}
}

func analysisRow(rec *models.LogRecord, res models.EnsembleResult) *models.AnalysisRecord {
	return &models.AnalysisRecord{
		Timestamp:         rec.Timestamp,
		ArrivedAt:         rec.ArrivedAt,
		Source:            rec.Source,
		Classification:    res.Classification,
		ClassConfidence:   res.ClassConfidence,
		AnomalyScore:      res.AnomalyScore,
		CombinedRiskScore: res.CombinedRiskScore,
		RiskLevel:         res.RiskLevel,
		Priority:          res.AlertPriority,
		ThreatCategory:    res.ThreatCategory,
		SrcIP:             rec.Network.SourceIP,
		DstIP:             rec.Network.DestinationIP,
	}
}
