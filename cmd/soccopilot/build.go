package main

import (
	"fmt"
	"strings"

	"soccopilot/config"
	"soccopilot/internal/alerts"
	"soccopilot/internal/ensemble"
	"soccopilot/internal/features"
	"soccopilot/internal/ingest"
	"soccopilot/internal/killswitch"
	"soccopilot/internal/logger"
	"soccopilot/internal/metrics"
	"soccopilot/internal/model/httpmodel"
	"soccopilot/internal/output/alerthttp"
	"soccopilot/internal/output/alertjson"
	"soccopilot/internal/output/alertredis"
	"soccopilot/internal/output/resultclickhouse"
	"soccopilot/internal/output/resultjson"
	"soccopilot/internal/pipeline"
	"soccopilot/internal/results"
	"soccopilot/internal/rules"
)

// closers collects resources released on shutdown, in reverse order.
type closers []func() error

func (c *closers) add(fn func() error) {
	*c = append(*c, fn)
}

func (c closers) closeAll() {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			logger.Warnf("Close failed: %v", err)
		}
	}
}

func buildKillSwitch(cfg *config.Config, cl *closers) (killswitch.Switch, error) {
	kc := cfg.SOCCopilot.KillSwitch
	switches := []killswitch.Switch{killswitch.NewFile(kc.File)}
	if kc.Redis.Enabled {
		rs, err := killswitch.NewRedis(killswitch.RedisConfig{
			Addr:     kc.Redis.Addr,
			Password: kc.Redis.Password,
			DB:       kc.Redis.DB,
			Key:      kc.Redis.Key,
			Timeout:  kc.Redis.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis kill switch: %w", err)
		}
		cl.add(rs.Close)
		switches = append(switches, rs)
		logger.Infof("Kill switch: file=%s redis=%s/%s", kc.File, kc.Redis.Addr, kc.Redis.Key)
	} else {
		logger.Infof("Kill switch: file=%s", kc.File)
	}
	return killswitch.Any(switches...), nil
}

func ensembleConfig(ec config.EnsembleConfig) ensemble.Config {
	return ensemble.Config{
		AnomalyWeight:        ec.AnomalyWeight,
		ClassificationWeight: ec.ClassificationWeight,
		AnomalyMedium:        ec.AnomalyMedium,
		AnomalyHigh:          ec.AnomalyHigh,
		ConfidenceMedium:     ec.ConfidenceMedium,
		ConfidenceHigh:       ec.ConfidenceHigh,
		MinClassConfidence:   ec.MinClassConfidence,
		RiskLow:              ec.RiskLow,
		RiskMedium:           ec.RiskMedium,
		RiskHigh:             ec.RiskHigh,
		RiskCritical:         ec.RiskCritical,
	}
}

// buildModels picks the anomaly scorer and the classifier. The model sidecar
// serves both when configured; Sigma rules replace the classifier when
// enabled; otherwise every record is Benign with a static anomaly score.
func buildModels(cfg *config.Config, cl *closers) (pipeline.AnomalyScorer, pipeline.Classifier, error) {
	sc := cfg.SOCCopilot
	var anomaly pipeline.AnomalyScorer = pipeline.StaticAnomaly(sc.Models.DefaultAnomaly)
	var classifier pipeline.Classifier = rules.NoopClassifier{Confidence: sc.Rules.BenignConfidence}

	if strings.TrimSpace(sc.Models.URL) != "" {
		client, err := httpmodel.NewClient(httpmodel.Config{
			URL:     sc.Models.URL,
			Timeout: sc.Models.Timeout,
			Headers: sc.Models.Headers,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create model client: %w", err)
		}
		cl.add(client.Close)
		anomaly = client
		classifier = client
		logger.Infof("Model sidecar: %s", sc.Models.URL)
	} else {
		logger.Infof("No model sidecar configured; static anomaly score %.2f", sc.Models.DefaultAnomaly)
	}

	if sc.Rules.Enabled {
		if strings.TrimSpace(sc.Rules.Path) == "" {
			logger.Warnf("Rules enabled but rules.path is empty; Sigma classification disabled")
		} else {
			sigma, stats, err := rules.NewSigmaClassifier(sc.Rules.Path, rules.SigmaOptions{
				BenignConfidence: sc.Rules.BenignConfidence,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("load sigma rules: %w", err)
			}
			logger.Infof("Sigma rules loaded: loaded=%d skipped_complex=%d skipped_datasource=%d skipped_invalid=%d files=%d",
				stats.Loaded,
				stats.SkippedComplex,
				stats.SkippedDatasource,
				stats.SkippedInvalid,
				stats.TotalFiles,
			)
			if stats.Loaded == 0 {
				logger.Warnf("No compatible Sigma rules loaded; every record will classify as Benign")
			}
			classifier = sigma
		}
	}
	return anomaly, classifier, nil
}

func buildAlertWriter(cfg *config.Config) (pipeline.AlertWriter, error) {
	out := cfg.SOCCopilot.Alerts.Output
	switch out.Mode {
	case "file":
		w, err := alertjson.NewWriter(out.File.Path)
		if err != nil {
			return nil, fmt.Errorf("create alert file writer: %w", err)
		}
		logger.Infof("Alert output mode: file (%s)", out.File.Path)
		return w, nil
	case "http":
		w, err := alerthttp.NewWriter(alerthttp.Config{
			URL:     out.HTTP.URL,
			Timeout: out.HTTP.Timeout,
			Headers: out.HTTP.Headers,
		})
		if err != nil {
			return nil, fmt.Errorf("create alert HTTP writer: %w", err)
		}
		logger.Infof("Alert output mode: http (%s)", out.HTTP.URL)
		return w, nil
	case "redis":
		w, err := alertredis.NewWriter(alertredis.Config{
			Addr:     out.Redis.Addr,
			Password: out.Redis.Password,
			DB:       out.Redis.DB,
			Key:      out.Redis.Key,
			MaxLen:   out.Redis.MaxLen,
		})
		if err != nil {
			return nil, fmt.Errorf("create alert Redis writer: %w", err)
		}
		logger.Infof("Alert output mode: redis (%s/%s)", out.Redis.Addr, out.Redis.Key)
		return w, nil
	default:
		return nil, fmt.Errorf("unknown alert output mode: %s", out.Mode)
	}
}

func buildResultWriter(cfg *config.Config) (pipeline.ResultWriter, error) {
	rc := cfg.SOCCopilot.Results
	if !rc.Enabled {
		return nil, nil
	}
	switch rc.Output.Mode {
	case "file":
		w, err := resultjson.NewWriter(rc.Output.File.Path)
		if err != nil {
			return nil, fmt.Errorf("create result file writer: %w", err)
		}
		logger.Infof("Result output mode: file (%s)", rc.Output.File.Path)
		return w, nil
	case "clickhouse":
		ch := rc.Output.ClickHouse
		w, err := resultclickhouse.NewWriter(resultclickhouse.Config{
			URL:      ch.URL,
			Database: ch.Database,
			Table:    ch.Table,
			Username: ch.Username,
			Password: ch.Password,
			Timeout:  ch.Timeout,
			Headers:  ch.Headers,
		})
		if err != nil {
			return nil, fmt.Errorf("create result ClickHouse writer: %w", err)
		}
		logger.Infof("Result output mode: clickhouse (%s/%s.%s)", ch.URL, ch.Database, ch.Table)
		return w, nil
	default:
		return nil, fmt.Errorf("unknown result output mode: %s", rc.Output.Mode)
	}
}

// analyzerDeps are optional sinks and hooks for buildAnalyzer.
type analyzerDeps struct {
	alerts     pipeline.AlertWriter
	results    pipeline.ResultWriter
	killswitch func() bool
	metrics    *metrics.Metrics
}

func buildAnalyzer(cfg *config.Config, cl *closers, deps analyzerDeps) (*pipeline.Analyzer, error) {
	sc := cfg.SOCCopilot
	anomaly, classifier, err := buildModels(cfg, cl)
	if err != nil {
		return nil, err
	}
	opts := pipeline.AnalyzerOptions{
		Extractor:    features.NewExtractor(),
		Anomaly:      anomaly,
		Classifier:   classifier,
		Coordinator:  ensemble.NewCoordinator(ensembleConfig(sc.Ensemble)),
		Generator:    alerts.NewGenerator(*sc.Analysis.IncludeMITRE),
		Dedup:        ensemble.NewDeduplicator(sc.Analysis.BenignCooldown),
		Store:        results.NewStore(sc.Analysis.ResultStoreSize),
		KillSwitch:   deps.killswitch,
		Metrics:      deps.metrics,
		Workers:      sc.Analysis.Workers,
		AlertWriter:  deps.alerts,
		ResultWriter: deps.results,
	}
	return pipeline.NewAnalyzer(opts)
}

func controllerConfig(cfg *config.Config) ingest.Config {
	ic := cfg.SOCCopilot.Ingestion
	tailer := ingest.TailerConfig{
		PollInterval: ic.Tailer.PollInterval,
		MaxErrors:    ic.Tailer.MaxErrors,
	}
	return ingest.Config{
		BatchInterval: ic.BatchInterval,
		MaxBufferSize: ic.MaxBufferSize,
		FlushTick:     ic.FlushTick,
		Tailer:        tailer,
		Watcher: ingest.WatcherConfig{
			PollInterval: ic.Watcher.PollInterval,
			MaxErrors:    ic.Watcher.MaxErrors,
			Tailer:       tailer,
		},
	}
}
