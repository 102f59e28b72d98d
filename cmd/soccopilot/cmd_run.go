package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"soccopilot/internal/ingest"
	inputredis "soccopilot/internal/input/redis"
	"soccopilot/internal/killswitch"
	"soccopilot/internal/logger"
	"soccopilot/internal/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Tail configured sources and analyze batches until interrupted",
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, configPath, err := loadConfig(rootFlags.config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := initLogger(cfg); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Infof("SOC Copilot starting (version %s)", version)
	if configPath != "" {
		logger.Infof("Config loaded from: %s", configPath)
	} else {
		logger.Warnf("No config file found; running with defaults")
	}

	sc := cfg.SOCCopilot
	var cl closers
	defer cl.closeAll()

	var m *metrics.Metrics
	var metricsServer *http.Server
	if sc.Metrics.Enabled {
		m = metrics.New()
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsServer = &http.Server{Addr: sc.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("Metrics server error: %v", err)
			}
		}()
		logger.Infof("Metrics listening on %s/metrics", sc.Metrics.Listen)
	}

	sw, err := buildKillSwitch(cfg, &cl)
	if err != nil {
		return err
	}
	kill := killswitch.Func(sw)

	alertWriter, err := buildAlertWriter(cfg)
	if err != nil {
		return err
	}
	resultWriter, err := buildResultWriter(cfg)
	if err != nil {
		_ = alertWriter.Close()
		return err
	}

	analyzer, err := buildAnalyzer(cfg, &cl, analyzerDeps{
		alerts:     alertWriter,
		results:    resultWriter,
		killswitch: kill,
		metrics:    m,
	})
	if err != nil {
		_ = alertWriter.Close()
		if resultWriter != nil {
			_ = resultWriter.Close()
		}
		return err
	}
	cl.add(analyzer.Close)

	ctrl := ingest.NewController(controllerConfig(cfg), kill, m)
	for _, path := range sc.Ingestion.Files {
		ctrl.AddFileSource(path)
	}
	for _, dir := range sc.Ingestion.Directories {
		ctrl.AddDirectorySource(dir.Path, dir.Pattern)
	}
	if sc.Ingestion.Redis.Enabled {
		src, err := inputredis.NewListSource(inputredis.Config{
			Addr:         sc.Ingestion.Redis.Addr,
			Password:     sc.Ingestion.Redis.Password,
			DB:           sc.Ingestion.Redis.DB,
			Key:          sc.Ingestion.Redis.Key,
			BlockTimeout: sc.Ingestion.Redis.BlockTimeout,
		}, ctrl.OnLine)
		if err != nil {
			return fmt.Errorf("create Redis list source: %w", err)
		}
		ctrl.AddSource(src)
	}
	ctrl.SetBatchCallback(analyzer.ProcessBatch)

	if !ctrl.Start() {
		ctrl.Stop()
		return fmt.Errorf("ingestion did not start; see log for details")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Infof("Shutting down")
	ctrl.Stop()

	stats := ctrl.Stats()
	as := analyzer.Stats()
	logger.Infof("Ingestion stopped: lines=%d batches=%d errors=%d dropped=%d",
		stats.LinesProcessed, stats.BatchesSent, stats.Errors, stats.Buffer.DroppedCount)
	logger.Infof("Analysis totals: analyzed=%d alerts=%d suppressed=%d errors=%d skipped_batches=%d",
		as.Analyzed, as.Alerts, as.Suppressed, as.Errors, as.SkippedBatches)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("Metrics server shutdown: %v", err)
		}
	}

	logger.Infof("SOC Copilot stopped")
	return nil
}
