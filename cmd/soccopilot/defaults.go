package main

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"soccopilot/config"
	"soccopilot/internal/ensemble"
	"soccopilot/internal/logger"
)

const defaultConfigName = "soccopilot.yml"

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat(defaultConfigName); err == nil {
		return defaultConfigName
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, defaultConfigName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return defaultConfigName
}

// loadConfig resolves, reads and defaults the config. A missing file yields
// an all-default config so that `score` works without one.
func loadConfig(configArg string) (*config.Config, string, error) {
	path := findConfigFile(configArg)
	cfg, err := config.LoadConfig(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, path, err
		}
		cfg = &config.Config{}
		path = ""
	}
	applyDefaults(cfg)
	return cfg, path, nil
}

func initLogger(cfg *config.Config) error {
	lc := cfg.SOCCopilot.Logging
	return logger.Init(logger.Options{
		Enabled: lc.Enabled,
		Level:   lc.Level,
		File:    lc.File,
		Console: lc.Console,
		JSON:    lc.JSON,
	})
}

func applyDefaults(cfg *config.Config) {
	sc := &cfg.SOCCopilot

	if sc.Ingestion.BatchInterval <= 0 {
		sc.Ingestion.BatchInterval = 5 * time.Second
	}
	if sc.Ingestion.MaxBufferSize <= 0 {
		sc.Ingestion.MaxBufferSize = 10000
	}
	if sc.Ingestion.FlushTick <= 0 {
		sc.Ingestion.FlushTick = 500 * time.Millisecond
	}
	if sc.Ingestion.Tailer.PollInterval <= 0 {
		sc.Ingestion.Tailer.PollInterval = 100 * time.Millisecond
	}
	if sc.Ingestion.Tailer.MaxErrors <= 0 {
		sc.Ingestion.Tailer.MaxErrors = 10
	}
	if sc.Ingestion.Watcher.PollInterval <= 0 {
		sc.Ingestion.Watcher.PollInterval = 2 * time.Second
	}
	if sc.Ingestion.Watcher.MaxErrors <= 0 {
		sc.Ingestion.Watcher.MaxErrors = 5
	}
	for i := range sc.Ingestion.Directories {
		if sc.Ingestion.Directories[i].Pattern == "" {
			sc.Ingestion.Directories[i].Pattern = "*.log"
		}
	}
	if sc.Ingestion.Redis.Addr == "" {
		sc.Ingestion.Redis.Addr = "127.0.0.1:6379"
	}
	if sc.Ingestion.Redis.Key == "" {
		sc.Ingestion.Redis.Key = "soc_lines"
	}
	if sc.Ingestion.Redis.BlockTimeout <= 0 {
		sc.Ingestion.Redis.BlockTimeout = 5 * time.Second
	}

	if sc.KillSwitch.File == "" {
		sc.KillSwitch.File = ".kill"
	}
	if sc.KillSwitch.Redis.Addr == "" {
		sc.KillSwitch.Redis.Addr = "127.0.0.1:6379"
	}
	if sc.KillSwitch.Redis.Key == "" {
		sc.KillSwitch.Redis.Key = "soccopilot:killswitch"
	}
	if sc.KillSwitch.Redis.Timeout <= 0 {
		sc.KillSwitch.Redis.Timeout = 500 * time.Millisecond
	}

	if sc.Models.Timeout <= 0 {
		sc.Models.Timeout = 5 * time.Second
	}
	if sc.Rules.BenignConfidence <= 0 {
		sc.Rules.BenignConfidence = 0.9
	}

	def := ensemble.DefaultConfig()
	setFloat(&sc.Ensemble.AnomalyWeight, def.AnomalyWeight)
	setFloat(&sc.Ensemble.ClassificationWeight, def.ClassificationWeight)
	setFloat(&sc.Ensemble.AnomalyMedium, def.AnomalyMedium)
	setFloat(&sc.Ensemble.AnomalyHigh, def.AnomalyHigh)
	setFloat(&sc.Ensemble.ConfidenceMedium, def.ConfidenceMedium)
	setFloat(&sc.Ensemble.ConfidenceHigh, def.ConfidenceHigh)
	setFloat(&sc.Ensemble.MinClassConfidence, def.MinClassConfidence)
	setFloat(&sc.Ensemble.RiskLow, def.RiskLow)
	setFloat(&sc.Ensemble.RiskMedium, def.RiskMedium)
	setFloat(&sc.Ensemble.RiskHigh, def.RiskHigh)
	setFloat(&sc.Ensemble.RiskCritical, def.RiskCritical)

	if sc.Analysis.Workers <= 0 {
		sc.Analysis.Workers = 4
	}
	if sc.Analysis.BenignCooldown <= 0 {
		sc.Analysis.BenignCooldown = 60 * time.Second
	}
	if sc.Analysis.IncludeMITRE == nil {
		include := true
		sc.Analysis.IncludeMITRE = &include
	}
	if sc.Analysis.ResultStoreSize <= 0 {
		sc.Analysis.ResultStoreSize = 1000
	}

	if sc.Alerts.Output.Mode == "" {
		sc.Alerts.Output.Mode = "file"
	}
	if sc.Alerts.Output.File.Path == "" {
		sc.Alerts.Output.File.Path = "output/alerts.jsonl"
	}
	if sc.Alerts.Output.Redis.Addr == "" {
		sc.Alerts.Output.Redis.Addr = "127.0.0.1:6379"
	}
	if sc.Alerts.Output.Redis.Key == "" {
		sc.Alerts.Output.Redis.Key = "soccopilot:alerts"
	}

	if sc.Results.Output.Mode == "" {
		sc.Results.Output.Mode = "file"
	}
	if sc.Results.Output.File.Path == "" {
		sc.Results.Output.File.Path = "output/analysis.jsonl"
	}
	if sc.Results.Output.ClickHouse.Database == "" {
		sc.Results.Output.ClickHouse.Database = "soccopilot"
	}
	if sc.Results.Output.ClickHouse.Table == "" {
		sc.Results.Output.ClickHouse.Table = "soc_analysis"
	}

	if sc.Metrics.Listen == "" {
		sc.Metrics.Listen = ":9108"
	}

	if sc.Logging.Level == "" {
		sc.Logging.Level = "info"
	}
	if !sc.Logging.Enabled && sc.Logging.File == "" && !sc.Logging.Console {
		sc.Logging.Enabled = true
		sc.Logging.Console = true
	}
}

func setFloat(dst *float64, def float64) {
	if *dst <= 0 {
		*dst = def
	}
}
