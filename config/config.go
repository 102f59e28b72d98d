package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	SOCCopilot SOCCopilotConfig `yaml:"soccopilot"`
}

// SOCCopilotConfig is the project configuration.
type SOCCopilotConfig struct {
	Ingestion  IngestionConfig  `yaml:"ingestion"`
	KillSwitch KillSwitchConfig `yaml:"killswitch"`
	Models     ModelsConfig     `yaml:"models"`
	Rules      RulesConfig      `yaml:"rules"`
	Ensemble   EnsembleConfig   `yaml:"ensemble"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Results    ResultsConfig    `yaml:"results"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// IngestionConfig controls sources and micro-batching.
type IngestionConfig struct {
	BatchInterval time.Duration     `yaml:"batch_interval"`
	MaxBufferSize int               `yaml:"max_buffer_size"`
	FlushTick     time.Duration     `yaml:"flush_tick"`
	Files         []string          `yaml:"files"`
	Directories   []DirectoryConfig `yaml:"directories"`
	Tailer        TailerConfig      `yaml:"tailer"`
	Watcher       WatcherConfig     `yaml:"watcher"`
	Redis         RedisInputConfig  `yaml:"redis"`
}

// DirectoryConfig names a watched directory.
type DirectoryConfig struct {
	Path    string `yaml:"path"`
	Pattern string `yaml:"pattern"`
}

// TailerConfig controls file tailers.
type TailerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxErrors    int           `yaml:"max_errors"`
}

// WatcherConfig controls directory watchers.
type WatcherConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxErrors    int           `yaml:"max_errors"`
}

// RedisInputConfig controls the Redis list source.
type RedisInputConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Key          string        `yaml:"key"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// KillSwitchConfig controls the global halt flag.
type KillSwitchConfig struct {
	File  string            `yaml:"file"`
	Redis RedisSwitchConfig `yaml:"redis"`
}

// RedisSwitchConfig controls the Redis-backed kill switch.
type RedisSwitchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Key      string        `yaml:"key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ModelsConfig controls the model sidecar.
type ModelsConfig struct {
	URL            string            `yaml:"url"`
	Timeout        time.Duration     `yaml:"timeout"`
	Headers        map[string]string `yaml:"headers"`
	DefaultAnomaly float64           `yaml:"default_anomaly"`
}

// RulesConfig controls the Sigma classifier.
type RulesConfig struct {
	Enabled          bool    `yaml:"enabled"`
	Path             string  `yaml:"path"`
	BenignConfidence float64 `yaml:"benign_confidence"`
}

// EnsembleConfig holds coordinator weights and thresholds.
type EnsembleConfig struct {
	AnomalyWeight        float64 `yaml:"anomaly_weight"`
	ClassificationWeight float64 `yaml:"classification_weight"`
	AnomalyMedium        float64 `yaml:"anomaly_medium"`
	AnomalyHigh          float64 `yaml:"anomaly_high"`
	ConfidenceMedium     float64 `yaml:"confidence_medium"`
	ConfidenceHigh       float64 `yaml:"confidence_high"`
	MinClassConfidence   float64 `yaml:"min_class_confidence"`
	RiskLow              float64 `yaml:"risk_low"`
	RiskMedium           float64 `yaml:"risk_medium"`
	RiskHigh             float64 `yaml:"risk_high"`
	RiskCritical         float64 `yaml:"risk_critical"`
}

// AnalysisConfig controls the batch consumer.
type AnalysisConfig struct {
	Workers         int           `yaml:"workers"`
	BenignCooldown  time.Duration `yaml:"benign_cooldown"`
	IncludeMITRE    *bool         `yaml:"include_mitre"`
	ResultStoreSize int           `yaml:"result_store_size"`
}

// AlertsConfig controls alert output.
type AlertsConfig struct {
	Output AlertOutputConfig `yaml:"output"`
}

// AlertOutputConfig selects the alert sink.
type AlertOutputConfig struct {
	Mode  string            `yaml:"mode"` // file|http|redis
	File  FileOutputConfig  `yaml:"file"`
	HTTP  HTTPOutputConfig  `yaml:"http"`
	Redis RedisOutputConfig `yaml:"redis"`
}

// ResultsConfig controls per-record analysis rows.
type ResultsConfig struct {
	Enabled bool               `yaml:"enabled"`
	Output  ResultOutputConfig `yaml:"output"`
}

// ResultOutputConfig selects the analysis row sink.
type ResultOutputConfig struct {
	Mode       string                 `yaml:"mode"` // file|clickhouse
	File       FileOutputConfig       `yaml:"file"`
	ClickHouse ClickHouseOutputConfig `yaml:"clickhouse"`
}

// ClickHouseOutputConfig config for ClickHouse HTTP JSONEachRow writes.
type ClickHouseOutputConfig struct {
	URL      string            `yaml:"url"`
	Database string            `yaml:"database"`
	Table    string            `yaml:"table"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	Timeout  time.Duration     `yaml:"timeout"`
	Headers  map[string]string `yaml:"headers"`
}

// FileOutputConfig config for local JSON output.
type FileOutputConfig struct {
	Path string `yaml:"path"`
}

// HTTPOutputConfig config for remote output.
type HTTPOutputConfig struct {
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// RedisOutputConfig config for a capped Redis list.
type RedisOutputConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
	MaxLen   int64  `yaml:"max_len"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
	JSON    bool   `yaml:"json"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
