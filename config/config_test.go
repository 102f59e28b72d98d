package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soccopilot.yml")
	data := `
soccopilot:
  ingestion:
    batch_interval: 5s
    max_buffer_size: 200
    files: [/var/log/auth.log]
    directories:
      - path: /var/log/app
        pattern: "*.log"
    redis:
      enabled: true
      key: soc_lines
  killswitch:
    file: /tmp/soc.kill
  ensemble:
    anomaly_weight: 0.3
    risk_critical: 0.9
  analysis:
    workers: 8
    include_mitre: false
  alerts:
    output:
      mode: redis
      redis:
        addr: 127.0.0.1:6379
        key: soc_alerts
        max_len: 5000
  logging:
    enabled: true
    level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	c := cfg.SOCCopilot
	require.Equal(t, 5*time.Second, c.Ingestion.BatchInterval)
	require.Equal(t, 200, c.Ingestion.MaxBufferSize)
	require.Equal(t, []string{"/var/log/auth.log"}, c.Ingestion.Files)
	require.Equal(t, []DirectoryConfig{{Path: "/var/log/app", Pattern: "*.log"}}, c.Ingestion.Directories)
	require.True(t, c.Ingestion.Redis.Enabled)
	require.Equal(t, "/tmp/soc.kill", c.KillSwitch.File)
	require.Equal(t, 0.3, c.Ensemble.AnomalyWeight)
	require.Equal(t, 0.9, c.Ensemble.RiskCritical)
	require.Equal(t, 8, c.Analysis.Workers)
	require.NotNil(t, c.Analysis.IncludeMITRE)
	require.False(t, *c.Analysis.IncludeMITRE)
	require.Equal(t, "redis", c.Alerts.Output.Mode)
	require.Equal(t, int64(5000), c.Alerts.Output.Redis.MaxLen)
	require.Equal(t, "debug", c.Logging.Level)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}
