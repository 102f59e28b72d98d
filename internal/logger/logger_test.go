package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

func TestLevelsAreFiltered(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	Use(zap.New(core))
	t.Cleanup(func() { Use(nil) })

	Debugf("debug %d", 1)
	Infof("info %d", 2)
	Warnf("warn %d", 3)
	Errorf("error %d", 4)

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, "warn 3", entries[0].Message)
	require.Equal(t, "error 4", entries[1].Message)
}

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "soc.log")
	require.NoError(t, Init(Options{Enabled: true, Level: "debug", File: path}))
	t.Cleanup(func() { Use(nil) })

	Infof("tailer started path=%s", "/var/log/auth.log")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "tailer started path=/var/log/auth.log"))
}

func TestDisabledLoggerIsNoop(t *testing.T) {
	require.NoError(t, Init(Options{Enabled: false}))
	Errorf("dropped")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, zapcore.WarnLevel, parseLevel("WARNING"))
	require.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	require.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}
