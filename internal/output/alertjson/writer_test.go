package alertjson

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"soccopilot/pkg/models"
)

func TestWriteAlertsOneLinePerAlert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "alerts.jsonl")
	w, err := NewWriter(path)
	require.NoError(t, err)

	alerts := []*models.Alert{
		{AlertID: "a-1", Priority: models.PriorityP0, RiskLevel: models.RiskCritical, ThreatCategory: models.CategoryMalware},
		nil,
		{AlertID: "a-2", Priority: models.PriorityP2, RiskLevel: models.RiskHigh, ThreatCategory: models.CategoryDDoS},
	}
	require.NoError(t, w.WriteAlerts(alerts))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var got []models.Alert
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var a models.Alert
		require.NoError(t, json.Unmarshal(sc.Bytes(), &a))
		got = append(got, a)
	}
	require.NoError(t, sc.Err())
	require.Len(t, got, 2)
	require.Equal(t, "a-1", got[0].AlertID)
	require.Equal(t, models.PriorityP0, got[0].Priority)
	require.Equal(t, models.RiskHigh, got[1].RiskLevel)
}

func TestWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.jsonl")
	for _, id := range []string{"first", "second"} {
		w, err := NewWriter(path)
		require.NoError(t, err)
		require.NoError(t, w.WriteAlerts([]*models.Alert{{AlertID: id}}))
		require.NoError(t, w.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"alert_id":"first"`)
	require.Contains(t, string(data), `"alert_id":"second"`)
}

func TestNewWriterRejectsEmptyPath(t *testing.T) {
	_, err := NewWriter("")
	require.Error(t, err)
}
