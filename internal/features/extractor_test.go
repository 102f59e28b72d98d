package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"soccopilot/pkg/models"
)

func TestExtractFixedOrder(t *testing.T) {
	e := NewExtractor()
	rec := &models.LogRecord{
		Raw:       "AB12-",
		Timestamp: time.Date(2024, 1, 1, 14, 5, 0, 0, time.UTC),
		Fields:    map[string]interface{}{"message": "AB12-", "action": "deny"},
		Network:   models.NetworkContext{SourceIP: "10.0.0.1", DestinationPort: 22},
	}

	vec, err := e.Extract(rec)
	require.NoError(t, err)
	require.Len(t, vec, len(e.Names()))
	require.Equal(t, models.FeatureVector{5, 2, 0.4, 0.4, 0.2, 0, 22, 1, 0, 14}, vec)
}

func TestExtractEmptyRecord(t *testing.T) {
	vec, err := NewExtractor().Extract(&models.LogRecord{})
	require.NoError(t, err)
	for _, v := range vec {
		require.Zero(t, v)
	}
}

func TestNamesIsACopy(t *testing.T) {
	e := NewExtractor()
	n := e.Names()
	n[0] = "changed"
	require.Equal(t, "line_length", e.Names()[0])
}
