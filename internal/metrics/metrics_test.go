package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCountersRecord(t *testing.T) {
	m := New()
	m.LineAccepted()
	m.LineAccepted()
	m.LineDropped(DropOverflow)
	m.AlertGenerated("P0-Critical")

	require.Equal(t, 2.0, testutil.ToFloat64(m.LinesAccepted))
	require.Equal(t, 1.0, testutil.ToFloat64(m.LinesDropped.WithLabelValues(DropOverflow)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.AlertsGenerated.WithLabelValues("P0-Critical")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.LineAccepted()
	m.LineDropped(DropShutdown)
	m.BatchSent()
	m.BatchFailed()
	m.SetBufferSize(3)
	m.RecordAnalyzed("Low")
	m.RecordFailed()
	m.RecordSuppressed()
	m.AlertGenerated("P2-Medium")
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.BatchSent()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "soccopilot_batches_sent_total 1"))
}
