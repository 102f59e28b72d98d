package alerthttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"soccopilot/pkg/models"
)

type receivedEnvelope struct {
	Count       int                  `json:"count"`
	MaxPriority models.AlertPriority `json:"max_priority"`
	ByPriority  map[string]int       `json:"by_priority"`
	Alerts      []models.Alert       `json:"alerts"`
}

func TestWriteAlertsPostsEnvelope(t *testing.T) {
	var got receivedEnvelope
	var token, maxHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		token = r.Header.Get("X-Token")
		maxHeader = r.Header.Get(maxPriorityHeader)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	w, err := NewWriter(Config{URL: srv.URL, Headers: map[string]string{"X-Token": "secret"}})
	require.NoError(t, err)
	require.NoError(t, w.WriteAlerts([]*models.Alert{
		{AlertID: "a-1", Priority: models.PriorityP2},
		nil,
		{AlertID: "a-2", Priority: models.PriorityP1},
		{AlertID: "a-3", Priority: models.PriorityP2},
	}))

	require.Equal(t, "secret", token)
	require.Equal(t, "P1-High", maxHeader)
	require.Equal(t, 3, got.Count)
	require.Equal(t, models.PriorityP1, got.MaxPriority)
	require.Equal(t, map[string]int{"P1-High": 1, "P2-Medium": 2}, got.ByPriority)
	require.Len(t, got.Alerts, 3)
	require.Equal(t, "a-2", got.Alerts[1].AlertID)
}

func TestBuildEnvelopeSingleLowPriority(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	env := buildEnvelope([]*models.Alert{{Priority: models.PriorityP4}}, now)
	require.Equal(t, models.PriorityP4, env.MaxPriority)
	require.Equal(t, now, env.SentAt)

	env = buildEnvelope([]*models.Alert{nil}, now)
	require.Zero(t, env.Count)
}

func TestWriteAlertsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "queue full", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	w, err := NewWriter(Config{URL: srv.URL})
	require.NoError(t, err)
	err = w.WriteAlerts([]*models.Alert{{AlertID: "a-1"}})
	require.ErrorContains(t, err, "queue full")
}

func TestWriteAlertsEmptyBatchIsNoop(t *testing.T) {
	w, err := NewWriter(Config{URL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	require.NoError(t, w.WriteAlerts(nil))
	require.NoError(t, w.WriteAlerts([]*models.Alert{nil}))
}

func TestNewWriterRequiresURL(t *testing.T) {
	_, err := NewWriter(Config{})
	require.Error(t, err)
}
