package httpmodel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"soccopilot/pkg/models"
)

func newSidecar(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/anomaly", func(w http.ResponseWriter, r *http.Request) {
		var req featuresRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		json.NewEncoder(w).Encode(map[string]float64{"score": req.Features[0] / 10})
	})
	mux.HandleFunc("/classify", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"label":         "BruteForce",
			"confidence":    0.82,
			"probabilities": map[string]float64{"BruteForce": 0.82, "Benign": 0.18},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientScoresAndClassifies(t *testing.T) {
	srv := newSidecar(t)
	c, err := NewClient(Config{URL: srv.URL + "/", Headers: map[string]string{"X-Api-Key": "secret"}})
	require.NoError(t, err)
	defer c.Close()

	score, err := c.ScoreAnomaly(context.Background(), models.FeatureVector{7, 1})
	require.NoError(t, err)
	require.InDelta(t, 0.7, score, 1e-9)

	cls, err := c.Classify(context.Background(), nil, models.FeatureVector{7, 1})
	require.NoError(t, err)
	require.Equal(t, "BruteForce", cls.Label)
	require.Equal(t, 0.82, cls.Confidence)
	require.Equal(t, 0.18, cls.Probabilities["Benign"])
}

func TestClientReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewClient(Config{URL: srv.URL})
	require.NoError(t, err)

	_, err = c.ScoreAnomaly(context.Background(), models.FeatureVector{1})
	require.ErrorContains(t, err, "model not loaded")
}

func TestClientRejectsEmptyLabel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"confidence": 0.5}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{URL: srv.URL})
	require.NoError(t, err)
	_, err = c.Classify(context.Background(), nil, models.FeatureVector{1})
	require.Error(t, err)
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}
