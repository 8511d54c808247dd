package predictsdk_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/portal/pkg/predictsdk"
)

func modelServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /predict", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var in map[string]float64
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || len(in) != 4 {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad features"})
			return
		}
		if in["petal_length"] > 100 {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "petal_length out of range"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"species":           "setosa",
			"confidence":        0.97,
			"all_probabilities": map[string]float64{"setosa": 0.97, "versicolor": 0.02, "virginica": 0.01},
		})
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestPredict(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := predictsdk.NewClient(modelServer(t, &calls).URL)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		got, err := client.Predict(ctx, predictsdk.Features{SepalLength: 5.1, SepalWidth: 3.5, PetalLength: 1.4, PetalWidth: 0.2})
		require.NoError(t, err)
		require.Equal(t, "setosa", got.Species)
		require.InDelta(t, 0.97, got.Confidence, 1e-9)
		require.Len(t, got.AllProbabilities, 3)
	})

	t.Run("server rejects", func(t *testing.T) {
		_, err := client.Predict(ctx, predictsdk.Features{SepalLength: 5.1, SepalWidth: 3.5, PetalLength: 140, PetalWidth: 0.2})
		var perr *predictsdk.PredictError
		require.ErrorAs(t, err, &perr)
		require.Equal(t, http.StatusBadRequest, perr.StatusCode)
		require.Equal(t, "petal_length out of range", perr.Message)
	})

	t.Run("local validation", func(t *testing.T) {
		before := calls.Load()
		_, err := client.Predict(ctx, predictsdk.Features{SepalLength: 5.1, SepalWidth: -1, PetalLength: 1.4, PetalWidth: 0.2})
		require.ErrorIs(t, err, predictsdk.ErrInvalidFeatures)
		require.Equal(t, before, calls.Load(), "invalid features must not reach the server")
	})
}

func TestHealth(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := predictsdk.NewClient(modelServer(t, &calls).URL)

	got, err := client.Health(context.Background())
	require.NoError(t, err)
	require.Equal(t, "healthy", got.Status)
}
