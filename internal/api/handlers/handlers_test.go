package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/matchsim/internal/engine"
	"github.com/stitts-dev/matchsim/internal/runner"
)

func setupTestRouter(t *testing.T) (*gin.Engine, context.CancelFunc) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	eng, err := engine.New(engine.DefaultConfig(), 42, nil)
	require.NoError(t, err)
	require.NoError(t, eng.GeneratePopulation(500))

	simRunner := runner.New(eng, nil, time.Millisecond, log)
	ctx, cancel := context.WithCancel(context.Background())
	go simRunner.Run(ctx)

	statsHandler := NewStatsHandler(simRunner, log)
	healthHandler := NewHealthHandler(log)

	router := gin.New()
	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/stats", statsHandler.GetStats)
		apiV1.GET("/stats/buckets", statsHandler.GetBucketStats)
		apiV1.GET("/histograms/skill", statsHandler.GetSkillDistribution)
		apiV1.GET("/histograms/search-time", statsHandler.GetSearchTimeHistogram)
		apiV1.GET("/histograms/delta-ping", statsHandler.GetDeltaPingHistogram)
		apiV1.GET("/timeseries", statsHandler.GetTimeSeries)
	}
	router.GET("/health", healthHandler.GetHealth)

	return router, cancel
}

func doGET(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	router.ServeHTTP(w, req)
	return w
}

func TestGetStats_ReturnsSnapshot(t *testing.T) {
	router, cancel := setupTestRouter(t)
	defer cancel()

	w := doGET(t, router, "/api/v1/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var snap engine.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))

	total := 0
	for _, c := range snap.CountsByState {
		total += c
	}
	assert.Equal(t, 500, total)
}

func TestGetBucketStats_RowPerBucket(t *testing.T) {
	router, cancel := setupTestRouter(t)
	defer cancel()

	w := doGET(t, router, "/api/v1/stats/buckets")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Buckets []engine.BucketStat `json:"buckets"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Buckets, engine.DefaultConfig().NumSkillBuckets)
}

func TestGetHistograms_ReturnBins(t *testing.T) {
	router, cancel := setupTestRouter(t)
	defer cancel()

	for _, path := range []string{
		"/api/v1/histograms/skill",
		"/api/v1/histograms/search-time",
		"/api/v1/histograms/delta-ping",
	} {
		w := doGET(t, router, path)
		require.Equal(t, http.StatusOK, w.Code, path)

		var body struct {
			Bins []engine.HistBin `json:"bins"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), path)
	}
}

func TestGetTimeSeries_GrowsWithTicks(t *testing.T) {
	router, cancel := setupTestRouter(t)
	defer cancel()

	// Give the runner time to advance a few ticks.
	time.Sleep(50 * time.Millisecond)

	w := doGET(t, router, "/api/v1/timeseries")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Series []engine.TickSnapshot `json:"series"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Series)
}

func TestGetHealth(t *testing.T) {
	router, cancel := setupTestRouter(t)
	defer cancel()

	w := doGET(t, router, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}
