package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/matchsim/internal/runner"
)

// StatsHandler serves the engine's read-only statistics accessors
type StatsHandler struct {
	runner *runner.Runner
	logger *logrus.Logger
}

// NewStatsHandler creates a stats handler over a running simulation
func NewStatsHandler(r *runner.Runner, logger *logrus.Logger) *StatsHandler {
	return &StatsHandler{runner: r, logger: logger}
}

// GetStats returns the aggregate snapshot
func (h *StatsHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.runner.Stats())
}

// GetBucketStats returns one row per skill bucket
func (h *StatsHandler) GetBucketStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"buckets": h.runner.BucketStats()})
}

// GetSkillDistribution returns the raw-skill histogram
func (h *StatsHandler) GetSkillDistribution(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"bins": h.runner.SkillDistribution()})
}

// GetSearchTimeHistogram returns the rolling search-time histogram
func (h *StatsHandler) GetSearchTimeHistogram(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"bins": h.runner.SearchTimeHistogram()})
}

// GetDeltaPingHistogram returns the rolling delta-ping histogram
func (h *StatsHandler) GetDeltaPingHistogram(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"bins": h.runner.DeltaPingHistogram()})
}

// GetTimeSeries returns the per-tick snapshot ring
func (h *StatsHandler) GetTimeSeries(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"series": h.runner.TimeSeries()})
}

// HealthHandler serves liveness probes
type HealthHandler struct {
	logger *logrus.Logger
}

// NewHealthHandler creates a health handler
func NewHealthHandler(logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{logger: logger}
}

// GetHealth reports service liveness
func (h *HealthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
