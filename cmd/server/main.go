package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/matchsim/internal/api/handlers"
	"github.com/stitts-dev/matchsim/internal/api/middleware"
	"github.com/stitts-dev/matchsim/internal/engine"
	"github.com/stitts-dev/matchsim/internal/runner"
	"github.com/stitts-dev/matchsim/internal/websocket"
	"github.com/stitts-dev/matchsim/pkg/config"
	"github.com/stitts-dev/matchsim/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	structuredLogger := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	logger.WithService("matchsim-server").WithFields(logrus.Fields{
		"environment": cfg.Env,
		"port":        cfg.Port,
		"seed":        cfg.Seed,
		"population":  cfg.PopulationSize,
	}).Info("Starting matchmaking simulation server")

	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	eng, err := engine.New(cfg.EngineConfig(), cfg.Seed, structuredLogger)
	if err != nil {
		logger.WithService("matchsim-server").Fatalf("Failed to create engine: %v", err)
	}
	if err := eng.GeneratePopulation(cfg.PopulationSize); err != nil {
		logger.WithService("matchsim-server").Fatalf("Failed to generate population: %v", err)
	}

	wsHub := websocket.NewHub(structuredLogger)
	go wsHub.Run()

	pace := time.Duration(cfg.TickPaceMillis) * time.Millisecond
	simRunner := runner.New(eng, wsHub, pace, structuredLogger)
	runCtx, stopRunner := context.WithCancel(context.Background())
	go simRunner.Run(runCtx)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	statsHandler := handlers.NewStatsHandler(simRunner, structuredLogger)
	healthHandler := handlers.NewHealthHandler(structuredLogger)

	apiV1 := router.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(cfg.RateLimitRPS))
	{
		apiV1.GET("/stats", statsHandler.GetStats)
		apiV1.GET("/stats/buckets", statsHandler.GetBucketStats)
		apiV1.GET("/histograms/skill", statsHandler.GetSkillDistribution)
		apiV1.GET("/histograms/search-time", statsHandler.GetSearchTimeHistogram)
		apiV1.GET("/histograms/delta-ping", statsHandler.GetDeltaPingHistogram)
		apiV1.GET("/timeseries", statsHandler.GetTimeSeries)
	}

	router.GET("/ws/ticks", wsHub.HandleWebSocket)
	router.GET("/health", healthHandler.GetHealth)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	go func() {
		logger.WithService("matchsim-server").WithField("port", cfg.Port).Info("Simulation server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithService("matchsim-server").Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.WithService("matchsim-server").Info("Shutting down simulation server...")
	stopRunner()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithService("matchsim-server").Fatalf("Simulation server forced to shutdown: %v", err)
	}

	logger.WithService("matchsim-server").Info("Simulation server exited")
}
