package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/matchsim/internal/engine"
	"github.com/stitts-dev/matchsim/internal/sweep"
	"github.com/stitts-dev/matchsim/pkg/config"
	"github.com/stitts-dev/matchsim/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	structuredLogger := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	log := logger.WithService("matchsim-sweep")
	log.WithFields(logrus.Fields{
		"population": cfg.PopulationSize,
		"ticks":      cfg.SweepTicks,
		"seed":       cfg.Seed,
	}).Info("Starting parameter sweep")

	spec := sweep.RunSpec{
		BaseConfig: cfg.EngineConfig(),
		Seed:       cfg.Seed,
		Population: cfg.PopulationSize,
		Ticks:      cfg.SweepTicks,
		Variations: buildVariations(cfg, log),
	}

	report, err := sweep.NewRunner(structuredLogger).Run(spec)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode report: %v", err)
	}

	if cfg.SweepOutput != "" {
		if err := os.WriteFile(cfg.SweepOutput, data, 0o644); err != nil {
			log.Fatalf("Failed to write report: %v", err)
		}
		log.WithField("path", cfg.SweepOutput).Info("Sweep report written")
		return
	}
	fmt.Println(string(data))
}

// buildVariations expands the configured skill-rate and geo-weight lists
// into sweep points, always anchored by the baseline.
func buildVariations(cfg *config.Config, log *logrus.Entry) []sweep.Variation {
	variations := []sweep.Variation{{Name: "baseline"}}

	for _, s := range cfg.SweepSkillRates {
		rate, err := strconv.ParseFloat(s, 64)
		if err != nil {
			log.WithField("value", s).Warn("Skipping unparseable skill rate")
			continue
		}
		r := rate
		variations = append(variations, sweep.Variation{
			Name: fmt.Sprintf("skill_similarity_rate=%g", r),
			Mutate: func(c *engine.Config) {
				c.SkillSimilarityRate = r
			},
		})
	}

	for _, s := range cfg.SweepGeoWeights {
		weight, err := strconv.ParseFloat(s, 64)
		if err != nil {
			log.WithField("value", s).Warn("Skipping unparseable geo weight")
			continue
		}
		w := weight
		variations = append(variations, sweep.Variation{
			Name: fmt.Sprintf("weight_geo=%g", w),
			Mutate: func(c *engine.Config) {
				c.WeightGeo = w
			},
		})
	}

	return variations
}
