package sweep

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/matchsim/internal/engine"
)

// Variation is one point of a parameter sweep: a label plus a mutation of
// the base engine configuration.
type Variation struct {
	Name   string
	Mutate func(*engine.Config)
}

// RunSpec describes a sweep: every variation is run against the same seed
// and population so results differ only by configuration.
type RunSpec struct {
	BaseConfig engine.Config
	Seed       int64
	Population int
	Ticks      int
	Variations []Variation
}

// RunResult is the summary of one simulated configuration
type RunResult struct {
	RunID     string `json:"run_id"`
	Variation string `json:"variation"`
	Seed      int64  `json:"seed"`
	Ticks     int    `json:"ticks"`
	ElapsedMs int64  `json:"elapsed_ms"`

	TotalMatches       int64   `json:"total_matches"`
	TotalBlowouts      int64   `json:"total_blowouts"`
	BlowoutRate        float64 `json:"blowout_rate"`
	SearchTimeMean     float64 `json:"search_time_mean"`
	SearchTimeP50      float64 `json:"search_time_p50"`
	SearchTimeP90      float64 `json:"search_time_p90"`
	SearchTimeP99      float64 `json:"search_time_p99"`
	DeltaPingMean      float64 `json:"delta_ping_mean"`
	DeltaPingP90       float64 `json:"delta_ping_p90"`
	SkillDisparityMean float64 `json:"skill_disparity_mean"`
}

// Report is the full output of a sweep, suitable for JSON export
type Report struct {
	SweepID    string      `json:"sweep_id"`
	Population int         `json:"population"`
	Ticks      int         `json:"ticks"`
	Results    []RunResult `json:"results"`
}

// Runner executes parameter sweeps
type Runner struct {
	logger *logrus.Logger
}

// NewRunner creates a sweep runner
func NewRunner(logger *logrus.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run executes every variation of the spec sequentially and collects the
// per-run summaries.
func (r *Runner) Run(spec RunSpec) (*Report, error) {
	if len(spec.Variations) == 0 {
		return nil, fmt.Errorf("sweep has no variations")
	}
	report := &Report{
		SweepID:    uuid.New().String(),
		Population: spec.Population,
		Ticks:      spec.Ticks,
	}

	for _, v := range spec.Variations {
		cfg := spec.BaseConfig
		if v.Mutate != nil {
			v.Mutate(&cfg)
		}

		result, err := r.runOne(cfg, spec, v.Name)
		if err != nil {
			return nil, fmt.Errorf("variation %q: %w", v.Name, err)
		}
		report.Results = append(report.Results, *result)
	}
	return report, nil
}

func (r *Runner) runOne(cfg engine.Config, spec RunSpec, name string) (*RunResult, error) {
	runID := uuid.New().String()
	log := r.logger.WithFields(logrus.Fields{
		"run_id":    runID,
		"variation": name,
	})
	log.Info("Starting sweep run")

	eng, err := engine.New(cfg, spec.Seed, nil)
	if err != nil {
		return nil, err
	}
	if err := eng.GeneratePopulation(spec.Population); err != nil {
		return nil, err
	}

	start := time.Now()
	for i := 0; i < spec.Ticks; i++ {
		if err := eng.Tick(); err != nil {
			return nil, err
		}
	}
	elapsed := time.Since(start)

	snap := eng.Stats()
	blowoutRate := 0.0
	if snap.TotalMatches > 0 {
		blowoutRate = float64(snap.TotalBlowouts) / float64(snap.TotalMatches)
	}

	log.WithFields(logrus.Fields{
		"total_matches": snap.TotalMatches,
		"elapsed":       elapsed,
	}).Info("Sweep run completed")

	return &RunResult{
		RunID:     runID,
		Variation: name,
		Seed:      spec.Seed,
		Ticks:     spec.Ticks,
		ElapsedMs: elapsed.Milliseconds(),

		TotalMatches:       snap.TotalMatches,
		TotalBlowouts:      snap.TotalBlowouts,
		BlowoutRate:        blowoutRate,
		SearchTimeMean:     snap.SearchTimeMean,
		SearchTimeP50:      snap.SearchTimeP50,
		SearchTimeP90:      snap.SearchTimeP90,
		SearchTimeP99:      snap.SearchTimeP99,
		DeltaPingMean:      snap.DeltaPingMean,
		DeltaPingP90:       snap.DeltaPingP90,
		SkillDisparityMean: snap.SkillDisparityMean,
	}, nil
}
