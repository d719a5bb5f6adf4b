package sweep

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/matchsim/internal/engine"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func TestRun_ProducesOneResultPerVariation(t *testing.T) {
	spec := RunSpec{
		BaseConfig: engine.DefaultConfig(),
		Seed:       0xC0D,
		Population: 1000,
		Ticks:      40,
		Variations: []Variation{
			{Name: "baseline"},
			{Name: "tight", Mutate: func(c *engine.Config) {
				c.SkillSimilarityInitial = 0.01
			}},
		},
	}

	report, err := NewRunner(testLogger()).Run(spec)
	require.NoError(t, err)
	require.Len(t, report.Results, 2)

	assert.NotEmpty(t, report.SweepID)
	assert.NotEqual(t, report.Results[0].RunID, report.Results[1].RunID)
	assert.Equal(t, "baseline", report.Results[0].Variation)
	assert.Equal(t, "tight", report.Results[1].Variation)

	for _, r := range report.Results {
		assert.Equal(t, int64(0xC0D), r.Seed)
		assert.Equal(t, 40, r.Ticks)
		assert.GreaterOrEqual(t, r.TotalMatches, int64(0))
		assert.GreaterOrEqual(t, r.BlowoutRate, 0.0)
		assert.LessOrEqual(t, r.BlowoutRate, 1.0)
	}
}

func TestRun_RejectsEmptySpec(t *testing.T) {
	_, err := NewRunner(testLogger()).Run(RunSpec{
		BaseConfig: engine.DefaultConfig(),
		Population: 10,
		Ticks:      1,
	})
	assert.Error(t, err)
}

func TestRun_VariationsDoNotLeakIntoBase(t *testing.T) {
	base := engine.DefaultConfig()
	spec := RunSpec{
		BaseConfig: base,
		Seed:       7,
		Population: 200,
		Ticks:      5,
		Variations: []Variation{
			{Name: "mutated", Mutate: func(c *engine.Config) { c.WeightGeo = 99 }},
			{Name: "baseline"},
		},
	}

	_, err := NewRunner(testLogger()).Run(spec)
	require.NoError(t, err)
	assert.Equal(t, base.WeightGeo, spec.BaseConfig.WeightGeo,
		"mutations act on per-run copies only")
}

func TestRun_SameSeedIsReproducible(t *testing.T) {
	spec := RunSpec{
		BaseConfig: engine.DefaultConfig(),
		Seed:       0xC0D,
		Population: 800,
		Ticks:      30,
		Variations: []Variation{{Name: "baseline"}},
	}

	r1, err := NewRunner(testLogger()).Run(spec)
	require.NoError(t, err)
	r2, err := NewRunner(testLogger()).Run(spec)
	require.NoError(t, err)

	a, b := r1.Results[0], r2.Results[0]
	assert.Equal(t, a.TotalMatches, b.TotalMatches)
	assert.Equal(t, a.SearchTimeMean, b.SearchTimeMean)
	assert.Equal(t, a.DeltaPingMean, b.DeltaPingMean)
	assert.Equal(t, a.SkillDisparityMean, b.SkillDisparityMean)
}
