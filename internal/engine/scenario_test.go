package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runScenario drives a fresh engine for the given number of ticks and
// returns the final snapshot.
func runScenario(t *testing.T, cfg Config, ticks int) Snapshot {
	t.Helper()
	eng := newTestEngine(t, cfg, scenarioSeed, 5000)
	for i := 0; i < ticks; i++ {
		require.NoError(t, eng.Tick())
	}
	return eng.Stats()
}

func TestScenario_TightSBMM(t *testing.T) {
	if testing.Short() {
		t.Skip("long scenario run")
	}

	base := runScenario(t, DefaultConfig(), 500)

	tight := DefaultConfig()
	tight.SkillSimilarityInitial = 0.01
	tight.SkillSimilarityRate = 0.001
	tightSnap := runScenario(t, tight, 500)

	require.Greater(t, base.TotalMatches, int64(0))
	require.Greater(t, tightSnap.TotalMatches, int64(0))

	assert.Less(t, tightSnap.SkillDisparityMean, base.SkillDisparityMean,
		"tighter windows trade disparity down")
	assert.Greater(t, tightSnap.SearchTimeMean, base.SearchTimeMean,
		"tighter windows trade wait time up")
}

func TestScenario_PingFirst(t *testing.T) {
	if testing.Short() {
		t.Skip("long scenario run")
	}

	base := runScenario(t, DefaultConfig(), 500)

	pingFirst := DefaultConfig()
	pingFirst.WeightGeo = 0.8
	pingFirst.WeightSkill = 0.1
	pingSnap := runScenario(t, pingFirst, 500)

	require.Greater(t, pingSnap.TotalMatches, int64(0))
	assert.Less(t, pingSnap.DeltaPingMean, base.DeltaPingMean,
		"geo-weighted candidate ranking lowers delta ping")
}

func TestScenario_LongRunInvariants(t *testing.T) {
	if testing.Short() {
		t.Skip("long scenario run")
	}

	cfg := DefaultConfig()
	cfg.PartyPlayerFraction = 0.15
	cfg.EnableSkillEvolution = true
	eng := newTestEngine(t, cfg, scenarioSeed, 3000)

	for i := 0; i < 700; i++ {
		require.NoError(t, eng.Tick())
		if i%50 == 0 {
			require.NoError(t, eng.CheckInvariants(), "tick %d", i)
		}
	}
	require.NoError(t, eng.CheckInvariants())

	snap := eng.Stats()
	assert.Greater(t, snap.TotalMatches, int64(0))
	assert.GreaterOrEqual(t, snap.TotalBlowouts, int64(0))
	assert.LessOrEqual(t, snap.TotalBlowouts, snap.TotalMatches)
}
