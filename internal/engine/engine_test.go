package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioSeed = 0xC0D

func newTestEngine(t *testing.T, cfg Config, seed int64, population int) *Engine {
	t.Helper()
	eng, err := New(cfg, seed, nil)
	require.NoError(t, err)
	require.NoError(t, eng.GeneratePopulation(population))
	return eng
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickInterval = 0
	_, err := New(cfg, 1, nil)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.BlowoutMildThreshold = 0.9 // above moderate
	_, err = New(cfg, 1, nil)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Retention.Floor = 1.5
	_, err = New(cfg, 1, nil)
	assert.Error(t, err)
}

func TestTick_RequiresPopulation(t *testing.T) {
	eng, err := New(DefaultConfig(), 1, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, eng.Tick(), ErrPopulationNotGenerated)
}

func TestGeneratePopulation_Idempotent(t *testing.T) {
	eng, err := New(DefaultConfig(), 1, nil)
	require.NoError(t, err)

	require.NoError(t, eng.GeneratePopulation(100))
	assert.NoError(t, eng.GeneratePopulation(100), "repeat call with same size is a no-op")
	assert.ErrorIs(t, eng.GeneratePopulation(200), ErrPopulationMismatch)
	assert.Equal(t, 100, eng.PopulationSize())
}

func TestGeneratePopulation_RejectsNonPositive(t *testing.T) {
	eng, err := New(DefaultConfig(), 1, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, eng.GeneratePopulation(0), ErrInvalidPopulation)
	assert.ErrorIs(t, eng.GeneratePopulation(-5), ErrInvalidPopulation)
}

func TestDeterminism_IdenticalRunsProduceIdenticalStats(t *testing.T) {
	cfg := DefaultConfig()
	a := newTestEngine(t, cfg, scenarioSeed, 2000)
	b := newTestEngine(t, cfg, scenarioSeed, 2000)

	for i := 0; i < 60; i++ {
		require.NoError(t, a.Tick())
		require.NoError(t, b.Tick())
		require.Equal(t, a.Stats(), b.Stats(), "stats diverged at tick %d", i)
	}
	assert.Equal(t, a.TimeSeries(), b.TimeSeries())
	assert.Equal(t, a.BucketStats(), b.BucketStats())
}

func TestInvariants_HoldAcrossTicks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PartyPlayerFraction = 0.2
	eng := newTestEngine(t, cfg, scenarioSeed, 1000)

	for i := 0; i < 120; i++ {
		require.NoError(t, eng.Tick())
		require.NoError(t, eng.CheckInvariants(), "invariants violated at tick %d", i)
	}
}

func TestScenario_Bootstrap(t *testing.T) {
	eng := newTestEngine(t, DefaultConfig(), scenarioSeed, 5000)

	for i := 0; i < 100; i++ {
		require.NoError(t, eng.Tick())
	}

	snap := eng.Stats()
	assert.Greater(t, snap.TotalMatches, int64(0), "bootstrap run should form matches")
	total := 0
	for state, count := range snap.CountsByState {
		assert.GreaterOrEqual(t, count, 0, "state %s", state)
		assert.LessOrEqual(t, count, 5000, "state %s", state)
		total += count
	}
	assert.Equal(t, 5000, total)
	assert.Less(t, snap.SearchTimeP50, snap.SearchTimeP90)
	assert.Less(t, snap.SearchTimeP90, snap.SearchTimeP99)
}

func TestScenario_ArrivalStarvation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ArrivalRate = 0
	eng := newTestEngine(t, cfg, scenarioSeed, 500)

	for i := 0; i < 200; i++ {
		require.NoError(t, eng.Tick())
		counts := eng.Stats().CountsByState
		assert.Equal(t, 500, counts[StateOffline.String()], "no player should ever come online at tick %d", i)
	}
	assert.Equal(t, int64(0), eng.Stats().TotalMatches)
}

func TestTick_NoOpWithoutActivity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ArrivalRate = 0
	eng := newTestEngine(t, cfg, 7, 10)

	before := eng.Stats()
	seriesLen := len(eng.TimeSeries())
	require.NoError(t, eng.Tick())
	after := eng.Stats()

	assert.Equal(t, before.CountsByState, after.CountsByState)
	assert.Equal(t, before.TotalMatches, after.TotalMatches)
	assert.Equal(t, before.SearchTimeMean, after.SearchTimeMean)
	assert.Equal(t, seriesLen+1, len(eng.TimeSeries()), "time-series ring still grows by one")
}

func TestTimeSeries_BoundedRing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ArrivalRate = 0
	eng := newTestEngine(t, cfg, 7, 10)

	for i := 0; i < timeSeriesCap+50; i++ {
		require.NoError(t, eng.Tick())
	}
	series := eng.TimeSeries()
	require.Len(t, series, timeSeriesCap)
	assert.Equal(t, int64(50), series[0].Tick, "oldest entries are pruned")
	assert.Equal(t, int64(timeSeriesCap+49), series[len(series)-1].Tick)
}

func TestStats_ReadersDoNotMutate(t *testing.T) {
	eng := newTestEngine(t, DefaultConfig(), scenarioSeed, 1500)
	for i := 0; i < 30; i++ {
		require.NoError(t, eng.Tick())
	}

	before := eng.Stats()
	eng.BucketStats()
	eng.SkillDistribution()
	eng.SearchTimeHistogram()
	eng.DeltaPingHistogram()
	series := eng.TimeSeries()
	if len(series) > 0 {
		series[0].ActiveMatches = -99 // mutate the copy only
	}
	assert.Equal(t, before, eng.Stats(), "read accessors must not change engine state")
}

func TestArrivals_AutoScaledRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ArrivalRate = -1
	eng := newTestEngine(t, cfg, 3, 1000)
	assert.InDelta(t, 2.0, eng.arrivalRate(), 1e-9, "0.2%% of 1000 players")

	cfg.ArrivalRate = 5
	eng2 := newTestEngine(t, cfg, 3, 1000)
	assert.Equal(t, 5.0, eng2.arrivalRate())
}
