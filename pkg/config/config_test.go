package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 5000, cfg.PopulationSize)
	assert.Equal(t, int64(1), cfg.Seed)
	assert.Equal(t, 500, cfg.SweepTicks)
	assert.NotEmpty(t, cfg.SweepSkillRates)
	assert.NotEmpty(t, cfg.SweepGeoWeights)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("POPULATION_SIZE", "1234")
	t.Setenv("MAX_PING", "90")
	t.Setenv("ENV", "production")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 1234, cfg.PopulationSize)
	assert.Equal(t, 90.0, cfg.MaxPing)
	assert.False(t, cfg.IsDevelopment())
}

func TestEngineConfig_CarriesSimulationSettings(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	cfg.MaxPing = 111
	cfg.WeightGeo = 0.9
	cfg.NumSkillBuckets = 5
	cfg.ArrivalRate = 3

	ec := cfg.EngineConfig()
	require.NoError(t, ec.Validate())
	assert.Equal(t, 111.0, ec.MaxPing)
	assert.Equal(t, 0.9, ec.WeightGeo)
	assert.Equal(t, 5, ec.NumSkillBuckets)
	assert.Equal(t, 3.0, ec.ArrivalRate)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"0.1", "0.2"}, splitList("0.1, 0.2"))
	assert.Equal(t, []string{"a"}, splitList("a,,  ,"))
}
