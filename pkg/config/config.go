package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/stitts-dev/matchsim/internal/engine"
)

// Config carries host settings plus the simulation parameters exposed to
// operators.
type Config struct {
	// Server
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// API
	RateLimitRPS int `mapstructure:"RATE_LIMIT_RPS"`

	// Run
	Seed           int64 `mapstructure:"SEED"`
	PopulationSize int   `mapstructure:"POPULATION_SIZE"`
	// TickPaceMillis is the wall-clock pacing between ticks in cmd/server.
	// Zero runs ticks back to back.
	TickPaceMillis int `mapstructure:"TICK_PACE_MILLIS"`

	// Simulation
	TickInterval             float64 `mapstructure:"TICK_INTERVAL"`
	MaxPing                  float64 `mapstructure:"MAX_PING"`
	DeltaPingInitial         float64 `mapstructure:"DELTA_PING_INITIAL"`
	DeltaPingRate            float64 `mapstructure:"DELTA_PING_RATE"`
	DeltaPingMax             float64 `mapstructure:"DELTA_PING_MAX"`
	SkillSimilarityInitial   float64 `mapstructure:"SKILL_SIMILARITY_INITIAL"`
	SkillSimilarityRate      float64 `mapstructure:"SKILL_SIMILARITY_RATE"`
	SkillSimilarityMax       float64 `mapstructure:"SKILL_SIMILARITY_MAX"`
	MaxSkillDisparityInitial float64 `mapstructure:"MAX_SKILL_DISPARITY_INITIAL"`
	MaxSkillDisparityRate    float64 `mapstructure:"MAX_SKILL_DISPARITY_RATE"`
	MaxSkillDisparityMax     float64 `mapstructure:"MAX_SKILL_DISPARITY_MAX"`
	WeightGeo                float64 `mapstructure:"WEIGHT_GEO"`
	WeightSkill              float64 `mapstructure:"WEIGHT_SKILL"`
	WeightInput              float64 `mapstructure:"WEIGHT_INPUT"`
	WeightPlatform           float64 `mapstructure:"WEIGHT_PLATFORM"`
	NumSkillBuckets          int     `mapstructure:"NUM_SKILL_BUCKETS"`
	TopKCandidates           int     `mapstructure:"TOP_K_CANDIDATES"`
	ArrivalRate              float64 `mapstructure:"ARRIVAL_RATE"`
	PartyPlayerFraction      float64 `mapstructure:"PARTY_PLAYER_FRACTION"`
	Gamma                    float64 `mapstructure:"GAMMA"`
	EnableSkillEvolution     bool    `mapstructure:"ENABLE_SKILL_EVOLUTION"`
	UseExactTeamBalancing    bool    `mapstructure:"USE_EXACT_TEAM_BALANCING"`

	// Sweep
	SweepTicks      int      `mapstructure:"SWEEP_TICKS"`
	SweepOutput     string   `mapstructure:"SWEEP_OUTPUT"`
	SweepSkillRates []string `mapstructure:"-"`
	SweepGeoWeights []string `mapstructure:"-"`
}

// LoadConfig reads configuration from an optional .env file and the
// environment, with defaults matching the engine baseline.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")

	def := engine.DefaultConfig()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("RATE_LIMIT_RPS", 20)

	v.SetDefault("SEED", 1)
	v.SetDefault("POPULATION_SIZE", 5000)
	v.SetDefault("TICK_PACE_MILLIS", 100)

	v.SetDefault("TICK_INTERVAL", def.TickInterval)
	v.SetDefault("MAX_PING", def.MaxPing)
	v.SetDefault("DELTA_PING_INITIAL", def.DeltaPingInitial)
	v.SetDefault("DELTA_PING_RATE", def.DeltaPingRate)
	v.SetDefault("DELTA_PING_MAX", def.DeltaPingMax)
	v.SetDefault("SKILL_SIMILARITY_INITIAL", def.SkillSimilarityInitial)
	v.SetDefault("SKILL_SIMILARITY_RATE", def.SkillSimilarityRate)
	v.SetDefault("SKILL_SIMILARITY_MAX", def.SkillSimilarityMax)
	v.SetDefault("MAX_SKILL_DISPARITY_INITIAL", def.MaxSkillDisparityInitial)
	v.SetDefault("MAX_SKILL_DISPARITY_RATE", def.MaxSkillDisparityRate)
	v.SetDefault("MAX_SKILL_DISPARITY_MAX", def.MaxSkillDisparityMax)
	v.SetDefault("WEIGHT_GEO", def.WeightGeo)
	v.SetDefault("WEIGHT_SKILL", def.WeightSkill)
	v.SetDefault("WEIGHT_INPUT", def.WeightInput)
	v.SetDefault("WEIGHT_PLATFORM", def.WeightPlatform)
	v.SetDefault("NUM_SKILL_BUCKETS", def.NumSkillBuckets)
	v.SetDefault("TOP_K_CANDIDATES", def.TopKCandidates)
	v.SetDefault("ARRIVAL_RATE", def.ArrivalRate)
	v.SetDefault("PARTY_PLAYER_FRACTION", def.PartyPlayerFraction)
	v.SetDefault("GAMMA", def.Gamma)
	v.SetDefault("ENABLE_SKILL_EVOLUTION", def.EnableSkillEvolution)
	v.SetDefault("USE_EXACT_TEAM_BALANCING", def.UseExactTeamBalancing)

	v.SetDefault("SWEEP_TICKS", 500)
	v.SetDefault("SWEEP_OUTPUT", "")
	v.SetDefault("SWEEP_SKILL_RATES", "0.001,0.005,0.02")
	v.SetDefault("SWEEP_GEO_WEIGHTS", "0.2,0.5,0.8")

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.SweepSkillRates = splitList(v.GetString("SWEEP_SKILL_RATES"))
	cfg.SweepGeoWeights = splitList(v.GetString("SWEEP_GEO_WEIGHTS"))

	return &cfg, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// IsDevelopment reports whether the host runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// EngineConfig builds the engine configuration from the host settings
func (c *Config) EngineConfig() engine.Config {
	ec := engine.DefaultConfig()
	ec.TickInterval = c.TickInterval
	ec.MaxPing = c.MaxPing
	ec.DeltaPingInitial = c.DeltaPingInitial
	ec.DeltaPingRate = c.DeltaPingRate
	ec.DeltaPingMax = c.DeltaPingMax
	ec.SkillSimilarityInitial = c.SkillSimilarityInitial
	ec.SkillSimilarityRate = c.SkillSimilarityRate
	ec.SkillSimilarityMax = c.SkillSimilarityMax
	ec.MaxSkillDisparityInitial = c.MaxSkillDisparityInitial
	ec.MaxSkillDisparityRate = c.MaxSkillDisparityRate
	ec.MaxSkillDisparityMax = c.MaxSkillDisparityMax
	ec.WeightGeo = c.WeightGeo
	ec.WeightSkill = c.WeightSkill
	ec.WeightInput = c.WeightInput
	ec.WeightPlatform = c.WeightPlatform
	ec.NumSkillBuckets = c.NumSkillBuckets
	ec.TopKCandidates = c.TopKCandidates
	ec.ArrivalRate = c.ArrivalRate
	ec.PartyPlayerFraction = c.PartyPlayerFraction
	ec.Gamma = c.Gamma
	ec.EnableSkillEvolution = c.EnableSkillEvolution
	ec.UseExactTeamBalancing = c.UseExactTeamBalancing
	return ec
}
