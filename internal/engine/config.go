package engine

import (
	"errors"
	"fmt"
)

// Config holds every tunable of the simulation. Zero values are not
// meaningful; start from DefaultConfig and override.
type Config struct {
	// TickInterval is the number of simulated seconds one Tick advances.
	TickInterval float64 `json:"tick_interval"`

	// MaxPing is the hard ceiling in milliseconds; no backoff relaxes it.
	MaxPing float64 `json:"max_ping"`

	// Delta-ping backoff curve: tolerance over a member's best ping grows
	// with wait time at Rate per second from Initial, capped at Max.
	DeltaPingInitial float64 `json:"delta_ping_initial"`
	DeltaPingRate    float64 `json:"delta_ping_rate"`
	DeltaPingMax     float64 `json:"delta_ping_max"`

	// Skill-similarity backoff curve: half-width of the admissible
	// percentile window around a search.
	SkillSimilarityInitial float64 `json:"skill_similarity_initial"`
	SkillSimilarityRate    float64 `json:"skill_similarity_rate"`
	SkillSimilarityMax     float64 `json:"skill_similarity_max"`

	// Lobby-disparity backoff curve: admissible percentile spread across a
	// whole lobby.
	MaxSkillDisparityInitial float64 `json:"max_skill_disparity_initial"`
	MaxSkillDisparityRate    float64 `json:"max_skill_disparity_rate"`
	MaxSkillDisparityMax     float64 `json:"max_skill_disparity_max"`

	// Distance-metric weights. Only the ratios matter.
	WeightGeo      float64 `json:"weight_geo"`
	WeightSkill    float64 `json:"weight_skill"`
	WeightInput    float64 `json:"weight_input"`
	WeightPlatform float64 `json:"weight_platform"`

	// Quality weights score committed lobbies (Match.QualityScore). Only the
	// ping weight enters the data-center choice, which takes the lowest
	// weighted average delta ping; equal scores go to the smallest ID.
	QualityWeightPing         float64 `json:"quality_weight_ping"`
	QualityWeightSkillBalance float64 `json:"quality_weight_skill_balance"`
	QualityWeightWaitTime     float64 `json:"quality_weight_wait_time"`

	NumSkillBuckets int `json:"num_skill_buckets"`
	TopKCandidates  int `json:"top_k_candidates"`

	// ArrivalRate is the expected Poisson arrivals per tick. Negative means
	// auto-scale to the population (0.2% per tick).
	ArrivalRate float64 `json:"arrival_rate"`

	// PartyPlayerFraction is the share of the population grouped into
	// parties of 2-4 at generation time.
	PartyPlayerFraction float64 `json:"party_player_fraction"`

	// Gamma is the slope of the logistic win-probability model.
	Gamma float64 `json:"gamma"`

	// Blowout scoring: score = skillCoeff*max(0,(|dS|-0.1)/0.4) +
	// imbalanceCoeff*2*|P-0.5|, classified against the three thresholds.
	BlowoutSkillCoefficient     float64 `json:"blowout_skill_coefficient"`
	BlowoutImbalanceCoefficient float64 `json:"blowout_imbalance_coefficient"`
	BlowoutMildThreshold        float64 `json:"blowout_mild_threshold"`
	BlowoutModerateThreshold    float64 `json:"blowout_moderate_threshold"`
	BlowoutSevereThreshold      float64 `json:"blowout_severe_threshold"`

	// Skill evolution.
	EnableSkillEvolution bool    `json:"enable_skill_evolution"`
	SkillLearningRate    float64 `json:"skill_learning_rate"`
	PerformanceNoiseStd  float64 `json:"performance_noise_std"`
	SkillUpdateBatchSize int     `json:"skill_update_batch_size"`

	// UseExactTeamBalancing switches small modes to a bounded partition
	// search instead of the snake draft.
	UseExactTeamBalancing bool `json:"use_exact_team_balancing"`

	// Underfull lobbies: disabled unless explicitly enabled, and then only
	// for searches whose wait exceeds the floor (seconds).
	AllowUnderfullLobbies bool    `json:"allow_underfull_lobbies"`
	UnderfullWaitFloor    float64 `json:"underfull_wait_floor"`

	// MaxMatchesPerDC caps concurrent matches per data center per playlist.
	// Zero disables the guard.
	MaxMatchesPerDC int `json:"max_matches_per_dc"`

	Retention RetentionConfig `json:"retention"`

	// RegionConfigs overrides matchmaking parameters per data-center
	// region, resolved for each search by its best data center.
	RegionConfigs map[Region]RegionOverride `json:"region_configs,omitempty"`
}

// RetentionConfig parameterizes the post-match continue/quit model:
// P(continue) = clamp(sigmoid(Base + theta . features), Floor, 1).
type RetentionConfig struct {
	Base         float64 `json:"base"`
	ThetaPing    float64 `json:"theta_ping"`
	ThetaSearch  float64 `json:"theta_search"`
	ThetaBlowout float64 `json:"theta_blowout"`
	ThetaWin     float64 `json:"theta_win"`
	ThetaPerf    float64 `json:"theta_perf"`
	ThetaStreak  float64 `json:"theta_streak"`
	ThetaFatigue float64 `json:"theta_fatigue"`
	Floor        float64 `json:"floor"`
	Window       int     `json:"window"`
}

// RegionOverride carries optional per-region replacements for the global
// matchmaking parameters. Nil fields inherit the global value.
type RegionOverride struct {
	MaxPing                *float64 `json:"max_ping,omitempty"`
	DeltaPingInitial       *float64 `json:"delta_ping_initial,omitempty"`
	DeltaPingRate          *float64 `json:"delta_ping_rate,omitempty"`
	DeltaPingMax           *float64 `json:"delta_ping_max,omitempty"`
	SkillSimilarityInitial *float64 `json:"skill_similarity_initial,omitempty"`
	SkillSimilarityRate    *float64 `json:"skill_similarity_rate,omitempty"`
	SkillSimilarityMax     *float64 `json:"skill_similarity_max,omitempty"`
	WeightGeo              *float64 `json:"weight_geo,omitempty"`
	WeightSkill            *float64 `json:"weight_skill,omitempty"`
}

// DefaultConfig returns the baseline configuration used by all scenario
// sweeps.
func DefaultConfig() Config {
	return Config{
		TickInterval: 1.0,
		MaxPing:      150,

		DeltaPingInitial: 15,
		DeltaPingRate:    1.0,
		DeltaPingMax:     80,

		SkillSimilarityInitial: 0.05,
		SkillSimilarityRate:    0.005,
		SkillSimilarityMax:     0.4,

		MaxSkillDisparityInitial: 0.10,
		MaxSkillDisparityRate:    0.01,
		MaxSkillDisparityMax:     0.5,

		WeightGeo:      0.5,
		WeightSkill:    1.0,
		WeightInput:    0.2,
		WeightPlatform: 0.1,

		QualityWeightPing:         1.0,
		QualityWeightSkillBalance: 0.5,
		QualityWeightWaitTime:     0.25,

		NumSkillBuckets: 10,
		TopKCandidates:  50,
		ArrivalRate:     -1, // auto-scale to population

		PartyPlayerFraction: 0,

		Gamma: 2.0,

		BlowoutSkillCoefficient:     1.0,
		BlowoutImbalanceCoefficient: 1.0,
		BlowoutMildThreshold:        0.25,
		BlowoutModerateThreshold:    0.5,
		BlowoutSevereThreshold:      0.75,

		EnableSkillEvolution: false,
		SkillLearningRate:    0.02,
		PerformanceNoiseStd:  0.15,
		SkillUpdateBatchSize: 50,

		UseExactTeamBalancing: true,

		AllowUnderfullLobbies: false,
		UnderfullWaitFloor:    120,

		MaxMatchesPerDC: 0,

		Retention: RetentionConfig{
			Base:         2.0,
			ThetaPing:    -0.01,
			ThetaSearch:  -0.005,
			ThetaBlowout: -1.0,
			ThetaWin:     0.5,
			ThetaPerf:    0.5,
			ThetaStreak:  -0.15,
			ThetaFatigue: -0.02,
			Floor:        0.3,
			Window:       historyWindow,
		},
	}
}

// Validate rejects configurations the engine cannot run with. The engine
// operates on a closed input domain; anything that passes here is assumed
// good for the life of the run.
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %v", c.TickInterval)
	}
	if c.MaxPing <= 0 {
		return fmt.Errorf("max_ping must be positive, got %v", c.MaxPing)
	}
	if err := validateCurve("delta_ping", c.DeltaPingInitial, c.DeltaPingRate, c.DeltaPingMax); err != nil {
		return err
	}
	if err := validateCurve("skill_similarity", c.SkillSimilarityInitial, c.SkillSimilarityRate, c.SkillSimilarityMax); err != nil {
		return err
	}
	if err := validateCurve("max_skill_disparity", c.MaxSkillDisparityInitial, c.MaxSkillDisparityRate, c.MaxSkillDisparityMax); err != nil {
		return err
	}
	if c.WeightGeo < 0 || c.WeightSkill < 0 || c.WeightInput < 0 || c.WeightPlatform < 0 {
		return errors.New("distance-metric weights must be non-negative")
	}
	if c.NumSkillBuckets < 1 {
		return fmt.Errorf("num_skill_buckets must be at least 1, got %d", c.NumSkillBuckets)
	}
	if c.TopKCandidates < 1 {
		return fmt.Errorf("top_k_candidates must be at least 1, got %d", c.TopKCandidates)
	}
	if c.PartyPlayerFraction < 0 || c.PartyPlayerFraction > 1 {
		return fmt.Errorf("party_player_fraction must be in [0,1], got %v", c.PartyPlayerFraction)
	}
	if c.Gamma <= 0 {
		return fmt.Errorf("gamma must be positive, got %v", c.Gamma)
	}
	if !(c.BlowoutMildThreshold < c.BlowoutModerateThreshold && c.BlowoutModerateThreshold < c.BlowoutSevereThreshold) {
		return errors.New("blowout thresholds must satisfy mild < moderate < severe")
	}
	if c.EnableSkillEvolution {
		if c.SkillLearningRate <= 0 {
			return fmt.Errorf("skill_learning_rate must be positive, got %v", c.SkillLearningRate)
		}
		if c.SkillUpdateBatchSize < 1 {
			return fmt.Errorf("skill_update_batch_size must be at least 1, got %d", c.SkillUpdateBatchSize)
		}
	}
	if c.PerformanceNoiseStd < 0 {
		return fmt.Errorf("performance_noise_std must be non-negative, got %v", c.PerformanceNoiseStd)
	}
	if c.MaxMatchesPerDC < 0 {
		return fmt.Errorf("max_matches_per_dc must be non-negative, got %d", c.MaxMatchesPerDC)
	}
	if c.AllowUnderfullLobbies && c.UnderfullWaitFloor < 0 {
		return fmt.Errorf("underfull_wait_floor must be non-negative, got %v", c.UnderfullWaitFloor)
	}
	if c.Retention.Floor < 0 || c.Retention.Floor >= 1 {
		return fmt.Errorf("retention floor must be in [0,1), got %v", c.Retention.Floor)
	}
	if c.Retention.Window < 1 {
		return fmt.Errorf("retention window must be at least 1, got %d", c.Retention.Window)
	}
	return nil
}

func validateCurve(name string, initial, rate, max float64) error {
	if initial < 0 || rate < 0 || max < 0 {
		return fmt.Errorf("%s curve parameters must be non-negative", name)
	}
	if max < initial {
		return fmt.Errorf("%s_max (%v) must be at least %s_initial (%v)", name, max, name, initial)
	}
	return nil
}

// regionParams is the effective parameter set after applying a region
// override on top of the globals.
type regionParams struct {
	MaxPing                float64
	DeltaPingInitial       float64
	DeltaPingRate          float64
	DeltaPingMax           float64
	SkillSimilarityInitial float64
	SkillSimilarityRate    float64
	SkillSimilarityMax     float64
	WeightGeo              float64
	WeightSkill            float64
}

func (c Config) paramsFor(region Region) regionParams {
	p := regionParams{
		MaxPing:                c.MaxPing,
		DeltaPingInitial:       c.DeltaPingInitial,
		DeltaPingRate:          c.DeltaPingRate,
		DeltaPingMax:           c.DeltaPingMax,
		SkillSimilarityInitial: c.SkillSimilarityInitial,
		SkillSimilarityRate:    c.SkillSimilarityRate,
		SkillSimilarityMax:     c.SkillSimilarityMax,
		WeightGeo:              c.WeightGeo,
		WeightSkill:            c.WeightSkill,
	}
	ov, ok := c.RegionConfigs[region]
	if !ok {
		return p
	}
	if ov.MaxPing != nil {
		p.MaxPing = *ov.MaxPing
	}
	if ov.DeltaPingInitial != nil {
		p.DeltaPingInitial = *ov.DeltaPingInitial
	}
	if ov.DeltaPingRate != nil {
		p.DeltaPingRate = *ov.DeltaPingRate
	}
	if ov.DeltaPingMax != nil {
		p.DeltaPingMax = *ov.DeltaPingMax
	}
	if ov.SkillSimilarityInitial != nil {
		p.SkillSimilarityInitial = *ov.SkillSimilarityInitial
	}
	if ov.SkillSimilarityRate != nil {
		p.SkillSimilarityRate = *ov.SkillSimilarityRate
	}
	if ov.SkillSimilarityMax != nil {
		p.SkillSimilarityMax = *ov.SkillSimilarityMax
	}
	if ov.WeightGeo != nil {
		p.WeightGeo = *ov.WeightGeo
	}
	if ov.WeightSkill != nil {
		p.WeightSkill = *ov.WeightSkill
	}
	return p
}
