package engine

import (
	"math"
	"sort"
)

const (
	sampleRingCap = 1000
	timeSeriesCap = 200
	histogramBins = 20
)

// sampleRing is a bounded rolling sample buffer, newest-wins
type sampleRing struct {
	buf  []float64
	next int
}

func newSampleRing() *sampleRing {
	return &sampleRing{buf: make([]float64, 0, sampleRingCap)}
}

func (r *sampleRing) Add(v float64) {
	if len(r.buf) < sampleRingCap {
		r.buf = append(r.buf, v)
		return
	}
	r.buf[r.next] = v
	r.next = (r.next + 1) % sampleRingCap
}

func (r *sampleRing) Len() int {
	return len(r.buf)
}

// Values returns a copy of the buffered samples
func (r *sampleRing) Values() []float64 {
	out := make([]float64, len(r.buf))
	copy(out, r.buf)
	return out
}

func (r *sampleRing) Mean() float64 {
	return calculateMean(r.buf)
}

func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculatePercentile reads the p-th percentile from an ascending-sorted
// slice.
func calculatePercentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p / 100.0 * float64(len(sorted)-1))
	return sorted[idx]
}

// Statistics accumulates the per-run observables. Sample buffers are
// bounded; percentile queries copy then sort so readers never mutate state.
type Statistics struct {
	searchTimes    *sampleRing
	deltaPings     *sampleRing
	skillDisparity *sampleRing
	totalMatches   int64
	totalBlowouts  int64
	blowoutCounts  map[BlowoutSeverity]int64
	timeSeries     []TickSnapshot
}

func newStatistics() *Statistics {
	return &Statistics{
		searchTimes:    newSampleRing(),
		deltaPings:     newSampleRing(),
		skillDisparity: newSampleRing(),
		blowoutCounts:  make(map[BlowoutSeverity]int64),
	}
}

// BlowoutSeverity classifies how lopsided a completed match was
type BlowoutSeverity string

const (
	BlowoutNone     BlowoutSeverity = "none"
	BlowoutMild     BlowoutSeverity = "mild"
	BlowoutModerate BlowoutSeverity = "moderate"
	BlowoutSevere   BlowoutSeverity = "severe"
)

// Snapshot is an immutable aggregate view of the run so far
type Snapshot struct {
	Tick        int64   `json:"tick"`
	TimeSeconds float64 `json:"time_seconds"`

	CountsByState map[string]int `json:"counts_by_state"`
	ActiveMatches int            `json:"active_matches"`
	LiveSearches  int            `json:"live_searches"`

	TotalMatches  int64 `json:"total_matches"`
	TotalBlowouts int64 `json:"total_blowouts"`

	BlowoutsMild     int64 `json:"blowouts_mild"`
	BlowoutsModerate int64 `json:"blowouts_moderate"`
	BlowoutsSevere   int64 `json:"blowouts_severe"`

	SearchTimeMean float64 `json:"search_time_mean"`
	SearchTimeP50  float64 `json:"search_time_p50"`
	SearchTimeP90  float64 `json:"search_time_p90"`
	SearchTimeP99  float64 `json:"search_time_p99"`

	DeltaPingMean float64 `json:"delta_ping_mean"`
	DeltaPingP50  float64 `json:"delta_ping_p50"`
	DeltaPingP90  float64 `json:"delta_ping_p90"`
	DeltaPingP99  float64 `json:"delta_ping_p99"`

	SkillDisparityMean float64 `json:"skill_disparity_mean"`
}

// BucketStat is one per-skill-bucket aggregation row
type BucketStat struct {
	Bucket       int     `json:"bucket"`
	PlayerCount  int     `json:"player_count"`
	AvgWait      float64 `json:"avg_wait"`
	AvgDeltaPing float64 `json:"avg_delta_ping"`
	WinRate      float64 `json:"win_rate"`
}

// HistBin is one histogram bin suitable for JSON export
type HistBin struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// TickSnapshot is one entry of the bounded time-series ring
type TickSnapshot struct {
	Tick                int64          `json:"tick"`
	TimeSeconds         float64        `json:"time_seconds"`
	CountsByState       map[string]int `json:"counts_by_state"`
	ActiveMatches       int            `json:"active_matches"`
	RollingAvgSearch    float64        `json:"rolling_avg_search"`
	RollingAvgDeltaPing float64        `json:"rolling_avg_delta_ping"`
}

func (s *Statistics) recordSearchTime(seconds float64) {
	s.searchTimes.Add(seconds)
}

func (s *Statistics) recordDeltaPing(ms float64) {
	s.deltaPings.Add(ms)
}

func (s *Statistics) recordMatch(disparity float64) {
	s.totalMatches++
	s.skillDisparity.Add(disparity)
}

func (s *Statistics) recordBlowout(severity BlowoutSeverity) {
	if severity == BlowoutNone {
		return
	}
	s.totalBlowouts++
	s.blowoutCounts[severity]++
}

func (s *Statistics) appendSnapshot(snap TickSnapshot) {
	s.timeSeries = append(s.timeSeries, snap)
	if len(s.timeSeries) > timeSeriesCap {
		s.timeSeries = s.timeSeries[len(s.timeSeries)-timeSeriesCap:]
	}
}

func percentileSummary(ring *sampleRing) (p50, p90, p99 float64) {
	vals := ring.Values()
	if len(vals) == 0 {
		return 0, 0, 0
	}
	sort.Float64s(vals)
	return calculatePercentile(vals, 50), calculatePercentile(vals, 90), calculatePercentile(vals, 99)
}

// buildHistogram bins values into histogramBins equal-width bins spanning
// [lo, hi]. When lo/hi are NaN the range is taken from the data.
func buildHistogram(values []float64, lo, hi float64) []HistBin {
	if len(values) == 0 {
		return []HistBin{}
	}
	if math.IsNaN(lo) || math.IsNaN(hi) {
		lo, hi = values[0], values[0]
		for _, v := range values {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	if hi <= lo {
		hi = lo + 1
	}
	width := (hi - lo) / float64(histogramBins)
	bins := make([]HistBin, histogramBins)
	for i := range bins {
		bins[i].Low = lo + float64(i)*width
		bins[i].High = bins[i].Low + width
	}
	for _, v := range values {
		idx := int((v - lo) / width)
		if idx < 0 {
			idx = 0
		}
		if idx >= histogramBins {
			idx = histogramBins - 1
		}
		bins[idx].Count++
	}
	return bins
}
