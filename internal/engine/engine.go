package engine

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidPopulation is returned for a non-positive population size.
	ErrInvalidPopulation = errors.New("population size must be positive")
	// ErrPopulationMismatch is returned when GeneratePopulation is called a
	// second time with a different size.
	ErrPopulationMismatch = errors.New("population already generated with a different size")
	// ErrPopulationNotGenerated is returned by Tick before GeneratePopulation.
	ErrPopulationNotGenerated = errors.New("population not generated")
)

// searchStartProb is the per-tick probability an in-lobby unit begins
// searching.
const searchStartProb = 0.3

// autoArrivalFraction scales the Poisson arrival rate to the population when
// no explicit rate is configured.
const autoArrivalFraction = 0.002

// Engine is a single-threaded, tick-driven matchmaking simulation. One
// instance owns all state; the only mutating operation is Tick, and all read
// accessors return copies.
type Engine struct {
	cfg Config
	log *logrus.Logger
	rng *RNG

	tick int64

	players []*Player
	dcs     []DataCenter

	parties map[int]*party

	searches []*SearchObject
	matches  []*Match

	nextSearchID SearchID
	nextMatchID  MatchID

	stats *Statistics

	popGenerated     bool
	matchesSinceRank int
}

// New creates an engine from a validated configuration and a seed. The
// logger is optional; a nil logger keeps the engine silent.
func New(cfg Config, seed int64, log *logrus.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Engine{
		cfg:          cfg,
		log:          log,
		rng:          NewRNG(seed),
		dcs:          defaultDataCenters(),
		parties:      make(map[int]*party),
		nextSearchID: 1,
		nextMatchID:  1,
		stats:        newStatistics(),
	}, nil
}

// Config returns the engine's configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// CurrentTick returns the number of completed ticks
func (e *Engine) CurrentTick() int64 {
	return e.tick
}

// PopulationSize returns the number of generated players
func (e *Engine) PopulationSize() int {
	return len(e.players)
}

// arrivalRate resolves the configured or auto-scaled Poisson mean
func (e *Engine) arrivalRate() float64 {
	if e.cfg.ArrivalRate >= 0 {
		return e.cfg.ArrivalRate
	}
	return autoArrivalFraction * float64(len(e.players))
}

// Tick advances the simulation by one step. The five phases always run in
// the same order: arrivals, search starts, matchmaking, match completions,
// statistics.
func (e *Engine) Tick() error {
	if !e.popGenerated {
		return ErrPopulationNotGenerated
	}

	e.phaseArrivals()
	e.phaseSearchStarts()
	e.phaseMatchmaking()
	e.phaseCompletions()
	e.phaseStatistics()

	e.tick++
	return nil
}

// phaseArrivals brings a Poisson-distributed number of offline players into
// the lobby.
func (e *Engine) phaseArrivals() {
	k := e.rng.Poisson(e.arrivalRate())
	if k == 0 {
		return
	}
	offline := make([]int, 0)
	for _, p := range e.players {
		if p.State == StateOffline {
			offline = append(offline, int(p.ID))
		}
	}
	if len(offline) == 0 {
		return
	}
	for _, idx := range e.rng.SampleInts(offline, k) {
		p := e.players[idx]
		p.State = StateInLobby
		p.SessionMatches = 0
	}
}

// phaseSearchStarts lets every in-lobby unit independently begin searching.
// Parties queue as a single search object once all members are in the
// lobby; the lowest-ID member draws for the whole party.
func (e *Engine) phaseSearchStarts() {
	for _, p := range e.players {
		if p.State != StateInLobby {
			continue
		}
		if p.PartyID != 0 {
			pt := e.parties[p.PartyID]
			if pt.Members[0] != p.ID {
				continue
			}
			ready := true
			for _, m := range pt.Members {
				if e.players[m].State != StateInLobby {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			if e.rng.Bernoulli(searchStartProb) {
				e.enqueueSearch(pt.Members)
			}
			continue
		}
		if e.rng.Bernoulli(searchStartProb) {
			e.enqueueSearch([]PlayerID{p.ID})
		}
	}
}

// enqueueSearch mints a search object for the given members and moves them
// to Searching.
func (e *Engine) enqueueSearch(members []PlayerID) *SearchObject {
	s := &SearchObject{
		ID:        e.nextSearchID,
		Members:   append([]PlayerID(nil), members...),
		StartTick: e.tick,
	}
	e.nextSearchID++

	locs := make([]LatLon, 0, len(members))
	var pctSum, ctrl float64
	platCounts := make(map[PlatformTag]float64)
	playlists := append([]Playlist(nil), e.players[members[0]].Preferred...)
	for _, pid := range members {
		p := e.players[pid]
		p.State = StateSearching
		locs = append(locs, p.Location)
		pctSum += p.Percentile
		if p.Input == InputController {
			ctrl++
		}
		platCounts[p.Platform]++
		playlists = intersectPlaylists(playlists, p.Preferred)
	}
	n := float64(len(members))
	s.AvgPercentile = pctSum / n
	s.AvgLocation = meanLocation(locs)
	s.ControllerFrac = ctrl / n
	s.PlatformFracs = make(map[PlatformTag]float64, len(platCounts))
	for tag, c := range platCounts {
		s.PlatformFracs[tag] = c / n
	}
	s.Playlists = playlists
	s.Region = e.dcs[e.players[members[0]].BestDC].Region
	e.refreshAdmissibleDCs(s)

	e.searches = append(e.searches, s)
	return s
}

// phaseStatistics appends one time-series snapshot and prunes the ring
func (e *Engine) phaseStatistics() {
	e.stats.appendSnapshot(TickSnapshot{
		Tick:                e.tick,
		TimeSeconds:         float64(e.tick) * e.cfg.TickInterval,
		CountsByState:       e.countsByState(),
		ActiveMatches:       len(e.matches),
		RollingAvgSearch:    e.stats.searchTimes.Mean(),
		RollingAvgDeltaPing: e.stats.deltaPings.Mean(),
	})
}

func (e *Engine) countsByState() map[string]int {
	counts := map[string]int{
		StateOffline.String():   0,
		StateInLobby.String():   0,
		StateSearching.String(): 0,
		StateInMatch.String():   0,
	}
	for _, p := range e.players {
		counts[p.State.String()]++
	}
	return counts
}

// Stats returns an immutable aggregate snapshot of the run so far
func (e *Engine) Stats() Snapshot {
	snap := Snapshot{
		Tick:          e.tick,
		TimeSeconds:   float64(e.tick) * e.cfg.TickInterval,
		CountsByState: e.countsByState(),
		ActiveMatches: len(e.matches),
		LiveSearches:  len(e.searches),
		TotalMatches:  e.stats.totalMatches,
		TotalBlowouts: e.stats.totalBlowouts,

		BlowoutsMild:     e.stats.blowoutCounts[BlowoutMild],
		BlowoutsModerate: e.stats.blowoutCounts[BlowoutModerate],
		BlowoutsSevere:   e.stats.blowoutCounts[BlowoutSevere],

		SearchTimeMean:     e.stats.searchTimes.Mean(),
		DeltaPingMean:      e.stats.deltaPings.Mean(),
		SkillDisparityMean: e.stats.skillDisparity.Mean(),
	}
	snap.SearchTimeP50, snap.SearchTimeP90, snap.SearchTimeP99 = percentileSummary(e.stats.searchTimes)
	snap.DeltaPingP50, snap.DeltaPingP90, snap.DeltaPingP99 = percentileSummary(e.stats.deltaPings)
	return snap
}

// BucketStats aggregates player experience per skill bucket. Computed
// lazily from player histories, never cached.
func (e *Engine) BucketStats() []BucketStat {
	rows := make([]BucketStat, e.cfg.NumSkillBuckets)
	type acc struct {
		wait, waitN   float64
		delta, deltaN float64
		wins, games   float64
	}
	accs := make([]acc, e.cfg.NumSkillBuckets)
	for _, p := range e.players {
		if p.Bucket < 1 || p.Bucket > e.cfg.NumSkillBuckets {
			continue
		}
		a := &accs[p.Bucket-1]
		rows[p.Bucket-1].PlayerCount++
		for _, w := range p.RecentSearchTimes {
			a.wait += w
			a.waitN++
		}
		for _, d := range p.RecentDeltaPings {
			a.delta += d
			a.deltaN++
		}
		a.wins += float64(p.Wins)
		a.games += float64(p.Wins + p.Losses)
	}
	for i := range rows {
		rows[i].Bucket = i + 1
		if accs[i].waitN > 0 {
			rows[i].AvgWait = accs[i].wait / accs[i].waitN
		}
		if accs[i].deltaN > 0 {
			rows[i].AvgDeltaPing = accs[i].delta / accs[i].deltaN
		}
		if accs[i].games > 0 {
			rows[i].WinRate = accs[i].wins / accs[i].games
		}
	}
	return rows
}

// SkillDistribution returns a histogram of raw skill over [-1, 1]
func (e *Engine) SkillDistribution() []HistBin {
	skills := make([]float64, len(e.players))
	for i, p := range e.players {
		skills[i] = p.Skill
	}
	return buildHistogram(skills, -1, 1)
}

// SearchTimeHistogram returns a histogram of the rolling search-time buffer
func (e *Engine) SearchTimeHistogram() []HistBin {
	return buildHistogram(e.stats.searchTimes.Values(), math.NaN(), math.NaN())
}

// DeltaPingHistogram returns a histogram of the rolling delta-ping buffer
func (e *Engine) DeltaPingHistogram() []HistBin {
	return buildHistogram(e.stats.deltaPings.Values(), math.NaN(), math.NaN())
}

// TimeSeries returns a copy of the per-tick snapshot ring
func (e *Engine) TimeSeries() []TickSnapshot {
	out := make([]TickSnapshot, len(e.stats.timeSeries))
	copy(out, e.stats.timeSeries)
	return out
}

// CheckInvariants verifies the engine's structural invariants. Violations
// are programming errors; hosts and tests call this after ticks, the hot
// path does not.
func (e *Engine) CheckInvariants() error {
	counts := e.countsByState()
	total := 0
	for _, c := range counts {
		total += c
	}
	if total != len(e.players) {
		return fmt.Errorf("state counts sum to %d, population is %d", total, len(e.players))
	}

	inSearch := make(map[PlayerID]int)
	for _, s := range e.searches {
		if len(s.Members) < 1 || len(s.Members) > minRequired() {
			return fmt.Errorf("search %d has %d members", s.ID, len(s.Members))
		}
		for _, pid := range s.Members {
			inSearch[pid]++
		}
	}
	for _, p := range e.players {
		switch p.State {
		case StateSearching:
			if inSearch[p.ID] != 1 {
				return fmt.Errorf("player %d searching but member of %d search objects", p.ID, inSearch[p.ID])
			}
			if p.CurrentMatch != -1 {
				return fmt.Errorf("player %d searching with a current match", p.ID)
			}
		case StateInMatch:
			if p.CurrentMatch == -1 {
				return fmt.Errorf("player %d in match with no current match", p.ID)
			}
		default:
			if inSearch[p.ID] != 0 {
				return fmt.Errorf("player %d in state %s but member of a search object", p.ID, p.State)
			}
			if p.CurrentMatch != -1 {
				return fmt.Errorf("player %d in state %s with a current match", p.ID, p.State)
			}
		}
	}

	for _, dc := range e.dcs {
		for pl, busy := range dc.Busy {
			if busy < 0 {
				return fmt.Errorf("data center %s has negative busy count for %s", dc.Name, pl)
			}
		}
	}

	for _, m := range e.matches {
		seen := make(map[PlayerID]bool)
		for _, team := range m.Teams {
			for _, pid := range team {
				if seen[pid] {
					return fmt.Errorf("match %d contains player %d twice", m.ID, pid)
				}
				seen[pid] = true
				p := e.players[pid]
				if p.State != StateInMatch || p.CurrentMatch != m.ID {
					return fmt.Errorf("match %d lists player %d with state %s", m.ID, pid, p.State)
				}
			}
		}
	}
	return nil
}

// liveSearchesOrdered returns unmatched searches oldest first, SearchID as
// the deterministic tiebreaker.
func (e *Engine) liveSearchesOrdered() []*SearchObject {
	out := make([]*SearchObject, 0, len(e.searches))
	for _, s := range e.searches {
		if !s.matched {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartTick != out[j].StartTick {
			return out[i].StartTick < out[j].StartTick
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// removeMatchedSearches drops consumed search objects from the queue
func (e *Engine) removeMatchedSearches() {
	live := e.searches[:0]
	for _, s := range e.searches {
		if !s.matched {
			live = append(live, s)
		}
	}
	e.searches = live
}
