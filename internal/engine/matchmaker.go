package engine

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"
)

// refreshAdmissibleDCs recomputes the search's reachable data centers under
// its current delta-ping tolerance. A data center qualifies only if every
// member is within tolerance of their own best ping and under the hard
// max-ping ceiling.
func (e *Engine) refreshAdmissibleDCs(s *SearchObject) {
	w := s.WaitSeconds(e.tick, e.cfg.TickInterval)
	rp := e.cfg.paramsFor(s.Region)
	tol := rp.deltaPingTolerance(w)

	s.AdmissibleDCs = s.AdmissibleDCs[:0]
	for _, dc := range e.dcs {
		ok := true
		for _, pid := range s.Members {
			p := e.players[pid]
			ping := p.Pings[dc.ID]
			if ping > p.BestPing+tol || ping > rp.MaxPing {
				ok = false
				break
			}
		}
		if ok {
			s.AdmissibleDCs = append(s.AdmissibleDCs, dc.ID)
		}
	}
}

// phaseMatchmaking runs one seed+greedy pass per playlist over the live
// queue, oldest searches first.
func (e *Engine) phaseMatchmaking() {
	for _, s := range e.searches {
		e.refreshAdmissibleDCs(s)
	}
	ordered := e.liveSearchesOrdered()

	for _, pl := range AllPlaylists {
		eligible := make([]*SearchObject, 0, len(ordered))
		for _, s := range ordered {
			if !s.matched && s.AcceptsPlaylist(pl) {
				eligible = append(eligible, s)
			}
		}
		for _, seed := range eligible {
			if seed.matched {
				continue
			}
			e.tryBuildLobby(seed, eligible, pl)
		}
	}

	e.removeMatchedSearches()
}

// searchDistance is the weighted candidate-ranking metric between two
// searches. Geographic distance is normalized by the half-circumference;
// input/platform terms are the probability that members drawn from each
// side mismatch, which keeps them in [0, 1].
func (e *Engine) searchDistance(j, k *SearchObject) float64 {
	rp := e.cfg.paramsFor(j.Region)

	dGeo := HaversineKm(j.AvgLocation, k.AvgLocation) / 20000.0
	dSkill := math.Abs(j.AvgPercentile - k.AvgPercentile)
	dInput := j.ControllerFrac*(1-k.ControllerFrac) + (1-j.ControllerFrac)*k.ControllerFrac

	// Fixed platform order keeps float summation identical across runs.
	dPlatform := 1.0
	for _, tag := range allPlatforms {
		dPlatform -= j.PlatformFracs[tag] * k.PlatformFracs[tag]
	}

	return rp.WeightGeo*dGeo +
		rp.WeightSkill*dSkill +
		e.cfg.WeightInput*dInput +
		e.cfg.WeightPlatform*dPlatform
}

// rankCandidates orders the eligible searches around a seed by distance and
// keeps the top K. Ties break on SearchID so the pass is deterministic.
func (e *Engine) rankCandidates(seed *SearchObject, eligible []*SearchObject) []*SearchObject {
	type ranked struct {
		s *SearchObject
		d float64
	}
	cands := make([]ranked, 0, len(eligible))
	for _, s := range eligible {
		if s == seed || s.matched {
			continue
		}
		cands = append(cands, ranked{s: s, d: e.searchDistance(seed, s)})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].d != cands[j].d {
			return cands[i].d < cands[j].d
		}
		return cands[i].s.ID < cands[j].s.ID
	})
	if len(cands) > e.cfg.TopKCandidates {
		cands = cands[:e.cfg.TopKCandidates]
	}
	out := make([]*SearchObject, len(cands))
	for i, c := range cands {
		out[i] = c.s
	}
	return out
}

// lobbyFeasible checks the feasibility contract for a candidate lobby on a
// playlist: size, per-search skill windows, per-search disparity budgets,
// and a non-empty common data-center set. Rejects on first violation.
func (e *Engine) lobbyFeasible(lobby []*SearchObject, pl Playlist) bool {
	size := 0
	minPct, maxPct := math.Inf(1), math.Inf(-1)
	for _, s := range lobby {
		size += s.Size()
		if s.AvgPercentile < minPct {
			minPct = s.AvgPercentile
		}
		if s.AvgPercentile > maxPct {
			maxPct = s.AvgPercentile
		}
	}
	if size > pl.Required() {
		return false
	}

	spread := maxPct - minPct
	for _, s := range lobby {
		w := s.WaitSeconds(e.tick, e.cfg.TickInterval)
		rp := e.cfg.paramsFor(s.Region)
		if spread > 2*rp.skillWindow(w) {
			return false
		}
		if spread > e.cfg.maxDisparity(w) {
			return false
		}
	}

	return len(e.commonDCs(lobby)) > 0
}

// commonDCs intersects the admissible data-center sets of a lobby,
// preserving ascending ID order.
func (e *Engine) commonDCs(lobby []*SearchObject) []int {
	common := lobby[0].AdmissibleDCs
	for _, s := range lobby[1:] {
		filtered := make([]int, 0, len(common))
		for _, id := range common {
			if s.admitsDC(id) {
				filtered = append(filtered, id)
			}
		}
		common = filtered
		if len(common) == 0 {
			break
		}
	}
	return common
}

// tryBuildLobby grows a lobby greedily from a seed search. Candidates are
// admitted in ranked order as long as the combined lobby stays feasible;
// the lobby commits when it reaches the playlist's required size, or
// underfull when that relaxation is enabled and every member has waited
// past the floor.
func (e *Engine) tryBuildLobby(seed *SearchObject, eligible []*SearchObject, pl Playlist) {
	required := pl.Required()
	lobby := []*SearchObject{seed}
	size := seed.Size()

	if size < required {
		for _, cand := range e.rankCandidates(seed, eligible) {
			if cand.matched || size+cand.Size() > required {
				continue
			}
			trial := append(lobby, cand)
			if !e.lobbyFeasible(trial, pl) {
				continue
			}
			lobby = trial
			size += cand.Size()
			if size == required {
				break
			}
		}
	}

	if size < required {
		if !e.underfullAllowed(lobby, size) {
			return
		}
	}
	e.commitLobby(lobby, pl)
}

// underfullAllowed gates the explicit underfull-lobby relaxation. At least
// two searches are required so a lone party never plays itself.
func (e *Engine) underfullAllowed(lobby []*SearchObject, size int) bool {
	if !e.cfg.AllowUnderfullLobbies || size < 2 || len(lobby) < 2 {
		return false
	}
	for _, s := range lobby {
		if s.WaitSeconds(e.tick, e.cfg.TickInterval) < e.cfg.UnderfullWaitFloor {
			return false
		}
	}
	return true
}

// chooseDC picks the common data center minimizing the ping-quality score,
// skipping centers at the capacity limit. Ascending ID iteration with a
// strict comparison makes the smallest ID the tie-breaker.
func (e *Engine) chooseDC(lobby []*SearchObject, pl Playlist) (int, float64, bool) {
	bestID := -1
	bestScore := math.Inf(1)
	bestDelta := 0.0
	for _, dcID := range e.commonDCs(lobby) {
		if e.cfg.MaxMatchesPerDC > 0 && e.dcs[dcID].Busy[pl] >= e.cfg.MaxMatchesPerDC {
			continue
		}
		delta := e.avgDeltaPing(lobby, dcID)
		score := e.cfg.QualityWeightPing * delta
		if score < bestScore {
			bestScore = score
			bestID = dcID
			bestDelta = delta
		}
	}
	if bestID < 0 {
		return 0, 0, false
	}
	return bestID, bestDelta, true
}

func (e *Engine) avgDeltaPing(lobby []*SearchObject, dcID int) float64 {
	var sum float64
	n := 0
	for _, s := range lobby {
		for _, pid := range s.Members {
			p := e.players[pid]
			sum += p.Pings[dcID] - p.BestPing
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// commitLobby finalizes a feasible lobby: picks the data center, balances
// teams, creates the match, and moves every member into it. Leaves the seed
// unmatched when every common data center is at capacity.
func (e *Engine) commitLobby(lobby []*SearchObject, pl Playlist) {
	dcID, avgDelta, ok := e.chooseDC(lobby, pl)
	if !ok {
		return
	}

	minPct, maxPct := math.Inf(1), math.Inf(-1)
	var waitSum float64
	for _, s := range lobby {
		if s.AvgPercentile < minPct {
			minPct = s.AvgPercentile
		}
		if s.AvgPercentile > maxPct {
			maxPct = s.AvgPercentile
		}
		waitSum += s.WaitSeconds(e.tick, e.cfg.TickInterval)
	}
	disparity := maxPct - minPct
	avgWait := waitSum / float64(len(lobby))

	teams := e.balanceTeams(lobby, pl)
	teamSkills := make([]float64, len(teams))
	for i, team := range teams {
		var sum float64
		for _, pid := range team {
			sum += e.players[pid].Skill
		}
		if len(team) > 0 {
			teamSkills[i] = sum / float64(len(team))
		}
	}

	durationSeconds := pl.Duration() * e.rng.Uniform(0.8, 1.2)
	durationTicks := int64(math.Round(durationSeconds / e.cfg.TickInterval))
	if durationTicks < 1 {
		durationTicks = 1
	}

	m := &Match{
		ID:             e.nextMatchID,
		Playlist:       pl,
		DC:             dcID,
		Teams:          teams,
		TeamSkills:     teamSkills,
		StartTick:      e.tick,
		DurationTicks:  durationTicks,
		SkillDisparity: disparity,
		AvgDeltaPing:   avgDelta,
		QualityScore: e.cfg.QualityWeightPing*avgDelta +
			e.cfg.QualityWeightSkillBalance*disparity +
			e.cfg.QualityWeightWaitTime*avgWait,
	}
	e.nextMatchID++
	e.matches = append(e.matches, m)
	e.dcs[dcID].Busy[pl]++

	for _, s := range lobby {
		s.matched = true
		wait := s.WaitSeconds(e.tick, e.cfg.TickInterval)
		for _, pid := range s.Members {
			p := e.players[pid]
			p.State = StateInMatch
			p.CurrentMatch = m.ID
			delta := p.Pings[dcID] - p.BestPing
			p.RecentDeltaPings = pushFloat(p.RecentDeltaPings, delta)
			p.RecentSearchTimes = pushFloat(p.RecentSearchTimes, wait)
			e.stats.recordSearchTime(wait)
			e.stats.recordDeltaPing(delta)
		}
	}
	e.stats.recordMatch(disparity)

	if e.log != nil && e.log.IsLevelEnabled(logrus.DebugLevel) {
		e.log.WithFields(logrus.Fields{
			"match_id":  m.ID,
			"playlist":  pl,
			"dc":        e.dcs[dcID].Name,
			"players":   m.PlayerCount(),
			"disparity": disparity,
			"avg_delta": avgDelta,
		}).Debug("Match created")
	}
}
