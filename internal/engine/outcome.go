package engine

import (
	"math"

	"github.com/sirupsen/logrus"
)

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// phaseCompletions resolves every match whose scheduled duration has
// elapsed: draws the outcome, updates player histories, applies retention,
// and frees the data-center slot.
func (e *Engine) phaseCompletions() {
	remaining := e.matches[:0]
	for _, m := range e.matches {
		if e.tick >= m.StartTick+m.DurationTicks {
			e.resolveMatch(m)
			busy := e.dcs[m.DC].Busy
			if busy[m.Playlist] > 0 {
				busy[m.Playlist]--
			}
		} else {
			remaining = append(remaining, m)
		}
	}
	e.matches = remaining
}

func (e *Engine) resolveMatch(m *Match) {
	var winner int
	var winProb float64
	var severity BlowoutSeverity

	lobbyAvgSkill := 0.0
	for _, pid := range m.Players() {
		lobbyAvgSkill += e.players[pid].Skill
	}
	lobbyAvgSkill /= float64(m.PlayerCount())

	if m.Playlist.IsFFA() {
		winner, severity = e.resolveFFA(m)
		winProb = 0.5
	} else {
		sA, sB := m.TeamSkills[0], m.TeamSkills[1]
		winProb = sigmoid(e.cfg.Gamma * (sA - sB))
		if e.rng.Bernoulli(winProb) {
			winner = 0
		} else {
			winner = 1
		}
		severity = e.classifyBlowout(math.Abs(sA-sB), winProb)
	}
	e.stats.recordBlowout(severity)

	blowout := severity != BlowoutNone
	for teamIdx, team := range m.Teams {
		won := teamIdx == winner
		for _, pid := range team {
			p := e.players[pid]
			e.applyResult(p, won, blowout, lobbyAvgSkill)
		}
	}

	if e.cfg.EnableSkillEvolution {
		e.matchesSinceRank++
		if e.matchesSinceRank >= e.cfg.SkillUpdateBatchSize {
			e.recomputePercentiles()
			e.matchesSinceRank = 0
		}
	}

	if e.log != nil && e.log.IsLevelEnabled(logrus.DebugLevel) {
		e.log.WithFields(logrus.Fields{
			"match_id": m.ID,
			"playlist": m.Playlist,
			"winner":   winner,
			"win_prob": winProb,
			"severity": severity,
		}).Debug("Match completed")
	}
}

// resolveFFA draws the winner as the noisiest-best performer. The blowout
// score degenerates to the skill-spread term since there is no two-team
// imbalance.
func (e *Engine) resolveFFA(m *Match) (int, BlowoutSeverity) {
	winner := 0
	best := math.Inf(-1)
	minSkill, maxSkill := math.Inf(1), math.Inf(-1)
	for i, team := range m.Teams {
		s := e.players[team[0]].Skill
		perf := s + e.rng.NormFloat64()*e.cfg.PerformanceNoiseStd
		if perf > best {
			best = perf
			winner = i
		}
		if s < minSkill {
			minSkill = s
		}
		if s > maxSkill {
			maxSkill = s
		}
	}
	return winner, e.classifyBlowout(maxSkill-minSkill, 0.5)
}

// classifyBlowout scores lopsidedness from the normalized skill gap and the
// win-probability deviation, then thresholds it. The score-threshold
// formulation keeps P(blowout) monotone in both inputs.
func (e *Engine) classifyBlowout(skillGap, winProb float64) BlowoutSeverity {
	score := e.cfg.BlowoutSkillCoefficient*math.Max(0, (skillGap-0.1)/0.4) +
		e.cfg.BlowoutImbalanceCoefficient*2*math.Abs(winProb-0.5)
	switch {
	case score >= e.cfg.BlowoutSevereThreshold:
		return BlowoutSevere
	case score >= e.cfg.BlowoutModerateThreshold:
		return BlowoutModerate
	case score >= e.cfg.BlowoutMildThreshold:
		return BlowoutMild
	}
	return BlowoutNone
}

// applyResult updates one player's histories after a match and draws the
// continue/quit decision.
func (e *Engine) applyResult(p *Player, won, blowout bool, lobbyAvgSkill float64) {
	p.MatchesPlayed++
	p.SessionMatches++
	if won {
		p.Wins++
		p.LossStreak = 0
	} else {
		p.Losses++
		p.LossStreak++
	}
	p.RecentBlowouts = pushBool(p.RecentBlowouts, blowout)

	// Normalized in-match performance around the lobby expectation.
	perf := clamp(0.5+0.25*(p.Skill-lobbyAvgSkill)+e.rng.NormFloat64()*e.cfg.PerformanceNoiseStd, 0, 1)
	p.LastPerf = perf

	if e.cfg.EnableSkillEvolution {
		// E[perf] is the lobby-average expectation of 0.5 by construction.
		p.Skill = clamp(p.Skill+e.cfg.SkillLearningRate*(perf-0.5), -1, 1)
	}

	p.CurrentMatch = -1
	if e.rng.Bernoulli(e.continueProbability(p)) {
		p.State = StateInLobby
	} else {
		p.State = StateOffline
	}
}

// continueProbability evaluates the retention model over the player's
// recent experience window. The floor keeps degenerate configurations from
// mass-disconnecting the population.
func (e *Engine) continueProbability(p *Player) float64 {
	r := e.cfg.Retention

	window := func(ring []float64) []float64 {
		if len(ring) > r.Window {
			return ring[len(ring)-r.Window:]
		}
		return ring
	}
	blowouts := p.RecentBlowouts
	if len(blowouts) > r.Window {
		blowouts = blowouts[len(blowouts)-r.Window:]
	}

	x := r.Base +
		r.ThetaPing*meanFloats(window(p.RecentDeltaPings)) +
		r.ThetaSearch*meanFloats(window(p.RecentSearchTimes)) +
		r.ThetaBlowout*boolRate(blowouts) +
		r.ThetaWin*p.WinRate() +
		r.ThetaPerf*p.LastPerf +
		r.ThetaStreak*float64(p.LossStreak) +
		r.ThetaFatigue*float64(p.SessionMatches)

	return clamp(sigmoid(x), r.Floor, 1)
}
