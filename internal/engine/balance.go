package engine

import (
	"math"
	"sort"
)

// exactBalanceMaxPlayers bounds the partition search; larger lobbies use
// the draft assignment.
const exactBalanceMaxPlayers = 16

// balanceUnit is an atomically assignable group: a whole party or a single
// solo player.
type balanceUnit struct {
	players []PlayerID
	skill   float64 // summed raw skill
}

// balanceTeams partitions a completed lobby into teams. FFA puts every
// player on their own team; team modes split into two halves minimizing the
// team-skill difference, exactly for small lobbies when enabled, via a
// snake draft otherwise. Parties are never split.
func (e *Engine) balanceTeams(lobby []*SearchObject, pl Playlist) [][]PlayerID {
	if pl.IsFFA() {
		teams := make([][]PlayerID, 0)
		for _, s := range lobby {
			for _, pid := range s.Members {
				teams = append(teams, []PlayerID{pid})
			}
		}
		return teams
	}

	units := make([]balanceUnit, 0, len(lobby))
	total := 0
	for _, s := range lobby {
		if s.Size() > 1 {
			u := balanceUnit{players: append([]PlayerID(nil), s.Members...)}
			for _, pid := range s.Members {
				u.skill += e.players[pid].Skill
			}
			units = append(units, u)
		} else {
			pid := s.Members[0]
			units = append(units, balanceUnit{players: []PlayerID{pid}, skill: e.players[pid].Skill})
		}
		total += s.Size()
	}

	teamSize := (total + 1) / 2
	if e.cfg.UseExactTeamBalancing && total <= exactBalanceMaxPlayers {
		if a, b, ok := exactPartition(units, total); ok {
			return [][]PlayerID{a, b}
		}
	}
	return draftPartition(units, teamSize)
}

// exactPartition searches unit assignments for the split with equal halves
// (within one player) and minimal skill difference. The search space is at
// most 2^len(units), bounded by exactBalanceMaxPlayers.
func exactPartition(units []balanceUnit, total int) ([]PlayerID, []PlayerID, bool) {
	sizeA := total / 2
	best := math.Inf(1)
	var bestMask uint32
	found := false

	sizes := make([]int, len(units))
	skills := make([]float64, len(units))
	totalSkill := 0.0
	for i, u := range units {
		sizes[i] = len(u.players)
		skills[i] = u.skill
		totalSkill += u.skill
	}

	for mask := uint32(0); mask < 1<<uint(len(units)); mask++ {
		count := 0
		skill := 0.0
		for i := range units {
			if mask&(1<<uint(i)) != 0 {
				count += sizes[i]
				skill += skills[i]
			}
		}
		if count != sizeA {
			continue
		}
		diff := math.Abs(skill - (totalSkill - skill))
		if diff < best {
			best = diff
			bestMask = mask
			found = true
		}
	}
	if !found {
		// Parties can make an exact split impossible; fall back to the
		// draft.
		return nil, nil, false
	}

	var a, b []PlayerID
	for i, u := range units {
		if bestMask&(1<<uint(i)) != 0 {
			a = append(a, u.players...)
		} else {
			b = append(b, u.players...)
		}
	}
	return a, b, true
}

// draftPartition snake-drafts units over the skill order: A B B A A B B A.
// The alternating double picks keep the halves close in total skill without
// assuming skills are positive. Units that no longer fit their snake slot
// spill to the other side.
func draftPartition(units []balanceUnit, teamSize int) [][]PlayerID {
	sorted := append([]balanceUnit(nil), units...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ai := sorted[i].skill / float64(len(sorted[i].players))
		aj := sorted[j].skill / float64(len(sorted[j].players))
		if ai != aj {
			return ai > aj
		}
		return sorted[i].players[0] < sorted[j].players[0]
	})

	var teamA, teamB []PlayerID
	for i, u := range sorted {
		wantA := i%4 == 0 || i%4 == 3
		fitsA := len(teamA)+len(u.players) <= teamSize
		fitsB := len(teamB)+len(u.players) <= teamSize
		switch {
		case wantA && fitsA, !wantA && !fitsB && fitsA:
			teamA = append(teamA, u.players...)
		case fitsB:
			teamB = append(teamB, u.players...)
		case fitsA:
			teamA = append(teamA, u.players...)
		default:
			// Party sizes can exceed the remaining capacity on both sides;
			// put the unit on the smaller team to keep the partition
			// covering.
			if len(teamA) <= len(teamB) {
				teamA = append(teamA, u.players...)
			} else {
				teamB = append(teamB, u.players...)
			}
		}
	}
	return [][]PlayerID{teamA, teamB}
}
