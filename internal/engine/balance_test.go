package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func soloSearch(eng *Engine, pid PlayerID, skill float64) *SearchObject {
	eng.players[pid].Skill = skill
	return &SearchObject{Members: []PlayerID{pid}}
}

func TestBalanceTeams_FFAOneTeamPerPlayer(t *testing.T) {
	eng := newTestEngine(t, DefaultConfig(), 1, 30)

	lobby := make([]*SearchObject, 0, PlaylistFFA.Required())
	for i := 0; i < PlaylistFFA.Required(); i++ {
		lobby = append(lobby, soloSearch(eng, PlayerID(i), float64(i)*0.1-0.5))
	}
	teams := eng.balanceTeams(lobby, PlaylistFFA)

	require.Len(t, teams, PlaylistFFA.Required())
	seen := make(map[PlayerID]bool)
	for _, team := range teams {
		require.Len(t, team, 1)
		assert.False(t, seen[team[0]], "player %d appears twice", team[0])
		seen[team[0]] = true
	}
}

func TestBalanceTeams_EqualHalves(t *testing.T) {
	eng := newTestEngine(t, DefaultConfig(), 1, 30)

	lobby := make([]*SearchObject, 0, 12)
	for i := 0; i < 12; i++ {
		lobby = append(lobby, soloSearch(eng, PlayerID(i), float64(i%5)*0.2-0.4))
	}
	teams := eng.balanceTeams(lobby, PlaylistTDM)

	require.Len(t, teams, 2)
	assert.Len(t, teams[0], 6)
	assert.Len(t, teams[1], 6)

	seen := make(map[PlayerID]bool)
	for _, team := range teams {
		for _, pid := range team {
			assert.False(t, seen[pid])
			seen[pid] = true
		}
	}
	assert.Len(t, seen, 12, "teams partition the lobby")
}

func TestBalanceTeams_ExactMinimizesSkillGap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseExactTeamBalancing = true
	eng := newTestEngine(t, cfg, 1, 30)

	// Skills picked so the optimal split is exact: both halves sum to 1.2.
	skills := []float64{0.8, 0.6, 0.4, 0.2, 0.0, 0.4}
	lobby := make([]*SearchObject, 0, len(skills))
	for i, s := range skills {
		lobby = append(lobby, soloSearch(eng, PlayerID(i), s))
	}
	teams := eng.balanceTeams(lobby, PlaylistTDM)

	require.Len(t, teams, 2)
	sum := func(team []PlayerID) float64 {
		var total float64
		for _, pid := range team {
			total += eng.players[pid].Skill
		}
		return total
	}
	assert.InDelta(t, 0, math.Abs(sum(teams[0])-sum(teams[1])), 1e-9,
		"exact balancing finds the zero-gap split")
}

func TestBalanceTeams_PartiesStayTogether(t *testing.T) {
	eng := newTestEngine(t, DefaultConfig(), 1, 40)

	partySearch := &SearchObject{Members: []PlayerID{0, 1, 2, 3}}
	for _, pid := range partySearch.Members {
		eng.players[pid].Skill = 0.8
	}
	lobby := []*SearchObject{partySearch}
	for i := 4; i < 12; i++ {
		lobby = append(lobby, soloSearch(eng, PlayerID(i), -0.2))
	}

	teams := eng.balanceTeams(lobby, PlaylistTDM)
	require.Len(t, teams, 2)

	teamOf := make(map[PlayerID]int)
	for idx, team := range teams {
		for _, pid := range team {
			teamOf[pid] = idx
		}
	}
	home := teamOf[0]
	for _, pid := range partySearch.Members {
		assert.Equal(t, home, teamOf[pid], "party member %d was split off", pid)
	}
}

func TestBalanceTeams_LargeModeUsesDraft(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseExactTeamBalancing = true // ignored above the exact-size bound
	eng := newTestEngine(t, cfg, 1, 100)

	lobby := make([]*SearchObject, 0, PlaylistGroundWar.Required())
	for i := 0; i < PlaylistGroundWar.Required(); i++ {
		lobby = append(lobby, soloSearch(eng, PlayerID(i), float64(i%10)*0.2-0.9))
	}
	teams := eng.balanceTeams(lobby, PlaylistGroundWar)

	require.Len(t, teams, 2)
	assert.Len(t, teams[0], 32)
	assert.Len(t, teams[1], 32)

	sum := func(team []PlayerID) float64 {
		var total float64
		for _, pid := range team {
			total += eng.players[pid].Skill
		}
		return total
	}
	assert.InDelta(t, sum(teams[0]), sum(teams[1]), 1.0,
		"the snake draft keeps the halves close in total skill")
}

func TestDraftPartition_RespectsCapacity(t *testing.T) {
	units := []balanceUnit{
		{players: []PlayerID{0, 1, 2}, skill: 1.5},
		{players: []PlayerID{3, 4, 5}, skill: 1.2},
		{players: []PlayerID{6}, skill: 0.9},
		{players: []PlayerID{7}, skill: -0.3},
	}
	teams := draftPartition(units, 4)
	require.Len(t, teams, 2)
	assert.LessOrEqual(t, len(teams[0]), 4)
	assert.LessOrEqual(t, len(teams[1]), 4)
	assert.Equal(t, 8, len(teams[0])+len(teams[1]))
}

func TestExactPartition_FallsBackWhenNoEqualSplit(t *testing.T) {
	// A five-player party in a six-player lobby cannot split 3/3.
	units := []balanceUnit{
		{players: []PlayerID{0, 1, 2, 3, 4}, skill: 1.0},
		{players: []PlayerID{5}, skill: 0.2},
	}
	_, _, ok := exactPartition(units, 6)
	assert.False(t, ok)
}
