package engine

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"
)

// regionalCenter is one component of the location mixture players are drawn
// from.
type regionalCenter struct {
	Name   string
	Center LatLon
	Weight float64
}

var populationCenters = []regionalCenter{
	{Name: "north_america", Center: LatLon{Lat: 39, Lon: -98}, Weight: 0.35},
	{Name: "europe", Center: LatLon{Lat: 50, Lon: 10}, Weight: 0.30},
	{Name: "asia_pacific", Center: LatLon{Lat: 31, Lon: 121}, Weight: 0.20},
	{Name: "oceania", Center: LatLon{Lat: -33, Lon: 151}, Weight: 0.08},
	{Name: "south_america", Center: LatLon{Lat: -15, Lon: -55}, Weight: 0.07},
}

const (
	locationJitterLat = 10.0
	locationJitterLon = 15.0

	controllerProb    = 0.6
	addDominationProb = 0.4
	addSearchProb     = 0.2

	pingKmDivisor = 100.0
	pingBaseMs    = 15.0
	pingJitterMs  = 7.5
	pingFloorMs   = 10.0
)

func (e *Engine) samplePlayerLocation() LatLon {
	roll := e.rng.Float64()
	center := populationCenters[len(populationCenters)-1]
	for _, c := range populationCenters {
		if roll < c.Weight {
			center = c
			break
		}
		roll -= c.Weight
	}
	return LatLon{
		Lat: center.Center.Lat + e.rng.Uniform(-locationJitterLat, locationJitterLat),
		Lon: center.Center.Lon + e.rng.Uniform(-locationJitterLon, locationJitterLon),
	}
}

func (e *Engine) generatePlayer(id PlayerID) *Player {
	p := &Player{
		ID:           id,
		Location:     e.samplePlayerLocation(),
		Platform:     allPlatforms[e.rng.Intn(len(allPlatforms))],
		State:        StateOffline,
		CurrentMatch: -1,
	}
	if e.rng.Bernoulli(controllerProb) {
		p.Input = InputController
	} else {
		p.Input = InputMouseKeyboard
	}

	// Approximate standard normal skill, squashed to [-1, 1].
	s := e.rng.ApproxNormal() / 3.0
	p.Skill = math.Max(-1, math.Min(1, s))

	p.Preferred = []Playlist{PlaylistTDM}
	if e.rng.Bernoulli(addDominationProb) {
		p.Preferred = append(p.Preferred, PlaylistDomination)
	}
	if e.rng.Bernoulli(addSearchProb) {
		p.Preferred = append(p.Preferred, PlaylistSearch)
	}

	p.Pings = make([]float64, len(e.dcs))
	p.BestDC = 0
	p.BestPing = math.Inf(1)
	for _, dc := range e.dcs {
		ping := HaversineKm(p.Location, dc.Location)/pingKmDivisor + pingBaseMs + e.rng.Uniform(-pingJitterMs, pingJitterMs)
		if ping < pingFloorMs {
			ping = pingFloorMs
		}
		p.Pings[dc.ID] = ping
		if ping < p.BestPing {
			p.BestPing = ping
			p.BestDC = dc.ID
		}
	}
	return p
}

// assignParties groups roughly PartyPlayerFraction of the population into
// parties of 2-4. Party members queue as one search object and are never
// split across teams.
func (e *Engine) assignParties() {
	frac := e.cfg.PartyPlayerFraction
	if frac <= 0 {
		return
	}
	target := int(frac * float64(len(e.players)))
	if target < 2 {
		return
	}

	ids := make([]int, len(e.players))
	for i := range ids {
		ids[i] = i
	}
	pool := e.rng.SampleInts(ids, target)

	nextParty := 1
	for len(pool) >= 2 {
		size := 2 + e.rng.Intn(3) // 2..4
		if size > len(pool) {
			size = len(pool)
		}
		members := make([]PlayerID, 0, size)
		for _, idx := range pool[:size] {
			pid := PlayerID(idx)
			e.players[pid].PartyID = nextParty
			members = append(members, pid)
		}
		// Lowest ID acts as the party leader in the search-start phase.
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		e.parties[nextParty] = &party{ID: nextParty, Members: members}
		nextParty++
		pool = pool[size:]
	}
}

// recomputePercentiles assigns global percentile ranks by sorted raw skill
// and derives buckets. Runs at population generation and, when skill
// evolution is on, every skill_update_batch_size completed matches.
func (e *Engine) recomputePercentiles() {
	n := len(e.players)
	if n == 0 {
		return
	}
	order := make([]PlayerID, n)
	for i := range order {
		order[i] = PlayerID(i)
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := e.players[order[i]], e.players[order[j]]
		if a.Skill != b.Skill {
			return a.Skill < b.Skill
		}
		return a.ID < b.ID
	})
	buckets := e.cfg.NumSkillBuckets
	for rank, pid := range order {
		p := e.players[pid]
		p.Percentile = (float64(rank) + 0.5) / float64(n)
		p.Bucket = int(p.Percentile*float64(buckets)) + 1
		if p.Bucket > buckets {
			p.Bucket = buckets
		}
	}
}

// GeneratePopulation creates n players with locations, platforms, skills,
// preferred playlists, and per-DC pings, then assigns percentile ranks and
// buckets. Idempotent per engine instance: a repeat call with the same n is
// a no-op, a different n is an error.
func (e *Engine) GeneratePopulation(n int) error {
	if n <= 0 {
		return ErrInvalidPopulation
	}
	if e.popGenerated {
		if n == len(e.players) {
			return nil
		}
		return ErrPopulationMismatch
	}

	e.players = make([]*Player, 0, n)
	for i := 0; i < n; i++ {
		e.players = append(e.players, e.generatePlayer(PlayerID(i)))
	}
	e.recomputePercentiles()
	e.assignParties()
	e.popGenerated = true

	if e.log != nil {
		e.log.WithFields(logrus.Fields{
			"population":   n,
			"parties":      len(e.parties),
			"data_centers": len(e.dcs),
		}).Info("Population generated")
	}
	return nil
}
