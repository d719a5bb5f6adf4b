package engine

import (
	"math"
	"math/rand"
)

// RNG is the engine's single deterministic randomness source. Every
// stochastic decision in a run draws from it, so two engines built with the
// same seed replay the same stream.
type RNG struct {
	r *rand.Rand
}

// NewRNG creates a seeded random source
func NewRNG(seed int64) *RNG {
	return &RNG{r: rand.New(rand.NewSource(seed))}
}

// Float64 returns a uniform draw in [0, 1)
func (g *RNG) Float64() float64 {
	return g.r.Float64()
}

// Intn returns a uniform draw in [0, n)
func (g *RNG) Intn(n int) int {
	return g.r.Intn(n)
}

// Uniform returns a uniform draw in [lo, hi)
func (g *RNG) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*g.r.Float64()
}

// NormFloat64 returns a standard normal draw
func (g *RNG) NormFloat64() float64 {
	return g.r.NormFloat64()
}

// Bernoulli returns true with probability p
func (g *RNG) Bernoulli(p float64) bool {
	return g.r.Float64() < p
}

// Poisson samples a Poisson-distributed count with the given mean. Small
// means use Knuth's product method; large means fall back to a normal
// approximation so the draw stays O(1).
func (g *RNG) Poisson(mean float64) int {
	if mean <= 0 {
		return 0
	}
	if mean > 30 {
		k := int(math.Round(mean + math.Sqrt(mean)*g.r.NormFloat64()))
		if k < 0 {
			return 0
		}
		return k
	}
	limit := math.Exp(-mean)
	k := 0
	p := 1.0
	for {
		p *= g.r.Float64()
		if p <= limit {
			return k
		}
		k++
	}
}

// SampleInts picks k distinct elements from ids uniformly at random using a
// partial Fisher-Yates shuffle. The input slice is reordered in place; the
// first k elements are the sample.
func (g *RNG) SampleInts(ids []int, k int) []int {
	if k > len(ids) {
		k = len(ids)
	}
	for i := 0; i < k; i++ {
		j := i + g.r.Intn(len(ids)-i)
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids[:k]
}

// ApproxNormal returns an approximate standard normal draw as the shifted
// sum of 12 uniforms (Irwin-Hall).
func (g *RNG) ApproxNormal() float64 {
	sum := 0.0
	for i := 0; i < 12; i++ {
		sum += g.r.Float64()
	}
	return sum - 6.0
}
