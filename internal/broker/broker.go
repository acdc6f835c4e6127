// Package broker simulates order execution for backtests: delayed fills,
// random adverse slippage and proportional transaction fees.
package broker

import (
	"math/rand/v2"

	"statarb/internal/domain"
)

// Broker turns a pending order into a fill at the given bar prices.
type Broker interface {
	// Name returns the broker identifier (e.g. "simulator").
	Name() string

	// Fill executes order at bar with leg prices px and returns the fill. held
	// is the position side before the fill.
	Fill(order domain.OrderEvent, bar int, px [2]float64, held domain.Side) domain.FillEvent
}

// RandomSource yields uniform draws in [lo, hi).
type RandomSource interface {
	Uniform(lo, hi float64) float64
}

// Compile-time interface check.
var _ RandomSource = (*PCGSource)(nil)

// PCGSource is a seeded RandomSource. It is not safe for concurrent use;
// give each run its own source.
type PCGSource struct {
	rng *rand.Rand
}

// NewPCGSource returns a PCG generator seeded with seed.
func NewPCGSource(seed uint64) *PCGSource {
	return &PCGSource{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Uniform returns a draw in [lo, hi). lo == hi returns lo.
func (s *PCGSource) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*s.rng.Float64()
}

// FixedSource always returns the same value, clamped to [lo, hi].
type FixedSource float64

// Uniform returns the fixed value clamped to [lo, hi].
func (f FixedSource) Uniform(lo, hi float64) float64 {
	return min(max(float64(f), lo), hi)
}
