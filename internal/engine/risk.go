package engine

import "math"

// Kelly sizing defaults.
const (
	DefaultKellyMinFraction = 0.01
	DefaultKellyMaxFraction = 0.25
	DefaultKellyMinTrades   = 10
)

const payoffEpsilon = 1e-8

// KellySizer sizes positions by the Kelly fraction of the completed-trade
// history, clamped to [MinFraction, MaxFraction].
type KellySizer struct {
	MinFraction float64
	MaxFraction float64
	// MinTrades is the history length below which MinFraction is used.
	// Zero means DefaultKellyMinTrades.
	MinTrades int
}

// DefaultKellySizer returns a sizer with the default bounds.
func DefaultKellySizer() KellySizer {
	return KellySizer{
		MinFraction: DefaultKellyMinFraction,
		MaxFraction: DefaultKellyMaxFraction,
		MinTrades:   DefaultKellyMinTrades,
	}
}

// Raw returns the unclamped Kelly fraction p - (1-p)/b of the history. ok is
// false when the history is too short or has only wins or only losses.
func (k KellySizer) Raw(returns []float64) (f float64, ok bool) {
	minTrades := k.MinTrades
	if minTrades <= 0 {
		minTrades = DefaultKellyMinTrades
	}
	if len(returns) < minTrades {
		return 0, false
	}
	var wins, losses int
	var winSum, lossSum float64
	for _, r := range returns {
		if r > 0 {
			wins++
			winSum += r
		} else {
			losses++
			lossSum += math.Abs(r)
		}
	}
	if wins == 0 || losses == 0 {
		return 0, false
	}
	p := float64(wins) / float64(len(returns))
	b := (winSum / float64(wins)) / math.Max(lossSum/float64(losses), payoffEpsilon)
	return p - (1-p)/b, true
}

// Fraction returns the capital fraction to commit given the trade history.
// Degenerate histories get MinFraction.
func (k KellySizer) Fraction(returns []float64) float64 {
	f, ok := k.Raw(returns)
	if !ok {
		return k.MinFraction
	}
	return math.Min(math.Max(f, k.MinFraction), k.MaxFraction)
}

// ApplyDrawdownLimit throttles rawFraction linearly as the current drawdown
// approaches maxDrawdown, keeping at least 10% of it, and returns 0 once the
// limit is reached.
func ApplyDrawdownLimit(currentDrawdown, rawFraction, maxDrawdown float64) float64 {
	if currentDrawdown <= 0 {
		return rawFraction
	}
	if currentDrawdown >= maxDrawdown {
		return 0
	}
	scale := 1 - currentDrawdown/maxDrawdown
	return rawFraction * math.Max(scale, 0.1)
}

// drawdownTracker keeps the running peak and the largest peak-to-trough drop
// of an equity curve as values are appended.
type drawdownTracker struct {
	peak float64
	max  float64
}

func (d *drawdownTracker) observe(equity float64) {
	if equity > d.peak {
		d.peak = equity
	}
	if d.peak <= 0 {
		return
	}
	if dd := (d.peak - equity) / d.peak; dd > d.max {
		d.max = dd
	}
}
