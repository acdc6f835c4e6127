package model

import (
	"gonum.org/v1/gonum/stat"

	"statarb/internal/domain"
)

// HedgeFit is an OLS fit of priceX = Intercept + HedgeRatio*priceY.
type HedgeFit struct {
	HedgeRatio float64
	Intercept  float64
	N          int
}

// FitHedgeRatio regresses x on y plus intercept over the rows where both are
// present. Fewer than two rows or a constant y give a zero hedge ratio.
func FitHedgeRatio(x, y []float64) HedgeFit {
	xs, ys := domain.JointlyValid(x, y)
	if len(xs) < 2 {
		return HedgeFit{N: len(xs)}
	}
	mean, variance := stat.PopMeanVariance(ys, nil)
	if variance <= varianceFloor(mean) {
		return HedgeFit{Intercept: stat.Mean(xs, nil), N: len(xs)}
	}
	alpha, beta := stat.LinearRegression(ys, xs, nil, false)
	return HedgeFit{HedgeRatio: beta, Intercept: alpha, N: len(xs)}
}

// HedgeRatio fits the hedge ratio of pair on the given panel window.
func HedgeRatio(p *domain.PricePanel, pair domain.Pair) (float64, error) {
	x, err := p.Column(pair.X)
	if err != nil {
		return 0, err
	}
	y, err := p.Column(pair.Y)
	if err != nil {
		return 0, err
	}
	return FitHedgeRatio(x, y).HedgeRatio, nil
}

// Spread returns x - hedgeRatio*y element-wise; NaN inputs propagate.
func Spread(x, y []float64, hedgeRatio float64) []float64 {
	n := min(len(x), len(y))
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = x[i] - hedgeRatio*y[i]
	}
	return out
}

// PanelSpread returns the spread series of pair over the panel.
func PanelSpread(p *domain.PricePanel, pair domain.Pair, hedgeRatio float64) ([]float64, error) {
	x, err := p.Column(pair.X)
	if err != nil {
		return nil, err
	}
	y, err := p.Column(pair.Y)
	if err != nil {
		return nil, err
	}
	return Spread(x, y, hedgeRatio), nil
}
