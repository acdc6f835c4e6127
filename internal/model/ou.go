package model

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// OUParams are Ornstein-Uhlenbeck parameters of a spread: mean-reversion
// speed Theta, long-run mean Mu and volatility Sigma.
type OUParams struct {
	Theta float64 `json:"theta"`
	Mu    float64 `json:"mu"`
	Sigma float64 `json:"sigma"`
}

// HalfLife returns ln(2)/Theta in the time unit used for estimation, or +Inf
// when the spread does not mean-revert.
func (p OUParams) HalfLife() float64 {
	if p.Theta <= 0 {
		return math.Inf(1)
	}
	return math.Ln2 / p.Theta
}

// EstimateOU fits an AR(1) model s[t+1] = a + b*s[t] to the spread and maps it
// to OU parameters with time step dt. Fewer than three valid points give zero
// speed and volatility around the sample mean.
func EstimateOU(spread []float64, dt float64) OUParams {
	s := make([]float64, 0, len(spread))
	for _, v := range spread {
		if !math.IsNaN(v) {
			s = append(s, v)
		}
	}
	if len(s) < 3 {
		mu := 0.0
		if len(s) > 0 {
			mu = stat.Mean(s, nil)
		}
		return OUParams{Mu: mu}
	}
	if dt <= 0 {
		dt = 1
	}

	x, y := s[:len(s)-1], s[1:]
	var a, b float64
	if _, v := stat.PopMeanVariance(x, nil); v > 0 {
		a, b = stat.LinearRegression(x, y, nil, false)
	} else {
		// Constant regressor: pin b at the clip bound so Mu is the sample mean.
		b = 0.999999
		a = stat.Mean(y, nil) * (1 - b)
	}
	b = math.Min(math.Max(b, 1e-6), 0.999999)

	theta := -math.Log(b) / dt
	mu := a / (1 - b)

	resid := make([]float64, len(x))
	for i := range x {
		resid[i] = y[i] - (a + b*x[i])
	}
	sigmaHat := stat.StdDev(resid, nil)
	sigma := sigmaHat
	if theta > 0 {
		sigma = sigmaHat * math.Sqrt(2*theta/(1-b*b))
	}
	return OUParams{Theta: theta, Mu: mu, Sigma: math.Abs(sigma)}
}
