package model

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// RollingZScore returns (spread - rollingMean) / rollingStd over the trailing
// lookback values, population std. Bars before the window fills, bars with a
// zero rolling std and NaN spreads score 0.
func RollingZScore(spread []float64, lookback int) []float64 {
	z := make([]float64, len(spread))
	w := NewRollingWindow(lookback)
	for i, s := range spread {
		if math.IsNaN(s) {
			continue
		}
		w.Push(s)
		if !w.Full() {
			continue
		}
		sd := w.StdDev()
		if sd == 0 {
			continue
		}
		z[i] = (s - w.Mean()) / sd
	}
	return z
}

// StaticZScore standardizes the spread against its full-sample mean and
// population std. It looks ahead and is meant for in-sample diagnostics.
func StaticZScore(spread []float64) []float64 {
	z := make([]float64, len(spread))
	valid := make([]float64, 0, len(spread))
	for _, s := range spread {
		if !math.IsNaN(s) {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return z
	}
	mean, variance := stat.PopMeanVariance(valid, nil)
	if variance <= varianceFloor(mean) {
		return z
	}
	sd := math.Sqrt(variance)
	for i, s := range spread {
		if !math.IsNaN(s) {
			z[i] = (s - mean) / sd
		}
	}
	return z
}
