// Package model implements the statistical models behind pair selection and
// spread signals: rolling statistics, OLS hedge ratios, Ornstein-Uhlenbeck
// estimation and Engle-Granger cointegration tests.
package model

import "math"

// RollingWindow keeps the last Size values in a ring buffer together with a
// running sum and sum of squares.
type RollingWindow struct {
	buf   []float64
	next  int
	count int
	sum   float64
	sumSq float64
}

// NewRollingWindow creates a window over the last size values. size must be
// positive.
func NewRollingWindow(size int) *RollingWindow {
	if size < 1 {
		size = 1
	}
	return &RollingWindow{buf: make([]float64, size)}
}

// Push adds v, evicting the oldest value once the window is full.
func (w *RollingWindow) Push(v float64) {
	if w.count == len(w.buf) {
		old := w.buf[w.next]
		w.sum -= old
		w.sumSq -= old * old
	} else {
		w.count++
	}
	w.buf[w.next] = v
	w.sum += v
	w.sumSq += v * v
	w.next = (w.next + 1) % len(w.buf)
}

// Full reports whether the window holds Size values.
func (w *RollingWindow) Full() bool { return w.count == len(w.buf) }

// Len returns the number of values currently held.
func (w *RollingWindow) Len() int { return w.count }

// Mean returns the mean of the held values.
func (w *RollingWindow) Mean() float64 {
	if w.count == 0 {
		return 0
	}
	return w.sum / float64(w.count)
}

// StdDev returns the population standard deviation of the held values.
func (w *RollingWindow) StdDev() float64 {
	if w.count == 0 {
		return 0
	}
	n := float64(w.count)
	mean := w.sum / n
	v := w.sumSq/n - mean*mean
	// Running sums can drift slightly negative for constant input.
	if v <= varianceFloor(mean) {
		return 0
	}
	return math.Sqrt(v)
}

// varianceFloor is the variance below which a window is treated as constant.
func varianceFloor(mean float64) float64 {
	return 1e-12 * math.Max(1, mean*mean)
}
