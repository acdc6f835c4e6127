// Package analytics computes performance metrics for backtest results and
// writes the report artifacts served by the dashboard.
package analytics

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// DefaultAnnualization is the number of periods per year for daily bars.
const DefaultAnnualization = 252

// Metrics are the headline statistics of one backtest.
type Metrics struct {
	Sharpe      float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
	CAGR        float64 `json:"cagr"`
	WinRate     float64 `json:"win_rate"`
	Trades      int     `json:"trades"`
}

// ComputeMetrics derives Metrics from an equity curve, its timestamps and
// the completed trade returns. annualization <= 0 uses DefaultAnnualization.
func ComputeMetrics(equity []float64, times []time.Time, tradeReturns []float64, annualization float64) Metrics {
	if annualization <= 0 {
		annualization = DefaultAnnualization
	}
	m := Metrics{
		Sharpe:      Sharpe(equity, annualization),
		MaxDrawdown: MaxDrawdown(equity),
		WinRate:     WinRate(tradeReturns),
		Trades:      len(tradeReturns),
	}
	if len(times) == len(equity) && len(equity) > 0 {
		m.CAGR = CAGR(equity[0], equity[len(equity)-1], times[0], times[len(times)-1])
	}
	return m
}

// Returns computes simple period returns, skipping periods that start from
// zero equity.
func Returns(equity []float64) []float64 {
	out := make([]float64, 0, max(len(equity)-1, 0))
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		out = append(out, equity[i]/equity[i-1]-1)
	}
	return out
}

// Sharpe is the annualized mean return over the population std of returns.
func Sharpe(equity []float64, annualization float64) float64 {
	r := Returns(equity)
	if len(r) == 0 {
		return 0
	}
	mean, variance := stat.PopMeanVariance(r, nil)
	return math.Sqrt(annualization) * mean / (math.Sqrt(variance) + 1e-12)
}

// MaxDrawdown returns the largest peak-to-trough decline as a positive
// fraction of the peak. Non-positive peaks are ignored.
func MaxDrawdown(equity []float64) float64 {
	peak := math.Inf(-1)
	worst := 0.0
	for _, v := range equity {
		peak = math.Max(peak, v)
		if peak <= 0 {
			continue
		}
		worst = math.Min(worst, (v-peak)/peak)
	}
	return math.Abs(worst)
}

// CAGR is the compound annual growth rate between two equity values. Spans
// shorter than a day count as one day. Wiping out the account gives -1.
func CAGR(first, last float64, start, end time.Time) float64 {
	if first <= 0 {
		return 0
	}
	if last <= 0 {
		return -1
	}
	days := math.Floor(end.Sub(start).Hours() / 24)
	years := math.Max(days/365.25, 1/365.25)
	return math.Pow(last/first, 1/years) - 1
}

// WinRate is the fraction of trades with a positive return, 0 with no trades.
func WinRate(tradeReturns []float64) float64 {
	if len(tradeReturns) == 0 {
		return 0
	}
	wins := 0
	for _, r := range tradeReturns {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(tradeReturns))
}
