// Package domain defines the core value types shared by the pair selection,
// signal, sizing and simulation packages.
package domain

import (
	"fmt"
	"time"
)

// Bar is a single daily OHLCV observation for one symbol.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// Pair identifies the two legs of a spread. X is the leg whose quantity is
// sized; Y is hedged by the hedge ratio.
type Pair struct {
	X string `json:"x"`
	Y string `json:"y"`
}

// String returns "X/Y".
func (p Pair) String() string {
	return p.X + "/" + p.Y
}

// PairCandidate is one cointegrated pair found by the selector.
type PairCandidate struct {
	AssetX        string  `json:"asset_x"`
	AssetY        string  `json:"asset_y"`
	PValue        float64 `json:"p_value"`
	TestStatistic float64 `json:"test_statistic"`
}

// Pair returns the candidate's legs.
func (c PairCandidate) Pair() Pair {
	return Pair{X: c.AssetX, Y: c.AssetY}
}

// Side is the direction of a spread position or order: +1 long spread
// (long X, short Y), -1 short spread, 0 flat.
type Side int

const (
	SideShort Side = -1
	SideFlat  Side = 0
	SideLong  Side = 1
)

// String returns "long", "short" or "flat".
func (s Side) String() string {
	switch s {
	case SideLong:
		return "long"
	case SideShort:
		return "short"
	case SideFlat:
		return "flat"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// SpreadState is the position state of a spread signal model.
type SpreadState int

const (
	StateFlat SpreadState = iota
	StateLongSpread
	StateShortSpread
)

// Side maps the state to the position side it represents.
func (s SpreadState) Side() Side {
	switch s {
	case StateLongSpread:
		return SideLong
	case StateShortSpread:
		return SideShort
	default:
		return SideFlat
	}
}

// String returns a short label for the state.
func (s SpreadState) String() string {
	switch s {
	case StateFlat:
		return "flat"
	case StateLongSpread:
		return "long_spread"
	case StateShortSpread:
		return "short_spread"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SignalEvent is emitted by a signal model on a state transition.
type SignalEvent struct {
	Bar       int       `json:"bar"`
	Timestamp time.Time `json:"timestamp"`
	Pair      Pair      `json:"pair"`
	Side      Side      `json:"side"`
	Strength  float64   `json:"strength"`
}

// OrderEvent is an immediate-or-cancel market order for the spread. Bar is
// the submission bar.
type OrderEvent struct {
	Bar       int       `json:"bar"`
	Timestamp time.Time `json:"timestamp"`
	Pair      Pair      `json:"pair"`
	Side      Side      `json:"side"`
	Quantity  float64   `json:"quantity"`
}

// FillEvent is the execution of an OrderEvent. FillPrices holds the slipped
// prices of the X and Y legs.
type FillEvent struct {
	Bar        int        `json:"bar"`
	Timestamp  time.Time  `json:"timestamp"`
	Pair       Pair       `json:"pair"`
	Side       Side       `json:"side"`
	Quantity   float64    `json:"quantity"`
	FillPrices [2]float64 `json:"fill_prices"`
	Fee        float64    `json:"fee"`
}

// BacktestResult is the output of one simulation run. Equity and Positions
// are aligned with Timestamps.
type BacktestResult struct {
	Pair         Pair          `json:"pair"`
	HedgeRatio   float64       `json:"hedge_ratio"`
	Timestamps   []time.Time   `json:"timestamps"`
	Equity       []float64     `json:"equity"`
	Positions    []Side        `json:"positions"`
	TradeReturns []float64     `json:"trade_returns"`
	Signals      []SignalEvent `json:"signals"`
	Orders       []OrderEvent  `json:"orders"`
	Fills        []FillEvent   `json:"fills"`
}

// FinalEquity returns the last value of the equity curve, or 0 if empty.
func (r *BacktestResult) FinalEquity() float64 {
	if len(r.Equity) == 0 {
		return 0
	}
	return r.Equity[len(r.Equity)-1]
}
