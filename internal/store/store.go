// Package store persists market data and backtest runs: daily bars in a
// Parquet cache and run results in SQLite.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"statarb/internal/analytics"
	"statarb/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// BarStore persists and retrieves daily bar data.
type BarStore interface {
	// WriteBars persists a batch of bars under market, merging with what is
	// already stored.
	WriteBars(ctx context.Context, market string, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market within [start, end].
	ReadBars(ctx context.Context, symbol string, market string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market string) ([]string, error)
}

// Run is the persisted header of one backtest.
type Run struct {
	ID            string            `json:"id"`
	CreatedAt     time.Time         `json:"created_at"`
	Pair          domain.Pair       `json:"pair"`
	Strategy      string            `json:"strategy"`
	HedgeRatio    float64           `json:"hedge_ratio"`
	Metrics       analytics.Metrics `json:"metrics"`
	InitialEquity float64           `json:"initial_equity"`
	FinalEquity   float64           `json:"final_equity"`
	// Config is the JSON configuration snapshot of the run.
	Config json.RawMessage `json:"config,omitempty"`
}

// EquityPoint is one bar of a persisted equity curve.
type EquityPoint struct {
	Bar       int         `json:"bar"`
	Timestamp time.Time   `json:"timestamp"`
	Equity    float64     `json:"equity"`
	Position  domain.Side `json:"position"`
}

// RunStore persists backtest runs with their equity curves and trades.
type RunStore interface {
	// SaveRun stores run and the per-bar series of res. An empty run.ID is
	// assigned; the stored ID is returned.
	SaveRun(ctx context.Context, run Run, res *domain.BacktestResult) (string, error)

	// GetRun returns the run with id, or ErrNotFound.
	GetRun(ctx context.Context, id string) (Run, error)

	// ListRuns returns up to limit runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// EquityCurve returns the equity series of a run in bar order.
	EquityCurve(ctx context.Context, id string) ([]EquityPoint, error)

	// TradeReturns returns the completed trade returns of a run in order.
	TradeReturns(ctx context.Context, id string) ([]float64, error)
}
