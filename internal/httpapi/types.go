// Package httpapi serves the research dashboard: the latest run artifacts,
// persisted backtest runs and Prometheus metrics.
package httpapi

import (
	"statarb/internal/store"
)

// RunsResponse is the body of GET /api/runs.
type RunsResponse struct {
	Runs []store.Run `json:"runs"`
}

// RunDetailResponse is the body of GET /api/runs/{id}.
type RunDetailResponse struct {
	Run          store.Run `json:"run"`
	TradeReturns []float64 `json:"trade_returns"`
}

// EquityResponse is the body of GET /api/runs/{id}/equity.
type EquityResponse struct {
	RunID  string              `json:"run_id"`
	Points []store.EquityPoint `json:"points"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}
