package analytics

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"statarb/internal/domain"
	"statarb/internal/engine"
	"statarb/internal/model"
)

// TargetSharpeRatio is the Sharpe ratio a run is judged against.
const TargetSharpeRatio = 2.1

// Artifact file names inside a reports directory.
const (
	SummaryFile = "summary.json"
	ReportFile  = "performance_report.md"
	EquityFile  = "equity_curve.csv"
)

// ConfigSnapshot records the parameters a run was produced with.
type ConfigSnapshot struct {
	InitialCapital     float64 `json:"initial_capital"`
	TransactionCostBps float64 `json:"transaction_cost_bps"`
	SlippageBpsMin     float64 `json:"slippage_bps_min"`
	SlippageBpsMax     float64 `json:"slippage_bps_max"`
	LatencyBars        int     `json:"latency_bars"`
	MaxDrawdownLimit   float64 `json:"max_drawdown_limit"`
	EntryZ             float64 `json:"entry_z"`
	ExitZ              float64 `json:"exit_z"`
	StopZ              float64 `json:"stop_z"`
	Lookback           int     `json:"lookback"`
	Significance       float64 `json:"significance"`
	KellyMinFraction   float64 `json:"kelly_min_fraction"`
	KellyMaxFraction   float64 `json:"kelly_max_fraction"`
	Strategy           string  `json:"strategy"`
	Seed               uint64  `json:"seed"`
}

// SnapshotOf captures an engine configuration and the selection threshold.
func SnapshotOf(cfg engine.Config, significance float64) ConfigSnapshot {
	return ConfigSnapshot{
		InitialCapital:     cfg.InitialCapital,
		TransactionCostBps: cfg.Fees.TransactionCostBps,
		SlippageBpsMin:     cfg.Fees.SlippageBpsMin,
		SlippageBpsMax:     cfg.Fees.SlippageBpsMax,
		LatencyBars:        cfg.LatencyBars,
		MaxDrawdownLimit:   cfg.MaxDrawdownLimit,
		EntryZ:             cfg.Thresholds.EntryZ,
		ExitZ:              cfg.Thresholds.ExitZ,
		StopZ:              cfg.Thresholds.StopZ,
		Lookback:           cfg.Lookback,
		Significance:       significance,
		KellyMinFraction:   cfg.Sizer.MinFraction,
		KellyMaxFraction:   cfg.Sizer.MaxFraction,
		Strategy:           cfg.Strategy,
		Seed:               cfg.Seed,
	}
}

// OUSummary is the fitted Ornstein-Uhlenbeck model of the training spread.
type OUSummary struct {
	model.OUParams
	// HalfLifeBars is nil when the spread does not mean-revert.
	HalfLifeBars *float64 `json:"half_life"`
}

// NewOUSummary wraps p with its half-life.
func NewOUSummary(p model.OUParams) OUSummary {
	s := OUSummary{OUParams: p}
	if hl := p.HalfLife(); !math.IsInf(hl, 1) {
		s.HalfLifeBars = &hl
	}
	return s
}

// Summary is the machine-readable result of a research run.
type Summary struct {
	RunID             string                 `json:"run_id,omitempty"`
	GeneratedAt       time.Time              `json:"generated_at"`
	SelectedPair      [2]string              `json:"selected_pair"`
	HedgeRatio        float64                `json:"hedge_ratio"`
	Metrics           Metrics                `json:"metrics"`
	TargetSharpeRatio float64                `json:"target_sharpe_ratio"`
	TargetAchieved    bool                   `json:"target_achieved"`
	InitialEquity     decimal.Decimal        `json:"initial_equity"`
	FinalEquity       decimal.Decimal        `json:"final_equity"`
	OU                OUSummary              `json:"ou"`
	Candidates        []domain.PairCandidate `json:"candidates"`
	Config            ConfigSnapshot         `json:"config"`
}

// NewSummary assembles a Summary for res.
func NewSummary(res *domain.BacktestResult, m Metrics, ou model.OUParams, candidates []domain.PairCandidate, snap ConfigSnapshot, now time.Time) Summary {
	initial := snap.InitialCapital
	if len(res.Equity) > 0 {
		initial = res.Equity[0]
	}
	return Summary{
		GeneratedAt:       now.UTC(),
		SelectedPair:      [2]string{res.Pair.X, res.Pair.Y},
		HedgeRatio:        res.HedgeRatio,
		Metrics:           m,
		TargetSharpeRatio: TargetSharpeRatio,
		TargetAchieved:    m.Sharpe >= TargetSharpeRatio,
		InitialEquity:     money(initial),
		FinalEquity:       money(res.FinalEquity()),
		OU:                NewOUSummary(ou),
		Candidates:        candidates,
		Config:            snap,
	}
}

// WriteSummary writes s as indented JSON to path, creating parent
// directories.
func WriteSummary(path string, s Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	return writeFile(path, data)
}

// ReadSummary decodes a summary file.
func ReadSummary(path string) (Summary, error) {
	var s Summary
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return s, nil
}

// money rounds v to cents.
func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
