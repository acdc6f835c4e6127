// Package research runs the end-to-end pairs research workflow: load and
// align prices, split train/test, select the most cointegrated pair, fit the
// hedge ratio and OU model on train, simulate on test, then write artifacts
// and persist the run.
package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"statarb/internal/analytics"
	"statarb/internal/config"
	"statarb/internal/domain"
	"statarb/internal/engine"
	"statarb/internal/gather"
	"statarb/internal/model"
	"statarb/internal/store"
	"statarb/internal/strategy"
	"statarb/internal/strategy/builtins"
	"statarb/internal/util"
)

// SchemaFile is written to the data directory and describes the panel.
const SchemaFile = "sample_schema.json"

// Options wires a research run.
type Options struct {
	Config *config.Config
	Loader gather.Loader
	// Runs persists the run when non-nil.
	Runs store.RunStore
	// Registry defaults to the builtin strategies.
	Registry *strategy.Registry
	// SweepEntryZ, when set, re-runs the test window once per entry
	// threshold after the main run.
	SweepEntryZ []float64
	Now         func() time.Time
	Log         *slog.Logger
}

// SweepRow is one entry threshold of a sweep and its metrics.
type SweepRow struct {
	EntryZ  float64           `json:"entry_z"`
	Metrics analytics.Metrics `json:"metrics"`
}

// Outcome is everything a research run produced.
type Outcome struct {
	Summary    analytics.Summary
	Result     *domain.BacktestResult
	Candidates []domain.PairCandidate
	Train      *domain.PricePanel
	Test       *domain.PricePanel
	Sweep      []SweepRow
}

// Run executes the workflow. No cointegrated pair in the training window
// returns an error wrapping model.ErrNoCandidatePairs.
func Run(ctx context.Context, opts Options) (*Outcome, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Loader == nil {
		return nil, errors.New("research: no loader")
	}
	registry := opts.Registry
	if registry == nil {
		registry = builtins.NewRegistry()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := util.OrDefault(opts.Log)

	r, err := gather.ParseDateRange(cfg.Universe.StartDate, cfg.Universe.EndDate)
	if err != nil {
		return nil, err
	}
	prices, err := gather.LoadPanel(ctx, opts.Loader, cfg.Universe.Symbols, r)
	if err != nil {
		return nil, fmt.Errorf("loading prices: %w", err)
	}
	log.Info("prices loaded", "loader", opts.Loader.Name(), "rows", prices.Len(), "symbols", prices.Symbols())

	train, test, err := domain.SplitByMonths(prices, cfg.Backtest.OutOfSampleMonths)
	if err != nil {
		return nil, err
	}
	if test.Len() < 2 {
		return nil, fmt.Errorf("test window has %d rows, need at least 2", test.Len())
	}

	selector := model.NewCointegrationSelector(cfg.Selection.Significance, cfg.Selection.MinObservations, log)
	candidates := selector.SelectPairs(train)
	best, err := model.Best(candidates)
	if err != nil {
		return nil, fmt.Errorf("selecting pair on %d training rows: %w", train.Len(), err)
	}
	pair := best.Pair()
	log.Info("pair selected", "pair", pair.String(), "p_value", best.PValue, "candidates", len(candidates))

	trainHedge, err := model.HedgeRatio(train, pair)
	if err != nil {
		return nil, err
	}
	spread, err := model.PanelSpread(train, pair, trainHedge)
	if err != nil {
		return nil, err
	}
	ou := model.EstimateOU(spread, 1)
	log.Info("spread model fitted", "hedge_ratio", trainHedge, "theta", ou.Theta, "half_life", ou.HalfLife())

	var runOpts []engine.RunOption
	switch cfg.Backtest.HedgeMode {
	case config.HedgeTrain:
		runOpts = append(runOpts, engine.WithHedgeRatio(trainHedge))
	case config.HedgeFixed:
		runOpts = append(runOpts, engine.WithHedgeRatio(cfg.Backtest.FixedHedgeRatio))
	}

	ecfg := cfg.Engine()
	res, err := engine.NewEngine(ecfg, registry, log).Run(test, pair, runOpts...)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	annualization := float64(cfg.Backtest.Annualization)
	metrics := analytics.ComputeMetrics(res.Equity, res.Timestamps, res.TradeReturns, annualization)

	snap := analytics.SnapshotOf(ecfg, cfg.Selection.Significance)
	summary := analytics.NewSummary(res, metrics, ou, candidates, snap, now())

	if opts.Runs != nil {
		snapJSON, err := json.Marshal(snap)
		if err != nil {
			return nil, fmt.Errorf("encoding config snapshot: %w", err)
		}
		id, err := opts.Runs.SaveRun(ctx, store.Run{
			CreatedAt:     summary.GeneratedAt,
			Pair:          pair,
			Strategy:      ecfg.Strategy,
			HedgeRatio:    res.HedgeRatio,
			Metrics:       metrics,
			InitialEquity: summary.InitialEquity.InexactFloat64(),
			FinalEquity:   res.FinalEquity(),
			Config:        snapJSON,
		}, res)
		if err != nil {
			return nil, fmt.Errorf("saving run: %w", err)
		}
		summary.RunID = id
	}

	if err := analytics.WriteArtifacts(cfg.Storage.ReportsDir, summary, res); err != nil {
		return nil, fmt.Errorf("writing artifacts: %w", err)
	}
	if err := WriteSchema(filepath.Join(cfg.Storage.DataDir, SchemaFile), prices); err != nil {
		return nil, err
	}
	log.Info("backtest complete",
		"pair", pair.String(),
		"sharpe", metrics.Sharpe,
		"max_drawdown", metrics.MaxDrawdown,
		"trades", metrics.Trades,
		"final_equity", summary.FinalEquity.StringFixed(2),
		"run_id", summary.RunID,
	)

	out := &Outcome{
		Summary:    summary,
		Result:     res,
		Candidates: candidates,
		Train:      train,
		Test:       test,
	}
	if len(opts.SweepEntryZ) > 0 {
		out.Sweep, err = sweepEntry(ctx, test, pair, res.HedgeRatio, ecfg, opts.SweepEntryZ, registry, annualization, log)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// sweepEntry re-runs the test window for each entry threshold with the
// hedge ratio of the main run.
func sweepEntry(ctx context.Context, test *domain.PricePanel, pair domain.Pair, hedge float64, base engine.Config,
	entries []float64, registry *strategy.Registry, annualization float64, log *slog.Logger) ([]SweepRow, error) {
	cases := make([]engine.SweepCase, len(entries))
	for i, z := range entries {
		c := base
		c.Thresholds.EntryZ = z
		cases[i] = engine.SweepCase{
			Name:       fmt.Sprintf("entry_z=%g", z),
			Config:     c,
			Pair:       pair,
			HedgeRatio: &hedge,
		}
	}
	results, err := engine.Sweep(ctx, test, cases, registry, 0, log)
	if err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}
	rows := make([]SweepRow, len(results))
	for i, r := range results {
		rows[i] = SweepRow{
			EntryZ:  entries[i],
			Metrics: analytics.ComputeMetrics(r.Result.Equity, r.Result.Timestamps, r.Result.TradeReturns, annualization),
		}
	}
	return rows, nil
}

// ---------------------------------------------------------------------------
// Data schema
// ---------------------------------------------------------------------------

// SchemaColumn describes one panel column.
type SchemaColumn struct {
	Symbol string `json:"symbol"`
	Type   string `json:"type"`
}

// Schema describes the price panel a run was produced from.
type Schema struct {
	Index   string         `json:"index"`
	Columns []SchemaColumn `json:"columns"`
	Rows    int            `json:"rows"`
	Start   string         `json:"start"`
	End     string         `json:"end"`
}

// WriteSchema writes the panel schema as indented JSON.
func WriteSchema(path string, p *domain.PricePanel) error {
	s := Schema{Index: "date, daily", Rows: p.Len()}
	for _, sym := range p.Symbols() {
		s.Columns = append(s.Columns, SchemaColumn{Symbol: sym, Type: "float close price"})
	}
	if times := p.Times(); len(times) > 0 {
		s.Start = times[0].Format(time.DateOnly)
		s.End = times[len(times)-1].Format(time.DateOnly)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	return os.WriteFile(path, data, 0o644)
}
