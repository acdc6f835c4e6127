package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"statarb/internal/broker"
	"statarb/internal/domain"
	"statarb/internal/strategy"
)

// SweepCase is one independent run of a parameter sweep.
type SweepCase struct {
	Name   string
	Config Config
	Pair   domain.Pair
	// HedgeRatio fixes the hedge ratio when non-nil.
	HedgeRatio *float64
}

// SweepResult pairs a case with its backtest output.
type SweepResult struct {
	Case   SweepCase
	Result *domain.BacktestResult
}

// Sweep runs every case over p on at most limit goroutines (limit <= 0 means
// GOMAXPROCS). Each case gets its own engine and a slippage source seeded
// from its Config.Seed. Results are returned in case order. The first failing
// case cancels the remaining ones.
func Sweep(ctx context.Context, p *domain.PricePanel, cases []SweepCase, registry *strategy.Registry, limit int, log *slog.Logger) ([]SweepResult, error) {
	if log == nil {
		log = slog.Default()
	}
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	results := make([]SweepResult, len(cases))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, c := range cases {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			opts := []RunOption{WithRandomSource(broker.NewPCGSource(c.Config.Seed))}
			if c.HedgeRatio != nil {
				opts = append(opts, WithHedgeRatio(*c.HedgeRatio))
			}
			res, err := NewEngine(c.Config, registry, log).Run(p, c.Pair, opts...)
			if err != nil {
				return fmt.Errorf("sweep case %q: %w", c.Name, err)
			}
			results[i] = SweepResult{Case: c, Result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
