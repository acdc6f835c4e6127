// Package engine runs event-driven pair backtests: mark-to-market, delayed
// fills with slippage and fees, signal-driven Kelly sizing.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"statarb/internal/broker"
	"statarb/internal/domain"
	"statarb/internal/model"
	"statarb/internal/strategy"
)

const priceEpsilon = 1e-8

// Config holds the execution and sizing parameters of a run.
type Config struct {
	InitialCapital   float64
	LatencyBars      int
	MaxDrawdownLimit float64
	Fees             broker.FeeModel
	Sizer            KellySizer

	Strategy   string
	Thresholds strategy.Thresholds
	Lookback   int

	// Seed seeds the slippage source when none is supplied to Run.
	Seed uint64
}

// Validate reports the first invalid parameter.
func (c Config) Validate() error {
	switch {
	case c.InitialCapital <= 0:
		return fmt.Errorf("initial capital %v must be positive", c.InitialCapital)
	case c.LatencyBars < 0:
		return fmt.Errorf("latency bars %d must be non-negative", c.LatencyBars)
	case c.MaxDrawdownLimit <= 0:
		return fmt.Errorf("max drawdown limit %v must be positive", c.MaxDrawdownLimit)
	case c.Fees.SlippageBpsMin < 0 || c.Fees.SlippageBpsMin > c.Fees.SlippageBpsMax:
		return fmt.Errorf("slippage range [%v, %v] invalid", c.Fees.SlippageBpsMin, c.Fees.SlippageBpsMax)
	case c.Fees.TransactionCostBps < 0:
		return fmt.Errorf("transaction cost %v bps must be non-negative", c.Fees.TransactionCostBps)
	case c.Sizer.MinFraction <= 0 || c.Sizer.MinFraction > c.Sizer.MaxFraction:
		return fmt.Errorf("kelly bounds [%v, %v] invalid", c.Sizer.MinFraction, c.Sizer.MaxFraction)
	case c.Sizer.MinTrades < 0:
		return fmt.Errorf("kelly min trades %d must be non-negative", c.Sizer.MinTrades)
	}
	return c.Thresholds.Validate()
}

// RunOption customizes a single Run.
type RunOption func(*runOptions)

type runOptions struct {
	hedgeRatio *float64
	rng        broker.RandomSource
	broker     broker.Broker
}

// WithHedgeRatio fixes the hedge ratio instead of estimating it from the
// simulated panel.
func WithHedgeRatio(h float64) RunOption {
	return func(o *runOptions) { o.hedgeRatio = &h }
}

// WithRandomSource sets the slippage source for the default simulator.
func WithRandomSource(rng broker.RandomSource) RunOption {
	return func(o *runOptions) { o.rng = rng }
}

// WithBroker replaces the default simulator broker.
func WithBroker(b broker.Broker) RunOption {
	return func(o *runOptions) { o.broker = b }
}

// Engine simulates a pair strategy over a price panel. An Engine holds no
// per-run state and may be shared; each Run owns its own simulation state.
type Engine struct {
	cfg      Config
	registry *strategy.Registry
	log      *slog.Logger
}

// NewEngine creates an Engine that builds strategies from registry.
func NewEngine(cfg Config, registry *strategy.Registry, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{cfg: cfg, registry: registry, log: log}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// pendingOrder is the single in-flight order slot of a run.
type pendingOrder struct {
	order domain.OrderEvent
}

// simulation is the mutable state of one run.
type simulation struct {
	cash        float64
	side        domain.Side
	qty         float64
	pending     *pendingOrder
	entryEquity float64
	dd          drawdownTracker
	result      *domain.BacktestResult
}

// Run simulates pair over p and returns the full result. All inputs are
// checked before the first bar; once simulation starts it runs to the last
// bar.
func (e *Engine) Run(p *domain.PricePanel, pair domain.Pair, opts ...RunOption) (*domain.BacktestResult, error) {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := e.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if p == nil || p.Len() == 0 {
		return nil, domain.ErrEmptyPanel
	}
	x, err := p.Column(pair.X)
	if err != nil {
		return nil, err
	}
	y, err := p.Column(pair.Y)
	if err != nil {
		return nil, err
	}
	if err := checkPrices(pair.X, x); err != nil {
		return nil, err
	}
	if err := checkPrices(pair.Y, y); err != nil {
		return nil, err
	}

	hedge := 0.0
	if o.hedgeRatio != nil {
		hedge = *o.hedgeRatio
	} else if hedge, err = model.HedgeRatio(p, pair); err != nil {
		return nil, err
	}

	strat, err := e.registry.New(e.cfg.Strategy, p, strategy.Params{
		Pair:       pair,
		HedgeRatio: hedge,
		Thresholds: e.cfg.Thresholds,
		Lookback:   e.cfg.Lookback,
	})
	if err != nil {
		return nil, fmt.Errorf("strategy: %w", err)
	}

	b := o.broker
	if b == nil {
		rng := o.rng
		if rng == nil {
			rng = broker.NewPCGSource(e.cfg.Seed)
		}
		b = broker.NewSimulatorBroker(e.cfg.Fees, rng)
	}

	times := p.Times()
	n := p.Len()
	sim := &simulation{
		cash: e.cfg.InitialCapital,
		result: &domain.BacktestResult{
			Pair:         pair,
			HedgeRatio:   hedge,
			Timestamps:   append(times[:0:0], times...),
			Equity:       make([]float64, n),
			Positions:    make([]domain.Side, n),
			TradeReturns: []float64{},
		},
	}
	sim.record(0)

	for i := 1; i < n; i++ {
		// Mark-to-market the position held since the previous bar.
		pnl := float64(sim.side) * sim.qty * ((x[i] - x[i-1]) - hedge*(y[i]-y[i-1]))
		sim.cash += pnl

		if sim.pending != nil && i-sim.pending.order.Bar >= e.cfg.LatencyBars {
			e.fill(sim, b, i, [2]float64{x[i], y[i]})
		}

		if sig, ok := strat.OnBar(i); ok {
			sim.result.Signals = append(sim.result.Signals, sig)
			if sim.pending == nil {
				e.submit(sim, sig, x[i])
			} else {
				e.log.Debug("signal dropped, order pending",
					"pair", pair.String(), "bar", i, "side", sig.Side.String())
			}
		}

		sim.record(i)
	}

	e.log.Debug("backtest complete",
		"pair", pair.String(),
		"bars", n,
		"hedge_ratio", hedge,
		"trades", len(sim.result.TradeReturns),
		"final_equity", sim.cash,
	)
	return sim.result, nil
}

// fill executes the pending order and books the fee and trade return.
func (e *Engine) fill(sim *simulation, b broker.Broker, bar int, px [2]float64) {
	order := sim.pending.order
	f := b.Fill(order, bar, px, sim.side)
	f.Timestamp = sim.result.Timestamps[bar]

	sim.side = f.Side
	sim.qty = f.Quantity
	sim.cash -= f.Fee
	sim.pending = nil
	sim.result.Fills = append(sim.result.Fills, f)

	if f.Side != domain.SideFlat {
		sim.entryEquity = sim.cash
	} else if sim.entryEquity > 0 {
		sim.result.TradeReturns = append(sim.result.TradeReturns, sim.cash/sim.entryEquity-1)
		sim.entryEquity = 0
	}

	e.log.Debug("order filled",
		"pair", order.Pair.String(),
		"submitted", order.Bar,
		"bar", bar,
		"side", f.Side.String(),
		"qty", f.Quantity,
		"fee", f.Fee,
	)
}

// submit sizes a signal into an order and places it in the pending slot.
func (e *Engine) submit(sim *simulation, sig domain.SignalEvent, priceX float64) {
	raw := e.cfg.Sizer.Fraction(sim.result.TradeReturns)
	fraction := ApplyDrawdownLimit(sim.dd.max, raw, e.cfg.MaxDrawdownLimit)
	exposure := math.Max(fraction*sim.cash, 0)
	order := domain.OrderEvent{
		Bar:       sig.Bar,
		Timestamp: sig.Timestamp,
		Pair:      sig.Pair,
		Side:      sig.Side,
		Quantity:  exposure / math.Max(priceX, priceEpsilon),
	}
	sim.pending = &pendingOrder{order: order}
	sim.result.Orders = append(sim.result.Orders, order)
}

func (s *simulation) record(bar int) {
	s.result.Equity[bar] = s.cash
	s.result.Positions[bar] = s.side
	s.dd.observe(s.cash)
}

var errBadPrice = errors.New("price must be finite and non-negative")

func checkPrices(sym string, col []float64) error {
	for i, v := range col {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%s row %d = %v: %w", sym, i, v, errBadPrice)
		}
	}
	return nil
}
