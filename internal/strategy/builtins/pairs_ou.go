// Package builtins provides the built-in spread signal models.
package builtins

import (
	"fmt"
	"math"
	"time"

	"statarb/internal/domain"
	"statarb/internal/model"
	"statarb/internal/strategy"
)

const (
	// NamePairsOU scores the spread against a trailing window.
	NamePairsOU = "pairs-ou"
	// NamePairsOUStatic scores the spread against the whole panel. It looks
	// ahead and is only meaningful in-sample.
	NamePairsOUStatic = "pairs-ou-static"
)

// Compile-time interface check.
var _ strategy.Strategy = (*PairsOU)(nil)

// Register adds the built-in strategies to r.
func Register(r *strategy.Registry) {
	r.Register(NamePairsOU, NewPairsOU)
	r.Register(NamePairsOUStatic, NewPairsOUStatic)
}

// NewRegistry returns a registry holding the built-in strategies.
func NewRegistry() *strategy.Registry {
	r := strategy.NewRegistry()
	Register(r)
	return r
}

// PairsOU is a mean-reversion model on the pair spread: it enters when the
// z-score leaves the entry band and exits on reversion or stop.
type PairsOU struct {
	name       string
	pair       domain.Pair
	times      []time.Time
	z          []float64
	thresholds strategy.Thresholds
	state      domain.SpreadState
}

// NewPairsOU builds the rolling z-score model.
func NewPairsOU(p *domain.PricePanel, params strategy.Params) (strategy.Strategy, error) {
	if params.Lookback < 2 {
		return nil, fmt.Errorf("%s: lookback %d < 2", NamePairsOU, params.Lookback)
	}
	spread, err := newSpread(p, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", NamePairsOU, err)
	}
	return newPairsOU(NamePairsOU, p, params, model.RollingZScore(spread, params.Lookback)), nil
}

// NewPairsOUStatic builds the full-sample z-score model.
func NewPairsOUStatic(p *domain.PricePanel, params strategy.Params) (strategy.Strategy, error) {
	spread, err := newSpread(p, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", NamePairsOUStatic, err)
	}
	return newPairsOU(NamePairsOUStatic, p, params, model.StaticZScore(spread)), nil
}

func newSpread(p *domain.PricePanel, params strategy.Params) ([]float64, error) {
	if err := params.Thresholds.Validate(); err != nil {
		return nil, err
	}
	return model.PanelSpread(p, params.Pair, params.HedgeRatio)
}

func newPairsOU(name string, p *domain.PricePanel, params strategy.Params, z []float64) *PairsOU {
	return &PairsOU{
		name:       name,
		pair:       params.Pair,
		times:      p.Times(),
		z:          z,
		thresholds: params.Thresholds,
		state:      domain.StateFlat,
	}
}

// Name returns the registered strategy name.
func (s *PairsOU) Name() string { return s.name }

// State returns the current position state.
func (s *PairsOU) State() domain.SpreadState { return s.state }

// ZScore returns the z-score at bar, or 0 outside the panel.
func (s *PairsOU) ZScore(bar int) float64 {
	if bar < 0 || bar >= len(s.z) {
		return 0
	}
	return s.z[bar]
}

// OnBar applies the transition table to the z-score at bar.
func (s *PairsOU) OnBar(bar int) (domain.SignalEvent, bool) {
	if bar < 0 || bar >= len(s.z) {
		return domain.SignalEvent{}, false
	}
	z := s.z[bar]
	next, side, fired := strategy.Transition(s.state, z, s.thresholds)
	if !fired {
		return domain.SignalEvent{}, false
	}
	s.state = next
	return domain.SignalEvent{
		Bar:       bar,
		Timestamp: s.times[bar],
		Pair:      s.pair,
		Side:      side,
		Strength:  math.Abs(z),
	}, true
}
