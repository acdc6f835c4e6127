// Package strategy defines the Strategy interface for spread signal models
// and provides a Registry for constructing them by name.
package strategy

import (
	"fmt"
	"sort"

	"statarb/internal/domain"
)

// Strategy is a stateful signal model for one pair over one price panel. It
// is consulted once per bar, in bar order, and is owned by a single run.
type Strategy interface {
	// Name returns the identifier the strategy was registered under.
	Name() string

	// OnBar advances the model to the given bar and returns a signal when the
	// position state changes.
	OnBar(bar int) (domain.SignalEvent, bool)

	// State returns the current position state.
	State() domain.SpreadState
}

// Params configures a strategy instance.
type Params struct {
	Pair       domain.Pair
	HedgeRatio float64
	Thresholds Thresholds
	Lookback   int
}

// Factory builds a fresh Strategy over a panel.
type Factory func(p *domain.PricePanel, params Params) (Strategy, error)

// Registry holds named strategy factories. Strategies carry per-run state, so
// the registry hands out new instances rather than shared ones.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under name, replacing any previous one.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// New constructs the named strategy.
func (r *Registry) New(name string, p *domain.PricePanel, params Params) (Strategy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (have %v)", name, r.List())
	}
	return f(p, params)
}

// Has reports whether a factory is registered under name.
func (r *Registry) Has(name string) bool {
	_, ok := r.factories[name]
	return ok
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
