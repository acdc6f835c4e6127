// Package gather acquires daily close prices for a symbol universe from
// market-data APIs, a local cache or a deterministic simulator, and hands the
// core an aligned price panel.
package gather

import (
	"context"
	"fmt"
	"time"

	"statarb/internal/domain"
)

// Loader fetches daily bars for a set of symbols.
type Loader interface {
	// Name returns the loader identifier.
	Name() string
	// LoadBars returns daily bars for symbols within r, both ends inclusive.
	// Symbols with no data are simply absent from the result.
	LoadBars(ctx context.Context, symbols []string, r DateRange) ([]domain.Bar, error)
}

// DateRange represents a time range for data fetching.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange parses YYYY-MM-DD bounds.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("parsing start date %q: %w", start, err)
	}
	e, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("parsing end date %q: %w", end, err)
	}
	if e.Before(s) {
		return DateRange{}, fmt.Errorf("end date %s before start date %s", end, start)
	}
	return DateRange{Start: s, End: e}, nil
}

// LoadPanel loads bars through l and returns them as a daily, forward-filled
// panel with leading incomplete rows dropped.
func LoadPanel(ctx context.Context, l Loader, symbols []string, r DateRange) (*domain.PricePanel, error) {
	bars, err := l.LoadBars(ctx, symbols, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Name(), err)
	}
	p, err := domain.PanelFromBars(bars)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Name(), err)
	}
	return domain.Align(p)
}

// missingSymbols returns the symbols that have no bar in bars.
func missingSymbols(symbols []string, bars []domain.Bar) []string {
	seen := make(map[string]struct{}, len(symbols))
	for _, b := range bars {
		seen[b.Symbol] = struct{}{}
	}
	var missing []string
	for _, sym := range symbols {
		if _, ok := seen[sym]; !ok {
			missing = append(missing, sym)
		}
	}
	return missing
}
