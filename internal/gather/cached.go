package gather

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"statarb/internal/domain"
	"statarb/internal/store"
	"statarb/internal/util"
)

// Compile-time interface check.
var _ Loader = (*CachedLoader)(nil)

// coverSlack is how far the first and last cached bar may sit from the
// requested bounds and still count as covering them. It absorbs weekends and
// exchange holidays at either end of an equity range.
const coverSlack = 5 * 24 * time.Hour

// CachedLoader reads bars from a BarStore and fetches symbols whose cached
// bars do not span the requested range through Loader, writing them back
// under Market.
type CachedLoader struct {
	Store  store.BarStore
	Loader Loader
	Market string
	log    *slog.Logger
}

// NewCachedLoader creates a CachedLoader.
func NewCachedLoader(s store.BarStore, l Loader, market string, log *slog.Logger) *CachedLoader {
	return &CachedLoader{Store: s, Loader: l, Market: market, log: util.OrDefault(log)}
}

// Name returns "cache(<loader>)".
func (l *CachedLoader) Name() string { return "cache(" + l.Loader.Name() + ")" }

// LoadBars serves symbols the store covers and refetches the rest over the
// whole range.
func (l *CachedLoader) LoadBars(ctx context.Context, symbols []string, r DateRange) ([]domain.Bar, error) {
	var (
		bars    []domain.Bar
		missing []string
	)
	for _, sym := range symbols {
		cached, err := l.Store.ReadBars(ctx, sym, l.Market, r.Start, r.End)
		if err != nil {
			return nil, fmt.Errorf("reading cache for %s: %w", sym, err)
		}
		if !covers(cached, r) {
			missing = append(missing, sym)
			continue
		}
		bars = append(bars, cached...)
	}
	if len(missing) == 0 {
		l.log.Debug("cache hit", "symbols", len(symbols))
		return bars, nil
	}

	fetched, err := l.Loader.LoadBars(ctx, missing, r)
	if err != nil {
		return nil, err
	}
	if err := l.Store.WriteBars(ctx, l.Market, fetched); err != nil {
		return nil, fmt.Errorf("writing cache: %w", err)
	}
	l.log.Info("cache filled", "loader", l.Loader.Name(), "symbols", missing, "bars", len(fetched))
	return append(bars, fetched...), nil
}

// covers reports whether bars reach both ends of r within coverSlack.
func covers(bars []domain.Bar, r DateRange) bool {
	if len(bars) == 0 {
		return false
	}
	first, last := bars[0].Timestamp, bars[0].Timestamp
	for _, b := range bars[1:] {
		if b.Timestamp.Before(first) {
			first = b.Timestamp
		}
		if b.Timestamp.After(last) {
			last = b.Timestamp
		}
	}
	return first.Sub(r.Start) <= coverSlack && r.End.Sub(last) <= coverSlack
}
