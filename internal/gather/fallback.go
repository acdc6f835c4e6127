package gather

import (
	"context"
	"log/slog"

	"statarb/internal/domain"
	"statarb/internal/util"
)

// Compile-time interface check.
var _ Loader = (*FallbackLoader)(nil)

// FallbackLoader serves bars from Primary and switches to Fallback when the
// primary fails or returns no data for some of the requested symbols.
type FallbackLoader struct {
	Primary  Loader
	Fallback Loader
	log      *slog.Logger
}

// NewFallbackLoader creates a FallbackLoader.
func NewFallbackLoader(primary, fallback Loader, log *slog.Logger) *FallbackLoader {
	return &FallbackLoader{Primary: primary, Fallback: fallback, log: util.OrDefault(log)}
}

// Name returns "<primary>+<fallback>".
func (l *FallbackLoader) Name() string {
	return l.Primary.Name() + "+" + l.Fallback.Name()
}

// LoadBars tries the primary loader first. The fallback replaces the primary
// result entirely so that the universe never mixes sources.
func (l *FallbackLoader) LoadBars(ctx context.Context, symbols []string, r DateRange) ([]domain.Bar, error) {
	bars, err := l.Primary.LoadBars(ctx, symbols, r)
	if err == nil {
		missing := missingSymbols(symbols, bars)
		if len(missing) == 0 {
			return bars, nil
		}
		l.log.Warn("primary loader missing symbols, using fallback",
			"primary", l.Primary.Name(),
			"fallback", l.Fallback.Name(),
			"missing", missing,
		)
	} else {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		l.log.Warn("primary loader failed, using fallback",
			"primary", l.Primary.Name(),
			"fallback", l.Fallback.Name(),
			"err", err,
		)
	}
	return l.Fallback.LoadBars(ctx, symbols, r)
}
