package research

import (
	"fmt"
	"log/slog"

	"statarb/internal/config"
	"statarb/internal/gather"
	"statarb/internal/store"
	"statarb/internal/util"
)

// NewLoader builds the price source from the universe configuration:
//
//	simulated  the seeded simulator
//	alpaca     Alpaca bars cached in bars
//	auto       Alpaca bars cached in bars, falling back to the simulator
//
// mockOnly forces the simulator. Simulated prices are never cached.
func NewLoader(cfg *config.Config, mockOnly bool, bars store.BarStore, log *slog.Logger) (gather.Loader, error) {
	log = util.OrDefault(log)
	sim := gather.NewSimulatedLoader(gather.DefaultSimulationSeed)
	source := cfg.Universe.Source
	if mockOnly {
		source = config.SourceSimulated
	}

	hasCreds := cfg.Alpaca.APIKey != "" && cfg.Alpaca.APISecret != ""
	switch source {
	case config.SourceSimulated:
		return sim, nil
	case config.SourceAlpaca:
		if !hasCreds {
			return nil, fmt.Errorf("%w: universe.source alpaca requires alpaca credentials", config.ErrInvalidConfig)
		}
		return cachedAlpaca(cfg, bars, log), nil
	case config.SourceAuto:
		if !hasCreds {
			log.Info("no alpaca credentials, using simulated prices")
			return sim, nil
		}
		return gather.NewFallbackLoader(cachedAlpaca(cfg, bars, log), sim, log), nil
	}
	return nil, fmt.Errorf("%w: unknown source %q", config.ErrInvalidConfig, source)
}

func cachedAlpaca(cfg *config.Config, bars store.BarStore, log *slog.Logger) gather.Loader {
	var l gather.Loader = gather.NewAlpacaLoader(gather.AlpacaOptions{
		APIKey:          cfg.Alpaca.APIKey,
		APISecret:       cfg.Alpaca.APISecret,
		DataURL:         cfg.Alpaca.DataURL,
		AssetClass:      cfg.Alpaca.AssetClass,
		Feed:            cfg.Alpaca.Feed,
		RateLimitPerMin: cfg.Alpaca.RateLimitPerMin,
	}, log)
	if bars != nil {
		l = gather.NewCachedLoader(bars, l, cfg.Universe.Market, log)
	}
	return l
}
