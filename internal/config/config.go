// Package config loads the research configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"statarb/internal/broker"
	"statarb/internal/engine"
	"statarb/internal/strategy"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Hedge ratio modes.
const (
	// HedgeTrain estimates the hedge ratio on the training window.
	HedgeTrain = "train"
	// HedgeTest re-estimates it on the simulated window.
	HedgeTest = "test"
	// HedgeFixed uses Backtest.FixedHedgeRatio.
	HedgeFixed = "fixed"
)

// Data sources.
const (
	SourceSimulated = "simulated"
	SourceAlpaca    = "alpaca"
	// SourceAuto uses Alpaca and falls back to simulated prices.
	SourceAuto = "auto"
)

// DefaultPath is used when neither STATARB_CONFIG nor -config is given.
const DefaultPath = "config/statarb.yaml"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for statarb.
type Config struct {
	Backtest  Backtest  `yaml:"backtest"`
	Selection Selection `yaml:"selection"`
	Sizing    Sizing    `yaml:"sizing"`
	Universe  Universe  `yaml:"universe"`
	Storage   Storage   `yaml:"storage"`
	Server    Server    `yaml:"server"`
	Alpaca    Alpaca    `yaml:"alpaca"`
	Logging   Logging   `yaml:"logging"`
}

// Backtest holds execution and signal parameters.
type Backtest struct {
	InitialCapital     float64 `yaml:"initial_capital"`
	TransactionCostBps float64 `yaml:"transaction_cost_bps"`
	SlippageBpsMin     float64 `yaml:"slippage_bps_min"`
	SlippageBpsMax     float64 `yaml:"slippage_bps_max"`
	LatencyBars        int     `yaml:"latency_bars"`
	MaxDrawdownLimit   float64 `yaml:"max_drawdown_limit"`
	EntryZ             float64 `yaml:"entry_z"`
	ExitZ              float64 `yaml:"exit_z"`
	StopZ              float64 `yaml:"stop_z"`
	Lookback           int     `yaml:"lookback"`
	Annualization      int     `yaml:"annualization"`
	OutOfSampleMonths  int     `yaml:"out_of_sample_months"`
	Seed               uint64  `yaml:"seed"`
	Strategy           string  `yaml:"strategy"`
	HedgeMode          string  `yaml:"hedge_mode"`
	FixedHedgeRatio    float64 `yaml:"fixed_hedge_ratio"`
}

// Selection configures the cointegration pair selector.
type Selection struct {
	Significance    float64 `yaml:"significance"`
	MinObservations int     `yaml:"min_observations"`
}

// Sizing configures Kelly position sizing.
type Sizing struct {
	KellyMinFraction float64 `yaml:"kelly_min_fraction"`
	KellyMaxFraction float64 `yaml:"kelly_max_fraction"`
	MinTrades        int     `yaml:"min_trades"`
}

// Universe is the symbol set and date range to research.
type Universe struct {
	Symbols   []string `yaml:"symbols"`
	StartDate string   `yaml:"start_date"`
	EndDate   string   `yaml:"end_date"`
	Source    string   `yaml:"source"`
	Market    string   `yaml:"market"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
	ReportsDir string `yaml:"reports_dir"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey          string `yaml:"api_key"`
	APISecret       string `yaml:"api_secret"`
	DataURL         string `yaml:"data_url"`
	AssetClass      string `yaml:"asset_class"`
	Feed            string `yaml:"feed"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backtest: Backtest{
			InitialCapital:     100_000,
			TransactionCostBps: 5,
			SlippageBpsMin:     1,
			SlippageBpsMax:     8,
			LatencyBars:        1,
			MaxDrawdownLimit:   0.25,
			EntryZ:             2.0,
			ExitZ:              0.5,
			StopZ:              3.5,
			Lookback:           60,
			Annualization:      252,
			OutOfSampleMonths:  24,
			Seed:               7,
			Strategy:           "pairs-ou",
			HedgeMode:          HedgeTrain,
		},
		Selection: Selection{
			Significance:    0.05,
			MinObservations: 120,
		},
		Sizing: Sizing{
			KellyMinFraction: engine.DefaultKellyMinFraction,
			KellyMaxFraction: engine.DefaultKellyMaxFraction,
			MinTrades:        engine.DefaultKellyMinTrades,
		},
		Universe: Universe{
			Symbols:   []string{"BTC", "ETH", "LTC", "XRP", "BNB", "SOL"},
			StartDate: "2020-01-01",
			EndDate:   "2025-01-01",
			Source:    SourceAuto,
			Market:    "crypto",
		},
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/statarb.db",
			ReportsDir: "reports",
		},
		Server: Server{
			Host:     "0.0.0.0",
			Port:     8000,
			GRPCPort: 9090,
		},
		Alpaca: Alpaca{
			AssetClass:      "crypto",
			RateLimitPerMin: 200,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path on top of
// Default(), applies environment variable overrides and validates the
// result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but returns the environment-adjusted
// defaults when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		if err := applyEnvOverrides(cfg); err != nil {
			return nil, err
		}
		return cfg, cfg.Validate()
	}
	return cfg, err
}

// Path returns the config file path: flagValue if set, then STATARB_CONFIG,
// then DefaultPath.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv("STATARB_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("REPORTS_DIR"); v != "" {
		cfg.Storage.ReportsDir = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("STATARB_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: STATARB_SEED %q: %v", ErrInvalidConfig, v, err)
		}
		cfg.Backtest.Seed = seed
	}

	// Canonical SDK variable names win over ALPACA_*.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	return nil
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate checks parameter ranges and returns an error wrapping
// ErrInvalidConfig for the first violation.
func (c *Config) Validate() error {
	b := c.Backtest
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	switch {
	case b.InitialCapital <= 0:
		return fail("backtest.initial_capital must be positive, got %v", b.InitialCapital)
	case b.TransactionCostBps < 0:
		return fail("backtest.transaction_cost_bps must be non-negative, got %v", b.TransactionCostBps)
	case b.SlippageBpsMin < 0 || b.SlippageBpsMin > b.SlippageBpsMax:
		return fail("backtest slippage range [%v, %v] invalid", b.SlippageBpsMin, b.SlippageBpsMax)
	case b.LatencyBars < 0:
		return fail("backtest.latency_bars must be non-negative, got %d", b.LatencyBars)
	case b.MaxDrawdownLimit <= 0:
		return fail("backtest.max_drawdown_limit must be positive, got %v", b.MaxDrawdownLimit)
	case b.ExitZ < 0 || b.ExitZ >= b.EntryZ || b.EntryZ >= b.StopZ:
		return fail("backtest thresholds want 0 <= exit_z < entry_z < stop_z, got %v/%v/%v", b.ExitZ, b.EntryZ, b.StopZ)
	case b.Lookback < 2:
		return fail("backtest.lookback must be at least 2, got %d", b.Lookback)
	case b.OutOfSampleMonths <= 0:
		return fail("backtest.out_of_sample_months must be positive, got %d", b.OutOfSampleMonths)
	case b.HedgeMode != HedgeTrain && b.HedgeMode != HedgeTest && b.HedgeMode != HedgeFixed:
		return fail("backtest.hedge_mode %q not one of train, test, fixed", b.HedgeMode)
	case c.Selection.Significance <= 0 || c.Selection.Significance > 1:
		return fail("selection.significance must be in (0, 1], got %v", c.Selection.Significance)
	case c.Sizing.KellyMinFraction <= 0 || c.Sizing.KellyMinFraction > c.Sizing.KellyMaxFraction || c.Sizing.KellyMaxFraction > 1:
		return fail("sizing kelly bounds [%v, %v] invalid", c.Sizing.KellyMinFraction, c.Sizing.KellyMaxFraction)
	case c.Sizing.MinTrades < 1:
		return fail("sizing.min_trades must be at least 1, got %d", c.Sizing.MinTrades)
	case len(c.Universe.Symbols) < 2:
		return fail("universe.symbols needs at least two symbols, got %d", len(c.Universe.Symbols))
	case c.Universe.Source != SourceSimulated && c.Universe.Source != SourceAlpaca && c.Universe.Source != SourceAuto:
		return fail("universe.source %q not one of simulated, alpaca, auto", c.Universe.Source)
	}
	return nil
}

// Engine converts the backtest and sizing sections to an engine.Config.
func (c *Config) Engine() engine.Config {
	b := c.Backtest
	return engine.Config{
		InitialCapital:   b.InitialCapital,
		LatencyBars:      b.LatencyBars,
		MaxDrawdownLimit: b.MaxDrawdownLimit,
		Fees: broker.FeeModel{
			TransactionCostBps: b.TransactionCostBps,
			SlippageBpsMin:     b.SlippageBpsMin,
			SlippageBpsMax:     b.SlippageBpsMax,
		},
		Sizer: engine.KellySizer{
			MinFraction: c.Sizing.KellyMinFraction,
			MaxFraction: c.Sizing.KellyMaxFraction,
			MinTrades:   c.Sizing.MinTrades,
		},
		Strategy:   b.Strategy,
		Thresholds: strategy.Thresholds{EntryZ: b.EntryZ, ExitZ: b.ExitZ, StopZ: b.StopZ},
		Lookback:   b.Lookback,
		Seed:       b.Seed,
	}
}

// Addr returns the HTTP listen address.
func (s Server) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// GRPCAddr returns the gRPC listen address.
func (s Server) GRPCAddr() string { return fmt.Sprintf("%s:%d", s.Host, s.GRPCPort) }
