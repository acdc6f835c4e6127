package gather

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"statarb/internal/domain"
	"statarb/internal/util"
)

// Asset classes understood by AlpacaLoader.
const (
	AssetClassCrypto = "crypto"
	AssetClassEquity = "us_equity"
)

// Compile-time interface checks.
var (
	_ Loader    = (*AlpacaLoader)(nil)
	_ BarClient = (*marketdata.Client)(nil)
)

// BarClient is the subset of the Alpaca market-data client used for daily
// bars.
type BarClient interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
	GetCryptoMultiBars(symbols []string, req marketdata.GetCryptoBarsRequest) (map[string][]marketdata.CryptoBar, error)
}

// AlpacaOptions configures an AlpacaLoader.
type AlpacaOptions struct {
	APIKey    string
	APISecret string
	DataURL   string
	// AssetClass is AssetClassCrypto (default) or AssetClassEquity.
	AssetClass string
	// Quote is the crypto quote currency appended to symbols ("USD").
	Quote string
	// Feed is the equity data feed ("iex" or "sip").
	Feed            string
	RateLimitPerMin int
	MaxAttempts     int
	BaseDelay       time.Duration
}

// AlpacaLoader loads daily bars from the Alpaca market-data API. Crypto
// symbols are requested as BASE/QUOTE and returned under BASE.
type AlpacaLoader struct {
	client  BarClient
	opts    AlpacaOptions
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewAlpacaLoader creates a loader backed by a marketdata.Client.
func NewAlpacaLoader(opts AlpacaOptions, log *slog.Logger) *AlpacaLoader {
	clientOpts := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.DataURL != "" {
		clientOpts.BaseURL = opts.DataURL
	}
	return NewAlpacaLoaderWithClient(marketdata.NewClient(clientOpts), opts, log)
}

// NewAlpacaLoaderWithClient creates a loader using client.
func NewAlpacaLoaderWithClient(client BarClient, opts AlpacaOptions, log *slog.Logger) *AlpacaLoader {
	if opts.AssetClass == "" {
		opts.AssetClass = AssetClassCrypto
	}
	if opts.Quote == "" {
		opts.Quote = "USD"
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	return &AlpacaLoader{
		client:  client,
		opts:    opts,
		limiter: util.NewRateLimiter(opts.RateLimitPerMin, 1),
		log:     util.OrDefault(log).With("loader", "alpaca"),
	}
}

// Name returns "alpaca".
func (l *AlpacaLoader) Name() string { return "alpaca" }

// LoadBars fetches daily bars for all symbols in one request, retrying
// transient failures with backoff.
func (l *AlpacaLoader) LoadBars(ctx context.Context, symbols []string, r DateRange) ([]domain.Bar, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	// Alpaca treats End as exclusive.
	end := r.End.AddDate(0, 0, 1)

	var bars []domain.Bar
	err := util.Retry(ctx, l.opts.MaxAttempts, l.opts.BaseDelay, 30*time.Second, func(ctx context.Context) error {
		if err := l.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var err error
		if l.opts.AssetClass == AssetClassEquity {
			bars, err = l.fetchEquity(symbols, r.Start, end)
		} else {
			bars, err = l.fetchCrypto(symbols, r.Start, end)
		}
		if err != nil {
			l.log.Warn("bar request failed", "symbols", len(symbols), "err", err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("bars loaded",
		"symbols", len(symbols),
		"bars", len(bars),
		"start", r.Start.Format(time.DateOnly),
		"end", r.End.Format(time.DateOnly),
	)
	return bars, nil
}

func (l *AlpacaLoader) fetchCrypto(symbols []string, start, end time.Time) ([]domain.Bar, error) {
	pairs := make([]string, len(symbols))
	base := make(map[string]string, len(symbols))
	for i, sym := range symbols {
		pairs[i] = strings.ToUpper(sym) + "/" + l.opts.Quote
		base[pairs[i]] = sym
	}

	multiBars, err := l.client.GetCryptoMultiBars(pairs, marketdata.GetCryptoBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("GetCryptoMultiBars: %w", err)
	}

	var bars []domain.Bar
	for pair, cryptoBars := range multiBars {
		sym, ok := base[pair]
		if !ok {
			sym = strings.SplitN(pair, "/", 2)[0]
		}
		for _, cb := range cryptoBars {
			bars = append(bars, domain.Bar{
				Symbol:     sym,
				Timestamp:  cb.Timestamp,
				Open:       cb.Open,
				High:       cb.High,
				Low:        cb.Low,
				Close:      cb.Close,
				Volume:     int64(cb.Volume),
				TradeCount: int64(cb.TradeCount),
				VWAP:       cb.VWAP,
			})
		}
	}
	return bars, nil
}

func (l *AlpacaLoader) fetchEquity(symbols []string, start, end time.Time) ([]domain.Bar, error) {
	req := marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
	}
	if l.opts.Feed != "" {
		req.Feed = marketdata.Feed(l.opts.Feed)
	}
	multiBars, err := l.client.GetMultiBars(symbols, req)
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	var bars []domain.Bar
	for symbol, alpacaBars := range multiBars {
		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Symbol:     strings.ToUpper(symbol),
				Timestamp:  ab.Timestamp,
				Open:       ab.Open,
				High:       ab.High,
				Low:        ab.Low,
				Close:      ab.Close,
				Volume:     int64(ab.Volume),
				TradeCount: int64(ab.TradeCount),
				VWAP:       ab.VWAP,
			})
		}
	}
	return bars, nil
}
