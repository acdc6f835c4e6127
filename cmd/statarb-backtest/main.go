package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"statarb/internal/config"
	"statarb/internal/research"
	"statarb/internal/store"
	"statarb/internal/util"
)

func main() {
	cfgFlag := flag.String("config", "", "config file (default $STATARB_CONFIG or config/statarb.yaml)")
	mockOnly := flag.Bool("mock-only", false, "use simulated prices only")
	noPersist := flag.Bool("no-persist", false, "do not record the run in SQLite")
	sweep := flag.String("sweep-entry-z", "", "comma-separated entry thresholds to sweep on the test window")
	flag.Parse()

	cfg, err := config.LoadOrDefault(config.Path(*cfgFlag))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	slog.SetDefault(logger)

	entries, err := parseFloats(*sweep)
	if err != nil {
		log.Fatalf("invalid -sweep-entry-z: %v", err)
	}

	bars := store.NewParquetStore(cfg.Storage.DataDir)
	loader, err := research.NewLoader(cfg, *mockOnly, bars, logger)
	if err != nil {
		log.Fatalf("failed to build loader: %v", err)
	}

	var runs store.RunStore
	if !*noPersist {
		sqlite, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("failed to open run store: %v", err)
		}
		defer sqlite.Close()
		runs = sqlite
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	out, err := research.Run(ctx, research.Options{
		Config:      cfg,
		Loader:      loader,
		Runs:        runs,
		SweepEntryZ: entries,
		Log:         logger,
	})
	if err != nil {
		log.Fatalf("research run failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out.Summary); err != nil {
		log.Fatalf("encoding summary: %v", err)
	}
	for _, row := range out.Sweep {
		fmt.Fprintf(os.Stderr, "entry_z=%-6g sharpe=%8.4f max_dd=%7.4f trades=%d\n",
			row.EntryZ, row.Metrics.Sharpe, row.Metrics.MaxDrawdown, row.Metrics.Trades)
	}
}

func parseFloats(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []float64
	for _, f := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
