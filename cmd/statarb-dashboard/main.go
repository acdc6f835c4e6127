package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"statarb/internal/api"
	"statarb/internal/config"
	"statarb/internal/httpapi"
	"statarb/internal/store"
	"statarb/internal/util"
)

func main() {
	cfgFlag := flag.String("config", "", "config file (default $STATARB_CONFIG or config/statarb.yaml)")
	flag.Parse()

	cfg, err := config.LoadOrDefault(config.Path(*cfgFlag))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	slog.SetDefault(logger)

	runs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open run store: %v", err)
	}
	defer runs.Close()

	dashboard := httpapi.NewDashboardServer(cfg.Storage.ReportsDir, runs, logger)
	srv := api.NewServer(cfg.Server.Addr(), cfg.Server.GRPCAddr(), dashboard.Handler(), logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("starting statarb-dashboard",
		"http", cfg.Server.Addr(),
		"grpc", cfg.Server.GRPCAddr(),
		"reports", cfg.Storage.ReportsDir,
	)
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
