package research

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"statarb/internal/analytics"
	"statarb/internal/config"
	"statarb/internal/domain"
	"statarb/internal/gather"
	"statarb/internal/model"
	"statarb/internal/store"
)

// pairLoader serves A = 1.5*B + 10 + AR(1) noise and an unrelated random
// walk C for every day of the requested range.
type pairLoader struct{ seed uint64 }

func (l pairLoader) Name() string { return "pair-fixture" }

func (l pairLoader) LoadBars(_ context.Context, symbols []string, r gather.DateRange) ([]domain.Bar, error) {
	rng := rand.New(rand.NewPCG(l.seed, l.seed+1))
	var bars []domain.Bar
	b, c, noise := 200.0, 300.0, 0.0
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		b += rng.NormFloat64()
		c += rng.NormFloat64()
		noise = 0.8*noise + rng.NormFloat64()
		bars = append(bars,
			domain.Bar{Symbol: "A", Timestamp: d, Close: 1.5*b + 10 + noise},
			domain.Bar{Symbol: "B", Timestamp: d, Close: b},
			domain.Bar{Symbol: "C", Timestamp: d, Close: c},
		)
	}
	return bars, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Universe.Symbols = []string{"A", "B", "C"}
	cfg.Universe.StartDate = "2020-01-01"
	cfg.Universe.EndDate = "2022-12-31"
	cfg.Backtest.OutOfSampleMonths = 12
	cfg.Backtest.EntryZ = 1.5
	cfg.Backtest.ExitZ = 0.3
	cfg.Backtest.StopZ = 3
	cfg.Backtest.Lookback = 20
	dir := t.TempDir()
	cfg.Storage.DataDir = filepath.Join(dir, "data")
	cfg.Storage.ReportsDir = filepath.Join(dir, "reports")
	cfg.Storage.SQLitePath = filepath.Join(dir, "data", "statarb.db")
	return cfg
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	runs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer runs.Close()

	out, err := Run(context.Background(), Options{
		Config:      cfg,
		Loader:      pairLoader{seed: 3},
		Runs:        runs,
		SweepEntryZ: []float64{1.5, 2.5},
		Now:         func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if out.Summary.SelectedPair != [2]string{"A", "B"} {
		t.Fatalf("selected pair = %v, want [A B]", out.Summary.SelectedPair)
	}
	pair := domain.Pair{X: "A", Y: "B"}
	trainHedge, err := model.HedgeRatio(out.Train, pair)
	if err != nil {
		t.Fatalf("HedgeRatio: %v", err)
	}
	if out.Result.HedgeRatio != trainHedge {
		t.Errorf("simulated hedge = %v, want training hedge %v", out.Result.HedgeRatio, trainHedge)
	}
	if math.Abs(trainHedge-1.5) > 0.05 {
		t.Errorf("training hedge = %v, want about 1.5", trainHedge)
	}
	if len(out.Result.Equity) != out.Test.Len() {
		t.Errorf("equity has %d points, want %d", len(out.Result.Equity), out.Test.Len())
	}
	if out.Train.Len()+out.Test.Len() == 0 || !out.Test.Times()[0].After(out.Train.Times()[out.Train.Len()-1]) {
		t.Error("test window does not follow the training window")
	}

	// Persisted run matches the summary.
	if out.Summary.RunID == "" {
		t.Fatal("summary has no run id")
	}
	saved, err := runs.GetRun(context.Background(), out.Summary.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if saved.Pair != pair || saved.Metrics != out.Summary.Metrics || saved.Strategy != cfg.Backtest.Strategy {
		t.Errorf("saved run = %+v, want pair %v metrics %+v", saved, pair, out.Summary.Metrics)
	}

	// Artifacts on disk.
	sum, err := analytics.ReadSummary(filepath.Join(cfg.Storage.ReportsDir, analytics.SummaryFile))
	if err != nil {
		t.Fatalf("ReadSummary: %v", err)
	}
	if sum.RunID != out.Summary.RunID || sum.TargetSharpeRatio != analytics.TargetSharpeRatio {
		t.Errorf("summary on disk = %+v", sum)
	}
	for _, name := range []string{analytics.ReportFile, analytics.EquityFile} {
		if _, err := os.Stat(filepath.Join(cfg.Storage.ReportsDir, name)); err != nil {
			t.Errorf("artifact %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.Storage.DataDir, SchemaFile)); err != nil {
		t.Errorf("schema file: %v", err)
	}

	if len(out.Sweep) != 2 || out.Sweep[0].EntryZ != 1.5 {
		t.Fatalf("sweep = %+v, want rows for 1.5 and 2.5", out.Sweep)
	}
	// The sweep row matching the run's own threshold reproduces it.
	if out.Sweep[0].Metrics != out.Summary.Metrics {
		t.Errorf("sweep metrics %+v, want %+v", out.Sweep[0].Metrics, out.Summary.Metrics)
	}
}

func TestRunDeterministic(t *testing.T) {
	run := func() float64 {
		out, err := Run(context.Background(), Options{Config: testConfig(t), Loader: pairLoader{seed: 3}})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return out.Result.FinalEquity()
	}
	if a, b := run(), run(); a != b {
		t.Errorf("final equity differs across runs: %v vs %v", a, b)
	}
}

func TestRunNoCandidatePairs(t *testing.T) {
	cfg := testConfig(t)
	cfg.Selection.MinObservations = 100_000
	_, err := Run(context.Background(), Options{Config: cfg, Loader: pairLoader{seed: 3}})
	if !errors.Is(err, model.ErrNoCandidatePairs) {
		t.Fatalf("err = %v, want ErrNoCandidatePairs", err)
	}
}

func TestRunFixedHedge(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backtest.HedgeMode = config.HedgeFixed
	cfg.Backtest.FixedHedgeRatio = 1.25
	out, err := Run(context.Background(), Options{Config: cfg, Loader: pairLoader{seed: 3}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Result.HedgeRatio != 1.25 {
		t.Errorf("hedge = %v, want 1.25", out.Result.HedgeRatio)
	}
}

func TestRunRequiresLoader(t *testing.T) {
	if _, err := Run(context.Background(), Options{Config: testConfig(t)}); err == nil {
		t.Fatal("Run without loader returned nil error")
	}
}

func TestNewLoader(t *testing.T) {
	cfg := config.Default()
	cfg.Alpaca.APIKey, cfg.Alpaca.APISecret = "", ""

	l, err := NewLoader(cfg, true, nil, nil)
	if err != nil || l.Name() != "simulated" {
		t.Errorf("mock-only loader = %v, %v; want simulated", l, err)
	}

	cfg.Universe.Source = config.SourceAuto
	if l, _ := NewLoader(cfg, false, nil, nil); l.Name() != "simulated" {
		t.Errorf("auto without credentials = %s, want simulated", l.Name())
	}

	cfg.Universe.Source = config.SourceAlpaca
	if _, err := NewLoader(cfg, false, nil, nil); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("alpaca without credentials err = %v, want ErrInvalidConfig", err)
	}

	cfg.Alpaca.APIKey, cfg.Alpaca.APISecret = "key", "secret"
	cfg.Universe.Source = config.SourceAuto
	bars := store.NewParquetStore(t.TempDir())
	l, err = NewLoader(cfg, false, bars, nil)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	if got, want := l.Name(), "cache(alpaca)+simulated"; got != want {
		t.Errorf("auto loader = %q, want %q", got, want)
	}
}
