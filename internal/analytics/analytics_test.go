package analytics

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"statarb/internal/domain"
	"statarb/internal/model"
)

func days(n int) []time.Time {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

func TestMaxDrawdown(t *testing.T) {
	got := MaxDrawdown([]float64{100, 120, 90, 110, 130, 117})
	if math.Abs(got-0.25) > 1e-12 {
		t.Errorf("MaxDrawdown = %v, want 0.25", got)
	}
	if got := MaxDrawdown([]float64{100, 101, 102}); got != 0 {
		t.Errorf("MaxDrawdown(rising) = %v, want 0", got)
	}
}

func TestSharpe(t *testing.T) {
	// Constant positive returns: std is 0, so the epsilon dominates.
	eq := []float64{100, 101, 102.01, 103.0301}
	if got := Sharpe(eq, 252); got < 1e6 {
		t.Errorf("Sharpe(constant growth) = %v, want very large", got)
	}
	if got := Sharpe([]float64{100}, 252); got != 0 {
		t.Errorf("Sharpe(single point) = %v, want 0", got)
	}

	eq = []float64{100, 110, 99}
	r := []float64{0.1, -0.1}
	mean := (r[0] + r[1]) / 2
	sd := 0.1
	want := math.Sqrt(252) * mean / (sd + 1e-12)
	if got := Sharpe(eq, 252); math.Abs(got-want) > 1e-9 {
		t.Errorf("Sharpe = %v, want %v", got, want)
	}
}

func TestCAGR(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 730)
	got := CAGR(100, 121, start, end)
	want := math.Pow(1.21, 365.25/730) - 1
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("CAGR = %v, want %v", got, want)
	}
	// Same-day span counts as one day.
	if got := CAGR(100, 100, start, start); got != 0 {
		t.Errorf("CAGR(flat, zero span) = %v, want 0", got)
	}
	if got := CAGR(100, -5, start, end); got != -1 {
		t.Errorf("CAGR(wiped out) = %v, want -1", got)
	}
}

func TestWinRate(t *testing.T) {
	if got := WinRate(nil); got != 0 {
		t.Errorf("WinRate(nil) = %v, want 0", got)
	}
	if got := WinRate([]float64{0.1, -0.1, 0, 0.2}); got != 0.5 {
		t.Errorf("WinRate = %v, want 0.5", got)
	}
}

func TestComputeMetrics(t *testing.T) {
	eq := []float64{100, 120, 90, 110}
	m := ComputeMetrics(eq, days(4), []float64{0.1, -0.05}, 0)
	if m.Trades != 2 || m.WinRate != 0.5 {
		t.Errorf("trades/win rate = %d/%v, want 2/0.5", m.Trades, m.WinRate)
	}
	if math.Abs(m.MaxDrawdown-0.25) > 1e-12 {
		t.Errorf("MaxDrawdown = %v, want 0.25", m.MaxDrawdown)
	}
	if m.Sharpe != Sharpe(eq, DefaultAnnualization) {
		t.Errorf("Sharpe = %v, want default annualization", m.Sharpe)
	}
	if m.CAGR <= 0 {
		t.Errorf("CAGR = %v, want > 0", m.CAGR)
	}
}

func testResult() *domain.BacktestResult {
	return &domain.BacktestResult{
		Pair:       domain.Pair{X: "BTC", Y: "ETH"},
		HedgeRatio: 1.5,
		Timestamps: days(3),
		Equity:     []float64{100000, 100500.123, 101000},
		Positions:  []domain.Side{domain.SideFlat, domain.SideLong, domain.SideFlat},
	}
}

func TestWriteArtifacts(t *testing.T) {
	dir := t.TempDir()
	res := testResult()
	m := Metrics{Sharpe: 2.5, MaxDrawdown: 0.1, CAGR: 0.2, WinRate: 0.6, Trades: 5}
	cands := []domain.PairCandidate{{AssetX: "BTC", AssetY: "ETH", PValue: 0.01, TestStatistic: -4.2}}
	s := NewSummary(res, m, model.OUParams{Theta: 0.1, Mu: 2, Sigma: 0.5}, cands, ConfigSnapshot{InitialCapital: 100000}, time.Unix(0, 0))

	if !s.TargetAchieved || s.TargetSharpeRatio != TargetSharpeRatio {
		t.Errorf("target = (%v, %v), want achieved at %v", s.TargetAchieved, s.TargetSharpeRatio, TargetSharpeRatio)
	}
	if got := s.FinalEquity.StringFixed(2); got != "101000.00" {
		t.Errorf("FinalEquity = %s, want 101000.00", got)
	}

	if err := WriteArtifacts(dir, s, res); err != nil {
		t.Fatalf("WriteArtifacts: %v", err)
	}

	got, err := ReadSummary(filepath.Join(dir, SummaryFile))
	if err != nil {
		t.Fatalf("ReadSummary: %v", err)
	}
	if got.SelectedPair != [2]string{"BTC", "ETH"} || got.HedgeRatio != 1.5 {
		t.Errorf("summary pair/hedge = %v/%v, want [BTC ETH]/1.5", got.SelectedPair, got.HedgeRatio)
	}
	if got.OU.HalfLifeBars == nil || math.Abs(*got.OU.HalfLifeBars-math.Ln2/0.1) > 1e-9 {
		t.Errorf("half life = %v, want %v", got.OU.HalfLifeBars, math.Ln2/0.1)
	}

	report, err := os.ReadFile(filepath.Join(dir, ReportFile))
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	for _, want := range []string{"# Backtest Performance Report", "**BTC / ETH**", "**Sharpe Ratio:** 2.5000", "$101000.00", "| BTC / ETH | 0.0100 |"} {
		if !strings.Contains(string(report), want) {
			t.Errorf("report missing %q", want)
		}
	}

	f, err := os.Open(filepath.Join(dir, EquityFile))
	if err != nil {
		t.Fatalf("opening equity csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading equity csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d csv rows, want 4", len(rows))
	}
	if rows[2][0] != "2023-01-02" || rows[2][1] != "100500.12" || rows[2][2] != "1" {
		t.Errorf("row 2 = %v, want [2023-01-02 100500.12 1]", rows[2])
	}
}

func TestNewOUSummaryNonReverting(t *testing.T) {
	s := NewOUSummary(model.OUParams{Mu: 1})
	if s.HalfLifeBars != nil {
		t.Errorf("HalfLifeBars = %v, want nil", *s.HalfLifeBars)
	}
}

func TestReadSummaryMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), SummaryFile)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadSummary(path); err == nil {
		t.Error("ReadSummary accepted malformed JSON")
	}
}
