package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"statarb/internal/analytics"
	"statarb/internal/domain"
	"statarb/internal/model"
	"statarb/internal/store"
)

func testResult() *domain.BacktestResult {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &domain.BacktestResult{
		Pair:         domain.Pair{X: "BTC", Y: "ETH"},
		HedgeRatio:   1.5,
		Timestamps:   []time.Time{start, start.AddDate(0, 0, 1), start.AddDate(0, 0, 2)},
		Equity:       []float64{100000, 100400, 101000},
		Positions:    []domain.Side{domain.SideFlat, domain.SideLong, domain.SideFlat},
		TradeReturns: []float64{0.01},
	}
}

func writeTestArtifacts(t *testing.T, dir string) analytics.Summary {
	t.Helper()
	res := testResult()
	m := analytics.Metrics{Sharpe: 2.4, MaxDrawdown: 0.03, CAGR: 0.5, WinRate: 1, Trades: 1}
	s := analytics.NewSummary(res, m, model.OUParams{Theta: 0.2, Mu: 0, Sigma: 1}, nil,
		analytics.ConfigSnapshot{InitialCapital: 100000}, time.Unix(0, 0))
	if err := analytics.WriteArtifacts(dir, s, res); err != nil {
		t.Fatalf("WriteArtifacts: %v", err)
	}
	return s
}

func openRuns(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestArtifactsMissing(t *testing.T) {
	h := NewDashboardServer(t.TempDir(), nil, nil).Handler()
	for _, path := range []string{"/summary.json", "/report.md", "/equity.csv"} {
		if rec := get(t, h, path); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, rec.Code)
		}
	}
	rec := get(t, h, "/")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "No research run") {
		t.Errorf("GET / = %d %q, want 200 with empty-state text", rec.Code, rec.Body.String())
	}
}

func TestArtifactsServed(t *testing.T) {
	dir := t.TempDir()
	writeTestArtifacts(t, dir)
	srv := NewDashboardServer(dir, nil, nil)
	h := srv.Handler()

	rec := get(t, h, "/summary.json")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /summary.json = %d, want 200", rec.Code)
	}
	var sum analytics.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decoding summary: %v", err)
	}
	if sum.SelectedPair != [2]string{"BTC", "ETH"} || !sum.TargetAchieved {
		t.Errorf("summary = %+v, want BTC/ETH target achieved", sum)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS header = %q, want *", got)
	}

	rec = get(t, h, "/report.md")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "# Backtest Performance Report") {
		t.Errorf("GET /report.md = %d, body missing title", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("report Content-Type = %q, want text/markdown", ct)
	}

	rec = get(t, h, "/equity.csv")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "timestamp,equity,position") {
		t.Errorf("GET /equity.csv = %d %q", rec.Code, rec.Body.String())
	}

	rec = get(t, h, "/")
	if !strings.Contains(rec.Body.String(), "BTC/ETH") {
		t.Errorf("index does not show the latest pair: %q", rec.Body.String())
	}
}

func TestSummaryMalformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, analytics.SummaryFile), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec := get(t, NewDashboardServer(dir, nil, nil).Handler(), "/summary.json")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("GET /summary.json = %d, want 500", rec.Code)
	}
}

func TestRunsRoutes(t *testing.T) {
	runs := openRuns(t)
	res := testResult()
	id, err := runs.SaveRun(context.Background(), store.Run{
		Pair:          res.Pair,
		Strategy:      "pairs-ou",
		HedgeRatio:    res.HedgeRatio,
		InitialEquity: 100000,
		FinalEquity:   res.FinalEquity(),
	}, res)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	h := NewDashboardServer(t.TempDir(), runs, nil).Handler()

	rec := get(t, h, "/api/runs")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/runs = %d, want 200", rec.Code)
	}
	var list RunsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decoding runs: %v", err)
	}
	if len(list.Runs) != 1 || list.Runs[0].ID != id {
		t.Errorf("runs = %+v, want one run with id %s", list.Runs, id)
	}

	rec = get(t, h, "/api/runs/"+id)
	var detail RunDetailResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decoding run: %v", err)
	}
	if detail.Run.Pair != res.Pair || len(detail.TradeReturns) != 1 {
		t.Errorf("run detail = %+v, want pair %v with one trade", detail, res.Pair)
	}

	rec = get(t, h, "/api/runs/"+id+"/equity")
	var eq EquityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &eq); err != nil {
		t.Fatalf("decoding equity: %v", err)
	}
	if len(eq.Points) != 3 || eq.Points[2].Equity != 101000 {
		t.Errorf("equity = %+v, want 3 points ending at 101000", eq.Points)
	}

	if rec := get(t, h, "/api/runs/missing"); rec.Code != http.StatusNotFound {
		t.Errorf("GET unknown run = %d, want 404", rec.Code)
	}
	if rec := get(t, h, "/api/runs/missing/equity"); rec.Code != http.StatusNotFound {
		t.Errorf("GET unknown run equity = %d, want 404", rec.Code)
	}
	if rec := get(t, h, "/api/runs?limit=zero"); rec.Code != http.StatusBadRequest {
		t.Errorf("GET bad limit = %d, want 400", rec.Code)
	}
}

func TestRunsWithoutStore(t *testing.T) {
	rec := get(t, NewDashboardServer(t.TempDir(), nil, nil).Handler(), "/api/runs")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /api/runs = %d, want 503", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	dir := t.TempDir()
	writeTestArtifacts(t, dir)
	h := NewDashboardServer(dir, nil, nil).Handler()
	get(t, h, "/summary.json")
	get(t, h, "/report.md")

	rec := get(t, h, "/metrics")
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`statarb_http_requests_total{code="200",route="GET /summary.json"} 1`,
		"statarb_last_run_sharpe_ratio 2.4",
		"statarb_last_run_final_equity 101000",
		"statarb_last_run_target_achieved 1",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	h := NewDashboardServer(t.TempDir(), nil, nil).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/summary.json", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("OPTIONS = %d, want 204", rec.Code)
	}
}
