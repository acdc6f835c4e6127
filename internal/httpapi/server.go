package httpapi

import (
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"statarb/internal/analytics"
	"statarb/internal/store"
	"statarb/internal/util"
)

// DefaultRunLimit caps GET /api/runs when no limit is given.
const DefaultRunLimit = 50

// DashboardServer serves the dashboard HTTP API.
type DashboardServer struct {
	reportsDir string
	runs       store.RunStore // nil disables the /api/runs routes
	metrics    *Metrics
	log        *slog.Logger
}

// NewDashboardServer creates a dashboard serving artifacts from reportsDir
// and persisted runs from runs, which may be nil.
func NewDashboardServer(reportsDir string, runs store.RunStore, log *slog.Logger) *DashboardServer {
	return &DashboardServer{
		reportsDir: reportsDir,
		runs:       runs,
		metrics:    NewMetrics(),
		log:        util.OrDefault(log),
	}
}

// Metrics returns the server's collectors.
func (s *DashboardServer) Metrics() *Metrics { return s.metrics }

// RegisterRoutes registers all API routes on the given mux.
func (s *DashboardServer) RegisterRoutes(mux *http.ServeMux) {
	s.handle(mux, "GET /{$}", s.handleIndex)
	s.handle(mux, "GET /healthz", s.handleHealth)
	s.handle(mux, "GET /summary.json", s.handleSummary)
	s.handle(mux, "GET /report.md", s.handleArtifact(analytics.ReportFile, "text/markdown; charset=utf-8"))
	s.handle(mux, "GET /equity.csv", s.handleArtifact(analytics.EquityFile, "text/csv; charset=utf-8"))
	s.handle(mux, "GET /api/runs", s.handleListRuns)
	s.handle(mux, "GET /api/runs/{id}", s.handleGetRun)
	s.handle(mux, "GET /api/runs/{id}/equity", s.handleRunEquity)
	mux.Handle("GET /metrics", s.metrics.Handler())
}

// Handler returns an http.Handler with CORS middleware.
func (s *DashboardServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func (s *DashboardServer) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, s.metrics.instrument(pattern, h))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Artifacts
// ---------------------------------------------------------------------------

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>statarb dashboard</title></head>
<body>
<h1>Statistical arbitrage dashboard</h1>
{{if .HasSummary}}<p>Latest pair: <b>{{index .Summary.SelectedPair 0}}/{{index .Summary.SelectedPair 1}}</b>,
Sharpe {{printf "%.4f" .Summary.Metrics.Sharpe}}, final equity {{.Summary.FinalEquity.StringFixed 2}}</p>
{{else}}<p>No research run has written a summary yet.</p>{{end}}
<ul>
<li><a href="/summary.json">summary.json</a></li>
<li><a href="/report.md">performance_report.md</a></li>
<li><a href="/equity.csv">equity_curve.csv</a></li>
<li><a href="/api/runs">persisted runs</a></li>
<li><a href="/metrics">metrics</a></li>
</ul>
</body>
</html>
`))

func (s *DashboardServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		HasSummary bool
		Summary    analytics.Summary
	}{}
	if sum, err := analytics.ReadSummary(s.path(analytics.SummaryFile)); err == nil {
		data.HasSummary = true
		data.Summary = sum
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		s.log.Error("rendering index", "error", err)
	}
}

func (s *DashboardServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, HealthResponse{Status: "ok"})
}

func (s *DashboardServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := analytics.ReadSummary(s.path(analytics.SummaryFile))
	if errors.Is(err, fs.ErrNotExist) {
		writeError(w, http.StatusNotFound, "summary not found")
		return
	}
	if err != nil {
		s.log.Error("reading summary", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.metrics.ObserveSummary(sum)
	writeJSON(w, sum)
}

// handleArtifact serves a report file verbatim.
func (s *DashboardServer) handleArtifact(name, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := os.ReadFile(s.path(name))
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, name+" not found")
			return
		}
		if err != nil {
			s.log.Error("reading artifact", "file", name, "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Write(data)
	}
}

func (s *DashboardServer) path(name string) string {
	return filepath.Join(s.reportsDir, name)
}

// ---------------------------------------------------------------------------
// Persisted runs
// ---------------------------------------------------------------------------

func (s *DashboardServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireRuns(w) {
		return
	}
	limit := DefaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.log.Error("listing runs", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, RunsResponse{Runs: runs})
}

func (s *DashboardServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireRuns(w) {
		return
	}
	id := r.PathValue("id")
	run, err := s.runs.GetRun(r.Context(), id)
	if err != nil {
		s.storeError(w, "getting run", id, err)
		return
	}
	trades, err := s.runs.TradeReturns(r.Context(), id)
	if err != nil {
		s.storeError(w, "reading trade returns", id, err)
		return
	}
	if trades == nil {
		trades = []float64{}
	}
	writeJSON(w, RunDetailResponse{Run: run, TradeReturns: trades})
}

func (s *DashboardServer) handleRunEquity(w http.ResponseWriter, r *http.Request) {
	if !s.requireRuns(w) {
		return
	}
	id := r.PathValue("id")
	points, err := s.runs.EquityCurve(r.Context(), id)
	if err != nil {
		s.storeError(w, "reading equity curve", id, err)
		return
	}
	if points == nil {
		points = []store.EquityPoint{}
	}
	writeJSON(w, EquityResponse{RunID: id, Points: points})
}

func (s *DashboardServer) requireRuns(w http.ResponseWriter) bool {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run store not configured")
		return false
	}
	return true
}

func (s *DashboardServer) storeError(w http.ResponseWriter, op, id string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run "+id+" not found")
		return
	}
	s.log.Error(op, "run", id, "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}
