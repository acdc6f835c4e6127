// Package statarb is a Go client for the statarb dashboard API.
package statarb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Metrics are the headline statistics of a backtest.
type Metrics struct {
	Sharpe      float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
	CAGR        float64 `json:"cagr"`
	WinRate     float64 `json:"win_rate"`
	Trades      int     `json:"trades"`
}

// Summary is the latest research run summary (summary.json).
type Summary struct {
	RunID             string          `json:"run_id,omitempty"`
	GeneratedAt       time.Time       `json:"generated_at"`
	SelectedPair      [2]string       `json:"selected_pair"`
	HedgeRatio        float64         `json:"hedge_ratio"`
	Metrics           Metrics         `json:"metrics"`
	TargetSharpeRatio float64         `json:"target_sharpe_ratio"`
	TargetAchieved    bool            `json:"target_achieved"`
	InitialEquity     decimal.Decimal `json:"initial_equity"`
	FinalEquity       decimal.Decimal `json:"final_equity"`
}

// Pair names the two legs of a spread.
type Pair struct {
	X string `json:"x"`
	Y string `json:"y"`
}

// Run is a persisted backtest.
type Run struct {
	ID            string          `json:"id"`
	CreatedAt     time.Time       `json:"created_at"`
	Pair          Pair            `json:"pair"`
	Strategy      string          `json:"strategy"`
	HedgeRatio    float64         `json:"hedge_ratio"`
	Metrics       Metrics         `json:"metrics"`
	InitialEquity float64         `json:"initial_equity"`
	FinalEquity   float64         `json:"final_equity"`
	Config        json.RawMessage `json:"config,omitempty"`
}

// RunDetail is a run with its completed trade returns.
type RunDetail struct {
	Run          Run       `json:"run"`
	TradeReturns []float64 `json:"trade_returns"`
}

// EquityPoint is one bar of a run's equity curve. Position is -1, 0 or +1.
type EquityPoint struct {
	Bar       int       `json:"bar"`
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
	Position  int       `json:"position"`
}

// APIError is a non-2xx response from the dashboard.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("statarb api: %d %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the dashboard.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client provides a Go SDK for the statarb dashboard API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new dashboard client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Summary retrieves the latest run summary.
func (c *Client) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	err := c.get(ctx, "/summary.json", &s)
	return s, err
}

// ListRuns retrieves up to limit persisted runs, newest first. limit <= 0
// uses the server default.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	path := "/api/runs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Runs []Run `json:"runs"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// Run retrieves one persisted run with its trade returns.
func (c *Client) Run(ctx context.Context, id string) (RunDetail, error) {
	var d RunDetail
	err := c.get(ctx, "/api/runs/"+url.PathEscape(id), &d)
	return d, err
}

// Equity retrieves the equity curve of a persisted run.
func (c *Client) Equity(ctx context.Context, id string) ([]EquityPoint, error) {
	var resp struct {
		Points []EquityPoint `json:"points"`
	}
	if err := c.get(ctx, "/api/runs/"+url.PathEscape(id)+"/equity", &resp); err != nil {
		return nil, err
	}
	return resp.Points, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: body.Error}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
