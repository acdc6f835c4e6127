package analytics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"statarb/internal/domain"
)

// MarkdownReport renders the human-readable performance report.
func MarkdownReport(s Summary) string {
	var b strings.Builder
	b.WriteString("# Backtest Performance Report\n\n")
	fmt.Fprintf(&b, "Selected Pair: **%s / %s**\n\n", s.SelectedPair[0], s.SelectedPair[1])
	fmt.Fprintf(&b, "Hedge Ratio: %.4f\n\n", s.HedgeRatio)

	b.WriteString("## Metrics\n")
	fmt.Fprintf(&b, "- **Sharpe Ratio:** %.4f\n", s.Metrics.Sharpe)
	fmt.Fprintf(&b, "- **Maximum Drawdown:** %.4f\n", s.Metrics.MaxDrawdown)
	fmt.Fprintf(&b, "- **CAGR:** %.4f\n", s.Metrics.CAGR)
	fmt.Fprintf(&b, "- **Win Rate:** %.4f\n", s.Metrics.WinRate)
	fmt.Fprintf(&b, "- **Trades:** %d\n", s.Metrics.Trades)
	fmt.Fprintf(&b, "- **Initial Equity:** $%s\n", s.InitialEquity.StringFixed(2))
	fmt.Fprintf(&b, "- **Final Equity:** $%s\n", s.FinalEquity.StringFixed(2))
	achieved := "not achieved"
	if s.TargetAchieved {
		achieved = "achieved"
	}
	fmt.Fprintf(&b, "- **Target Sharpe %.2f:** %s\n", s.TargetSharpeRatio, achieved)

	b.WriteString("\n## Spread Model\n")
	fmt.Fprintf(&b, "- **Theta:** %.6f\n", s.OU.Theta)
	fmt.Fprintf(&b, "- **Mu:** %.6f\n", s.OU.Mu)
	fmt.Fprintf(&b, "- **Sigma:** %.6f\n", s.OU.Sigma)
	if s.OU.HalfLifeBars != nil {
		fmt.Fprintf(&b, "- **Half-life (bars):** %.2f\n", *s.OU.HalfLifeBars)
	} else {
		b.WriteString("- **Half-life (bars):** n/a\n")
	}

	if len(s.Candidates) > 0 {
		b.WriteString("\n## Cointegrated Candidates\n")
		b.WriteString("| pair | p-value | statistic |\n|---|---|---|\n")
		for _, c := range s.Candidates {
			fmt.Fprintf(&b, "| %s / %s | %.4f | %.4f |\n", c.AssetX, c.AssetY, c.PValue, c.TestStatistic)
		}
	}

	b.WriteString("\n## Notes\n")
	b.WriteString("- Event-driven simulation with latency, costs, and slippage.\n")
	b.WriteString("- Pair selected via Engle-Granger cointegration test.\n")
	b.WriteString("- Position sizing uses Kelly criterion plus drawdown scaling.\n")
	return b.String()
}

// WriteMarkdownReport renders s to path.
func WriteMarkdownReport(path string, s Summary) error {
	return writeFile(path, []byte(MarkdownReport(s)))
}

// WriteEquityCSV writes timestamp, equity and position columns for res.
func WriteEquityCSV(path string, res *domain.BacktestResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "equity", "position"}); err != nil {
		return err
	}
	for i, eq := range res.Equity {
		ts := ""
		if i < len(res.Timestamps) {
			ts = res.Timestamps[i].UTC().Format(time.DateOnly)
		}
		pos := domain.SideFlat
		if i < len(res.Positions) {
			pos = res.Positions[i]
		}
		row := []string{ts, strconv.FormatFloat(eq, 'f', 2, 64), strconv.Itoa(int(pos))}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// WriteArtifacts writes the summary, markdown report and equity curve into
// dir using the standard file names.
func WriteArtifacts(dir string, s Summary, res *domain.BacktestResult) error {
	if err := WriteSummary(filepath.Join(dir, SummaryFile), s); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	if err := WriteMarkdownReport(filepath.Join(dir, ReportFile), s); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if err := WriteEquityCSV(filepath.Join(dir, EquityFile), res); err != nil {
		return fmt.Errorf("writing equity curve: %w", err)
	}
	return nil
}
