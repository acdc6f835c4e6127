package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

var (
	// ErrEmptyPanel is returned when a panel has no rows.
	ErrEmptyPanel = errors.New("price panel is empty")
	// ErrUnknownSymbol is returned when a symbol is not a panel column.
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// PricePanel is a read-only table of close prices: ascending unique
// timestamps by symbol. Missing cells are NaN.
type PricePanel struct {
	times   []time.Time
	symbols []string
	columns map[string][]float64
}

// NewPricePanel builds a panel from timestamps and one column per symbol, in
// the given symbol order. Every column must have len(times) values and the
// timestamps must be strictly ascending.
func NewPricePanel(times []time.Time, symbols []string, columns map[string][]float64) (*PricePanel, error) {
	for i := 1; i < len(times); i++ {
		if !times[i].After(times[i-1]) {
			return nil, fmt.Errorf("timestamps not strictly ascending at row %d (%s <= %s)",
				i, times[i].Format(time.DateOnly), times[i-1].Format(time.DateOnly))
		}
	}

	p := &PricePanel{
		times:   append([]time.Time(nil), times...),
		symbols: make([]string, 0, len(symbols)),
		columns: make(map[string][]float64, len(symbols)),
	}
	for _, sym := range symbols {
		col, ok := columns[sym]
		if !ok {
			return nil, fmt.Errorf("column %s: %w", sym, ErrUnknownSymbol)
		}
		if len(col) != len(times) {
			return nil, fmt.Errorf("column %s has %d rows, want %d", sym, len(col), len(times))
		}
		if _, dup := p.columns[sym]; dup {
			return nil, fmt.Errorf("duplicate column %s", sym)
		}
		p.symbols = append(p.symbols, sym)
		p.columns[sym] = append([]float64(nil), col...)
	}
	return p, nil
}

// Len returns the number of rows.
func (p *PricePanel) Len() int { return len(p.times) }

// Times returns the row timestamps. Callers must not modify the slice.
func (p *PricePanel) Times() []time.Time { return p.times }

// Symbols returns the column names in panel order.
func (p *PricePanel) Symbols() []string { return append([]string(nil), p.symbols...) }

// Has reports whether sym is a column of the panel.
func (p *PricePanel) Has(sym string) bool {
	_, ok := p.columns[sym]
	return ok
}

// Column returns the prices for sym. Callers must not modify the slice.
func (p *PricePanel) Column(sym string) ([]float64, error) {
	col, ok := p.columns[sym]
	if !ok {
		return nil, fmt.Errorf("column %s: %w", sym, ErrUnknownSymbol)
	}
	return col, nil
}

// Slice returns rows [from, to) as a new panel sharing no state with p.
func (p *PricePanel) Slice(from, to int) *PricePanel {
	from = max(from, 0)
	to = min(to, len(p.times))
	if from > to {
		from = to
	}
	out := &PricePanel{
		times:   append([]time.Time(nil), p.times[from:to]...),
		symbols: append([]string(nil), p.symbols...),
		columns: make(map[string][]float64, len(p.columns)),
	}
	for sym, col := range p.columns {
		out.columns[sym] = append([]float64(nil), col[from:to]...)
	}
	return out
}

// JointlyValid returns the rows of x and y where both prices are present.
func JointlyValid(x, y []float64) ([]float64, []float64) {
	n := min(len(x), len(y))
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return xs, ys
}

// PanelFromBars pivots close prices of daily bars into a panel. Symbols are
// sorted; rows are the union of all bar timestamps truncated to the day.
func PanelFromBars(bars []Bar) (*PricePanel, error) {
	if len(bars) == 0 {
		return nil, ErrEmptyPanel
	}

	byDay := make(map[time.Time]map[string]float64)
	symSet := make(map[string]struct{})
	for _, b := range bars {
		day := truncateDay(b.Timestamp)
		row, ok := byDay[day]
		if !ok {
			row = make(map[string]float64)
			byDay[day] = row
		}
		row[b.Symbol] = b.Close
		symSet[b.Symbol] = struct{}{}
	}

	times := make([]time.Time, 0, len(byDay))
	for day := range byDay {
		times = append(times, day)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	symbols := make([]string, 0, len(symSet))
	for sym := range symSet {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	columns := make(map[string][]float64, len(symbols))
	for _, sym := range symbols {
		col := make([]float64, len(times))
		for i, day := range times {
			if v, ok := byDay[day][sym]; ok {
				col[i] = v
			} else {
				col[i] = math.NaN()
			}
		}
		columns[sym] = col
	}
	return NewPricePanel(times, symbols, columns)
}

// Align reindexes the panel onto a contiguous daily calendar, forward-fills
// missing prices and drops leading rows where any symbol is still missing.
func Align(p *PricePanel) (*PricePanel, error) {
	if p.Len() == 0 {
		return nil, ErrEmptyPanel
	}

	first := truncateDay(p.times[0])
	last := truncateDay(p.times[len(p.times)-1])
	var days []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}

	index := make(map[time.Time]int, len(p.times))
	for i, ts := range p.times {
		index[truncateDay(ts)] = i
	}

	filled := make(map[string][]float64, len(p.symbols))
	for _, sym := range p.symbols {
		src := p.columns[sym]
		col := make([]float64, len(days))
		prev := math.NaN()
		for i, d := range days {
			if j, ok := index[d]; ok && !math.IsNaN(src[j]) {
				prev = src[j]
			}
			col[i] = prev
		}
		filled[sym] = col
	}

	start := 0
	for start < len(days) && rowHasNaN(filled, p.symbols, start) {
		start++
	}
	if start == len(days) {
		return nil, ErrEmptyPanel
	}

	for sym, col := range filled {
		filled[sym] = col[start:]
	}
	return NewPricePanel(days[start:], p.symbols, filled)
}

// SplitByMonths splits the panel at last timestamp minus months: train holds
// rows strictly before the cutoff, test the rows at or after it. A day past
// the end of the target month clips to its last day.
func SplitByMonths(p *PricePanel, months int) (train, test *PricePanel, err error) {
	if p.Len() == 0 {
		return nil, nil, ErrEmptyPanel
	}
	cutoff := subtractMonths(p.times[len(p.times)-1], months)
	idx := sort.Search(len(p.times), func(i int) bool { return !p.times[i].Before(cutoff) })
	return p.Slice(0, idx), p.Slice(idx, len(p.times)), nil
}

// subtractMonths moves t back by months calendar months, clipping the day to
// the target month's length so 2024-05-31 minus one month is 2024-04-30.
func subtractMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m-time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func rowHasNaN(cols map[string][]float64, symbols []string, row int) bool {
	for _, sym := range symbols {
		if math.IsNaN(cols[sym][row]) {
			return true
		}
	}
	return false
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
