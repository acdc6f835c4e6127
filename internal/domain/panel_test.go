package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestNewPricePanelRejectsUnsortedTimes(t *testing.T) {
	times := []time.Time{day(1), day(0)}
	_, err := NewPricePanel(times, []string{"A"}, map[string][]float64{"A": {1, 2}})
	if err == nil {
		t.Fatal("NewPricePanel accepted descending timestamps")
	}
}

func TestNewPricePanelUnknownColumn(t *testing.T) {
	_, err := NewPricePanel([]time.Time{day(0)}, []string{"A", "B"}, map[string][]float64{"A": {1}})
	if !errors.Is(err, ErrUnknownSymbol) {
		t.Fatalf("err = %v, want ErrUnknownSymbol", err)
	}
}

func TestPanelColumnAndSlice(t *testing.T) {
	p, err := NewPricePanel(
		[]time.Time{day(0), day(1), day(2)},
		[]string{"BTC", "ETH"},
		map[string][]float64{"BTC": {1, 2, 3}, "ETH": {10, 20, 30}},
	)
	if err != nil {
		t.Fatalf("NewPricePanel: %v", err)
	}

	s := p.Slice(1, 3)
	if s.Len() != 2 {
		t.Fatalf("Slice len = %d, want 2", s.Len())
	}
	eth, err := s.Column("ETH")
	if err != nil {
		t.Fatalf("Column: %v", err)
	}
	if eth[0] != 20 || eth[1] != 30 {
		t.Errorf("ETH = %v, want [20 30]", eth)
	}

	// Slices must not alias the parent panel.
	eth[0] = -1
	orig, _ := p.Column("ETH")
	if orig[1] != 20 {
		t.Errorf("parent panel mutated through slice: %v", orig)
	}

	if _, err := p.Column("XRP"); !errors.Is(err, ErrUnknownSymbol) {
		t.Errorf("Column(XRP) err = %v, want ErrUnknownSymbol", err)
	}
}

func TestJointlyValid(t *testing.T) {
	nan := math.NaN()
	x, y := JointlyValid([]float64{1, nan, 3, 4}, []float64{5, 6, nan, 8})
	if len(x) != 2 || x[0] != 1 || x[1] != 4 {
		t.Errorf("x = %v, want [1 4]", x)
	}
	if len(y) != 2 || y[0] != 5 || y[1] != 8 {
		t.Errorf("y = %v, want [5 8]", y)
	}
}

func TestPanelFromBarsAndAlign(t *testing.T) {
	bars := []Bar{
		{Symbol: "B", Timestamp: day(0), Close: 1},
		{Symbol: "A", Timestamp: day(1), Close: 10},
		{Symbol: "B", Timestamp: day(1), Close: 2},
		// day(2) missing for both, day(3) only A.
		{Symbol: "A", Timestamp: day(3), Close: 13},
	}
	p, err := PanelFromBars(bars)
	if err != nil {
		t.Fatalf("PanelFromBars: %v", err)
	}
	if got := p.Symbols(); got[0] != "A" || got[1] != "B" {
		t.Errorf("Symbols = %v, want [A B]", got)
	}
	if p.Len() != 3 {
		t.Fatalf("Len = %d, want 3", p.Len())
	}

	aligned, err := Align(p)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	// Row day(0) dropped because A is missing; day(2) inserted and filled.
	if aligned.Len() != 3 {
		t.Fatalf("aligned Len = %d, want 3", aligned.Len())
	}
	if !aligned.Times()[0].Equal(day(1)) {
		t.Errorf("first aligned row = %v, want %v", aligned.Times()[0], day(1))
	}
	a, _ := aligned.Column("A")
	b, _ := aligned.Column("B")
	wantA := []float64{10, 10, 13}
	wantB := []float64{2, 2, 2}
	for i := range wantA {
		if a[i] != wantA[i] || b[i] != wantB[i] {
			t.Errorf("row %d = (%v, %v), want (%v, %v)", i, a[i], b[i], wantA[i], wantB[i])
		}
	}
}

func TestSplitByMonths(t *testing.T) {
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	var times []time.Time
	var col []float64
	for d := start; d.Before(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)); d = d.AddDate(0, 0, 1) {
		times = append(times, d)
		col = append(col, 1)
	}
	p, err := NewPricePanel(times, []string{"A"}, map[string][]float64{"A": col})
	if err != nil {
		t.Fatalf("NewPricePanel: %v", err)
	}

	train, test, err := SplitByMonths(p, 12)
	if err != nil {
		t.Fatalf("SplitByMonths: %v", err)
	}
	if train.Len()+test.Len() != p.Len() {
		t.Errorf("train+test = %d, want %d", train.Len()+test.Len(), p.Len())
	}
	cutoff := time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)
	if !test.Times()[0].Equal(cutoff) {
		t.Errorf("first test row = %v, want %v", test.Times()[0], cutoff)
	}
	if !train.Times()[train.Len()-1].Before(cutoff) {
		t.Errorf("last train row %v not before cutoff", train.Times()[train.Len()-1])
	}
}

func TestSplitByMonthsMonthEnd(t *testing.T) {
	var times []time.Time
	var col []float64
	for d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC); !d.After(time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)); d = d.AddDate(0, 0, 1) {
		times = append(times, d)
		col = append(col, 1)
	}
	p, err := NewPricePanel(times, []string{"A"}, map[string][]float64{"A": col})
	if err != nil {
		t.Fatalf("NewPricePanel: %v", err)
	}

	_, test, err := SplitByMonths(p, 1)
	if err != nil {
		t.Fatalf("SplitByMonths: %v", err)
	}
	want := time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)
	if got := test.Times()[0]; !got.Equal(want) {
		t.Errorf("first test row = %v, want %v", got, want)
	}
}

func TestSubtractMonths(t *testing.T) {
	tests := []struct {
		in     time.Time
		months int
		want   time.Time
	}{
		{time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), 1, time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), 1, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), 12, time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), 24, time.Date(2022, 1, 15, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), 10, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := subtractMonths(tt.in, tt.months); !got.Equal(tt.want) {
			t.Errorf("subtractMonths(%s, %d) = %s, want %s", tt.in.Format(time.DateOnly), tt.months, got.Format(time.DateOnly), tt.want.Format(time.DateOnly))
		}
	}
}

func TestSpreadStateSide(t *testing.T) {
	cases := map[SpreadState]Side{
		StateFlat:        SideFlat,
		StateLongSpread:  SideLong,
		StateShortSpread: SideShort,
	}
	for state, want := range cases {
		if got := state.Side(); got != want {
			t.Errorf("%s.Side() = %v, want %v", state, got, want)
		}
	}
	if got := (Pair{X: "BTC", Y: "ETH"}).String(); got != "BTC/ETH" {
		t.Errorf("Pair.String() = %q, want %q", got, "BTC/ETH")
	}
}
