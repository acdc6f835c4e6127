package model

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"statarb/internal/domain"
)

// DefaultMinObservations is the fewest jointly valid rows a pair needs before
// it is tested.
const DefaultMinObservations = 120

// DefaultSignificance is the default p-value threshold for cointegration.
const DefaultSignificance = 0.05

// ErrNoCandidatePairs is returned when no pair passes the significance
// threshold. The simulation cannot proceed without a pair.
var ErrNoCandidatePairs = errors.New("no cointegrated pairs found")

// collinearR2 is the R-squared above which the cointegrating regression is
// treated as an exact fit.
var collinearR2 = 1 - 100*math.Sqrt(2.220446049250313e-16)

// CointResult is the outcome of an Engle-Granger test of x on y.
type CointResult struct {
	Statistic  float64
	PValue     float64
	HedgeRatio float64
	UsedLag    int
}

// EngleGranger runs the two-step Engle-Granger test: OLS of x on y with a
// constant, then an ADF test on the residuals with AIC lag selection. The
// p-value comes from the MacKinnon surface for two series.
func EngleGranger(x, y []float64) (CointResult, error) {
	xs, ys := domain.JointlyValid(x, y)
	if len(xs) < 3 {
		return CointResult{}, fmt.Errorf("engle-granger: %d rows: %w", len(xs), errTooFewObservations)
	}

	fit := FitHedgeRatio(xs, ys)
	resid := make([]float64, len(xs))
	meanX := 0.0
	for _, v := range xs {
		meanX += v
	}
	meanX /= float64(len(xs))
	ssr, sst := 0.0, 0.0
	for i := range xs {
		resid[i] = xs[i] - fit.Intercept - fit.HedgeRatio*ys[i]
		ssr += resid[i] * resid[i]
		d := xs[i] - meanX
		sst += d * d
	}
	if sst == 0 {
		return CointResult{}, errors.New("engle-granger: first series is constant")
	}
	if 1-ssr/sst >= collinearR2 {
		return CointResult{Statistic: math.Inf(-1), PValue: 0, HedgeRatio: fit.HedgeRatio}, nil
	}

	adf, err := ADF(resid, -1)
	if err != nil {
		return CointResult{}, fmt.Errorf("engle-granger: %w", err)
	}
	return CointResult{
		Statistic:  adf.Statistic,
		PValue:     MacKinnonPValue(adf.Statistic, 2),
		HedgeRatio: fit.HedgeRatio,
		UsedLag:    adf.UsedLag,
	}, nil
}

// CointegrationSelector screens every unordered pair of panel symbols for
// cointegration.
type CointegrationSelector struct {
	Significance    float64
	MinObservations int
	log             *slog.Logger
}

// NewCointegrationSelector creates a selector. Non-positive arguments take
// the package defaults; a nil logger uses slog.Default().
func NewCointegrationSelector(significance float64, minObservations int, log *slog.Logger) *CointegrationSelector {
	if significance <= 0 {
		significance = DefaultSignificance
	}
	if minObservations <= 0 {
		minObservations = DefaultMinObservations
	}
	if log == nil {
		log = slog.Default()
	}
	return &CointegrationSelector{
		Significance:    significance,
		MinObservations: minObservations,
		log:             log.With("component", "pair-selector"),
	}
}

// SelectPairs tests each pair (symbols[i], symbols[j]), i < j, in panel order
// and returns those with p-value <= Significance, most significant first.
// Pairs with too little joint history are skipped. The result may be empty.
func (s *CointegrationSelector) SelectPairs(p *domain.PricePanel) []domain.PairCandidate {
	symbols := p.Symbols()
	var selected []domain.PairCandidate
	for i := 0; i < len(symbols); i++ {
		for j := i + 1; j < len(symbols); j++ {
			x, _ := p.Column(symbols[i])
			y, _ := p.Column(symbols[j])
			xs, ys := domain.JointlyValid(x, y)
			if len(xs) < s.MinObservations {
				s.log.Debug("skipping pair: insufficient history",
					"x", symbols[i], "y", symbols[j], "rows", len(xs))
				continue
			}

			res, err := EngleGranger(xs, ys)
			if err != nil {
				s.log.Debug("skipping pair: test failed",
					"x", symbols[i], "y", symbols[j], "error", err)
				continue
			}
			if res.PValue <= s.Significance {
				selected = append(selected, domain.PairCandidate{
					AssetX:        symbols[i],
					AssetY:        symbols[j],
					PValue:        res.PValue,
					TestStatistic: res.Statistic,
				})
			}
		}
	}
	sort.SliceStable(selected, func(a, b int) bool {
		return selected[a].PValue < selected[b].PValue
	})
	return selected
}

// Best returns the most significant candidate, or ErrNoCandidatePairs.
func Best(candidates []domain.PairCandidate) (domain.PairCandidate, error) {
	if len(candidates) == 0 {
		return domain.PairCandidate{}, ErrNoCandidatePairs
	}
	return candidates[0], nil
}
