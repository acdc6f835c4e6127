package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

var errTooFewObservations = errors.New("too few observations for regression")

// ADFResult is an augmented Dickey-Fuller test without deterministic terms.
type ADFResult struct {
	Statistic float64
	UsedLag   int
	NObs      int
}

// ADF runs the augmented Dickey-Fuller regression
//
//	dx[t] = g*x[t-1] + sum_{j=1..p} c_j*dx[t-j] + e[t]
//
// choosing p in [0, maxLag] by AIC, and returns the t-statistic of g.
// A negative maxLag selects ceil(12*(n/100)^(1/4)).
func ADF(x []float64, maxLag int) (ADFResult, error) {
	n := len(x)
	if maxLag < 0 {
		maxLag = int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	}
	maxLag = min(maxLag, n/2-1)
	if maxLag < 0 {
		return ADFResult{}, fmt.Errorf("adf: %d observations: %w", n, errTooFewObservations)
	}

	diff := make([]float64, n-1)
	for i := range diff {
		diff[i] = x[i+1] - x[i]
	}

	// Every candidate lag is fit on the same sample, the one left by maxLag.
	design, target := adfDesign(x, diff, maxLag)
	rows, _ := design.Dims()
	bestLag, bestAIC := 0, math.Inf(1)
	for cols := 1; cols <= maxLag+1; cols++ {
		fit, err := fitOLS(design.Slice(0, rows, 0, cols).(*mat.Dense), target)
		if err != nil {
			continue
		}
		if aic := fit.aic(); aic < bestAIC {
			bestAIC, bestLag = aic, cols-1
		}
	}

	design, target = adfDesign(x, diff, bestLag)
	fit, err := fitOLS(design, target)
	if err != nil {
		return ADFResult{}, fmt.Errorf("adf: fitting lag %d: %w", bestLag, err)
	}
	if fit.stderr[0] == 0 {
		return ADFResult{Statistic: math.Inf(-1), UsedLag: bestLag, NObs: fit.nobs}, nil
	}
	return ADFResult{
		Statistic: fit.coef[0] / fit.stderr[0],
		UsedLag:   bestLag,
		NObs:      fit.nobs,
	}, nil
}

// adfDesign builds the regressors [x[t], dx[t-1], ..., dx[t-lag]] and the
// target dx[t] for t = lag .. len(diff)-1.
func adfDesign(x, diff []float64, lag int) (*mat.Dense, []float64) {
	rows := len(diff) - lag
	design := mat.NewDense(rows, lag+1, nil)
	target := make([]float64, rows)
	for r := 0; r < rows; r++ {
		t := lag + r
		design.Set(r, 0, x[t])
		for j := 1; j <= lag; j++ {
			design.Set(r, j, diff[t-j])
		}
		target[r] = diff[t]
	}
	return design, target
}

type olsFit struct {
	coef   []float64
	stderr []float64
	ssr    float64
	nobs   int
	k      int
}

// fitOLS solves y = X b by the normal equations.
func fitOLS(x *mat.Dense, y []float64) (olsFit, error) {
	n, k := x.Dims()
	if n <= k {
		return olsFit{}, errTooFewObservations
	}

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return olsFit{}, fmt.Errorf("inverting normal equations: %w", err)
	}

	yv := mat.NewVecDense(n, y)
	var xty, b, fitted mat.VecDense
	xty.MulVec(x.T(), yv)
	b.MulVec(&inv, &xty)
	fitted.MulVec(x, &b)

	ssr := 0.0
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		ssr += r * r
	}
	sigma2 := ssr / float64(n-k)

	fit := olsFit{
		coef:   make([]float64, k),
		stderr: make([]float64, k),
		ssr:    ssr,
		nobs:   n,
		k:      k,
	}
	for j := 0; j < k; j++ {
		fit.coef[j] = b.AtVec(j)
		fit.stderr[j] = math.Sqrt(math.Max(sigma2*inv.At(j, j), 0))
	}
	return fit, nil
}

func (f olsFit) aic() float64 {
	n := float64(f.nobs)
	llf := -n / 2 * (math.Log(2*math.Pi) + math.Log(f.ssr/n) + 1)
	return -2*llf + 2*float64(f.k)
}

// MacKinnon (1994, 2010) response surface for the "constant" case, indexed by
// the number of series in the relation minus one.
var (
	tauMaxC  = []float64{2.74, 0.92}
	tauMinC  = []float64{-18.83, -18.86}
	tauStarC = []float64{-1.61, -2.62}

	tauSmallPC = [][]float64{
		{2.1659, 1.4412, 0.038269},
		{2.92, 1.5012, 0.039796},
	}
	tauLargePC = [][]float64{
		{1.7339, 0.93202, -0.12745, -0.010368},
		{2.1945, 0.64695, -0.29198, -0.042377},
	}
)

// MacKinnonPValue returns the approximate p-value of a unit-root test
// statistic with a constant term for a relation of nSeries series (1 or 2).
func MacKinnonPValue(statistic float64, nSeries int) float64 {
	i := min(max(nSeries, 1), len(tauMaxC)) - 1
	switch {
	case math.IsNaN(statistic):
		return 1
	case statistic > tauMaxC[i]:
		return 1
	case statistic < tauMinC[i]:
		return 0
	}

	coef := tauLargePC[i]
	if statistic <= tauStarC[i] {
		coef = tauSmallPC[i]
	}
	// Horner evaluation of c0 + c1*t + c2*t^2 + ...
	v := 0.0
	for j := len(coef) - 1; j >= 0; j-- {
		v = v*statistic + coef[j]
	}
	return distuv.UnitNormal.CDF(v)
}
