package analysis

import (
	"fmt"
	"math"

	"github.com/kshedden/statmodel/glm"
	"github.com/kshedden/statmodel/statmodel"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// FitMode selects the fitting branch for one phenotype's logistic
// regression.
type FitMode int

const (
	// FitOrdinary is maximum-likelihood fitting with the default solver.
	FitOrdinary FitMode = iota

	// FitRegularized adds an L1 penalty; it is used for phenotypes that
	// are quasi-separated by the exposure group.
	FitRegularized

	// FitGradient fits by a quasi-Newton optimizer instead of IRLS, for
	// numerically harder problems.
	FitGradient
)

func (m FitMode) String() string {
	switch m {
	case FitOrdinary:
		return "ordinary"
	case FitRegularized:
		return "regularized"
	case FitGradient:
		return "gradient"
	}
	return "unknown"
}

// l1Penalty is the fixed penalty weight for the regularized branch, stated
// in whole-likelihood units.  The fitter multiplies each per-variable weight
// by the observation count, so the weight handed over is l1Penalty / n.
const l1Penalty = 0.1

// interceptName is the all-ones column every model includes.
const interceptName = "icept"

// fitStats are the reported statistics for the phenotype aggregate term of
// one fitted model.
type fitStats struct {
	beta    float64
	stderr  float64
	p       float64
	negLogP float64
	ciLow   float64
	ciHigh  float64
}

// fitLogit fits a binomial GLM of the outcome on the predictors and
// returns the Wald statistics of the named term.  Solver panics are
// captured and returned as errors so one phenotype cannot unwind the
// regression loop.
func fitLogit(outcome string, outcomeCol []float64, predictors []string, predCols [][]float64,
	term string, mode FitMode) (fs fitStats, err error) {

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fit did not complete: %v", r)
		}
	}()

	idx := -1
	for k, na := range predictors {
		if na == term {
			idx = k
			break
		}
	}
	if idx < 0 {
		return fs, fmt.Errorf("term %s is not among the predictors", term)
	}

	config := glm.DefaultConfig()
	config.Family = glm.NewFamily(glm.BinomialFamily)
	switch mode {
	case FitRegularized:
		pen := make(map[string]float64)
		for _, na := range predictors {
			if na != interceptName {
				pen[na] = l1Penalty / float64(len(outcomeCol))
			}
		}
		config.L1Penalty = pen
	case FitGradient:
		config.FitMethod = "gradient"
	}

	names := append([]string{outcome}, predictors...)
	cols := append([][]float64{outcomeCol}, predCols...)
	data := statmodel.NewDataset(cols, names)

	model, err := glm.NewGLM(data, outcome, predictors, config)
	if err != nil {
		return fs, err
	}
	result := model.Fit()

	params := result.Params()
	if len(params) != len(predictors) {
		return fs, fmt.Errorf("fit returned %d parameters for %d predictors", len(params), len(predictors))
	}
	beta := params[idx]

	se := math.NaN()
	if s := result.StdErr(); idx < len(s) {
		se = s[idx]
	}
	if !(se > 0) || math.IsInf(se, 0) {
		// Penalized fits do not carry a covariance; use the Wald
		// covariance evaluated at the fitted coefficients.
		se = waldStdErr(predCols, params, idx)
	}

	norm := distuv.UnitNormal
	z := beta / se
	p := 2 * norm.CDF(-math.Abs(z))
	q := norm.Quantile(0.975)

	return fitStats{
		beta:    beta,
		stderr:  se,
		p:       p,
		negLogP: -math.Log10(p),
		ciLow:   beta - q*se,
		ciHigh:  beta + q*se,
	}, nil
}

// waldStdErr computes the standard error of coefficient idx from the
// observed information of a logistic model at the given coefficients,
// inv(X' W X) with W = mu(1-mu).
func waldStdErr(predCols [][]float64, params []float64, idx int) float64 {

	if len(predCols) == 0 || len(predCols[0]) == 0 {
		return math.NaN()
	}
	n := len(predCols[0])
	k := len(predCols)

	x := mat.NewDense(n, k, nil)
	for j, col := range predCols {
		x.SetCol(j, col)
	}

	wx := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		eta := 0.0
		for j := 0; j < k; j++ {
			eta += x.At(i, j) * params[j]
		}
		mu := 1 / (1 + math.Exp(-eta))
		w := mu * (1 - mu)
		for j := 0; j < k; j++ {
			wx.Set(i, j, w*x.At(i, j))
		}
	}

	info := mat.NewDense(k, k, nil)
	info.Mul(x.T(), wx)

	var vcov mat.Dense
	if err := vcov.Inverse(info); err != nil {
		return math.NaN()
	}
	v := vcov.At(idx, idx)
	if v <= 0 {
		return math.NaN()
	}
	return math.Sqrt(v)
}
