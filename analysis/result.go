package analysis

import (
	"math"
	"sort"
)

// Result holds the regression outcome for one phenotype.  A sentinel row
// (underpowered phenotype or failed fit) carries NaN in every numeric field
// and an empty confidence interval.
type Result struct {

	// Phenotype code and display name
	Code string
	Name string

	// -log10 of the p-value
	NegLogP float64

	// Two-sided p-value of the phenotype aggregate term
	P float64

	// Effect coefficient of the phenotype aggregate term
	Beta float64

	// 95% confidence interval for Beta, formatted "[low,high]"
	ConfInt string

	// Standard error of Beta
	StdErr float64

	// Raw-code rollups, one per source vocabulary
	Rollups []string
}

// sentinelResult is the defined "insufficient data / failed fit" value.
func sentinelResult(ph Phenotype) Result {
	nan := math.NaN()
	return Result{
		Code:    ph.Code,
		Name:    ph.Name,
		NegLogP: nan,
		P:       nan,
		Beta:    nan,
		StdErr:  nan,
		Rollups: ph.Rollups,
	}
}

// FilterSort drops rows with an undefined p-value and sorts the remainder
// by phenotype code.
func FilterSort(results []Result) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if !math.IsNaN(r.P) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// PValues extracts the p-value vector from a result set, for the threshold
// calculators.
func PValues(results []Result) []float64 {
	p := make([]float64, len(results))
	for i, r := range results {
		p[i] = r.P
	}
	return p
}

// Imbalances maps each result's beta to its sign: -1 for a negative
// association, +1 for a positive one, 0 for an undefined beta.
func Imbalances(results []Result) []int {
	im := make([]int, len(results))
	for i, r := range results {
		switch {
		case math.IsNaN(r.Beta):
			im[i] = 0
		case r.Beta > 0:
			im[i] = 1
		case r.Beta < 0:
			im[i] = -1
		}
	}
	return im
}
