package analysis

import (
	"math"
	"sort"
)

// bhyFactor is the fixed empirical correction for dependency among tests in
// the Benjamini-Hochberg-Yekutieli step-up procedure.
const bhyFactor = 8.1

// finiteSorted returns the finite entries of p in ascending order.
func finiteSorted(p []float64) []float64 {
	var sn []float64
	for _, v := range p {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			sn = append(sn, v)
		}
	}
	sort.Float64s(sn)
	return sn
}

// BonferroniThreshold returns alpha divided by the number of finite
// p-values.  NaN entries are excluded from the count.
func BonferroniThreshold(pvalues []float64, alpha float64) float64 {
	m := 0
	for _, v := range pvalues {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			m++
		}
	}
	if m == 0 {
		return math.NaN()
	}
	return alpha / float64(m)
}

// stepUp walks the sorted finite p-values with critical values
// alpha*i/(scale*m) for 1-based rank i, stopping at the first rank whose
// p-value exceeds its critical value.  The returned threshold is the
// p-value at the stopping index: the first value over the critical line
// when the walk breaks, and the largest p-value when it does not.
func stepUp(pvalues []float64, alpha, scale float64) float64 {
	sn := finiteSorted(pvalues)
	m := len(sn)
	if m == 0 {
		return math.NaN()
	}

	i := 0
	for ; i < m; i++ {
		crit := alpha * float64(i+1) / (scale * float64(m))
		if sn[i] > crit {
			break
		}
	}
	if i == m {
		i--
	}
	return sn[i]
}

// FDRThreshold returns the false-discovery-rate step-up threshold for the
// given p-values at level alpha.
func FDRThreshold(pvalues []float64, alpha float64) float64 {
	return stepUp(pvalues, alpha, 1)
}

// BHYThreshold returns the Benjamini-Hochberg-Yekutieli threshold, a
// step-up with the critical line deflated by the 8.1 dependency factor.
func BHYThreshold(pvalues []float64, alpha float64) float64 {
	return stepUp(pvalues, alpha, bhyFactor)
}
