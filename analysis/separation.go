package analysis

// SeparatedColumns flags every phenotype column whose positive subjects all
// fall in a single exposure group.  Ordinary maximum-likelihood logistic
// fits on such columns fail to converge or give unstable estimates, so the
// regression engine routes them to the regularized fitting path.
//
// A column with no positive subjects in either group is not flagged.
func SeparatedColumns(fm *FeatureMatrix, genotype []float64) map[int]bool {

	n, p := fm.Agg.Dims()
	sep := make(map[int]bool)

	for j := 0; j < p; j++ {
		var exposed, unexposed bool
		for i := 0; i < n; i++ {
			if fm.Agg.At(i, j) == 0 {
				continue
			}
			if genotype[i] == 1 {
				exposed = true
			} else {
				unexposed = true
			}
			if exposed && unexposed {
				break
			}
		}
		if exposed != unexposed {
			sep[j] = true
		}
	}

	return sep
}
