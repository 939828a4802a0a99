package analysis

import (
	"fmt"
	"log"
	"math"
	"strings"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// minPositives is the smallest number of subjects with a positive aggregate
// value for which a fit is attempted.  Below it the phenotype gets the
// sentinel result, guarding against spurious fits on underpowered columns.
const minPositives = 6

// termName is the dataset column holding the phenotype aggregate vector;
// its coefficient is the reported effect size.
const termName = "y"

// pheTermName is the dataset column holding the phenotype covariate
// indicator when one is designated.
const pheTermName = "phe"

// RegressionSpec configures the per-phenotype regression loop.
type RegressionSpec struct {

	// Aggregation mode the feature matrix was built with
	Mode RegressionMode

	// "+"-joined roster column names used as additional covariates.
	// The per-phenotype age vector is available under AgeColumn.
	Covariates string

	// Optional custom response column.  When set, the model regresses it
	// on the phenotype aggregate plus genotype; otherwise genotype is
	// the response.
	Response string

	// Phenotype code designated as the layer-2 covariate, if any
	PhenotypeCovariate string

	// Scratch name under which the per-phenotype age vector is exposed
	// to the covariate list, e.g. "MaxAgeAtICD" or "MaxAgeAtCPT"
	AgeColumn string

	// Base fitting branch for non-separated phenotypes; separated
	// phenotypes always use the regularized branch
	Fit FitMode

	// Number of concurrent fits; values below 1 run synchronously
	Workers int
}

// parseCovariates splits and validates the covariate string against the
// cohort's columns.  Unknown names and columns with non-numeric values are
// configuration errors: either one would otherwise fail every single
// phenotype, silently in the NaN case.
func parseCovariates(spec RegressionSpec, cohort *Cohort) ([]string, error) {
	var names []string
	for _, na := range strings.Split(spec.Covariates, "+") {
		na = strings.TrimSpace(na)
		if na == "" {
			continue
		}
		switch na {
		case termName, pheTermName, interceptName:
			return nil, fmt.Errorf("covariate name %q is reserved", na)
		}
		if na != spec.AgeColumn {
			col, ok := cohort.Column(na)
			if !ok {
				return nil, fmt.Errorf("covariate %q is not a column of the group file", na)
			}
			if hasNaN(col) {
				return nil, fmt.Errorf("covariate %q has non-numeric values in the group file", na)
			}
		}
		names = append(names, na)
	}
	return names, nil
}

func hasNaN(col []float64) bool {
	for _, v := range col {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// RunRegressions fits one logistic regression per phenotype column and
// returns the defined results sorted by phenotype code.  Phenotypes that
// are quasi-separated by the exposure group are fit with the regularized
// branch; underpowered phenotypes and failed fits yield sentinel rows,
// which are dropped from the returned set.
//
// The feature matrix and cohort are only read.  Each fit assembles its own
// dataset columns, so no state leaks between phenotypes and fits may run
// concurrently.
func RunRegressions(fm *FeatureMatrix, cohort *Cohort, spec RegressionSpec, logger *log.Logger) ([]Result, error) {

	if logger == nil {
		logger = log.Default()
	}

	n, p := fm.Agg.Dims()
	if n != cohort.N() {
		return nil, fmt.Errorf("feature matrix has %d rows for %d subjects", n, cohort.N())
	}

	covars, err := parseCovariates(spec, cohort)
	if err != nil {
		return nil, err
	}
	if spec.Response != "" {
		col, ok := cohort.Column(spec.Response)
		if !ok {
			return nil, fmt.Errorf("response %q is not a column of the group file", spec.Response)
		}
		if hasNaN(col) {
			return nil, fmt.Errorf("response %q has non-numeric values in the group file", spec.Response)
		}
	}

	separated := SeparatedColumns(fm, cohort.Genotype)

	results := make([]Result, p)

	workers := spec.Workers
	if workers < 1 {
		workers = 1
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j] = fitColumn(fm, cohort, spec, covars, separated[j], j, logger)
			}
		}()
	}
	for j := 0; j < p; j++ {
		jobs <- j
	}
	close(jobs)
	wg.Wait()

	return FilterSort(results), nil
}

// modelShape returns the outcome name and ordered predictor names for one
// phenotype's model: one of the four shapes {default, custom response} x
// {with, without the phenotype covariate term}.
func modelShape(spec RegressionSpec, covars []string, hasPhe bool) (string, []string) {

	predictors := []string{interceptName, termName}
	if hasPhe {
		predictors = append(predictors, pheTermName)
	}

	outcome := "genotype"
	if spec.Response != "" {
		outcome = spec.Response
		predictors = append(predictors, "genotype")
	}

	return outcome, append(predictors, covars...)
}

// fitColumn runs the regression for a single phenotype column.
func fitColumn(fm *FeatureMatrix, cohort *Cohort, spec RegressionSpec, covars []string,
	separated bool, j int, logger *log.Logger) Result {

	ph := fm.Header[j]

	y := mat.Col(nil, j, fm.Agg)
	agev := mat.Col(nil, j, fm.Age)
	phev := mat.Col(nil, j, fm.Cov)

	npos := 0
	for _, v := range y {
		if v > 0 {
			npos++
		}
	}
	if npos < minPositives {
		return sentinelResult(ph)
	}

	hasPhe := false
	if spec.PhenotypeCovariate != "" {
		for _, v := range phev {
			if v != 0 {
				hasPhe = true
				break
			}
		}
	}

	outcome, predictors := modelShape(spec, covars, hasPhe)

	// Each fit gets freshly resolved columns; nothing here writes to the
	// cohort or the matrix.
	resolve := func(name string) []float64 {
		switch name {
		case interceptName:
			ones := make([]float64, cohort.N())
			for i := range ones {
				ones[i] = 1
			}
			return ones
		case termName:
			return y
		case pheTermName:
			return phev
		case spec.AgeColumn:
			return agev
		}
		col, _ := cohort.Column(name)
		return col
	}

	predCols := make([][]float64, len(predictors))
	for k, na := range predictors {
		predCols[k] = resolve(na)
	}
	outcomeCol := resolve(outcome)

	mode := spec.Fit
	if separated {
		mode = FitRegularized
	}

	fs, err := fitLogit(outcome, outcomeCol, predictors, predCols, termName, mode)
	if err != nil {
		logger.Printf("%s: %v (%s fit)", ph.Code, err, mode)
		return sentinelResult(ph)
	}

	return Result{
		Code:    ph.Code,
		Name:    ph.Name,
		NegLogP: fs.negLogP,
		P:       fs.p,
		Beta:    fs.beta,
		ConfInt: fmt.Sprintf("[%v,%v]", fs.ciLow, fs.ciHigh),
		StdErr:  fs.stderr,
		Rollups: ph.Rollups,
	}
}
