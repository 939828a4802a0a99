package analysis

import (
	"fmt"
	"math"
	"reflect"
	"testing"
)

// regressionCohort builds 40 subjects, s00-s19 exposed and s20-s39
// unexposed, with a binary sex covariate.
func regressionCohort() *Cohort {
	c := &Cohort{Covars: map[string][]float64{}}
	for i := 0; i < 40; i++ {
		c.IDs = append(c.IDs, fmt.Sprintf("s%02d", i))
		if i < 20 {
			c.Genotype = append(c.Genotype, 1)
		} else {
			c.Genotype = append(c.Genotype, 0)
		}
		c.MaxAgeAtVisit = append(c.MaxAgeAtVisit, 60)
		c.Covars["sex"] = append(c.Covars["sex"], float64(i%2))
	}
	return c
}

// binaryEvents emits one event per listed subject index for the code,
// with event ages spread out so the age layer is not collinear with the
// aggregate layer.
func binaryEvents(code string, subjects []int) []Event {
	var ev []Event
	for _, i := range subjects {
		age := float64(30 + i%25)
		ev = append(ev, Event{ID: fmt.Sprintf("s%02d", i), Code: code, Age: age, MaxAge: age})
	}
	return ev
}

func seq(lo, hi int) []int {
	var s []int
	for i := lo; i < hi; i++ {
		s = append(s, i)
	}
	return s
}

func TestModelShapes(t *testing.T) {

	covars := []string{"sex", "MaxAgeAtICD"}

	cases := []struct {
		spec      RegressionSpec
		hasPhe    bool
		outcome   string
		predictor []string
	}{
		{RegressionSpec{}, false, "genotype", []string{"icept", "y"}},
		{RegressionSpec{}, true, "genotype", []string{"icept", "y", "phe"}},
		{RegressionSpec{Response: "caseness"}, false, "caseness", []string{"icept", "y", "genotype"}},
		{RegressionSpec{Response: "caseness"}, true, "caseness", []string{"icept", "y", "phe", "genotype"}},
	}

	for i, tc := range cases {
		outcome, predictors := modelShape(tc.spec, nil, tc.hasPhe)
		if outcome != tc.outcome || !reflect.DeepEqual(predictors, tc.predictor) {
			t.Errorf("case %d: got %s ~ %v, want %s ~ %v", i, outcome, predictors, tc.outcome, tc.predictor)
		}
	}

	// Covariates always append after the structural terms.
	_, predictors := modelShape(RegressionSpec{}, covars, false)
	want := []string{"icept", "y", "sex", "MaxAgeAtICD"}
	if !reflect.DeepEqual(predictors, want) {
		t.Errorf("got %v, want %v", predictors, want)
	}
}

func TestParseCovariates(t *testing.T) {

	cohort := regressionCohort()
	spec := RegressionSpec{Covariates: "sex + MaxAgeAtICD", AgeColumn: "MaxAgeAtICD"}

	covars, err := parseCovariates(spec, cohort)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(covars, []string{"sex", "MaxAgeAtICD"}) {
		t.Errorf("got %v", covars)
	}

	if _, err := parseCovariates(RegressionSpec{Covariates: "weight"}, cohort); err == nil {
		t.Error("unknown covariate should be rejected")
	}
	if _, err := parseCovariates(RegressionSpec{Covariates: "y"}, cohort); err == nil {
		t.Error("reserved name should be rejected")
	}
}

func TestRunRegressionsSkipRule(t *testing.T) {

	cohort := regressionCohort()
	header := []Phenotype{{Code: "100", Name: "five positives"}}

	// 5 positive subjects: below the cutoff, sentinel row, dropped.
	events := binaryEvents("100", []int{0, 1, 2, 20, 21})
	fm, err := BuildMatrix(cohort, events, BinaryMode, header, "", discard())
	if err != nil {
		t.Fatal(err)
	}
	results, err := RunRegressions(fm, cohort, RegressionSpec{}, discard())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("5 positives: got %d rows, want 0", len(results))
	}

	// 6 positives in both groups: the fit is attempted and succeeds.
	events = binaryEvents("100", []int{0, 1, 2, 20, 21, 22})
	fm, err = BuildMatrix(cohort, events, BinaryMode, header, "", discard())
	if err != nil {
		t.Fatal(err)
	}
	results, err = RunRegressions(fm, cohort, RegressionSpec{}, discard())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("6 positives: got %d rows, want 1", len(results))
	}
	if math.IsNaN(results[0].P) {
		t.Error("6 positives: p-value should be defined")
	}
}

func TestRunRegressionsEndToEnd(t *testing.T) {

	cohort := regressionCohort()
	header := []Phenotype{
		{Code: "250.2", Name: "Type 2 diabetes"},
		{Code: "401.1", Name: "Essential hypertension"},
		{Code: "696.4", Name: "Psoriasis"},
	}

	var events []Event
	// Present in both groups, enriched among the exposed.
	events = append(events, binaryEvents("250.2", append(seq(0, 15), seq(20, 25)...))...)
	// Present in exposed subjects only: separation-flagged, regularized.
	events = append(events, binaryEvents("401.1", seq(0, 8))...)
	// Underpowered.
	events = append(events, binaryEvents("696.4", seq(0, 5))...)

	fm, err := BuildMatrix(cohort, events, BinaryMode, header, "", discard())
	if err != nil {
		t.Fatal(err)
	}

	sep := SeparatedColumns(fm, cohort.Genotype)
	if !sep[1] || sep[0] || sep[2] {
		t.Fatalf("separation flags wrong: %v", sep)
	}

	spec := RegressionSpec{Workers: 4}
	results, err := RunRegressions(fm, cohort, spec, discard())
	if err != nil {
		t.Fatal(err)
	}

	if len(results) != 2 {
		t.Fatalf("got %d rows, want 2 (underpowered row dropped)", len(results))
	}
	if results[0].Code != "250.2" || results[1].Code != "401.1" {
		t.Fatalf("rows not in code order: %s, %s", results[0].Code, results[1].Code)
	}

	// Ordinary fit: positive association, clearly significant.
	r := results[0]
	if !(r.Beta > 0) {
		t.Errorf("250.2 beta = %v, want > 0", r.Beta)
	}
	if !(r.P > 0 && r.P < 0.05) {
		t.Errorf("250.2 p = %v, want in (0, 0.05)", r.P)
	}
	if math.Abs(r.NegLogP+math.Log10(r.P)) > 1e-9 {
		t.Errorf("-log10(p) inconsistent: %v vs %v", r.NegLogP, r.P)
	}
	if !(r.StdErr > 0) {
		t.Errorf("250.2 stderr = %v, want > 0", r.StdErr)
	}

	// Regularized fit on the separated phenotype: the penalty must not
	// shrink the exposure coefficient to zero, and the direction of
	// association must survive with defined statistics.
	r = results[1]
	if !(r.Beta > 0) {
		t.Errorf("401.1 beta = %v, want > 0", r.Beta)
	}
	if !(r.P > 0 && r.P < 1) {
		t.Errorf("401.1 p = %v, want in (0, 1)", r.P)
	}
	if !(r.StdErr > 0) {
		t.Errorf("401.1 stderr = %v, want > 0", r.StdErr)
	}
}

func TestRunRegressionsWithCovariates(t *testing.T) {

	cohort := regressionCohort()
	header := []Phenotype{{Code: "250.2", Name: "Type 2 diabetes"}}
	events := binaryEvents("250.2", append(seq(0, 15), seq(20, 25)...))

	fm, err := BuildMatrix(cohort, events, BinaryMode, header, "", discard())
	if err != nil {
		t.Fatal(err)
	}

	spec := RegressionSpec{
		Covariates: "sex+MaxAgeAtICD",
		AgeColumn:  "MaxAgeAtICD",
	}
	results, err := RunRegressions(fm, cohort, spec, discard())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d rows, want 1", len(results))
	}
	if math.IsNaN(results[0].P) || !(results[0].Beta > 0) {
		t.Errorf("adjusted fit: p=%v beta=%v", results[0].P, results[0].Beta)
	}
}

func TestRunRegressionsNaNColumns(t *testing.T) {

	cohort := regressionCohort()
	site := make([]float64, cohort.N())
	site[3] = math.NaN()
	cohort.Covars["site"] = site

	fm, err := BuildMatrix(cohort, nil, BinaryMode, testHeader(), "", discard())
	if err != nil {
		t.Fatal(err)
	}

	// A NaN-bearing covariate would make every fit return NaN statistics
	// with no diagnostic, so it is rejected up front.
	if _, err := RunRegressions(fm, cohort, RegressionSpec{Covariates: "site"}, discard()); err == nil {
		t.Error("NaN covariate column should be rejected")
	}
	if _, err := RunRegressions(fm, cohort, RegressionSpec{Response: "site"}, discard()); err == nil {
		t.Error("NaN response column should be rejected")
	}
}

func TestRunRegressionsUnknownResponse(t *testing.T) {

	cohort := regressionCohort()
	fm, err := BuildMatrix(cohort, nil, BinaryMode, testHeader(), "", discard())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := RunRegressions(fm, cohort, RegressionSpec{Response: "missing"}, discard()); err == nil {
		t.Error("unknown response column should be rejected")
	}
}
