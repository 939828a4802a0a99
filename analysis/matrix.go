package analysis

import (
	"fmt"
	"log"

	"gonum.org/v1/gonum/mat"
)

// FeatureMatrix is the dense 3-layer subject x phenotype array.  Row i of
// every layer corresponds to subject i of the cohort and column j to
// phenotype j of the header.
type FeatureMatrix struct {

	// Aggregate layer; meaning depends on the regression mode
	Agg *mat.Dense

	// Maximum age at which each subject had each phenotype.  Pairs with
	// no events hold the subject's overall MaxAgeAtVisit.
	Age *mat.Dense

	// Phenotype covariate indicator; all-ones row for subjects having at
	// least one event of the designated covariate code, otherwise zero
	Cov *mat.Dense

	// Column order of all three layers
	Header []Phenotype

	colIndex map[string]int
}

// ColumnIndex returns the column position of a phenotype code.
func (fm *FeatureMatrix) ColumnIndex(code string) (int, bool) {
	j, ok := fm.colIndex[code]
	return j, ok
}

// BuildMatrix aggregates the event log into a feature matrix over the given
// cohort and phenotype header.  Events referencing an id that is not in the
// cohort are excluded from all layers, with one warning per unknown id.
// An event naming a phenotype code absent from the header indicates a
// corrupt event log and is fatal.
//
// The age layer is pre-filled with each subject's MaxAgeAtVisit, so subjects
// with no qualifying events keep their overall maximum age in every column.
func BuildMatrix(cohort *Cohort, events []Event, mode RegressionMode, header []Phenotype,
	phenoCov string, logger *log.Logger) (*FeatureMatrix, error) {

	if logger == nil {
		logger = log.Default()
	}

	n := cohort.N()
	p := len(header)

	colIndex := make(map[string]int, p)
	for j, ph := range header {
		if _, dup := colIndex[ph.Code]; dup {
			return nil, fmt.Errorf("phenotype header contains %s more than once", ph.Code)
		}
		colIndex[ph.Code] = j
	}

	fm := &FeatureMatrix{
		Agg:      mat.NewDense(n, p, nil),
		Age:      mat.NewDense(n, p, nil),
		Cov:      mat.NewDense(n, p, nil),
		Header:   header,
		colIndex: colIndex,
	}

	// Fill policy for (subject, phenotype) pairs without events.
	for i := 0; i < n; i++ {
		a := cohort.MaxAgeAtVisit[i]
		for j := 0; j < p; j++ {
			fm.Age.Set(i, j, a)
		}
	}

	rowIndex := cohort.rowIndex()
	warned := make(map[string]bool)

	for _, ev := range sortEvents(events) {
		i, ok := rowIndex[ev.ID]
		if !ok {
			if !warned[ev.ID] {
				logger.Printf("%s has records in phenotype file but is not in group file - excluding from study", ev.ID)
				warned[ev.ID] = true
			}
			continue
		}
		j, ok := colIndex[ev.Code]
		if !ok {
			return nil, fmt.Errorf("event code %s is not in the phenotype header", ev.Code)
		}

		fm.Age.Set(i, j, ev.MaxAge)

		if phenoCov != "" && ev.Code == phenoCov && fm.Cov.At(i, 0) != 1 {
			for k := 0; k < p; k++ {
				fm.Cov.Set(i, k, 1)
			}
		}

		switch mode {
		case BinaryMode:
			fm.Agg.Set(i, j, 1)
		case CountMode:
			fm.Agg.Set(i, j, fm.Agg.At(i, j)+1)
		case DurationMode:
			// Assignment, not accumulation: every event in the group
			// carries the same precomputed duration.
			fm.Agg.Set(i, j, ev.Duration)
		default:
			return nil, fmt.Errorf("unknown regression mode %d", mode)
		}
	}

	return fm, nil
}
