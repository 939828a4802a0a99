// Package analysis implements the core of a PheWAS/ProWAS run: construction
// of the per-subject, per-phenotype feature matrix from a mapped event log,
// detection of quasi-separated phenotypes, the per-phenotype logistic
// regression loop, and the multiple-comparison threshold calculators.
package analysis

import "sort"

// RegressionMode selects how event histories are aggregated into the
// feature matrix.
type RegressionMode int

const (
	// BinaryMode records whether the subject ever had the phenotype.
	BinaryMode RegressionMode = iota

	// CountMode records how many events of the phenotype the subject had.
	CountMode

	// DurationMode records the span in age units between the subject's
	// first and last event of the phenotype, inclusive.
	DurationMode
)

func (m RegressionMode) String() string {
	switch m {
	case BinaryMode:
		return "binary"
	case CountMode:
		return "count"
	case DurationMode:
		return "duration"
	}
	return "unknown"
}

// Phenotype is one standardized code from the code map, together with its
// display metadata and the raw codes that roll up into it.
type Phenotype struct {

	// Standardized PheWAS/ProWAS code
	Code string

	// Display name
	Name string

	// Category identifier and display string
	Category       string
	CategoryString string

	// One formatted rollup string per source vocabulary, e.g. the
	// slash-joined ICD-9 codes and ICD-10 codes mapping to this code.
	Rollups []string
}

// Event is one mapped clinical observation.  MaxAge and Duration are
// per-(ID, Code) group statistics attached by the event loader before
// matrix construction.
type Event struct {

	// Subject identifier, foreign key into the cohort
	ID string

	// Standardized phenotype code
	Code string

	// Age at this event
	Age float64

	// Maximum age over all events in this event's (ID, Code) group
	MaxAge float64

	// Group duration, max age - min age + 1; populated in duration mode
	Duration float64
}

// Cohort is the subject roster in columnar form.  Rows are sorted by
// subject id and ids are unique; the loader enforces both.
type Cohort struct {

	// Subject identifiers, ascending
	IDs []string

	// Exposure labels, each 0 or 1
	Genotype []float64

	// Overall maximum observed age per subject
	MaxAgeAtVisit []float64

	// Additional roster columns usable as regression covariates
	Covars map[string][]float64
}

// N returns the number of subjects.
func (c *Cohort) N() int { return len(c.IDs) }

// Column returns the named roster column.  The fixed columns "genotype"
// and "MaxAgeAtVisit" resolve to their dedicated fields.
func (c *Cohort) Column(name string) ([]float64, bool) {
	switch name {
	case "genotype":
		return c.Genotype, true
	case "MaxAgeAtVisit":
		return c.MaxAgeAtVisit, true
	}
	v, ok := c.Covars[name]
	return v, ok
}

// rowIndex returns the id -> row position map for the cohort.
func (c *Cohort) rowIndex() map[string]int {
	ix := make(map[string]int, len(c.IDs))
	for i, id := range c.IDs {
		ix[id] = i
	}
	return ix
}

// sortEvents orders a copy of the event log by (id, code, age) so that
// matrix construction is deterministic regardless of input order.
func sortEvents(events []Event) []Event {
	ev := make([]Event, len(events))
	copy(ev, events)
	sort.Slice(ev, func(i, j int) bool {
		if ev[i].ID != ev[j].ID {
			return ev[i].ID < ev[j].ID
		}
		if ev[i].Code != ev[j].Code {
			return ev[i].Code < ev[j].Code
		}
		return ev[i].Age < ev[j].Age
	})
	return ev
}
