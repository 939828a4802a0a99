package app

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"phewas/analysis"
)

// LoadGroupFile reads the subject roster.  The file must have id, genotype
// and MaxAgeAtVisit columns; every other column is loaded as a float64
// covariate column, with unparseable cells stored as NaN.
//
// Rows with an empty id are dropped.  A duplicate id or a genotype outside
// {0,1} is a data-integrity error.  The returned cohort is sorted by id.
func LoadGroupFile(path string) (*analysis.Cohort, error) {

	fid, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fid.Close()

	rd := csv.NewReader(fid)
	header, err := rd.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}

	colIx := make(map[string]int, len(header))
	for j, na := range header {
		colIx[strings.TrimSpace(na)] = j
	}
	for _, na := range []string{"id", "genotype", "MaxAgeAtVisit"} {
		if _, ok := colIx[na]; !ok {
			return nil, fmt.Errorf("%s: required column %q not found", path, na)
		}
	}

	var covarNames []string
	for na := range colIx {
		switch na {
		case "id", "genotype", "MaxAgeAtVisit":
		default:
			covarNames = append(covarNames, na)
		}
	}
	sort.Strings(covarNames)

	c := &analysis.Cohort{Covars: make(map[string][]float64)}

	for {
		rec, err := rd.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%s: %v", path, err)
		}

		id := strings.TrimSpace(rec[colIx["id"]])
		if id == "" {
			continue
		}

		g, err := strconv.ParseFloat(strings.TrimSpace(rec[colIx["genotype"]]), 64)
		if err != nil || (g != 0 && g != 1) {
			return nil, fmt.Errorf("%s: unknown genotype value %q for subject %s", path, rec[colIx["genotype"]], id)
		}

		c.IDs = append(c.IDs, id)
		c.Genotype = append(c.Genotype, g)
		c.MaxAgeAtVisit = append(c.MaxAgeAtVisit, parseCell(rec[colIx["MaxAgeAtVisit"]]))
		for _, na := range covarNames {
			c.Covars[na] = append(c.Covars[na], parseCell(rec[colIx[na]]))
		}
	}

	if err := sortCohort(c); err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	return c, nil
}

func parseCell(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// sortCohort orders all roster columns by subject id and rejects duplicate
// ids, which would break the id to matrix-row bijection.
func sortCohort(c *analysis.Cohort) error {

	order := make([]int, len(c.IDs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return c.IDs[order[a]] < c.IDs[order[b]] })

	permute := func(col []float64) []float64 {
		out := make([]float64, len(col))
		for i, k := range order {
			out[i] = col[k]
		}
		return out
	}

	ids := make([]string, len(c.IDs))
	for i, k := range order {
		ids[i] = c.IDs[k]
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] == ids[i-1] {
			return fmt.Errorf("duplicate subject id %s", ids[i])
		}
	}

	c.IDs = ids
	c.Genotype = permute(c.Genotype)
	c.MaxAgeAtVisit = permute(c.MaxAgeAtVisit)
	for na, col := range c.Covars {
		c.Covars[na] = permute(col)
	}
	return nil
}
