// Package app contains the collaborators around the core analysis: loading
// the PheWAS/ProWAS code maps, the subject roster, and the clinical event
// log, and writing the regression report.
package app

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"phewas/analysis"
)

// CodeType identifies the source vocabulary of a run.
type CodeType int

const (
	// ICDCodes: ICD-9/ICD-10 diagnosis codes mapped to PheWAS codes
	ICDCodes CodeType = iota

	// CPTCodes: CPT procedure codes mapped to ProWAS codes
	CPTCodes
)

// CodeMap is the immutable raw-code to standardized-code table, constructed
// once at startup and passed by handle into the builder and the engine.
type CodeMap struct {
	typ        CodeType
	icd9       map[string]string
	icd10      map[string]string
	cpt        map[string]string
	phenotypes []analysis.Phenotype
}

// mapRow is one parsed line of a code map file.
type mapRow struct {
	raw    string
	std    string
	name   string
	cat    string
	catStr string
}

// readCodeCSV parses one code map file.  Rows with an empty standardized
// code are dropped; a missing required column is fatal.
func readCodeCSV(path string, cols [5]string) ([]mapRow, error) {
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

	var ix [5]int
	for k, want := range cols {
		ix[k] = -1
		for j, na := range header {
			if strings.TrimSpace(na) == want {
				ix[k] = j
				break
			}
		}
		if ix[k] < 0 {
			return nil, fmt.Errorf("%s: required column %q not found", path, want)
		}
	}

	var rows []mapRow
	for {
		rec, err := rd.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%s: %v", path, err)
		}
		r := mapRow{
			raw:    strings.TrimSpace(rec[ix[0]]),
			std:    strings.TrimSpace(rec[ix[1]]),
			name:   rec[ix[2]],
			cat:    rec[ix[3]],
			catStr: rec[ix[4]],
		}
		if r.std == "" {
			continue
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// LoadICDCodeMap builds the PheWAS code map from the ICD-9 and ICD-10
// phecode map files.  The phenotype header is the union of standardized
// codes from both files, sorted lexicographically.
func LoadICDCodeMap(icd9Path, icd10Path string) (*CodeMap, error) {

	rows9, err := readCodeCSV(icd9Path, [5]string{"ICD9", "PheCode", "Phenotype", "category", "category_string"})
	if err != nil {
		return nil, err
	}
	rows10, err := readCodeCSV(icd10Path, [5]string{"ICD10", "PheCode", "Phenotype", "category", "category_string"})
	if err != nil {
		return nil, err
	}

	cm := &CodeMap{
		typ:   ICDCodes,
		icd9:  make(map[string]string),
		icd10: make(map[string]string),
	}

	meta := make(map[string]analysis.Phenotype)
	rollup9 := make(map[string][]string)
	rollup10 := make(map[string][]string)

	for _, r := range rows9 {
		if _, ok := cm.icd9[r.raw]; !ok {
			cm.icd9[r.raw] = r.std
		}
		if _, ok := meta[r.std]; !ok {
			meta[r.std] = analysis.Phenotype{Code: r.std, Name: r.name, Category: r.cat, CategoryString: r.catStr}
		}
		rollup9[r.std] = append(rollup9[r.std], r.raw)
	}
	for _, r := range rows10 {
		if _, ok := cm.icd10[r.raw]; !ok {
			cm.icd10[r.raw] = r.std
		}
		if _, ok := meta[r.std]; !ok {
			meta[r.std] = analysis.Phenotype{Code: r.std, Name: r.name, Category: r.cat, CategoryString: r.catStr}
		}
		rollup10[r.std] = append(rollup10[r.std], r.raw)
	}

	for code, ph := range meta {
		ph.Rollups = []string{
			strings.Join(rollup9[code], "/"),
			strings.Join(rollup10[code], "/"),
		}
		cm.phenotypes = append(cm.phenotypes, ph)
	}
	sort.Slice(cm.phenotypes, func(i, j int) bool { return cm.phenotypes[i].Code < cm.phenotypes[j].Code })

	return cm, nil
}

// LoadCPTCodeMap builds the ProWAS code map from the prowas codes file.
func LoadCPTCodeMap(path string) (*CodeMap, error) {

	rows, err := readCodeCSV(path, [5]string{"cpt", "prowas_code", "prowas_desc", "ccs", "CCS Label"})
	if err != nil {
		return nil, err
	}

	cm := &CodeMap{
		typ: CPTCodes,
		cpt: make(map[string]string),
	}

	meta := make(map[string]analysis.Phenotype)
	rollup := make(map[string][]string)

	for _, r := range rows {
		if _, ok := cm.cpt[r.raw]; !ok {
			cm.cpt[r.raw] = r.std
		}
		if _, ok := meta[r.std]; !ok {
			meta[r.std] = analysis.Phenotype{Code: r.std, Name: r.name, Category: r.cat, CategoryString: r.catStr}
		}
		rollup[r.std] = append(rollup[r.std], r.raw)
	}

	for code, ph := range meta {
		ph.Rollups = []string{strings.Join(rollup[code], "/")}
		cm.phenotypes = append(cm.phenotypes, ph)
	}
	sort.Slice(cm.phenotypes, func(i, j int) bool { return cm.phenotypes[i].Code < cm.phenotypes[j].Code })

	return cm, nil
}

// Phenotypes returns the ordered phenotype header.  Callers must treat it
// as read-only.
func (cm *CodeMap) Phenotypes() []analysis.Phenotype { return cm.phenotypes }

// LookupICD maps a raw ICD code of the given type (9 or 10) to its
// standardized code.
func (cm *CodeMap) LookupICD(raw string, icdType int) (string, bool) {
	switch icdType {
	case 9:
		std, ok := cm.icd9[raw]
		return std, ok
	case 10:
		std, ok := cm.icd10[raw]
		return std, ok
	}
	return "", false
}

// LookupCPT maps a raw CPT code to its standardized code.
func (cm *CodeMap) LookupCPT(raw string) (string, bool) {
	std, ok := cm.cpt[raw]
	return std, ok
}

// AgeColumn is the scratch name under which the regression engine exposes
// the per-phenotype age vector to the covariate list.
func (cm *CodeMap) AgeColumn() string {
	if cm.typ == CPTCodes {
		return "MaxAgeAtCPT"
	}
	return "MaxAgeAtICD"
}

// CodeLabel is the display prefix for report columns.
func (cm *CodeMap) CodeLabel() string {
	if cm.typ == CPTCodes {
		return "ProWAS"
	}
	return "PheWAS"
}

// RollupColumns names the raw-code rollup columns of the report, aligned
// with Phenotype.Rollups.
func (cm *CodeMap) RollupColumns() []string {
	if cm.typ == CPTCodes {
		return []string{"CPT"}
	}
	return []string{"ICD-9", "ICD-10"}
}
