package app

import (
	"math"
	"testing"
)

func TestLoadGroupFile(t *testing.T) {

	path := writeFile(t, "group.csv", `id,genotype,MaxAgeAtVisit,sex,bmi
b,0,70,1,24.5
a,1,50,0,31.0
,1,99,0,0
c,1,60,1,n/a
`)

	cohort, err := LoadGroupFile(path)
	if err != nil {
		t.Fatal(err)
	}

	// Empty-id row dropped, remainder sorted by id.
	if cohort.N() != 3 {
		t.Fatalf("got %d subjects, want 3", cohort.N())
	}
	for i, want := range []string{"a", "b", "c"} {
		if cohort.IDs[i] != want {
			t.Errorf("IDs[%d] = %s, want %s", i, cohort.IDs[i], want)
		}
	}
	if cohort.Genotype[0] != 1 || cohort.Genotype[1] != 0 {
		t.Errorf("genotype column not permuted with ids: %v", cohort.Genotype)
	}
	if cohort.MaxAgeAtVisit[1] != 70 {
		t.Errorf("MaxAgeAtVisit[b] = %v, want 70", cohort.MaxAgeAtVisit[1])
	}

	// Extra columns become float covariates; unparseable cells are NaN.
	bmi := cohort.Covars["bmi"]
	if bmi[0] != 31.0 || bmi[1] != 24.5 || !math.IsNaN(bmi[2]) {
		t.Errorf("bmi column = %v", bmi)
	}
	if _, ok := cohort.Column("sex"); !ok {
		t.Error("sex column missing")
	}
}

func TestLoadGroupFileDuplicateID(t *testing.T) {

	path := writeFile(t, "group.csv", "id,genotype,MaxAgeAtVisit\na,1,50\na,0,60\n")
	if _, err := LoadGroupFile(path); err == nil {
		t.Error("duplicate id should be fatal")
	}
}

func TestLoadGroupFileBadGenotype(t *testing.T) {

	path := writeFile(t, "group.csv", "id,genotype,MaxAgeAtVisit\na,2,50\n")
	if _, err := LoadGroupFile(path); err == nil {
		t.Error("genotype outside {0,1} should be fatal")
	}

	path = writeFile(t, "group2.csv", "id,genotype,MaxAgeAtVisit\na,case,50\n")
	if _, err := LoadGroupFile(path); err == nil {
		t.Error("non-numeric genotype should be fatal")
	}
}

func TestLoadGroupFileMissingColumn(t *testing.T) {

	path := writeFile(t, "group.csv", "id,MaxAgeAtVisit\na,50\n")
	if _, err := LoadGroupFile(path); err == nil {
		t.Error("missing genotype column should be fatal")
	}
}
