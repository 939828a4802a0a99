// Command phewas runs a phenome-wide (or procedure-wide) association study:
// it maps a coded event log against a phecode/prowas map, aggregates each
// subject's history into the three-layer feature matrix, fits one logistic
// regression per phenotype, and writes the result table together with the
// multiple-comparison thresholds.
package main

import (
	"flag"
	"log"
	"os"
	"runtime"

	"phewas/analysis"
	"phewas/app"
)

var regressionModes = map[string]analysis.RegressionMode{
	"log": analysis.BinaryMode,
	"lin": analysis.CountMode,
	"dur": analysis.DurationMode,
}

func main() {

	var (
		groupFile  string
		eventFile  string
		codeType   string
		regType    string
		icd9Map    string
		icd10Map   string
		cptMap     string
		covariates string
		response   string
		phewasCov  string
		alpha      float64
		outFile    string
		cacheFile  string
		workers    int
	)

	flag.StringVar(&groupFile, "group", "", "CSV with id, genotype, MaxAgeAtVisit and covariate columns")
	flag.StringVar(&eventFile, "phenotype", "", "CSV event log (ICD or CPT records)")
	flag.StringVar(&codeType, "codetype", "icd", "Event vocabulary: icd or cpt")
	flag.StringVar(&regType, "reg", "log", "Regression mode: log (binary), lin (count), dur (duration)")
	flag.StringVar(&icd9Map, "icd9map", "", "ICD-9 to PheCode map CSV")
	flag.StringVar(&icd10Map, "icd10map", "", "ICD-10 to PheCode map CSV")
	flag.StringVar(&cptMap, "cptmap", "", "CPT to prowas code map CSV")
	flag.StringVar(&covariates, "covariates", "", "'+'-joined covariate column names")
	flag.StringVar(&response, "response", "", "Custom response column; defaults to genotype")
	flag.StringVar(&phewasCov, "phewascov", "", "Phenotype code to use as a covariate")
	flag.Float64Var(&alpha, "alpha", 0.05, "Nominal significance level")
	flag.StringVar(&outFile, "out", "regressions.csv", "Output CSV path")
	flag.StringVar(&cacheFile, "eventcache", "", "Optional gob.gz cache for the mapped event log")
	flag.IntVar(&workers, "workers", runtime.NumCPU(), "Concurrent regression fits")
	flag.Parse()

	if groupFile == "" || eventFile == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	mode, ok := regressionModes[regType]
	if !ok {
		log.Fatalf("unknown regression mode %q", regType)
	}

	var cm *app.CodeMap
	var err error
	switch codeType {
	case "icd":
		if icd9Map == "" || icd10Map == "" {
			log.Fatalln("icd runs need -icd9map and -icd10map")
		}
		cm, err = app.LoadICDCodeMap(icd9Map, icd10Map)
	case "cpt":
		if cptMap == "" {
			log.Fatalln("cpt runs need -cptmap")
		}
		cm, err = app.LoadCPTCodeMap(cptMap)
	default:
		log.Fatalf("unknown code type %q", codeType)
	}
	if err != nil {
		log.Fatalln("loading code map:", err)
	}

	cohort, err := app.LoadGroupFile(groupFile)
	if err != nil {
		log.Fatalln("loading group file:", err)
	}
	log.Printf("Loaded %d subjects and %d phenotype codes", cohort.N(), len(cm.Phenotypes()))

	events, err := loadEvents(eventFile, cacheFile, cm, codeType, mode)
	if err != nil {
		log.Fatalln("loading events:", err)
	}
	log.Printf("Loaded %d mapped events", len(events))

	fm, err := analysis.BuildMatrix(cohort, events, mode, cm.Phenotypes(), phewasCov, nil)
	if err != nil {
		log.Fatalln("building feature matrix:", err)
	}

	spec := analysis.RegressionSpec{
		Mode:               mode,
		Covariates:         covariates,
		Response:           response,
		PhenotypeCovariate: phewasCov,
		AgeColumn:          cm.AgeColumn(),
		Workers:            workers,
	}
	results, err := analysis.RunRegressions(fm, cohort, spec, nil)
	if err != nil {
		log.Fatalln("running regressions:", err)
	}
	log.Printf("Fit %d phenotypes with a defined p-value", len(results))

	if err := app.WriteResultsFile(outFile, results, cm.CodeLabel(), cm.RollupColumns()); err != nil {
		log.Fatalln("writing results:", err)
	}
	app.LogThresholds(nil, results, alpha)
}

// loadEvents reads the mapped event log, via the cache when one is
// configured and present.
func loadEvents(eventFile, cacheFile string, cm *app.CodeMap, codeType string,
	mode analysis.RegressionMode) ([]analysis.Event, error) {

	if cacheFile != "" {
		if _, err := os.Stat(cacheFile); err == nil {
			return app.LoadEventCache(cacheFile, mode)
		}
	}

	var events []analysis.Event
	var err error
	if codeType == "cpt" {
		events, err = app.LoadCPTEvents(eventFile, cm, mode, nil)
	} else {
		events, err = app.LoadICDEvents(eventFile, cm, mode, nil)
	}
	if err != nil {
		return nil, err
	}

	if cacheFile != "" {
		if err := app.SaveEventCache(cacheFile, mode, events); err != nil {
			return nil, err
		}
	}
	return events, nil
}
