package app

import (
	"encoding/csv"
	"io"
	"log"
	"os"
	"strconv"

	"phewas/analysis"
)

// WriteResults writes the sorted regression table as CSV with the standard
// output columns.  The results are only read.
func WriteResults(w io.Writer, results []analysis.Result, codeLabel string, rollupCols []string) error {

	cw := csv.NewWriter(w)

	header := []string{
		codeLabel + " Code",
		codeLabel + " Name",
		"\"-log(p)\"",
		"p-val",
		"beta",
		"Conf-interval beta",
		"std_error",
	}
	header = append(header, rollupCols...)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range results {
		row := []string{
			r.Code,
			r.Name,
			formatFloat(r.NegLogP),
			formatFloat(r.P),
			formatFloat(r.Beta),
			r.ConfInt,
			formatFloat(r.StdErr),
		}
		for k := range rollupCols {
			if k < len(r.Rollups) {
				row = append(row, r.Rollups[k])
			} else {
				row = append(row, "")
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteResultsFile writes the regression table to the named file.
func WriteResultsFile(path string, results []analysis.Result, codeLabel string, rollupCols []string) error {
	fid, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fid.Close()
	return WriteResults(fid, results, codeLabel, rollupCols)
}

// LogThresholds reports the three multiple-comparison cutoffs for the
// result set at level alpha.
func LogThresholds(logger *log.Logger, results []analysis.Result, alpha float64) {
	if logger == nil {
		logger = log.Default()
	}
	p := analysis.PValues(results)
	logger.Printf("Bonferroni threshold: %s", formatFloat(analysis.BonferroniThreshold(p, alpha)))
	logger.Printf("FDR threshold:        %s", formatFloat(analysis.FDRThreshold(p, alpha)))
	logger.Printf("BHY threshold:        %s", formatFloat(analysis.BHYThreshold(p, alpha)))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
