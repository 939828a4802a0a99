package app

import (
	"compress/gzip"
	"encoding/csv"
	"encoding/gob"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"phewas/analysis"
)

// LoadICDEvents reads an ICD event log and maps it against the code map.
// Each row must carry id, ICD_CODE, ICD_TYPE and AgeAtICD; an ICD_TYPE
// other than 9 or 10 is a data-integrity error.  Codes with no map entry
// are dropped, with a single summary diagnostic.
//
// The returned events carry the per-(id, code) group statistics required
// by the matrix builder: the group maximum age and, in duration mode, the
// group duration.
func LoadICDEvents(path string, cm *CodeMap, mode analysis.RegressionMode, logger *log.Logger) ([]analysis.Event, error) {

	if logger == nil {
		logger = log.Default()
	}

	fid, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fid.Close()

	rd := csv.NewReader(fid)
	ix, err := headerIndex(rd, path, []string{"id", "ICD_CODE", "ICD_TYPE", "AgeAtICD"})
	if err != nil {
		return nil, err
	}

	var events []analysis.Event
	unmapped := 0
	for {
		rec, err := rd.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%s: %v", path, err)
		}

		typ, err := strconv.Atoi(strings.TrimSpace(rec[ix["ICD_TYPE"]]))
		if err != nil || (typ != 9 && typ != 10) {
			return nil, fmt.Errorf("%s: found an ICD_TYPE that was not 9 or 10 (%q) - please check phenotype file", path, rec[ix["ICD_TYPE"]])
		}

		raw := strings.TrimSpace(rec[ix["ICD_CODE"]])
		std, ok := cm.LookupICD(raw, typ)
		if !ok {
			unmapped++
			continue
		}

		age, err := strconv.ParseFloat(strings.TrimSpace(rec[ix["AgeAtICD"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: bad AgeAtICD %q: %v", path, rec[ix["AgeAtICD"]], err)
		}

		events = append(events, analysis.Event{
			ID:   strings.TrimSpace(rec[ix["id"]]),
			Code: std,
			Age:  age,
		})
	}

	if unmapped > 0 {
		logger.Printf("%s: dropped %d events with codes not in the phecode map", path, unmapped)
	}

	attachGroupStats(events, mode)
	return events, nil
}

// LoadCPTEvents reads a CPT event log and maps it against the prowas map.
func LoadCPTEvents(path string, cm *CodeMap, mode analysis.RegressionMode, logger *log.Logger) ([]analysis.Event, error) {

	if logger == nil {
		logger = log.Default()
	}

	fid, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fid.Close()

	rd := csv.NewReader(fid)
	ix, err := headerIndex(rd, path, []string{"id", "CPT_CODE", "AgeAtCPT"})
	if err != nil {
		return nil, err
	}

	var events []analysis.Event
	unmapped := 0
	for {
		rec, err := rd.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%s: %v", path, err)
		}

		raw := strings.TrimSpace(rec[ix["CPT_CODE"]])
		std, ok := cm.LookupCPT(raw)
		if !ok {
			unmapped++
			continue
		}

		age, err := strconv.ParseFloat(strings.TrimSpace(rec[ix["AgeAtCPT"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: bad AgeAtCPT %q: %v", path, rec[ix["AgeAtCPT"]], err)
		}

		events = append(events, analysis.Event{
			ID:   strings.TrimSpace(rec[ix["id"]]),
			Code: std,
			Age:  age,
		})
	}

	if unmapped > 0 {
		logger.Printf("%s: dropped %d events with codes not in the prowas map", path, unmapped)
	}

	attachGroupStats(events, mode)
	return events, nil
}

func headerIndex(rd *csv.Reader, path string, required []string) (map[string]int, error) {
	header, err := rd.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	ix := make(map[string]int, len(header))
	for j, na := range header {
		ix[strings.TrimSpace(na)] = j
	}
	for _, na := range required {
		if _, ok := ix[na]; !ok {
			return nil, fmt.Errorf("%s: required column %q not found", path, na)
		}
	}
	return ix, nil
}

// attachGroupStats sorts the events by (id, code, age) and writes the
// per-group maximum age onto every event of the group.  In duration mode
// it also writes the group duration, max age - min age + 1.
func attachGroupStats(events []analysis.Event, mode analysis.RegressionMode) {

	sort.Slice(events, func(a, b int) bool {
		if events[a].ID != events[b].ID {
			return events[a].ID < events[b].ID
		}
		if events[a].Code != events[b].Code {
			return events[a].Code < events[b].Code
		}
		return events[a].Age < events[b].Age
	})

	for i := 0; i < len(events); {
		j := i + 1
		for j < len(events) && events[j].ID == events[i].ID && events[j].Code == events[i].Code {
			j++
		}
		// Ages are ascending within the group.
		minAge := events[i].Age
		maxAge := events[j-1].Age
		for k := i; k < j; k++ {
			events[k].MaxAge = maxAge
			if mode == analysis.DurationMode {
				events[k].Duration = maxAge - minAge + 1
			}
		}
		i = j
	}
}

// eventCache is the on-disk form of a mapped, grouped event log.
type eventCache struct {
	Mode   analysis.RegressionMode
	Events []analysis.Event
}

// SaveEventCache writes the mapped event log as a gzip-compressed gob so a
// later run with the same regression mode can skip the CSV merge.
func SaveEventCache(path string, mode analysis.RegressionMode, events []analysis.Event) error {

	fid, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fid.Close()

	zw := gzip.NewWriter(fid)
	if err := gob.NewEncoder(zw).Encode(&eventCache{Mode: mode, Events: events}); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// LoadEventCache reads an event cache written by SaveEventCache.  A cache
// built for a different regression mode carries the wrong aggregate
// precomputations and is rejected.
func LoadEventCache(path string, mode analysis.RegressionMode) ([]analysis.Event, error) {

	fid, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fid.Close()

	zr, err := gzip.NewReader(fid)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var ec eventCache
	if err := gob.NewDecoder(zr).Decode(&ec); err != nil {
		return nil, err
	}
	if ec.Mode != mode {
		return nil, fmt.Errorf("%s: cache was built for %s regression, not %s", path, ec.Mode, mode)
	}
	return ec.Events, nil
}
