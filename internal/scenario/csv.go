package scenario

import (
	"encoding/csv"
	"io"
	"io/fs"
	"strconv"
	"strings"
)

// csvRow is one data row addressed by header name rather than position,
// so tables tolerate extra or reordered columns (§3.1).
type csvRow map[string]string

func readCSVTable(fsys fs.FS, path string) ([]csvRow, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readCSVRows(f)
}

func readCSVRows(r io.Reader) ([]csvRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	header := records[0]
	rows := make([]csvRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(csvRow, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[strings.TrimSpace(col)] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// readDistanceMatrix parses a square CSV with block ids as both the
// first column and the header row (§6 "Distance matrix CSV"). Missing
// cells are simply omitted from the returned map; callers interpret an
// absent entry as "unknown".
func readDistanceMatrix(fsys fs.FS, path string) (map[[2]string]float64, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return map[[2]string]float64{}, nil
	}
	header := records[0][1:]
	out := make(map[[2]string]float64, len(header)*len(records))
	for _, rec := range records[1:] {
		if len(rec) == 0 {
			continue
		}
		rowID := strings.TrimSpace(rec[0])
		for i, col := range header {
			cellIdx := i + 1
			if cellIdx >= len(rec) {
				continue
			}
			cell := strings.TrimSpace(rec[cellIdx])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				continue
			}
			out[[2]string{rowID, strings.TrimSpace(col)}] = v
		}
	}
	return out, nil
}

// field helpers push a Violation instead of panicking on a malformed
// cell, keeping the validator total rather than fail-fast (§4.1).

func (r csvRow) str(key string) string { return r[key] }

func (r csvRow) floatField(c *collector, table string, row int, key string, required bool) (float64, bool) {
	raw := strings.TrimSpace(r[key])
	if raw == "" {
		if required {
			c.addf(table, row, key, "missing", "%s is required", key)
			return 0, false
		}
		return 0, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.addf(table, row, key, "type", "%s = %q is not a number", key, raw)
		return 0, false
	}
	return v, true
}

func (r csvRow) intField(c *collector, table string, row int, key string, required bool) (int, bool) {
	raw := strings.TrimSpace(r[key])
	if raw == "" {
		if required {
			c.addf(table, row, key, "missing", "%s is required", key)
			return 0, false
		}
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.addf(table, row, key, "type", "%s = %q is not an integer", key, raw)
		return 0, false
	}
	return v, true
}

func (r csvRow) boolField(key string, def bool) bool {
	raw := strings.TrimSpace(strings.ToLower(r[key]))
	switch raw {
	case "1", "true", "yes", "y":
		return true
	case "0", "false", "no", "n":
		return false
	default:
		return def
	}
}
