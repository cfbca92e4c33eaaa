// Package table reads product and image sheets (CSV or XLSX) into Rows:
// lower-cased column names mapped to cleaned cell values, each carrying the
// 1-based line it came from.
package table

import (
	"strings"
)

// Row is one data row of a sheet.
type Row struct {
	// Line is the 1-based source line; the header is line 1.
	Line   int
	values map[string]string
}

// NewRow builds a Row from a column→value map. Keys are lower-cased and
// values cleaned. Used by tests and by callers that synthesise rows.
func NewRow(line int, values map[string]string) Row {
	r := Row{Line: line, values: make(map[string]string, len(values))}
	for k, v := range values {
		r.values[normalizeHeader(k)] = CleanCell(v)
	}
	return r
}

// Get returns the cleaned value of column key, or "".
func (r Row) Get(key string) string {
	return r.values[key]
}

// Has reports whether the sheet has column key with a non-empty value on
// this row.
func (r Row) Has(key string) bool {
	return r.values[key] != ""
}

// Pick returns the first non-empty value among keys, in order. This is the
// single place where synonymous column names are resolved.
func (r Row) Pick(keys ...string) string {
	for _, k := range keys {
		if v := r.values[k]; v != "" {
			return v
		}
	}
	return ""
}

// PickKey is Pick that also reports which column supplied the value.
func (r Row) PickKey(keys ...string) (value, key string) {
	for _, k := range keys {
		if v := r.values[k]; v != "" {
			return v, k
		}
	}
	return "", ""
}

// Columns returns the row's column names that hold a value.
func (r Row) Columns() []string {
	cols := make([]string, 0, len(r.values))
	for k, v := range r.values {
		if v != "" {
			cols = append(cols, k)
		}
	}
	return cols
}

// HeaderIndex maps a lower-cased column name to its position.
type HeaderIndex map[string]int

// MakeHeaderIndex builds a HeaderIndex. The first occurrence of a repeated
// column wins.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if key == "" {
			continue
		}
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

// normalizeHeader lower-cases a header and folds spaces and dashes to
// underscores, so "Brand Handle" and "brand-handle" read as brand_handle.
func normalizeHeader(h string) string {
	h = strings.ToLower(CleanCell(h))
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return '_'
		}
		return r
	}, h)
}

// CleanCell trims whitespace and strips spreadsheet artefacts: a formula
// wrapper (="value") and surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = s[1 : len(s)-1]
		}
	}
	return strings.TrimSpace(s)
}

// SplitList splits a multi-valued cell on the reserved "|" delimiter,
// trimming entries and dropping empty ones. Commas are left alone because
// they are ordinary text inside a cell.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, "|") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// fromRecord builds a Row from a positional record.
func fromRecord(line int, idx HeaderIndex, record []string) Row {
	r := Row{Line: line, values: make(map[string]string, len(idx))}
	for key, pos := range idx {
		if pos < len(record) {
			r.values[key] = CleanCell(record[pos])
		}
	}
	return r
}

// isBlank reports whether every cell of record is empty.
func isBlank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
