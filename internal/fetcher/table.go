// Package fetcher reads tabular survey files (delimited text and XLSX) into
// header-keyed tables.
package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Table is a header row plus data rows. Rows may be shorter than Header.
type Table struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of the named column, or -1.
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// nullTokens are the cell values tabular tools export for missing data.
// Matching is case-sensitive: "none" is a value, "None" is not.
var nullTokens = map[string]bool{
	"#N/A": true, "#N/A N/A": true, "#NA": true, "-1.#IND": true, "-1.#QNAN": true,
	"-NaN": true, "-nan": true, "1.#IND": true, "1.#QNAN": true, "<NA>": true,
	"N/A": true, "NA": true, "NULL": true, "NaN": true, "None": true,
	"n/a": true, "nan": true, "null": true,
}

// IsNull reports whether a trimmed cell value denotes missing data.
func IsNull(v string) bool {
	return v == "" || nullTokens[v]
}

// Cell returns the trimmed value at row i of column col and whether it is
// present. Empty cells and null tokens such as "NA" or "NaN" are missing.
func (t *Table) Cell(i, col int) (string, bool) {
	if col < 0 || i < 0 || i >= len(t.Rows) || col >= len(t.Rows[i]) {
		return "", false
	}
	v := strings.TrimSpace(t.Rows[i][col])
	if IsNull(v) {
		return "", false
	}
	return v, true
}

// TableOptions configures ReadTable.
type TableOptions struct {
	Delimiter rune   // delimited files only; default ',' (tab for .tsv)
	SheetName string // xlsx only; default first sheet
}

// ReadTable reads a header-first table from a .csv, .tsv, .txt or .xlsx file.
func ReadTable(ctx context.Context, path string, opts TableOptions) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path, XLSXOptions{SheetName: opts.SheetName})
	case ".tsv":
		if opts.Delimiter == 0 {
			opts.Delimiter = '\t'
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	t, err := ReadCSV(ctx, f, CSVOptions{Delimiter: opts.Delimiter, TrimSpace: true})
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read %s", path)
	}
	return t, nil
}
