package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/catalogsync/internal/diag"
)

// ReadFile reads a sheet, choosing the format from the file extension:
// .xlsx is read as a workbook, anything else as CSV.
func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, diag.Wrap(diag.IOError, err, "open sheet %s", path)
	}
	defer f.Close()

	var rows []Row
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		rows, err = ReadXLSX(f)
	} else {
		rows, err = ReadCSV(f)
	}
	if err != nil {
		return nil, diag.Wrap(diag.IOError, err, "read sheet %s", path)
	}
	return rows, nil
}

// ReadCSV parses a CSV sheet with one header row. Blank lines are skipped;
// each Row keeps the physical line number reported by the parser.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(cleanStream(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid csv header: %w", err)
	}
	idx := MakeHeaderIndex(header)

	var rows []Row
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid csv: %w", err)
		}
		if isBlank(record) {
			continue
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, fromRecord(line, idx, record))
	}
	return rows, nil
}

// ReadXLSX parses the "Products" sheet of a workbook, or its first sheet
// when none is named so. Row numbers are the spreadsheet row numbers.
func ReadXLSX(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("no sheets found in workbook")
	}
	sheet := sheets[0]
	for _, name := range sheets {
		if strings.EqualFold(name, "Products") {
			sheet = name
			break
		}
	}

	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	idx := MakeHeaderIndex(records[0])

	var rows []Row
	for i, record := range records[1:] {
		if isBlank(record) {
			continue
		}
		rows = append(rows, fromRecord(i+2, idx, record))
	}
	return rows, nil
}
