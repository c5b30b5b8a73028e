package sheet

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/itohio/photorig/pkg/sample"
)

// SheetName is the worksheet rows are written to.
const SheetName = "Sheet1"

// Header is the first row of every result file. The leading blank column
// holds the positional row index.
var Header = []string{"", "I", "I0", "t", "T", "A"}

var (
	// ErrFilesystem marks failures creating, writing or opening a result file.
	ErrFilesystem = errors.New("filesystem error")
	// ErrFormat marks files whose layout does not match Header.
	ErrFormat = errors.New("unexpected sheet layout")
)

// Write stores rows at path as an .xlsx workbook, replacing any existing file.
func Write(path string, rows []sample.Row) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close workbook: %w", ErrFilesystem, cerr)
		}
	}()

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		values := []any{
			i,
			number(r.Intensity),
			number(r.Baseline),
			number(r.Elapsed),
			r.Temperature,
			number(r.Absorbance),
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("%w: save %s: %w", ErrFilesystem, path, err)
	}
	return nil
}

// Read loads rows previously stored with Write.
func Read(path string) ([]sample.Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrFilesystem, path, err)
	}
	defer f.Close()

	cells, err := f.GetRows(SheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFormat, path, err)
	}
	if len(cells) == 0 {
		return nil, fmt.Errorf("%w: %s has no header", ErrFormat, path)
	}
	if err := checkHeader(cells[0]); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	rows := make([]sample.Row, 0, len(cells)-1)
	for i, line := range cells[1:] {
		r, err := parseRow(line)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", path, i, err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func checkHeader(line []string) error {
	if len(line) != len(Header) {
		return fmt.Errorf("%w: header has %d columns, want %d", ErrFormat, len(line), len(Header))
	}
	for i := 1; i < len(Header); i++ {
		if line[i] != Header[i] {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrFormat, i, line[i], Header[i])
		}
	}
	return nil
}

func parseRow(line []string) (sample.Row, error) {
	if len(line) < len(Header) {
		// Trailing empty cells are not returned; only T may legitimately be empty
		// and it is not the last column.
		return sample.Row{}, fmt.Errorf("%w: %d columns, want %d", ErrFormat, len(line), len(Header))
	}

	var (
		vals [4]float64
		cols = [4]int{1, 2, 3, 5}
	)
	for k, c := range cols {
		v, err := strconv.ParseFloat(line[c], 64)
		if err != nil {
			return sample.Row{}, fmt.Errorf("%w: column %s: %w", ErrFormat, Header[c], err)
		}
		vals[k] = v
	}

	return sample.Row{
		Intensity:   vals[0],
		Baseline:    vals[1],
		Elapsed:     vals[2],
		Temperature: line[4],
		Absorbance:  vals[3],
	}, nil
}

// number leaves finite floats numeric and spells out NaN and ±Inf, which
// have no numeric cell representation.
func number(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return v
}
