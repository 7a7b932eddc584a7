// Package dataset loads the incident table the runs consume and writes the
// reconciled copy back in the same shape.
package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"fenixrpa/internal/decision"
	"fenixrpa/internal/logging"
)

// ErrMissingColumns is matched by errors.Is on a *MissingColumnsError.
var ErrMissingColumns = errors.New("missing required columns")

// Options controls how a table is read and interpreted.
type Options struct {
	// Sheet to read from a workbook; empty means the first sheet.
	Sheet string
	// Aliases adds header names per logical column.
	Aliases map[string][]string
	// FlagYes is the existing-report value meaning "already filed".
	FlagYes string
	// Unit is the incidence unit contract.
	Unit decision.IncidenceUnit
	// RequireProperty makes the property column mandatory.
	RequireProperty bool
}

// Table is an in-memory copy of the source sheet. Data rows are padded to
// at least the header width and blank rows are kept, so row i is sheet line
// i+2 and Save reproduces the source layout.
type Table struct {
	Sheet   string
	Headers []string

	rows  [][]string
	cols  map[Column]int
	opts  Options
	comma rune
}

// Load reads a .xlsx or .csv file.
func Load(path string, opts Options) (*Table, error) {
	log := logging.Get(logging.CategoryDataset)
	if opts.FlagYes == "" {
		opts.FlagYes = "SIM"
	}

	var (
		t   *Table
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		t, err = loadCSV(path)
	case ".xlsx", ".xlsm":
		t, err = loadWorkbook(path, opts.Sheet)
	default:
		return nil, fmt.Errorf("unsupported table format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	t.opts = opts
	t.cols = mapColumns(t.Headers, opts.Aliases)
	var also []Column
	if opts.RequireProperty {
		also = append(also, ColProperty)
	}
	if missing := missingRequired(t.cols, also...); len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	log.Info("loaded %s: sheet=%q rows=%d columns=%d", filepath.Base(path), t.Sheet, len(t.rows), len(t.Headers))
	return t, nil
}

func loadWorkbook(path, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(f.GetActiveSheetIndex())
		if sheet == "" {
			sheet = f.GetSheetName(0)
		}
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return newTable(sheet, rows, ',')
}

func loadCSV(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	comma := sniffDelimiter(data)
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = comma
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return newTable(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), rows, comma)
}

// sniffDelimiter picks ';' when the header line has more semicolons than
// commas, which is how spreadsheet tools export CSV under pt-BR locales.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func newTable(sheet string, rows [][]string, comma rune) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	t := &Table{Sheet: sheet, Headers: headers, comma: comma}
	for _, row := range rows[1:] {
		// Cells past the header are kept so Save round-trips them.
		padded := make([]string, max(len(headers), len(row)))
		copy(padded, row)
		t.rows = append(t.rows, padded)
	}
	return t, nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Has reports whether the logical column was found.
func (t *Table) Has(c Column) bool {
	_, ok := t.cols[c]
	return ok
}

// Value returns the trimmed cell for row i; "" when the column is absent.
func (t *Table) Value(i int, c Column) string {
	idx, ok := t.cols[c]
	if !ok || i < 0 || i >= len(t.rows) {
		return ""
	}
	return strings.TrimSpace(t.rows[i][idx])
}

// Set replaces a cell.
func (t *Table) Set(i int, c Column, v string) error {
	idx, ok := t.cols[c]
	if !ok {
		return fmt.Errorf("column %s not present", c)
	}
	if i < 0 || i >= len(t.rows) {
		return fmt.Errorf("row %d out of range", i)
	}
	t.rows[i][idx] = v
	return nil
}

// ID returns the primary id of row i, as written in the sheet.
func (t *Table) ID(i int) string {
	idx, ok := t.cols[ColID]
	if !ok || i < 0 || i >= len(t.rows) {
		return ""
	}
	return t.rows[i][idx]
}

// Flag returns the existing-report flag of row i.
func (t *Table) Flag(i int) string { return t.Value(i, ColExisting) }

// SetFlag writes the existing-report flag of row i.
func (t *Table) SetFlag(i int, v string) {
	_ = t.Set(i, ColExisting, v)
}

// FlagYes is the configured "already filed" value.
func (t *Table) FlagYes() string { return t.opts.FlagYes }

// Save writes the table. The format follows the extension of path; a
// workbook keeps the source sheet name, a CSV keeps the source delimiter.
func (t *Table) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return t.saveCSV(path)
	case ".xlsx", ".xlsm":
		return t.saveWorkbook(path)
	default:
		return fmt.Errorf("unsupported table format %q", filepath.Ext(path))
	}
}

func (t *Table) saveCSV(path string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if t.comma != 0 {
		w.Comma = t.comma
	}
	if err := w.Write(t.Headers); err != nil {
		return err
	}
	if err := w.WriteAll(t.rows); err != nil {
		return fmt.Errorf("failed to encode csv: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

func (t *Table) saveWorkbook(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := t.Sheet
	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
	}

	write := func(row int, values []string) error {
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, cellValue(v)); err != nil {
				return err
			}
		}
		return nil
	}

	if err := write(1, t.Headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range t.rows {
		if err := write(i+2, row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// cellValue keeps plain numbers numeric so the exported sheet sorts and
// sums like the source did. Codes with leading zeros stay text.
func cellValue(v string) interface{} {
	s := strings.TrimSpace(v)
	if s == "" || strings.Trim(s, "0123456789.-") != "" {
		return v
	}
	if len(s) > 1 && s[0] == '0' && s[1] != '.' {
		return v
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	return v
}
