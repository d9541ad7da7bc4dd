package tabular

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// Table aligns independent rows onto one column set.
type Table struct {
	columns []string
	rows    []Row
}

// NewTable builds a table from rows. Columns named in leading come first, in
// that order, when at least one row has them; all other columns follow in
// sorted order.
func NewTable(rows []Row, leading ...string) *Table {
	seen := make(map[string]bool)
	for _, row := range rows {
		for col := range row {
			seen[col] = true
		}
	}

	columns := make([]string, 0, len(seen))
	for _, col := range leading {
		if seen[col] {
			columns = append(columns, col)
			delete(seen, col)
		}
	}
	rest := make([]string, 0, len(seen))
	for col := range seen {
		rest = append(rest, col)
	}
	sort.Strings(rest)

	return &Table{
		columns: append(columns, rest...),
		rows:    rows,
	}
}

// Columns returns the aligned column names.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Rows returns the underlying rows. Missing cells are simply absent.
func (t *Table) Rows() []Row {
	return t.rows
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Value returns the cell at row i and column col.
func (t *Table) Value(i int, col string) (any, bool) {
	if i < 0 || i >= len(t.rows) {
		return nil, false
	}
	v, ok := t.rows[i][col]
	return v, ok
}

// WriteCSV writes a header line and one line per row. Missing and null cells
// are written as empty fields.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(t.columns))
	for i, row := range t.rows {
		for j, col := range t.columns {
			cell, err := formatCell(row[col])
			if err != nil {
				return fmt.Errorf("row %d column %s: %w", i, col, err)
			}
			record[j] = cell
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSONLines writes one JSON object per row, with every table column
// present; missing cells are null.
func (t *Table) WriteJSONLines(w io.Writer) error {
	enc := json.NewEncoder(w)
	for i, row := range t.rows {
		aligned := make(map[string]any, len(t.columns))
		for _, col := range t.columns {
			aligned[col] = row[col]
		}
		if err := enc.Encode(aligned); err != nil {
			return fmt.Errorf("write json row %d: %w", i, err)
		}
	}
	return nil
}

func formatCell(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case *string:
		if val == nil {
			return "", nil
		}
		return *val, nil
	case json.Number:
		return val.String(), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(val), nil
	case bool:
		return strconv.FormatBool(val), nil
	case []any, map[string]any:
		data, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return fmt.Sprint(val), nil
	}
}
