package tabular

import (
	"fmt"
	"strings"
)

// FlattenMarker, appended to a FieldSpec path, expands the resolved value
// into dotted sub-columns instead of one column.
const FlattenMarker = "__flatten"

// Source is a record that can be projected.
type Source interface {
	// Baseline returns the record's metadata columns.
	Baseline() map[string]any

	// ModelValue returns the record's typed model.
	ModelValue() any
}

// FieldSpec maps output column names to dotted paths into the model,
// e.g. {"total_population": "population.total"} or
// {"life": "life_expectancy__flatten"}.
type FieldSpec map[string]string

type fieldPath struct {
	segments []string
	flatten  bool
}

func parsePath(path string) fieldPath {
	flatten := strings.Contains(path, FlattenMarker)
	path = strings.ReplaceAll(path, FlattenMarker, "")
	path = strings.Trim(path, Separator)
	if path == "" {
		return fieldPath{flatten: flatten}
	}
	return fieldPath{segments: strings.Split(path, Separator), flatten: flatten}
}

// Lookup resolves a dotted path against nested maps. It reports false when any
// segment is missing or an intermediate value is absent or not a map. A null
// final value is reported as absent too.
func Lookup(data map[string]any, path string) (any, bool) {
	return lookup(data, parsePath(path).segments)
}

func lookup(data map[string]any, segments []string) (any, bool) {
	if len(segments) == 0 {
		return data, true
	}
	var current any = data
	for _, segment := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok || current == nil {
			return nil, false
		}
	}
	return current, true
}

func baselineRow(src Source) Row {
	row := make(Row, len(src.Baseline()))
	for k, v := range src.Baseline() {
		row[k] = v
	}
	return row
}

// Project builds one row per record: the baseline columns plus one column per
// spec entry. A path that cannot be resolved on a record is left out of that
// record's row. Paths carrying FlattenMarker expand map values into
// "column.child" columns.
func Project[S Source](records []S, spec FieldSpec) ([]Row, error) {
	paths := make(map[string]fieldPath, len(spec))
	for column, path := range spec {
		paths[column] = parsePath(path)
	}

	rows := make([]Row, 0, len(records))
	for i, rec := range records {
		data, err := AsMap(rec.ModelValue())
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}

		row := baselineRow(rec)
		for column, path := range paths {
			value, ok := lookup(data, path.segments)
			if !ok {
				continue
			}
			nested, isMap := value.(map[string]any)
			if path.flatten && isMap {
				for k, v := range Flatten(nested) {
					row[column+Separator+k] = v
				}
				continue
			}
			row[column] = value
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ProjectFull builds one row per record from the baseline columns and every
// field of the flattened model. Null model fields are kept.
func ProjectFull[S Source](records []S) ([]Row, error) {
	rows := make([]Row, 0, len(records))
	for i, rec := range records {
		data, err := AsMap(rec.ModelValue())
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}

		row := baselineRow(rec)
		for k, v := range Flatten(data) {
			row[k] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
