// Package tabular projects merged regional data records into rows and tables.
//
// Two projections are offered. Project builds narrow rows from a FieldSpec
// that names dotted paths into each record's model; ProjectFull flattens the
// whole model. Both always carry the record's baseline metadata columns.
// Rows are independent: their column sets may differ, and Table aligns them.
package tabular

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Separator joins nested keys into a single column name.
const Separator = "."

// ErrNotMapping is returned when model data is not a key/value structure.
var ErrNotMapping = errors.New("tabular: model data is not a mapping")

// Row is one record projected to column name → value.
type Row map[string]any

// Flatten expands nested maps into a single level, joining keys with
// Separator. Non-map values, lists included, are kept as they are.
func Flatten(data map[string]any) Row {
	return flattenInto(Row{}, data, "")
}

func flattenInto(out Row, data map[string]any, prefix string) Row {
	for key, value := range data {
		name := key
		if prefix != "" {
			name = prefix + Separator + key
		}
		if nested, ok := value.(map[string]any); ok {
			flattenInto(out, nested, name)
			continue
		}
		out[name] = value
	}
	return out
}

// AsMap converts a model value to its key/value form using its JSON
// encoding. Numbers are kept as json.Number so they print exactly as served.
func AsMap(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	if v == nil {
		return nil, ErrNotMapping
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal model: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}

	m, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotMapping, decoded)
	}
	return m, nil
}
