package types

import "fmt"

// Row holds one value per schema column, in schema order.
// Values use the canonical representations produced by Coerce.
type Row []interface{}

// ValidateRow checks that the row conforms to the schema and returns the
// row with all values coerced to their canonical representation.
func ValidateRow(schema Schema, row Row) (Row, error) {
	if len(row) != len(schema.Columns) {
		return nil, fmt.Errorf("row has %d values, schema has %d columns", len(row), len(schema.Columns))
	}

	out := make(Row, len(row))
	for i, col := range schema.Columns {
		if row[i] == nil {
			if !col.Nullable {
				return nil, fmt.Errorf("column %q is not nullable", col.Name)
			}
			continue
		}
		v, err := Coerce(col.Type, row[i])
		if err != nil {
			return nil, fmt.Errorf("column %q: %v", col.Name, err)
		}
		out[i] = v
	}
	return out, nil
}
