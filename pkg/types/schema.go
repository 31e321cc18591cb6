// Package types provides core data types for Strata tables: schemas,
// rows, logical values, and predicates.
package types

import "fmt"

// ColumnType is the logical type of a column.
type ColumnType string

const (
	// TypeInt64 is a 64-bit signed integer
	TypeInt64 ColumnType = "INT64"

	// TypeFloat64 is a 64-bit floating point number
	TypeFloat64 ColumnType = "FLOAT64"

	// TypeText is a UTF-8 string
	TypeText ColumnType = "TEXT"

	// TypeBool is a boolean
	TypeBool ColumnType = "BOOL"

	// TypeTimestamp is a Unix timestamp in nanoseconds, stored as INT64
	TypeTimestamp ColumnType = "TIMESTAMP"
)

// ColumnDef defines a single column in a table schema.
type ColumnDef struct {
	// Name is the column name
	Name string `json:"name"`

	// Type is the logical column type
	Type ColumnType `json:"type"`

	// Nullable indicates whether the column can contain NULL values
	Nullable bool `json:"nullable"`
}

// Schema is the ordered column list of a table version.
// A schema is immutable per version; schema changes produce a new version.
type Schema struct {
	Columns []ColumnDef `json:"columns"`
}

// Column returns the definition and ordinal of the named column.
func (s Schema) Column(name string) (ColumnDef, int, bool) {
	for i, col := range s.Columns {
		if col.Name == name {
			return col, i, true
		}
	}
	return ColumnDef{}, -1, false
}

// Validate checks the schema for structural problems.
func (s Schema) Validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema: at least one column is required")
	}
	seen := make(map[string]bool, len(s.Columns))
	for _, col := range s.Columns {
		if col.Name == "" {
			return fmt.Errorf("schema: column name cannot be empty")
		}
		if seen[col.Name] {
			return fmt.Errorf("schema: duplicate column name %q", col.Name)
		}
		seen[col.Name] = true
		switch col.Type {
		case TypeInt64, TypeFloat64, TypeText, TypeBool, TypeTimestamp:
		default:
			return fmt.Errorf("schema: column %q has unknown type %q", col.Name, col.Type)
		}
	}
	return nil
}

// WithColumn returns a copy of the schema with the column appended.
func (s Schema) WithColumn(col ColumnDef) Schema {
	cols := make([]ColumnDef, len(s.Columns), len(s.Columns)+1)
	copy(cols, s.Columns)
	return Schema{Columns: append(cols, col)}
}
