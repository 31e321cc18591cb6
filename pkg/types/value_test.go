package types

import (
	"encoding/json"
	"testing"
)

func TestCoerce(t *testing.T) {
	cases := []struct {
		name    string
		typ     ColumnType
		in      interface{}
		want    interface{}
		wantErr bool
	}{
		{"int64 passthrough", TypeInt64, int64(42), int64(42), false},
		{"int widens", TypeInt64, 42, int64(42), false},
		{"integral float", TypeInt64, float64(42), int64(42), false},
		{"fractional float rejected", TypeInt64, float64(2.7), nil, true},
		{"negative fractional float rejected", TypeInt64, float64(-2.5), nil, true},
		{"json number integer", TypeInt64, json.Number("42"), int64(42), false},
		{"json number fraction rejected", TypeInt64, json.Number("2.7"), nil, true},
		{"large int64 via json number", TypeInt64, json.Number("9007199254740993"), int64(9007199254740993), false},
		{"string to int rejected", TypeInt64, "42", nil, true},
		{"timestamp is int64", TypeTimestamp, int64(1700000000000000000), int64(1700000000000000000), false},
		{"float passthrough", TypeFloat64, 2.5, 2.5, false},
		{"int to float", TypeFloat64, int64(2), 2.0, false},
		{"json number to float", TypeFloat64, json.Number("2.5"), 2.5, false},
		{"text passthrough", TypeText, "abc", "abc", false},
		{"int to text rejected", TypeText, int64(1), nil, true},
		{"bool passthrough", TypeBool, true, true, false},
		{"text to bool rejected", TypeBool, "true", nil, true},
		{"nil passes through", TypeInt64, nil, nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Coerce(tc.typ, tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Coerce(%s, %v) = %v, want error", tc.typ, tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Coerce(%s, %v): %v", tc.typ, tc.in, err)
			}
			if got != tc.want {
				t.Errorf("Coerce(%s, %v) = %v (%T), want %v (%T)", tc.typ, tc.in, got, got, tc.want, tc.want)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	cases := []struct {
		name string
		a, b interface{}
		want int
	}{
		{"int less", int64(1), int64(2), -1},
		{"int equal", int64(2), int64(2), 0},
		{"int greater", int64(3), int64(2), 1},
		{"float less", 1.5, 2.5, -1},
		{"text order", "apple", "banana", -1},
		{"text equal", "a", "a", 0},
		{"bool false before true", false, true, -1},
		{"bool equal", true, true, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Compare(tc.a, tc.b); got != tc.want {
				t.Errorf("Compare(%v, %v) = %d, want %d", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestValidateRow(t *testing.T) {
	schema := Schema{Columns: []ColumnDef{
		{Name: "id", Type: TypeInt64},
		{Name: "note", Type: TypeText, Nullable: true},
	}}

	out, err := ValidateRow(schema, Row{42, "hello"})
	if err != nil {
		t.Fatalf("ValidateRow: %v", err)
	}
	if out[0] != int64(42) || out[1] != "hello" {
		t.Errorf("canonical row = %v, want [42 hello]", out)
	}

	if _, err := ValidateRow(schema, Row{nil, "x"}); err == nil {
		t.Error("NULL in non-nullable column accepted")
	}
	out, err = ValidateRow(schema, Row{int64(1), nil})
	if err != nil || out[1] != nil {
		t.Errorf("NULL in nullable column = (%v, %v), want clean pass", out, err)
	}
	if _, err := ValidateRow(schema, Row{int64(1)}); err == nil {
		t.Error("short row accepted")
	}
	if _, err := ValidateRow(schema, Row{2.7, "x"}); err == nil {
		t.Error("fractional float in INT64 column accepted")
	}
}
