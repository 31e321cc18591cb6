package types

import (
	"encoding/json"
	"fmt"
	"math"
)

// Coerce converts a decoded value into the canonical Go representation for
// the given column type: int64, float64, string, or bool. Nil passes through
// (nullability is checked separately). JSON decoding yields json.Number or
// float64 for numerics, so both are accepted.
func Coerce(t ColumnType, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}

	switch t {
	case TypeInt64, TypeTimestamp:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case float64:
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("types: value %v is not an integer", v)
			}
			return int64(n), nil
		case json.Number:
			i, err := n.Int64()
			if err != nil {
				return nil, fmt.Errorf("types: value %v is not an integer", v)
			}
			return i, nil
		}
	case TypeFloat64:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		case int:
			return float64(n), nil
		case json.Number:
			f, err := n.Float64()
			if err != nil {
				return nil, fmt.Errorf("types: value %v is not a float", v)
			}
			return f, nil
		}
	case TypeText:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	}

	return nil, fmt.Errorf("types: value %v (%T) does not conform to %s", v, v, t)
}

// Compare compares two canonical values of the same column type.
// Returns -1, 0, or 1. Bools order false before true.
func Compare(a, b interface{}) int {
	switch va := a.(type) {
	case int64:
		vb := b.(int64)
		switch {
		case va < vb:
			return -1
		case va > vb:
			return 1
		}
		return 0
	case float64:
		vb := b.(float64)
		switch {
		case va < vb:
			return -1
		case va > vb:
			return 1
		}
		return 0
	case string:
		vb := b.(string)
		switch {
		case va < vb:
			return -1
		case va > vb:
			return 1
		}
		return 0
	case bool:
		vb := b.(bool)
		switch {
		case !va && vb:
			return -1
		case va && !vb:
			return 1
		}
		return 0
	}
	return 0
}
