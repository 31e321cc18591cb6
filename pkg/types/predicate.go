package types

import "fmt"

// CompareOp is a predicate comparison operator.
type CompareOp string

const (
	OpEq      CompareOp = "="
	OpLt      CompareOp = "<"
	OpLe      CompareOp = "<="
	OpGt      CompareOp = ">"
	OpGe      CompareOp = ">="
	OpBetween CompareOp = "BETWEEN"
	OpIn      CompareOp = "IN"
)

// Predicate is a single-column comparison used by mutations for row
// filtering and by partition pruning. NULL column values never match.
type Predicate struct {
	Column string
	Op     CompareOp

	// Value is the comparison operand for =, <, <=, >, >=.
	Value interface{}

	// Values holds the operands for BETWEEN (two, inclusive) and IN.
	Values []interface{}
}

// Normalize coerces the predicate's operands to the canonical representation
// of the referenced column's type.
func (p Predicate) Normalize(schema Schema) (Predicate, error) {
	col, _, ok := schema.Column(p.Column)
	if !ok {
		return Predicate{}, fmt.Errorf("predicate references unknown column %q", p.Column)
	}

	out := p
	if p.Value != nil {
		v, err := Coerce(col.Type, p.Value)
		if err != nil {
			return Predicate{}, err
		}
		out.Value = v
	}
	if len(p.Values) > 0 {
		out.Values = make([]interface{}, len(p.Values))
		for i, raw := range p.Values {
			v, err := Coerce(col.Type, raw)
			if err != nil {
				return Predicate{}, err
			}
			out.Values[i] = v
		}
	}

	switch p.Op {
	case OpEq, OpLt, OpLe, OpGt, OpGe:
		if out.Value == nil {
			return Predicate{}, fmt.Errorf("predicate %s on %q requires a value", p.Op, p.Column)
		}
	case OpBetween:
		if len(out.Values) != 2 {
			return Predicate{}, fmt.Errorf("BETWEEN on %q requires exactly two values", p.Column)
		}
	case OpIn:
		if len(out.Values) == 0 {
			return Predicate{}, fmt.Errorf("IN on %q requires at least one value", p.Column)
		}
	default:
		return Predicate{}, fmt.Errorf("unknown predicate operator %q", p.Op)
	}

	return out, nil
}

// Matches evaluates the normalized predicate against a row.
func (p Predicate) Matches(schema Schema, row Row) (bool, error) {
	_, idx, ok := schema.Column(p.Column)
	if !ok {
		return false, fmt.Errorf("predicate references unknown column %q", p.Column)
	}
	v := row[idx]
	if v == nil {
		return false, nil
	}

	switch p.Op {
	case OpEq:
		return Compare(v, p.Value) == 0, nil
	case OpLt:
		return Compare(v, p.Value) < 0, nil
	case OpLe:
		return Compare(v, p.Value) <= 0, nil
	case OpGt:
		return Compare(v, p.Value) > 0, nil
	case OpGe:
		return Compare(v, p.Value) >= 0, nil
	case OpBetween:
		return Compare(v, p.Values[0]) >= 0 && Compare(v, p.Values[1]) <= 0, nil
	case OpIn:
		for _, candidate := range p.Values {
			if Compare(v, candidate) == 0 {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("unknown predicate operator %q", p.Op)
}
