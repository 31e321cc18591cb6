package partition

import (
	"fmt"

	"github.com/stratadb/strata/internal/bloom"
	"github.com/stratadb/strata/pkg/types"
)

// Overlaps reports whether a partition with the given statistics may
// contain rows matching the predicate. A false result is a proof of
// non-overlap: the partition can be elided from a mutation without its
// bytes ever being read. Missing statistics are treated as overlapping.
//
// The predicate must already be normalized against the schema.
func Overlaps(schema types.Schema, stats map[string]ColumnStats, pred types.Predicate) (bool, error) {
	col, _, ok := schema.Column(pred.Column)
	if !ok {
		return false, fmt.Errorf("partition: predicate references unknown column %q", pred.Column)
	}

	cs, ok := stats[pred.Column]
	if !ok {
		return true, nil
	}
	if cs.Min == nil || cs.Max == nil {
		// Column is all-NULL in this partition; no comparison matches NULL.
		if cs.NullCount > 0 {
			return false, nil
		}
		return true, nil
	}

	min, err := types.Coerce(col.Type, cs.Min)
	if err != nil {
		return true, nil
	}
	max, err := types.Coerce(col.Type, cs.Max)
	if err != nil {
		return true, nil
	}

	switch pred.Op {
	case types.OpEq:
		if types.Compare(pred.Value, min) < 0 || types.Compare(pred.Value, max) > 0 {
			return false, nil
		}
		return mayContain(cs, pred.Value), nil

	case types.OpLt:
		return types.Compare(min, pred.Value) < 0, nil

	case types.OpLe:
		return types.Compare(min, pred.Value) <= 0, nil

	case types.OpGt:
		return types.Compare(max, pred.Value) > 0, nil

	case types.OpGe:
		return types.Compare(max, pred.Value) >= 0, nil

	case types.OpBetween:
		lo, hi := pred.Values[0], pred.Values[1]
		return types.Compare(min, hi) <= 0 && types.Compare(max, lo) >= 0, nil

	case types.OpIn:
		for _, v := range pred.Values {
			if types.Compare(v, min) >= 0 && types.Compare(v, max) <= 0 && mayContain(cs, v) {
				return true, nil
			}
		}
		return false, nil
	}

	return true, nil
}

// mayContain consults the column bloom filter when one is present.
// Bloom filters never produce false negatives, so a negative answer is a
// valid elision proof.
func mayContain(cs ColumnStats, value interface{}) bool {
	if cs.Bloom == nil {
		return true
	}
	s, ok := value.(string)
	if !ok {
		return true
	}
	f, err := bloom.DecodeBase64(cs.Bloom.Base64Data)
	if err != nil {
		return true
	}
	return f.MayContain([]byte(s))
}
