package partition

import (
	"github.com/stratadb/strata/internal/bloom"
	"github.com/stratadb/strata/pkg/types"
)

// ColumnStats holds the summary statistics for one column of a partition.
// Min and Max are canonical values (int64, float64, string, bool) and are
// nil when every value in the column is NULL.
type ColumnStats struct {
	Min       interface{} `json:"min,omitempty"`
	Max       interface{} `json:"max,omitempty"`
	NullCount int64       `json:"null_count,omitempty"`

	// Bloom is present for TEXT columns and enables equality elision
	// beyond the min/max range check.
	Bloom *BloomStats `json:"bloom,omitempty"`
}

// BloomStats is the serialized form of a column bloom filter.
type BloomStats struct {
	Algorithm  string `json:"algorithm"`
	NumBits    int    `json:"num_bits"`
	NumHashes  int    `json:"num_hashes"`
	Base64Data string `json:"base64_data"`
}

// bloomTargetFPR is the target false positive rate for column filters.
const bloomTargetFPR = 0.01

// StatsTracker accumulates per-column min/max statistics and text-column
// bloom filters while a partition is being built.
type StatsTracker struct {
	schema   types.Schema
	rowCount int64
	mins     []interface{}
	maxs     []interface{}
	nulls    []int64
	blooms   []*bloom.Filter
}

// NewStatsTracker creates a tracker for the given schema. expectedRows
// sizes the bloom filters.
func NewStatsTracker(schema types.Schema, expectedRows int) *StatsTracker {
	n := len(schema.Columns)
	t := &StatsTracker{
		schema: schema,
		mins:   make([]interface{}, n),
		maxs:   make([]interface{}, n),
		nulls:  make([]int64, n),
		blooms: make([]*bloom.Filter, n),
	}
	for i, col := range schema.Columns {
		if col.Type == types.TypeText {
			t.blooms[i] = bloom.NewWithEstimates(expectedRows, bloomTargetFPR)
		}
	}
	return t
}

// Update folds one row into the statistics. The row must already be
// validated against the tracker's schema.
func (t *StatsTracker) Update(row types.Row) {
	t.rowCount++
	for i := range t.schema.Columns {
		v := row[i]
		if v == nil {
			t.nulls[i]++
			continue
		}
		if t.mins[i] == nil || types.Compare(v, t.mins[i]) < 0 {
			t.mins[i] = v
		}
		if t.maxs[i] == nil || types.Compare(v, t.maxs[i]) > 0 {
			t.maxs[i] = v
		}
		if t.blooms[i] != nil {
			t.blooms[i].Add([]byte(v.(string)))
		}
	}
}

// RowCount returns the number of rows tracked.
func (t *StatsTracker) RowCount() int64 {
	return t.rowCount
}

// Stats returns the accumulated statistics keyed by column name.
func (t *StatsTracker) Stats() map[string]ColumnStats {
	stats := make(map[string]ColumnStats, len(t.schema.Columns))
	for i, col := range t.schema.Columns {
		cs := ColumnStats{
			Min:       t.mins[i],
			Max:       t.maxs[i],
			NullCount: t.nulls[i],
		}
		if t.blooms[i] != nil && t.mins[i] != nil {
			cs.Bloom = &BloomStats{
				Algorithm:  "murmur3_128",
				NumBits:    t.blooms[i].NumBits(),
				NumHashes:  t.blooms[i].NumHashes(),
				Base64Data: t.blooms[i].EncodeBase64(),
			}
		}
		stats[col.Name] = cs
	}
	return stats
}
