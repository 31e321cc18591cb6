package partition

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	serrors "github.com/stratadb/strata/internal/errors"
	"github.com/stratadb/strata/pkg/types"
)

// Info contains metadata about a built partition, produced by the builder
// and consumed by the catalog commit.
type Info struct {
	PartitionID string
	TableID     string
	LocalPath   string
	ObjectPath  string
	RowCount    int64
	SizeBytes   int64
	Stats       map[string]ColumnStats
	CreatedAt   time.Time
}

// Builder creates immutable partition blob files from rows.
type Builder struct {
	workDir string
}

// NewBuilder creates a partition builder writing blob files under workDir.
func NewBuilder(workDir string) *Builder {
	return &Builder{workDir: workDir}
}

// Build validates rows against the schema, computes column statistics, and
// writes a partition blob file. The caller uploads the file and registers
// the partition through a version commit; until then the file (and any
// uploaded copy) is unreferenced and inert.
func (b *Builder) Build(ctx context.Context, tableID string, schema types.Schema, rows []types.Row) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("partition: cannot build partition with zero rows")
	}

	tracker := NewStatsTracker(schema, len(rows))
	validated := make([]types.Row, len(rows))
	for i, row := range rows {
		v, err := types.ValidateRow(schema, row)
		if err != nil {
			return nil, serrors.NewSchemaIncompatible(fmt.Sprintf("partition: row %d: %v", i, err))
		}
		validated[i] = v
		tracker.Update(v)
	}

	stats := tracker.Stats()
	blob, err := Encode(schema, validated, stats)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(b.workDir, 0755); err != nil {
		return nil, fmt.Errorf("partition: failed to create work directory: %w", err)
	}

	partitionID := uuid.New().String()
	localPath := filepath.Join(b.workDir, partitionID+".strata")
	if err := os.WriteFile(localPath, blob, 0644); err != nil {
		return nil, fmt.Errorf("partition: failed to write blob file: %w", err)
	}

	return &Info{
		PartitionID: partitionID,
		TableID:     tableID,
		LocalPath:   localPath,
		ObjectPath:  ObjectPath(tableID, partitionID),
		RowCount:    int64(len(rows)),
		SizeBytes:   int64(len(blob)),
		Stats:       stats,
		CreatedAt:   time.Now(),
	}, nil
}

// ObjectPath returns the object store key for a partition blob.
func ObjectPath(tableID, partitionID string) string {
	return fmt.Sprintf("tables/%s/%s.strata", tableID, partitionID)
}
