// Package mutation implements copy-on-write table mutations: appends,
// predicate deletes and updates, and additive schema changes. Every
// mutation produces a new table version; partition blobs are never
// modified in place.
package mutation

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/stratadb/strata/internal/catalog"
	serrors "github.com/stratadb/strata/internal/errors"
	"github.com/stratadb/strata/internal/partition"
	"github.com/stratadb/strata/internal/storage"
	"github.com/stratadb/strata/internal/version"
	"github.com/stratadb/strata/pkg/types"
)

const (
	// DefaultTargetPartitionRows caps how many rows land in one blob.
	DefaultTargetPartitionRows = 100_000
	// DefaultMultipartThreshold is the blob size above which uploads
	// switch to multipart.
	DefaultMultipartThreshold = int64(64 << 20)
)

// Options tunes the engine's partitioning and upload behavior.
type Options struct {
	TargetPartitionRows int
	MultipartThreshold  int64
}

// Stats reports what a delete or update touched. Elided partitions were
// ruled out by their statistics alone, without a single byte read.
type Stats struct {
	PartitionsTotal     int
	PartitionsElided    int
	PartitionsRewritten int
	PartitionsDropped   int
	RowsAffected        int64
}

// Engine applies mutations to tables. All writes funnel through the
// version manager's commit loop, so concurrent mutations serialize into
// a linear version history.
type Engine struct {
	catalog   catalog.Catalog
	versions  *version.Manager
	store     storage.ObjectStorage
	builder   *partition.Builder
	reader    *partition.Reader
	targetRows         int
	multipartThreshold int64
}

// NewEngine wires an engine. workDir holds blob files between build and
// upload.
func NewEngine(cat catalog.Catalog, mgr *version.Manager, store storage.ObjectStorage, workDir string, opts Options) *Engine {
	if opts.TargetPartitionRows <= 0 {
		opts.TargetPartitionRows = DefaultTargetPartitionRows
	}
	if opts.MultipartThreshold <= 0 {
		opts.MultipartThreshold = DefaultMultipartThreshold
	}
	return &Engine{
		catalog:            cat,
		versions:           mgr,
		store:              store,
		builder:            partition.NewBuilder(workDir),
		reader:             partition.NewReader(store, workDir),
		targetRows:         opts.TargetPartitionRows,
		multipartThreshold: opts.MultipartThreshold,
	}
}

// Append adds rows to a table as one or more new partitions. The
// existing partition set is carried into the new version untouched.
// Appending zero rows is a no-op and returns the current version.
func (e *Engine) Append(ctx context.Context, tableName string, rows []types.Row) (*catalog.TableVersion, error) {
	rec, err := e.catalog.GetTable(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return e.catalog.GetCurrentVersion(ctx, rec.TableID)
	}

	// Build and upload before entering the commit loop. Blobs are
	// inert until a commit references them, so a lost race just
	// re-associates the same uploads with a later base version, and a
	// failed commit leaves garbage for reconciliation to sweep.
	base, err := e.catalog.GetCurrentVersion(ctx, rec.TableID)
	if err != nil {
		return nil, err
	}
	var built []*partition.Info
	for start := 0; start < len(rows); start += e.targetRows {
		end := start + e.targetRows
		if end > len(rows) {
			end = len(rows)
		}
		info, err := e.builder.Build(ctx, rec.TableID, base.Schema, rows[start:end])
		if err != nil {
			removeLocal(built)
			return nil, err
		}
		built = append(built, info)
	}
	if err := e.uploadAll(ctx, built); err != nil {
		removeLocal(built)
		return nil, err
	}
	removeLocal(built)

	return e.versions.Commit(ctx, rec.TableID, func(ctx context.Context, cur *catalog.TableVersion) (*version.Proposal, error) {
		existing, err := e.catalog.ListPartitions(ctx, cur.VersionID)
		if err != nil {
			return nil, err
		}
		keep := make([]string, len(existing))
		for i, p := range existing {
			keep[i] = p.PartitionID
		}
		return &version.Proposal{Schema: cur.Schema, Keep: keep, New: built}, nil
	})
}

// Delete removes every row matching the predicate. Partitions whose
// statistics prove no row can match are carried over by reference.
// Touched partitions are rewritten without the matching rows, or
// dropped from the version entirely when nothing remains.
func (e *Engine) Delete(ctx context.Context, tableName string, pred types.Predicate) (*catalog.TableVersion, *Stats, error) {
	return e.rewrite(ctx, tableName, pred, nil)
}

// Update sets the given columns on every row matching the predicate.
// Assignment values are coerced to the column type; assigning NULL to a
// non-nullable column fails before anything is written.
func (e *Engine) Update(ctx context.Context, tableName string, pred types.Predicate, assignments map[string]interface{}) (*catalog.TableVersion, *Stats, error) {
	if len(assignments) == 0 {
		return nil, nil, serrors.NewSchemaIncompatible("update requires at least one assignment")
	}
	return e.rewrite(ctx, tableName, pred, assignments)
}

// rewrite is the shared copy-on-write core of Delete and Update. A nil
// assignments map deletes matching rows; otherwise matching rows are
// rewritten with the assignments applied.
func (e *Engine) rewrite(ctx context.Context, tableName string, pred types.Predicate, assignments map[string]interface{}) (*catalog.TableVersion, *Stats, error) {
	rec, err := e.catalog.GetTable(ctx, tableName)
	if err != nil {
		return nil, nil, err
	}

	var stats Stats
	v, err := e.versions.Commit(ctx, rec.TableID, func(ctx context.Context, base *catalog.TableVersion) (*version.Proposal, error) {
		norm, err := pred.Normalize(base.Schema)
		if err != nil {
			return nil, err
		}
		if assignments != nil {
			if err := validateAssignments(base.Schema, assignments); err != nil {
				return nil, err
			}
		}
		parts, err := e.catalog.ListPartitions(ctx, base.VersionID)
		if err != nil {
			return nil, err
		}

		stats = Stats{PartitionsTotal: len(parts)}
		var keep []string
		var fresh []*partition.Info
		for _, p := range parts {
			hit, err := partition.Overlaps(base.Schema, p.Stats, norm)
			if err != nil {
				return nil, err
			}
			if !hit {
				stats.PartitionsElided++
				keep = append(keep, p.PartitionID)
				continue
			}

			rows, err := e.reader.ReadRows(ctx, p.ObjectPath, base.Schema)
			if err != nil {
				return nil, err
			}
			out := make([]types.Row, 0, len(rows))
			var touched int64
			for _, row := range rows {
				match, err := norm.Matches(base.Schema, row)
				if err != nil {
					return nil, err
				}
				if !match {
					out = append(out, row)
					continue
				}
				touched++
				if assignments != nil {
					updated, err := applyAssignments(base.Schema, row, assignments)
					if err != nil {
						return nil, err
					}
					out = append(out, updated)
				}
			}

			// Statistics overlap does not imply actual rows matched.
			if touched == 0 {
				keep = append(keep, p.PartitionID)
				continue
			}
			stats.RowsAffected += touched
			if len(out) == 0 {
				stats.PartitionsDropped++
				continue
			}
			repl, err := e.builder.Build(ctx, rec.TableID, base.Schema, out)
			if err != nil {
				removeLocal(fresh)
				return nil, err
			}
			fresh = append(fresh, repl)
			stats.PartitionsRewritten++
		}

		if err := e.uploadAll(ctx, fresh); err != nil {
			removeLocal(fresh)
			return nil, err
		}
		removeLocal(fresh)
		return &version.Proposal{Schema: base.Schema, Keep: keep, New: fresh}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return v, &stats, nil
}

// AddColumn appends a column to the table schema. Only nullable columns
// can be added: existing partitions never store the new column, and
// readers surface it as NULL. The partition set is unchanged.
func (e *Engine) AddColumn(ctx context.Context, tableName string, col types.ColumnDef) (*catalog.TableVersion, error) {
	rec, err := e.catalog.GetTable(ctx, tableName)
	if err != nil {
		return nil, err
	}
	return e.versions.Commit(ctx, rec.TableID, func(ctx context.Context, base *catalog.TableVersion) (*version.Proposal, error) {
		if !col.Nullable {
			return nil, serrors.NewSchemaIncompatible(
				fmt.Sprintf("cannot add non-nullable column %q to existing table data", col.Name))
		}
		if _, _, ok := base.Schema.Column(col.Name); ok {
			return nil, serrors.NewSchemaIncompatible(
				fmt.Sprintf("column %q already exists", col.Name))
		}
		next := base.Schema.WithColumn(col)
		if err := next.Validate(); err != nil {
			return nil, err
		}
		parts, err := e.catalog.ListPartitions(ctx, base.VersionID)
		if err != nil {
			return nil, err
		}
		keep := make([]string, len(parts))
		for i, p := range parts {
			keep[i] = p.PartitionID
		}
		return &version.Proposal{Schema: next, Keep: keep}, nil
	})
}

func (e *Engine) uploadAll(ctx context.Context, infos []*partition.Info) error {
	for _, info := range infos {
		var err error
		if info.SizeBytes >= e.multipartThreshold {
			_, err = e.store.UploadMultipart(ctx, info.LocalPath, info.ObjectPath)
		} else {
			err = e.store.Upload(ctx, info.LocalPath, info.ObjectPath)
		}
		if err != nil {
			return serrors.NewStorageIO(
				fmt.Sprintf("upload partition %s", info.PartitionID), err)
		}
	}
	return nil
}

func validateAssignments(schema types.Schema, assignments map[string]interface{}) error {
	for name, val := range assignments {
		col, _, ok := schema.Column(name)
		if !ok {
			return serrors.NewSchemaIncompatible(fmt.Sprintf("unknown column %q", name))
		}
		if val == nil {
			if !col.Nullable {
				return serrors.NewSchemaIncompatible(
					fmt.Sprintf("column %q is not nullable", name))
			}
			continue
		}
		if _, err := types.Coerce(col.Type, val); err != nil {
			return err
		}
	}
	return nil
}

func applyAssignments(schema types.Schema, row types.Row, assignments map[string]interface{}) (types.Row, error) {
	out := make(types.Row, len(row))
	copy(out, row)
	for name, val := range assignments {
		col, idx, ok := schema.Column(name)
		if !ok {
			return nil, serrors.NewSchemaIncompatible(fmt.Sprintf("unknown column %q", name))
		}
		if val == nil {
			out[idx] = nil
			continue
		}
		coerced, err := types.Coerce(col.Type, val)
		if err != nil {
			return nil, err
		}
		out[idx] = coerced
	}
	return out, nil
}

func removeLocal(infos []*partition.Info) {
	for _, info := range infos {
		if info.LocalPath == "" {
			continue
		}
		if err := os.Remove(info.LocalPath); err != nil && !os.IsNotExist(err) {
			log.Printf("[WARN] mutation: remove staged blob %s: %v", info.LocalPath, err)
		}
	}
}
