// Package strata is a versioned, partitioned table storage engine over
// object storage. Table data lives in immutable partition blobs; table
// metadata lives in a transactional SQLite catalog whose versions give
// snapshot reads, time travel, and optimistic-concurrency writes.
package strata

import (
	"context"
	"fmt"
	"time"

	"github.com/stratadb/strata/internal/cache"
	"github.com/stratadb/strata/internal/catalog"
	"github.com/stratadb/strata/internal/config"
	"github.com/stratadb/strata/internal/gc"
	"github.com/stratadb/strata/internal/mutation"
	"github.com/stratadb/strata/internal/partition"
	"github.com/stratadb/strata/internal/storage"
	"github.com/stratadb/strata/internal/version"
	"github.com/stratadb/strata/pkg/types"
)

// DB is an open storage engine instance.
type DB struct {
	cfg       *config.Config
	catalog   catalog.Catalog
	store     storage.ObjectStorage
	manager   *version.Manager
	resolver  *version.Resolver
	engine    *mutation.Engine
	collector *gc.Collector
	reader    *partition.Reader
}

// Open wires an engine from the configuration: catalog database,
// object store backend, mutation engine, and collector.
func Open(ctx context.Context, cfg *config.Config) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	cat, err := catalog.NewSQLiteCatalog(cfg.CatalogPath())
	if err != nil {
		return nil, err
	}

	var store storage.ObjectStorage
	switch cfg.Storage.Backend {
	case config.BackendLocal:
		store, err = storage.NewLocalStorage(cfg.LocalStoragePath())
	case config.BackendS3:
		store, err = storage.NewS3Storage(ctx, cfg.Storage.S3.Bucket, storage.S3Config{
			Region:          cfg.Storage.S3.Region,
			Endpoint:        cfg.Storage.S3.Endpoint,
			UsePathStyle:    cfg.Storage.S3.ForcePathStyle,
			MultipartConfig: storage.DefaultMultipartConfig(),
		})
	default:
		err = fmt.Errorf("strata: unknown storage backend %q", cfg.Storage.Backend)
	}
	if err != nil {
		cat.Close()
		return nil, err
	}

	mgr := version.NewManager(cat, cfg.Write.CommitRetries)
	eng := mutation.NewEngine(cat, mgr, store, cfg.WorkDir(), mutation.Options{
		TargetPartitionRows: cfg.Write.TargetPartitionRows,
		MultipartThreshold:  cfg.MultipartThresholdBytes(),
	})

	collector := gc.NewCollector(cat, store)
	reader := partition.NewReader(store, cfg.WorkDir())
	if cfg.Read.CacheMaxMB > 0 {
		blobs, err := cache.NewBlobCache(cfg.CacheDir(), cfg.Read.CacheMaxMB<<20)
		if err != nil {
			cat.Close()
			return nil, err
		}
		reader = partition.NewCachedReader(store, cfg.WorkDir(), blobs)
		collector = collector.WithBlobCache(blobs)
	}

	return &DB{
		cfg:       cfg,
		catalog:   cat,
		store:     store,
		manager:   mgr,
		resolver:  version.NewResolver(cat),
		engine:    eng,
		collector: collector,
		reader:    reader,
	}, nil
}

// Close releases the catalog connections.
func (db *DB) Close() error { return db.catalog.Close() }

// Catalog exposes the metadata store for introspection tooling.
func (db *DB) Catalog() catalog.Catalog { return db.catalog }

// Collector exposes the garbage collector for admin tooling.
func (db *DB) Collector() *gc.Collector { return db.collector }

// CreateTable registers a new empty table.
func (db *DB) CreateTable(ctx context.Context, name string, schema types.Schema) (*catalog.TableRecord, error) {
	return db.catalog.CreateTable(ctx, name, schema)
}

// DropTable marks a table dropped; the next vacuum reclaims its data.
func (db *DB) DropTable(ctx context.Context, name string) error {
	return db.catalog.DropTable(ctx, name)
}

// Append adds rows to the table, producing a new version.
func (db *DB) Append(ctx context.Context, table string, rows []types.Row) (*catalog.TableVersion, error) {
	return db.engine.Append(ctx, table, rows)
}

// Delete removes rows matching the predicate, producing a new version.
func (db *DB) Delete(ctx context.Context, table string, pred types.Predicate) (*catalog.TableVersion, *mutation.Stats, error) {
	return db.engine.Delete(ctx, table, pred)
}

// Update rewrites rows matching the predicate with the assignments
// applied, producing a new version.
func (db *DB) Update(ctx context.Context, table string, pred types.Predicate, assignments map[string]interface{}) (*catalog.TableVersion, *mutation.Stats, error) {
	return db.engine.Update(ctx, table, pred, assignments)
}

// AddColumn appends a nullable column to the table schema.
func (db *DB) AddColumn(ctx context.Context, table string, col types.ColumnDef) (*catalog.TableVersion, error) {
	return db.engine.AddColumn(ctx, table, col)
}

// ScanOptions selects what a Scan reads: a historical version via the
// travel spec, and an optional predicate for partition pruning and row
// filtering.
type ScanOptions struct {
	AsOf      *time.Time
	Version   *int64
	Predicate *types.Predicate
}

// ScanResult carries the rows together with the version they came from
// and how much partition I/O the predicate saved.
type ScanResult struct {
	Version          *catalog.TableVersion
	Rows             []types.Row
	PartitionsTotal  int
	PartitionsElided int
}

// Scan reads a table at a version. Partitions whose statistics rule out
// every predicate match are skipped without a read.
func (db *DB) Scan(ctx context.Context, table string, opts ScanOptions) (*ScanResult, error) {
	rec, err := db.catalog.GetTable(ctx, table)
	if err != nil {
		return nil, err
	}
	v, parts, err := db.resolver.ResolveScan(ctx, rec.TableID, version.TravelSpec{
		At:      opts.AsOf,
		Version: opts.Version,
	})
	if err != nil {
		return nil, err
	}

	res := &ScanResult{Version: v, PartitionsTotal: len(parts)}
	var pred *types.Predicate
	if opts.Predicate != nil {
		norm, err := opts.Predicate.Normalize(v.Schema)
		if err != nil {
			return nil, err
		}
		pred = &norm
	}

	for _, p := range parts {
		if pred != nil {
			hit, err := partition.Overlaps(v.Schema, p.Stats, *pred)
			if err != nil {
				return nil, err
			}
			if !hit {
				res.PartitionsElided++
				continue
			}
		}
		rows, err := db.reader.ReadRows(ctx, p.ObjectPath, v.Schema)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if pred != nil {
				match, err := pred.Matches(v.Schema, row)
				if err != nil {
					return nil, err
				}
				if !match {
					continue
				}
			}
			res.Rows = append(res.Rows, row)
		}
	}
	return res, nil
}

// ReadPartitionFooter fetches a partition blob's footer with byte-range
// reads only, for integrity tooling.
func (db *DB) ReadPartitionFooter(ctx context.Context, objectPath string, sizeBytes int64) (*partition.Footer, error) {
	return db.reader.ReadFooter(ctx, objectPath, sizeBytes)
}

// Vacuum reclaims out-of-retention versions and partitions of a table.
func (db *DB) Vacuum(ctx context.Context, table string, policy gc.RetentionPolicy) (*gc.VacuumResult, error) {
	rec, err := db.catalog.GetTable(ctx, table)
	if err != nil {
		return nil, err
	}
	return db.collector.Vacuum(ctx, rec.TableID, policy)
}

// VacuumAll reclaims across every table, dropped ones included.
func (db *DB) VacuumAll(ctx context.Context, policy gc.RetentionPolicy) ([]*gc.VacuumResult, error) {
	return db.collector.VacuumAll(ctx, policy)
}
