// Package gc reclaims partitions and versions that fall out of
// retention. A pass runs in three phases: scan the versions to keep,
// mark the partitions they reference, sweep everything else.
package gc

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/stratadb/strata/internal/cache"
	"github.com/stratadb/strata/internal/catalog"
	"github.com/stratadb/strata/internal/storage"
)

// RetentionPolicy decides which historical versions survive a vacuum.
// The current version of a live table is always retained. KeepVersions
// additionally retains the N newest versions; Window retains every
// version created inside the trailing window. Zero values mean
// current-only retention.
type RetentionPolicy struct {
	KeepVersions int
	Window       time.Duration
}

// VacuumResult summarizes one pass over one table.
type VacuumResult struct {
	TableID           string
	VersionsRemoved   int
	PartitionsRemoved int
	BytesReclaimed    int64
	Errors            []error
}

// Collector deletes unreferenced partitions and out-of-retention
// version records. Blob deletion always precedes record deletion, so a
// crash mid-sweep leaves at worst an orphaned blob, never a catalog
// record pointing at nothing.
type Collector struct {
	catalog catalog.Catalog
	store   storage.ObjectStorage
	blobs   *cache.BlobCache
}

func NewCollector(cat catalog.Catalog, store storage.ObjectStorage) *Collector {
	return &Collector{catalog: cat, store: store}
}

// WithBlobCache makes the collector drop cached copies of blobs it
// deletes from the object store.
func (c *Collector) WithBlobCache(blobs *cache.BlobCache) *Collector {
	c.blobs = blobs
	return c
}

// Vacuum runs one SCAN, MARK, SWEEP pass over a table. Blob-delete
// failures are logged and collected; the partition record stays so a
// later pass retries the delete. For a dropped table every version is
// eligible, and the table record itself goes once empty.
func (c *Collector) Vacuum(ctx context.Context, tableID string, policy RetentionPolicy) (*VacuumResult, error) {
	rec, err := c.catalog.GetTableByID(ctx, tableID)
	if err != nil {
		return nil, err
	}
	versions, err := c.catalog.ListVersions(ctx, tableID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	retained := retainedVersions(rec, versions, policy, now)

	// MARK: the sweepable partition set. For a live table the catalog
	// applies the retention checks at query time, so a version committed
	// while this pass runs keeps its partitions. A dropped table accepts
	// no commits, so every partition is eligible.
	var sweep []*catalog.PartitionRecord
	if rec.Dropped() {
		sweep, err = c.catalog.ListTablePartitions(ctx, tableID)
	} else {
		sweep, err = c.catalog.OrphanCandidates(ctx, tableID, now.Add(-policy.Window), policy.KeepVersions)
	}
	if err != nil {
		return nil, err
	}

	res := &VacuumResult{TableID: tableID}

	// SWEEP partitions: blob first, then record.
	for _, p := range sweep {
		if err := c.store.Delete(ctx, p.ObjectPath); err != nil {
			log.Printf("[WARN] gc: delete blob %s: %v", p.ObjectPath, err)
			res.Errors = append(res.Errors, fmt.Errorf("gc: delete blob %s: %w", p.ObjectPath, err))
			continue
		}
		if c.blobs != nil {
			c.blobs.Remove(p.ObjectPath)
		}
		if err := c.catalog.DeletePartitionRecord(ctx, p.PartitionID); err != nil {
			res.Errors = append(res.Errors, err)
			continue
		}
		res.PartitionsRemoved++
		res.BytesReclaimed += p.SizeBytes
	}

	// SWEEP version records.
	retainedIDs := make(map[string]bool, len(retained))
	for _, v := range retained {
		retainedIDs[v.VersionID] = true
	}
	for _, v := range versions {
		if retainedIDs[v.VersionID] {
			continue
		}
		if err := c.catalog.DeleteVersionRecord(ctx, v.VersionID); err != nil {
			res.Errors = append(res.Errors, err)
			continue
		}
		res.VersionsRemoved++
	}

	if rec.Dropped() && len(retained) == 0 && len(res.Errors) == 0 {
		if err := c.catalog.DeleteTableRecord(ctx, tableID); err != nil {
			res.Errors = append(res.Errors, err)
		}
	}
	return res, nil
}

// VacuumAll runs a pass over every table, dropped tables included. Per
// table failures are collected, never fatal to the sweep.
func (c *Collector) VacuumAll(ctx context.Context, policy RetentionPolicy) ([]*VacuumResult, error) {
	tables, err := c.catalog.ListTables(ctx, true)
	if err != nil {
		return nil, err
	}
	var out []*VacuumResult
	for _, t := range tables {
		res, err := c.Vacuum(ctx, t.TableID, policy)
		if err != nil {
			out = append(out, &VacuumResult{TableID: t.TableID, Errors: []error{err}})
			continue
		}
		out = append(out, res)
	}
	return out, nil
}

// retainedVersions applies the policy. Versions arrive oldest first.
func retainedVersions(rec *catalog.TableRecord, versions []*catalog.TableVersion, policy RetentionPolicy, now time.Time) []*catalog.TableVersion {
	if rec.Dropped() || len(versions) == 0 {
		return nil
	}
	keep := policy.KeepVersions
	if keep < 1 {
		keep = 1
	}
	cutoff := now.Add(-policy.Window)

	var out []*catalog.TableVersion
	for i, v := range versions {
		newest := len(versions) - i
		switch {
		case newest <= keep:
			out = append(out, v)
		case policy.Window > 0 && !v.CreatedAt.Before(cutoff):
			out = append(out, v)
		}
	}
	return out
}
