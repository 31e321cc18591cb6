package gc

import (
	"context"
	"fmt"
	"log"
)

// blobPrefix is where every partition blob lives in the object store.
const blobPrefix = "tables/"

// ReconcileReport lists blobs present in the object store with no
// catalog record behind them.
type ReconcileReport struct {
	Orphans []string
	Deleted int
}

// ReconcileStore finds blobs the catalog does not reference: leftovers
// from uploads whose commit lost its race or never happened. With apply
// set the orphans are deleted. Run it only while no writers are active,
// since a blob uploaded moments ago may simply not be committed yet.
func (c *Collector) ReconcileStore(ctx context.Context, apply bool) (*ReconcileReport, error) {
	known, err := c.catalog.ListObjectPaths(ctx)
	if err != nil {
		return nil, err
	}
	referenced := make(map[string]bool, len(known))
	for _, p := range known {
		referenced[p] = true
	}

	objects, err := c.store.ListObjects(ctx, blobPrefix)
	if err != nil {
		return nil, fmt.Errorf("gc: list store objects: %w", err)
	}

	report := &ReconcileReport{}
	for _, obj := range objects {
		if referenced[obj] {
			continue
		}
		report.Orphans = append(report.Orphans, obj)
		if !apply {
			continue
		}
		if err := c.store.Delete(ctx, obj); err != nil {
			log.Printf("[WARN] gc: delete orphan blob %s: %v", obj, err)
			continue
		}
		report.Deleted++
	}
	return report, nil
}
