// Package main implements the strata-vacuum admin binary. It runs a
// garbage collection pass over one table or the whole catalog, and can
// reconcile the object store against catalog records.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/stratadb/strata"
	"github.com/stratadb/strata/internal/config"
	"github.com/stratadb/strata/internal/gc"
)

func main() {
	var (
		configPath   = flag.String("config", "", "path to YAML config (defaults to env/defaults)")
		table        = flag.String("table", "", "vacuum only this table (default: all tables)")
		keepVersions = flag.Int("keep-versions", 0, "retain the N newest versions (overrides config)")
		window       = flag.Duration("window", 0, "retain versions created within this window (overrides config)")
		reconcile    = flag.Bool("reconcile", false, "also sweep store blobs with no catalog record")
		dryRun       = flag.Bool("dry-run", false, "with -reconcile, report orphans without deleting")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	policy := gc.RetentionPolicy{
		KeepVersions: cfg.Retention.KeepVersions,
		Window:       cfg.Retention.Window,
	}
	if *keepVersions > 0 {
		policy.KeepVersions = *keepVersions
	}
	if *window > 0 {
		policy.Window = *window
	}

	ctx := context.Background()
	db, err := strata.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open engine: %v", err)
	}
	defer db.Close()

	start := time.Now()
	var results []*gc.VacuumResult
	if *table != "" {
		res, err := db.Vacuum(ctx, *table, policy)
		if err != nil {
			log.Fatalf("Vacuum failed: %v", err)
		}
		results = append(results, res)
	} else {
		results, err = db.VacuumAll(ctx, policy)
		if err != nil {
			log.Fatalf("Vacuum failed: %v", err)
		}
	}

	failed := false
	var versions, partitions int
	var bytes int64
	for _, res := range results {
		versions += res.VersionsRemoved
		partitions += res.PartitionsRemoved
		bytes += res.BytesReclaimed
		for _, e := range res.Errors {
			failed = true
			log.Printf("[WARN] table %s: %v", res.TableID, e)
		}
	}
	fmt.Printf("Removed %d versions, %d partitions, reclaimed %d bytes in %v\n",
		versions, partitions, bytes, time.Since(start).Round(time.Millisecond))

	if *reconcile {
		report, err := db.Collector().ReconcileStore(ctx, !*dryRun)
		if err != nil {
			log.Fatalf("Reconcile failed: %v", err)
		}
		fmt.Printf("Found %d orphaned blobs, deleted %d\n", len(report.Orphans), report.Deleted)
		for _, p := range report.Orphans {
			fmt.Printf("  %s\n", p)
		}
	}

	if failed {
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.LoadFromEnv(), nil
}
