package gc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stratadb/strata/internal/catalog"
	"github.com/stratadb/strata/internal/mutation"
	"github.com/stratadb/strata/internal/storage"
	"github.com/stratadb/strata/internal/version"
	"github.com/stratadb/strata/pkg/types"
)

type fixture struct {
	cat    *catalog.SQLiteCatalog
	store  *storage.LocalStorage
	engine *mutation.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	cat, err := catalog.NewSQLiteCatalog(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("NewSQLiteCatalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })

	store, err := storage.NewLocalStorage(filepath.Join(dir, "objects"))
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	mgr := version.NewManager(cat, 3)
	eng := mutation.NewEngine(cat, mgr, store, filepath.Join(dir, "work"), mutation.Options{TargetPartitionRows: 1000})
	return &fixture{cat: cat, store: store, engine: eng}
}

func testSchema() types.Schema {
	return types.Schema{Columns: []types.ColumnDef{
		{Name: "id", Type: types.TypeInt64},
		{Name: "v", Type: types.TypeInt64, Nullable: true},
	}}
}

func intRows(from, to int64) []types.Row {
	var rows []types.Row
	for i := from; i <= to; i++ {
		rows = append(rows, types.Row{i, i})
	}
	return rows
}

// The canonical lifecycle: append P1, append P2, delete everything in
// P2, then vacuum down to the current version. Only P1 and the newest
// version survive, in both catalog and object store.
func TestVacuumAppendDeleteLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.cat.CreateTable(ctx, "t", testSchema())
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	// Version 2: [P1] with rows 1..100.
	if _, err := f.engine.Append(ctx, "t", intRows(1, 100)); err != nil {
		t.Fatalf("Append P1: %v", err)
	}
	// Version 3: [P1, P2] with P2 holding rows 101..150.
	if _, err := f.engine.Append(ctx, "t", intRows(101, 150)); err != nil {
		t.Fatalf("Append P2: %v", err)
	}
	// Version 4: delete id > 100 lands entirely in P2, leaving [P1].
	v4, stats, err := f.engine.Delete(ctx, "t", types.Predicate{
		Column: "id", Op: types.OpGt, Value: int64(100),
	})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if stats.PartitionsDropped != 1 || stats.PartitionsElided != 1 {
		t.Fatalf("delete stats = %+v, want P2 dropped and P1 elided", stats)
	}

	res, err := NewCollector(f.cat, f.store).Vacuum(ctx, rec.TableID, RetentionPolicy{})
	if err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("vacuum errors: %v", res.Errors)
	}
	if res.VersionsRemoved != 3 {
		t.Errorf("versions removed = %d, want 3", res.VersionsRemoved)
	}
	if res.PartitionsRemoved != 1 {
		t.Errorf("partitions removed = %d, want 1 (P2)", res.PartitionsRemoved)
	}
	if res.BytesReclaimed <= 0 {
		t.Errorf("bytes reclaimed = %d, want > 0", res.BytesReclaimed)
	}

	versions, err := f.cat.ListVersions(ctx, rec.TableID)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 1 || versions[0].VersionID != v4.VersionID {
		t.Fatalf("surviving versions = %+v, want only version 4", versions)
	}

	parts, err := f.cat.ListTablePartitions(ctx, rec.TableID)
	if err != nil {
		t.Fatalf("ListTablePartitions: %v", err)
	}
	if len(parts) != 1 || parts[0].RowCount != 100 {
		t.Fatalf("surviving partitions = %+v, want only P1", parts)
	}
	exists, err := f.store.Exists(ctx, parts[0].ObjectPath)
	if err != nil || !exists {
		t.Errorf("P1 blob missing from store (exists=%v, err=%v)", exists, err)
	}

	// The store holds exactly the blobs the catalog references.
	objects, err := f.store.ListObjects(ctx, "tables/")
	if err != nil {
		t.Fatalf("ListObjects: %v", err)
	}
	if len(objects) != 1 {
		t.Errorf("store holds %d blobs after vacuum, want 1", len(objects))
	}
}

func TestVacuumKeepVersions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.cat.CreateTable(ctx, "t", testSchema())
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := f.engine.Append(ctx, "t", intRows(int64(i*10+1), int64(i*10+10))); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	res, err := NewCollector(f.cat, f.store).Vacuum(ctx, rec.TableID, RetentionPolicy{KeepVersions: 3})
	if err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
	if res.VersionsRemoved != 2 {
		t.Errorf("versions removed = %d, want 2 (of 5, keeping newest 3)", res.VersionsRemoved)
	}

	versions, err := f.cat.ListVersions(ctx, rec.TableID)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 3 || versions[0].Number != 3 {
		t.Fatalf("surviving versions start at %d with %d entries, want 3 entries from number 3",
			versions[0].Number, len(versions))
	}
	// Append-only history: every partition is still referenced by the
	// current version, so none are removed.
	if res.PartitionsRemoved != 0 {
		t.Errorf("partitions removed = %d, want 0", res.PartitionsRemoved)
	}
}

func TestVacuumWindowRetainsRecentVersions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.cat.CreateTable(ctx, "t", testSchema())
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := f.engine.Append(ctx, "t", intRows(1, 10)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Everything was created seconds ago, so a generous window keeps
	// the full history.
	res, err := NewCollector(f.cat, f.store).Vacuum(ctx, rec.TableID, RetentionPolicy{Window: time.Hour})
	if err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
	if res.VersionsRemoved != 0 || res.PartitionsRemoved != 0 {
		t.Errorf("vacuum inside window removed %d versions, %d partitions; want none",
			res.VersionsRemoved, res.PartitionsRemoved)
	}
}

func TestVacuumDroppedTableRemovesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.cat.CreateTable(ctx, "t", testSchema())
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := f.engine.Append(ctx, "t", intRows(1, 10)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := f.cat.DropTable(ctx, "t"); err != nil {
		t.Fatalf("DropTable: %v", err)
	}

	res, err := NewCollector(f.cat, f.store).Vacuum(ctx, rec.TableID, RetentionPolicy{KeepVersions: 10})
	if err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("vacuum errors: %v", res.Errors)
	}
	if res.VersionsRemoved != 2 || res.PartitionsRemoved != 1 {
		t.Errorf("dropped table sweep = %+v, want 2 versions and 1 partition gone", res)
	}
	if _, err := f.cat.GetTableByID(ctx, rec.TableID); err == nil {
		t.Error("table record survived the final sweep")
	}
	objects, err := f.store.ListObjects(ctx, "tables/")
	if err != nil {
		t.Fatalf("ListObjects: %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("store still holds %d blobs", len(objects))
	}
}

// racingCatalog commits a new version right after the vacuum pass reads
// the version list, before the partition sweep runs.
type racingCatalog struct {
	catalog.Catalog
	once   sync.Once
	commit func()
}

func (c *racingCatalog) ListVersions(ctx context.Context, tableID string) ([]*catalog.TableVersion, error) {
	versions, err := c.Catalog.ListVersions(ctx, tableID)
	if err == nil {
		c.once.Do(c.commit)
	}
	return versions, err
}

func TestVacuumSparesVersionCommittedDuringPass(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.cat.CreateTable(ctx, "t", testSchema())
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	// Version 2: [P1].
	if _, err := f.engine.Append(ctx, "t", intRows(1, 10)); err != nil {
		t.Fatalf("Append P1: %v", err)
	}

	// Version 3 lands mid-pass, referencing P1 and a brand-new P2.
	racing := &racingCatalog{Catalog: f.cat, commit: func() {
		if _, err := f.engine.Append(ctx, "t", intRows(11, 20)); err != nil {
			t.Errorf("mid-pass append: %v", err)
		}
	}}

	res, err := NewCollector(racing, f.store).Vacuum(ctx, rec.TableID, RetentionPolicy{})
	if err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("vacuum errors: %v", res.Errors)
	}
	if res.PartitionsRemoved != 0 {
		t.Errorf("partitions removed = %d, want 0 (all referenced by version 3)", res.PartitionsRemoved)
	}

	cur, err := f.cat.GetCurrentVersion(ctx, rec.TableID)
	if err != nil {
		t.Fatalf("GetCurrentVersion: %v", err)
	}
	if cur.Number != 3 {
		t.Fatalf("current version = %d, want 3", cur.Number)
	}
	parts, err := f.cat.ListPartitions(ctx, cur.VersionID)
	if err != nil {
		t.Fatalf("ListPartitions: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("current version has %d partitions after vacuum, want 2", len(parts))
	}
	for _, p := range parts {
		exists, err := f.store.Exists(ctx, p.ObjectPath)
		if err != nil || !exists {
			t.Errorf("blob %s of current version gone (exists=%v, err=%v)", p.ObjectPath, exists, err)
		}
	}
}

// failingStorage refuses deletes for specific paths.
type failingStorage struct {
	storage.ObjectStorage
	refuse map[string]bool
}

func (s *failingStorage) Delete(ctx context.Context, objectPath string) error {
	if s.refuse[objectPath] {
		return errors.New("simulated outage")
	}
	return s.ObjectStorage.Delete(ctx, objectPath)
}

func TestVacuumDefersFailedBlobDeletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.cat.CreateTable(ctx, "t", testSchema())
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := f.engine.Append(ctx, "t", intRows(1, 10)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, _, err := f.engine.Delete(ctx, "t", types.Predicate{
		Column: "id", Op: types.OpGe, Value: int64(1),
	}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	parts, err := f.cat.ListTablePartitions(ctx, rec.TableID)
	if err != nil {
		t.Fatalf("ListTablePartitions: %v", err)
	}
	if len(parts) != 1 {
		t.Fatalf("partitions = %d, want 1", len(parts))
	}
	orphanPath := parts[0].ObjectPath

	flaky := &failingStorage{ObjectStorage: f.store, refuse: map[string]bool{orphanPath: true}}
	res, err := NewCollector(f.cat, flaky).Vacuum(ctx, rec.TableID, RetentionPolicy{})
	if err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one deferred delete", res.Errors)
	}
	if res.PartitionsRemoved != 0 {
		t.Errorf("partitions removed = %d, want 0 while blob delete fails", res.PartitionsRemoved)
	}
	// The record stays so the next pass retries; nothing dangles.
	remaining, err := f.cat.ListTablePartitions(ctx, rec.TableID)
	if err != nil {
		t.Fatalf("ListTablePartitions: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("partition record vanished despite failed blob delete")
	}

	// Once the store recovers, the retry sweeps it.
	res, err = NewCollector(f.cat, f.store).Vacuum(ctx, rec.TableID, RetentionPolicy{})
	if err != nil {
		t.Fatalf("Vacuum retry: %v", err)
	}
	if res.PartitionsRemoved != 1 || len(res.Errors) != 0 {
		t.Errorf("retry = %+v, want clean removal of 1 partition", res)
	}
}

func TestVacuumAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b"} {
		if _, err := f.cat.CreateTable(ctx, name, testSchema()); err != nil {
			t.Fatalf("CreateTable %s: %v", name, err)
		}
		if _, err := f.engine.Append(ctx, name, intRows(1, 5)); err != nil {
			t.Fatalf("Append %s: %v", name, err)
		}
	}

	results, err := NewCollector(f.cat, f.store).VacuumAll(ctx, RetentionPolicy{})
	if err != nil {
		t.Fatalf("VacuumAll: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	for _, res := range results {
		if res.VersionsRemoved != 1 {
			t.Errorf("table %s removed %d versions, want 1", res.TableID, res.VersionsRemoved)
		}
	}
}

func TestReconcileStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.cat.CreateTable(ctx, "t", testSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := f.engine.Append(ctx, "t", intRows(1, 5)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Plant a blob no commit ever referenced.
	stray := filepath.Join(t.TempDir(), "stray.strata")
	if err := os.WriteFile(stray, []byte("leftover"), 0644); err != nil {
		t.Fatalf("write stray: %v", err)
	}
	if err := f.store.Upload(ctx, stray, "tables/ghost/stray.strata"); err != nil {
		t.Fatalf("Upload stray: %v", err)
	}

	c := NewCollector(f.cat, f.store)
	report, err := c.ReconcileStore(ctx, false)
	if err != nil {
		t.Fatalf("ReconcileStore: %v", err)
	}
	if len(report.Orphans) != 1 || report.Deleted != 0 {
		t.Fatalf("dry run report = %+v, want 1 orphan, 0 deleted", report)
	}

	report, err = c.ReconcileStore(ctx, true)
	if err != nil {
		t.Fatalf("ReconcileStore apply: %v", err)
	}
	if report.Deleted != 1 {
		t.Fatalf("apply report = %+v, want 1 deleted", report)
	}
	exists, err := f.store.Exists(ctx, "tables/ghost/stray.strata")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("orphan blob survived reconciliation")
	}
}
