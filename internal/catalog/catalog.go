package catalog

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	serrors "github.com/stratadb/strata/internal/errors"
	"github.com/stratadb/strata/internal/partition"
	"github.com/stratadb/strata/pkg/types"
)

// TableRecord is a row in the tables table.
type TableRecord struct {
	TableID   string
	Name      string
	CreatedAt time.Time
	DroppedAt *time.Time
}

// Dropped reports whether the table has been logically dropped.
func (t *TableRecord) Dropped() bool { return t.DroppedAt != nil }

// TableVersion is an immutable snapshot of a table: a schema plus the
// set of partitions associated with it.
type TableVersion struct {
	VersionID string
	TableID   string
	Number    int64
	Schema    types.Schema
	CreatedAt time.Time
}

// PartitionRecord is the catalog's view of one immutable partition blob.
type PartitionRecord struct {
	PartitionID string
	TableID     string
	ObjectPath  string
	RowCount    int64
	SizeBytes   int64
	Stats       map[string]partition.ColumnStats
	CreatedAt   time.Time
}

// Catalog is the transactional metadata store. Every write operation is
// atomic; CommitVersion is the single serialization point for table
// mutations.
type Catalog interface {
	CreateTable(ctx context.Context, name string, schema types.Schema) (*TableRecord, error)
	GetTable(ctx context.Context, name string) (*TableRecord, error)
	GetTableByID(ctx context.Context, tableID string) (*TableRecord, error)
	ListTables(ctx context.Context, includeDropped bool) ([]*TableRecord, error)
	DropTable(ctx context.Context, name string) error

	GetCurrentVersion(ctx context.Context, tableID string) (*TableVersion, error)
	GetVersion(ctx context.Context, tableID string, number int64) (*TableVersion, error)
	GetVersionAt(ctx context.Context, tableID string, at time.Time) (*TableVersion, error)
	ListVersions(ctx context.Context, tableID string) ([]*TableVersion, error)

	CommitVersion(ctx context.Context, tableID string, expectedCurrent int64, schema types.Schema, keepPartitionIDs []string, newPartitions []*partition.Info) (*TableVersion, error)

	ListPartitions(ctx context.Context, versionID string) ([]*PartitionRecord, error)
	ListTablePartitions(ctx context.Context, tableID string) ([]*PartitionRecord, error)
	OrphanCandidates(ctx context.Context, tableID string, cutoff time.Time, keepVersions int) ([]*PartitionRecord, error)

	DeletePartitionRecord(ctx context.Context, partitionID string) error
	DeleteVersionRecord(ctx context.Context, versionID string) error
	DeleteTableRecord(ctx context.Context, tableID string) error

	ListObjectPaths(ctx context.Context) ([]string, error)
	VersionsListing(ctx context.Context) ([]VersionListingRow, error)
	PartitionsListing(ctx context.Context) ([]PartitionListingRow, error)

	Close() error
}

// SQLiteCatalog implements Catalog on a local SQLite database. Writes go
// through a single-connection handle so transactions never contend on
// SQLITE_BUSY; reads use a separate read-only pool.
type SQLiteCatalog struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

var _ Catalog = (*SQLiteCatalog)(nil)

// NewSQLiteCatalog opens (creating if needed) the catalog database at
// path and applies the schema.
func NewSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	writeDSN := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	writeDB, err := sql.Open("sqlite3", writeDSN)
	if err != nil {
		return nil, fmt.Errorf("catalog: open write connection: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	for _, stmt := range AllSchemaSQL() {
		if _, err := writeDB.Exec(stmt); err != nil {
			writeDB.Close()
			return nil, fmt.Errorf("catalog: apply schema: %w", err)
		}
	}

	readDSN := fmt.Sprintf("file:%s?mode=ro&_journal_mode=WAL&_busy_timeout=5000", path)
	readDB, err := sql.Open("sqlite3", readDSN)
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("catalog: open read connection: %w", err)
	}
	readDB.SetMaxOpenConns(8)

	return &SQLiteCatalog{writeDB: writeDB, readDB: readDB}, nil
}

// Close closes both database handles.
func (c *SQLiteCatalog) Close() error {
	rerr := c.readDB.Close()
	werr := c.writeDB.Close()
	if werr != nil {
		return fmt.Errorf("catalog: close write connection: %w", werr)
	}
	if rerr != nil {
		return fmt.Errorf("catalog: close read connection: %w", rerr)
	}
	return nil
}

// CreateTable registers a new table and seeds version 1 with an empty
// partition set. Fails with AlreadyExists if a live table holds the name.
func (c *SQLiteCatalog) CreateTable(ctx context.Context, name string, schema types.Schema) (*TableRecord, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("catalog: marshal schema: %w", err)
	}

	tx, err := c.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: begin create table: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tables WHERE name = ? AND dropped_at IS NULL`, name).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("catalog: check table name: %w", err)
	}
	if exists > 0 {
		return nil, serrors.NewAlreadyExists(fmt.Sprintf("table %q already exists", name))
	}

	now := time.Now()
	rec := &TableRecord{
		TableID:   uuid.NewString(),
		Name:      name,
		CreatedAt: now,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO tables (table_id, name, created_at) VALUES (?, ?, ?)`,
		rec.TableID, rec.Name, now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("catalog: insert table: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO table_versions (version_id, table_id, version_number, schema_json, created_at)
		 VALUES (?, ?, 1, ?, ?)`,
		uuid.NewString(), rec.TableID, string(schemaJSON), now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("catalog: insert initial version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("catalog: commit create table: %w", err)
	}
	return rec, nil
}

// GetTable resolves a live table by name.
func (c *SQLiteCatalog) GetTable(ctx context.Context, name string) (*TableRecord, error) {
	row := c.readDB.QueryRowContext(ctx,
		`SELECT table_id, name, created_at, dropped_at
		 FROM tables WHERE name = ? AND dropped_at IS NULL`, name)
	rec, err := scanTable(row)
	if err == sql.ErrNoRows {
		return nil, serrors.NewNotFound(fmt.Sprintf("table %q not found", name))
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get table %q: %w", name, err)
	}
	return rec, nil
}

// GetTableByID resolves a table by its identifier, dropped or not.
func (c *SQLiteCatalog) GetTableByID(ctx context.Context, tableID string) (*TableRecord, error) {
	row := c.readDB.QueryRowContext(ctx,
		`SELECT table_id, name, created_at, dropped_at FROM tables WHERE table_id = ?`, tableID)
	rec, err := scanTable(row)
	if err == sql.ErrNoRows {
		return nil, serrors.NewNotFound(fmt.Sprintf("table %s not found", tableID))
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get table %s: %w", tableID, err)
	}
	return rec, nil
}

// ListTables returns all tables ordered by name. Dropped tables are
// included only when includeDropped is set.
func (c *SQLiteCatalog) ListTables(ctx context.Context, includeDropped bool) ([]*TableRecord, error) {
	q := `SELECT table_id, name, created_at, dropped_at FROM tables`
	if !includeDropped {
		q += ` WHERE dropped_at IS NULL`
	}
	q += ` ORDER BY name, created_at`

	rows, err := c.readDB.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("catalog: list tables: %w", err)
	}
	defer rows.Close()

	var out []*TableRecord
	for rows.Next() {
		rec, err := scanTable(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan table: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DropTable marks a table dropped. Its versions and partitions stay in
// the catalog until the garbage collector retires them.
func (c *SQLiteCatalog) DropTable(ctx context.Context, name string) error {
	res, err := c.writeDB.ExecContext(ctx,
		`UPDATE tables SET dropped_at = ? WHERE name = ? AND dropped_at IS NULL`,
		time.Now().UnixNano(), name)
	if err != nil {
		return fmt.Errorf("catalog: drop table %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("catalog: drop table %q: %w", name, err)
	}
	if n == 0 {
		return serrors.NewNotFound(fmt.Sprintf("table %q not found", name))
	}
	return nil
}

// GetCurrentVersion returns the version with the highest number. The
// current version is derived, never stored.
func (c *SQLiteCatalog) GetCurrentVersion(ctx context.Context, tableID string) (*TableVersion, error) {
	rec, err := c.GetTableByID(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if rec.Dropped() {
		return nil, serrors.NewNotFound(fmt.Sprintf("table %s is dropped", tableID))
	}
	row := c.readDB.QueryRowContext(ctx,
		`SELECT version_id, table_id, version_number, schema_json, created_at
		 FROM table_versions WHERE table_id = ?
		 ORDER BY version_number DESC LIMIT 1`, tableID)
	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, serrors.NewNotFound(fmt.Sprintf("table %s has no versions", tableID))
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: current version of %s: %w", tableID, err)
	}
	return v, nil
}

// GetVersion returns the version with the exact number.
func (c *SQLiteCatalog) GetVersion(ctx context.Context, tableID string, number int64) (*TableVersion, error) {
	row := c.readDB.QueryRowContext(ctx,
		`SELECT version_id, table_id, version_number, schema_json, created_at
		 FROM table_versions WHERE table_id = ? AND version_number = ?`, tableID, number)
	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, serrors.NewNoSuchVersion(fmt.Sprintf("table %s has no version %d", tableID, number))
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: version %d of %s: %w", number, tableID, err)
	}
	return v, nil
}

// GetVersionAt returns the newest version created at or before the given
// instant. A timestamp earlier than the first version yields NoSuchVersion.
func (c *SQLiteCatalog) GetVersionAt(ctx context.Context, tableID string, at time.Time) (*TableVersion, error) {
	row := c.readDB.QueryRowContext(ctx,
		`SELECT version_id, table_id, version_number, schema_json, created_at
		 FROM table_versions WHERE table_id = ? AND created_at <= ?
		 ORDER BY version_number DESC LIMIT 1`, tableID, at.UnixNano())
	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, serrors.NewNoSuchVersion(
			fmt.Sprintf("table %s has no version at or before %s", tableID, at.Format(time.RFC3339Nano)))
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: version of %s at %s: %w", tableID, at.Format(time.RFC3339Nano), err)
	}
	return v, nil
}

// ListVersions returns every version of a table, oldest first.
func (c *SQLiteCatalog) ListVersions(ctx context.Context, tableID string) ([]*TableVersion, error) {
	rows, err := c.readDB.QueryContext(ctx,
		`SELECT version_id, table_id, version_number, schema_json, created_at
		 FROM table_versions WHERE table_id = ? ORDER BY version_number`, tableID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list versions of %s: %w", tableID, err)
	}
	defer rows.Close()

	var out []*TableVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CommitVersion atomically appends a new version. The commit succeeds
// only if the table's current version number still equals
// expectedCurrent; otherwise it fails with Conflict and writes nothing.
// New partition records and all partition associations land in the same
// transaction as the version row.
func (c *SQLiteCatalog) CommitVersion(ctx context.Context, tableID string, expectedCurrent int64, schema types.Schema, keepPartitionIDs []string, newPartitions []*partition.Info) (*TableVersion, error) {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("catalog: marshal schema: %w", err)
	}

	tx, err := c.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: begin commit: %w", err)
	}
	defer tx.Rollback()

	var dropped sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT dropped_at FROM tables WHERE table_id = ?`, tableID).Scan(&dropped)
	if err == sql.ErrNoRows {
		return nil, serrors.NewNotFound(fmt.Sprintf("table %s not found", tableID))
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: check table: %w", err)
	}
	if dropped.Valid {
		return nil, serrors.NewNotFound(fmt.Sprintf("table %s is dropped", tableID))
	}

	var current int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version_number), 0) FROM table_versions WHERE table_id = ?`, tableID).Scan(&current)
	if err != nil {
		return nil, fmt.Errorf("catalog: read current version: %w", err)
	}
	if current != expectedCurrent {
		return nil, serrors.NewConflict(
			fmt.Sprintf("table %s is at version %d, commit expected %d", tableID, current, expectedCurrent))
	}

	now := time.Now()
	v := &TableVersion{
		VersionID: uuid.NewString(),
		TableID:   tableID,
		Number:    expectedCurrent + 1,
		Schema:    schema,
		CreatedAt: now,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO table_versions (version_id, table_id, version_number, schema_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		v.VersionID, v.TableID, v.Number, string(schemaJSON), now.UnixNano())
	if err != nil {
		// UNIQUE(table_id, version_number) backstops the check above.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, serrors.NewConflict(
				fmt.Sprintf("table %s version %d was committed concurrently", tableID, v.Number))
		}
		return nil, fmt.Errorf("catalog: insert version: %w", err)
	}

	for _, p := range newPartitions {
		statsJSON, err := json.Marshal(p.Stats)
		if err != nil {
			return nil, fmt.Errorf("catalog: marshal stats for %s: %w", p.PartitionID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO partitions (partition_id, table_id, object_path, row_count, size_bytes, stats_json, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.PartitionID, tableID, p.ObjectPath, p.RowCount, p.SizeBytes, string(statsJSON), now.UnixNano())
		if err != nil {
			return nil, fmt.Errorf("catalog: insert partition %s: %w", p.PartitionID, err)
		}
	}

	assoc := make([]string, 0, len(keepPartitionIDs)+len(newPartitions))
	assoc = append(assoc, keepPartitionIDs...)
	for _, p := range newPartitions {
		assoc = append(assoc, p.PartitionID)
	}
	for _, pid := range assoc {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO version_partitions (version_id, partition_id) VALUES (?, ?)`,
			v.VersionID, pid)
		if err != nil {
			return nil, fmt.Errorf("catalog: associate partition %s: %w", pid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("catalog: commit version %d of %s: %w", v.Number, tableID, err)
	}
	return v, nil
}

// ListPartitions returns the partitions of a version, ordered by
// partition ID for deterministic scans.
func (c *SQLiteCatalog) ListPartitions(ctx context.Context, versionID string) ([]*PartitionRecord, error) {
	rows, err := c.readDB.QueryContext(ctx,
		`SELECT p.partition_id, p.table_id, p.object_path, p.row_count, p.size_bytes, p.stats_json, p.created_at
		 FROM partitions p
		 JOIN version_partitions vp ON vp.partition_id = p.partition_id
		 WHERE vp.version_id = ?
		 ORDER BY p.partition_id`, versionID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list partitions of version %s: %w", versionID, err)
	}
	defer rows.Close()
	return collectPartitions(rows)
}

// ListTablePartitions returns every partition record a table has ever
// produced, regardless of version membership.
func (c *SQLiteCatalog) ListTablePartitions(ctx context.Context, tableID string) ([]*PartitionRecord, error) {
	rows, err := c.readDB.QueryContext(ctx,
		`SELECT partition_id, table_id, object_path, row_count, size_bytes, stats_json, created_at
		 FROM partitions WHERE table_id = ? ORDER BY partition_id`, tableID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list partitions of table %s: %w", tableID, err)
	}
	defer rows.Close()
	return collectPartitions(rows)
}

// OrphanCandidates returns partitions of a table that no retained
// version references: not one of the keepVersions newest, and no
// version created at or after the cutoff. The retention checks happen
// at query time on the write connection, so a version committed while a
// vacuum pass runs keeps its partitions out of the answer.
func (c *SQLiteCatalog) OrphanCandidates(ctx context.Context, tableID string, cutoff time.Time, keepVersions int) ([]*PartitionRecord, error) {
	if keepVersions < 1 {
		keepVersions = 1
	}
	rows, err := c.writeDB.QueryContext(ctx,
		`SELECT p.partition_id, p.table_id, p.object_path, p.row_count, p.size_bytes, p.stats_json, p.created_at
		 FROM partitions p
		 WHERE p.table_id = ?
		   AND NOT EXISTS (
		     SELECT 1 FROM version_partitions vp
		     JOIN table_versions v ON v.version_id = vp.version_id
		     WHERE vp.partition_id = p.partition_id
		       AND (v.created_at >= ?
		            OR v.version_number > (SELECT MAX(version_number)
		                                   FROM table_versions
		                                   WHERE table_id = p.table_id) - ?)
		   )
		 ORDER BY p.partition_id`, tableID, cutoff.UnixNano(), keepVersions)
	if err != nil {
		return nil, fmt.Errorf("catalog: orphan candidates for %s: %w", tableID, err)
	}
	defer rows.Close()
	return collectPartitions(rows)
}

// DeletePartitionRecord removes a partition row and all its version
// associations. Call only after the blob is gone from object storage.
func (c *SQLiteCatalog) DeletePartitionRecord(ctx context.Context, partitionID string) error {
	tx, err := c.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: begin delete partition: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM version_partitions WHERE partition_id = ?`, partitionID); err != nil {
		return fmt.Errorf("catalog: delete partition associations: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM partitions WHERE partition_id = ?`, partitionID); err != nil {
		return fmt.Errorf("catalog: delete partition %s: %w", partitionID, err)
	}
	return tx.Commit()
}

// DeleteVersionRecord removes a version row and its associations. The
// partitions it referenced stay until they become orphans themselves.
func (c *SQLiteCatalog) DeleteVersionRecord(ctx context.Context, versionID string) error {
	tx, err := c.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: begin delete version: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM version_partitions WHERE version_id = ?`, versionID); err != nil {
		return fmt.Errorf("catalog: delete version associations: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM table_versions WHERE version_id = ?`, versionID); err != nil {
		return fmt.Errorf("catalog: delete version %s: %w", versionID, err)
	}
	return tx.Commit()
}

// DeleteTableRecord removes a table row once no versions remain.
func (c *SQLiteCatalog) DeleteTableRecord(ctx context.Context, tableID string) error {
	tx, err := c.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: begin delete table: %w", err)
	}
	defer tx.Rollback()

	var remaining int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM table_versions WHERE table_id = ?`, tableID).Scan(&remaining)
	if err != nil {
		return fmt.Errorf("catalog: count versions of %s: %w", tableID, err)
	}
	if remaining > 0 {
		return serrors.NewConflict(
			fmt.Sprintf("table %s still has %d versions", tableID, remaining))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tables WHERE table_id = ?`, tableID); err != nil {
		return fmt.Errorf("catalog: delete table %s: %w", tableID, err)
	}
	return tx.Commit()
}

// ListObjectPaths returns the object path of every partition the catalog
// knows about, for store reconciliation.
func (c *SQLiteCatalog) ListObjectPaths(ctx context.Context) ([]string, error) {
	rows, err := c.readDB.QueryContext(ctx,
		`SELECT object_path FROM partitions ORDER BY object_path`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list object paths: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("catalog: scan object path: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTable(r rowScanner) (*TableRecord, error) {
	var rec TableRecord
	var created int64
	var dropped sql.NullInt64
	if err := r.Scan(&rec.TableID, &rec.Name, &created, &dropped); err != nil {
		return nil, err
	}
	rec.CreatedAt = time.Unix(0, created)
	if dropped.Valid {
		t := time.Unix(0, dropped.Int64)
		rec.DroppedAt = &t
	}
	return &rec, nil
}

func scanVersion(r rowScanner) (*TableVersion, error) {
	var v TableVersion
	var schemaJSON string
	var created int64
	if err := r.Scan(&v.VersionID, &v.TableID, &v.Number, &schemaJSON, &created); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(schemaJSON), &v.Schema); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	v.CreatedAt = time.Unix(0, created)
	return &v, nil
}

func collectPartitions(rows *sql.Rows) ([]*PartitionRecord, error) {
	var out []*PartitionRecord
	for rows.Next() {
		var rec PartitionRecord
		var statsJSON string
		var created int64
		if err := rows.Scan(&rec.PartitionID, &rec.TableID, &rec.ObjectPath,
			&rec.RowCount, &rec.SizeBytes, &statsJSON, &created); err != nil {
			return nil, fmt.Errorf("catalog: scan partition: %w", err)
		}
		// Stats hold raw column values; decode numbers as json.Number
		// so int64 stats survive the round trip.
		dec := json.NewDecoder(bytes.NewReader([]byte(statsJSON)))
		dec.UseNumber()
		if err := dec.Decode(&rec.Stats); err != nil {
			return nil, fmt.Errorf("catalog: decode stats for %s: %w", rec.PartitionID, err)
		}
		rec.CreatedAt = time.Unix(0, created)
		out = append(out, &rec)
	}
	return out, rows.Err()
}
