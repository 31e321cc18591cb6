package catalog

import (
	"context"
	"fmt"
	"time"
)

// VersionListingRow is one line of the all-tables version history.
type VersionListingRow struct {
	TableName      string
	TableID        string
	VersionNumber  int64
	CreatedAt      time.Time
	PartitionCount int64
	RowCount       int64
}

// PartitionListingRow is one (version, partition) association with the
// partition's physical facts.
type PartitionListingRow struct {
	TableName     string
	VersionNumber int64
	PartitionID   string
	ObjectPath    string
	RowCount      int64
	SizeBytes     int64
}

// VersionsListing returns every version of every table with aggregate
// partition counts, ordered by table name then version number.
func (c *SQLiteCatalog) VersionsListing(ctx context.Context) ([]VersionListingRow, error) {
	rows, err := c.readDB.QueryContext(ctx,
		`SELECT t.name, t.table_id, v.version_number, v.created_at,
		        COUNT(p.partition_id), COALESCE(SUM(p.row_count), 0)
		 FROM table_versions v
		 JOIN tables t ON t.table_id = v.table_id
		 LEFT JOIN version_partitions vp ON vp.version_id = v.version_id
		 LEFT JOIN partitions p ON p.partition_id = vp.partition_id
		 GROUP BY v.version_id
		 ORDER BY t.name, v.version_number`)
	if err != nil {
		return nil, fmt.Errorf("catalog: versions listing: %w", err)
	}
	defer rows.Close()

	var out []VersionListingRow
	for rows.Next() {
		var r VersionListingRow
		var created int64
		if err := rows.Scan(&r.TableName, &r.TableID, &r.VersionNumber, &created,
			&r.PartitionCount, &r.RowCount); err != nil {
			return nil, fmt.Errorf("catalog: scan versions listing: %w", err)
		}
		r.CreatedAt = time.Unix(0, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// PartitionsListing returns one row per (version, partition) pair across
// all tables, ordered by table name, version number, partition ID.
func (c *SQLiteCatalog) PartitionsListing(ctx context.Context) ([]PartitionListingRow, error) {
	rows, err := c.readDB.QueryContext(ctx,
		`SELECT t.name, v.version_number, p.partition_id, p.object_path, p.row_count, p.size_bytes
		 FROM version_partitions vp
		 JOIN table_versions v ON v.version_id = vp.version_id
		 JOIN tables t ON t.table_id = v.table_id
		 JOIN partitions p ON p.partition_id = vp.partition_id
		 ORDER BY t.name, v.version_number, p.partition_id`)
	if err != nil {
		return nil, fmt.Errorf("catalog: partitions listing: %w", err)
	}
	defer rows.Close()

	var out []PartitionListingRow
	for rows.Next() {
		var r PartitionListingRow
		if err := rows.Scan(&r.TableName, &r.VersionNumber, &r.PartitionID,
			&r.ObjectPath, &r.RowCount, &r.SizeBytes); err != nil {
			return nil, fmt.Errorf("catalog: scan partitions listing: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
