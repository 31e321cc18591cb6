package catalog

// DDL for the catalog database. All multi-row reads order by an explicit
// column so listings are deterministic across connections.

const createTablesTable = `
CREATE TABLE IF NOT EXISTS tables (
	table_id   TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	dropped_at INTEGER
);`

// Only one live table may hold a given name. Dropped tables keep their
// row (and name) until the garbage collector retires their versions.
const createLiveNameIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_tables_live_name
ON tables(name) WHERE dropped_at IS NULL;`

const createVersionsTable = `
CREATE TABLE IF NOT EXISTS table_versions (
	version_id     TEXT PRIMARY KEY,
	table_id       TEXT NOT NULL,
	version_number INTEGER NOT NULL,
	schema_json    TEXT NOT NULL,
	created_at     INTEGER NOT NULL,
	UNIQUE(table_id, version_number)
);`

const createVersionsTableIndex = `
CREATE INDEX IF NOT EXISTS idx_versions_table
ON table_versions(table_id, created_at);`

const createPartitionsTable = `
CREATE TABLE IF NOT EXISTS partitions (
	partition_id TEXT PRIMARY KEY,
	table_id     TEXT NOT NULL,
	object_path  TEXT NOT NULL,
	row_count    INTEGER NOT NULL,
	size_bytes   INTEGER NOT NULL,
	stats_json   TEXT NOT NULL,
	created_at   INTEGER NOT NULL
);`

const createPartitionsTableIndex = `
CREATE INDEX IF NOT EXISTS idx_partitions_table
ON partitions(table_id);`

// Many-to-many: a partition is typically shared by every version that
// did not touch it.
const createVersionPartitionsTable = `
CREATE TABLE IF NOT EXISTS version_partitions (
	version_id   TEXT NOT NULL,
	partition_id TEXT NOT NULL,
	PRIMARY KEY (version_id, partition_id)
);`

const createVersionPartitionsIndex = `
CREATE INDEX IF NOT EXISTS idx_version_partitions_partition
ON version_partitions(partition_id);`

// AllSchemaSQL returns every DDL statement needed to initialize the
// catalog database, in execution order.
func AllSchemaSQL() []string {
	return []string{
		createTablesTable,
		createLiveNameIndex,
		createVersionsTable,
		createVersionsTableIndex,
		createPartitionsTable,
		createPartitionsTableIndex,
		createVersionPartitionsTable,
		createVersionPartitionsIndex,
	}
}
