package partition

import (
	"context"
	"os"
	"testing"

	"github.com/stratadb/strata/pkg/types"
)

func testSchema() types.Schema {
	return types.Schema{Columns: []types.ColumnDef{
		{Name: "id", Type: types.TypeInt64},
		{Name: "tenant", Type: types.TypeText},
		{Name: "amount", Type: types.TypeFloat64, Nullable: true},
	}}
}

func testRows() []types.Row {
	return []types.Row{
		{int64(1), "acme", 10.5},
		{int64(2), "acme", nil},
		{int64(3), "zebra", 99.0},
	}
}

func TestBuilder_BuildAndDecode(t *testing.T) {
	b := NewBuilder(t.TempDir())
	schema := testSchema()

	info, err := b.Build(context.Background(), "table-1", schema, testRows())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if info.RowCount != 3 {
		t.Errorf("row count: got %d, want 3", info.RowCount)
	}
	if info.SizeBytes <= 0 {
		t.Errorf("size bytes should be positive, got %d", info.SizeBytes)
	}
	if info.ObjectPath != "tables/table-1/"+info.PartitionID+".strata" {
		t.Errorf("unexpected object path %q", info.ObjectPath)
	}

	data, err := os.ReadFile(info.LocalPath)
	if err != nil {
		t.Fatalf("failed to read blob file: %v", err)
	}
	if int64(len(data)) != info.SizeBytes {
		t.Errorf("blob file size %d does not match info %d", len(data), info.SizeBytes)
	}

	rows, footer, err := Decode(schema, data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if footer.RowCount != 3 || len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0][0] != int64(1) || rows[0][1] != "acme" || rows[0][2] != 10.5 {
		t.Errorf("row 0 mismatch: %v", rows[0])
	}
	if rows[1][2] != nil {
		t.Errorf("expected NULL amount in row 1, got %v", rows[1][2])
	}
}

func TestBuilder_Stats(t *testing.T) {
	b := NewBuilder(t.TempDir())

	info, err := b.Build(context.Background(), "table-1", testSchema(), testRows())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	idStats := info.Stats["id"]
	if idStats.Min != int64(1) || idStats.Max != int64(3) {
		t.Errorf("id stats: got min=%v max=%v, want 1..3", idStats.Min, idStats.Max)
	}

	tenantStats := info.Stats["tenant"]
	if tenantStats.Min != "acme" || tenantStats.Max != "zebra" {
		t.Errorf("tenant stats: got min=%v max=%v", tenantStats.Min, tenantStats.Max)
	}
	if tenantStats.Bloom == nil {
		t.Fatal("tenant column should carry a bloom filter")
	}

	amountStats := info.Stats["amount"]
	if amountStats.NullCount != 1 {
		t.Errorf("amount null count: got %d, want 1", amountStats.NullCount)
	}
	if amountStats.Min != 10.5 || amountStats.Max != 99.0 {
		t.Errorf("amount stats: got min=%v max=%v", amountStats.Min, amountStats.Max)
	}
}

func TestBuilder_EmptyRowsRejected(t *testing.T) {
	b := NewBuilder(t.TempDir())
	if _, err := b.Build(context.Background(), "table-1", testSchema(), nil); err == nil {
		t.Error("expected error for zero rows")
	}
}

func TestBuilder_SchemaViolation(t *testing.T) {
	b := NewBuilder(t.TempDir())
	rows := []types.Row{{int64(1), nil, 1.0}} // tenant is not nullable
	if _, err := b.Build(context.Background(), "table-1", testSchema(), rows); err == nil {
		t.Error("expected error for NULL in non-nullable column")
	}
}
