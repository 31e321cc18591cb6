package partition

import (
	"context"
	"testing"

	"github.com/stratadb/strata/internal/storage"
	"github.com/stratadb/strata/pkg/types"
)

func TestDecode_MissingColumnIsNull(t *testing.T) {
	oldSchema := types.Schema{Columns: []types.ColumnDef{
		{Name: "id", Type: types.TypeInt64},
	}}
	rows := []types.Row{{int64(7)}}

	tracker := NewStatsTracker(oldSchema, 1)
	tracker.Update(rows[0])
	blob, err := Encode(oldSchema, rows, tracker.Stats())
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	// A later version added a nullable column; old blobs decode it as NULL.
	newSchema := oldSchema.WithColumn(types.ColumnDef{Name: "note", Type: types.TypeText, Nullable: true})
	decoded, _, err := Decode(newSchema, blob)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded[0][0] != int64(7) {
		t.Errorf("id mismatch: %v", decoded[0][0])
	}
	if decoded[0][1] != nil {
		t.Errorf("added column should decode as NULL, got %v", decoded[0][1])
	}
}

func TestDecode_Corrupt(t *testing.T) {
	schema := types.Schema{Columns: []types.ColumnDef{{Name: "id", Type: types.TypeInt64}}}

	if _, _, err := Decode(schema, []byte("tiny")); err == nil {
		t.Error("expected error for truncated blob")
	}
	if _, _, err := Decode(schema, []byte("0123456789abcdefNOPE")); err == nil {
		t.Error("expected error for bad magic")
	}
}

func TestReadFooter_RangeOnly(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	ctx := context.Background()

	b := NewBuilder(t.TempDir())
	schema := testSchema()
	info, err := b.Build(ctx, "table-1", schema, testRows())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if err := store.Upload(ctx, info.LocalPath, info.ObjectPath); err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	footer, err := ReadFooter(ctx, store, info.ObjectPath, info.SizeBytes)
	if err != nil {
		t.Fatalf("footer read failed: %v", err)
	}

	if footer.RowCount != info.RowCount {
		t.Errorf("footer row count: got %d, want %d", footer.RowCount, info.RowCount)
	}
	if len(footer.Columns) != 3 {
		t.Errorf("footer columns: got %v", footer.Columns)
	}
	if footer.Stats["tenant"].Bloom == nil {
		t.Error("footer should carry tenant bloom stats")
	}
}
