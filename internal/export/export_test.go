package export

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/adrianmcphee/tetherdb"
)

func setupTestStore(t *testing.T) *tetherdb.Store {
	t.Helper()

	store, err := tetherdb.Open(tetherdb.Config{Engine: tetherdb.EngineMemory, DeviceID: "dev"})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func write(t *testing.T, store *tetherdb.Store, doc tetherdb.Document) string {
	t.Helper()
	id, err := store.Write(context.Background(), doc)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	return id
}

func TestExportDDL_EmptyStore(t *testing.T) {
	store := setupTestStore(t)

	output, err := ExportDDL(context.Background(), store)
	if err != nil {
		t.Fatalf("ExportDDL failed: %v", err)
	}

	if !strings.Contains(output, "TetherDB export") {
		t.Error("Expected header comment")
	}
	if !strings.Contains(output, `"_id" TEXT PRIMARY KEY`) {
		t.Errorf("Expected id column, got:\n%s", output)
	}
}

func TestExportDDL_InfersColumns(t *testing.T) {
	store := setupTestStore(t)
	write(t, store, tetherdb.Document{
		"name":  "Alice",
		"age":   30,
		"score": 1.5,
		"ok":    true,
		"tags":  []any{"a"},
		"user":  map[string]any{"city": "Berlin"},
	})

	output, err := ExportDDL(context.Background(), store)
	if err != nil {
		t.Fatalf("ExportDDL failed: %v", err)
	}

	for _, want := range []string{
		"CREATE TABLE documents",
		`"name" TEXT`,
		`"age" BIGINT`,
		`"score" DOUBLE PRECISION`,
		`"ok" BOOLEAN`,
		`"tags" JSONB`,
		`"user__city" TEXT`,
		`"device_id" TEXT`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q, got:\n%s", want, output)
		}
	}
}

func TestInferColumns_Widening(t *testing.T) {
	docs := []tetherdb.Document{
		{"_id": "1", "n": 1.0, "v": "x", "maybe": nil},
		{"_id": "2", "n": 2.5, "v": 3.0, "maybe": true},
	}

	columns := InferColumns(docs)

	want := []Column{
		{Name: "_id", Type: "string"},
		{Name: "maybe", Type: "boolean"},
		{Name: "n", Type: "number"},
		{Name: "v", Type: "string"},
	}
	if len(columns) != len(want) {
		t.Fatalf("Expected %d columns, got %v", len(want), columns)
	}
	for i := range want {
		if columns[i] != want[i] {
			t.Errorf("column %d = %+v, want %+v", i, columns[i], want[i])
		}
	}
}

func TestRowToInsert(t *testing.T) {
	columns := []Column{
		{Name: "_id", Type: "string"},
		{Name: "name", Type: "string"},
		{Name: "n", Type: "integer"},
		{Name: "tags", Type: "list"},
		{Name: "missing", Type: "string"},
	}
	row := map[string]any{"_id": "42", "name": "O'Brien", "n": 7.0, "tags": `["a"]`}

	got := rowToInsert(columns, row)
	want := `INSERT INTO documents ("_id", "name", "n", "tags", "missing") VALUES ('42', 'O''Brien', 7, '["a"]'::jsonb, NULL);` + "\n"
	if got != want {
		t.Errorf("rowToInsert() =\n%s\nwant\n%s", got, want)
	}
}

func TestExport_Combined(t *testing.T) {
	store := setupTestStore(t)
	id := write(t, store, tetherdb.Document{"name": "Alice"})

	output, err := Export(context.Background(), store)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	ddl := strings.Index(output, "CREATE TABLE")
	insert := strings.Index(output, "INSERT INTO")
	if ddl < 0 || insert < 0 || ddl > insert {
		t.Errorf("Expected DDL before data, got:\n%s", output)
	}
	if !strings.Contains(output, "'"+id+"'") {
		t.Errorf("Expected id %s in data, got:\n%s", id, output)
	}
}

func TestExportData_OnlyInserts(t *testing.T) {
	store := setupTestStore(t)
	write(t, store, tetherdb.Document{"a": 1})
	write(t, store, tetherdb.Document{"a": 2})

	output, err := ExportData(context.Background(), store)
	if err != nil {
		t.Fatalf("ExportData failed: %v", err)
	}
	if strings.Contains(output, "CREATE TABLE") {
		t.Error("Data export contains DDL")
	}
	if n := strings.Count(output, "INSERT INTO"); n != 2 {
		t.Errorf("Expected 2 inserts, got %d", n)
	}
}

func TestJSONLines_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := setupTestStore(t)
	write(t, src, tetherdb.Document{"name": "Alice", "user": map[string]any{"zip": "10115"}})
	write(t, src, tetherdb.Document{"name": "Bob"})

	var buf bytes.Buffer
	n, err := WriteJSONLines(ctx, src, &buf)
	if err != nil {
		t.Fatalf("WriteJSONLines failed: %v", err)
	}
	if n != 2 || strings.Count(buf.String(), "\n") != 2 {
		t.Fatalf("Expected 2 lines, got %d:\n%s", n, buf.String())
	}

	dst := setupTestStore(t)
	ids, err := ReadJSONLines(ctx, dst, strings.NewReader(buf.String()+"\n"))
	if err != nil {
		t.Fatalf("ReadJSONLines failed: %v", err)
	}
	if len(ids) != 2 || dst.Len() != 2 {
		t.Fatalf("Expected 2 imported documents, got %d (len %d)", len(ids), dst.Len())
	}

	docs, err := dst.Filter(ctx, tetherdb.Predicates{"user__zip": "10115"})
	if err != nil || len(docs) != 1 || docs[0]["name"] != "Alice" {
		t.Errorf("nested document not imported: %v, %v", docs, err)
	}
}

func TestReadJSONLines_Errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"not json", "{\"a\":1}\nnope\n", nil},
		{"array", "[1,2]\n", nil},
		{"null", "null\n", tetherdb.ErrTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)
			_, err := ReadJSONLines(ctx, store, strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("Expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}
