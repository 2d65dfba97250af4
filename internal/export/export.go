// Package export writes the documents of a TetherDB store as JSON Lines or as
// PostgreSQL DDL and INSERT statements, and imports JSON Lines back.
package export

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/adrianmcphee/tetherdb"
)

// TableName is the table documents are exported into
const TableName = "documents"

// Column is one flattened attribute path seen across the exported documents.
type Column struct {
	Name string
	Type string // string, integer, number, boolean, list, null
}

// load reads every document with its raw timestamp
func load(ctx context.Context, store *tetherdb.Store) ([]tetherdb.Document, error) {
	var docs []tetherdb.Document
	for doc, err := range store.ReadAll(ctx, tetherdb.WithRawTimestamp()) {
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// InferColumns returns the flattened attribute paths of docs with their types.
// The id column comes first; the rest are sorted by name. A path seen with
// different types gets the widest one.
func InferColumns(docs []tetherdb.Document) []Column {
	types := make(map[string]string)
	for _, doc := range docs {
		for name, value := range tetherdb.Flatten(doc) {
			types[name] = widen(types[name], kindOf(value))
		}
	}

	names := make([]string, 0, len(types))
	for name := range types {
		if name != tetherdb.IDField {
			names = append(names, name)
		}
	}
	sort.Strings(names) // Deterministic output

	columns := []Column{{Name: tetherdb.IDField, Type: "string"}}
	for _, name := range names {
		columns = append(columns, Column{Name: name, Type: types[name]})
	}
	return columns
}

func kindOf(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		if strings.HasPrefix(val, "[") && json.Valid([]byte(val)) {
			return "list"
		}
		return "string"
	case bool:
		return "boolean"
	case float64:
		if val == float64(int64(val)) {
			return "integer"
		}
		return "number"
	default:
		return "string"
	}
}

// widen merges two observed kinds into one column type
func widen(a, b string) string {
	switch {
	case a == "" || a == "null":
		return b
	case b == "null" || a == b:
		return a
	case (a == "integer" && b == "number") || (a == "number" && b == "integer"):
		return "number"
	default:
		return "string"
	}
}

// mapType maps column types to PostgreSQL types
func mapType(kind string) string {
	switch kind {
	case "integer":
		return "BIGINT"
	case "number":
		return "DOUBLE PRECISION"
	case "boolean":
		return "BOOLEAN"
	case "list":
		return "JSONB"
	default:
		return "TEXT" // Default to TEXT for unknown types
	}
}

// ColumnsToDDL generates a CREATE TABLE statement for the columns
func ColumnsToDDL(columns []Column) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("CREATE TABLE %s (\n", TableName))
	for i, col := range columns {
		sb.WriteString("  ")
		sb.WriteString(quoteIdent(col.Name))
		sb.WriteString(" ")
		sb.WriteString(mapType(col.Type))
		if col.Name == tetherdb.IDField {
			sb.WriteString(" PRIMARY KEY")
		}
		if i < len(columns)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString(");\n")

	return sb.String()
}

// ExportDDL generates the CREATE TABLE statement for every document in store
func ExportDDL(ctx context.Context, store *tetherdb.Store) (string, error) {
	docs, err := load(ctx, store)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("-- TetherDB export to PostgreSQL\n")
	sb.WriteString("-- Schema inferred from stored documents\n\n")
	sb.WriteString(ColumnsToDDL(InferColumns(docs)))
	return sb.String(), nil
}

// ExportData generates INSERT statements for every document in store
func ExportData(ctx context.Context, store *tetherdb.Store) (string, error) {
	docs, err := load(ctx, store)
	if err != nil {
		return "", err
	}
	return dataSQL(InferColumns(docs), docs), nil
}

func dataSQL(columns []Column, docs []tetherdb.Document) string {
	var sb strings.Builder
	sb.WriteString("-- TetherDB data export\n\n")
	for _, doc := range docs {
		sb.WriteString(rowToInsert(columns, tetherdb.Flatten(doc)))
	}
	return sb.String()
}

// rowToInsert generates an INSERT statement for a single flattened document
func rowToInsert(columns []Column, row map[string]any) string {
	names := make([]string, len(columns))
	values := make([]string, len(columns))

	for i, col := range columns {
		names[i] = quoteIdent(col.Name)

		val, ok := row[col.Name]
		if !ok || val == nil {
			values[i] = "NULL"
			continue
		}

		switch v := val.(type) {
		case string:
			values[i] = quoteLiteral(v)
			if col.Type == "list" {
				values[i] += "::jsonb"
			}
		case float64:
			// JSON numbers are float64
			if v == float64(int64(v)) {
				values[i] = fmt.Sprintf("%d", int64(v))
			} else {
				values[i] = fmt.Sprintf("%v", v)
			}
		case bool:
			values[i] = fmt.Sprintf("%t", v)
		default:
			values[i] = quoteLiteral(fmt.Sprintf("%v", v))
		}
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);\n",
		TableName,
		strings.Join(names, ", "),
		strings.Join(values, ", "))
}

// Export generates both DDL and data
func Export(ctx context.Context, store *tetherdb.Store) (string, error) {
	docs, err := load(ctx, store)
	if err != nil {
		return "", err
	}
	columns := InferColumns(docs)

	var sb strings.Builder
	sb.WriteString("-- TetherDB export to PostgreSQL\n")
	sb.WriteString("-- Schema inferred from stored documents\n\n")
	sb.WriteString(ColumnsToDDL(columns))
	sb.WriteString("\n")
	sb.WriteString(dataSQL(columns, docs))
	return sb.String(), nil
}

// WriteJSONLines writes one JSON object per document, with its id and raw
// timestamp, and returns the number written.
func WriteJSONLines(ctx context.Context, store *tetherdb.Store, w io.Writer) (int, error) {
	enc := json.NewEncoder(w)
	n := 0
	for doc, err := range store.ReadAll(ctx, tetherdb.WithRawTimestamp()) {
		if err != nil {
			return n, err
		}
		if err := enc.Encode(doc); err != nil {
			return n, fmt.Errorf("encode document %s: %w", doc.ID(), err)
		}
		n++
	}
	return n, nil
}

// ReadJSONLines writes every JSON object in r to store as a new document and
// returns the new ids. Exported ids and timestamps are replaced on import.
// Blank lines are skipped.
func ReadJSONLines(ctx context.Context, store *tetherdb.Store, r io.Reader, opts ...tetherdb.WriteOption) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var ids []string
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var doc tetherdb.Document
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return ids, fmt.Errorf("line %d: %w", line, err)
		}
		if doc == nil {
			return ids, fmt.Errorf("line %d: %w", line, tetherdb.ErrTypeMismatch)
		}

		id, err := store.Write(ctx, doc, opts...)
		if err != nil {
			return ids, fmt.Errorf("line %d: %w", line, err)
		}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return ids, err
	}
	return ids, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	// Escape single quotes
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
