package tetherdb

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// FlattenDelimiter joins the keys of nested mappings in a flattened view.
const FlattenDelimiter = "__"

// Flatten projects a nested document onto a single level. A value at
// {"user": {"name": "Al"}} appears as "user__name". Nested mappings are not
// leaves themselves. Sequences at any depth are stringified with
// StringifySequence; other scalars are kept as they are.
func Flatten(doc Document) map[string]any {
	out := make(map[string]any, len(doc))
	flattenInto(out, "", doc)
	return out
}

func flattenInto(out map[string]any, parent string, m map[string]any) {
	for k, v := range m {
		path := k
		if parent != "" {
			path = parent + FlattenDelimiter + k
		}

		switch val := v.(type) {
		case map[string]any:
			flattenInto(out, path, val)
		case Document:
			flattenInto(out, path, val)
		default:
			if isSequence(v) {
				out[path] = StringifySequence(v)
			} else {
				out[path] = v
			}
		}
	}
}

func isSequence(v any) bool {
	switch v.(type) {
	case nil, string, []byte, json.RawMessage:
		return false
	case []any:
		return true
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// StringifySequence renders a sequence as compact JSON text, e.g. ["a",1].
func StringifySequence(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
