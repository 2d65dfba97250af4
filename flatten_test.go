package tetherdb

import (
	"reflect"
	"testing"
)

func TestFlatten(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		want map[string]any
	}{
		{
			name: "flat document unchanged",
			doc:  Document{"name": "Alice", "age": 30.0},
			want: map[string]any{"name": "Alice", "age": 30.0},
		},
		{
			name: "nested mapping",
			doc:  Document{"user": map[string]any{"name": "Al"}},
			want: map[string]any{"user__name": "Al"},
		},
		{
			name: "deep nesting",
			doc: Document{"a": map[string]any{
				"b": map[string]any{"c": true},
				"d": nil,
			}},
			want: map[string]any{"a__b__c": true, "a__d": nil},
		},
		{
			name: "top-level sequence",
			doc:  Document{"tags": []any{"a", 1.0}},
			want: map[string]any{"tags": `["a",1]`},
		},
		{
			name: "nested sequence",
			doc:  Document{"user": map[string]any{"roles": []string{"admin", "dev"}}},
			want: map[string]any{"user__roles": `["admin","dev"]`},
		},
		{
			name: "empty nested mapping has no leaves",
			doc:  Document{"meta": map[string]any{}, "x": 1},
			want: map[string]any{"x": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Flatten(tt.doc)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Flatten() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFlatten_DoesNotMutate(t *testing.T) {
	inner := map[string]any{"name": "Al"}
	doc := Document{"user": inner}

	Flatten(doc)

	if _, ok := doc["user__name"]; ok {
		t.Error("Flatten wrote into the document")
	}
	if len(inner) != 1 {
		t.Error("Flatten modified the nested mapping")
	}
}

func TestStringifySequence(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{[]any{}, `[]`},
		{[]int{1, 2}, `[1,2]`},
		{[]any{"a", []any{"b"}}, `["a",["b"]]`},
		{[2]string{"x", "y"}, `["x","y"]`},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := StringifySequence(tt.in); got != tt.want {
				t.Errorf("StringifySequence(%v) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}
