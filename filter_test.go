package tetherdb

import (
	"errors"
	"testing"
)

func TestMatcher(t *testing.T) {
	doc := Document{
		"name":  "Alice",
		"age":   30.0,
		"admin": true,
		"tags":  []any{"a", "b"},
		"user":  map[string]any{"name": "Al", "zip": "10115"},
		"note":  nil,
	}

	tests := []struct {
		name       string
		predicates Predicates
		want       bool
	}{
		{"empty matches everything", Predicates{}, true},
		{"exact string", Predicates{"name": "Alice"}, true},
		{"exact string mismatch", Predicates{"name": "Bob"}, false},
		{"wildcard prefix", Predicates{"name": "Al*"}, true},
		{"wildcard other prefix", Predicates{"name": "Bo*"}, false},
		{"wildcard is not a full match", Predicates{"name": "A*"}, true},
		{"wildcard regex", Predicates{"name": "[A-C]li*"}, true},
		{"wildcard anchored at start", Predicates{"name": "ice*"}, false},
		{"int against float", Predicates{"age": 30}, true},
		{"int64 against float", Predicates{"age": int64(30)}, true},
		{"number mismatch", Predicates{"age": 31}, false},
		{"string is not a number", Predicates{"age": "30"}, false},
		{"wildcard on number", Predicates{"age": "3*"}, true},
		{"bool", Predicates{"admin": true}, true},
		{"list stringified", Predicates{"tags": []string{"a", "b"}}, true},
		{"list order matters", Predicates{"tags": []string{"b", "a"}}, false},
		{"nested path", Predicates{"user__name": "Al"}, true},
		{"nested wildcard", Predicates{"user__zip": "101*"}, true},
		{"nested mapping is not a leaf", Predicates{"user": "Al"}, false},
		{"missing key", Predicates{"email": "a@b.c"}, false},
		{"missing key wildcard", Predicates{"email": "*"}, false},
		{"null", Predicates{"note": nil}, true},
		{"exact and wildcard together", Predicates{"name": "Al*", "age": 30}, true},
		{"all predicates must hold", Predicates{"name": "Al*", "age": 99}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := CompilePredicates(tt.predicates)
			if err != nil {
				t.Fatalf("CompilePredicates failed: %v", err)
			}
			if got := m.MatchDocument(doc); got != tt.want {
				t.Errorf("MatchDocument() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompilePredicates_InvalidPattern(t *testing.T) {
	_, err := CompilePredicates(Predicates{"name": "(unclosed*"})
	if !errors.Is(err, ErrInvalidPredicate) {
		t.Fatalf("expected ErrInvalidPredicate, got %v", err)
	}

	var ctxErr *ErrorWithContext
	if !errors.As(err, &ctxErr) {
		t.Fatal("expected ErrorWithContext")
	}
	if ctxErr.Context["key"] != "name" {
		t.Errorf("expected key in context, got %v", ctxErr.Context)
	}
}

func TestMatcher_Len(t *testing.T) {
	m, err := CompilePredicates(Predicates{"a": 1, "b": "x*"})
	if err != nil {
		t.Fatalf("CompilePredicates failed: %v", err)
	}
	if m.Len() != 2 {
		t.Errorf("expected 2 predicates, got %d", m.Len())
	}
}

func TestStringForm(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"x", "x"},
		{30.0, "30"},
		{1.5, "1.5"},
		{7, "7"},
		{true, "true"},
		{nil, "null"},
		{[]any{1.0}, "[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := stringForm(tt.in); got != tt.want {
				t.Errorf("stringForm(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
