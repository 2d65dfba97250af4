package tetherdb

import (
	"encoding/json"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Wildcard marks a predicate value as a prefix pattern when it is the last character.
const Wildcard = "*"

// Predicates maps flattened attribute paths to expected values.
// A string value ending in Wildcard is a pattern; anything else is compared exactly.
type Predicates map[string]any

type predicate struct {
	key     string
	pattern *regexp.Regexp // nil for exact predicates
	want    any
}

// Matcher is a compiled set of predicates. A document matches when every
// predicate matches its flattened view.
type Matcher struct {
	predicates []predicate
}

// CompilePredicates compiles p into a Matcher.
//
// For a wildcard value the text before the trailing Wildcard is a regular
// expression matched at the start of the attribute's string form. An invalid
// expression is ErrInvalidPredicate. Exact values compare numbers by value
// and sequences by their StringifySequence text.
func CompilePredicates(p Predicates) (*Matcher, error) {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	m := &Matcher{predicates: make([]predicate, 0, len(keys))}
	for _, key := range keys {
		value := p[key]

		if s, ok := value.(string); ok && strings.HasSuffix(s, Wildcard) {
			expr := strings.TrimSuffix(s, Wildcard)
			re, err := regexp.Compile("^(?:" + expr + ")")
			if err != nil {
				return nil, WithContext(ErrInvalidPredicate, map[string]interface{}{
					"key":     key,
					"pattern": s,
					"error":   err.Error(),
				})
			}
			m.predicates = append(m.predicates, predicate{key: key, pattern: re})
			continue
		}

		m.predicates = append(m.predicates, predicate{key: key, want: normalizeValue(value)})
	}
	return m, nil
}

// Len returns the number of compiled predicates
func (m *Matcher) Len() int {
	return len(m.predicates)
}

// Match reports whether the flattened view satisfies every predicate.
func (m *Matcher) Match(flat map[string]any) bool {
	for _, p := range m.predicates {
		got, ok := flat[p.key]
		if !ok {
			return false
		}
		if p.pattern != nil {
			if !p.pattern.MatchString(stringForm(got)) {
				return false
			}
			continue
		}
		if !valuesEqual(p.want, normalizeValue(got)) {
			return false
		}
	}
	return true
}

// MatchDocument flattens doc and matches it.
func (m *Matcher) MatchDocument(doc Document) bool {
	return m.Match(Flatten(doc))
}

// normalizeValue folds numbers to float64 and sequences to their text form
func normalizeValue(v any) any {
	if f, ok := toFloat(v); ok {
		return f
	}
	if isSequence(v) {
		return StringifySequence(v)
	}
	return v
}

func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return reflect.DeepEqual(a, b)
}

// stringForm is the text a wildcard pattern is matched against.
func stringForm(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	}
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	if isSequence(v) {
		return StringifySequence(v)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
