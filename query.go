package tetherdb

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Query provides a fluent interface for reading documents.
//
// Predicates added with Where follow Filter semantics; Match adds an
// arbitrary test. Every condition must hold. Without Sort the results come
// in id order and the scan stops as soon as Limit is reached.
//
// Example:
//
//	docs, err := store.Query().
//	    Where("sensor", "t*").
//	    Match(func(d tetherdb.Document) bool { return d["value"].(float64) > 20 }).
//	    SortByField("value", false).
//	    Limit(10).
//	    All(ctx)
type Query struct {
	store      *Store
	predicates Predicates
	matchFuncs []func(Document) bool
	limit      int
	offset     int
	sortFunc   func(a, b Document) bool
	raw        bool
}

// Query creates a new query over every document
func (s *Store) Query() *Query {
	return &Query{
		store:      s,
		predicates: Predicates{},
		limit:      -1, // No limit by default
	}
}

// Where adds a predicate on a flattened key. A string value ending in "*"
// is matched as a pattern anchored at the start of the field.
func (q *Query) Where(key string, value any) *Query {
	q.predicates[key] = value
	return q
}

// Match adds a test on the presented document
func (q *Query) Match(fn func(doc Document) bool) *Query {
	q.matchFuncs = append(q.matchFuncs, fn)
	return q
}

// Limit sets the maximum number of results to return
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Offset sets the number of results to skip. Negative means none.
func (q *Query) Offset(n int) *Query {
	q.offset = max(n, 0)
	return q
}

// Sort orders the results. fn reports whether a comes before b.
func (q *Query) Sort(fn func(a, b Document) bool) *Query {
	q.sortFunc = fn
	return q
}

// SortByField orders the results by a flattened field, so nested fields use
// the "__" form. Numbers compare numerically and everything else by its
// string form. Documents without the field come last in id order.
func (q *Query) SortByField(field string, ascending bool) *Query {
	q.sortFunc = func(a, b Document) bool {
		va, okA := Flatten(a)[field]
		vb, okB := Flatten(b)[field]
		switch {
		case !okA:
			return false
		case !okB:
			return true
		}
		c := compareValues(va, vb)
		if ascending {
			return c < 0
		}
		return c > 0
	}
	return q
}

// Raw keeps timestamps as epoch seconds in the results and in matching
func (q *Query) Raw() *Query {
	q.raw = true
	return q
}

// All executes the query and returns every matching document
func (q *Query) All(ctx context.Context) (docs []Document, err error) {
	if err := q.store.ready(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { q.store.observe(OpQuery, start, err) }()

	if q.limit == 0 {
		return nil, nil
	}

	sorting := q.sortFunc != nil
	skipped := 0
	err = q.run(ctx, func(doc Document) bool {
		if sorting {
			docs = append(docs, doc)
			return true
		}
		// Apply offset
		if skipped < q.offset {
			skipped++
			return true
		}
		docs = append(docs, doc)
		return q.limit < 0 || len(docs) < q.limit
	})
	if err != nil {
		return nil, err
	}

	if sorting {
		sort.SliceStable(docs, func(i, j int) bool {
			return q.sortFunc(docs[i], docs[j])
		})
		docs = paginate(docs, q.offset, q.limit)
	}

	q.store.metrics.Histogram(MetricQueryResults, float64(len(docs)))
	q.store.logger.Debug("query executed",
		"predicates", len(q.predicates),
		"results", len(docs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return docs, nil
}

// First returns the first matching document, or ErrNoDocuments
func (q *Query) First(ctx context.Context) (Document, error) {
	limit := q.limit
	q.limit = 1
	docs, err := q.All(ctx)
	q.limit = limit
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, WithContext(ErrNoDocuments, map[string]interface{}{
			"predicates": q.predicates,
		})
	}
	return docs[0], nil
}

// Count returns the number of matching documents. Limit, Offset and Sort are ignored.
func (q *Query) Count(ctx context.Context) (int, error) {
	if err := q.store.ready(); err != nil {
		return 0, err
	}
	count := 0
	err := q.run(ctx, func(Document) bool {
		count++
		return true
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Each calls fn for every matching document in id order, honouring Offset
// and Limit. Sort is ignored. fn may modify the store; an error from fn stops
// the iteration and is returned.
func (q *Query) Each(ctx context.Context, fn func(doc Document) error) error {
	if err := q.store.ready(); err != nil {
		return err
	}
	if q.limit == 0 {
		return nil
	}

	var (
		skipped   int
		processed int
		fnErr     error
	)
	err := q.run(ctx, func(doc Document) bool {
		if skipped < q.offset {
			skipped++
			return true
		}
		if fnErr = fn(doc); fnErr != nil {
			return false
		}
		processed++
		return q.limit < 0 || processed < q.limit
	})
	if err != nil {
		return err
	}
	return fnErr
}

// run scans the store and calls yield with every presented document that
// passes all conditions, until yield returns false.
func (q *Query) run(ctx context.Context, yield func(Document) bool) error {
	matcher, err := CompilePredicates(q.predicates)
	if err != nil {
		return err
	}
	var decodeErr error
	err = q.store.scan(ctx, func(id string, data []byte) bool {
		doc, err := decodeDocument(id, data)
		if err != nil {
			decodeErr = err
			return false
		}
		doc = q.store.present(id, doc, q.raw)
		if !matcher.MatchDocument(doc) {
			return true
		}
		for _, fn := range q.matchFuncs {
			if !fn(doc) {
				return true
			}
		}
		return yield(doc)
	})
	if err != nil {
		return err
	}
	return decodeErr
}

// paginate applies offset and limit to an already sorted slice
func paginate(docs []Document, offset, limit int) []Document {
	offset = max(offset, 0)
	if offset >= len(docs) {
		return nil
	}
	docs = docs[offset:]
	if limit >= 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs
}

// compareValues orders two field values. Numbers compare numerically;
// anything else, or a number against a non-number, by string form.
func compareValues(a, b any) int {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(stringForm(normalizeValue(a)), stringForm(normalizeValue(b)))
}
