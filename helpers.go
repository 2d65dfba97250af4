package tetherdb

import (
	"context"
	"encoding/json"
	"fmt"
)

// Decode converts a document into T through its JSON form, so T's json tags apply.
//
// Example:
//
//	type Reading struct {
//	    ID     string  `json:"_id"`
//	    Sensor string  `json:"sensor"`
//	    Value  float64 `json:"value"`
//	}
//	r, err := tetherdb.Decode[Reading](doc)
func Decode[T any](doc Document) (*T, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("decode document %s into %T: %w", doc.ID(), item, err)
	}
	return &item, nil
}

// ReadAs reads the document stored under id and decodes it into T
func ReadAs[T any](ctx context.Context, store *Store, id string, opts ...ReadOption) (*T, error) {
	doc, err := store.Read(ctx, id, opts...)
	if err != nil {
		return nil, err
	}
	return Decode[T](doc)
}

// BatchReadAs reads and decodes the documents with the given ids, in input order.
// Missing ids are skipped.
//
// Example:
//
//	readings, err := tetherdb.BatchReadAs[Reading](ctx, store, ids)
func BatchReadAs[T any](ctx context.Context, store *Store, ids []string, opts ...ReadOption) ([]*T, error) {
	if len(ids) == 0 {
		return []*T{}, nil
	}

	docs, err := store.ReadBatch(ctx, ids, opts...)
	if err != nil {
		return nil, err
	}

	results := make([]*T, 0, len(docs))
	for _, id := range ids {
		doc, ok := docs[id]
		if !ok {
			continue // Skip missing items
		}
		item, err := Decode[T](doc)
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, nil
}

// QueryAs runs q and decodes every result into T
func QueryAs[T any](ctx context.Context, q *Query) ([]*T, error) {
	docs, err := q.All(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*T, 0, len(docs))
	for _, doc := range docs {
		item, err := Decode[T](doc)
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, nil
}
