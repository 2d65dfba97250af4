package tetherdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// BatchOperation is the outcome of one item of a batch
type BatchOperation struct {
	ID    string
	Error error
}

// The engines are driven by a single caller, so batches run their items in
// order. Every write and delete is flushed on its own, exactly as the single
// item operations are.

// WriteBatch writes every document and returns one result per document, in
// input order. Once ctx is done the remaining items fail with ctx.Err().
func (s *Store) WriteBatch(ctx context.Context, docs []any, opts ...WriteOption) []BatchOperation {
	results := make([]BatchOperation, 0, len(docs))
	s.recordBatch("write", len(docs))

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			results = append(results, BatchOperation{Error: err})
			continue
		}
		id, err := s.Write(ctx, doc, opts...)
		results = append(results, BatchOperation{ID: id, Error: err})
	}
	return results
}

// ReadBatch reads the documents with the given ids.
// Unknown ids are skipped; check the returned map for missing ids.
func (s *Store) ReadBatch(ctx context.Context, ids []string, opts ...ReadOption) (map[string]Document, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	s.recordBatch("read", len(ids))

	results := make(map[string]Document, len(ids))
	for _, id := range ids {
		doc, err := s.Read(ctx, id, opts...)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		results[id] = doc
	}
	return results, nil
}

// DeleteBatch deletes the documents with the given ids and returns one
// result per id, in input order.
func (s *Store) DeleteBatch(ctx context.Context, ids []string) []BatchOperation {
	results := make([]BatchOperation, 0, len(ids))
	s.recordBatch("delete", len(ids))

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			results = append(results, BatchOperation{ID: id, Error: err})
			continue
		}
		_, err := s.Delete(ctx, id)
		results = append(results, BatchOperation{ID: id, Error: err})
	}
	return results
}

// ExistsBatch reports which of the ids are stored
func (s *Store) ExistsBatch(ctx context.Context, ids []string) (map[string]bool, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	results := make(map[string]bool, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := s.kv.Has([]byte(id))
		if err != nil {
			return nil, fmt.Errorf("has %s: %w", id, err)
		}
		results[id] = ok
	}
	return results, nil
}

func (s *Store) recordBatch(op string, n int) {
	if s.ready() != nil {
		return
	}
	s.metrics.Histogram(MetricBatchSize, float64(n), "operation", op)
}

// BatchOperationResult summarizes the results of a batch operation
type BatchOperationResult struct {
	Total      int
	Successful int
	Failed     int
	Errors     []BatchOperation
}

// AnalyzeBatchResults counts the successes and failures of a batch
func AnalyzeBatchResults(operations []BatchOperation) *BatchOperationResult {
	result := &BatchOperationResult{
		Total:  len(operations),
		Errors: make([]BatchOperation, 0),
	}

	for _, op := range operations {
		if op.Error == nil {
			result.Successful++
		} else {
			result.Failed++
			result.Errors = append(result.Errors, op)
		}
	}

	return result
}

// BatchWriter buffers documents and writes them in batches
type BatchWriter struct {
	store     *Store
	items     []any
	ids       []string
	batchSize int
	opts      []WriteOption
	mu        sync.Mutex
}

// NewBatchWriter creates a batch writer that writes every batchSize documents
func (s *Store) NewBatchWriter(batchSize int, opts ...WriteOption) *BatchWriter {
	if batchSize < 1 {
		batchSize = 1
	}
	return &BatchWriter{
		store:     s,
		batchSize: batchSize,
		opts:      opts,
	}
}

// Add buffers doc and writes the batch once it is full
func (bw *BatchWriter) Add(ctx context.Context, doc any) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	bw.items = append(bw.items, doc)

	if len(bw.items) >= bw.batchSize {
		return bw.flushLocked(ctx)
	}

	return nil
}

// Flush writes all pending documents
func (bw *BatchWriter) Flush(ctx context.Context) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return bw.flushLocked(ctx)
}

// IDs returns the ids of every document written so far, in write order
func (bw *BatchWriter) IDs() []string {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return append([]string(nil), bw.ids...)
}

func (bw *BatchWriter) flushLocked(ctx context.Context) error {
	if len(bw.items) == 0 {
		return nil
	}

	results := bw.store.WriteBatch(ctx, bw.items, bw.opts...)
	analysis := AnalyzeBatchResults(results)
	for _, r := range results {
		if r.Error == nil {
			bw.ids = append(bw.ids, r.ID)
		}
	}

	// Clear the batch
	bw.items = nil

	if analysis.Failed > 0 {
		return fmt.Errorf("batch write failed: %d/%d operations failed: %w",
			analysis.Failed, analysis.Total, analysis.Errors[0].Error)
	}

	return nil
}
