// Package store defines the hierarchical document store used by the server and
// its Badger implementation.
//
// Documents are JSON values addressed by slash-separated paths such as
// "posts/{postId}/comments/{commentId}". A collection path has an odd number of
// segments and a document path an even number. The contract mirrors a managed
// document database: point reads, bounded multi-gets, collection and
// collection-group listing, count aggregation, read-then-write transactions,
// and bounded non-transactional batches.
package store

import (
	"context"
	"iter"
)

// Limits shared by every backend.
const (
	// InQueryLimit is the maximum number of keys accepted by a single multi-get.
	InQueryLimit = 10
	// BatchLimit is the maximum number of writes committed by a single batch.
	BatchLimit = 450
)

// Document is a raw document returned by listings.
type Document struct {
	Path       string
	Collection string
	ID         string
	Data       []byte
}

// Tx is the view of the store inside a transaction. Reads observe a
// consistent snapshot; writes become visible atomically on commit.
type Tx interface {
	// Get returns ErrNotFound when the document does not exist.
	Get(path string) ([]byte, error)
	Set(path string, data []byte) error
	Delete(path string) error
}

// Batch accumulates writes and commits them together without reading.
type Batch interface {
	// Set returns ErrBatchTooLarge once BatchLimit operations are queued.
	Set(path string, data []byte) error
	Delete(path string) error
	Len() int
	// Commit applies queued writes and resets the batch.
	Commit(ctx context.Context) error
}

// Backend is a document store implementation.
type Backend interface {
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, path string) ([]byte, error)
	// GetAll fetches up to InQueryLimit documents. Missing documents are omitted.
	GetAll(ctx context.Context, paths []string) (map[string][]byte, error)
	Set(ctx context.Context, path string, data []byte) error
	Delete(ctx context.Context, path string) error

	// List yields the documents directly inside collection, ordered by id.
	List(ctx context.Context, collection string) iter.Seq2[Document, error]
	// ListGroup yields every document in any collection named group.
	ListGroup(ctx context.Context, group string) iter.Seq2[Document, error]
	Count(ctx context.Context, collection string) (int, error)

	// RunTransaction runs fn inside a serializable transaction. If a
	// concurrent writer touched anything fn read, the commit fails with
	// ErrAborted and nothing is written. There is no automatic retry.
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
	NewBatch() Batch

	Close() error
}
