package store

import (
	"context"
	"encoding/json/v2"
	"encoding/json/jsontext"
	"errors"
	"fmt"
	"iter"
	"slices"
)

// Collection provides typed access to the documents of one collection.
type Collection[T any] struct {
	backend Backend
	path    string
}

// NewCollection returns a typed handle for the collection at path.
func NewCollection[T any](b Backend, path string) *Collection[T] {
	return &Collection[T]{backend: b, path: path}
}

// Path returns the collection path.
func (c *Collection[T]) Path() string { return c.path }

// DocPath returns the path of the document with the given id.
func (c *Collection[T]) DocPath(docID string) string { return Doc(c.path, docID) }

// Identified is implemented by document types that carry their own id.
// Decoded documents get the id from their key when the stored body lacks one.
type Identified interface {
	SetDocID(id string)
}

func withID[T any](v *T, docID string) *T {
	if x, ok := any(v).(Identified); ok {
		x.SetDocID(docID)
	}
	return v
}

// Get returns the document with the given id, or ErrNotFound.
func (c *Collection[T]) Get(ctx context.Context, docID string) (*T, error) {
	data, err := c.backend.Get(ctx, c.DocPath(docID))
	if err != nil {
		return nil, err
	}
	v, err := Decode[T](data)
	if err != nil {
		return nil, err
	}
	return withID(v, docID), nil
}

// Exists reports whether the document exists.
func (c *Collection[T]) Exists(ctx context.Context, docID string) (bool, error) {
	_, err := c.backend.Get(ctx, c.DocPath(docID))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Set writes v as the document with the given id.
func (c *Collection[T]) Set(ctx context.Context, docID string, v *T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	return c.backend.Set(ctx, c.DocPath(docID), data)
}

// Delete removes the document with the given id.
func (c *Collection[T]) Delete(ctx context.Context, docID string) error {
	return c.backend.Delete(ctx, c.DocPath(docID))
}

// Count returns the number of documents in the collection.
func (c *Collection[T]) Count(ctx context.Context) (int, error) {
	return c.backend.Count(ctx, c.path)
}

// All yields every document in id order. Documents that fail to decode are
// reported as errors and iteration continues only if the consumer keeps going.
func (c *Collection[T]) All(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		for doc, err := range c.backend.List(ctx, c.path) {
			if err != nil {
				yield(nil, err)
				return
			}
			v, err := Decode[T](doc.Data)
			if err != nil {
				err = fmt.Errorf("decode %s: %w", doc.Path, err)
			} else {
				v = withID(v, doc.ID)
			}
			if !yield(v, err) {
				return
			}
		}
	}
}

// IDs returns the ids of every document in the collection.
func (c *Collection[T]) IDs(ctx context.Context) ([]string, error) {
	var ids []string
	for doc, err := range c.backend.List(ctx, c.path) {
		if err != nil {
			return nil, err
		}
		ids = append(ids, doc.ID)
	}
	return ids, nil
}

// GetMany fetches documents by id in chunks of InQueryLimit. Missing ids are
// absent from the result; duplicates and empty ids are ignored.
func (c *Collection[T]) GetMany(ctx context.Context, ids []string) (map[string]*T, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, docID := range ids {
		if docID == "" {
			continue
		}
		if _, ok := seen[docID]; ok {
			continue
		}
		seen[docID] = struct{}{}
		unique = append(unique, docID)
	}

	out := make(map[string]*T, len(unique))
	for chunk := range slices.Chunk(unique, InQueryLimit) {
		paths := make([]string, len(chunk))
		for i, docID := range chunk {
			paths[i] = c.DocPath(docID)
		}
		found, err := c.backend.GetAll(ctx, paths)
		if err != nil {
			return nil, err
		}
		for i, p := range paths {
			data, ok := found[p]
			if !ok {
				continue
			}
			v, err := Decode[T](data)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", p, err)
			}
			out[chunk[i]] = withID(v, chunk[i])
		}
	}
	return out, nil
}

// Query starts a filtered listing of the collection.
func (c *Collection[T]) Query() *Query[T] {
	return &Query[T]{coll: c}
}

// Query is an equality/order/limit listing evaluated against the collection.
type Query[T any] struct {
	coll    *Collection[T]
	filters []func(*T) bool
	order   func(a, b *T) int
	limit   int
}

// Where keeps documents for which pred returns true.
func (q *Query[T]) Where(pred func(*T) bool) *Query[T] {
	q.filters = append(q.filters, pred)
	return q
}

// OrderBy sorts results with cmp. Sorting is stable with respect to id order.
func (q *Query[T]) OrderBy(cmp func(a, b *T) int) *Query[T] {
	q.order = cmp
	return q
}

// Limit caps the number of results. Zero means no limit.
func (q *Query[T]) Limit(n int) *Query[T] {
	q.limit = n
	return q
}

// Run executes the query.
func (q *Query[T]) Run(ctx context.Context) ([]*T, error) {
	var out []*T
	for v, err := range q.coll.All(ctx) {
		if err != nil {
			return nil, err
		}
		if !q.matches(v) {
			continue
		}
		out = append(out, v)
		if q.order == nil && q.limit > 0 && len(out) == q.limit {
			return out, nil
		}
	}
	if q.order != nil {
		slices.SortStableFunc(out, q.order)
	}
	if q.limit > 0 && len(out) > q.limit {
		out = out[:q.limit]
	}
	return out, nil
}

// First returns the first match, or ErrNotFound.
func (q *Query[T]) First(ctx context.Context) (*T, error) {
	res, err := q.Limit(1).Run(ctx)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, ErrNotFound
	}
	return res[0], nil
}

func (q *Query[T]) matches(v *T) bool {
	for _, f := range q.filters {
		if !f(v) {
			return false
		}
	}
	return true
}

// Decode unmarshals a stored document.
func Decode[T any](data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return &v, nil
}

// Encode marshals a document for storage.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return data, nil
}

// GetTx reads and decodes a document inside a transaction.
func GetTx[T any](tx Tx, path string) (*T, error) {
	data, err := tx.Get(path)
	if err != nil {
		return nil, err
	}
	v, err := Decode[T](data)
	if err != nil {
		return nil, err
	}
	if _, docID, err := SplitDoc(path); err == nil {
		v = withID(v, docID)
	}
	return v, nil
}

// ExistsTx reports whether a document exists, registering the read with the transaction.
func ExistsTx(tx Tx, path string) (bool, error) {
	_, err := tx.Get(path)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// SetTx encodes and writes a document inside a transaction.
func SetTx(tx Tx, path string, v any) error {
	data, err := Encode(v)
	if err != nil {
		return err
	}
	return tx.Set(path, data)
}

// Patch replaces top-level fields of a stored JSON object and leaves every
// other field byte-for-byte intact.
func Patch(data []byte, fields map[string]any) ([]byte, error) {
	doc := map[string]jsontext.Value{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("patch: decode document: %w", err)
		}
	}
	for name, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("patch: encode field %q: %w", name, err)
		}
		doc[name] = raw
	}
	return json.Marshal(doc, json.Deterministic(true))
}

// PatchTx applies Patch to a document inside a transaction. A missing
// document is created with just the given fields.
func PatchTx(tx Tx, path string, fields map[string]any) error {
	data, err := tx.Get(path)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	patched, err := Patch(data, fields)
	if err != nil {
		return err
	}
	return tx.Set(path, patched)
}
