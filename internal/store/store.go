package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const (
	docPrefix = "doc:"
	idSep     = "|"
)

// Store is the Badger-backed document store.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ Backend = (*Store)(nil)

// New opens (or creates) a Badger database at path.
func New(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup
	return open(opts, logger)
}

// NewInMemory opens a Badger database that lives only in memory.
func NewInMemory(logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", opts.Dir, "in_memory", opts.InMemory)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

func docKey(path string) ([]byte, error) {
	collection, docID, err := SplitDoc(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, path)
	}
	return []byte(docPrefix + collection + idSep + docID), nil
}

func collectionPrefix(collection string) ([]byte, error) {
	if !ValidCollectionPath(collection) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, collection)
	}
	return []byte(docPrefix + collection + idSep), nil
}

// parseKey reverses docKey.
func parseKey(key []byte) (collection, docID string, ok bool) {
	rest, found := strings.CutPrefix(string(key), docPrefix)
	if !found {
		return "", "", false
	}
	i := strings.LastIndex(rest, idSep)
	if i < 0 {
		return "", "", false
	}
	return rest[:i], rest[i+len(idSep):], true
}

// mapErr converts Badger errors into store errors.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return ErrNotFound
	case errors.Is(err, badger.ErrConflict):
		return ErrAborted.WithCause(err)
	case errors.Is(err, badger.ErrDBClosed), errors.Is(err, badger.ErrBlockedWrites):
		return ErrUnavailable.WithCause(err)
	default:
		return err
	}
}

// Get returns the document at path.
func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := docKey(path)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return data, nil
}

// GetAll fetches up to InQueryLimit documents in one read transaction.
func (s *Store) GetAll(ctx context.Context, paths []string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(paths) > InQueryLimit {
		return nil, ErrTooManyKeys
	}

	keys := make([][]byte, len(paths))
	for i, p := range paths {
		key, err := docKey(p)
		if err != nil {
			return nil, err
		}
		keys[i] = key
	}

	out := make(map[string][]byte, len(paths))
	err := s.db.View(func(txn *badger.Txn) error {
		for i, key := range keys {
			item, err := txn.Get(key)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out[paths[i]] = data
		}
		return nil
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

// Set writes the document at path, replacing any previous value.
func (s *Store) Set(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := docKey(path)
	if err != nil {
		return err
	}
	return mapErr(s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	}))
}

// Delete removes the document at path. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := docKey(path)
	if err != nil {
		return err
	}
	return mapErr(s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	}))
}

// List yields documents directly inside collection.
func (s *Store) List(ctx context.Context, collection string) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		prefix, err := collectionPrefix(collection)
		if err != nil {
			yield(Document{}, err)
			return
		}
		s.scan(ctx, prefix, func(string) bool { return true }, yield)
	}
}

// ListGroup yields every document in a collection whose last segment is group.
func (s *Store) ListGroup(ctx context.Context, group string) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		s.scan(ctx, []byte(docPrefix), func(collection string) bool {
			return GroupOf(collection) == group
		}, yield)
	}
}

// scan iterates keys under prefix and yields values whose collection passes match.
func (s *Store) scan(ctx context.Context, prefix []byte, match func(collection string) bool, yield func(Document, error) bool) {
	stopped := false
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			collection, docID, ok := parseKey(item.Key())
			if !ok || !match(collection) {
				continue
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			doc := Document{
				Path:       Doc(collection, docID),
				Collection: collection,
				ID:         docID,
				Data:       data,
			}
			if !yield(doc, nil) {
				stopped = true
				return nil
			}
		}
		return nil
	})
	if err != nil && !stopped {
		yield(Document{}, mapErr(err))
	}
}

// Count returns the number of documents directly inside collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	prefix, err := collectionPrefix(collection)
	if err != nil {
		return 0, err
	}

	count := 0
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, mapErr(err)
}

// RunTransaction runs fn in a read-write Badger transaction. Badger tracks
// every key read through the transaction and rejects the commit with
// ErrConflict when another transaction committed a write to one of them.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return fn(&badgerTx{txn: txn})
	})
	return mapErr(err)
}

type badgerTx struct {
	txn *badger.Txn
}

func (t *badgerTx) Get(path string) ([]byte, error) {
	key, err := docKey(path)
	if err != nil {
		return nil, err
	}
	item, err := t.txn.Get(key)
	if err != nil {
		return nil, mapErr(err)
	}
	return item.ValueCopy(nil)
}

func (t *badgerTx) Set(path string, data []byte) error {
	key, err := docKey(path)
	if err != nil {
		return err
	}
	return t.txn.Set(key, data)
}

func (t *badgerTx) Delete(path string) error {
	key, err := docKey(path)
	if err != nil {
		return err
	}
	return t.txn.Delete(key)
}

// NewBatch returns a batch backed by Badger's WriteBatch.
func (s *Store) NewBatch() Batch {
	return &badgerBatch{store: s}
}

type batchOp struct {
	key    []byte
	data   []byte
	delete bool
}

type badgerBatch struct {
	store *Store
	ops   []batchOp
}

func (b *badgerBatch) queue(path string, data []byte, del bool) error {
	if len(b.ops) >= BatchLimit {
		return ErrBatchTooLarge
	}
	key, err := docKey(path)
	if err != nil {
		return err
	}
	b.ops = append(b.ops, batchOp{key: key, data: data, delete: del})
	return nil
}

func (b *badgerBatch) Set(path string, data []byte) error { return b.queue(path, data, false) }

func (b *badgerBatch) Delete(path string) error { return b.queue(path, nil, true) }

func (b *badgerBatch) Len() int { return len(b.ops) }

func (b *badgerBatch) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(b.ops) == 0 {
		return nil
	}

	wb := b.store.db.NewWriteBatch()
	flushed := false
	defer func() {
		if !flushed {
			wb.Cancel()
		}
	}()

	for _, op := range b.ops {
		var err error
		if op.delete {
			err = wb.Delete(op.key)
		} else {
			err = wb.Set(op.key, op.data)
		}
		if err != nil {
			return mapErr(fmt.Errorf("batch write: %w", err))
		}
	}
	flushed = true
	if err := wb.Flush(); err != nil {
		return mapErr(fmt.Errorf("flush batch: %w", err))
	}

	b.ops = b.ops[:0]
	return nil
}
