// Package sqlite implements store.Backend on SQLite using the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/arasuji/arasuji-server/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Per-connection settings. Transactions begin IMMEDIATE so that a
// read-then-write transaction holds the write lock from its first read.
var pragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

// Store is the SQLite-backed document store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ store.Backend = (*Store)(nil)

// Open creates or opens a SQLite document store at path and applies the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	params := make([]string, 0, len(pragmas)+1)
	for _, p := range pragmas {
		params = append(params, "_pragma="+p)
	}
	params = append(params, "_txlock=immediate")

	db, err := sql.Open("sqlite", path+"?"+strings.Join(params, "&"))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	if logger != nil {
		logger.Info("SQLite database opened successfully", "path", path)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return store.ErrAborted.WithCause(err)
		case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_FULL:
			return store.ErrUnavailable.WithCause(err)
		}
	}
	if errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "database is closed") {
		return store.ErrUnavailable.WithCause(err)
	}
	return err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func get(ctx context.Context, q queryer, path string) ([]byte, error) {
	collection, docID, err := store.SplitDoc(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, path)
	}
	var data []byte
	err = q.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`,
		collection, docID,
	).Scan(&data)
	if err != nil {
		return nil, mapErr(err)
	}
	return data, nil
}

func set(ctx context.Context, q queryer, path string, data []byte) error {
	collection, docID, err := store.SplitDoc(path)
	if err != nil {
		return fmt.Errorf("%w: %q", err, path)
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO documents (collection, id, grp, data, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, docID, store.GroupOf(collection), data, now(),
	)
	return mapErr(err)
}

func del(ctx context.Context, q queryer, path string) error {
	collection, docID, err := store.SplitDoc(path)
	if err != nil {
		return fmt.Errorf("%w: %q", err, path)
	}
	_, err = q.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, docID)
	return mapErr(err)
}

// Get returns the document at path.
func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	return get(ctx, s.db, path)
}

// GetAll fetches up to store.InQueryLimit documents.
func (s *Store) GetAll(ctx context.Context, paths []string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(paths) > store.InQueryLimit {
		return nil, store.ErrTooManyKeys
	}
	if len(paths) == 0 {
		return map[string][]byte{}, nil
	}

	conds := make([]string, 0, len(paths))
	args := make([]any, 0, len(paths)*2)
	for _, p := range paths {
		collection, docID, err := store.SplitDoc(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, p)
		}
		conds = append(conds, "(collection = ? AND id = ?)")
		args = append(args, collection, docID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT collection, id, data FROM documents WHERE `+strings.Join(conds, " OR "), args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := make(map[string][]byte, len(paths))
	for rows.Next() {
		var collection, docID string
		var data []byte
		if err := rows.Scan(&collection, &docID, &data); err != nil {
			return nil, mapErr(err)
		}
		out[store.Doc(collection, docID)] = data
	}
	return out, mapErr(rows.Err())
}

// Set writes the document at path.
func (s *Store) Set(ctx context.Context, path string, data []byte) error {
	return set(ctx, s.db, path, data)
}

// Delete removes the document at path.
func (s *Store) Delete(ctx context.Context, path string) error {
	return del(ctx, s.db, path)
}

// List yields documents directly inside collection, ordered by id.
func (s *Store) List(ctx context.Context, collection string) iter.Seq2[store.Document, error] {
	return func(yield func(store.Document, error) bool) {
		if !store.ValidCollectionPath(collection) {
			yield(store.Document{}, fmt.Errorf("%w: %q", store.ErrInvalidPath, collection))
			return
		}
		s.scan(ctx, yield,
			`SELECT collection, id, data FROM documents WHERE collection = ? ORDER BY id`, collection)
	}
}

// ListGroup yields every document in a collection whose last segment is group.
func (s *Store) ListGroup(ctx context.Context, group string) iter.Seq2[store.Document, error] {
	return func(yield func(store.Document, error) bool) {
		s.scan(ctx, yield,
			`SELECT collection, id, data FROM documents WHERE grp = ? ORDER BY collection, id`, group)
	}
}

// scan materializes the result set before yielding so that consumers can
// issue further queries without holding a pooled connection.
func (s *Store) scan(ctx context.Context, yield func(store.Document, error) bool, query string, args ...any) {
	docs, err := s.collect(ctx, query, args...)
	if err != nil {
		yield(store.Document{}, err)
		return
	}
	for _, d := range docs {
		if !yield(d, nil) {
			return
		}
	}
}

func (s *Store) collect(ctx context.Context, query string, args ...any) ([]store.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		var d store.Document
		if err := rows.Scan(&d.Collection, &d.ID, &d.Data); err != nil {
			return nil, mapErr(err)
		}
		d.Path = store.Doc(d.Collection, d.ID)
		docs = append(docs, d)
	}
	return docs, mapErr(rows.Err())
}

// Count returns the number of documents directly inside collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	if !store.ValidCollectionPath(collection) {
		return 0, fmt.Errorf("%w: %q", store.ErrInvalidPath, collection)
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&n)
	return n, mapErr(err)
}

// RunTransaction runs fn inside a BEGIN IMMEDIATE transaction. Writers are
// serialized by SQLite; a writer that cannot get the lock within the busy
// timeout fails with store.ErrAborted.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(fmt.Errorf("begin transaction: %w", err))
	}

	if err := fn(&sqliteTx{ctx: ctx, tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return mapErr(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

type sqliteTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *sqliteTx) Get(path string) ([]byte, error) { return get(t.ctx, t.tx, path) }

func (t *sqliteTx) Set(path string, data []byte) error { return set(t.ctx, t.tx, path, data) }

func (t *sqliteTx) Delete(path string) error { return del(t.ctx, t.tx, path) }

// NewBatch returns a batch that commits in one transaction.
func (s *Store) NewBatch() store.Batch {
	return &batch{store: s}
}

type batchOp struct {
	path   string
	data   []byte
	delete bool
}

type batch struct {
	store *Store
	ops   []batchOp
}

func (b *batch) queue(op batchOp) error {
	if len(b.ops) >= store.BatchLimit {
		return store.ErrBatchTooLarge
	}
	if !store.ValidDocPath(op.path) {
		return fmt.Errorf("%w: %q", store.ErrInvalidPath, op.path)
	}
	b.ops = append(b.ops, op)
	return nil
}

func (b *batch) Set(path string, data []byte) error {
	return b.queue(batchOp{path: path, data: data})
}

func (b *batch) Delete(path string) error {
	return b.queue(batchOp{path: path, delete: true})
}

func (b *batch) Len() int { return len(b.ops) }

func (b *batch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return ctx.Err()
	}
	err := b.store.RunTransaction(ctx, func(tx store.Tx) error {
		for _, op := range b.ops {
			var err error
			if op.delete {
				err = tx.Delete(op.path)
			} else {
				err = tx.Set(op.path, op.data)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.ops = b.ops[:0]
	return nil
}
