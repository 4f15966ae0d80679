package store

import (
	"context"
	"fmt"
	"log/slog"
)

// BatchWriter queues writes and commits them in batches of BatchLimit.
// Writes are not atomic across batches.
type BatchWriter struct {
	backend   Backend
	batch     Batch
	logger    *slog.Logger
	committed int
}

// NewBatchWriter creates a writer that commits automatically whenever a batch fills up.
func NewBatchWriter(b Backend, logger *slog.Logger) *BatchWriter {
	return &BatchWriter{backend: b, batch: b.NewBatch(), logger: logger}
}

// Set queues an encoded write of v at path.
func (w *BatchWriter) Set(ctx context.Context, path string, v any) error {
	data, err := Encode(v)
	if err != nil {
		return err
	}
	return w.SetRaw(ctx, path, data)
}

// SetRaw queues a write of already encoded data.
func (w *BatchWriter) SetRaw(ctx context.Context, path string, data []byte) error {
	if err := w.makeRoom(ctx); err != nil {
		return err
	}
	return w.batch.Set(path, data)
}

// Delete queues a delete of path.
func (w *BatchWriter) Delete(ctx context.Context, path string) error {
	if err := w.makeRoom(ctx); err != nil {
		return err
	}
	return w.batch.Delete(path)
}

func (w *BatchWriter) makeRoom(ctx context.Context) error {
	if w.batch.Len() < BatchLimit {
		return nil
	}
	if err := w.Flush(ctx); err != nil {
		return fmt.Errorf("auto flush: %w", err)
	}
	return nil
}

// Flush commits any pending writes.
func (w *BatchWriter) Flush(ctx context.Context) error {
	n := w.batch.Len()
	if n == 0 {
		return nil
	}
	if err := w.batch.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	w.committed += n

	if w.logger != nil {
		w.logger.LogAttrs(ctx, slog.LevelDebug, "batch flushed",
			slog.Int("count", n),
			slog.Int("total", w.committed),
		)
	}
	return nil
}

// Pending returns the number of writes not yet committed.
func (w *BatchWriter) Pending() int { return w.batch.Len() }

// Committed returns the number of writes committed so far.
func (w *BatchWriter) Committed() int { return w.committed }

// DeleteCollection deletes every document directly inside collection in
// batches of BatchLimit and returns how many were removed. Subcollections of
// those documents are left untouched.
func DeleteCollection(ctx context.Context, b Backend, collection string, logger *slog.Logger) (int, error) {
	var paths []string
	for doc, err := range b.List(ctx, collection) {
		if err != nil {
			return 0, err
		}
		paths = append(paths, doc.Path)
	}

	w := NewBatchWriter(b, logger)
	for _, p := range paths {
		if err := w.Delete(ctx, p); err != nil {
			return w.Committed(), err
		}
	}
	if err := w.Flush(ctx); err != nil {
		return w.Committed(), err
	}
	return w.Committed(), nil
}
