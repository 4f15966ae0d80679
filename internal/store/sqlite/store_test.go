package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arasuji/arasuji-server/internal/store"
	"github.com/arasuji/arasuji-server/internal/store/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Backend {
		return newTestStore(t)
	})
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var name string
	err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='documents'").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "documents", name)
}

func TestOpen_ReappliesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Set(t.Context(), "posts/p1", []byte(`{"body":"x"}`)))
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()

	data, err := s.Get(t.Context(), "posts/p1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"body":"x"}`, string(data))
}

func TestGroupColumn(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set(t.Context(), "users/u1/followers/u2", []byte(`{}`)))

	var grp string
	err := s.db.QueryRow("SELECT grp FROM documents WHERE collection = ?", "users/u1/followers").Scan(&grp)
	require.NoError(t, err)
	assert.Equal(t, "followers", grp)
}
