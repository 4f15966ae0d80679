package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arasuji/arasuji-server/internal/domain"
)

// setupTestIndex creates a temporary search index for testing.
func setupTestIndex(t *testing.T) *SearchIndex {
	t.Helper()

	index, err := NewSearchIndex(Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

func strPtr(s string) *string { return &s }

func testPost(id, title, body, genre string, tags ...string) *domain.Post {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Post{
		ID:         id,
		AuthorID:   "user-1",
		AuthorName: "たろう",
		Title:      strPtr(title),
		Body:       body,
		Genre:      genre,
		Tags:       tags,
		CreatedAt:  &created,
	}
}

func TestNewSearchIndex(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearchIndex_IndexPost(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.IndexPost(ctx, testPost("post-1", "魔王を倒す勇者", "旅の物語", "ファンタジー")))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	// Indexing the same id again replaces the document.
	require.NoError(t, index.IndexPost(ctx, testPost("post-1", "魔王の娘", "旅の物語", "ファンタジー")))
	count, err = index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestSearchIndex_DeletePost(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.IndexPost(ctx, testPost("post-1", "宇宙船", "本文", "SF")))
	require.NoError(t, index.DeletePost(ctx, "post-1"))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearchIndex_Search_Japanese(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.IndexPosts(ctx, []*domain.Post{
		testPost("post-1", "魔王を倒す勇者", "剣と魔法の旅", "ファンタジー"),
		testPost("post-2", "火星の探偵", "宇宙で起きた密室事件", "SF"),
		testPost("post-3", "放課後の約束", "魔王と呼ばれた先輩", "青春"),
	}))

	result, err := index.Search(ctx, SearchParams{Query: "魔王", Limit: 10})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"post-1", "post-3"}, result.IDs())
	// The title match outranks the body match.
	assert.Equal(t, "post-1", result.Hits[0].ID)
}

func TestSearchIndex_Search_GenreFilter(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.IndexPosts(ctx, []*domain.Post{
		testPost("post-1", "魔王を倒す勇者", "本文", "ファンタジー"),
		testPost("post-2", "魔王の帰還", "本文", "コメディ"),
	}))

	result, err := index.Search(ctx, SearchParams{Query: "魔王", Genre: "コメディ", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"post-2"}, result.IDs())
}

func TestSearchIndex_Search_Tag(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.IndexPosts(ctx, []*domain.Post{
		testPost("post-1", "A", "本文", "SF", "タイムリープ"),
		testPost("post-2", "B", "本文", "SF", "ロボット"),
	}))

	result, err := index.Search(ctx, SearchParams{Tag: "ロボット", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"post-2"}, result.IDs())
}

func TestSearchIndex_Search_EmptyQueryMatchesAll(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	older := testPost("post-1", "古い", "本文", "SF")
	newer := testPost("post-2", "新しい", "本文", "SF")
	later := older.CreatedAt.Add(time.Hour)
	newer.CreatedAt = &later
	require.NoError(t, index.IndexPosts(ctx, []*domain.Post{older, newer}))

	result, err := index.Search(ctx, DefaultSearchParams())
	require.NoError(t, err)
	assert.Equal(t, []string{"post-2", "post-1"}, result.IDs())
}

func TestSearchIndex_Rebuild(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.IndexPost(ctx, testPost("post-1", "題名", "本文", "SF")))
	require.NoError(t, index.Rebuild())

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearchIndex_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	index, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, index.IndexPost(ctx, testPost("post-1", "題名", "本文", "SF")))
	require.NoError(t, index.Close())

	reopened, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestSearchIndex_MappingVersionChangeRecreates(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	index, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, index.IndexPost(ctx, testPost("post-1", "題名", "本文", "SF")))
	require.NoError(t, index.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "search.version"), []byte("0"), 0o644))

	reopened, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)

	version, err := os.ReadFile(filepath.Join(dir, "search.version"))
	require.NoError(t, err)
	assert.Equal(t, mappingVersion, string(version))
}

func TestSearchIndex_LargeBatch(t *testing.T) {
	index := setupTestIndex(t)

	posts := make([]*domain.Post, 1200)
	for i := range posts {
		posts[i] = testPost(fmt.Sprintf("post-%d", i), fmt.Sprintf("題名%d", i), "本文", "SF")
	}
	require.NoError(t, index.IndexPosts(context.Background(), posts))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1200), count)
}

func TestPostToDocument(t *testing.T) {
	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	post := &domain.Post{
		ID:         "post-1",
		AuthorID:   "user-1",
		AuthorName: "はなこ",
		Catchcopy:  strPtr("一行で"),
		Body:       "本文",
		Tags:       []string{"短編"},
		LikeCount:  4,
		CreatedAt:  &created,
	}

	doc := PostToDocument(post)
	assert.Equal(t, "", doc.Title)
	assert.Equal(t, "一行で", doc.Catchcopy)
	assert.Equal(t, domain.GenreOther, doc.Genre)
	assert.Equal(t, int64(4), doc.LikeCount)
	assert.Equal(t, created.UnixMilli(), doc.CreatedAt)

	m := doc.ToMap()
	assert.Equal(t, []string{"短編"}, m["tags"])
	assert.Equal(t, "はなこ", m["author"])
}

func TestSearchParams_Defaults(t *testing.T) {
	params := DefaultSearchParams()
	assert.Equal(t, 20, params.Limit)
	assert.Equal(t, SortRelevance, params.SortBy)
	assert.True(t, params.Highlight)
}
