package retrieval

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kb-ai-api/internal/domain/entity"
)

func testPage(id, content string) *entity.Page {
	return &entity.Page{
		ID:           id,
		OrgID:        "org-1",
		CollectionID: "col-1",
		SpaceID:      "sp-1",
		Title:        "Test Page",
		Content:      content,
	}
}

func TestEntryID(t *testing.T) {
	assert.Equal(t, "p1:0", EntryID("p1", 0))
	assert.Equal(t, "p1:42", EntryID("p1", 42))
}

func TestReindexWritesEntries(t *testing.T) {
	emb := &fakeEmbedder{dim: 4}
	vec := newFakeVectorIndex()
	idx := NewIndexer(emb, vec, IndexerConfig{ChunkTokens: 30})

	para := strings.Repeat("some words here ", 10)
	page := testPage("p1", para+"\n\n"+para+"\n\n"+para)

	n, err := idx.Reindex(context.Background(), page)
	require.NoError(t, err)
	require.Greater(t, n, 1)
	assert.Len(t, vec.entries, n)

	for ord := 0; ord < n; ord++ {
		e, ok := vec.entries[EntryID("p1", ord)]
		require.True(t, ok, "missing entry for ordinal %d", ord)
		assert.Equal(t, "org-1", e.OrgID)
		assert.Equal(t, "p1", e.PageID)
		assert.Equal(t, int64(ord), e.Ordinal)
		assert.Equal(t, int64(n), e.ChunkTotal)
		assert.Equal(t, "Test Page", e.Title)
		assert.Equal(t, "col-1", e.CollectionID)
		assert.Equal(t, "sp-1", e.SpaceID)
		assert.NotEmpty(t, e.Snippet)
		assert.Len(t, e.Vector, 4)
	}
}

func TestReindexDeleteBeforeInsert(t *testing.T) {
	emb := &fakeEmbedder{dim: 4}
	vec := newFakeVectorIndex()
	// 预置旧条目，包括一条新内容不会再产生的高序号条目。
	vec.entries["p1:0"] = &VectorEntry{ID: "p1:0", PageID: "p1"}
	vec.entries["p1:7"] = &VectorEntry{ID: "p1:7", PageID: "p1"}
	idx := NewIndexer(emb, vec, IndexerConfig{})

	n, err := idx.Reindex(context.Background(), testPage("p1", "short content"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	// 旧条目全部被清掉，只剩新写入的。
	assert.Len(t, vec.entries, 1)
	_, ok := vec.entries["p1:0"]
	assert.True(t, ok)
	_, stale := vec.entries["p1:7"]
	assert.False(t, stale)
}

func TestReindexIdempotent(t *testing.T) {
	emb := &fakeEmbedder{dim: 4}
	vec := newFakeVectorIndex()
	idx := NewIndexer(emb, vec, IndexerConfig{ChunkTokens: 30})

	para := strings.Repeat("repeated words ", 12)
	page := testPage("p1", para+"\n\n"+para)

	n1, err := idx.Reindex(context.Background(), page)
	require.NoError(t, err)
	n2, err := idx.Reindex(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, n1, n2)
	assert.Len(t, vec.entries, n1)
}

func TestReindexEmptyContent(t *testing.T) {
	emb := &fakeEmbedder{dim: 4}
	vec := newFakeVectorIndex()
	vec.entries["p1:0"] = &VectorEntry{ID: "p1:0", PageID: "p1"}
	idx := NewIndexer(emb, vec, IndexerConfig{})

	n, err := idx.Reindex(context.Background(), testPage("p1", "   \n\n  "))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	// 空正文不调用嵌入服务，但旧索引被清掉。
	assert.Equal(t, 0, emb.calls)
	assert.Empty(t, vec.entries)
}

func TestReindexBatchedUpsert(t *testing.T) {
	emb := &fakeEmbedder{dim: 4}
	vec := newFakeVectorIndex()
	idx := NewIndexer(emb, vec, IndexerConfig{ChunkTokens: 10, UpsertBatchSize: 5})

	// 每段恰好 10 tokens，两段合并即超预算，12 段产出 12 个 chunk。
	paras := make([]string, 12)
	for i := range paras {
		paras[i] = fmt.Sprintf("paragraph %02d with padding words, okay", i)
	}
	page := testPage("p1", strings.Join(paras, "\n\n"))

	n, err := idx.Reindex(context.Background(), page)
	require.NoError(t, err)
	require.Equal(t, 12, n)
	// 12 条按批量 5 提交 → 3 次 upsert。
	assert.Equal(t, 3, vec.upsertCalls)
	assert.Equal(t, 1, emb.calls)
}

func TestReindexEmbeddingMismatch(t *testing.T) {
	emb := &fakeEmbedder{vectors: [][][]float32{{{1, 0}}}}
	vec := newFakeVectorIndex()
	idx := NewIndexer(emb, vec, IndexerConfig{ChunkTokens: 10})

	para := strings.Repeat("padding words in this paragraph ", 3)
	page := testPage("p1", para+"\n\n"+para+"\n\n"+para)

	_, err := idx.Reindex(context.Background(), page)
	assert.ErrorIs(t, err, ErrProvider)
	assert.Equal(t, 0, vec.upsertCalls)
}

func TestDeleteIndexScanPath(t *testing.T) {
	vec := newFakeVectorIndex()
	vec.entries["p1:0"] = &VectorEntry{ID: "p1:0", PageID: "p1"}
	vec.entries["p1:1"] = &VectorEntry{ID: "p1:1", PageID: "p1"}
	vec.entries["p2:0"] = &VectorEntry{ID: "p2:0", PageID: "p2"}
	idx := NewIndexer(&fakeEmbedder{}, vec, IndexerConfig{})

	err := idx.DeleteIndex(context.Background(), "org-1", "p1")
	require.NoError(t, err)
	// 只删目标页面的条目。
	assert.Len(t, vec.entries, 1)
	_, ok := vec.entries["p2:0"]
	assert.True(t, ok)
}

func TestDeleteIndexEnumerationFallback(t *testing.T) {
	vec := newFakeVectorIndex()
	vec.queryFn = func(*VectorQueryParams) ([]*VectorMatch, error) {
		return nil, fmt.Errorf("filtered scan unsupported")
	}
	idx := NewIndexer(&fakeEmbedder{}, vec, IndexerConfig{MaxChunksPerPage: 3})

	err := idx.DeleteIndex(context.Background(), "org-1", "p1")
	require.NoError(t, err)
	require.Len(t, vec.deletedIDs, 1)
	// 枚举 id 覆盖 0..max-1 加历史裸 pageID。
	assert.Equal(t, []string{"p1:0", "p1:1", "p1:2", "p1"}, vec.deletedIDs[0])
}

func TestDeleteIndexNoEntries(t *testing.T) {
	vec := newFakeVectorIndex()
	idx := NewIndexer(&fakeEmbedder{}, vec, IndexerConfig{})

	err := idx.DeleteIndex(context.Background(), "org-1", "missing")
	require.NoError(t, err)
	assert.Empty(t, vec.deletedIDs)
}

func TestBatchReindexContinuesOnFailure(t *testing.T) {
	emb := &fakeEmbedder{dim: 4}
	vec := newFakeVectorIndex()
	idx := NewIndexer(emb, vec, IndexerConfig{})

	bad := testPage("", "content") // 缺 page id，Reindex 必然失败
	bad.ID = ""
	pages := []*entity.Page{
		testPage("p1", "first page body"),
		bad,
		testPage("p2", "second page body"),
		nil,
	}

	summary, err := idx.BatchReindex(context.Background(), pages)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.PagesIndexed)
	assert.Equal(t, 1, summary.PagesFailed)
	assert.Equal(t, 2, summary.TotalChunks)
}

func TestListEntriesSortedByOrdinal(t *testing.T) {
	vec := newFakeVectorIndex()
	vec.entries["p1:2"] = &VectorEntry{ID: "p1:2", PageID: "p1", Ordinal: 2}
	vec.entries["p1:0"] = &VectorEntry{ID: "p1:0", PageID: "p1", Ordinal: 0}
	vec.entries["p1:1"] = &VectorEntry{ID: "p1:1", PageID: "p1", Ordinal: 1}
	vec.entries["p2:0"] = &VectorEntry{ID: "p2:0", PageID: "p2", Ordinal: 0}
	idx := NewIndexer(&fakeEmbedder{}, vec, IndexerConfig{})

	matches, err := idx.ListEntries(context.Background(), "org-1", "p1")
	require.NoError(t, err)
	require.Len(t, matches, 3)
	for i, m := range matches {
		assert.Equal(t, int64(i), m.Ordinal)
		assert.Equal(t, "p1", m.PageID)
	}
}

func TestListEntriesBlankPageID(t *testing.T) {
	vec := newFakeVectorIndex()
	idx := NewIndexer(&fakeEmbedder{}, vec, IndexerConfig{})

	matches, err := idx.ListEntries(context.Background(), "org-1", "   ")
	require.NoError(t, err)
	assert.Empty(t, matches)
	// 空 pageID 不触发向量查询。
	assert.Empty(t, vec.queries)
}
