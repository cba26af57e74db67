package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kb-ai-api/internal/domain/entity"
)

func TestEnrichAttachesPages(t *testing.T) {
	p1 := &entity.Page{ID: "p1", OrgID: "org-1", Title: "Page One"}
	p2 := &entity.Page{ID: "p2", OrgID: "org-1", Title: "Page Two"}
	repo := newFakePageRepo(p1, p2)
	en := NewEnricher(repo)

	results := []*SearchResult{
		{PageID: "p1", Title: "Page One"},
		{PageID: "p2"},
		{PageID: "p1", Title: "Page One"},
	}
	err := en.Enrich(context.Background(), "org-1", results)
	require.NoError(t, err)

	assert.Same(t, p1, results[0].Page)
	assert.Same(t, p2, results[1].Page)
	assert.Same(t, p1, results[2].Page)
	// 缺失的标题从页面回填。
	assert.Equal(t, "Page Two", results[1].Title)

	// 去重后一次批量查询，没有 N+1。
	assert.Equal(t, 1, repo.getByIDsCalls)
	assert.Len(t, repo.lastIDs, 2)
}

func TestEnrichMissingPagePassesThrough(t *testing.T) {
	repo := newFakePageRepo(&entity.Page{ID: "p1", OrgID: "org-1", Title: "Page One"})
	en := NewEnricher(repo)

	results := []*SearchResult{
		{PageID: "p1"},
		{PageID: "deleted", Title: "Stale"},
	}
	err := en.Enrich(context.Background(), "org-1", results)
	require.NoError(t, err)

	assert.NotNil(t, results[0].Page)
	// 索引滞后于页面删除：结果保留，Page 为 nil。
	assert.Nil(t, results[1].Page)
	assert.Equal(t, "Stale", results[1].Title)
}

func TestEnrichSkipsAlreadyAttached(t *testing.T) {
	attached := &entity.Page{ID: "p1", OrgID: "org-1"}
	repo := newFakePageRepo()
	en := NewEnricher(repo)

	results := []*SearchResult{{PageID: "p1", Page: attached}}
	err := en.Enrich(context.Background(), "org-1", results)
	require.NoError(t, err)
	assert.Equal(t, 0, repo.getByIDsCalls)
	assert.Same(t, attached, results[0].Page)
}

func TestEnrichEmptyResults(t *testing.T) {
	repo := newFakePageRepo()
	en := NewEnricher(repo)
	require.NoError(t, en.Enrich(context.Background(), "org-1", nil))
	assert.Equal(t, 0, repo.getByIDsCalls)
}

func TestEnrichRepoError(t *testing.T) {
	repo := newFakePageRepo()
	repo.getErr = fmt.Errorf("db down")
	en := NewEnricher(repo)

	err := en.Enrich(context.Background(), "org-1", []*SearchResult{{PageID: "p1"}})
	assert.Error(t, err)
}
