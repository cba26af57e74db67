package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kb-ai-api/internal/domain/entity"
)

func TestHybridSearchMerge(t *testing.T) {
	vec := newFakeVectorIndex()
	vec.queryFn = func(*VectorQueryParams) ([]*VectorMatch, error) {
		return []*VectorMatch{
			{ID: "a:0", PageID: "a", Score: 0.9, Title: "Page A"},
		}, nil
	}
	pages := newFakePageRepo(
		&entity.Page{ID: "a", OrgID: "org-1", Title: "Page A install"},
		&entity.Page{ID: "b", OrgID: "org-1", Title: "Page B install"},
	)
	e := NewEngine(&fakeEmbedder{}, vec, pages, EngineConfig{})

	out, err := e.HybridSearch(context.Background(), SearchInput{OrgID: "org-1", Query: "install"})
	require.NoError(t, err)
	require.Len(t, out, 2)

	// 语义命中保留原分，同页面的关键词命中被去重。
	assert.Equal(t, "a", out[0].PageID)
	assert.Equal(t, SourceSemantic, out[0].Source)
	assert.InDelta(t, 0.9, out[0].Score, 1e-6)

	// 只出现在关键词路的页面按折扣分补入。
	assert.Equal(t, "b", out[1].PageID)
	assert.Equal(t, SourceLexical, out[1].Source)
	assert.InDelta(t, 0.8, out[1].Score, 1e-6)
}

func TestHybridSearchLexicalCanOutrank(t *testing.T) {
	vec := newFakeVectorIndex()
	vec.queryFn = func(*VectorQueryParams) ([]*VectorMatch, error) {
		return []*VectorMatch{
			{ID: "a:0", PageID: "a", Score: 0.5, Title: "Page A"},
		}, nil
	}
	pages := newFakePageRepo(&entity.Page{ID: "b", OrgID: "org-1", Title: "exact match"})
	e := NewEngine(&fakeEmbedder{}, vec, pages, EngineConfig{})

	out, err := e.HybridSearch(context.Background(), SearchInput{OrgID: "org-1", Query: "exact match"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	// 折扣后 0.8 > 0.5，关键词命中排到前面。
	assert.Equal(t, "b", out[0].PageID)
	assert.Equal(t, "a", out[1].PageID)
}

func TestHybridSearchLimit(t *testing.T) {
	vec := newFakeVectorIndex()
	vec.queryFn = func(params *VectorQueryParams) ([]*VectorMatch, error) {
		var out []*VectorMatch
		for i := 0; i < 3; i++ {
			out = append(out, &VectorMatch{
				ID:     fmt.Sprintf("s%d:0", i),
				PageID: fmt.Sprintf("s%d", i),
				Score:  0.9,
			})
		}
		return out, nil
	}
	pages := newFakePageRepo(
		&entity.Page{ID: "l1", OrgID: "org-1", Title: "query one"},
		&entity.Page{ID: "l2", OrgID: "org-1", Title: "query two"},
	)
	e := NewEngine(&fakeEmbedder{}, vec, pages, EngineConfig{})

	out, err := e.HybridSearch(context.Background(), SearchInput{OrgID: "org-1", Query: "query", Limit: 3})
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestHybridSearchSemanticLegFailure(t *testing.T) {
	vec := newFakeVectorIndex()
	vec.queryFn = func(*VectorQueryParams) ([]*VectorMatch, error) {
		return nil, fmt.Errorf("milvus down")
	}
	e := NewEngine(&fakeEmbedder{}, vec, newFakePageRepo(), EngineConfig{})

	_, err := e.HybridSearch(context.Background(), SearchInput{OrgID: "org-1", Query: "q"})
	assert.Error(t, err)
}

func TestHybridSearchLexicalLegFailure(t *testing.T) {
	vec := newFakeVectorIndex()
	vec.queryFn = func(*VectorQueryParams) ([]*VectorMatch, error) {
		return nil, nil
	}
	pages := newFakePageRepo()
	pages.searchErr = fmt.Errorf("postgres down")
	e := NewEngine(&fakeEmbedder{}, vec, pages, EngineConfig{})

	_, err := e.HybridSearch(context.Background(), SearchInput{OrgID: "org-1", Query: "q"})
	assert.Error(t, err)
}
