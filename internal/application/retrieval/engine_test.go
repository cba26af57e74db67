package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kb-ai-api/internal/domain/entity"
)

func TestSearchValidation(t *testing.T) {
	e := NewEngine(&fakeEmbedder{}, newFakeVectorIndex(), newFakePageRepo(), EngineConfig{})

	_, err := e.Search(context.Background(), SearchInput{OrgID: "org-1"})
	assert.Error(t, err)

	_, err = e.Search(context.Background(), SearchInput{Query: "hello"})
	assert.Error(t, err)
}

func TestSearchDisabled(t *testing.T) {
	e := NewEngine(nil, nil, newFakePageRepo(), EngineConfig{})
	_, err := e.Search(context.Background(), SearchInput{OrgID: "org-1", Query: "hello"})
	assert.ErrorIs(t, err, ErrVectorDisabled)
}

func TestSearchDedupAndThreshold(t *testing.T) {
	vec := newFakeVectorIndex()
	vec.queryFn = func(params *VectorQueryParams) ([]*VectorMatch, error) {
		return []*VectorMatch{
			{ID: "a:0", PageID: "a", Score: 0.9, Title: "Page A"},
			{ID: "a:3", PageID: "a", Score: 0.85},
			{ID: "b:1", PageID: "b", Score: 0.8, Title: "Page B"},
			{ID: "c:0", PageID: "c", Score: 0.4},
		}, nil
	}
	e := NewEngine(&fakeEmbedder{}, vec, newFakePageRepo(), EngineConfig{})

	out, err := e.Search(context.Background(), SearchInput{
		OrgID:    "org-1",
		Query:    "hello",
		Limit:    10,
		MinScore: 0.5,
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	// 同一页面只保留最高分条目，低于阈值的被过滤。
	assert.Equal(t, "a:0", out[0].EntryID)
	assert.InDelta(t, 0.9, out[0].Score, 1e-6)
	assert.Equal(t, SourceSemantic, out[0].Source)
	assert.Equal(t, "b:1", out[1].EntryID)
}

func TestSearchOverFetch(t *testing.T) {
	vec := newFakeVectorIndex()
	vec.queryFn = func(params *VectorQueryParams) ([]*VectorMatch, error) {
		return nil, nil
	}
	e := NewEngine(&fakeEmbedder{}, vec, newFakePageRepo(), EngineConfig{})

	out, err := e.Search(context.Background(), SearchInput{OrgID: "org-1", Query: "q", Limit: 7})
	require.NoError(t, err)
	assert.Empty(t, out)
	require.Len(t, vec.queries, 1)
	assert.Equal(t, 14, vec.queries[0].TopK)
}

func TestSearchLimitClamp(t *testing.T) {
	vec := newFakeVectorIndex()
	vec.queryFn = func(params *VectorQueryParams) ([]*VectorMatch, error) {
		var out []*VectorMatch
		for i := 0; i < params.TopK; i++ {
			out = append(out, &VectorMatch{
				ID:     fmt.Sprintf("p%d:0", i),
				PageID: fmt.Sprintf("p%d", i),
				Score:  0.9,
			})
		}
		return out, nil
	}
	e := NewEngine(&fakeEmbedder{}, vec, newFakePageRepo(), EngineConfig{})

	out, err := e.Search(context.Background(), SearchInput{OrgID: "org-1", Query: "q", Limit: 500})
	require.NoError(t, err)
	assert.Len(t, out, maxSearchLimit)
}

func TestSearchFilterPassthrough(t *testing.T) {
	vec := newFakeVectorIndex()
	vec.queryFn = func(params *VectorQueryParams) ([]*VectorMatch, error) {
		return nil, nil
	}
	e := NewEngine(&fakeEmbedder{}, vec, newFakePageRepo(), EngineConfig{})

	_, err := e.Search(context.Background(), SearchInput{
		OrgID:        "org-1",
		Query:        "q",
		CollectionID: "col-1",
		SpaceID:      "sp-1",
	})
	require.NoError(t, err)
	require.Len(t, vec.queries, 1)
	assert.Equal(t, "org-1", vec.queries[0].OrgID)
	assert.Equal(t, "col-1", vec.queries[0].CollectionID)
	assert.Equal(t, "sp-1", vec.queries[0].SpaceID)
}

func TestLexicalScoresAndSnippet(t *testing.T) {
	p1 := &entity.Page{ID: "p1", OrgID: "org-1", Title: "Install Guide", Description: "How to install"}
	p2 := &entity.Page{ID: "p2", OrgID: "org-1", Title: "FAQ", Content: "install steps for the CLI"}
	e := NewEngine(nil, nil, newFakePageRepo(p1, p2), EngineConfig{})

	out, err := e.Lexical(context.Background(), SearchInput{OrgID: "org-1", Query: "install"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "p1", out[0].PageID)
	assert.Equal(t, 1.0, out[0].Score)
	assert.Equal(t, SourceLexical, out[0].Source)
	assert.Equal(t, "How to install", out[0].Snippet)
	assert.Same(t, p1, out[0].Page)
}

func TestLexicalContentFallbackSnippet(t *testing.T) {
	p := &entity.Page{ID: "p1", OrgID: "org-1", Title: "Setup", Content: "full body text"}
	e := NewEngine(nil, nil, newFakePageRepo(p), EngineConfig{})

	out, err := e.Lexical(context.Background(), SearchInput{OrgID: "org-1", Query: "setup"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "full body text", out[0].Snippet)
}
