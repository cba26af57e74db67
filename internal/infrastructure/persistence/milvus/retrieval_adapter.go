package milvus

import (
	"context"

	"kb-ai-api/internal/application/retrieval"
)

// VectorIndexAdapter 把 Milvus 仓储适配成应用层的 VectorIndex port。
type VectorIndexAdapter struct {
	repo *Repository
}

func NewVectorIndexAdapter(repo *Repository) *VectorIndexAdapter {
	return &VectorIndexAdapter{repo: repo}
}

var _ retrieval.VectorIndex = (*VectorIndexAdapter)(nil)

func (a *VectorIndexAdapter) EnsurePageChunksCollection(ctx context.Context) error {
	if a == nil || a.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	return a.repo.EnsurePageChunksCollection(ctx)
}

func (a *VectorIndexAdapter) Upsert(ctx context.Context, orgID string, entries []*retrieval.VectorEntry) error {
	if a == nil || a.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	if len(entries) == 0 {
		return nil
	}

	chunks := make([]*PageChunk, 0, len(entries))
	for i := range entries {
		e := entries[i]
		if e == nil {
			continue
		}
		chunks = append(chunks, &PageChunk{
			ID:           e.ID,
			Vector:       e.Vector,
			OrgID:        e.OrgID,
			PageID:       e.PageID,
			Ordinal:      e.Ordinal,
			ChunkTotal:   e.ChunkTotal,
			Title:        e.Title,
			Snippet:      e.Snippet,
			CollectionID: e.CollectionID,
			SpaceID:      e.SpaceID,
		})
	}
	return a.repo.InsertChunks(ctx, orgID, chunks)
}

func (a *VectorIndexAdapter) Query(ctx context.Context, params *retrieval.VectorQueryParams) ([]*retrieval.VectorMatch, error) {
	if a == nil || a.repo == nil {
		return nil, retrieval.ErrVectorDisabled
	}
	if params == nil {
		return nil, nil
	}

	out, err := a.repo.SearchChunks(ctx, &SearchParams{
		OrgID:        params.OrgID,
		QueryVector:  params.Vector,
		TopK:         params.TopK,
		PageID:       params.PageID,
		CollectionID: params.CollectionID,
		SpaceID:      params.SpaceID,
	})
	if err != nil {
		return nil, err
	}

	matches := make([]*retrieval.VectorMatch, 0, len(out))
	for i := range out {
		m := out[i]
		if m == nil {
			continue
		}
		matches = append(matches, &retrieval.VectorMatch{
			ID:           m.ID,
			Score:        m.Score,
			PageID:       m.PageID,
			Ordinal:      m.Ordinal,
			Title:        m.Title,
			Snippet:      m.Snippet,
			CollectionID: m.CollectionID,
			SpaceID:      m.SpaceID,
		})
	}
	return matches, nil
}

func (a *VectorIndexAdapter) DeleteByIDs(ctx context.Context, orgID string, ids []string) error {
	if a == nil || a.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	return a.repo.DeleteByIDs(ctx, orgID, ids)
}
