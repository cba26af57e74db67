package retrieval

import (
	"context"

	"kb-ai-api/internal/domain/repository"
)

// Enricher 把裸检索命中关联回关系库里的页面元数据。
type Enricher struct {
	pages repository.PageRepository
}

func NewEnricher(pages repository.PageRepository) *Enricher {
	return &Enricher{pages: pages}
}

// Enrich 为结果批量回填页面记录：去重后的 page id 一次查询取回（避免 N+1）。
// 页面已不存在（索引滞后于删除）的结果原样透传而不是丢弃或报错，
// 其 Page 字段保持 nil。
func (e *Enricher) Enrich(ctx context.Context, orgID string, results []*SearchResult) error {
	if e == nil || e.pages == nil || len(results) == 0 {
		return nil
	}

	ids := make([]string, 0, len(results))
	want := make(map[string]struct{}, len(results))
	for _, r := range results {
		if r == nil || r.Page != nil {
			continue
		}
		if _, ok := want[r.PageID]; ok {
			continue
		}
		want[r.PageID] = struct{}{}
		ids = append(ids, r.PageID)
	}
	if len(ids) == 0 {
		return nil
	}

	pages, err := e.pages.GetByIDs(ctx, orgID, ids)
	if err != nil {
		return err
	}
	byID := make(map[string]int, len(pages))
	for idx, p := range pages {
		if p == nil {
			continue
		}
		byID[p.ID] = idx
	}

	for _, r := range results {
		if r == nil || r.Page != nil {
			continue
		}
		if idx, ok := byID[r.PageID]; ok {
			r.Page = pages[idx]
			if r.Title == "" {
				r.Title = pages[idx].Title
			}
		}
	}
	return nil
}
