package retrieval

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

// HybridSearch 并发跑语义与关键词两路检索后合并。
// 两路互不依赖，任一路失败则整个请求失败，不静默退化成单路。
func (e *Engine) HybridSearch(ctx context.Context, in SearchInput) ([]*SearchResult, error) {
	if err := normalizeInput(&in); err != nil {
		return nil, err
	}

	var semantic, lexical []*SearchResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := e.Search(gctx, in)
		if err != nil {
			return err
		}
		semantic = out
		return nil
	})
	g.Go(func() error {
		out, err := e.Lexical(gctx, in)
		if err != nil {
			return err
		}
		lexical = out
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return e.merge(semantic, lexical, in.Limit), nil
}

// merge 语义结果优先占座；关键词结果打折（置信度较低）后补入未出现的页面。
// 分数相同时保持插入顺序（语义在前），排序稳定。
func (e *Engine) merge(semantic, lexical []*SearchResult, limit int) []*SearchResult {
	merged := make([]*SearchResult, 0, len(semantic)+len(lexical))
	seen := make(map[string]struct{}, len(semantic))

	for _, r := range semantic {
		seen[r.PageID] = struct{}{}
		merged = append(merged, r)
	}
	for _, r := range lexical {
		if _, ok := seen[r.PageID]; ok {
			continue
		}
		seen[r.PageID] = struct{}{}
		r.Score *= e.lexicalDiscount
		merged = append(merged, r)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
