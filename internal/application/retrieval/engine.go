package retrieval

import (
	"context"
	"fmt"
	"strings"

	"kb-ai-api/internal/domain/entity"
	"kb-ai-api/internal/domain/repository"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// EngineConfig Engine 可调参数。
type EngineConfig struct {
	MinScore        float64
	LexicalDiscount float64
}

// Engine 查询侧入口：语义检索、关键词检索与两者的混合检索。
type Engine struct {
	embedder Embedder
	vector   VectorIndex
	pages    repository.PageRepository

	minScore        float64
	lexicalDiscount float64
}

func NewEngine(embedder Embedder, vector VectorIndex, pages repository.PageRepository, cfg EngineConfig) *Engine {
	discount := cfg.LexicalDiscount
	if discount <= 0 || discount > 1 {
		discount = 0.8
	}
	return &Engine{
		embedder:        embedder,
		vector:          vector,
		pages:           pages,
		minScore:        cfg.MinScore,
		lexicalDiscount: discount,
	}
}

func (e *Engine) Enabled() bool {
	return e != nil && e.embedder != nil && e.vector != nil
}

// Search 语义检索：查询嵌入 → 超额召回 → 阈值过滤 → 按页面去重 → 截断。
// 没有候选或全部低于阈值时返回空列表，不是错误。
func (e *Engine) Search(ctx context.Context, in SearchInput) ([]*SearchResult, error) {
	if err := normalizeInput(&in); err != nil {
		return nil, err
	}
	if !e.Enabled() {
		return nil, ErrVectorDisabled
	}
	if err := e.vector.EnsurePageChunksCollection(ctx); err != nil {
		return nil, err
	}

	vec, err := e.embedQuery(ctx, in.Query)
	if err != nil {
		return nil, err
	}

	// 超额召回 2 倍，给阈值过滤和按页面去重留余量。
	matches, err := e.vector.Query(ctx, &VectorQueryParams{
		OrgID:        in.OrgID,
		Vector:       vec,
		TopK:         in.Limit * 2,
		CollectionID: in.CollectionID,
		SpaceID:      in.SpaceID,
	})
	if err != nil {
		return nil, err
	}

	results := make([]*SearchResult, 0, in.Limit)
	seen := make(map[string]struct{}, in.Limit)
	for _, m := range matches {
		if m == nil {
			continue
		}
		if float64(m.Score) < in.MinScore {
			continue
		}
		// 索引按分数降序返回，同一页面只保留首个（最高分）条目。
		if _, ok := seen[m.PageID]; ok {
			continue
		}
		seen[m.PageID] = struct{}{}
		results = append(results, &SearchResult{
			EntryID:      m.ID,
			PageID:       m.PageID,
			Title:        m.Title,
			Snippet:      m.Snippet,
			Score:        float64(m.Score),
			Source:       SourceSemantic,
			CollectionID: m.CollectionID,
			SpaceID:      m.SpaceID,
		})
		if len(results) >= in.Limit {
			break
		}
	}
	return results, nil
}

// Lexical 关键词检索：标题/描述的大小写不敏感子串匹配，按更新时间倒序。
// 没有相关性模型，分数固定为 1.0。
func (e *Engine) Lexical(ctx context.Context, in SearchInput) ([]*SearchResult, error) {
	if err := normalizeInput(&in); err != nil {
		return nil, err
	}
	if e == nil || e.pages == nil {
		return nil, fmt.Errorf("page repository not configured")
	}

	pages, err := e.pages.SearchByTitleOrDescription(ctx, repository.PageSearchFilter{
		OrgID:        in.OrgID,
		CollectionID: in.CollectionID,
		SpaceID:      in.SpaceID,
		Pattern:      in.Query,
		Limit:        in.Limit,
	})
	if err != nil {
		return nil, err
	}

	results := make([]*SearchResult, 0, len(pages))
	for _, p := range pages {
		if p == nil {
			continue
		}
		results = append(results, &SearchResult{
			PageID:       p.ID,
			Title:        p.Title,
			Snippet:      lexicalSnippet(p),
			Score:        1.0,
			Source:       SourceLexical,
			CollectionID: p.CollectionID,
			SpaceID:      p.SpaceID,
			Page:         p,
		})
	}
	return results, nil
}

// DefaultMinScore 返回配置的默认分数阈值。
func (e *Engine) DefaultMinScore() float64 {
	if e == nil {
		return 0
	}
	return e.minScore
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", ErrProvider)
	}
	return vecs[0], nil
}

func normalizeInput(in *SearchInput) error {
	in.Query = strings.TrimSpace(in.Query)
	in.OrgID = strings.TrimSpace(in.OrgID)
	if in.OrgID == "" {
		return fmt.Errorf("org_id is required")
	}
	if in.Query == "" {
		return fmt.Errorf("query is required")
	}
	if in.Limit <= 0 {
		in.Limit = defaultSearchLimit
	}
	if in.Limit > maxSearchLimit {
		in.Limit = maxSearchLimit
	}
	return nil
}

func lexicalSnippet(p *entity.Page) string {
	if s := strings.TrimSpace(p.Description); s != "" {
		return s
	}
	return truncateRunes(strings.TrimSpace(p.Content), defaultSnippetRunes)
}
