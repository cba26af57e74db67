// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"kb-ai-api/internal/application/retrieval"
	"kb-ai-api/internal/domain/entity"
)

// SearchRequest 检索请求
type SearchRequest struct {
	Query        string   `json:"query" binding:"required,max=2000"`
	CollectionID string   `json:"collection_id,omitempty"`
	SpaceID      string   `json:"space_id,omitempty"`
	Limit        int      `json:"limit,omitempty"`
	MinScore     *float64 `json:"min_score,omitempty"`

	// Mode 仅 POST /v1/search 有效：hybrid（默认）或 lexical
	Mode string `json:"mode,omitempty"`
}

// MinScoreOrDefault 未携带 min_score 时回退到默认阈值；显式传 0 表示不过滤
func (r *SearchRequest) MinScoreOrDefault(def float64) float64 {
	if r.MinScore != nil {
		return *r.MinScore
	}
	return def
}

// PageSummary 检索结果中携带的页面摘要
type PageSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// SearchResultItem 单条检索结果
type SearchResultItem struct {
	EntryID      string       `json:"entry_id,omitempty"`
	PageID       string       `json:"page_id"`
	Title        string       `json:"title"`
	Snippet      string       `json:"snippet,omitempty"`
	Score        float64      `json:"score"`
	Source       string       `json:"source"`
	CollectionID string       `json:"collection_id,omitempty"`
	SpaceID      string       `json:"space_id,omitempty"`
	Page         *PageSummary `json:"page,omitempty"`
}

// SearchResponse 检索响应
type SearchResponse struct {
	Results []*SearchResultItem `json:"results"`
	Total   int                 `json:"total"`
}

// ToSearchResponse 转换应用层检索结果
func ToSearchResponse(results []*retrieval.SearchResult) *SearchResponse {
	items := make([]*SearchResultItem, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		items = append(items, &SearchResultItem{
			EntryID:      r.EntryID,
			PageID:       r.PageID,
			Title:        r.Title,
			Snippet:      r.Snippet,
			Score:        r.Score,
			Source:       r.Source,
			CollectionID: r.CollectionID,
			SpaceID:      r.SpaceID,
			Page:         toPageSummary(r.Page),
		})
	}
	return &SearchResponse{
		Results: items,
		Total:   len(items),
	}
}

func toPageSummary(p *entity.Page) *PageSummary {
	if p == nil {
		return nil
	}
	return &PageSummary{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		UpdatedAt:   p.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
