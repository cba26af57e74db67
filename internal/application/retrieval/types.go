package retrieval

import "kb-ai-api/internal/domain/entity"

// Chunk 切分产物（仅为嵌入而存在，不落库）。
// 约定：同一次切分的 Ordinal 从 0 连续递增，顺序与原文一致。
type Chunk struct {
	PageID    string
	Ordinal   int
	Text      string
	EstTokens int
}

// 结果来源标识
const (
	SourceSemantic = "semantic"
	SourceLexical  = "lexical"
)

// SearchInput 检索输入。
type SearchInput struct {
	OrgID string
	Query string

	// CollectionID / SpaceID 为空表示不过滤。
	CollectionID string
	SpaceID      string

	Limit    int
	MinScore float64
}

// SearchResult 单条检索结果（每次查询临时产生）。
type SearchResult struct {
	EntryID string
	PageID  string
	Title   string
	Snippet string
	Score   float64
	Source  string

	CollectionID string
	SpaceID      string

	// Page 由 Enricher 回填；页面已被删除（索引滞后）时为 nil，
	// 调用方必须容忍缺失。
	Page *entity.Page
}

// BatchSummary 批量重建索引的汇总。
type BatchSummary struct {
	PagesIndexed int
	PagesFailed  int
	TotalChunks  int
}

// Source RAG 回答引用的来源文档。
type Source struct {
	PageID string  `json:"page_id"`
	Title  string  `json:"title"`
	Score  float64 `json:"score"`
}
