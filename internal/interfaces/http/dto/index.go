// Package dto 提供 HTTP 层数据传输对象
package dto

import "kb-ai-api/internal/application/retrieval"

// ReindexResponse 页面重建索引响应
type ReindexResponse struct {
	PageID string `json:"page_id"`
	Chunks int    `json:"chunks"`
}

// DeleteIndexResponse 页面索引删除响应
type DeleteIndexResponse struct {
	PageID  string `json:"page_id"`
	Deleted bool   `json:"deleted"`
}

// RebuildRequest 范围重建索引请求
type RebuildRequest struct {
	CollectionID string `json:"collection_id,omitempty"`
	SpaceID      string `json:"space_id,omitempty"`
}

// EnqueuedResponse 单页面异步索引任务响应
type EnqueuedResponse struct {
	PageID    string `json:"page_id"`
	MessageID string `json:"message_id"`
	Enqueued  bool   `json:"enqueued"`
}

// RebuildResponse 范围重建索引响应
type RebuildResponse struct {
	MessageID string `json:"message_id"`
	Enqueued  bool   `json:"enqueued"`
}

// ChunkEntry 页面已索引条目（调试接口）
type ChunkEntry struct {
	EntryID string `json:"entry_id"`
	Ordinal int64  `json:"ordinal"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// ChunkListResponse 页面已索引条目列表
type ChunkListResponse struct {
	PageID  string        `json:"page_id"`
	Entries []*ChunkEntry `json:"entries"`
	Total   int           `json:"total"`
}

// ToChunkListResponse 转换向量条目列表
func ToChunkListResponse(pageID string, matches []*retrieval.VectorMatch) *ChunkListResponse {
	entries := make([]*ChunkEntry, 0, len(matches))
	for _, m := range matches {
		if m == nil {
			continue
		}
		entries = append(entries, &ChunkEntry{
			EntryID: m.ID,
			Ordinal: m.Ordinal,
			Title:   m.Title,
			Snippet: m.Snippet,
		})
	}
	return &ChunkListResponse{
		PageID:  pageID,
		Entries: entries,
		Total:   len(entries),
	}
}
