// Package dto 提供 HTTP 层数据传输对象
package dto

import "kb-ai-api/internal/application/retrieval"

// ChatMessage 对话消息
type ChatMessage struct {
	Role    string `json:"role" binding:"required,oneof=system user assistant"`
	Content string `json:"content" binding:"required"`
}

// ChatRequest 知识库问答请求。
// Query 与 Messages 二选一：Messages 非空时走多轮对话。
type ChatRequest struct {
	Query    string        `json:"query,omitempty"`
	Messages []ChatMessage `json:"messages,omitempty"`

	CollectionID string `json:"collection_id,omitempty"`
	SpaceID      string `json:"space_id,omitempty"`

	Provider    string   `json:"provider,omitempty"`
	Model       string   `json:"model,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`

	Limit    int     `json:"limit,omitempty"`
	MinScore float64 `json:"min_score,omitempty"`
}

// ChatResponse 知识库问答响应
type ChatResponse struct {
	Answer  string             `json:"answer"`
	Sources []retrieval.Source `json:"sources"`
}

// ToRetrievalMessages 转换为应用层消息
func (r *ChatRequest) ToRetrievalMessages() []retrieval.ChatMessage {
	if r == nil || len(r.Messages) == 0 {
		return nil
	}
	out := make([]retrieval.ChatMessage, 0, len(r.Messages))
	for _, m := range r.Messages {
		out = append(out, retrieval.ChatMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return out
}
