// Package messaging 提供基于 Redis Stream 的索引事件队列
package messaging

import (
	"encoding/json"
	"time"
)

// 索引事件类型
const (
	TypePageReindex     = "page_reindex"
	TypePageIndexDelete = "page_index_delete"
	TypeIndexRebuild    = "index_rebuild"
)

// Message 消息结构
type Message struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	OrgID     string            `json:"org_id"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewMessage 创建新消息
func NewMessage(id, msgType, orgID string, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:        id,
		Type:      msgType,
		OrgID:     orgID,
		Payload:   payloadBytes,
		Metadata:  make(map[string]string),
		CreatedAt: time.Now(),
	}, nil
}

// SetMetadata 设置元数据
func (m *Message) SetMetadata(key, value string) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata[key] = value
}

// GetMetadata 获取元数据
func (m *Message) GetMetadata(key string) string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata[key]
}

// UnmarshalPayload 解析消息载荷
func (m *Message) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}

// Stream 流定义
type Stream string

// DLQStream 获取对应的死信队列流名称
func (s Stream) DLQStream() string {
	return "dlq:" + string(s)
}

// ConsumerGroup 消费者组定义
type ConsumerGroup string

// ReindexPageMessage 页面重建索引消息
type ReindexPageMessage struct {
	OrgID  string `json:"org_id"`
	PageID string `json:"page_id"`
}

// DeleteIndexMessage 页面索引删除消息
type DeleteIndexMessage struct {
	OrgID  string `json:"org_id"`
	PageID string `json:"page_id"`
}

// RebuildIndexMessage 范围重建索引消息，CollectionID/SpaceID 为空表示整个组织
type RebuildIndexMessage struct {
	OrgID        string `json:"org_id"`
	CollectionID string `json:"collection_id,omitempty"`
	SpaceID      string `json:"space_id,omitempty"`
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoffConfig 默认退避配置
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2,
	}
}

// CalculateBackoff 计算退避时间
func (c BackoffConfig) CalculateBackoff(retryCount int) time.Duration {
	backoff := c.Initial
	for i := 0; i < retryCount; i++ {
		backoff = time.Duration(float64(backoff) * c.Multiplier)
		if backoff > c.Max {
			backoff = c.Max
			break
		}
	}
	return backoff
}
