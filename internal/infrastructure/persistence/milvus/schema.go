// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionPageChunks 页面分片集合
	CollectionPageChunks = "page_chunks"

	// DefaultVectorDimension 默认向量维度
	DefaultVectorDimension = 768
)

// PageChunksSchema 页面分片 Collection Schema
func PageChunksSchema(dim int) *entity.Schema {
	if dim <= 0 {
		dim = DefaultVectorDimension
	}
	return &entity.Schema{
		CollectionName: CollectionPageChunks,
		Description:    "Page content chunks for semantic search",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "96",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(dim),
				},
			},
			{
				Name:     "org_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "page_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "ordinal",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "chunk_total",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "title",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "1024",
				},
			},
			{
				Name:     "snippet",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
			{
				Name:     "collection_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "space_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
		},
	}
}

// PageChunk 页面分片数据结构
type PageChunk struct {
	ID           string    `json:"id"`
	Vector       []float32 `json:"vector"`
	OrgID        string    `json:"org_id"`
	PageID       string    `json:"page_id"`
	Ordinal      int64     `json:"ordinal"`
	ChunkTotal   int64     `json:"chunk_total"`
	Title        string    `json:"title"`
	Snippet      string    `json:"snippet"`
	CollectionID string    `json:"collection_id"`
	SpaceID      string    `json:"space_id"`
}

// PartitionName 生成组织分区名称
func PartitionName(orgID string) string {
	return "org_" + sanitizePartition(orgID)
}

// sanitizePartition Milvus 分区名只允许字母数字和下划线
func sanitizePartition(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
