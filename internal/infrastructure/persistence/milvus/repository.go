// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"kb-ai-api/pkg/metrics"
)

// Repository 页面分片向量仓储
type Repository struct {
	client    *Client
	dimension int
}

// NewRepository 创建向量仓储
func NewRepository(client *Client, dimension int) *Repository {
	if dimension <= 0 {
		dimension = DefaultVectorDimension
	}
	return &Repository{client: client, dimension: dimension}
}

// SearchParams 检索参数
type SearchParams struct {
	OrgID       string
	QueryVector []float32
	TopK        int

	// PageID 非空时精确过滤到单个页面（删除扫描）。
	PageID string

	// CollectionID / SpaceID 为空表示不过滤。
	CollectionID string
	SpaceID      string
}

// SearchResult 检索命中
type SearchResult struct {
	ID           string
	Score        float32
	PageID       string
	Ordinal      int64
	Title        string
	Snippet      string
	CollectionID string
	SpaceID      string
}

// CreateCollection 创建集合
func (r *Repository) CreateCollection(ctx context.Context, schema *entity.Schema) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateCollection",
		trace.WithAttributes(attribute.String("collection", schema.CollectionName)))
	defer span.End()

	collName := r.client.CollectionName(schema.CollectionName)
	schema.CollectionName = collName

	err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

// CreateIndex 创建 HNSW 索引
func (r *Repository) CreateIndex(ctx context.Context, collection string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateIndex",
		trace.WithAttributes(attribute.String("collection", collection)))
	defer span.End()

	collName := r.client.CollectionName(collection)

	idx, err := entity.NewIndexHNSW(
		entity.COSINE,
		r.client.config.HNSWM,
		r.client.config.HNSWEfConstruction,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = r.client.milvus.CreateIndex(ctx, collName, "vector", idx, false)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// CreatePartition 创建组织分区
func (r *Repository) CreatePartition(ctx context.Context, collection, orgID string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CreatePartition",
		trace.WithAttributes(
			attribute.String("collection", collection),
			attribute.String("partition", PartitionName(orgID)),
		))
	defer span.End()

	collName := r.client.CollectionName(collection)
	return r.client.milvus.CreatePartition(ctx, collName, PartitionName(orgID))
}

// SearchChunks 相似度检索页面分片
func (r *Repository) SearchChunks(ctx context.Context, params *SearchParams) ([]*SearchResult, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return nil, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.SearchChunks",
		trace.WithAttributes(
			attribute.String("org_id", params.OrgID),
			attribute.Int("top_k", params.TopK),
		))
	defer span.End()

	collName := r.client.CollectionName(CollectionPageChunks)
	partitionName := PartitionName(params.OrgID)

	// 分区尚未创建（组织还没有索引过任何页面）时直接返回空结果，
	// 避免 Milvus 报 partition not found。
	if has, err := r.client.milvus.HasPartition(ctx, collName, partitionName); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to check partition: %w", err)
	} else if !has {
		return []*SearchResult{}, nil
	}

	filter := fmt.Sprintf(`org_id == "%s"`, params.OrgID)
	if params.PageID != "" {
		filter += fmt.Sprintf(` && page_id == "%s"`, params.PageID)
	}
	if params.CollectionID != "" {
		filter += fmt.Sprintf(` && collection_id == "%s"`, params.CollectionID)
	}
	if params.SpaceID != "" {
		filter += fmt.Sprintf(` && space_id == "%s"`, params.SpaceID)
	}

	sp, err := entity.NewIndexHNSWSearchParam(128)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	start := time.Now()
	results, err := r.client.milvus.Search(ctx,
		collName,
		[]string{partitionName},
		filter,
		[]string{"id", "page_id", "ordinal", "title", "snippet", "collection_id", "space_id"},
		[]entity.Vector{entity.FloatVector(params.QueryVector)},
		"vector",
		entity.COSINE,
		params.TopK,
		sp,
	)
	metrics.MilvusSearchDuration.WithLabelValues(CollectionPageChunks).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MilvusSearchTotal.WithLabelValues(CollectionPageChunks, "error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	metrics.MilvusSearchTotal.WithLabelValues(CollectionPageChunks, "ok").Inc()

	var searchResults []*SearchResult
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			sr := &SearchResult{
				Score: result.Scores[i],
			}

			if col, ok := result.Fields.GetColumn("id").(*entity.ColumnVarChar); ok {
				sr.ID = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("page_id").(*entity.ColumnVarChar); ok {
				sr.PageID = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("ordinal").(*entity.ColumnInt64); ok {
				sr.Ordinal = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("title").(*entity.ColumnVarChar); ok {
				sr.Title = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("snippet").(*entity.ColumnVarChar); ok {
				sr.Snippet = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("collection_id").(*entity.ColumnVarChar); ok {
				sr.CollectionID = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("space_id").(*entity.ColumnVarChar); ok {
				sr.SpaceID = col.Data()[i]
			}

			searchResults = append(searchResults, sr)
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(searchResults)))
	return searchResults, nil
}

// InsertChunks 插入页面分片（分区不存在时先创建）
func (r *Repository) InsertChunks(ctx context.Context, orgID string, chunks []*PageChunk) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.InsertChunks",
		trace.WithAttributes(
			attribute.String("org_id", orgID),
			attribute.Int("count", len(chunks)),
		))
	defer span.End()

	if len(chunks) == 0 {
		return nil
	}

	collName := r.client.CollectionName(CollectionPageChunks)
	partitionName := PartitionName(orgID)

	has, _ := r.client.milvus.HasPartition(ctx, collName, partitionName)
	if !has {
		if err := r.CreatePartition(ctx, CollectionPageChunks, orgID); err != nil {
			return err
		}
	}

	ids := make([]string, len(chunks))
	vectors := make([][]float32, len(chunks))
	orgIDs := make([]string, len(chunks))
	pageIDs := make([]string, len(chunks))
	ordinals := make([]int64, len(chunks))
	chunkTotals := make([]int64, len(chunks))
	titles := make([]string, len(chunks))
	snippets := make([]string, len(chunks))
	collectionIDs := make([]string, len(chunks))
	spaceIDs := make([]string, len(chunks))

	for i, c := range chunks {
		ids[i] = c.ID
		vectors[i] = c.Vector
		orgIDs[i] = c.OrgID
		pageIDs[i] = c.PageID
		ordinals[i] = c.Ordinal
		chunkTotals[i] = c.ChunkTotal
		titles[i] = c.Title
		snippets[i] = c.Snippet
		collectionIDs[i] = c.CollectionID
		spaceIDs[i] = c.SpaceID
	}

	idCol := entity.NewColumnVarChar("id", ids)
	vectorCol := entity.NewColumnFloatVector("vector", r.dimension, vectors)
	orgCol := entity.NewColumnVarChar("org_id", orgIDs)
	pageCol := entity.NewColumnVarChar("page_id", pageIDs)
	ordinalCol := entity.NewColumnInt64("ordinal", ordinals)
	totalCol := entity.NewColumnInt64("chunk_total", chunkTotals)
	titleCol := entity.NewColumnVarChar("title", titles)
	snippetCol := entity.NewColumnVarChar("snippet", snippets)
	collectionCol := entity.NewColumnVarChar("collection_id", collectionIDs)
	spaceCol := entity.NewColumnVarChar("space_id", spaceIDs)

	_, err := r.client.milvus.Upsert(ctx, collName, partitionName,
		idCol, vectorCol, orgCol, pageCol, ordinalCol, totalCol, titleCol, snippetCol, collectionCol, spaceCol)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	return nil
}

// DeleteByIDs 按主键批量删除分片（分区不存在时直接成功）
func (r *Repository) DeleteByIDs(ctx context.Context, orgID string, ids []string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	if len(ids) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "milvus.DeleteByIDs",
		trace.WithAttributes(
			attribute.String("org_id", orgID),
			attribute.Int("count", len(ids)),
		))
	defer span.End()

	collName := r.client.CollectionName(CollectionPageChunks)
	partitionName := PartitionName(orgID)

	if has, err := r.client.milvus.HasPartition(ctx, collName, partitionName); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check partition: %w", err)
	} else if !has {
		return nil
	}

	quoted := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		quoted = append(quoted, fmt.Sprintf("%q", id))
	}
	if len(quoted) == 0 {
		return nil
	}

	filter := "id in [" + strings.Join(quoted, ", ") + "]"
	if err := r.client.milvus.Delete(ctx, collName, partitionName, filter); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// EnsurePageChunksCollection 确保 page_chunks 集合与索引可用（不存在则创建）。
// 约束：不会做 drop/rebuild 等破坏性操作。
func (r *Repository) EnsurePageChunksCollection(ctx context.Context) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}

	exists, err := r.client.HasCollection(ctx, CollectionPageChunks)
	if err != nil {
		return err
	}
	if !exists {
		if err := r.CreateCollection(ctx, PageChunksSchema(r.dimension)); err != nil {
			return err
		}
		// 新建集合时创建索引；若失败，允许后续由运维介入。
		_ = r.CreateIndex(ctx, CollectionPageChunks)
	}

	// 尝试确保集合已加载（若已加载，Milvus 会返回成功）
	return r.client.LoadCollection(ctx, CollectionPageChunks)
}
