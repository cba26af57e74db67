// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"kb-ai-api/internal/application/retrieval"
	"kb-ai-api/internal/domain/repository"
	"kb-ai-api/internal/infrastructure/messaging"
	"kb-ai-api/internal/interfaces/http/dto"
	"kb-ai-api/internal/interfaces/http/middleware"
	"kb-ai-api/pkg/logger"
)

// IndexEventPublisher 索引事件发布接口，由 messaging.Producer 实现
type IndexEventPublisher interface {
	PublishPageReindex(ctx context.Context, event *messaging.ReindexPageMessage) (string, error)
	PublishPageIndexDelete(ctx context.Context, event *messaging.DeleteIndexMessage) (string, error)
	PublishIndexRebuild(ctx context.Context, event *messaging.RebuildIndexMessage) (string, error)
}

// PageCacheInvalidator 页面元数据缓存失效接口，由 redis.Cache 实现
type PageCacheInvalidator interface {
	InvalidatePage(ctx context.Context, orgID, pageID string) error
	InvalidateOrg(ctx context.Context, orgID string) error
}

// IndexHandler 索引生命周期处理器
type IndexHandler struct {
	indexer  *retrieval.Indexer
	pages    repository.PageRepository
	producer IndexEventPublisher
	cacheInv PageCacheInvalidator
}

// NewIndexHandler 创建索引处理器
func NewIndexHandler(indexer *retrieval.Indexer, pages repository.PageRepository, producer IndexEventPublisher, cacheInv PageCacheInvalidator) *IndexHandler {
	return &IndexHandler{
		indexer:  indexer,
		pages:    pages,
		producer: producer,
		cacheInv: cacheInv,
	}
}

// invalidatePageCache 重建与删除都由页面变更触发，先失效缓存避免读到过期副本。
// 失效失败只降级，不阻塞请求。
func (h *IndexHandler) invalidatePageCache(ctx context.Context, orgID, pageID string) {
	if h.cacheInv == nil {
		return
	}
	if err := h.cacheInv.InvalidatePage(ctx, orgID, pageID); err != nil {
		logger.Warn(ctx, "page cache invalidation failed", "error", err, "page_id", pageID)
	}
}

// Reindex 重建单个页面的索引。默认同步执行，async=true 时发布到索引队列
// @Summary 重建页面索引
// @Description 先删后插地重建页面的全部向量条目
// @Tags Index
// @Accept json
// @Produce json
// @Param pid path string true "页面 ID"
// @Param async query bool false "异步执行"
// @Success 200 {object} dto.Response[dto.ReindexResponse]
// @Success 202 {object} dto.Response[dto.EnqueuedResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/pages/{pid}/reindex [post]
func (h *IndexHandler) Reindex(c *gin.Context) {
	ctx := c.Request.Context()
	orgID := middleware.GetOrgIDFromGin(c)
	pageID := c.Param("pid")

	h.invalidatePageCache(ctx, orgID, pageID)

	if c.Query("async") == "true" {
		h.enqueueReindex(c, orgID, pageID)
		return
	}

	page, err := h.pages.GetByID(ctx, orgID, pageID)
	if err != nil {
		respondRetrievalError(c, err, "failed to load page")
		return
	}
	if page == nil {
		dto.NotFound(c, "page not found")
		return
	}

	chunks, err := h.indexer.Reindex(ctx, page)
	if err != nil {
		respondRetrievalError(c, err, "reindex failed")
		return
	}

	dto.Success(c, &dto.ReindexResponse{
		PageID: page.ID,
		Chunks: chunks,
	})
}

func (h *IndexHandler) enqueueReindex(c *gin.Context, orgID, pageID string) {
	ctx := c.Request.Context()
	if h.producer == nil {
		dto.ServiceUnavailable(c, "index queue not configured")
		return
	}

	msgID, err := h.producer.PublishPageReindex(ctx, &messaging.ReindexPageMessage{
		OrgID:  orgID,
		PageID: pageID,
	})
	if err != nil {
		logger.Error(ctx, "failed to enqueue reindex", err, "page_id", pageID)
		dto.InternalError(c, "failed to enqueue reindex")
		return
	}

	dto.Accepted(c, &dto.EnqueuedResponse{
		PageID:    pageID,
		MessageID: msgID,
		Enqueued:  true,
	})
}

// DeleteIndex 删除页面的全部向量条目。默认同步执行，async=true 时发布到索引队列
// @Summary 删除页面索引
// @Description 幂等地移除页面在向量索引中的所有条目
// @Tags Index
// @Accept json
// @Produce json
// @Param pid path string true "页面 ID"
// @Param async query bool false "异步执行"
// @Success 200 {object} dto.Response[dto.DeleteIndexResponse]
// @Success 202 {object} dto.Response[dto.EnqueuedResponse]
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/pages/{pid}/index [delete]
func (h *IndexHandler) DeleteIndex(c *gin.Context) {
	ctx := c.Request.Context()
	orgID := middleware.GetOrgIDFromGin(c)
	pageID := c.Param("pid")

	h.invalidatePageCache(ctx, orgID, pageID)

	if c.Query("async") == "true" {
		h.enqueueIndexDelete(c, orgID, pageID)
		return
	}

	if err := h.indexer.DeleteIndex(ctx, orgID, pageID); err != nil {
		respondRetrievalError(c, err, "index deletion failed")
		return
	}

	dto.Success(c, &dto.DeleteIndexResponse{
		PageID:  pageID,
		Deleted: true,
	})
}

func (h *IndexHandler) enqueueIndexDelete(c *gin.Context, orgID, pageID string) {
	ctx := c.Request.Context()
	if h.producer == nil {
		dto.ServiceUnavailable(c, "index queue not configured")
		return
	}

	msgID, err := h.producer.PublishPageIndexDelete(ctx, &messaging.DeleteIndexMessage{
		OrgID:  orgID,
		PageID: pageID,
	})
	if err != nil {
		logger.Error(ctx, "failed to enqueue index deletion", err, "page_id", pageID)
		dto.InternalError(c, "failed to enqueue index deletion")
		return
	}

	dto.Accepted(c, &dto.EnqueuedResponse{
		PageID:    pageID,
		MessageID: msgID,
		Enqueued:  true,
	})
}

// Rebuild 异步重建一个范围内全部页面的索引
// @Summary 范围重建索引
// @Description 发布重建事件到索引队列，由 worker 异步消费
// @Tags Index
// @Accept json
// @Produce json
// @Param body body dto.RebuildRequest true "重建范围"
// @Success 202 {object} dto.Response[dto.RebuildResponse]
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/index/rebuild [post]
func (h *IndexHandler) Rebuild(c *gin.Context) {
	ctx := c.Request.Context()
	orgID := middleware.GetOrgIDFromGin(c)

	var req dto.RebuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if h.producer == nil {
		dto.ServiceUnavailable(c, "index queue not configured")
		return
	}

	// 范围重建意味着上游批量变更，整个组织的页面缓存一并失效
	if h.cacheInv != nil {
		if err := h.cacheInv.InvalidateOrg(ctx, orgID); err != nil {
			logger.Warn(ctx, "org cache invalidation failed", "error", err, "org_id", orgID)
		}
	}

	msgID, err := h.producer.PublishIndexRebuild(ctx, &messaging.RebuildIndexMessage{
		OrgID:        orgID,
		CollectionID: req.CollectionID,
		SpaceID:      req.SpaceID,
	})
	if err != nil {
		logger.Error(ctx, "failed to enqueue rebuild", err)
		dto.InternalError(c, "failed to enqueue rebuild")
		return
	}

	dto.Accepted(c, &dto.RebuildResponse{
		MessageID: msgID,
		Enqueued:  true,
	})
}

// ListChunks 列出页面当前已索引的条目
// @Summary 列出页面索引条目
// @Description 调试接口：返回页面在向量索引中的全部条目
// @Tags Index
// @Produce json
// @Param pid path string true "页面 ID"
// @Success 200 {object} dto.Response[dto.ChunkListResponse]
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/pages/{pid}/chunks [get]
func (h *IndexHandler) ListChunks(c *gin.Context) {
	ctx := c.Request.Context()
	orgID := middleware.GetOrgIDFromGin(c)
	pageID := c.Param("pid")

	matches, err := h.indexer.ListEntries(ctx, orgID, pageID)
	if err != nil {
		respondRetrievalError(c, err, "failed to list index entries")
		return
	}

	dto.Success(c, dto.ToChunkListResponse(pageID, matches))
}
