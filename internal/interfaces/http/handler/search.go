// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"kb-ai-api/internal/application/retrieval"
	"kb-ai-api/internal/interfaces/http/dto"
	"kb-ai-api/internal/interfaces/http/middleware"
	"kb-ai-api/pkg/logger"
)

// SearchHandler 检索处理器
type SearchHandler struct {
	engine   *retrieval.Engine
	enricher *retrieval.Enricher
}

// NewSearchHandler 创建检索处理器
func NewSearchHandler(engine *retrieval.Engine, enricher *retrieval.Enricher) *SearchHandler {
	return &SearchHandler{
		engine:   engine,
		enricher: enricher,
	}
}

// Semantic 语义检索
// @Summary 语义检索
// @Description 基于向量相似度检索知识库页面
// @Tags Search
// @Accept json
// @Produce json
// @Param body body dto.SearchRequest true "检索请求"
// @Success 200 {object} dto.Response[dto.SearchResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/search/semantic [post]
func (h *SearchHandler) Semantic(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	in := h.toInput(c, &req)
	results, err := h.engine.Search(c.Request.Context(), in)
	if err != nil {
		respondRetrievalError(c, err, "semantic search failed")
		return
	}

	h.enrich(c, in.OrgID, results)
	dto.Success(c, dto.ToSearchResponse(results))
}

// Search 混合检索（默认）或关键词检索
// @Summary 混合检索
// @Description 合并语义与关键词两路检索结果
// @Tags Search
// @Accept json
// @Produce json
// @Param body body dto.SearchRequest true "检索请求"
// @Success 200 {object} dto.Response[dto.SearchResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/search [post]
func (h *SearchHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	in := h.toInput(c, &req)

	var (
		results []*retrieval.SearchResult
		err     error
	)
	switch req.Mode {
	case "", "hybrid":
		results, err = h.engine.HybridSearch(c.Request.Context(), in)
	case "lexical":
		results, err = h.engine.Lexical(c.Request.Context(), in)
	default:
		dto.BadRequest(c, "unknown search mode: "+req.Mode)
		return
	}
	if err != nil {
		respondRetrievalError(c, err, "search failed")
		return
	}

	h.enrich(c, in.OrgID, results)
	dto.Success(c, dto.ToSearchResponse(results))
}

func (h *SearchHandler) toInput(c *gin.Context, req *dto.SearchRequest) retrieval.SearchInput {
	return retrieval.SearchInput{
		OrgID:        middleware.GetOrgIDFromGin(c),
		Query:        req.Query,
		CollectionID: req.CollectionID,
		SpaceID:      req.SpaceID,
		Limit:        req.Limit,
		MinScore:     req.MinScoreOrDefault(h.engine.DefaultMinScore()),
	}
}

// enrich 回填页面元数据。失败只降级不报错，结果仍按索引副本返回。
func (h *SearchHandler) enrich(c *gin.Context, orgID string, results []*retrieval.SearchResult) {
	if h.enricher == nil || len(results) == 0 {
		return
	}
	if err := h.enricher.Enrich(c.Request.Context(), orgID, results); err != nil {
		logger.Warn(c.Request.Context(), "result enrichment failed", "error", err)
	}
}
