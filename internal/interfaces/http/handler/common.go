// Package handler 提供 HTTP 请求处理器
package handler

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"kb-ai-api/internal/application/retrieval"
	"kb-ai-api/internal/interfaces/http/dto"
	"kb-ai-api/pkg/errors"
	"kb-ai-api/pkg/logger"
)

// respondRetrievalError 将应用层错误映射为 HTTP 响应
func respondRetrievalError(c *gin.Context, err error, fallback string) {
	ctx := c.Request.Context()

	switch {
	case stderrors.Is(err, retrieval.ErrVectorDisabled):
		dto.ServiceUnavailable(c, "vector retrieval is disabled")
	case stderrors.Is(err, retrieval.ErrProvider):
		logger.Error(ctx, "model provider error", err)
		dto.Error(c, http.StatusBadGateway, "model provider error")
	case errors.IsAppError(err):
		appErr := errors.AsAppError(err)
		c.JSON(appErr.HTTPStatus, dto.ErrorResponse{
			Code:    appErr.HTTPStatus,
			Message: appErr.Message,
			TraceID: c.GetString("trace_id"),
		})
	default:
		logger.Error(ctx, fallback, err)
		dto.InternalError(c, fallback)
	}
}
