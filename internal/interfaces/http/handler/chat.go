// Package handler 提供 HTTP 请求处理器
package handler

import (
	"io"

	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"

	"kb-ai-api/internal/application/retrieval"
	"kb-ai-api/internal/interfaces/http/dto"
	"kb-ai-api/internal/interfaces/http/middleware"
	"kb-ai-api/pkg/logger"
)

// ChatHandler 知识库问答处理器
type ChatHandler struct {
	generator *retrieval.AnswerGenerator
}

// NewChatHandler 创建问答处理器
func NewChatHandler(generator *retrieval.AnswerGenerator) *ChatHandler {
	return &ChatHandler{
		generator: generator,
	}
}

// Chat 知识库问答
// @Summary 知识库问答
// @Description 检索相关文档并生成回答，Messages 非空时走多轮对话
// @Tags Chat
// @Accept json
// @Produce json
// @Param body body dto.ChatRequest true "问答请求"
// @Success 200 {object} dto.Response[dto.ChatResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	ctx := c.Request.Context()
	orgID := middleware.GetOrgIDFromGin(c)

	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	var (
		out *retrieval.AnswerOutput
		err error
	)
	if len(req.Messages) > 0 {
		out, err = h.generator.AnswerConversation(ctx, &retrieval.ConversationInput{
			OrgID:        orgID,
			Messages:     req.ToRetrievalMessages(),
			CollectionID: req.CollectionID,
			SpaceID:      req.SpaceID,
			Provider:     req.Provider,
			Model:        req.Model,
			Temperature:  req.Temperature,
			MaxTokens:    req.MaxTokens,
			Limit:        req.Limit,
			MinScore:     req.MinScore,
		})
	} else {
		if req.Query == "" {
			dto.BadRequest(c, "query or messages is required")
			return
		}
		out, err = h.generator.Answer(ctx, h.toAnswerInput(orgID, &req, req.Query))
	}
	if err != nil {
		respondRetrievalError(c, err, "chat failed")
		return
	}

	dto.Success(c, &dto.ChatResponse{
		Answer:  out.Answer,
		Sources: out.Sources,
	})
}

// ChatStream 流式知识库问答
// @Summary 流式知识库问答
// @Description 通过 SSE 流式下发回答分片，首个事件携带引用来源
// @Tags Chat
// @Accept json
// @Produce text/event-stream
// @Param body body dto.ChatRequest true "问答请求"
// @Success 200 "SSE stream"
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/chat/stream [post]
func (h *ChatHandler) ChatStream(c *gin.Context) {
	ctx := c.Request.Context()
	orgID := middleware.GetOrgIDFromGin(c)

	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	var (
		reader *schema.StreamReader[*schema.Message]
		out    *retrieval.AnswerOutput
		err    error
	)
	if len(req.Messages) > 0 {
		reader, out, err = h.generator.StreamConversation(ctx, &retrieval.ConversationInput{
			OrgID:        orgID,
			Messages:     req.ToRetrievalMessages(),
			CollectionID: req.CollectionID,
			SpaceID:      req.SpaceID,
			Provider:     req.Provider,
			Model:        req.Model,
			Temperature:  req.Temperature,
			MaxTokens:    req.MaxTokens,
			Limit:        req.Limit,
			MinScore:     req.MinScore,
		})
	} else {
		if req.Query == "" {
			dto.BadRequest(c, "query or messages is required")
			return
		}
		reader, out, err = h.generator.Stream(ctx, h.toAnswerInput(orgID, &req, req.Query))
	}
	if err != nil {
		respondRetrievalError(c, err, "chat stream failed")
		return
	}

	// SSE 响应头
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	// 检索无命中：不调用模型，直接下发固定回答
	if reader == nil {
		c.SSEvent("sources", out.Sources)
		c.SSEvent("content", gin.H{"chunk": out.Answer, "index": 0})
		c.SSEvent("done", gin.H{})
		c.Writer.Flush()
		return
	}
	defer reader.Close()

	c.SSEvent("sources", out.Sources)

	index := 0
	c.Stream(func(w io.Writer) bool {
		msg, recvErr := reader.Recv()
		if recvErr == io.EOF {
			c.SSEvent("done", gin.H{})
			return false
		}
		if recvErr != nil {
			// 提供商原始错误只落日志，客户端收到统一文案
			logger.Error(c.Request.Context(), "chat stream generation failed", recvErr)
			c.SSEvent("error", gin.H{"message": "failed to generate answer"})
			return false
		}

		c.SSEvent("content", gin.H{
			"chunk": msg.Content,
			"index": index,
		})
		index++

		select {
		case <-c.Request.Context().Done():
			return false
		default:
			return true
		}
	})
}

func (h *ChatHandler) toAnswerInput(orgID string, req *dto.ChatRequest, query string) *retrieval.AnswerInput {
	return &retrieval.AnswerInput{
		OrgID:        orgID,
		Query:        query,
		CollectionID: req.CollectionID,
		SpaceID:      req.SpaceID,
		Provider:     req.Provider,
		Model:        req.Model,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		Limit:        req.Limit,
		MinScore:     req.MinScore,
	}
}
