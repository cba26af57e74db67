package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatModelProvider 定义应用层对生成服务工厂的最小依赖（port）。
// 由 infrastructure/llm 提供实现。
type ChatModelProvider interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
}

// ChatMessage 多轮对话中的一条消息。Role ∈ {system, user, assistant}。
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnswerInput 单轮问答输入。
type AnswerInput struct {
	OrgID string
	Query string

	CollectionID string
	SpaceID      string

	Provider    string
	Model       string
	Temperature *float32
	MaxTokens   *int

	Limit    int
	MinScore float64
}

// ConversationInput 多轮问答输入：检索只用最近一条用户消息，
// 完整历史则原样传给生成服务。
type ConversationInput struct {
	OrgID    string
	Messages []ChatMessage

	CollectionID string
	SpaceID      string

	Provider    string
	Model       string
	Temperature *float32
	MaxTokens   *int

	Limit    int
	MinScore float64
}

// AnswerOutput 回答与其引用来源（与上下文文档同序）。
type AnswerOutput struct {
	Answer  string
	Sources []Source
}

// AnswerGenerator RAG 编排：语义检索 → 组装上下文块 → 调用生成服务。
type AnswerGenerator struct {
	engine *Engine
	models ChatModelProvider

	contextDocs  int
	contextRunes int
}

func NewAnswerGenerator(engine *Engine, models ChatModelProvider, contextDocs, contextRunes int) *AnswerGenerator {
	if contextDocs <= 0 {
		contextDocs = defaultSearchLimit
	}
	if contextRunes <= 0 {
		contextRunes = 1500
	}
	return &AnswerGenerator{
		engine:       engine,
		models:       models,
		contextDocs:  contextDocs,
		contextRunes: contextRunes,
	}
}

// Answer 单轮问答（非流式）。
func (g *AnswerGenerator) Answer(ctx context.Context, in *AnswerInput) (*AnswerOutput, error) {
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	results, sources, err := g.retrieve(ctx, SearchInput{
		OrgID:        in.OrgID,
		Query:        in.Query,
		CollectionID: in.CollectionID,
		SpaceID:      in.SpaceID,
		Limit:        in.Limit,
		MinScore:     in.MinScore,
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &AnswerOutput{Answer: noContextAnswer, Sources: []Source{}}, nil
	}

	msgs := g.buildMessages(results, []ChatMessage{{Role: "user", Content: in.Query}})
	return g.generate(ctx, in.Provider, msgs, sources, buildModelOptions(in.Model, in.Temperature, in.MaxTokens))
}

// AnswerConversation 多轮问答（非流式）。
func (g *AnswerGenerator) AnswerConversation(ctx context.Context, in *ConversationInput) (*AnswerOutput, error) {
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	query := lastUserMessage(in.Messages)
	if query == "" {
		return nil, fmt.Errorf("no user message in conversation")
	}
	results, sources, err := g.retrieve(ctx, SearchInput{
		OrgID:        in.OrgID,
		Query:        query,
		CollectionID: in.CollectionID,
		SpaceID:      in.SpaceID,
		Limit:        in.Limit,
		MinScore:     in.MinScore,
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &AnswerOutput{Answer: noContextAnswer, Sources: []Source{}}, nil
	}

	msgs := g.buildMessages(results, in.Messages)
	return g.generate(ctx, in.Provider, msgs, sources, buildModelOptions(in.Model, in.Temperature, in.MaxTokens))
}

// Stream 单轮问答的流式变体。返回的 StreamReader 由调用方 Close()；
// 提供商分片按到达顺序原样转发，不做缓冲或重排。
// 检索为空时返回 nil reader 与固定回答（通过 AnswerOutput 传递）。
func (g *AnswerGenerator) Stream(ctx context.Context, in *AnswerInput) (*schema.StreamReader[*schema.Message], *AnswerOutput, error) {
	if in == nil {
		return nil, nil, fmt.Errorf("input is nil")
	}
	search := SearchInput{
		OrgID:        in.OrgID,
		Query:        in.Query,
		CollectionID: in.CollectionID,
		SpaceID:      in.SpaceID,
		Limit:        in.Limit,
		MinScore:     in.MinScore,
	}
	history := []ChatMessage{{Role: "user", Content: in.Query}}
	return g.stream(ctx, search, history, in.Provider, in.Model, in.Temperature, in.MaxTokens)
}

// StreamConversation 多轮问答的流式变体。检索复用最近一条用户消息，
// 完整历史原样传给生成服务；语义同 Stream。
func (g *AnswerGenerator) StreamConversation(ctx context.Context, in *ConversationInput) (*schema.StreamReader[*schema.Message], *AnswerOutput, error) {
	if in == nil {
		return nil, nil, fmt.Errorf("input is nil")
	}
	query := lastUserMessage(in.Messages)
	if query == "" {
		return nil, nil, fmt.Errorf("no user message in conversation")
	}
	search := SearchInput{
		OrgID:        in.OrgID,
		Query:        query,
		CollectionID: in.CollectionID,
		SpaceID:      in.SpaceID,
		Limit:        in.Limit,
		MinScore:     in.MinScore,
	}
	return g.stream(ctx, search, in.Messages, in.Provider, in.Model, in.Temperature, in.MaxTokens)
}

func (g *AnswerGenerator) stream(ctx context.Context, search SearchInput, history []ChatMessage, provider, modelName string, temperature *float32, maxTokens *int) (*schema.StreamReader[*schema.Message], *AnswerOutput, error) {
	results, sources, err := g.retrieve(ctx, search)
	if err != nil {
		return nil, nil, err
	}
	if len(results) == 0 {
		return nil, &AnswerOutput{Answer: noContextAnswer, Sources: []Source{}}, nil
	}

	chatModel, err := g.chatModel(ctx, provider)
	if err != nil {
		return nil, nil, err
	}
	msgs := g.buildMessages(results, history)
	reader, err := chatModel.Stream(ctx, msgs, buildModelOptions(modelName, temperature, maxTokens)...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	return reader, &AnswerOutput{Sources: sources}, nil
}

func (g *AnswerGenerator) retrieve(ctx context.Context, in SearchInput) ([]*SearchResult, []Source, error) {
	if g == nil || g.engine == nil {
		return nil, nil, ErrVectorDisabled
	}
	if in.MinScore == 0 {
		in.MinScore = g.engine.DefaultMinScore()
	}
	results, err := g.engine.Search(ctx, in)
	if err != nil {
		return nil, nil, err
	}

	n := len(results)
	if n > g.contextDocs {
		n = g.contextDocs
		results = results[:n]
	}
	sources := make([]Source, 0, n)
	for _, r := range results {
		sources = append(sources, Source{
			PageID: r.PageID,
			Title:  r.Title,
			Score:  r.Score,
		})
	}
	return results, sources, nil
}

func (g *AnswerGenerator) buildMessages(results []*SearchResult, history []ChatMessage) []*schema.Message {
	contextBlock := BuildContextBlock(results, g.contextDocs, g.contextRunes)

	msgs := make([]*schema.Message, 0, len(history)+1)
	msgs = append(msgs, &schema.Message{
		Role:    schema.System,
		Content: ragSystemPrompt + "\n\nContext:\n" + contextBlock,
	})
	for _, m := range history {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		msgs = append(msgs, &schema.Message{
			Role:    messageRole(m.Role),
			Content: content,
		})
	}
	return msgs
}

func (g *AnswerGenerator) generate(ctx context.Context, provider string, msgs []*schema.Message, sources []Source, opts []model.Option) (*AnswerOutput, error) {
	chatModel, err := g.chatModel(ctx, provider)
	if err != nil {
		return nil, err
	}
	outMsg, err := chatModel.Generate(ctx, msgs, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if outMsg == nil || strings.TrimSpace(outMsg.Content) == "" {
		return nil, fmt.Errorf("%w: empty completion", ErrProvider)
	}
	return &AnswerOutput{
		Answer:  strings.TrimSpace(outMsg.Content),
		Sources: sources,
	}, nil
}

func (g *AnswerGenerator) chatModel(ctx context.Context, provider string) (model.BaseChatModel, error) {
	if g == nil || g.models == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	return g.models.Get(ctx, strings.TrimSpace(provider))
}

func buildModelOptions(modelName string, temperature *float32, maxTokens *int) []model.Option {
	opts := make([]model.Option, 0, 3)
	if temperature != nil {
		opts = append(opts, model.WithTemperature(*temperature))
	}
	if maxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*maxTokens))
	}
	if strings.TrimSpace(modelName) != "" {
		opts = append(opts, model.WithModel(strings.TrimSpace(modelName)))
	}
	return opts
}

func lastUserMessage(messages []ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if strings.EqualFold(messages[i].Role, "user") {
			return strings.TrimSpace(messages[i].Content)
		}
	}
	return ""
}

func messageRole(role string) schema.RoleType {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "assistant":
		return schema.Assistant
	case "system":
		return schema.System
	default:
		return schema.User
	}
}
