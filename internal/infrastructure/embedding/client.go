// Package embedding 提供 Embedding 服务客户端
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"kb-ai-api/internal/application/retrieval"
	"kb-ai-api/internal/config"
	"kb-ai-api/pkg/metrics"
)

const (
	defaultBatchSize     = 32
	defaultMaxInputChars = 8000
)

// Client 把 Eino Embedder 适配成应用层的 Embedder port：
// 分批调用、按提供商上限截断超长输入、float64 → float32。
type Client struct {
	embedder embedding.Embedder

	provider      string
	model         string
	batchSize     int
	maxInputChars int
}

var _ retrieval.Embedder = (*Client)(nil)

// NewClient 创建 Embedding 客户端
func NewClient(embedder embedding.Embedder, cfg *config.EmbeddingConfig) *Client {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	maxChars := cfg.MaxInputChars
	if maxChars <= 0 {
		maxChars = defaultMaxInputChars
	}
	return &Client{
		embedder:      embedder,
		provider:      cfg.Provider,
		model:         cfg.Model,
		batchSize:     batchSize,
		maxInputChars: maxChars,
	}
}

// Embed 批量嵌入。保证与输入逐条对应且等长；空输入不发起网络调用。
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if c == nil || c.embedder == nil {
		return nil, retrieval.ErrVectorDisabled
	}

	prepared := make([]string, len(texts))
	for i, t := range texts {
		prepared[i] = truncateChars(t, c.maxInputChars)
	}

	all := make([][]float32, 0, len(prepared))
	for i := 0; i < len(prepared); i += c.batchSize {
		end := i + c.batchSize
		if end > len(prepared) {
			end = len(prepared)
		}

		vectors, err := c.embedBatch(ctx, prepared[i:end])
		if err != nil {
			return nil, err
		}
		all = append(all, vectors...)
	}

	if len(all) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts",
			retrieval.ErrProvider, len(all), len(texts))
	}
	return all, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	raw, err := c.embedder.EmbedStrings(ctx, texts)
	metrics.EmbeddingCallDuration.WithLabelValues(c.provider, c.model).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EmbeddingCallTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		return nil, fmt.Errorf("%w: %v", retrieval.ErrProvider, err)
	}
	metrics.EmbeddingCallTotal.WithLabelValues(c.provider, c.model, "ok").Inc()
	metrics.EmbeddingTextsTotal.Add(float64(len(texts)))

	if len(raw) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts",
			retrieval.ErrProvider, len(raw), len(texts))
	}

	out := make([][]float32, len(raw))
	for i, vec := range raw {
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at index %d", retrieval.ErrProvider, i)
		}
		converted := make([]float32, len(vec))
		for j, v := range vec {
			converted[j] = float32(v)
		}
		out[i] = converted
	}
	return out, nil
}

func truncateChars(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
