package retrieval

import "errors"

var (
	// ErrVectorDisabled 表示向量检索/索引能力未配置（Milvus 或 Embedder 不可用）。
	ErrVectorDisabled = errors.New("vector retrieval is disabled")

	// ErrProvider 表示外部模型服务不可用或返回了畸形响应（嵌入或生成）。
	// 核心内不做自动重试，由调用方决定重试/退避策略。
	ErrProvider = errors.New("model provider error")
)
