package retrieval

import "context"

// Embedder 定义应用层对嵌入服务的最小依赖（port）。
// 实现方保证：逐条对应、与输入等长、空输入不发起网络调用。
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex 定义应用层对向量存储的最小依赖（port）。
// 由基础设施层提供具体实现（例如 Milvus）。
// Query 的元数据过滤是尽力而为的能力，实现不支持过滤时返回错误，
// 由调用方走兜底路径（见 Indexer.DeleteIndex）。
type VectorIndex interface {
	EnsurePageChunksCollection(ctx context.Context) error
	Upsert(ctx context.Context, orgID string, entries []*VectorEntry) error
	Query(ctx context.Context, params *VectorQueryParams) ([]*VectorMatch, error)
	DeleteByIDs(ctx context.Context, orgID string, ids []string) error
}

// VectorEntry 向量索引中的存储单元：一个已嵌入的 chunk 及其完整上下文元数据。
// ID 由 (PageID, Ordinal) 确定性派生，重建索引时新旧条目 id 碰撞可替换。
type VectorEntry struct {
	ID     string
	Vector []float32

	OrgID      string
	PageID     string
	Ordinal    int64
	ChunkTotal int64

	Title   string
	Snippet string

	CollectionID string
	SpaceID      string
}

// VectorQueryParams 相似度查询参数。
type VectorQueryParams struct {
	OrgID  string
	Vector []float32
	TopK   int

	// PageID 非空时按页面精确过滤（删除扫描路径）。
	PageID string

	// CollectionID / SpaceID 为空表示不过滤。
	CollectionID string
	SpaceID      string
}

// VectorMatch 相似度查询命中。Score 为相似度，越大越相关（COSINE）。
type VectorMatch struct {
	ID      string
	Score   float32
	PageID  string
	Ordinal int64
	Title   string
	Snippet string

	CollectionID string
	SpaceID      string
}
