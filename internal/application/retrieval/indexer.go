package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"kb-ai-api/internal/domain/entity"
	"kb-ai-api/pkg/logger"
)

const (
	defaultUpsertBatchSize  = 100
	defaultMaxChunksPerPage = 100
	defaultDeleteScanTopK   = 1000
	defaultSnippetRunes     = 500
)

// IndexerConfig Indexer 可调参数；零值字段取默认值。
type IndexerConfig struct {
	ChunkTokens      int
	UpsertBatchSize  int
	MaxChunksPerPage int
	DeleteScanTopK   int
	SnippetRunes     int
	Dimension        int
}

// Indexer 负责页面向量索引的生命周期：先删后插的重建、分批 upsert、
// 以及面向不支持按元数据删除的索引的删除兜底。
type Indexer struct {
	embedder Embedder
	vector   VectorIndex

	chunkTokens      int
	upsertBatchSize  int
	maxChunksPerPage int
	deleteScanTopK   int
	snippetRunes     int
	dimension        int
}

func NewIndexer(embedder Embedder, vector VectorIndex, cfg IndexerConfig) *Indexer {
	i := &Indexer{
		embedder:         embedder,
		vector:           vector,
		chunkTokens:      cfg.ChunkTokens,
		upsertBatchSize:  cfg.UpsertBatchSize,
		maxChunksPerPage: cfg.MaxChunksPerPage,
		deleteScanTopK:   cfg.DeleteScanTopK,
		snippetRunes:     cfg.SnippetRunes,
		dimension:        cfg.Dimension,
	}
	if i.chunkTokens <= 0 {
		i.chunkTokens = defaultChunkTokens
	}
	if i.upsertBatchSize <= 0 {
		i.upsertBatchSize = defaultUpsertBatchSize
	}
	if i.maxChunksPerPage <= 0 {
		i.maxChunksPerPage = defaultMaxChunksPerPage
	}
	if i.deleteScanTopK <= 0 {
		i.deleteScanTopK = defaultDeleteScanTopK
	}
	if i.snippetRunes <= 0 {
		i.snippetRunes = defaultSnippetRunes
	}
	return i
}

func (i *Indexer) Enabled() bool {
	return i != nil && i.embedder != nil && i.vector != nil
}

func (i *Indexer) ensureReady(ctx context.Context) error {
	if i == nil || i.vector == nil {
		return ErrVectorDisabled
	}
	return i.vector.EnsurePageChunksCollection(ctx)
}

// EntryID 由 (pageID, ordinal) 确定性派生条目 id。
// 同一页面重建索引时新条目与旧条目 id 碰撞，从而可替换；
// 等价于在不支持 "WHERE page_id = ?" 删除的存储里模拟外键。
func EntryID(pageID string, ordinal int) string {
	return pageID + ":" + strconv.Itoa(ordinal)
}

// Reindex 以先删后插的方式重建页面的全部向量条目，返回写入的 chunk 数。
// 索引无事务保证：删除与插入之间存在一个短暂窗口，期间该页面的检索
// 结果可能为空或新旧混杂，调用方必须容忍。
func (i *Indexer) Reindex(ctx context.Context, page *entity.Page) (int, error) {
	if page == nil {
		return 0, fmt.Errorf("page is nil")
	}
	if strings.TrimSpace(page.OrgID) == "" || strings.TrimSpace(page.ID) == "" {
		return 0, fmt.Errorf("org_id and page.id are required")
	}
	if !i.Enabled() {
		return 0, ErrVectorDisabled
	}
	if err := i.ensureReady(ctx); err != nil {
		return 0, err
	}

	// 无条件先删（删除不存在的索引不是错误）。
	if err := i.DeleteIndex(ctx, page.OrgID, page.ID); err != nil {
		return 0, err
	}

	chunks := BuildChunks(page.ID, page.Content, i.chunkTokens)
	if len(chunks) == 0 {
		// 空正文不写索引，也不调用嵌入服务；上面的删除已清掉旧分片。
		return 0, nil
	}

	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}

	vectors, err := i.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("%w: got %d vectors for %d chunks", ErrProvider, len(vectors), len(chunks))
	}

	entries := make([]*VectorEntry, 0, len(chunks))
	for idx, c := range chunks {
		entries = append(entries, &VectorEntry{
			ID:           EntryID(page.ID, c.Ordinal),
			Vector:       vectors[idx],
			OrgID:        page.OrgID,
			PageID:       page.ID,
			Ordinal:      int64(c.Ordinal),
			ChunkTotal:   int64(len(chunks)),
			Title:        strings.TrimSpace(page.Title),
			Snippet:      truncateRunes(c.Text, i.snippetRunes),
			CollectionID: page.CollectionID,
			SpaceID:      page.SpaceID,
		})
	}

	// 分批顺序提交，控制内存并尊重存储端的批量上限。
	for start := 0; start < len(entries); start += i.upsertBatchSize {
		end := start + i.upsertBatchSize
		if end > len(entries) {
			end = len(entries)
		}
		if err := i.vector.Upsert(ctx, page.OrgID, entries[start:end]); err != nil {
			return 0, err
		}
	}
	return len(chunks), nil
}

// DeleteIndex 删除页面的全部向量条目。幂等：页面没有索引时直接成功。
// 首选路径：零向量宽查询 + page_id 过滤，收集命中的 id 后按 id 删除。
// 兜底路径（过滤不可用或查询失败）：按确定性 id 规则枚举
// pageID:0..maxChunksPerPage-1 外加历史单条目 id（裸 pageID）整批删除；
// 超过枚举上界的页面会遗留孤儿条目，这是已知的近似。
func (i *Indexer) DeleteIndex(ctx context.Context, orgID, pageID string) error {
	if !i.Enabled() {
		return ErrVectorDisabled
	}
	pageID = strings.TrimSpace(pageID)
	if pageID == "" {
		return nil
	}

	matches, err := i.vector.Query(ctx, &VectorQueryParams{
		OrgID:  orgID,
		Vector: i.zeroVector(),
		TopK:   i.deleteScanTopK,
		PageID: pageID,
	})
	if err == nil {
		if len(matches) == 0 {
			return nil
		}
		ids := make([]string, 0, len(matches))
		for _, m := range matches {
			if m == nil || m.ID == "" {
				continue
			}
			ids = append(ids, m.ID)
		}
		return i.vector.DeleteByIDs(ctx, orgID, ids)
	}

	logger.Warn(ctx, "filtered delete scan failed, falling back to id enumeration",
		"page_id", pageID, "error", err.Error())

	ids := make([]string, 0, i.maxChunksPerPage+1)
	for ord := 0; ord < i.maxChunksPerPage; ord++ {
		ids = append(ids, EntryID(pageID, ord))
	}
	// 早期版本整页只写一条，id 即 pageID。
	ids = append(ids, pageID)
	return i.vector.DeleteByIDs(ctx, orgID, ids)
}

// ListEntries 列出页面当前已索引的全部向量条目，按 Ordinal 升序。
// 复用删除扫描的零向量宽查询路径，供调试接口使用。
func (i *Indexer) ListEntries(ctx context.Context, orgID, pageID string) ([]*VectorMatch, error) {
	if !i.Enabled() {
		return nil, ErrVectorDisabled
	}
	pageID = strings.TrimSpace(pageID)
	if pageID == "" {
		return nil, nil
	}

	matches, err := i.vector.Query(ctx, &VectorQueryParams{
		OrgID:  orgID,
		Vector: i.zeroVector(),
		TopK:   i.deleteScanTopK,
		PageID: pageID,
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(a, b int) bool {
		return matches[a].Ordinal < matches[b].Ordinal
	})
	return matches, nil
}

// BatchReindex 严格串行地重建一批页面（尊重嵌入服务限流），
// 单页失败不打断整批，计入汇总。
func (i *Indexer) BatchReindex(ctx context.Context, pages []*entity.Page) (*BatchSummary, error) {
	if !i.Enabled() {
		return nil, ErrVectorDisabled
	}
	summary := &BatchSummary{}
	for _, page := range pages {
		if page == nil {
			continue
		}
		n, err := i.Reindex(ctx, page)
		if err != nil {
			summary.PagesFailed++
			logger.Error(ctx, "page reindex failed", err, "page_id", page.ID)
			continue
		}
		summary.PagesIndexed++
		summary.TotalChunks += n
	}
	return summary, nil
}

func (i *Indexer) zeroVector() []float32 {
	dim := i.dimension
	if dim <= 0 {
		dim = 768
	}
	return make([]float32, dim)
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max]))
}
