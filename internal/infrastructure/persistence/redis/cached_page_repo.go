package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"kb-ai-api/internal/domain/entity"
	"kb-ai-api/internal/domain/repository"
	"kb-ai-api/pkg/metrics"
)

// CachedPageRepository 带 Redis 读穿缓存的页面仓储装饰器
type CachedPageRepository struct {
	inner repository.PageRepository
	cache *Cache
	ttl   time.Duration
}

var _ repository.PageRepository = (*CachedPageRepository)(nil)

// NewCachedPageRepository 创建缓存页面仓储，ttl<=0 时使用默认 5 分钟
func NewCachedPageRepository(inner repository.PageRepository, cache *Cache, ttl time.Duration) *CachedPageRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedPageRepository{
		inner: inner,
		cache: cache,
		ttl:   ttl,
	}
}

func pageCacheKey(orgID, pageID string) string {
	return fmt.Sprintf("page:%s:%s", orgID, pageID)
}

// GetByID 读穿缓存获取页面，singleflight 合并并发回源。
// 未命中的页面缓存空对象防止穿透，缓存故障时退化为直接查库。
func (r *CachedPageRepository) GetByID(ctx context.Context, orgID, id string) (*entity.Page, error) {
	key := pageCacheKey(orgID, id)

	loaded := false
	data, err := r.cache.GetOrLoadSafe(ctx, key, r.ttl, func() (interface{}, error) {
		loaded = true
		metrics.CacheHitTotal.WithLabelValues("page", "miss").Inc()
		return r.inner.GetByID(ctx, orgID, id)
	})
	if err != nil {
		if loaded {
			return nil, err
		}
		// 缓存故障时退化为直接查库
		return r.inner.GetByID(ctx, orgID, id)
	}
	if !loaded {
		metrics.CacheHitTotal.WithLabelValues("page", "hit").Inc()
	}
	return decodeCachedPage(data)
}

// GetByIDs 批量获取页面，逐个查缓存后对缺失部分一次性回源
func (r *CachedPageRepository) GetByIDs(ctx context.Context, orgID string, ids []string) ([]*entity.Page, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	found := make(map[string]*entity.Page, len(ids))
	var missing []string

	for _, id := range ids {
		data, err := r.cache.Get(ctx, pageCacheKey(orgID, id))
		if err != nil {
			missing = append(missing, id)
			if IsNil(err) {
				metrics.CacheHitTotal.WithLabelValues("page", "miss").Inc()
			}
			continue
		}
		page, decErr := decodeCachedPage(data)
		if decErr != nil || page == nil {
			missing = append(missing, id)
			continue
		}
		metrics.CacheHitTotal.WithLabelValues("page", "hit").Inc()
		found[id] = page
	}

	if len(missing) > 0 {
		pages, err := r.inner.GetByIDs(ctx, orgID, missing)
		if err != nil {
			return nil, err
		}
		for _, page := range pages {
			found[page.ID] = page
			// 缓存写入失败不影响返回结果
			_ = r.cache.Set(ctx, pageCacheKey(orgID, page.ID), page, r.ttl)
		}
	}

	// 保持入参顺序，缺失的ID跳过
	result := make([]*entity.Page, 0, len(found))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if page, ok := found[id]; ok {
			result = append(result, page)
		}
	}

	return result, nil
}

// SearchByTitleOrDescription 模糊检索不走缓存
func (r *CachedPageRepository) SearchByTitleOrDescription(ctx context.Context, filter repository.PageSearchFilter) ([]*entity.Page, error) {
	return r.inner.SearchByTitleOrDescription(ctx, filter)
}

// ListForReindex 重建索引扫描不走缓存
func (r *CachedPageRepository) ListForReindex(ctx context.Context, filter repository.PageSearchFilter) ([]*entity.Page, error) {
	return r.inner.ListForReindex(ctx, filter)
}

func decodeCachedPage(data []byte) (*entity.Page, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var page entity.Page
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
