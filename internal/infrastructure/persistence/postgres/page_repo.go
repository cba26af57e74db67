// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"kb-ai-api/internal/domain/entity"
	"kb-ai-api/internal/domain/repository"
)

// PageRepository 页面仓储实现
type PageRepository struct {
	client *Client
}

var _ repository.PageRepository = (*PageRepository)(nil)

// NewPageRepository 创建页面仓储
func NewPageRepository(client *Client) *PageRepository {
	return &PageRepository{client: client}
}

// GetByID 根据 ID 获取页面
func (r *PageRepository) GetByID(ctx context.Context, orgID, id string) (*entity.Page, error) {
	ctx, span := tracer.Start(ctx, "postgres.PageRepository.GetByID")
	defer span.End()

	db := r.client.db.WithContext(ctx)
	var page entity.Page
	if err := db.First(&page, "org_id = ? AND id = ?", orgID, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return &page, nil
}

// GetByIDs 批量获取页面，缺失的 ID 静默跳过
func (r *PageRepository) GetByIDs(ctx context.Context, orgID string, ids []string) ([]*entity.Page, error) {
	ctx, span := tracer.Start(ctx, "postgres.PageRepository.GetByIDs")
	defer span.End()

	if len(ids) == 0 {
		return []*entity.Page{}, nil
	}

	db := r.client.db.WithContext(ctx)
	var pages []*entity.Page
	if err := db.Where("org_id = ? AND id IN ?", orgID, ids).Find(&pages).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get pages: %w", err)
	}
	return pages, nil
}

// SearchByTitleOrDescription 标题/描述大小写不敏感子串匹配，按更新时间倒序
func (r *PageRepository) SearchByTitleOrDescription(ctx context.Context, filter repository.PageSearchFilter) ([]*entity.Page, error) {
	ctx, span := tracer.Start(ctx, "postgres.PageRepository.SearchByTitleOrDescription")
	defer span.End()

	pattern := "%" + escapeLike(strings.TrimSpace(filter.Pattern)) + "%"

	db := r.client.db.WithContext(ctx).
		Where("org_id = ?", filter.OrgID).
		Where("title ILIKE ? OR description ILIKE ?", pattern, pattern)
	db = applyScopeFilter(db, filter)
	db = db.Order("updated_at DESC")
	if filter.Limit > 0 {
		db = db.Limit(filter.Limit)
	}

	var pages []*entity.Page
	if err := db.Find(&pages).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search pages: %w", err)
	}
	return pages, nil
}

// ListForReindex 列出需要重建索引的页面
func (r *PageRepository) ListForReindex(ctx context.Context, filter repository.PageSearchFilter) ([]*entity.Page, error) {
	ctx, span := tracer.Start(ctx, "postgres.PageRepository.ListForReindex")
	defer span.End()

	db := r.client.db.WithContext(ctx).Where("org_id = ?", filter.OrgID)
	db = applyScopeFilter(db, filter)
	db = db.Order("updated_at ASC")
	if filter.Limit > 0 {
		db = db.Limit(filter.Limit)
	}

	var pages []*entity.Page
	if err := db.Find(&pages).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list pages for reindex: %w", err)
	}
	return pages, nil
}

func applyScopeFilter(db *gorm.DB, filter repository.PageSearchFilter) *gorm.DB {
	if filter.CollectionID != "" {
		db = db.Where("collection_id = ?", filter.CollectionID)
	}
	if filter.SpaceID != "" {
		db = db.Where("space_id = ?", filter.SpaceID)
	}
	return db
}

// escapeLike 转义 LIKE 模式中的特殊字符，用户输入按字面匹配
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
