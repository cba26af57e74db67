package repository

import (
	"context"

	"kb-ai-api/internal/domain/entity"
)

// PageSearchFilter 页面检索过滤条件
type PageSearchFilter struct {
	OrgID        string // 组织ID，必填
	CollectionID string // 集合ID，可选
	SpaceID      string // 空间ID，可选
	Pattern      string // 匹配关键词
	Limit        int    // 返回条数上限
}

// PageRepository 页面仓储接口。页面由知识库产品在上游维护，
// 本服务只读取，不提供写入能力。
type PageRepository interface {
	// GetByID 根据ID获取页面，不存在时返回 nil 而非错误
	GetByID(ctx context.Context, orgID, id string) (*entity.Page, error)

	// GetByIDs 批量获取页面，缺失的ID不报错，结果中不包含
	GetByIDs(ctx context.Context, orgID string, ids []string) ([]*entity.Page, error)

	// SearchByTitleOrDescription 按标题或描述模糊检索页面
	SearchByTitleOrDescription(ctx context.Context, filter PageSearchFilter) ([]*entity.Page, error)

	// ListForReindex 列出需要重建索引的页面（Pattern 被忽略，Limit<=0 表示不限）
	ListForReindex(ctx context.Context, filter PageSearchFilter) ([]*entity.Page, error)
}
