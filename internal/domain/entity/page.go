package entity

import (
	"time"

	"github.com/google/uuid"
)

// Page 页面实体，知识库中的最小内容单元
type Page struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID        string    `gorm:"type:uuid;not null;index:idx_pages_org" json:"org_id"`
	CollectionID string    `gorm:"type:uuid;not null;index:idx_pages_collection" json:"collection_id"`
	SpaceID      string    `gorm:"type:uuid;not null;index:idx_pages_space" json:"space_id"`
	Title        string    `gorm:"type:varchar(512);not null" json:"title"`
	Description  string    `gorm:"type:text" json:"description"`
	Content      string    `gorm:"type:text" json:"content"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Page) TableName() string {
	return "pages"
}

// NewPage 创建页面实体
func NewPage(orgID, collectionID, spaceID, title string) *Page {
	return &Page{
		ID:           uuid.New().String(),
		OrgID:        orgID,
		CollectionID: collectionID,
		SpaceID:      spaceID,
		Title:        title,
	}
}
