package entity

import (
	"time"

	"github.com/google/uuid"
)

// Collection 文档集合实体，一个集合包含多个空间
type Collection struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID     string    `gorm:"type:uuid;not null;index:idx_collections_org" json:"org_id"`
	Name      string    `gorm:"type:varchar(256);not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Collection) TableName() string {
	return "collections"
}

// NewCollection 创建集合实体
func NewCollection(orgID, name string) *Collection {
	return &Collection{
		ID:    uuid.New().String(),
		OrgID: orgID,
		Name:  name,
	}
}
