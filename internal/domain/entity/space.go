package entity

import (
	"time"

	"github.com/google/uuid"
)

// Space 空间实体，集合内的页面分组
type Space struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID        string    `gorm:"type:uuid;not null;index:idx_spaces_org" json:"org_id"`
	CollectionID string    `gorm:"type:uuid;not null;index:idx_spaces_collection" json:"collection_id"`
	Name         string    `gorm:"type:varchar(256);not null" json:"name"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Space) TableName() string {
	return "spaces"
}

// NewSpace 创建空间实体
func NewSpace(orgID, collectionID, name string) *Space {
	return &Space{
		ID:           uuid.New().String(),
		OrgID:        orgID,
		CollectionID: collectionID,
		Name:         name,
	}
}
