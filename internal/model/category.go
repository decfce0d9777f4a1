package model

import "time"

// Category 对应于数据库中的 'categories' 表。
// 分类以邻接表形式存储成树：ParentID 为空表示根节点，Level 为从 0 开始的深度。
type Category struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`
	// Name 在整棵树范围内唯一，而不仅仅是同级唯一。
	Name      string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`
	ParentID  *uint     `gorm:"index" json:"parentId"`
	Level     int       `gorm:"not null;default:0" json:"level"`
	Tags      []Tag     `gorm:"many2many:tag_categories;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Category) TableName() string {
	return "categories"
}

// CategoryNode represents a node in the serialized category tree.
type CategoryNode struct {
	Name     string          `json:"name"`
	ID       uint            `json:"id"`
	Children []*CategoryNode `json:"children"`
}

// CategorySummary 是对外暴露的分类简要信息，Name 已做 HTML 转义。
type CategorySummary struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// CategorySettings 是分类功能的运行时配置。
type CategorySettings struct {
	Enabled      bool `json:"enabled"`
	MaxTreeDepth int  `json:"maxTreeDepth"`
}

// CategorySettingsOverride 记录管理员在运行时覆盖的配置项，nil 表示沿用默认值。
type CategorySettingsOverride struct {
	Enabled      *bool `json:"enabled"`
	MaxTreeDepth *int  `json:"maxTreeDepth"`
}
