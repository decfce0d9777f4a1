package model

import "time"

// Tag 对应于数据库中的 'tags' 表。
type Tag struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`
	CreatedBy uint   `gorm:"not null" json:"createdBy"`
	// UsedCount 是当前打了该标签的问题数，由 QuestionService 维护。
	UsedCount  int        `gorm:"not null;default:0" json:"usedCount"`
	Categories []Category `gorm:"many2many:tag_categories;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Tag) TableName() string {
	return "tags"
}
