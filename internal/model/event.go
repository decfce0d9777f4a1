package model

import "time"

// 分类变更事件类型
const (
	EventCategoryCreated    = "category.created"
	EventCategoryRenamed    = "category.renamed"
	EventCategoryDeleted    = "category.deleted"
	EventCategoryTagAdded   = "category.tag_added"
	EventCategoryTagRemoved = "category.tag_removed"
)

// CategoryEvent 描述一次成功的分类变更，发送到 Kafka。
type CategoryEvent struct {
	Type       string    `json:"type"`
	CategoryID uint      `json:"categoryId"`
	Name       string    `json:"name,omitempty"`
	TagID      uint      `json:"tagId,omitempty"`
	Actor      string    `json:"actor"`
	OccurredAt time.Time `json:"occurredAt"`
}
