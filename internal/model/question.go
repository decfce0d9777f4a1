package model

import "time"

// Question 对应于数据库中的 'questions' 表。
type Question struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title          string    `gorm:"type:varchar(300);not null" json:"title"`
	Body           string    `gorm:"type:text" json:"body"`
	AuthorID       uint      `gorm:"not null;index" json:"authorId"`
	Tags           []Tag     `gorm:"many2many:question_tags;constraint:OnDelete:CASCADE" json:"tags"`
	LastActivityAt time.Time `gorm:"index" json:"lastActivityAt"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Question) TableName() string {
	return "questions"
}

// TagNames 返回问题上所有标签的名称。
func (q *Question) TagNames() []string {
	names := make([]string, 0, len(q.Tags))
	for _, t := range q.Tags {
		names = append(names, t.Name)
	}
	return names
}

// QuestionDocument 是写入 Elasticsearch 的问题文档结构。
type QuestionDocument struct {
	QuestionID uint      `json:"question_id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Tags       []string  `json:"tags"`
	AuthorID   uint      `json:"author_id"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// QuestionHit 是搜索结果中的一条记录。
type QuestionHit struct {
	QuestionID uint     `json:"questionId"`
	Title      string   `json:"title"`
	Tags       []string `json:"tags"`
	Score      float64  `json:"score"`
}
