package repository

import (
	"time"

	"gorm.io/gorm"

	"qa-smart-go/internal/model"
)

// QuestionRepository 接口定义了问题及其标签的数据操作方法。
type QuestionRepository interface {
	Create(q *model.Question) error
	FindByID(id uint) (*model.Question, error)
	ReplaceTags(q *model.Question, tags []model.Tag) error
	FindPage(offset, limit int) ([]model.Question, int64, error)
	FindPageByTagIDs(tagIDs []uint, offset, limit int) ([]model.Question, int64, error)
}

type questionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository 创建一个新的 QuestionRepository 实例。
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

// Create 创建问题并同时写入其标签关联。
func (r *questionRepository) Create(q *model.Question) error {
	if q.LastActivityAt.IsZero() {
		q.LastActivityAt = time.Now()
	}
	return r.db.Create(q).Error
}

// FindByID 根据 ID 查找问题，并预加载其标签。
func (r *questionRepository) FindByID(id uint) (*model.Question, error) {
	var q model.Question
	if err := r.db.Preload("Tags").First(&q, id).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

// ReplaceTags 用新的标签集合替换问题当前的标签，并刷新活跃时间。
func (r *questionRepository) ReplaceTags(q *model.Question, tags []model.Tag) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(q).Association("Tags").Replace(tags); err != nil {
			return err
		}
		q.LastActivityAt = time.Now()
		return tx.Model(q).Update("last_activity_at", q.LastActivityAt).Error
	})
}

// FindPage 分页检索全部问题，按最近活跃时间倒序排列。
func (r *questionRepository) FindPage(offset, limit int) ([]model.Question, int64, error) {
	return r.page(r.db.Model(&model.Question{}), offset, limit)
}

// FindPageByTagIDs 分页检索至少带有一个给定标签的问题，每个问题只出现一次。
func (r *questionRepository) FindPageByTagIDs(tagIDs []uint, offset, limit int) ([]model.Question, int64, error) {
	if len(tagIDs) == 0 {
		return []model.Question{}, 0, nil
	}
	sub := r.db.Table("question_tags").Select("question_id").Where("tag_id IN ?", tagIDs)
	return r.page(r.db.Model(&model.Question{}).Where("id IN (?)", sub), offset, limit)
}

func (r *questionRepository) page(db *gorm.DB, offset, limit int) ([]model.Question, int64, error) {
	var total int64
	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	questions := make([]model.Question, 0)
	err := db.Session(&gorm.Session{}).
		Preload("Tags", func(tx *gorm.DB) *gorm.DB { return tx.Order("tags.name asc") }).
		Order("last_activity_at desc").Order("id desc").
		Offset(offset).Limit(limit).
		Find(&questions).Error
	if err != nil {
		return nil, 0, err
	}
	return questions, total, nil
}
