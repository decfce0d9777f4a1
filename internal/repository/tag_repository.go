package repository

import (
	"errors"

	"gorm.io/gorm"

	"qa-smart-go/internal/model"
)

// TagRepository 接口定义了标签及其分类关联的数据操作方法。
type TagRepository interface {
	Create(tag *model.Tag) error
	FindByID(id uint) (*model.Tag, error)
	FindByName(name string) (*model.Tag, error)
	FindOrCreate(name string, creatorID uint) (*model.Tag, error)
	Categories(tagID uint) ([]model.Category, error)
	HasCategory(tagID, categoryID uint) (bool, error)
	AddCategory(tag *model.Tag, cat *model.Category) error
	RemoveCategory(tag *model.Tag, cat *model.Category) error
	AdjustUsedCount(ids []uint, delta int) error
	ListUsed() ([]model.Tag, error)
	ListUsedIn(ids []uint) ([]model.Tag, error)
	NamesByIDs(ids []uint) ([]string, error)
}

type tagRepository struct {
	db *gorm.DB
}

// NewTagRepository 创建一个新的 TagRepository 实例。
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

// Create 在数据库中插入一个新的标签记录。
func (r *tagRepository) Create(tag *model.Tag) error {
	return r.db.Create(tag).Error
}

// FindByID 根据 ID 查找标签。
func (r *tagRepository) FindByID(id uint) (*model.Tag, error) {
	var tag model.Tag
	if err := r.db.First(&tag, id).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

// FindByName 根据名称查找标签。
func (r *tagRepository) FindByName(name string) (*model.Tag, error) {
	var tag model.Tag
	if err := r.db.Where("name = ?", name).First(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

// FindOrCreate 查找同名标签，不存在时以 creatorID 作为创建者新建。
func (r *tagRepository) FindOrCreate(name string, creatorID uint) (*model.Tag, error) {
	tag, err := r.FindByName(name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	tag = &model.Tag{Name: name, CreatedBy: creatorID}
	if err := r.Create(tag); err != nil {
		return nil, err
	}
	return tag, nil
}

// Categories 返回标签所属的全部分类。
func (r *tagRepository) Categories(tagID uint) ([]model.Category, error) {
	var cats []model.Category
	err := r.db.Model(&model.Tag{ID: tagID}).Order("categories.id asc").Association("Categories").Find(&cats)
	return cats, err
}

// HasCategory 判断标签与分类之间是否已存在关联。
func (r *tagRepository) HasCategory(tagID, categoryID uint) (bool, error) {
	var n int64
	err := r.db.Table("tag_categories").
		Where("tag_id = ? AND category_id = ?", tagID, categoryID).
		Count(&n).Error
	return n > 0, err
}

// AddCategory 为标签添加一个分类，已存在的关联不会重复插入。
func (r *tagRepository) AddCategory(tag *model.Tag, cat *model.Category) error {
	return r.db.Model(tag).Association("Categories").Append(cat)
}

// RemoveCategory 解除标签与分类的关联，不删除任何一方的记录。
func (r *tagRepository) RemoveCategory(tag *model.Tag, cat *model.Category) error {
	return r.db.Model(tag).Association("Categories").Delete(cat)
}

// AdjustUsedCount 将给定标签的 used_count 增加 delta（可为负数，不会低于 0）。
func (r *tagRepository) AdjustUsedCount(ids []uint, delta int) error {
	if len(ids) == 0 || delta == 0 {
		return nil
	}
	expr := gorm.Expr("used_count + ?", delta)
	if delta < 0 {
		expr = gorm.Expr("CASE WHEN used_count + ? < 0 THEN 0 ELSE used_count + ? END", delta, delta)
	}
	return r.db.Model(&model.Tag{}).Where("id IN ?", ids).Update("used_count", expr).Error
}

// ListUsed 返回所有至少被一个问题使用过的标签，按名称排序。
func (r *tagRepository) ListUsed() ([]model.Tag, error) {
	var tags []model.Tag
	err := r.db.Where("used_count > 0").Order("name asc").Find(&tags).Error
	return tags, err
}

// ListUsedIn 与 ListUsed 相同，但仅限于给定的标签 ID 集合。
func (r *tagRepository) ListUsedIn(ids []uint) ([]model.Tag, error) {
	tags := make([]model.Tag, 0)
	if len(ids) == 0 {
		return tags, nil
	}
	err := r.db.Where("id IN ? AND used_count > 0", ids).Order("name asc").Find(&tags).Error
	return tags, err
}

// NamesByIDs 返回给定标签 ID 对应的名称。
func (r *tagRepository) NamesByIDs(ids []uint) ([]string, error) {
	names := make([]string, 0)
	if len(ids) == 0 {
		return names, nil
	}
	err := r.db.Model(&model.Tag{}).Where("id IN ?", ids).Order("name asc").Pluck("name", &names).Error
	return names, err
}
