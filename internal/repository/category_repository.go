// Package repository 包含了所有与数据库交互的逻辑。
package repository

import (
	"gorm.io/gorm"

	"qa-smart-go/internal/model"
)

// CategoryRepository 接口定义了分类树的数据操作方法。
type CategoryRepository interface {
	Create(cat *model.Category) error
	FindByID(id uint) (*model.Category, error)
	FindByName(name string) (*model.Category, error)
	FindAll() ([]model.Category, error)
	FindRoots() ([]model.Category, error)
	FindChildren(id uint) ([]model.Category, error)
	CountChildren(id uint) (int64, error)
	Rename(cat *model.Category, name string) error
	Delete(id uint) error
	CountTags(id uint) (int64, error)
	TagNames(id uint) ([]string, error)
	ClearTagsAndDelete(id uint) error
	TagIDsForCategories(ids []uint) ([]uint, error)
}

type categoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository 创建一个新的 CategoryRepository 实例。
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

// Create 在数据库中插入一个新的分类记录。
func (r *categoryRepository) Create(cat *model.Category) error {
	return r.db.Create(cat).Error
}

// FindByID 根据 ID 查找分类。
func (r *categoryRepository) FindByID(id uint) (*model.Category, error) {
	var cat model.Category
	if err := r.db.First(&cat, id).Error; err != nil {
		return nil, err
	}
	return &cat, nil
}

// FindByName 根据名称查找分类，名称在整棵树中唯一。
func (r *categoryRepository) FindByName(name string) (*model.Category, error) {
	var cat model.Category
	if err := r.db.Where("name = ?", name).First(&cat).Error; err != nil {
		return nil, err
	}
	return &cat, nil
}

// FindAll 返回所有分类，按名称升序排列。
func (r *categoryRepository) FindAll() ([]model.Category, error) {
	var cats []model.Category
	err := r.db.Order("name asc").Order("id asc").Find(&cats).Error
	return cats, err
}

// FindRoots 返回所有根节点，按创建顺序排列。
func (r *categoryRepository) FindRoots() ([]model.Category, error) {
	var cats []model.Category
	err := r.db.Where("parent_id IS NULL").Order("id asc").Find(&cats).Error
	return cats, err
}

// FindChildren 返回某个节点的直接子节点。
func (r *categoryRepository) FindChildren(id uint) ([]model.Category, error) {
	var cats []model.Category
	err := r.db.Where("parent_id = ?", id).Order("name asc").Order("id asc").Find(&cats).Error
	return cats, err
}

// CountChildren 统计直接子节点数量，为 0 表示叶子节点。
func (r *categoryRepository) CountChildren(id uint) (int64, error) {
	var n int64
	err := r.db.Model(&model.Category{}).Where("parent_id = ?", id).Count(&n).Error
	return n, err
}

// Rename 修改分类名称。
func (r *categoryRepository) Rename(cat *model.Category, name string) error {
	if err := r.db.Model(cat).Update("name", name).Error; err != nil {
		return err
	}
	cat.Name = name
	return nil
}

// Delete 删除一个分类节点。
func (r *categoryRepository) Delete(id uint) error {
	return r.db.Delete(&model.Category{}, id).Error
}

// CountTags 统计与分类关联的标签数。
func (r *categoryRepository) CountTags(id uint) (int64, error) {
	var n int64
	err := r.db.Table("tag_categories").Where("category_id = ?", id).Count(&n).Error
	return n, err
}

// TagNames 返回与分类关联的所有标签名称。
func (r *categoryRepository) TagNames(id uint) ([]string, error) {
	var names []string
	err := r.db.Model(&model.Tag{}).
		Joins("JOIN tag_categories ON tag_categories.tag_id = tags.id").
		Where("tag_categories.category_id = ?", id).
		Order("tags.name asc").
		Pluck("tags.name", &names).Error
	return names, err
}

// ClearTagsAndDelete 在一个事务中解除分类的所有标签关联并删除该分类。
func (r *categoryRepository) ClearTagsAndDelete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM tag_categories WHERE category_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Category{}, id).Error
	})
}

// TagIDsForCategories 返回与给定分类集合关联的标签 ID（去重）。
func (r *categoryRepository) TagIDsForCategories(ids []uint) ([]uint, error) {
	tagIDs := make([]uint, 0)
	if len(ids) == 0 {
		return tagIDs, nil
	}
	err := r.db.Table("tag_categories").
		Distinct("tag_id").
		Where("category_id IN ?", ids).
		Order("tag_id asc").
		Pluck("tag_id", &tagIDs).Error
	return tagIDs, err
}
