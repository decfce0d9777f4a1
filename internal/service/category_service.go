package service

import (
	"context"
	"errors"
	"html"
	"time"

	"gorm.io/gorm"

	"qa-smart-go/internal/model"
	"qa-smart-go/internal/repository"
	"qa-smart-go/pkg/log"
	"qa-smart-go/pkg/token"
)

// 分类接口的响应状态。
const (
	StatusSuccess                   = "success"
	StatusError                     = "error"
	StatusNoop                      = "noop"
	StatusNeedConfirmation          = "need_confirmation"
	StatusCannotDeleteSubcategories = "cannot_delete_subcategories"
)

// EventPublisher 发布分类变更事件。
type EventPublisher interface {
	Publish(ctx context.Context, event model.CategoryEvent) error
}

// DeleteResult 是删除分类的结果。Token 与 Tags 仅在需要二次确认时出现。
type DeleteResult struct {
	Status string   `json:"status"`
	Token  string   `json:"token,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// CategoryService 接口定义了分类树的业务操作。
type CategoryService interface {
	GenerateTree(ctx context.Context) (*model.CategoryNode, error)
	AddCategory(ctx context.Context, actor *model.User, name string, parentID uint) error
	RenameCategory(ctx context.Context, actor *model.User, id uint, name string) (string, error)
	AddTagToCategory(ctx context.Context, actor *model.User, tagID uint, catID *uint) error
	GetTagCategories(tagID uint) ([]model.CategorySummary, error)
	RemoveTagFromCategory(ctx context.Context, actor *model.User, tagID uint, catID *uint) (string, error)
	DeleteCategory(ctx context.Context, actor *model.User, id uint, confirmToken *string) (*DeleteResult, error)
	ListCategories() ([]model.CategorySummary, error)
	EnsureRoot(name string) error
}

type categoryService struct {
	categoryRepo repository.CategoryRepository
	tagRepo      repository.TagRepository
	treeCache    repository.TreeCacheRepository
	settings     SettingsService
	tokens       *token.CategoryTokenGenerator
	publisher    EventPublisher
}

// NewCategoryService 创建一个新的 CategoryService 实例。treeCache 与 publisher 可以为 nil。
func NewCategoryService(
	categoryRepo repository.CategoryRepository,
	tagRepo repository.TagRepository,
	treeCache repository.TreeCacheRepository,
	settings SettingsService,
	tokens *token.CategoryTokenGenerator,
	publisher EventPublisher,
) CategoryService {
	return &categoryService{
		categoryRepo: categoryRepo,
		tagRepo:      tagRepo,
		treeCache:    treeCache,
		settings:     settings,
		tokens:       tokens,
		publisher:    publisher,
	}
}

// GenerateTree 将分类树序列化为嵌套结构。没有根节点时返回 nil。
// 目前只支持一棵树，存在多个根节点时取最早创建的那个。
func (s *categoryService) GenerateTree(ctx context.Context) (*model.CategoryNode, error) {
	// gen 必须在读库之前取得，期间发生的变更会让这次写缓存落到已失效的代数上
	var (
		gen       int64
		cacheable bool
	)
	if s.treeCache != nil {
		root, g, hit, err := s.treeCache.Get(ctx)
		if err != nil {
			log.Warnf("[CategoryService] 读取分类树缓存失败: %v", err)
		} else if hit {
			return root, nil
		} else {
			gen, cacheable = g, true
		}
	}

	cats, err := s.categoryRepo.FindAll()
	if err != nil {
		return nil, err
	}

	// 1. 一次查询取出全部节点，在内存中按 id 建立索引
	nodes := make(map[uint]*model.CategoryNode, len(cats))
	for _, cat := range cats {
		nodes[cat.ID] = &model.CategoryNode{
			Name:     html.EscapeString(cat.Name),
			ID:       cat.ID,
			Children: []*model.CategoryNode{},
		}
	}

	// 2. cats 已按名称排序，依次挂到父节点下即可保证子节点有序
	var root *model.CategoryNode
	for _, cat := range cats {
		node := nodes[cat.ID]
		if cat.ParentID == nil {
			if root == nil || node.ID < root.ID {
				root = node
			}
			continue
		}
		if parent, ok := nodes[*cat.ParentID]; ok {
			parent.Children = append(parent.Children, node)
		}
	}

	if cacheable {
		if err := s.treeCache.Set(ctx, gen, root); err != nil {
			log.Warnf("[CategoryService] 写入分类树缓存失败: %v", err)
		}
	}
	return root, nil
}

// AddCategory 新建分类。parentID 为 0 时创建根节点。
func (s *categoryService) AddCategory(ctx context.Context, actor *model.User, name string, parentID uint) error {
	if name == "" {
		return validation(MsgInvalidNewName)
	}

	var parent *model.Category
	if parentID != 0 {
		p, err := s.categoryRepo.FindByID(parentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return validation(MsgParentNotFound)
			}
			return err
		}
		parent = p
	}

	// level 从 0 开始计数
	if parent != nil && parent.Level+1 >= s.settings.Categories(ctx).MaxTreeDepth {
		return validation(MsgInvalidDepth)
	}

	if err := s.ensureNameFree(name); err != nil {
		return err
	}

	cat := &model.Category{Name: name}
	if parent != nil {
		cat.ParentID = &parent.ID
		cat.Level = parent.Level + 1
	}
	if err := s.categoryRepo.Create(cat); err != nil {
		return err
	}

	s.changed(ctx, model.CategoryEvent{Type: model.EventCategoryCreated, CategoryID: cat.ID, Name: cat.Name}, actor)
	return nil
}

// RenameCategory 修改分类名称。新旧名称相同时返回 noop。
func (s *categoryService) RenameCategory(ctx context.Context, actor *model.User, id uint, name string) (string, error) {
	if name == "" || id == 0 {
		return "", validation(MsgMissingOrInvalid)
	}
	cat, err := s.findCategory(id)
	if err != nil {
		return "", err
	}
	if cat.Name == name {
		return StatusNoop, nil
	}
	if err := s.ensureNameFree(name); err != nil {
		return "", err
	}
	if err := s.categoryRepo.Rename(cat, name); err != nil {
		return "", err
	}

	s.changed(ctx, model.CategoryEvent{Type: model.EventCategoryRenamed, CategoryID: cat.ID, Name: cat.Name}, actor)
	return StatusSuccess, nil
}

// AddTagToCategory 将标签加入分类，重复添加不会报错。
func (s *categoryService) AddTagToCategory(ctx context.Context, actor *model.User, tagID uint, catID *uint) error {
	cat, tag, err := s.resolvePair(tagID, catID)
	if err != nil {
		return err
	}
	if err := s.tagRepo.AddCategory(tag, cat); err != nil {
		return err
	}

	s.changed(ctx, model.CategoryEvent{Type: model.EventCategoryTagAdded, CategoryID: cat.ID, TagID: tag.ID}, actor)
	return nil
}

// GetTagCategories 返回标签所属的分类，名称已做 HTML 转义。
func (s *categoryService) GetTagCategories(tagID uint) ([]model.CategorySummary, error) {
	if tagID == 0 {
		return nil, validation(MsgMissingTagID)
	}
	tag, err := s.tagRepo.FindByID(tagID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, validation(MsgTagNotFound)
		}
		return nil, err
	}
	cats, err := s.tagRepo.Categories(tag.ID)
	if err != nil {
		return nil, err
	}
	return summarize(cats), nil
}

// RemoveTagFromCategory 解除标签与分类的关联。原本就没有关联时返回 noop。
func (s *categoryService) RemoveTagFromCategory(ctx context.Context, actor *model.User, tagID uint, catID *uint) (string, error) {
	cat, tag, err := s.resolvePair(tagID, catID)
	if err != nil {
		return "", err
	}
	linked, err := s.tagRepo.HasCategory(tag.ID, cat.ID)
	if err != nil {
		return "", err
	}
	if !linked {
		return StatusNoop, nil
	}
	if err := s.tagRepo.RemoveCategory(tag, cat); err != nil {
		return "", err
	}

	s.changed(ctx, model.CategoryEvent{Type: model.EventCategoryTagRemoved, CategoryID: cat.ID, TagID: tag.ID}, actor)
	return StatusSuccess, nil
}

// DeleteCategory 删除分类。
//
//   - 有子节点的分类不能删除；
//   - 没有关联标签的叶子节点直接删除；
//   - 有关联标签的叶子节点需要携带上一次调用返回的 token 再次确认。
func (s *categoryService) DeleteCategory(ctx context.Context, actor *model.User, id uint, confirmToken *string) (*DeleteResult, error) {
	if id == 0 {
		return nil, validation(MsgMissingOrInvalid)
	}
	cat, err := s.findCategory(id)
	if err != nil {
		return nil, err
	}

	children, err := s.categoryRepo.CountChildren(cat.ID)
	if err != nil {
		return nil, err
	}
	if children > 0 {
		return &DeleteResult{Status: StatusCannotDeleteSubcategories}, nil
	}

	tagCount, err := s.categoryRepo.CountTags(cat.ID)
	if err != nil {
		return nil, err
	}
	if tagCount == 0 {
		if err := s.categoryRepo.Delete(cat.ID); err != nil {
			return nil, err
		}
		s.changed(ctx, model.CategoryEvent{Type: model.EventCategoryDeleted, CategoryID: cat.ID, Name: cat.Name}, actor)
		return &DeleteResult{Status: StatusSuccess}, nil
	}

	state := token.CategoryState{
		ID:       cat.ID,
		Name:     cat.Name,
		ParentID: cat.ParentID,
		Level:    cat.Level,
		TagCount: tagCount,
	}
	if confirmToken == nil {
		names, err := s.categoryRepo.TagNames(cat.ID)
		if err != nil {
			return nil, err
		}
		for i := range names {
			names[i] = html.EscapeString(names[i])
		}
		return &DeleteResult{
			Status: StatusNeedConfirmation,
			Token:  s.tokens.MakeToken(state),
			Tags:   names,
		}, nil
	}

	if !s.tokens.CheckToken(state, *confirmToken) {
		return nil, validation(MsgInvalidToken)
	}
	if err := s.categoryRepo.ClearTagsAndDelete(cat.ID); err != nil {
		return nil, err
	}
	s.changed(ctx, model.CategoryEvent{Type: model.EventCategoryDeleted, CategoryID: cat.ID, Name: cat.Name}, actor)
	return &DeleteResult{Status: StatusSuccess}, nil
}

// ListCategories 返回全部分类（按名称排序），名称已做 HTML 转义。
func (s *categoryService) ListCategories() ([]model.CategorySummary, error) {
	cats, err := s.categoryRepo.FindAll()
	if err != nil {
		return nil, err
	}
	return summarize(cats), nil
}

// EnsureRoot 在分类表为空时创建名为 name 的根节点。
func (s *categoryService) EnsureRoot(name string) error {
	roots, err := s.categoryRepo.FindRoots()
	if err != nil {
		return err
	}
	if len(roots) > 0 {
		return nil
	}
	if err := s.categoryRepo.Create(&model.Category{Name: name}); err != nil {
		return err
	}
	log.Infof("[CategoryService] 已创建顶层分类 %q", name)
	return nil
}

func (s *categoryService) findCategory(id uint) (*model.Category, error) {
	cat, err := s.categoryRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, validation(MsgCategoryNotFound)
		}
		return nil, err
	}
	return cat, nil
}

// ensureNameFree 检查名称在整棵树中是否已被占用。
func (s *categoryService) ensureNameFree(name string) error {
	_, err := s.categoryRepo.FindByName(name)
	if err == nil {
		return validation(MsgDuplicateName)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}

// resolvePair 校验并加载标签与分类，先检查分类再检查标签。
func (s *categoryService) resolvePair(tagID uint, catID *uint) (*model.Category, *model.Tag, error) {
	if tagID == 0 || catID == nil {
		return nil, nil, validation(MsgMissingParameter)
	}
	cat, err := s.findCategory(*catID)
	if err != nil {
		return nil, nil, err
	}
	tag, err := s.tagRepo.FindByID(tagID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, validation(MsgTagNotFound)
		}
		return nil, nil, err
	}
	return cat, tag, nil
}

// changed 在分类变更成功后清理树缓存并发布事件，两者失败都只记录日志。
func (s *categoryService) changed(ctx context.Context, event model.CategoryEvent, actor *model.User) {
	if s.treeCache != nil {
		if err := s.treeCache.Invalidate(ctx); err != nil {
			log.Warnf("[CategoryService] 清理分类树缓存失败: %v", err)
		}
	}
	if s.publisher == nil {
		return
	}
	if actor != nil {
		event.Actor = actor.Username
	}
	event.OccurredAt = time.Now()
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warnf("[CategoryService] 发布分类事件失败, type: %s, categoryId: %d, error: %v", event.Type, event.CategoryID, err)
	}
}

func summarize(cats []model.Category) []model.CategorySummary {
	out := make([]model.CategorySummary, 0, len(cats))
	for _, c := range cats {
		out = append(out, model.CategorySummary{ID: c.ID, Name: html.EscapeString(c.Name)})
	}
	return out
}
