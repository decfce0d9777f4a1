package service

import (
	"context"
	"errors"
	"html"

	"gorm.io/gorm"

	"qa-smart-go/internal/model"
	"qa-smart-go/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// QuestionSummary 是列表中的一条问题记录，文本字段已做 HTML 转义。
type QuestionSummary struct {
	ID             uint            `json:"id"`
	Title          string          `json:"title"`
	AuthorID       uint            `json:"authorId"`
	Tags           []string        `json:"tags"`
	LastActivityAt model.LocalTime `json:"lastActivityAt"`
}

// QuestionPage 定义了问题列表 API 的响应结构。
type QuestionPage struct {
	Content       []QuestionSummary `json:"content"`
	TotalElements int64             `json:"totalElements"`
	TotalPages    int               `json:"totalPages"`
	Size          int               `json:"size"`
	Number        int               `json:"number"`
}

// TagSummary 是标签列表中的一条记录。
type TagSummary struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	UsedCount int    `json:"usedCount"`
}

// FilterService 按分类子树过滤问题与标签列表。
// categoryName 为空时不做过滤，也不受分类功能开关影响。
type FilterService interface {
	ResolveTagIDs(ctx context.Context, categoryName string) ([]uint, error)
	ResolveTagNames(ctx context.Context, categoryName string) ([]string, error)
	ListQuestions(ctx context.Context, categoryName string, page, size int) (*QuestionPage, error)
	ListTags(ctx context.Context, categoryName string) ([]TagSummary, error)
}

type filterService struct {
	categoryRepo repository.CategoryRepository
	tagRepo      repository.TagRepository
	questionRepo repository.QuestionRepository
	settings     SettingsService
}

// NewFilterService 创建一个新的 FilterService 实例。
func NewFilterService(
	categoryRepo repository.CategoryRepository,
	tagRepo repository.TagRepository,
	questionRepo repository.QuestionRepository,
	settings SettingsService,
) FilterService {
	return &filterService{
		categoryRepo: categoryRepo,
		tagRepo:      tagRepo,
		questionRepo: questionRepo,
		settings:     settings,
	}
}

// ResolveTagIDs 返回指定分类及其所有后代分类所关联的标签 ID。
func (s *filterService) ResolveTagIDs(ctx context.Context, categoryName string) ([]uint, error) {
	if !s.settings.Categories(ctx).Enabled {
		return nil, ErrFeatureDisabled
	}
	target, err := s.categoryRepo.FindByName(categoryName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}

	ids, err := s.subtree(target.ID)
	if err != nil {
		return nil, err
	}
	return s.categoryRepo.TagIDsForCategories(ids)
}

// ResolveTagNames 与 ResolveTagIDs 相同，但返回标签名称，供搜索过滤使用。
func (s *filterService) ResolveTagNames(ctx context.Context, categoryName string) ([]string, error) {
	ids, err := s.ResolveTagIDs(ctx, categoryName)
	if err != nil {
		return nil, err
	}
	return s.tagRepo.NamesByIDs(ids)
}

// ListQuestions 分页返回问题列表，同一个问题只出现一次。
func (s *filterService) ListQuestions(ctx context.Context, categoryName string, page, size int) (*QuestionPage, error) {
	page, size = normalizePage(page, size)
	offset := (page - 1) * size

	var (
		questions []model.Question
		total     int64
		err       error
	)
	if categoryName == "" {
		questions, total, err = s.questionRepo.FindPage(offset, size)
	} else {
		var tagIDs []uint
		tagIDs, err = s.ResolveTagIDs(ctx, categoryName)
		if err != nil {
			return nil, err
		}
		questions, total, err = s.questionRepo.FindPageByTagIDs(tagIDs, offset, size)
	}
	if err != nil {
		return nil, err
	}

	content := make([]QuestionSummary, 0, len(questions))
	for i := range questions {
		content = append(content, SummarizeQuestion(&questions[i]))
	}
	return &QuestionPage{
		Content:       content,
		TotalElements: total,
		TotalPages:    int((total + int64(size) - 1) / int64(size)),
		Size:          size,
		Number:        page,
	}, nil
}

// ListTags 返回被使用过的标签，按名称排序。
func (s *filterService) ListTags(ctx context.Context, categoryName string) ([]TagSummary, error) {
	var (
		tags []model.Tag
		err  error
	)
	if categoryName == "" {
		tags, err = s.tagRepo.ListUsed()
	} else {
		var tagIDs []uint
		tagIDs, err = s.ResolveTagIDs(ctx, categoryName)
		if err != nil {
			return nil, err
		}
		tags, err = s.tagRepo.ListUsedIn(tagIDs)
	}
	if err != nil {
		return nil, err
	}

	out := make([]TagSummary, 0, len(tags))
	for _, t := range tags {
		out = append(out, TagSummary{ID: t.ID, Name: html.EscapeString(t.Name), UsedCount: t.UsedCount})
	}
	return out, nil
}

// subtree 以广度优先的方式收集 rootID 及其全部后代的 ID。
func (s *filterService) subtree(rootID uint) ([]uint, error) {
	// 1. 取出所有分类，在内存中构建 parent -> children 索引，避免逐层查询数据库
	all, err := s.categoryRepo.FindAll()
	if err != nil {
		return nil, err
	}
	childrenOf := make(map[uint][]uint)
	for _, c := range all {
		if c.ParentID != nil {
			childrenOf[*c.ParentID] = append(childrenOf[*c.ParentID], c.ID)
		}
	}

	// 2. 从目标节点开始向下遍历
	visited := map[uint]struct{}{rootID: {}}
	result := []uint{rootID}
	queue := []uint{rootID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range childrenOf[current] {
			if _, seen := visited[child]; seen {
				continue
			}
			visited[child] = struct{}{}
			result = append(result, child)
			queue = append(queue, child)
		}
	}
	return result, nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

// SummarizeQuestion 将问题转换为对外输出的摘要，标题与标签名做 HTML 转义。
func SummarizeQuestion(q *model.Question) QuestionSummary {
	tags := q.TagNames()
	for i := range tags {
		tags[i] = html.EscapeString(tags[i])
	}
	return QuestionSummary{
		ID:             q.ID,
		Title:          html.EscapeString(q.Title),
		AuthorID:       q.AuthorID,
		Tags:           tags,
		LastActivityAt: model.LocalTime(q.LastActivityAt),
	}
}
