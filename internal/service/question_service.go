package service

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"qa-smart-go/internal/model"
	"qa-smart-go/internal/repository"
	"qa-smart-go/pkg/log"
)

// QuestionIndexer 将问题写入搜索索引。
type QuestionIndexer interface {
	IndexQuestion(ctx context.Context, q *model.Question) error
}

// QuestionService 接口定义了提问与修改标签的业务操作。
type QuestionService interface {
	Ask(ctx context.Context, author *model.User, title, body, tags string) (*model.Question, error)
	Retag(ctx context.Context, actor *model.User, id uint, tags string) (*model.Question, error)
}

type questionService struct {
	questionRepo repository.QuestionRepository
	tagRepo      repository.TagRepository
	indexer      QuestionIndexer
}

// NewQuestionService 创建一个新的 QuestionService 实例。indexer 可以为 nil。
func NewQuestionService(questionRepo repository.QuestionRepository, tagRepo repository.TagRepository, indexer QuestionIndexer) QuestionService {
	return &questionService{
		questionRepo: questionRepo,
		tagRepo:      tagRepo,
		indexer:      indexer,
	}
}

// Ask 创建一个新问题。tags 为空格分隔的标签名，不存在的标签会以提问者为创建者新建。
func (s *questionService) Ask(ctx context.Context, author *model.User, title, body, tags string) (*model.Question, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, validation(MsgMissingQuestion)
	}

	tagList, err := s.resolveTags(splitTags(tags), author.ID)
	if err != nil {
		return nil, err
	}

	q := &model.Question{
		Title:    title,
		Body:     body,
		AuthorID: author.ID,
		Tags:     tagList,
	}
	if err := s.questionRepo.Create(q); err != nil {
		return nil, err
	}
	if err := s.tagRepo.AdjustUsedCount(tagIDs(tagList), 1); err != nil {
		return nil, err
	}

	s.index(ctx, q)
	return q, nil
}

// Retag 替换问题的标签集合，只有作者、管理员或版主可以操作。
func (s *questionService) Retag(ctx context.Context, actor *model.User, id uint, tags string) (*model.Question, error) {
	q, err := s.questionRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, validation(MsgQuestionNotFound)
		}
		return nil, err
	}
	if q.AuthorID != actor.ID && !actor.IsAdministrator() && !actor.IsModerator() {
		return nil, permission(MsgCannotRetagOthers)
	}

	newTags, err := s.resolveTags(splitTags(tags), actor.ID)
	if err != nil {
		return nil, err
	}

	oldIDs := make(map[uint]struct{}, len(q.Tags))
	for _, t := range q.Tags {
		oldIDs[t.ID] = struct{}{}
	}
	newIDs := make(map[uint]struct{}, len(newTags))
	var added, removed []uint
	for _, t := range newTags {
		newIDs[t.ID] = struct{}{}
		if _, ok := oldIDs[t.ID]; !ok {
			added = append(added, t.ID)
		}
	}
	for tid := range oldIDs {
		if _, ok := newIDs[tid]; !ok {
			removed = append(removed, tid)
		}
	}

	if err := s.questionRepo.ReplaceTags(q, newTags); err != nil {
		return nil, err
	}
	if err := s.tagRepo.AdjustUsedCount(added, 1); err != nil {
		return nil, err
	}
	if err := s.tagRepo.AdjustUsedCount(removed, -1); err != nil {
		return nil, err
	}
	q.Tags = newTags

	s.index(ctx, q)
	return q, nil
}

func (s *questionService) resolveTags(names []string, creatorID uint) ([]model.Tag, error) {
	tags := make([]model.Tag, 0, len(names))
	for _, name := range names {
		tag, err := s.tagRepo.FindOrCreate(name, creatorID)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *tag)
	}
	return tags, nil
}

// index 失败不影响主流程，只记录日志。
func (s *questionService) index(ctx context.Context, q *model.Question) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.IndexQuestion(ctx, q); err != nil {
		log.Warnf("[QuestionService] 写入搜索索引失败, questionId: %d, error: %v", q.ID, err)
	}
}

// splitTags 按空白切分标签并去重，保持原有顺序。
func splitTags(raw string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, name := range strings.Fields(raw) {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func tagIDs(tags []model.Tag) []uint {
	ids := make([]uint, 0, len(tags))
	for _, t := range tags {
		ids = append(ids, t.ID)
	}
	return ids
}
