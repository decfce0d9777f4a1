package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qa-smart-go/internal/model"
	"qa-smart-go/internal/testutil"
)

type recordingIndexer struct {
	indexed []uint
	err     error
}

func (r *recordingIndexer) IndexQuestion(_ context.Context, q *model.Question) error {
	r.indexed = append(r.indexed, q.ID)
	return r.err
}

func usedCount(t *testing.T, e *env, name string) int {
	t.Helper()
	tag, err := e.tags.FindByName(name)
	require.NoError(t, err)
	return tag.UsedCount
}

func TestAsk(t *testing.T) {
	e := newEnv(t, true)
	indexer := &recordingIndexer{}
	svc := NewQuestionService(e.questions, e.tags, indexer)
	ctx := context.Background()

	_, err := svc.Ask(ctx, e.Admin, "   ", "body", "tag1")
	requireValidation(t, err, MsgMissingQuestion)

	q, err := svc.Ask(ctx, e.Admin, "How?", "body", "tag1 brand-new tag1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tag1", "brand-new"}, q.TagNames())
	assert.Equal(t, 2, usedCount(t, e, "tag1"))
	assert.Equal(t, 1, usedCount(t, e, "brand-new"))
	assert.Equal(t, []uint{q.ID}, indexer.indexed)

	// 新问题出现在 C1 的过滤结果中
	page, err := e.filter.ListQuestions(ctx, "C1", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "How?", page.Content[0].Title)
}

func TestAsk_IndexFailureIsNotFatal(t *testing.T) {
	e := newEnv(t, true)
	svc := NewQuestionService(e.questions, e.tags, &recordingIndexer{err: errors.New("es down")})

	_, err := svc.Ask(context.Background(), e.Admin, "Title", "", "")
	require.NoError(t, err)
}

func TestRetag(t *testing.T) {
	e := newEnv(t, true)
	svc := NewQuestionService(e.questions, e.tags, nil)
	ctx := context.Background()
	q5 := e.Questions["Q5"]

	_, err := svc.Retag(ctx, e.Admin, 9999, "tag1")
	requireValidation(t, err, MsgQuestionNotFound)

	stranger := testutil.MustUser(t, e.db, "stranger", model.RoleUser)
	_, err = svc.Retag(ctx, stranger, q5.ID, "tag1")
	require.Error(t, err)
	assert.True(t, IsPermission(err))

	q, err := svc.Retag(ctx, e.Admin, q5.ID, "tag5 tag9")
	require.NoError(t, err)
	assert.Equal(t, []string{"tag5", "tag9"}, q.TagNames())
	assert.Equal(t, 1, usedCount(t, e, "tag4"))
	assert.Equal(t, 1, usedCount(t, e, "tag5"))
	assert.Equal(t, 2, usedCount(t, e, "tag9"))

	// Q5 现在出现在 C9 中，不再出现在 C4 中
	page, err := e.filter.ListQuestions(ctx, "C9", 1, 20)
	require.NoError(t, err)
	assert.Contains(t, titles(page), "Q5")
	page, err = e.filter.ListQuestions(ctx, "C4", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"Q4"}, titles(page))
}

func TestRetag_ModeratorAllowed(t *testing.T) {
	e := newEnv(t, true)
	svc := NewQuestionService(e.questions, e.tags, nil)
	mod := testutil.MustUser(t, e.db, "mod", model.RoleModerator)

	q, err := svc.Retag(context.Background(), mod, e.Questions["Q1"].ID, "")
	require.NoError(t, err)
	assert.Empty(t, q.Tags)
	assert.Equal(t, 0, usedCount(t, e, "tag1"))
}

func TestSplitTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitTags("  a\tb a "))
	assert.Empty(t, splitTags(""))
}
