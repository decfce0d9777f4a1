package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"qa-smart-go/internal/model"
	"qa-smart-go/internal/repository"
	"qa-smart-go/internal/testutil"
	"qa-smart-go/pkg/token"
)

type stubSettings struct {
	mu       sync.Mutex
	settings model.CategorySettings
}

func (s *stubSettings) Categories(context.Context) model.CategorySettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *stubSettings) UpdateCategories(_ context.Context, o model.CategorySettingsOverride) (model.CategorySettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = apply(s.settings, o)
	return s.settings, nil
}

type recordingPublisher struct {
	events []model.CategoryEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e model.CategoryEvent) error {
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type env struct {
	*testutil.Fixture
	db         *gorm.DB
	settings   *stubSettings
	publisher  *recordingPublisher
	cache      repository.TreeCacheRepository
	categories CategoryService
	filter     FilterService
	tags       repository.TagRepository
	questions  repository.QuestionRepository
}

func newEnv(t *testing.T, seed bool) *env {
	t.Helper()
	db := testutil.NewDB(t)
	client, _ := testutil.NewRedis(t)

	e := &env{
		db:        db,
		settings:  &stubSettings{settings: model.CategorySettings{Enabled: true, MaxTreeDepth: 3}},
		publisher: &recordingPublisher{},
		cache:     repository.NewTreeCacheRepository(client, 0),
		tags:      repository.NewTagRepository(db),
		questions: repository.NewQuestionRepository(db),
	}
	if seed {
		e.Fixture = testutil.SeedTree(t, db)
	} else {
		e.Fixture = &testutil.Fixture{Admin: testutil.MustUser(t, db, "admin", model.RoleAdmin)}
	}
	categoryRepo := repository.NewCategoryRepository(db)
	e.categories = NewCategoryService(categoryRepo, e.tags, e.cache, e.settings,
		token.NewCategoryTokenGenerator("test-secret"), e.publisher)
	e.filter = NewFilterService(categoryRepo, e.tags, e.questions, e.settings)
	return e
}

func (e *env) catID(name string) *uint {
	id := e.Categories[name].ID
	return &id
}

func requireValidation(t *testing.T, err error, msg string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, IsValidation(err), "expected ValidationError, got %T: %v", err, err)
	require.Equal(t, msg, err.Error())
}
