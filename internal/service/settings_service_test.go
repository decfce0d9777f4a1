package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qa-smart-go/internal/config"
	"qa-smart-go/internal/model"
	"qa-smart-go/internal/repository"
	"qa-smart-go/internal/testutil"
)

var testDefaults = config.CategoriesConfig{Enabled: true, MaxTreeDepth: 3}

func TestSettingsService_Defaults(t *testing.T) {
	svc := NewSettingsService(testDefaults, nil)

	assert.Equal(t, model.CategorySettings{Enabled: true, MaxTreeDepth: 3}, svc.Categories(context.Background()))
	_, err := svc.UpdateCategories(context.Background(), model.CategorySettingsOverride{Enabled: boolPtr(false)})
	assert.Error(t, err)
}

func TestSettingsService_Override(t *testing.T) {
	client, _ := testutil.NewRedis(t)
	svc := NewSettingsService(testDefaults, repository.NewSettingsRepository(client))
	ctx := context.Background()

	_, err := svc.UpdateCategories(ctx, model.CategorySettingsOverride{MaxTreeDepth: intPtr(0)})
	requireValidation(t, err, MsgInvalidMaxDepth)

	got, err := svc.UpdateCategories(ctx, model.CategorySettingsOverride{Enabled: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, model.CategorySettings{Enabled: false, MaxTreeDepth: 3}, got)

	got, err = svc.UpdateCategories(ctx, model.CategorySettingsOverride{MaxTreeDepth: intPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, model.CategorySettings{Enabled: false, MaxTreeDepth: 5}, got)
	assert.Equal(t, got, svc.Categories(ctx))
}

func TestSettingsService_RedisUnavailable(t *testing.T) {
	client, mr := testutil.NewRedis(t)
	svc := NewSettingsService(testDefaults, repository.NewSettingsRepository(client))
	mr.SetError("LOADING")

	assert.Equal(t, model.CategorySettings{Enabled: true, MaxTreeDepth: 3}, svc.Categories(context.Background()))
}
