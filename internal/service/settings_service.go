package service

import (
	"context"
	"errors"

	"qa-smart-go/internal/config"
	"qa-smart-go/internal/model"
	"qa-smart-go/internal/repository"
	"qa-smart-go/pkg/log"
)

// SettingsService 提供分类功能的运行时配置：Redis 中的覆盖值优先，其次是配置文件中的默认值。
type SettingsService interface {
	Categories(ctx context.Context) model.CategorySettings
	UpdateCategories(ctx context.Context, o model.CategorySettingsOverride) (model.CategorySettings, error)
}

type settingsService struct {
	defaults     config.CategoriesConfig
	settingsRepo repository.SettingsRepository
}

// NewSettingsService 创建一个新的 SettingsService 实例。settingsRepo 为 nil 时只使用默认值。
func NewSettingsService(defaults config.CategoriesConfig, settingsRepo repository.SettingsRepository) SettingsService {
	return &settingsService{defaults: defaults, settingsRepo: settingsRepo}
}

// Categories 读取当前生效的分类配置。Redis 不可用时降级为默认值。
func (s *settingsService) Categories(ctx context.Context) model.CategorySettings {
	settings := model.CategorySettings{
		Enabled:      s.defaults.Enabled,
		MaxTreeDepth: s.defaults.MaxTreeDepth,
	}
	if s.settingsRepo == nil {
		return settings
	}
	o, err := s.settingsRepo.GetCategoryOverride(ctx)
	if err != nil {
		log.Warnf("[SettingsService] 读取分类配置覆盖值失败，使用默认配置: %v", err)
		return settings
	}
	return apply(settings, o)
}

// UpdateCategories 保存管理员提交的覆盖值并返回新的生效配置。
func (s *settingsService) UpdateCategories(ctx context.Context, o model.CategorySettingsOverride) (model.CategorySettings, error) {
	if o.MaxTreeDepth != nil && *o.MaxTreeDepth < 1 {
		return model.CategorySettings{}, validation(MsgInvalidMaxDepth)
	}
	if s.settingsRepo == nil {
		return model.CategorySettings{}, errors.New("settings store is not configured")
	}
	if err := s.settingsRepo.SaveCategoryOverride(ctx, o); err != nil {
		return model.CategorySettings{}, err
	}
	return s.Categories(ctx), nil
}

func apply(settings model.CategorySettings, o model.CategorySettingsOverride) model.CategorySettings {
	if o.Enabled != nil {
		settings.Enabled = *o.Enabled
	}
	if o.MaxTreeDepth != nil {
		settings.MaxTreeDepth = *o.MaxTreeDepth
	}
	return settings
}
