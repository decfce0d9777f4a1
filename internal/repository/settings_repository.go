package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"qa-smart-go/internal/model"
)

const categorySettingsKey = "settings:categories"

// SettingsRepository 在 Redis 中保存可在运行时修改的分类设置。
type SettingsRepository interface {
	GetCategoryOverride(ctx context.Context) (model.CategorySettingsOverride, error)
	SaveCategoryOverride(ctx context.Context, o model.CategorySettingsOverride) error
}

type redisSettingsRepository struct {
	redisClient *redis.Client
}

// NewSettingsRepository 创建一个新的 SettingsRepository 实例。
func NewSettingsRepository(redisClient *redis.Client) SettingsRepository {
	return &redisSettingsRepository{redisClient: redisClient}
}

// GetCategoryOverride 读取 Redis 中的覆盖值，未设置的字段保持为 nil。
func (r *redisSettingsRepository) GetCategoryOverride(ctx context.Context) (model.CategorySettingsOverride, error) {
	var o model.CategorySettingsOverride
	fields, err := r.redisClient.HGetAll(ctx, categorySettingsKey).Result()
	if err != nil {
		return o, fmt.Errorf("failed to get category settings: %w", err)
	}
	if v, ok := fields["enabled"]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			o.Enabled = &b
		}
	}
	if v, ok := fields["max_tree_depth"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			o.MaxTreeDepth = &n
		}
	}
	return o, nil
}

// SaveCategoryOverride 只写入非 nil 的字段。
func (r *redisSettingsRepository) SaveCategoryOverride(ctx context.Context, o model.CategorySettingsOverride) error {
	values := make(map[string]interface{})
	if o.Enabled != nil {
		values["enabled"] = strconv.FormatBool(*o.Enabled)
	}
	if o.MaxTreeDepth != nil {
		values["max_tree_depth"] = strconv.Itoa(*o.MaxTreeDepth)
	}
	if len(values) == 0 {
		return nil
	}
	if err := r.redisClient.HSet(ctx, categorySettingsKey, values).Err(); err != nil {
		return fmt.Errorf("failed to save category settings: %w", err)
	}
	return nil
}
