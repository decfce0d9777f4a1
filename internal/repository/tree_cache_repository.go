package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"qa-smart-go/internal/model"
)

const (
	categoryTreeKey    = "category:tree"
	categoryTreeGenKey = "category:tree:gen"
)

// TreeCacheRepository 缓存序列化后的分类树。
// 缓存按代数存放：Invalidate 递增代数，旧代数下的写入不会再被读到。
type TreeCacheRepository interface {
	// Get 返回缓存的树与当前代数，hit 表示是否命中。空树以 nil 根节点命中。
	Get(ctx context.Context) (root *model.CategoryNode, gen int64, hit bool, err error)
	// Set 将树写入 gen 代。gen 应取自构建这棵树之前的 Get。
	Set(ctx context.Context, gen int64, root *model.CategoryNode) error
	Invalidate(ctx context.Context) error
}

type redisTreeCacheRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewTreeCacheRepository 创建一个新的 TreeCacheRepository 实例。
func NewTreeCacheRepository(redisClient *redis.Client, ttl time.Duration) TreeCacheRepository {
	return &redisTreeCacheRepository{redisClient: redisClient, ttl: ttl}
}

func treeKey(gen int64) string {
	return fmt.Sprintf("%s:%d", categoryTreeKey, gen)
}

func (r *redisTreeCacheRepository) Get(ctx context.Context) (*model.CategoryNode, int64, bool, error) {
	gen, err := r.redisClient.Get(ctx, categoryTreeGenKey).Int64()
	if err != nil && err != redis.Nil {
		return nil, 0, false, fmt.Errorf("failed to get category tree generation: %w", err)
	}

	jsonData, err := r.redisClient.Get(ctx, treeKey(gen)).Result()
	if err == redis.Nil {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to get category tree: %w", err)
	}
	var root *model.CategoryNode
	if err := json.Unmarshal([]byte(jsonData), &root); err != nil {
		return nil, gen, false, fmt.Errorf("failed to unmarshal category tree: %w", err)
	}
	return root, gen, true, nil
}

func (r *redisTreeCacheRepository) Set(ctx context.Context, gen int64, root *model.CategoryNode) error {
	jsonData, err := json.Marshal(root)
	if err != nil {
		return fmt.Errorf("failed to marshal category tree: %w", err)
	}
	if err := r.redisClient.Set(ctx, treeKey(gen), jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set category tree: %w", err)
	}
	return nil
}

func (r *redisTreeCacheRepository) Invalidate(ctx context.Context) error {
	gen, err := r.redisClient.Incr(ctx, categoryTreeGenKey).Result()
	if err != nil {
		return fmt.Errorf("failed to invalidate category tree: %w", err)
	}
	// 上一代的树已不可达，顺手删除
	if err := r.redisClient.Del(ctx, treeKey(gen-1)).Err(); err != nil {
		return fmt.Errorf("failed to delete stale category tree: %w", err)
	}
	return nil
}
