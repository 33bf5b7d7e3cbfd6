package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"famguard-alert/internal/config"
	"famguard-alert/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// SettingsLoader 设置数据源（由 repository 实现）
type SettingsLoader interface {
	SettingsFor(ctx context.Context, childUserID string) (*models.FilterSettings, error)
}

// SettingsCache 过滤设置读穿缓存
// 读路径：Redis 命中直接返回；未命中回源数据库并写缓存（带 TTL）
// 写路径：设置更新后必须同步调用 Invalidate，不能只等 TTL 过期
type SettingsCache struct {
	config      *config.Config
	redisClient *redis.Client
	loader      SettingsLoader
	logger      *zap.Logger
}

// NewSettingsCache 创建设置缓存
func NewSettingsCache(
	cfg *config.Config,
	redisClient *redis.Client,
	loader SettingsLoader,
	logger *zap.Logger,
) *SettingsCache {
	return &SettingsCache{
		config:      cfg,
		redisClient: redisClient,
		loader:      loader,
		logger:      logger,
	}
}

// cacheKey 构建缓存键
func (c *SettingsCache) cacheKey(childUserID string) string {
	return c.config.Cache.SettingsKeyPrefix + childUserID
}

// SettingsFor 读取被监护账号的过滤设置（经缓存）
// 账号没有设置时返回 nil, nil
func (c *SettingsCache) SettingsFor(ctx context.Context, childUserID string) (*models.FilterSettings, error) {
	key := c.cacheKey(childUserID)

	val, err := c.redisClient.Get(ctx, key).Result()
	if err == nil {
		var settings models.FilterSettings
		if err := json.Unmarshal([]byte(val), &settings); err != nil {
			// 缓存内容损坏：删掉后回源
			c.logger.Warn("Corrupt settings cache entry, falling back to store",
				zap.String("child_user_id", childUserID),
				zap.Error(err),
			)
			c.redisClient.Del(ctx, key)
		} else {
			return &settings, nil
		}
	} else if err != redis.Nil {
		// Redis 故障时直接回源，不阻断评估
		c.logger.Warn("Settings cache read failed, falling back to store",
			zap.String("child_user_id", childUserID),
			zap.Error(err),
		)
	}

	settings, err := c.loader.SettingsFor(ctx, childUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if settings == nil {
		return nil, nil
	}

	jsonData, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}

	ttl := time.Duration(c.config.Cache.SettingsTTL) * time.Second
	if err := c.redisClient.Set(ctx, key, jsonData, ttl).Err(); err != nil {
		c.logger.Warn("Failed to populate settings cache",
			zap.String("child_user_id", childUserID),
			zap.Error(err),
		)
	}

	return settings, nil
}

// Invalidate 同步失效某个账号的设置缓存（设置写入后调用）
func (c *SettingsCache) Invalidate(ctx context.Context, childUserID string) error {
	if err := c.redisClient.Del(ctx, c.cacheKey(childUserID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate settings cache: %w", err)
	}
	return nil
}
