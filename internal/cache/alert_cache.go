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

// LatestAlertCache 最新报警缓存
// 每个被监护账号的最近一条报警写入 Redis，供监护端上线时快速拉取，
// 不必等数据库查询。作为推送通道之一挂在分发扇出上
type LatestAlertCache struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewLatestAlertCache 创建最新报警缓存
func NewLatestAlertCache(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) *LatestAlertCache {
	return &LatestAlertCache{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// cacheKey 构建缓存键
func (c *LatestAlertCache) cacheKey(childUserID string) string {
	return c.config.Cache.AlertKeyPrefix + childUserID
}

// Publish 写入最新报警（覆盖旧值）
func (c *LatestAlertCache) Publish(ctx context.Context, alert *models.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert for cache: %w", err)
	}

	key := c.cacheKey(alert.ChildUserID)
	ttl := time.Duration(c.config.Cache.AlertTTL) * time.Second
	if err := c.redisClient.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache latest alert: %w", err)
	}

	c.logger.Debug("Latest alert cached",
		zap.String("child_user_id", alert.ChildUserID),
		zap.String("alert_id", alert.AlertID))
	return nil
}

// Latest 读取账号的最近一条报警，没有时返回 nil, nil
func (c *LatestAlertCache) Latest(ctx context.Context, childUserID string) (*models.Alert, error) {
	val, err := c.redisClient.Get(ctx, c.cacheKey(childUserID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest alert: %w", err)
	}

	var alert models.Alert
	if err := json.Unmarshal([]byte(val), &alert); err != nil {
		return nil, fmt.Errorf("failed to decode cached alert: %w", err)
	}
	return &alert, nil
}
