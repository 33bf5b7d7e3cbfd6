package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"famguard-alert/internal/config"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ContainmentState 某个 (subject, geofence) 的最近一次包含状态
type ContainmentState struct {
	Inside     bool  `json:"inside"`
	CapturedAt int64 `json:"captured_at"` // Unix 秒，对应产生该状态的采样时间
}

// GeofenceStateStore 围栏包含状态存储（状态迁移模式使用）
type GeofenceStateStore struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewGeofenceStateStore 创建围栏状态存储
func NewGeofenceStateStore(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *GeofenceStateStore {
	return &GeofenceStateStore{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// stateKey 构建状态键
func (s *GeofenceStateStore) stateKey(childUserID, geofenceID string) string {
	return fmt.Sprintf("%s%s:%s", s.config.Cache.StateKeyPrefix, childUserID, geofenceID)
}

// Get 读取包含状态；状态不存在时返回 nil, nil
func (s *GeofenceStateStore) Get(ctx context.Context, childUserID, geofenceID string) (*ContainmentState, error) {
	val, err := s.redisClient.Get(ctx, s.stateKey(childUserID, geofenceID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get containment state: %w", err)
	}

	var state ContainmentState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal containment state: %w", err)
	}

	return &state, nil
}

// Set 写入包含状态（带 TTL）
func (s *GeofenceStateStore) Set(ctx context.Context, childUserID, geofenceID string, state ContainmentState) error {
	jsonData, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal containment state: %w", err)
	}

	ttl := time.Duration(s.config.Cache.StateTTL) * time.Second
	err = s.redisClient.Set(ctx, s.stateKey(childUserID, geofenceID), jsonData, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set containment state: %w", err)
	}

	return nil
}
