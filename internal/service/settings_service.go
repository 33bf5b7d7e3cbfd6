package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"famguard-alert/internal/cache"
	"famguard-alert/internal/models"
	"famguard-alert/internal/repository"

	"go.uber.org/zap"
)

// SettingsService 过滤设置写服务
// 写入后同步失效设置缓存，不依赖 TTL 过期
type SettingsService struct {
	families *repository.FamilyRepository
	settings *repository.SettingsRepository
	cache    *cache.SettingsCache
	logger   *zap.Logger
}

// NewSettingsService 创建设置服务
func NewSettingsService(
	families *repository.FamilyRepository,
	settings *repository.SettingsRepository,
	settingsCache *cache.SettingsCache,
	logger *zap.Logger,
) *SettingsService {
	return &SettingsService{
		families: families,
		settings: settings,
		cache:    settingsCache,
		logger:   logger,
	}
}

// UpdateNotificationFilters 更新应用监控表
// 未提供过滤表时写入常见社交应用的默认监控表
func (s *SettingsService) UpdateNotificationFilters(ctx context.Context, childUserID string, filters map[string]bool) error {
	familyID, err := s.resolveMonitoredChild(ctx, childUserID)
	if err != nil {
		return err
	}

	if filters == nil {
		filters = models.DefaultNotificationFilters()
	}
	if err := s.settings.UpsertNotificationFilters(ctx, familyID, childUserID, filters); err != nil {
		return err
	}

	return s.invalidate(ctx, childUserID)
}

// UpdateBlockedKeywords 更新违禁关键词列表
// 关键词小写化、去空白，空词条丢弃；列表顺序保留（匹配按此顺序进行）
func (s *SettingsService) UpdateBlockedKeywords(ctx context.Context, childUserID string, keywords []string) error {
	familyID, err := s.resolveMonitoredChild(ctx, childUserID)
	if err != nil {
		return err
	}

	sanitized := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		sanitized = append(sanitized, keyword)
	}

	if err := s.settings.UpsertBlockedKeywords(ctx, familyID, childUserID, sanitized); err != nil {
		return err
	}

	return s.invalidate(ctx, childUserID)
}

// resolveMonitoredChild 确认账号是被监护角色并返回其家庭ID
func (s *SettingsService) resolveMonitoredChild(ctx context.Context, childUserID string) (string, error) {
	if childUserID == "" {
		return "", fmt.Errorf("child_user_id is required")
	}

	role, err := s.families.Role(ctx, childUserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("child %s is not a family member", childUserID)
		}
		return "", err
	}
	if role != repository.RoleMonitored {
		return "", models.NewValidationError("child_user_id", "settings can only be written for monitored accounts")
	}

	return s.families.FamilyOf(ctx, childUserID)
}

// invalidate 同步失效设置缓存
func (s *SettingsService) invalidate(ctx context.Context, childUserID string) error {
	if err := s.cache.Invalidate(ctx, childUserID); err != nil {
		// 缓存失效失败必须让调用方知道，否则读端最长 TTL 时间内看到旧设置
		return fmt.Errorf("settings written but cache invalidation failed: %w", err)
	}
	return nil
}
