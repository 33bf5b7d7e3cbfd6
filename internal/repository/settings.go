package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"famguard-alert/internal/models"

	"go.uber.org/zap"
)

// SettingsRepository 通知过滤设置仓库
type SettingsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSettingsRepository 创建设置仓库
func NewSettingsRepository(db *sql.DB, logger *zap.Logger) *SettingsRepository {
	return &SettingsRepository{
		db:     db,
		logger: logger,
	}
}

// SettingsFor 查询被监护账号的过滤设置
// 未为该账号配置设置时返回 nil（默认放行所有通知）
func (r *SettingsRepository) SettingsFor(ctx context.Context, childUserID string) (*models.FilterSettings, error) {
	if childUserID == "" {
		return nil, fmt.Errorf("child_user_id is required")
	}

	query := `
		SELECT
			s.family_id,
			s.child_user_id,
			s.notification_filters,
			s.blocked_keywords,
			s.location_update_interval
		FROM app_settings s
		JOIN family_members m
		  ON m.family_id = s.family_id
		 AND m.user_id = s.child_user_id
		WHERE s.child_user_id = $1
		  AND m.role = 'child'
		LIMIT 1
	`

	var (
		settings    models.FilterSettings
		filtersJSON []byte
		keywordsJSON []byte
	)
	err := r.db.QueryRowContext(ctx, query, childUserID).Scan(
		&settings.FamilyID,
		&settings.ChildUserID,
		&filtersJSON,
		&keywordsJSON,
		&settings.LocationUpdateInterval,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}

	if len(filtersJSON) > 0 {
		if err := json.Unmarshal(filtersJSON, &settings.NotificationFilters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification filters: %w", err)
		}
	}
	if len(keywordsJSON) > 0 {
		if err := json.Unmarshal(keywordsJSON, &settings.BlockedKeywords); err != nil {
			return nil, fmt.Errorf("failed to unmarshal blocked keywords: %w", err)
		}
	}

	return &settings, nil
}

// UpsertNotificationFilters 写入应用监控表（不存在则创建设置行）
func (r *SettingsRepository) UpsertNotificationFilters(ctx context.Context, familyID, childUserID string, filters map[string]bool) error {
	if familyID == "" || childUserID == "" {
		return fmt.Errorf("family_id and child_user_id are required")
	}

	filtersJSON, err := json.Marshal(filters)
	if err != nil {
		return fmt.Errorf("failed to marshal notification filters: %w", err)
	}

	query := `
		INSERT INTO app_settings (family_id, child_user_id, notification_filters, blocked_keywords, location_update_interval)
		VALUES ($1, $2, $3, '[]'::jsonb, 60)
		ON CONFLICT (family_id, child_user_id)
		DO UPDATE SET notification_filters = EXCLUDED.notification_filters
	`

	if _, err := r.db.ExecContext(ctx, query, familyID, childUserID, string(filtersJSON)); err != nil {
		return fmt.Errorf("failed to upsert notification filters: %w", err)
	}

	return nil
}

// UpsertBlockedKeywords 写入违禁关键词列表（不存在则创建设置行）
// 关键词应已由服务层小写化、去空白；列表顺序即匹配顺序
func (r *SettingsRepository) UpsertBlockedKeywords(ctx context.Context, familyID, childUserID string, keywords []string) error {
	if familyID == "" || childUserID == "" {
		return fmt.Errorf("family_id and child_user_id are required")
	}
	if keywords == nil {
		keywords = []string{}
	}

	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal blocked keywords: %w", err)
	}

	query := `
		INSERT INTO app_settings (family_id, child_user_id, notification_filters, blocked_keywords, location_update_interval)
		VALUES ($1, $2, '{}'::jsonb, $3, 60)
		ON CONFLICT (family_id, child_user_id)
		DO UPDATE SET blocked_keywords = EXCLUDED.blocked_keywords
	`

	if _, err := r.db.ExecContext(ctx, query, familyID, childUserID, string(keywordsJSON)); err != nil {
		return fmt.Errorf("failed to upsert blocked keywords: %w", err)
	}

	return nil
}
