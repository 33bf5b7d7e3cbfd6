package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"famguard-alert/internal/models"

	"go.uber.org/zap"
)

// LocationRepository 定位采样仓库
// 定位流是追加式的：只插入、按 captured_at 查询，不做更新
type LocationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLocationRepository 创建定位采样仓库
func NewLocationRepository(db *sql.DB, logger *zap.Logger) *LocationRepository {
	return &LocationRepository{
		db:     db,
		logger: logger,
	}
}

// Create 插入定位采样，返回生成的ID
func (r *LocationRepository) Create(ctx context.Context, sample *models.LocationSample) (int64, error) {
	if sample.UserID == "" {
		return 0, fmt.Errorf("user_id is required")
	}

	query := `
		INSERT INTO locations (
			user_id,
			latitude,
			longitude,
			accuracy,
			battery_level,
			captured_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		sample.UserID,
		sample.Latitude,
		sample.Longitude,
		sample.Accuracy,
		sample.BatteryLevel,
		sample.CapturedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert location: %w", err)
	}

	return id, nil
}

// PreviousSample 查询严格早于 before 的最近一条采样
// 状态迁移模式冷启动时用它恢复前一次的围栏包含状态；没有记录时返回 nil
func (r *LocationRepository) PreviousSample(ctx context.Context, userID string, before time.Time) (*models.LocationSample, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	query := `
		SELECT
			id,
			user_id,
			latitude,
			longitude,
			accuracy,
			battery_level,
			captured_at
		FROM locations
		WHERE user_id = $1
		  AND captured_at < $2
		ORDER BY captured_at DESC
		LIMIT 1
	`

	var sample models.LocationSample
	err := r.db.QueryRowContext(ctx, query, userID, before).Scan(
		&sample.ID,
		&sample.UserID,
		&sample.Latitude,
		&sample.Longitude,
		&sample.Accuracy,
		&sample.BatteryLevel,
		&sample.CapturedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query previous sample: %w", err)
	}

	return &sample, nil
}
