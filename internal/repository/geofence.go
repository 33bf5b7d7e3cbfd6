package repository

import (
	"context"
	"database/sql"
	"fmt"

	"famguard-alert/internal/models"

	"go.uber.org/zap"
)

// GeofenceRepository 地理围栏仓库
type GeofenceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewGeofenceRepository 创建地理围栏仓库
func NewGeofenceRepository(db *sql.DB, logger *zap.Logger) *GeofenceRepository {
	return &GeofenceRepository{
		db:     db,
		logger: logger,
	}
}

// ActiveGeofences 查询家庭的所有启用围栏
func (r *GeofenceRepository) ActiveGeofences(ctx context.Context, familyID string) ([]models.Geofence, error) {
	if familyID == "" {
		return nil, fmt.Errorf("family_id is required")
	}

	query := `
		SELECT
			id,
			family_id,
			name,
			center_latitude,
			center_longitude,
			radius,
			type,
			is_active
		FROM geofences
		WHERE family_id = $1
		  AND is_active = true
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query geofences: %w", err)
	}
	defer rows.Close()

	var geofences []models.Geofence
	for rows.Next() {
		var gf models.Geofence
		err := rows.Scan(
			&gf.ID,
			&gf.FamilyID,
			&gf.Name,
			&gf.CenterLatitude,
			&gf.CenterLongitude,
			&gf.Radius,
			&gf.Kind,
			&gf.IsActive,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan geofence: %w", err)
		}
		geofences = append(geofences, gf)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate geofences: %w", err)
	}

	return geofences, nil
}
