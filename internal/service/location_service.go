package service

import (
	"context"
	"fmt"

	"famguard-alert/internal/config"
	"famguard-alert/internal/evaluator"
	"famguard-alert/internal/geo"
	"famguard-alert/internal/models"
	"famguard-alert/internal/repository"

	"go.uber.org/zap"
)

// LocationService 定位事件服务
// 业务编排：校验 -> 低电量检查 -> 落库 -> 围栏评估
type LocationService struct {
	config       *config.Config
	locations    *repository.LocationRepository
	geofenceEval *evaluator.GeofenceEvaluator
	batteryEval  *evaluator.BatteryEvaluator
	logger       *zap.Logger
}

// NewLocationService 创建定位事件服务
func NewLocationService(
	cfg *config.Config,
	locations *repository.LocationRepository,
	geofenceEval *evaluator.GeofenceEvaluator,
	batteryEval *evaluator.BatteryEvaluator,
	logger *zap.Logger,
) *LocationService {
	return &LocationService{
		config:       cfg,
		locations:    locations,
		geofenceEval: geofenceEval,
		batteryEval:  batteryEval,
		logger:       logger,
	}
}

// HandleLocationUpdate 处理一次定位上报
// 校验失败返回 ValidationError（事件被拒绝，不评估）；
// 低电量报警失败只记日志，不阻断采样落库和围栏评估
func (s *LocationService) HandleLocationUpdate(ctx context.Context, ev models.LocationEvent) error {
	if ev.ChildUserID == "" {
		return models.NewValidationError("child_user_id", "must not be empty")
	}
	if err := geo.ValidateCoordinate(ev.Latitude, ev.Longitude); err != nil {
		return err
	}
	if ev.Accuracy < 0 {
		return models.NewValidationError("accuracy", "must be >= 0")
	}
	if ev.BatteryLevel < 0 || ev.BatteryLevel > 100 {
		return models.NewValidationError("battery_level", "must be between 0 and 100")
	}
	if ev.CapturedAt.IsZero() {
		return models.NewValidationError("captured_at", "must not be zero")
	}

	// 低电量检查先于落库（与上报处理顺序保持一致）
	if ev.BatteryLevel <= s.config.Battery.AlertThreshold {
		if err := s.batteryEval.Check(ctx, ev.ChildUserID, ev.BatteryLevel, ev.CapturedAt); err != nil {
			s.logger.Error("Failed to evaluate battery level",
				zap.String("child_user_id", ev.ChildUserID),
				zap.Int("battery_level", ev.BatteryLevel),
				zap.Error(err),
			)
		}
	}

	sample := &models.LocationSample{
		UserID:       ev.ChildUserID,
		Latitude:     ev.Latitude,
		Longitude:    ev.Longitude,
		Accuracy:     ev.Accuracy,
		BatteryLevel: ev.BatteryLevel,
		CapturedAt:   ev.CapturedAt,
	}
	if _, err := s.locations.Create(ctx, sample); err != nil {
		return fmt.Errorf("failed to store location sample: %w", err)
	}

	if err := s.geofenceEval.CheckViolations(ctx, ev.ChildUserID, ev.Latitude, ev.Longitude, ev.CapturedAt); err != nil {
		return fmt.Errorf("failed to check geofence violations: %w", err)
	}

	return nil
}
