package evaluator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"famguard-alert/internal/cache"
	"famguard-alert/internal/config"
	"famguard-alert/internal/dispatcher"
	"famguard-alert/internal/geo"
	"famguard-alert/internal/models"
	"famguard-alert/internal/repository"

	"go.uber.org/zap"
)

// FamilyDirectory 家庭归属查询（由 repository 实现）
type FamilyDirectory interface {
	FamilyOf(ctx context.Context, userID string) (string, error)
}

// GeofenceSource 围栏查询（由 repository 实现）
type GeofenceSource interface {
	ActiveGeofences(ctx context.Context, familyID string) ([]models.Geofence, error)
}

// ContainmentStateStore 围栏包含状态存储（状态迁移模式）
type ContainmentStateStore interface {
	Get(ctx context.Context, childUserID, geofenceID string) (*cache.ContainmentState, error)
	Set(ctx context.Context, childUserID, geofenceID string, state cache.ContainmentState) error
}

// PreviousSampleSource 前一采样查询（状态迁移模式冷启动回退）
type PreviousSampleSource interface {
	PreviousSample(ctx context.Context, userID string, before time.Time) (*models.LocationSample, error)
}

// AlertSink 报警派发入口
type AlertSink interface {
	Dispatch(ctx context.Context, intent dispatcher.Intent) (dispatcher.Outcome, error)
}

// GeofenceEvaluator 地理围栏评估器
// 对每个启用围栏计算包含关系（distance <= radius，边界含）并产生报警意图。
// 两种评估模式：
//   - threshold：只看当前点，在危险区内/安全区外即触发，重复触发靠去重冷却抑制
//   - transition：与该 subject 上一次的包含状态比较，仅在 inside/outside 变化时触发
type GeofenceEvaluator struct {
	config    *config.Config
	families  FamilyDirectory
	geofences GeofenceSource
	state     ContainmentStateStore
	locations PreviousSampleSource
	sink      AlertSink
	logger    *zap.Logger
}

// NewGeofenceEvaluator 创建地理围栏评估器
func NewGeofenceEvaluator(
	cfg *config.Config,
	families FamilyDirectory,
	geofences GeofenceSource,
	state ContainmentStateStore,
	locations PreviousSampleSource,
	sink AlertSink,
	logger *zap.Logger,
) *GeofenceEvaluator {
	return &GeofenceEvaluator{
		config:    cfg,
		families:  families,
		geofences: geofences,
		state:     state,
		locations: locations,
		sink:      sink,
		logger:    logger,
	}
}

// CheckViolations 用一次定位采样评估该家庭的所有启用围栏
// 未知 subject 是静默 no-op；围栏/状态查询失败向调用方传播；
// 单个围栏的报警创建失败记日志后继续评估其余围栏
func (e *GeofenceEvaluator) CheckViolations(ctx context.Context, childUserID string, lat, lon float64, capturedAt time.Time) error {
	familyID, err := e.families.FamilyOf(ctx, childUserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// 没有家庭就没有监护人可通知
			e.logger.Debug("Unknown subject, skipping geofence check",
				zap.String("child_user_id", childUserID),
			)
			return nil
		}
		return fmt.Errorf("failed to resolve family: %w", err)
	}

	geofences, err := e.geofences.ActiveGeofences(ctx, familyID)
	if err != nil {
		return fmt.Errorf("failed to load geofences: %w", err)
	}

	for _, gf := range geofences {
		if gf.Radius <= 0 {
			// 半径不变量被破坏的数据不参与评估
			e.logger.Warn("Skipping geofence with non-positive radius",
				zap.String("geofence_id", gf.ID),
				zap.Int("radius", gf.Radius),
			)
			continue
		}

		distance := geo.DistanceMeters(lat, lon, gf.CenterLatitude, gf.CenterLongitude)
		inside := distance <= float64(gf.Radius)

		var violationType string
		var priority models.AlertPriority

		switch e.config.Geofence.Mode {
		case config.GeofenceModeTransition:
			violationType, priority, err = e.classifyTransition(ctx, childUserID, gf, inside, capturedAt)
			if err != nil {
				return err
			}
		default:
			violationType, priority = classifyThreshold(gf, inside)
		}

		if violationType == "" {
			continue
		}

		outcome, err := e.sink.Dispatch(ctx, dispatcher.Intent{
			ChildUserID: childUserID,
			Type:        models.AlertTypeGeofence,
			Priority:    priority,
			Title:       geofenceAlertTitle(violationType),
			Message:     geofenceAlertMessage(violationType, gf.Name),
			Payload: models.GeofencePayload{
				GeofenceID:    gf.ID,
				GeofenceName:  gf.Name,
				GeofenceType:  string(gf.Kind),
				Distance:      distance,
				ViolationType: violationType,
			},
			DedupKey: map[string]interface{}{"geofence_id": gf.ID},
			Cooldown: time.Duration(e.config.Geofence.CooldownMinutes) * time.Minute,
			TriggeredAt: capturedAt,
		})
		if err != nil {
			// 报警创建失败不终止本次评估
			e.logger.Error("Failed to dispatch geofence alert",
				zap.String("child_user_id", childUserID),
				zap.String("geofence_id", gf.ID),
				zap.Error(err),
			)
			continue
		}

		if outcome.Suppressed {
			e.logger.Debug("Geofence alert suppressed",
				zap.String("child_user_id", childUserID),
				zap.String("geofence_id", gf.ID),
				zap.String("violation_type", violationType),
			)
		}
	}

	return nil
}

// classifyThreshold 无状态阈值判定：只看当前包含关系
func classifyThreshold(gf models.Geofence, inside bool) (string, models.AlertPriority) {
	if gf.Kind == models.GeofenceSafe && !inside {
		return models.ViolationLeftSafeZone, models.PriorityHigh
	}
	if gf.Kind == models.GeofenceDanger && inside {
		return models.ViolationEnteredDangerZone, models.PriorityCritical
	}
	return "", ""
}

// classifyTransition 状态迁移判定：比较上一次包含状态，仅在变化时触发
// 前一状态未知时回退到数据库中严格早于当前采样的上一条定位；
// 乱序采样（时间早于已记录状态）被拒绝，不更新状态也不触发
func (e *GeofenceEvaluator) classifyTransition(ctx context.Context, childUserID string, gf models.Geofence, inside bool, capturedAt time.Time) (string, models.AlertPriority, error) {
	prev, err := e.state.Get(ctx, childUserID, gf.ID)
	if err != nil {
		return "", "", fmt.Errorf("failed to get containment state: %w", err)
	}

	var prevInside *bool
	if prev != nil {
		if capturedAt.Unix() < prev.CapturedAt {
			e.logger.Warn("Rejecting out-of-order location sample",
				zap.String("child_user_id", childUserID),
				zap.String("geofence_id", gf.ID),
				zap.Int64("sample_at", capturedAt.Unix()),
				zap.Int64("state_at", prev.CapturedAt),
			)
			return "", "", nil
		}
		prevInside = &prev.Inside
	} else if e.locations != nil {
		// 冷启动：从定位历史恢复前一次包含状态
		prevSample, err := e.locations.PreviousSample(ctx, childUserID, capturedAt)
		if err != nil {
			return "", "", fmt.Errorf("failed to load previous sample: %w", err)
		}
		if prevSample != nil {
			d := geo.DistanceMeters(prevSample.Latitude, prevSample.Longitude, gf.CenterLatitude, gf.CenterLongitude)
			wasInside := d <= float64(gf.Radius)
			prevInside = &wasInside
		}
	}

	if err := e.state.Set(ctx, childUserID, gf.ID, cache.ContainmentState{
		Inside:     inside,
		CapturedAt: capturedAt.Unix(),
	}); err != nil {
		return "", "", fmt.Errorf("failed to set containment state: %w", err)
	}

	// 前一状态未知或未变化：不触发
	if prevInside == nil || *prevInside == inside {
		return "", "", nil
	}

	// 优先级：进入危险区 critical，离开安全区 high，其余迁移 medium
	if inside {
		if gf.Kind == models.GeofenceDanger {
			return models.ViolationEnteredDangerZone, models.PriorityCritical, nil
		}
		return models.ViolationEnteredSafeZone, models.PriorityMedium, nil
	}
	if gf.Kind == models.GeofenceSafe {
		return models.ViolationLeftSafeZone, models.PriorityHigh, nil
	}
	return models.ViolationLeftDangerZone, models.PriorityMedium, nil
}

// geofenceAlertTitle 围栏报警标题
func geofenceAlertTitle(violationType string) string {
	switch violationType {
	case models.ViolationLeftSafeZone:
		return "Left Safe Zone"
	case models.ViolationEnteredDangerZone:
		return "Entered Danger Zone"
	default:
		return "Geofence Alert"
	}
}

// geofenceAlertMessage 围栏报警正文
func geofenceAlertMessage(violationType, geofenceName string) string {
	switch violationType {
	case models.ViolationLeftSafeZone:
		return fmt.Sprintf("Child has left the safe zone: %s", geofenceName)
	case models.ViolationEnteredDangerZone:
		return fmt.Sprintf("Child has entered the danger zone: %s", geofenceName)
	case models.ViolationEnteredSafeZone:
		return fmt.Sprintf("Child has entered the safe zone: %s", geofenceName)
	case models.ViolationLeftDangerZone:
		return fmt.Sprintf("Child has left the danger zone: %s", geofenceName)
	default:
		return fmt.Sprintf("Geofence violation at: %s", geofenceName)
	}
}
