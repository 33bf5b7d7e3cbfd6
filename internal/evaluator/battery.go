package evaluator

import (
	"context"
	"fmt"
	"time"

	"famguard-alert/internal/config"
	"famguard-alert/internal/dispatcher"
	"famguard-alert/internal/models"

	"go.uber.org/zap"
)

// BatteryEvaluator 低电量评估器
// 电量低于阈值时产生 battery 报警；同一 subject 在冷却窗口（默认 2 小时）
// 内按类型整体去重（不带额外去重键）
type BatteryEvaluator struct {
	config *config.Config
	sink   AlertSink
	logger *zap.Logger
}

// NewBatteryEvaluator 创建低电量评估器
func NewBatteryEvaluator(cfg *config.Config, sink AlertSink, logger *zap.Logger) *BatteryEvaluator {
	return &BatteryEvaluator{
		config: cfg,
		sink:   sink,
		logger: logger,
	}
}

// Check 评估电量水平
// 优先级分档：<=5% critical，<=10% high，其余 medium
func (e *BatteryEvaluator) Check(ctx context.Context, childUserID string, batteryLevel int, at time.Time) error {
	threshold := e.config.Battery.AlertThreshold
	if batteryLevel > threshold {
		return nil
	}

	var priority models.AlertPriority
	switch {
	case batteryLevel <= e.config.Battery.CriticalLevel:
		priority = models.PriorityCritical
	case batteryLevel <= e.config.Battery.HighLevel:
		priority = models.PriorityHigh
	default:
		priority = models.PriorityMedium
	}

	outcome, err := e.sink.Dispatch(ctx, dispatcher.Intent{
		ChildUserID: childUserID,
		Type:        models.AlertTypeBattery,
		Priority:    priority,
		Title:       "Low Battery Alert",
		Message:     fmt.Sprintf("Child's device battery is at %d%%", batteryLevel),
		Payload: models.BatteryPayload{
			BatteryLevel:             batteryLevel,
			AlertThreshold:           threshold,
			LocationTrackingAffected: batteryLevel <= e.config.Battery.HighLevel,
		},
		Cooldown:    time.Duration(e.config.Battery.CooldownMinutes) * time.Minute,
		TriggeredAt: at,
	})
	if err != nil {
		return err
	}

	if outcome.Suppressed {
		e.logger.Debug("Battery alert suppressed",
			zap.String("child_user_id", childUserID),
			zap.Int("battery_level", batteryLevel),
		)
	}

	return nil
}
