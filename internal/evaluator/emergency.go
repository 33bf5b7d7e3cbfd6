package evaluator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"famguard-alert/internal/dispatcher"
	"famguard-alert/internal/geo"
	"famguard-alert/internal/models"

	"go.uber.org/zap"
)

// 紧急求助类型
var validEmergencyTypes = map[string]bool{
	"panic":    true,
	"accident": true,
	"help":     true,
	"medical":  true,
}

// EmergencyEvaluator 紧急求助评估器
// SOS 事件总是 critical 且从不去重——每次按键都必须送达监护人
type EmergencyEvaluator struct {
	sink   AlertSink
	logger *zap.Logger
}

// NewEmergencyEvaluator 创建紧急求助评估器
func NewEmergencyEvaluator(sink AlertSink, logger *zap.Logger) *EmergencyEvaluator {
	return &EmergencyEvaluator{
		sink:   sink,
		logger: logger,
	}
}

// HandleSOS 处理一次紧急求助事件
func (e *EmergencyEvaluator) HandleSOS(ctx context.Context, ev models.SOSEvent) error {
	if ev.ChildUserID == "" {
		return models.NewValidationError("child_user_id", "must not be empty")
	}
	if !validEmergencyTypes[ev.EmergencyType] {
		return models.NewValidationError("emergency_type", "must be one of panic, accident, help, medical")
	}
	if err := geo.ValidateCoordinate(ev.Latitude, ev.Longitude); err != nil {
		return err
	}

	occurredAt := ev.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	message := ev.Message
	if message == "" {
		message = "Emergency button pressed by child"
	}

	_, err := e.sink.Dispatch(ctx, dispatcher.Intent{
		ChildUserID: ev.ChildUserID,
		Type:        models.AlertTypeEmergency,
		Priority:    models.PriorityCritical,
		Title:       "Emergency Alert - " + capitalize(ev.EmergencyType),
		Message:     message,
		Payload: models.EmergencyPayload{
			EmergencyType: ev.EmergencyType,
			Location: models.EmergencyLatLon{
				Latitude:  ev.Latitude,
				Longitude: ev.Longitude,
			},
			Timestamp: occurredAt.UTC().Format(time.RFC3339),
		},
		Cooldown:    0, // 紧急求助不去重
		TriggeredAt: occurredAt,
	})
	if err != nil {
		return fmt.Errorf("failed to dispatch emergency alert: %w", err)
	}

	e.logger.Info("Emergency alert dispatched",
		zap.String("child_user_id", ev.ChildUserID),
		zap.String("emergency_type", ev.EmergencyType),
	)

	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
