package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"famguard-alert/internal/models"
	"famguard-alert/pkg/mqtt"

	"go.uber.org/zap"
)

// MQTTNotifier 通过 MQTT 广播报警给监护端
// 主题：<prefix>/<child_user_id>/alerts
type MQTTNotifier struct {
	client      *mqtt.Client
	topicPrefix string
	qos         byte
	logger      *zap.Logger
}

// NewMQTTNotifier 创建 MQTT 推送器
func NewMQTTNotifier(client *mqtt.Client, topicPrefix string, qos byte, logger *zap.Logger) *MQTTNotifier {
	return &MQTTNotifier{
		client:      client,
		topicPrefix: topicPrefix,
		qos:         qos,
		logger:      logger,
	}
}

// Publish 发布报警消息
func (n *MQTTNotifier) Publish(ctx context.Context, alert *models.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/alerts", n.topicPrefix, alert.ChildUserID)
	if err := n.client.Publish(topic, n.qos, false, payload); err != nil {
		return err
	}

	n.logger.Debug("Alert broadcast via MQTT",
		zap.String("alert_id", alert.AlertID),
		zap.String("topic", topic),
	)

	return nil
}
