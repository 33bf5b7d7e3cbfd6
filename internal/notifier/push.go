package notifier

import (
	"context"
	"fmt"
	"time"

	"famguard-alert/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// PushNotifier 通过 HTTP 推送网关转发报警（FCM 中继等）
// 单次尝试，失败由调用方记日志；推送是 fire-and-forget 语义
type PushNotifier struct {
	httpClient *resty.Client
	endpoint   string
	logger     *zap.Logger
}

// NewPushNotifier 创建推送网关客户端
func NewPushNotifier(endpoint, token string, logger *zap.Logger) *PushNotifier {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if token != "" {
		client.SetAuthToken(token)
	}

	return &PushNotifier{
		httpClient: client,
		endpoint:   endpoint,
		logger:     logger,
	}
}

// Publish 向推送网关 POST 报警 JSON
func (n *PushNotifier) Publish(ctx context.Context, alert *models.Alert) error {
	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(alert).
		Post(n.endpoint)
	if err != nil {
		return fmt.Errorf("failed to post alert to push gateway: %w", err)
	}

	if resp.IsError() {
		return fmt.Errorf("push gateway returned status %d", resp.StatusCode())
	}

	n.logger.Debug("Alert forwarded to push gateway",
		zap.String("alert_id", alert.AlertID),
		zap.Int("status", resp.StatusCode()),
	)

	return nil
}
