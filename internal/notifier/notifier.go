package notifier

import (
	"context"

	"famguard-alert/internal/models"

	"go.uber.org/zap"
)

// Notifier 报警推送接口
type Notifier interface {
	Publish(ctx context.Context, alert *models.Alert) error
}

// Fanout 依次调用多个 Notifier
// 单个通道失败不影响其余通道，最后返回第一个错误
type Fanout struct {
	targets []Notifier
	logger  *zap.Logger
}

// NewFanout 创建多通道推送
func NewFanout(logger *zap.Logger, targets ...Notifier) *Fanout {
	return &Fanout{
		targets: targets,
		logger:  logger,
	}
}

// Publish 推送报警到所有通道
func (f *Fanout) Publish(ctx context.Context, alert *models.Alert) error {
	var firstErr error
	for _, target := range f.targets {
		if err := target.Publish(ctx, alert); err != nil {
			f.logger.Error("Notifier channel failed",
				zap.String("alert_id", alert.AlertID),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
