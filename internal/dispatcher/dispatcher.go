package dispatcher

import (
	"context"
	"fmt"
	"time"

	"famguard-alert/internal/dedup"
	"famguard-alert/internal/models"

	"go.uber.org/zap"
)

// AlertStore 报警持久化（由 repository 实现）
type AlertStore interface {
	Create(ctx context.Context, alert *models.Alert) error
}

// Notifier 报警推送（fire-and-forget：失败记日志，不阻断报警创建）
type Notifier interface {
	Publish(ctx context.Context, alert *models.Alert) error
}

// Intent 一次报警意图（评估器的输出）
type Intent struct {
	ChildUserID string
	Type        models.AlertType
	Priority    models.AlertPriority
	Title       string
	Message     string
	Payload     interface{}            // 类型化载荷，序列化进 data 列
	DedupKey    map[string]interface{} // 去重键；nil 表示按类型整体去重
	Cooldown    time.Duration          // 冷却窗口；0 表示不去重（如紧急求助）
	TriggeredAt time.Time              // 评估时间
}

// Outcome 派发结果
// 被抑制的报警不是错误，通过 Suppressed 标志观察
type Outcome struct {
	Suppressed bool
	Alert      *models.Alert // Suppressed 为 true 时为 nil
}

// Dispatcher 报警派发器
// 流程：subject 串行化 -> 去重检查 -> 构建 -> 落库 -> 推送
type Dispatcher struct {
	dedup    *dedup.Deduplicator
	store    AlertStore
	notifier Notifier
	logger   *zap.Logger
}

// NewDispatcher 创建报警派发器
func NewDispatcher(
	dedup *dedup.Deduplicator,
	store AlertStore,
	notifier Notifier,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		dedup:    dedup,
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// Dispatch 派发一次报警意图
// 去重检查与创建在 subject 锁内完成，同一 subject 的并发意图
// 在冷却窗口内只会产生一条报警
func (d *Dispatcher) Dispatch(ctx context.Context, intent Intent) (Outcome, error) {
	if intent.ChildUserID == "" {
		return Outcome{}, fmt.Errorf("child_user_id is required")
	}
	if intent.Type == "" {
		return Outcome{}, fmt.Errorf("type is required")
	}

	unlock := d.dedup.LockSubject(intent.ChildUserID)
	defer unlock()

	if intent.Cooldown > 0 {
		suppressed, err := d.dedup.ShouldSuppress(ctx, intent.ChildUserID, intent.Type, intent.DedupKey, intent.Cooldown)
		if err != nil {
			return Outcome{}, err
		}
		if suppressed {
			return Outcome{Suppressed: true}, nil
		}
	}

	alert, err := BuildAlert(
		intent.ChildUserID,
		intent.Type,
		intent.Priority,
		intent.Title,
		intent.Message,
		intent.Payload,
		intent.TriggeredAt,
	)
	if err != nil {
		return Outcome{}, err
	}

	if err := d.store.Create(ctx, alert); err != nil {
		return Outcome{}, fmt.Errorf("failed to create alert: %w", err)
	}

	d.logger.Info("Alert created",
		zap.String("alert_id", alert.AlertID),
		zap.String("child_user_id", alert.ChildUserID),
		zap.String("type", string(alert.Type)),
		zap.String("priority", string(alert.Priority)),
	)

	// 推送失败不影响报警创建
	if d.notifier != nil {
		if err := d.notifier.Publish(ctx, alert); err != nil {
			d.logger.Error("Failed to publish alert",
				zap.String("alert_id", alert.AlertID),
				zap.Error(err),
			)
		}
	}

	return Outcome{Alert: alert}, nil
}
