package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"famguard-alert/internal/models"

	"go.uber.org/zap"
)

// AlertLookup 最近报警查询（由 repository 实现）
type AlertLookup interface {
	RecentAlert(ctx context.Context, childUserID string, alertType models.AlertType, dedupKey map[string]interface{}, since time.Time) (*models.Alert, error)
}

// Deduplicator 报警去重器
// 判定同一逻辑条件（subject + 类型 + 去重键）在冷却窗口内是否已有报警。
// check-then-create 本身不是原子的：同一 subject 的并发事件可能同时通过检查。
// 这里用按 subject 的互斥锁把"检查 + 创建"串行化，保证单实例内
// 每个冷却窗口至多产生一条报警。
type Deduplicator struct {
	store  AlertLookup
	logger *zap.Logger

	mu       sync.Mutex
	subjects map[string]*sync.Mutex
}

// NewDeduplicator 创建去重器
func NewDeduplicator(store AlertLookup, logger *zap.Logger) *Deduplicator {
	return &Deduplicator{
		store:    store,
		logger:   logger,
		subjects: make(map[string]*sync.Mutex),
	}
}

// LockSubject 获取某个 subject 的串行化锁，返回解锁函数
// 调用方必须在"去重检查 + 报警创建"整个序列期间持有锁
func (d *Deduplicator) LockSubject(childUserID string) func() {
	d.mu.Lock()
	lock, ok := d.subjects[childUserID]
	if !ok {
		lock = &sync.Mutex{}
		d.subjects[childUserID] = lock
	}
	d.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// ShouldSuppress 判定是否应抑制报警
// 冷却窗口内已存在同 (subject, 类型, 去重键) 的报警时返回 true。
// 抑制不是错误，是正常的 no-op 结果；查询失败向调用方传播。
func (d *Deduplicator) ShouldSuppress(ctx context.Context, childUserID string, alertType models.AlertType, dedupKey map[string]interface{}, cooldown time.Duration) (bool, error) {
	if cooldown <= 0 {
		return false, nil
	}

	since := time.Now().Add(-cooldown)
	recent, err := d.store.RecentAlert(ctx, childUserID, alertType, dedupKey, since)
	if err != nil {
		return false, fmt.Errorf("failed to check recent alert: %w", err)
	}

	if recent != nil {
		d.logger.Debug("Alert suppressed by cooldown",
			zap.String("child_user_id", childUserID),
			zap.String("type", string(alertType)),
			zap.String("recent_alert_id", recent.AlertID),
			zap.Duration("cooldown", cooldown),
		)
		return true, nil
	}

	return false, nil
}
