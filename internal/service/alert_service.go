package service

import (
	"context"
	"fmt"

	"famguard-alert/internal/models"
	"famguard-alert/internal/repository"

	"go.uber.org/zap"
)

// AlertService 报警查询服务层
// 职责：
// 1. 业务规则验证
// 2. 查询编排（报警列表、已读管理、未读统计）
type AlertService struct {
	alerts *repository.AlertRepository
	logger *zap.Logger
}

// NewAlertService 创建报警查询服务
func NewAlertService(alerts *repository.AlertRepository, logger *zap.Logger) *AlertService {
	return &AlertService{
		alerts: alerts,
		logger: logger,
	}
}

// ListAlerts 查询某个被监护账号的报警列表
// limit <= 0 时默认 20，上限 100（在 repository 层钳制）
func (s *AlertService) ListAlerts(ctx context.Context, childUserID string, filters repository.AlertFilters, limit int) ([]*models.Alert, error) {
	if childUserID == "" {
		return nil, fmt.Errorf("child_user_id is required")
	}

	return s.alerts.List(ctx, childUserID, filters, limit)
}

// MarkRead 批量标记报警已读，返回实际更新的条数
func (s *AlertService) MarkRead(ctx context.Context, childUserID string, alertIDs []string) (int64, error) {
	if childUserID == "" {
		return 0, fmt.Errorf("child_user_id is required")
	}
	if len(alertIDs) == 0 {
		return 0, nil
	}
	if len(alertIDs) > 100 {
		return 0, fmt.Errorf("too many alert ids: %d (max 100)", len(alertIDs))
	}

	updated, err := s.alerts.MarkRead(ctx, childUserID, alertIDs)
	if err != nil {
		return 0, err
	}

	s.logger.Debug("Alerts marked read",
		zap.String("child_user_id", childUserID),
		zap.Int64("updated", updated),
	)

	return updated, nil
}

// UnreadCount 查询未读报警总数及按优先级分布
func (s *AlertService) UnreadCount(ctx context.Context, childUserID string) (int, map[models.AlertPriority]int, error) {
	if childUserID == "" {
		return 0, nil, fmt.Errorf("child_user_id is required")
	}

	return s.alerts.UnreadCount(ctx, childUserID)
}
