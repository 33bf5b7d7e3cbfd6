package service

import (
	"context"
	"fmt"
	"time"

	"famguard-alert/internal/config"
	"famguard-alert/internal/dispatcher"
	"famguard-alert/internal/evaluator"
	"famguard-alert/internal/filter"
	"famguard-alert/internal/models"

	"go.uber.org/zap"
)

// NotificationService 通知镜像事件服务
// 业务编排：应用监控过滤 -> 违禁关键词扫描 -> 内容报警
type NotificationService struct {
	config *config.Config
	engine *filter.Engine
	sink   evaluator.AlertSink
	logger *zap.Logger
}

// NewNotificationService 创建通知事件服务
func NewNotificationService(
	cfg *config.Config,
	engine *filter.Engine,
	sink evaluator.AlertSink,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		config: cfg,
		engine: engine,
		sink:   sink,
		logger: logger,
	}
}

// HandleNotification 处理一次通知镜像事件，返回处理结论
// 内容报警创建失败只记日志——通知处理本身不能因此失败
func (s *NotificationService) HandleNotification(ctx context.Context, ev models.NotificationEvent) (*models.NotificationVerdict, error) {
	if ev.ChildUserID == "" {
		return nil, models.NewValidationError("child_user_id", "must not be empty")
	}
	if ev.AppPackage == "" {
		return nil, models.NewValidationError("app_package", "must not be empty")
	}

	filtered, err := s.engine.ShouldFilter(ctx, ev.ChildUserID, ev.AppPackage, ev.Title+" "+ev.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate notification filter: %w", err)
	}
	if filtered {
		s.logger.Debug("Notification filtered - app not monitored",
			zap.String("child_user_id", ev.ChildUserID),
			zap.String("app_package", ev.AppPackage),
		)
		return &models.NotificationVerdict{Relayed: false}, nil
	}

	keyword, err := s.engine.CheckBlockedContent(ctx, ev.ChildUserID, ev.Title, ev.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to check blocked content: %w", err)
	}

	if keyword != "" {
		s.triggerContentAlert(ctx, ev, keyword)
	}

	return &models.NotificationVerdict{
		Relayed: true,
		Flagged: keyword != "",
		Keyword: keyword,
	}, nil
}

// triggerContentAlert 命中违禁关键词时创建内容报警
// 去重键为 (app_package, keyword)，冷却窗口默认 10 分钟
func (s *NotificationService) triggerContentAlert(ctx context.Context, ev models.NotificationEvent, keyword string) {
	now := time.Now()
	severity := filter.ClassifySeverity(keyword, ev.Content)

	outcome, err := s.sink.Dispatch(ctx, dispatcher.Intent{
		ChildUserID: ev.ChildUserID,
		Type:        models.AlertTypeContent,
		Priority:    filter.SeverityToPriority(severity),
		Title:       "Blocked Content Detected",
		Message:     fmt.Sprintf("Detected blocked keyword: %s in %s", keyword, ev.AppPackage),
		Payload: models.ContentPayload{
			AppPackage:     ev.AppPackage,
			Keyword:        keyword,
			Title:          ev.Title,
			ContentPreview: s.engine.SafeContentPreview(ev.Content),
			Severity:       severity,
			DetectedAt:     now.UTC().Format(time.RFC3339),
		},
		DedupKey: map[string]interface{}{
			"keyword":     keyword,
			"app_package": ev.AppPackage,
		},
		Cooldown:    time.Duration(s.config.Content.CooldownMinutes) * time.Minute,
		TriggeredAt: now,
	})
	if err != nil {
		s.logger.Error("Failed to create content alert",
			zap.String("child_user_id", ev.ChildUserID),
			zap.String("app_package", ev.AppPackage),
			zap.String("keyword", keyword),
			zap.Error(err),
		)
		return
	}

	if outcome.Suppressed {
		s.logger.Debug("Content alert suppressed",
			zap.String("child_user_id", ev.ChildUserID),
			zap.String("app_package", ev.AppPackage),
			zap.String("keyword", keyword),
		)
	}
}
