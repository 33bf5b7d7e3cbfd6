package filter

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"famguard-alert/internal/models"

	"go.uber.org/zap"
)

// SettingsSource 过滤设置来源（由设置缓存实现）
// 账号没有设置时返回 nil, nil
type SettingsSource interface {
	SettingsFor(ctx context.Context, childUserID string) (*models.FilterSettings, error)
}

// 内容预览脱敏规则
var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	cardNumberPattern = regexp.MustCompile(`\b\d{4}[\s\-]?\d{4}[\s\-]?\d{4}[\s\-]?\d{4}\b`)
	phonePattern      = regexp.MustCompile(`\b\d{3}[\s\-]?\d{3}[\s\-]?\d{4}\b`)
	emailPattern      = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
)

// Engine 通知内容过滤引擎
// 决定通知是否转发（应用监控过滤）以及是否命中违禁关键词
type Engine struct {
	settings      SettingsSource
	previewMaxLen int
	logger        *zap.Logger
}

// NewEngine 创建内容过滤引擎
func NewEngine(settings SettingsSource, previewMaxLen int, logger *zap.Logger) *Engine {
	if previewMaxLen <= 0 {
		previewMaxLen = 150
	}
	return &Engine{
		settings:      settings,
		previewMaxLen: previewMaxLen,
		logger:        logger,
	}
}

// ShouldFilter 判定通知是否应被过滤（不转发给监护端）
// 应用有显式监控配置时，过滤结论是监控标志的取反；
// 未配置/未知应用默认放行（不过滤）
func (e *Engine) ShouldFilter(ctx context.Context, childUserID, appPackage, content string) (bool, error) {
	settings, err := e.settings.SettingsFor(ctx, childUserID)
	if err != nil {
		return false, fmt.Errorf("failed to get filter settings: %w", err)
	}

	if settings == nil {
		// 没有设置：默认放行所有通知
		return false, nil
	}

	if monitored, ok := settings.NotificationFilters[appPackage]; ok {
		// 应用被显式配置：监控为 false 时过滤
		return !monitored, nil
	}

	// 未配置的应用默认放行
	return false, nil
}

// CheckBlockedContent 检查通知内容是否命中违禁关键词
// 标题+正文小写化后按配置顺序扫描：先尝试整词匹配，再退化为子串匹配，
// 首个命中的关键词胜出。未命中返回空串
func (e *Engine) CheckBlockedContent(ctx context.Context, childUserID, title, body string) (string, error) {
	settings, err := e.settings.SettingsFor(ctx, childUserID)
	if err != nil {
		return "", fmt.Errorf("failed to get filter settings: %w", err)
	}

	if settings == nil || len(settings.BlockedKeywords) == 0 {
		return "", nil
	}

	fullContent := strings.ToLower(strings.TrimSpace(title + " " + body))

	for _, keyword := range settings.BlockedKeywords {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}

		keywordLower := strings.ToLower(keyword)

		// 先做整词匹配
		wordPattern, err := regexp.Compile(`\b` + regexp.QuoteMeta(keywordLower) + `\b`)
		if err == nil && wordPattern.MatchString(fullContent) {
			return keyword, nil
		}

		// 非整词字符退化为子串匹配
		if strings.Contains(fullContent, keywordLower) {
			return keyword, nil
		}
	}

	return "", nil
}

// ClassifySeverity 根据关键词和内容计算报警严重度
// 关键词或内容包含 critical 集合词条时为 critical，包含 high 集合词条为 high，
// 否则 medium
func ClassifySeverity(keyword, content string) string {
	keywordLower := strings.ToLower(keyword)
	contentLower := strings.ToLower(content)

	for _, critical := range criticalKeywords {
		if strings.Contains(keywordLower, critical) || strings.Contains(contentLower, critical) {
			return SeverityCritical
		}
	}

	for _, highRisk := range highRiskKeywords {
		if strings.Contains(keywordLower, highRisk) || strings.Contains(contentLower, highRisk) {
			return SeverityHigh
		}
	}

	return SeverityMedium
}

// SeverityToPriority 严重度到报警优先级的映射
func SeverityToPriority(severity string) models.AlertPriority {
	switch severity {
	case SeverityCritical:
		return models.PriorityCritical
	case SeverityHigh:
		return models.PriorityHigh
	case SeverityMedium:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

// SafeContentPreview 生成脱敏的内容预览
// 去除标签，卡号/电话/邮箱替换为占位符，截断到最大长度
func (e *Engine) SafeContentPreview(content string) string {
	preview := htmlTagPattern.ReplaceAllString(content, "")
	preview = cardNumberPattern.ReplaceAllString(preview, "[CARD]")
	preview = phonePattern.ReplaceAllString(preview, "[PHONE]")
	preview = emailPattern.ReplaceAllString(preview, "[EMAIL]")

	if len(preview) > e.previewMaxLen {
		return preview[:e.previewMaxLen] + "..."
	}
	return preview
}
