package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"famguard-alert/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// AlertRepository 报警记录仓库
type AlertRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertRepository 创建报警记录仓库
func NewAlertRepository(db *sql.DB, logger *zap.Logger) *AlertRepository {
	return &AlertRepository{
		db:     db,
		logger: logger,
	}
}

// AlertFilters 报警查询过滤条件
type AlertFilters struct {
	Type     *models.AlertType     // 报警类型
	Priority *models.AlertPriority // 优先级
	IsRead   *bool                 // 已读状态
	Since    *time.Time            // triggered_at >= Since
}

// alertColumns 查询列（与 scanAlert 保持一致）
const alertColumns = `
	alert_id,
	child_user_id,
	type,
	priority,
	title,
	message,
	data,
	is_read,
	triggered_at,
	created_at
`

func scanAlert(row interface {
	Scan(dest ...interface{}) error
}) (*models.Alert, error) {
	var alert models.Alert
	err := row.Scan(
		&alert.AlertID,
		&alert.ChildUserID,
		&alert.Type,
		&alert.Priority,
		&alert.Title,
		&alert.Message,
		&alert.Data,
		&alert.IsRead,
		&alert.TriggeredAt,
		&alert.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// Create 插入报警记录
func (r *AlertRepository) Create(ctx context.Context, alert *models.Alert) error {
	if alert.AlertID == "" {
		return fmt.Errorf("alert_id is required")
	}
	if alert.ChildUserID == "" {
		return fmt.Errorf("child_user_id is required")
	}

	query := `
		INSERT INTO alerts (
			alert_id,
			child_user_id,
			type,
			priority,
			title,
			message,
			data,
			is_read,
			triggered_at,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		alert.AlertID,
		alert.ChildUserID,
		alert.Type,
		alert.Priority,
		alert.Title,
		alert.Message,
		alert.Data,
		alert.IsRead,
		alert.TriggeredAt,
		alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	return nil
}

// RecentAlert 查询冷却窗口内最近一条同条件报警（用于去重检查）
// dedupKey 非空时要求 data 列包含这些键值（JSONB 包含判断），
// 例如 {"geofence_id": "..."} 或 {"keyword": "...", "app_package": "..."}
func (r *AlertRepository) RecentAlert(ctx context.Context, childUserID string, alertType models.AlertType, dedupKey map[string]interface{}, since time.Time) (*models.Alert, error) {
	if childUserID == "" {
		return nil, fmt.Errorf("child_user_id is required")
	}
	if alertType == "" {
		return nil, fmt.Errorf("type is required")
	}

	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE child_user_id = $1
		  AND type = $2
		  AND triggered_at >= $3
	`
	args := []interface{}{childUserID, alertType, since}

	if len(dedupKey) > 0 {
		keyJSON, err := json.Marshal(dedupKey)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal dedup key: %w", err)
		}
		query += fmt.Sprintf("  AND data @> $%d::jsonb\n", len(args)+1)
		args = append(args, string(keyJSON))
	}

	query += `
		ORDER BY triggered_at DESC
		LIMIT 1
	`

	alert, err := scanAlert(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			// 窗口内没有同条件报警，不是错误
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query recent alert: %w", err)
	}

	return alert, nil
}

// ============================================
// 查询与已读管理
// ============================================

// List 查询报警列表（按 triggered_at 倒序）
// limit <= 0 时默认 20，上限 100
func (r *AlertRepository) List(ctx context.Context, childUserID string, filters AlertFilters, limit int) ([]*models.Alert, error) {
	if childUserID == "" {
		return nil, fmt.Errorf("child_user_id is required")
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	var conditions []string
	args := []interface{}{childUserID}
	conditions = append(conditions, "child_user_id = $1")

	if filters.Type != nil {
		args = append(args, *filters.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filters.Priority != nil {
		args = append(args, *filters.Priority)
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)))
	}
	if filters.IsRead != nil {
		args = append(args, *filters.IsRead)
		conditions = append(conditions, fmt.Sprintf("is_read = $%d", len(args)))
	}
	if filters.Since != nil {
		args = append(args, *filters.Since)
		conditions = append(conditions, fmt.Sprintf("triggered_at >= $%d", len(args)))
	}

	args = append(args, limit)
	query := fmt.Sprintf(`
		SELECT %s
		FROM alerts
		WHERE %s
		ORDER BY triggered_at DESC
		LIMIT $%d
	`, alertColumns, strings.Join(conditions, "\n\t\t  AND "), len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}

	return alerts, nil
}

// MarkRead 批量标记已读，返回实际更新的行数
// 仅更新未读记录；报警除已读位外不可修改
func (r *AlertRepository) MarkRead(ctx context.Context, childUserID string, alertIDs []string) (int64, error) {
	if childUserID == "" {
		return 0, fmt.Errorf("child_user_id is required")
	}
	if len(alertIDs) == 0 {
		return 0, nil
	}

	query := `
		UPDATE alerts
		SET is_read = true
		WHERE child_user_id = $1
		  AND alert_id = ANY($2)
		  AND is_read = false
	`

	result, err := r.db.ExecContext(ctx, query, childUserID, pq.Array(alertIDs))
	if err != nil {
		return 0, fmt.Errorf("failed to mark alerts read: %w", err)
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return updated, nil
}

// UnreadCount 查询未读报警总数及按优先级分布
func (r *AlertRepository) UnreadCount(ctx context.Context, childUserID string) (int, map[models.AlertPriority]int, error) {
	if childUserID == "" {
		return 0, nil, fmt.Errorf("child_user_id is required")
	}

	query := `
		SELECT priority, COUNT(*)
		FROM alerts
		WHERE child_user_id = $1
		  AND is_read = false
		GROUP BY priority
	`

	rows, err := r.db.QueryContext(ctx, query, childUserID)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to query unread count: %w", err)
	}
	defer rows.Close()

	total := 0
	byPriority := map[models.AlertPriority]int{
		models.PriorityCritical: 0,
		models.PriorityHigh:     0,
		models.PriorityMedium:   0,
		models.PriorityLow:      0,
	}
	for rows.Next() {
		var priority models.AlertPriority
		var count int
		if err := rows.Scan(&priority, &count); err != nil {
			return 0, nil, fmt.Errorf("failed to scan unread count: %w", err)
		}
		byPriority[priority] = count
		total += count
	}

	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("failed to iterate unread counts: %w", err)
	}

	return total, byPriority, nil
}
