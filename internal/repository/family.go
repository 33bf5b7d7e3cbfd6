package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrNotFound 记录不存在
// 未知的 subject/family 对围栏检查而言是静默 no-op，调用方用 errors.Is 判断
var ErrNotFound = errors.New("not found")

// 家庭成员角色
const (
	RoleGuardian  = "parent"
	RoleMonitored = "child"
)

// FamilyRepository 家庭成员仓库
type FamilyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFamilyRepository 创建家庭成员仓库
func NewFamilyRepository(db *sql.DB, logger *zap.Logger) *FamilyRepository {
	return &FamilyRepository{
		db:     db,
		logger: logger,
	}
}

// FamilyOf 查询用户所属的家庭ID
func (r *FamilyRepository) FamilyOf(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user_id is required")
	}

	query := `
		SELECT family_id
		FROM family_members
		WHERE user_id = $1
		LIMIT 1
	`

	var familyID string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&familyID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to query family member: %w", err)
	}

	return familyID, nil
}

// Role 查询用户在家庭中的角色（parent 或 child）
func (r *FamilyRepository) Role(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user_id is required")
	}

	query := `
		SELECT role
		FROM family_members
		WHERE user_id = $1
		LIMIT 1
	`

	var role string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&role)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to query member role: %w", err)
	}

	return role, nil
}
