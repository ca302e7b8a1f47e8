package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/infrastructure/persistence/sqlite"
)

const userColumns = `u.user_id, u.username, u.real_name, u.dept_id, u.post_id, u.status, u.create_time`

// DirectoryRepository implements port.DirectoryReader over the sys_* tables
type DirectoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDirectoryRepository creates a new directory repository
func NewDirectoryRepository(db *sql.DB, logger *zap.Logger) *DirectoryRepository {
	return &DirectoryRepository{
		db:     db,
		logger: logger,
	}
}

// GetUserByID retrieves a user with its role codes
func (r *DirectoryRepository) GetUserByID(ctx context.Context, id int64) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM sys_user u WHERE u.user_id = ?`

	user, err := r.scanUser(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user by ID",
			zap.Int64("user_id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user.Roles, err = r.rolesOf(ctx, id); err != nil {
		return nil, err
	}
	return user, nil
}

// FindUserByRole returns the lowest-id active user holding roleCode
func (r *DirectoryRepository) FindUserByRole(ctx context.Context, roleCode string) (*entity.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM sys_user u
		JOIN sys_user_role ur ON ur.user_id = u.user_id
		WHERE ur.role_code = ? AND u.status = ?
		ORDER BY u.user_id
		LIMIT 1
	`

	user, err := r.scanUser(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, roleCode, entity.UserStatusActive))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to find user by role",
			zap.String("role_code", roleCode),
			zap.Error(err))
		return nil, fmt.Errorf("failed to find user by role: %w", err)
	}

	if user.Roles, err = r.rolesOf(ctx, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// GetDeptByID retrieves a department
func (r *DirectoryRepository) GetDeptByID(ctx context.Context, id int64) (*entity.Dept, error) {
	var dept entity.Dept
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx,
		`SELECT dept_id, parent_id, dept_name, leader_id, status FROM sys_dept WHERE dept_id = ?`, id,
	).Scan(&dept.ID, &dept.ParentID, &dept.Name, &dept.LeaderID, &dept.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get dept by ID",
			zap.Int64("dept_id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get dept: %w", err)
	}
	return &dept, nil
}

// GetPostByID retrieves a post
func (r *DirectoryRepository) GetPostByID(ctx context.Context, id int64) (*entity.Post, error) {
	var post entity.Post
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx,
		`SELECT post_id, post_code, post_name, status FROM sys_post WHERE post_id = ?`, id,
	).Scan(&post.ID, &post.Code, &post.Name, &post.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get post by ID",
			zap.Int64("post_id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &post, nil
}

func (r *DirectoryRepository) rolesOf(ctx context.Context, userID int64) ([]string, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx,
		`SELECT role_code FROM sys_user_role WHERE user_id = ? ORDER BY role_code`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, code)
	}
	return roles, rows.Err()
}

func (r *DirectoryRepository) scanUser(row scanner) (*entity.User, error) {
	var u entity.User
	if err := row.Scan(&u.ID, &u.Username, &u.RealName, &u.DeptID, &u.PostID, &u.Status, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// Verify interface compliance
var _ port.DirectoryReader = (*DirectoryRepository)(nil)
