package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/infrastructure/persistence/sqlite"
)

const applicationColumns = `app_id, app_no, app_type, title, applicant_id, dept_id, status,
	current_node, node_index, submit_time, finish_time, del_flag, create_time, update_time`

// ApplicationRepository implements port.ApplicationRepository
type ApplicationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApplicationRepository creates a new application repository
func NewApplicationRepository(db *sql.DB, logger *zap.Logger) port.ApplicationRepository {
	return &ApplicationRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new application
func (r *ApplicationRepository) Create(ctx context.Context, app *entity.Application) error {
	query := `
		INSERT INTO bpm_application (
			app_no, app_type, title, applicant_id, dept_id, status,
			current_node, node_index, submit_time, finish_time, del_flag, create_time, update_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		app.AppNo,
		string(app.Kind),
		app.Title,
		app.ApplicantID,
		app.DeptID,
		int(app.Status),
		nullString(app.CurrentNode),
		app.NodeIndex,
		dbTime(app.SubmitTime),
		nullTime(app.FinishTime),
		app.DelFlag,
		dbTime(app.CreatedAt),
		dbTime(app.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create application",
			zap.String("app_no", app.AppNo),
			zap.Error(err))
		return fmt.Errorf("failed to create application: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	app.ID = id
	return nil
}

// GetByID retrieves a live application by its ID
func (r *ApplicationRepository) GetByID(ctx context.Context, id int64) (*entity.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM bpm_application WHERE app_id = ? AND del_flag = 0`

	app, err := scanApplication(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get application by ID",
			zap.Int64("app_id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get application: %w", err)
	}

	return app, nil
}

// Update writes the mutable workflow columns if the stored status still equals expected
func (r *ApplicationRepository) Update(ctx context.Context, app *entity.Application, expected entity.ApplicationStatus) error {
	query := `
		UPDATE bpm_application
		SET status = ?, current_node = ?, node_index = ?, finish_time = ?, update_time = ?
		WHERE app_id = ? AND status = ? AND del_flag = 0
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		int(app.Status),
		nullString(app.CurrentNode),
		app.NodeIndex,
		nullTime(app.FinishTime),
		dbTime(app.UpdatedAt),
		app.ID,
		int(expected),
	)
	if err != nil {
		r.logger.Error("Failed to update application",
			zap.Int64("app_id", app.ID),
			zap.Error(err))
		return fmt.Errorf("failed to update application: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return port.ErrStaleWrite
	}

	return nil
}

// Query returns live applications matching filter, newest submission first
func (r *ApplicationRepository) Query(ctx context.Context, filter port.ApplicationFilter) ([]*entity.Application, error) {
	where, args := applicationWhere(filter)
	query := `SELECT ` + applicationColumns + ` FROM bpm_application` + where +
		` ORDER BY submit_time DESC, app_id DESC LIMIT ? OFFSET ?`
	args = append(args, sqliteLimit(filter.Limit), filter.Offset)

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query applications", zap.Error(err))
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}
	defer rows.Close()

	var apps []*entity.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, app)
	}

	return apps, rows.Err()
}

// Count returns the number of live applications matching filter; paging fields are ignored
func (r *ApplicationRepository) Count(ctx context.Context, filter port.ApplicationFilter) (int64, error) {
	where, args := applicationWhere(filter)
	query := `SELECT COUNT(*) FROM bpm_application` + where

	var count int64
	if err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		r.logger.Error("Failed to count applications", zap.Error(err))
		return 0, fmt.Errorf("failed to count applications: %w", err)
	}

	return count, nil
}

func applicationWhere(filter port.ApplicationFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if !filter.IncludeDeleted {
		conds = append(conds, "del_flag = 0")
	}

	if filter.ApplicantID > 0 {
		conds = append(conds, "applicant_id = ?")
		args = append(args, filter.ApplicantID)
	}
	if filter.Kind != "" {
		conds = append(conds, "app_type = ?")
		args = append(args, string(filter.Kind))
	}
	if len(filter.Statuses) > 0 {
		conds = append(conds, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, s := range filter.Statuses {
			args = append(args, int(s))
		}
	}
	if filter.AppNoLike != "" {
		conds = append(conds, "app_no LIKE ?")
		args = append(args, "%"+filter.AppNoLike+"%")
	}
	if filter.SubmitFrom != nil {
		conds = append(conds, "submit_time >= ?")
		args = append(args, dbTime(*filter.SubmitFrom))
	}
	if filter.SubmitTo != nil {
		conds = append(conds, "submit_time <= ?")
		args = append(args, dbTime(*filter.SubmitTo))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanApplication(row scanner) (*entity.Application, error) {
	var app entity.Application
	var kind string
	var status int
	var currentNode sql.NullString
	var finishTime sql.NullTime

	err := row.Scan(
		&app.ID,
		&app.AppNo,
		&kind,
		&app.Title,
		&app.ApplicantID,
		&app.DeptID,
		&status,
		&currentNode,
		&app.NodeIndex,
		&app.SubmitTime,
		&finishTime,
		&app.DelFlag,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	app.Kind = entity.Kind(kind)
	app.Status = entity.ApplicationStatus(status)
	app.CurrentNode = currentNode.String
	app.FinishTime = timePtr(finishTime)
	return &app, nil
}

// Verify interface compliance
var _ port.ApplicationRepository = (*ApplicationRepository)(nil)
