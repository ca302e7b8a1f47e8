package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/infrastructure/persistence/sqlite"
)

const taskColumns = `task_id, app_id, node_name, node_index, assignee_id, assignee_name, status, create_time, finish_time`

// TaskRepository implements port.TaskRepository
type TaskRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sql.DB, logger *zap.Logger) port.TaskRepository {
	return &TaskRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a task; a second OPEN task for the same application violates uq_bpm_task_open
func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) error {
	query := `
		INSERT INTO bpm_task (app_id, node_name, node_index, assignee_id, assignee_name, status, create_time, finish_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		task.AppID,
		task.NodeName,
		task.NodeIndex,
		task.AssigneeID,
		task.AssigneeName,
		int(task.Status),
		dbTime(task.CreatedAt),
		nullTime(task.FinishTime),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return port.ErrStaleWrite
		}
		r.logger.Error("Failed to create task",
			zap.Int64("app_id", task.AppID),
			zap.String("node_name", task.NodeName),
			zap.Error(err))
		return fmt.Errorf("failed to create task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	task.ID = id
	return nil
}

// GetByID retrieves a task by its ID
func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM bpm_task WHERE task_id = ?`

	task, err := scanTask(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get task by ID",
			zap.Int64("task_id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// GetOpenByAppID retrieves the OPEN task of an application
func (r *TaskRepository) GetOpenByAppID(ctx context.Context, appID int64) (*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM bpm_task WHERE app_id = ? AND status = ?`

	task, err := scanTask(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, appID, int(entity.TaskStatusOpen)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get open task",
			zap.Int64("app_id", appID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get open task: %w", err)
	}

	return task, nil
}

// Close marks an OPEN task CLOSED. Zero affected rows means someone else closed it first.
func (r *TaskRepository) Close(ctx context.Context, id int64, finishedAt time.Time) error {
	query := `UPDATE bpm_task SET status = ?, finish_time = ? WHERE task_id = ? AND status = ?`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		int(entity.TaskStatusClosed), dbTime(finishedAt), id, int(entity.TaskStatusOpen))
	if err != nil {
		r.logger.Error("Failed to close task",
			zap.Int64("task_id", id),
			zap.Error(err))
		return fmt.Errorf("failed to close task: %w", err)
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

// DeleteOpenByAppID hard-deletes the OPEN tasks of an application
func (r *TaskRepository) DeleteOpenByAppID(ctx context.Context, appID int64) (int64, error) {
	query := `DELETE FROM bpm_task WHERE app_id = ? AND status = ?`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, appID, int(entity.TaskStatusOpen))
	if err != nil {
		r.logger.Error("Failed to delete open tasks",
			zap.Int64("app_id", appID),
			zap.Error(err))
		return 0, fmt.Errorf("failed to delete open tasks: %w", err)
	}

	return result.RowsAffected()
}

// QueryByAssignee returns an assignee's tasks in one status, newest first
func (r *TaskRepository) QueryByAssignee(ctx context.Context, assigneeID int64, status entity.TaskStatus, limit, offset int) ([]*entity.Task, error) {
	order := "create_time DESC, task_id DESC"
	if status == entity.TaskStatusClosed {
		order = "finish_time DESC, task_id DESC"
	}
	query := `SELECT ` + taskColumns + ` FROM bpm_task WHERE assignee_id = ? AND status = ? ORDER BY ` + order + ` LIMIT ? OFFSET ?`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, assigneeID, int(status), sqliteLimit(limit), offset)
	if err != nil {
		r.logger.Error("Failed to query tasks by assignee",
			zap.Int64("assignee_id", assigneeID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*entity.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// CountByAssignee counts an assignee's tasks in one status
func (r *TaskRepository) CountByAssignee(ctx context.Context, assigneeID int64, status entity.TaskStatus) (int64, error) {
	var count int64
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bpm_task WHERE assignee_id = ? AND status = ?`, assigneeID, int(status)).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count tasks by assignee",
			zap.Int64("assignee_id", assigneeID),
			zap.Error(err))
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

func scanTask(row scanner) (*entity.Task, error) {
	var task entity.Task
	var status int
	var finishTime sql.NullTime

	err := row.Scan(
		&task.ID,
		&task.AppID,
		&task.NodeName,
		&task.NodeIndex,
		&task.AssigneeID,
		&task.AssigneeName,
		&status,
		&task.CreatedAt,
		&finishTime,
	)
	if err != nil {
		return nil, err
	}

	task.Status = entity.TaskStatus(status)
	task.FinishTime = timePtr(finishTime)
	return &task, nil
}

// Verify interface compliance
var _ port.TaskRepository = (*TaskRepository)(nil)
