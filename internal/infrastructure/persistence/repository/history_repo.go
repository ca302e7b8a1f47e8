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

const historyColumns = `history_id, app_id, task_id, node_name, approver_id, approver_name,
	action, comment, approve_time, next_node, create_time`

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a history entry
func (r *HistoryRepository) Create(ctx context.Context, history *entity.History) error {
	query := `
		INSERT INTO bpm_history (
			app_id, task_id, node_name, approver_id, approver_name,
			action, comment, approve_time, next_node, create_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		history.AppID,
		history.TaskID,
		history.NodeName,
		history.ApproverID,
		history.ApproverName,
		int(history.Action),
		nullString(history.Comment),
		dbTime(history.ApproveTime),
		history.NextNode,
		dbTime(history.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return port.ErrStaleWrite
		}
		r.logger.Error("Failed to create history",
			zap.Int64("app_id", history.AppID),
			zap.Int64("task_id", history.TaskID),
			zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	history.ID = id
	return nil
}

// ListByAppID retrieves all entries of an application, newest decision first
func (r *HistoryRepository) ListByAppID(ctx context.Context, appID int64) ([]*entity.History, error) {
	query := `SELECT ` + historyColumns + ` FROM bpm_history WHERE app_id = ? ORDER BY approve_time DESC, history_id DESC`
	return r.queryList(ctx, query, appID)
}

// GetLatestByAppID retrieves the most recent entry of an application
func (r *HistoryRepository) GetLatestByAppID(ctx context.Context, appID int64) (*entity.History, error) {
	query := `SELECT ` + historyColumns + ` FROM bpm_history WHERE app_id = ? ORDER BY approve_time DESC, history_id DESC LIMIT 1`
	return r.queryOne(ctx, query, appID)
}

// GetLatestByTaskID retrieves the entry written for a task
func (r *HistoryRepository) GetLatestByTaskID(ctx context.Context, taskID int64) (*entity.History, error) {
	query := `SELECT ` + historyColumns + ` FROM bpm_history WHERE task_id = ? ORDER BY approve_time DESC, history_id DESC LIMIT 1`
	return r.queryOne(ctx, query, taskID)
}

// LatestByAppIDs returns the most recent entry of each application
func (r *HistoryRepository) LatestByAppIDs(ctx context.Context, appIDs []int64) (map[int64]*entity.History, error) {
	latest := make(map[int64]*entity.History, len(appIDs))
	if len(appIDs) == 0 {
		return latest, nil
	}

	query := `SELECT ` + historyColumns + ` FROM bpm_history WHERE app_id IN (` + placeholders(len(appIDs)) +
		`) ORDER BY app_id, approve_time DESC, history_id DESC`

	entries, err := r.queryList(ctx, query, int64Args(appIDs)...)
	if err != nil {
		return nil, err
	}

	for _, h := range entries {
		if _, ok := latest[h.AppID]; !ok {
			latest[h.AppID] = h
		}
	}
	return latest, nil
}

func (r *HistoryRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*entity.History, error) {
	history, err := scanHistory(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get history", zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return history, nil
}

func (r *HistoryRepository) queryList(ctx context.Context, query string, args ...interface{}) ([]*entity.History, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query history", zap.Error(err))
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []*entity.History
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		entries = append(entries, h)
	}

	return entries, rows.Err()
}

func scanHistory(row scanner) (*entity.History, error) {
	var h entity.History
	var action int
	var comment sql.NullString

	err := row.Scan(
		&h.ID,
		&h.AppID,
		&h.TaskID,
		&h.NodeName,
		&h.ApproverID,
		&h.ApproverName,
		&action,
		&comment,
		&h.ApproveTime,
		&h.NextNode,
		&h.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	h.Action = entity.Action(action)
	h.Comment = comment.String
	return &h, nil
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
