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

const (
	leaveColumns     = `leave_id, app_id, leave_type, start_time, end_time, days, reason, attachment, create_time`
	reimburseColumns = `reimburse_id, app_id, expense_type, amount, reason, invoice_attachment, occur_date, create_time`
)

// DetailRepository implements port.DetailRepository over one table per kind
type DetailRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDetailRepository creates a new detail repository
func NewDetailRepository(db *sql.DB, logger *zap.Logger) port.DetailRepository {
	return &DetailRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the detail record into its kind's table
func (r *DetailRepository) Create(ctx context.Context, detail entity.Detail) error {
	exec := sqlite.ExecutorFrom(ctx, r.db)

	var (
		result sql.Result
		err    error
	)
	switch d := detail.(type) {
	case *entity.LeaveDetail:
		result, err = exec.ExecContext(ctx, `
			INSERT INTO bpm_leave_application (app_id, leave_type, start_time, end_time, days, reason, attachment, create_time)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			d.AppID, d.LeaveType, dbTime(d.StartTime), dbTime(d.EndTime), d.Days, d.Reason, nullString(d.Attachment), dbTime(d.CreatedAt))
	case *entity.ReimburseDetail:
		result, err = exec.ExecContext(ctx, `
			INSERT INTO bpm_reimburse_application (app_id, expense_type, amount, reason, invoice_attachment, occur_date, create_time)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			d.AppID, d.ExpenseType, d.Amount, d.Reason, nullString(d.InvoiceAttachment), nullTime(d.OccurDate), dbTime(d.CreatedAt))
	default:
		return fmt.Errorf("unsupported detail type %T", detail)
	}
	if err != nil {
		r.logger.Error("Failed to create detail",
			zap.String("kind", detail.Kind().String()),
			zap.Error(err))
		return fmt.Errorf("failed to create %s detail: %w", detail.Kind(), err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	switch d := detail.(type) {
	case *entity.LeaveDetail:
		d.ID = id
	case *entity.ReimburseDetail:
		d.ID = id
	}
	return nil
}

// GetByAppID returns the detail record of an application
func (r *DetailRepository) GetByAppID(ctx context.Context, kind entity.Kind, appID int64) (entity.Detail, error) {
	details, err := r.QueryByAppIDs(ctx, kind, []int64{appID})
	if err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return nil, nil
	}
	return details[0], nil
}

// QueryByAppIDs returns the detail records of the given applications of one kind
func (r *DetailRepository) QueryByAppIDs(ctx context.Context, kind entity.Kind, appIDs []int64) ([]entity.Detail, error) {
	if len(appIDs) == 0 {
		return nil, nil
	}

	var query string
	switch kind {
	case entity.KindLeave:
		query = `SELECT ` + leaveColumns + ` FROM bpm_leave_application WHERE app_id IN (` + placeholders(len(appIDs)) + `)`
	case entity.KindReimburse:
		query = `SELECT ` + reimburseColumns + ` FROM bpm_reimburse_application WHERE app_id IN (` + placeholders(len(appIDs)) + `)`
	default:
		return nil, fmt.Errorf("unsupported detail kind %q", kind)
	}

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, int64Args(appIDs)...)
	if err != nil {
		r.logger.Error("Failed to query details",
			zap.String("kind", kind.String()),
			zap.Int("app_count", len(appIDs)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to query %s details: %w", kind, err)
	}
	defer rows.Close()

	var details []entity.Detail
	for rows.Next() {
		var detail entity.Detail
		if kind == entity.KindLeave {
			detail, err = scanLeave(rows)
		} else {
			detail, err = scanReimburse(rows)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s detail: %w", kind, err)
		}
		details = append(details, detail)
	}

	return details, rows.Err()
}

func scanLeave(row scanner) (*entity.LeaveDetail, error) {
	var d entity.LeaveDetail
	var attachment sql.NullString
	if err := row.Scan(&d.ID, &d.AppID, &d.LeaveType, &d.StartTime, &d.EndTime, &d.Days, &d.Reason, &attachment, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Attachment = attachment.String
	return &d, nil
}

func scanReimburse(row scanner) (*entity.ReimburseDetail, error) {
	var d entity.ReimburseDetail
	var invoice sql.NullString
	var occurDate sql.NullTime
	if err := row.Scan(&d.ID, &d.AppID, &d.ExpenseType, &d.Amount, &d.Reason, &invoice, &occurDate, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.InvoiceAttachment = invoice.String
	d.OccurDate = timePtr(occurDate)
	return &d, nil
}

// Verify interface compliance
var _ port.DetailRepository = (*DetailRepository)(nil)
