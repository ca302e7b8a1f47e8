package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/infrastructure/persistence/sqlite"
)

// SequenceRepository implements port.SequenceRepository with one counter row per day
type SequenceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db *sql.DB, logger *zap.Logger) port.SequenceRepository {
	return &SequenceRepository{
		db:     db,
		logger: logger,
	}
}

// Next increments the day's counter in a single statement and returns the new value
func (r *SequenceRepository) Next(ctx context.Context, day string) (int64, error) {
	query := `
		INSERT INTO app_no_sequence (day, value) VALUES (?, 1)
		ON CONFLICT(day) DO UPDATE SET value = value + 1
		RETURNING value
	`

	var value int64
	if err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, day).Scan(&value); err != nil {
		r.logger.Error("Failed to advance sequence",
			zap.String("day", day),
			zap.Error(err))
		return 0, fmt.Errorf("failed to advance sequence: %w", err)
	}

	return value, nil
}

// Verify interface compliance
var _ port.SequenceRepository = (*SequenceRepository)(nil)
