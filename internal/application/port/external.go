package port

import (
	"context"
	"io"

	"github.com/garyjia/approval-workflow/internal/domain/entity"
)

// HistoryExporter renders history rows into a downloadable document
type HistoryExporter interface {
	Export(ctx context.Context, rows []entity.HistoryView, w io.Writer) error
	ContentType() string
	FileExtension() string
}
