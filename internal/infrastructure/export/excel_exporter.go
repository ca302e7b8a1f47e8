package export

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/domain/entity"
)

const (
	// SheetName is the worksheet holding the exported rows
	SheetName = "审批历史"

	timeLayout = "2006-01-02 15:04:05"
)

var headers = []string{
	"申请编号", "申请类型", "标题", "状态", "申请人", "部门",
	"审批人", "审批结果", "审批意见", "请假类型", "请假天数",
	"报销类型", "报销金额", "提交时间", "审批时间", "完成时间",
}

// ExcelExporter renders history rows as an xlsx workbook
type ExcelExporter struct {
	logger *zap.Logger
}

// NewExcelExporter creates a new xlsx history exporter
func NewExcelExporter(logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{logger: logger}
}

// ContentType implements port.HistoryExporter
func (e *ExcelExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// FileExtension implements port.HistoryExporter
func (e *ExcelExporter) FileExtension() string {
	return ".xlsx"
}

// Export writes a header row followed by one row per history entry
func (e *ExcelExporter) Export(ctx context.Context, rows []entity.HistoryView, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	defaultSheet := f.GetSheetName(0)
	if err := f.SetSheetName(defaultSheet, SheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerRow := make([]interface{}, len(headers))
	for i, h := range headers {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &headerRow); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", i+2, err)
		}
		values := rowValues(row)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		e.logger.Warn("Failed to freeze header row", zap.Error(err))
	}

	if _, err := f.WriteTo(w); err != nil {
		e.logger.Error("Failed to write workbook", zap.Error(err))
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("History workbook written", zap.Int("rows", len(rows)))
	return nil
}

func rowValues(row entity.HistoryView) []interface{} {
	values := []interface{}{
		row.AppNo,
		row.Kind.Label(),
		row.Title,
		row.Status.String(),
		row.ApplicantName,
		row.DeptName,
		row.ApproverName,
		"",
		row.Comment,
		"",
		"",
		"",
		"",
		row.SubmitTime.Format(timeLayout),
		"",
		"",
	}

	if row.Action != nil {
		values[7] = row.Action.String()
	}
	if row.LeaveType != nil {
		values[9] = entity.LeaveTypeName(*row.LeaveType)
	}
	if row.LeaveDays != nil {
		values[10] = *row.LeaveDays
	}
	if row.ExpenseType != nil {
		values[11] = entity.ExpenseTypeName(*row.ExpenseType)
	}
	if row.ExpenseAmount != nil {
		values[12] = *row.ExpenseAmount
	}
	if row.ApproveTime != nil {
		values[14] = row.ApproveTime.Format(timeLayout)
	}
	if row.FinishTime != nil {
		values[15] = row.FinishTime.Format(timeLayout)
	}

	return values
}
