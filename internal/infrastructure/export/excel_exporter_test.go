package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/domain/entity"
)

func TestExcelExporter_Export(t *testing.T) {
	submitted := time.Date(2025, 1, 2, 9, 0, 0, 0, time.Local)
	decided := submitted.Add(time.Hour)
	approve := entity.ActionApprove
	leaveType := entity.LeaveTypeAnnual
	days := 1.5
	expenseType := entity.ExpenseTypeTravel
	amount := 420.25

	rows := []entity.HistoryView{
		{
			AppNo:         "AP20250102000001",
			Kind:          entity.KindLeave,
			Title:         "请假申请-annual lea...",
			Status:        entity.StatusApproved,
			ApplicantName: "张三",
			DeptName:      "技术部",
			ApproverName:  "技术部经理",
			Action:        &approve,
			Comment:       "同意",
			LeaveType:     &leaveType,
			LeaveDays:     &days,
			SubmitTime:    submitted,
			ApproveTime:   &decided,
			FinishTime:    &decided,
		},
		{
			AppNo:         "AP20250102000002",
			Kind:          entity.KindReimburse,
			Title:         "报销申请-taxi",
			Status:        entity.StatusWithdrawn,
			ApplicantName: "张三",
			ExpenseType:   &expenseType,
			ExpenseAmount: &amount,
			SubmitTime:    submitted,
		},
	}

	exporter := NewExcelExporter(zap.NewNop())
	assert.Equal(t, ".xlsx", exporter.FileExtension())
	assert.Contains(t, exporter.ContentType(), "spreadsheetml")

	var buf bytes.Buffer
	require.NoError(t, exporter.Export(context.Background(), rows, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, headers, got[0])

	leave := got[1]
	assert.Equal(t, "AP20250102000001", leave[0])
	assert.Equal(t, "请假申请", leave[1])
	assert.Equal(t, "APPROVED", leave[3])
	assert.Equal(t, "技术部经理", leave[6])
	assert.Equal(t, "APPROVE", leave[7])
	assert.Equal(t, "年假", leave[9])
	assert.Equal(t, "1.5", leave[10])
	assert.Equal(t, "2025-01-02 09:00:00", leave[13])
	assert.Equal(t, "2025-01-02 10:00:00", leave[14])

	claim := got[2]
	assert.Equal(t, "报销申请", claim[1])
	assert.Equal(t, "WITHDRAWN", claim[3])
	assert.Equal(t, "", claim[7])
	assert.Equal(t, "差旅费", claim[11])
	assert.Equal(t, "420.25", claim[12])
}

func TestExcelExporter_EmptyAndCancelled(t *testing.T) {
	exporter := NewExcelExporter(zap.NewNop())

	var buf bytes.Buffer
	require.NoError(t, exporter.Export(context.Background(), nil, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = exporter.Export(ctx, []entity.HistoryView{{AppNo: "AP1"}}, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}
