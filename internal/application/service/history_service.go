package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/apperr"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
)

// HistoryFilter narrows the history view. Nil or empty fields mean "no constraint".
type HistoryFilter struct {
	SubmitFrom *time.Time
	SubmitTo   *time.Time
	// ApproverName matches part of the approver name on the latest decision
	ApproverName string
	// LeaveType keeps only leave applications of that type
	LeaveType *int
	// ExpenseType keeps only reimburse applications of that type
	ExpenseType *int
	// Status defaults to the finished statuses when nil
	Status *entity.ApplicationStatus
	PageRequest
}

// HistoryService builds audit views and per-user statistics
type HistoryService interface {
	// ListHistory pages the applicant's applications joined with their latest decision
	ListHistory(ctx context.Context, applicantID int64, filter HistoryFilter) (*entity.Page[entity.HistoryView], error)

	// Summarize aggregates all of a user's applications
	Summarize(ctx context.Context, userID int64) (*entity.Summary, error)

	// ExportHistory writes every row matching filter, ignoring paging
	ExportHistory(ctx context.Context, applicantID int64, filter HistoryFilter, w io.Writer) error
}

type historyServiceImpl struct {
	appRepo     port.ApplicationRepository
	detailRepo  port.DetailRepository
	historyRepo port.HistoryRepository
	directory   port.DirectoryReader
	exporter    port.HistoryExporter
	logger      Logger
}

// NewHistoryService creates a new HistoryService
func NewHistoryService(
	appRepo port.ApplicationRepository,
	detailRepo port.DetailRepository,
	historyRepo port.HistoryRepository,
	directory port.DirectoryReader,
	exporter port.HistoryExporter,
	logger Logger,
) HistoryService {
	return &historyServiceImpl{
		appRepo:     appRepo,
		detailRepo:  detailRepo,
		historyRepo: historyRepo,
		directory:   directory,
		exporter:    exporter,
		logger:      logger,
	}
}

// ListHistory filters the full result in memory and then cuts the requested page
func (s *historyServiceImpl) ListHistory(ctx context.Context, applicantID int64, filter HistoryFilter) (*entity.Page[entity.HistoryView], error) {
	page := filter.PageRequest.normalize()

	rows, err := s.historyRows(ctx, applicantID, filter)
	if err != nil {
		s.logger.Error("Failed to list history", "error", err, "applicant_id", applicantID)
		return nil, err
	}

	return &entity.Page[entity.HistoryView]{
		Records:  slicePage(rows, page),
		Total:    int64(len(rows)),
		PageNum:  page.PageNum,
		PageSize: page.PageSize,
	}, nil
}

// ExportHistory renders the applicant's filtered history through the configured exporter
func (s *historyServiceImpl) ExportHistory(ctx context.Context, applicantID int64, filter HistoryFilter, w io.Writer) error {
	if s.exporter == nil {
		return apperr.Internal(nil, "history export is not configured")
	}

	rows, err := s.historyRows(ctx, applicantID, filter)
	if err != nil {
		s.logger.Error("Failed to export history", "error", err, "applicant_id", applicantID)
		return err
	}

	if err := s.exporter.Export(ctx, rows, w); err != nil {
		s.logger.Error("Failed to render history export", "error", err, "applicant_id", applicantID)
		return apperr.Internal(err, "failed to export history")
	}

	s.logger.Info("History exported", "applicant_id", applicantID, "rows", len(rows))
	return nil
}

func (s *historyServiceImpl) historyRows(ctx context.Context, applicantID int64, filter HistoryFilter) ([]entity.HistoryView, error) {
	appFilter := port.ApplicationFilter{
		ApplicantID: applicantID,
		Statuses:    entity.FinishedStatuses,
		SubmitFrom:  filter.SubmitFrom,
		SubmitTo:    filter.SubmitTo,
	}
	if filter.Status != nil {
		appFilter.Statuses = []entity.ApplicationStatus{*filter.Status}
	}

	apps, err := s.appRepo.Query(ctx, appFilter)
	if err != nil {
		return nil, apperr.Internal(err, "failed to query applications")
	}
	if len(apps) == 0 {
		return []entity.HistoryView{}, nil
	}

	ids := make([]int64, 0, len(apps))
	for _, app := range apps {
		ids = append(ids, app.ID)
	}

	details, err := s.detailsByApp(ctx, apps)
	if err != nil {
		return nil, err
	}

	latest, err := s.historyRepo.LatestByAppIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load latest decisions")
	}

	names := newNameResolver(s.directory)
	applicantName, err := names.userName(ctx, applicantID)
	if err != nil {
		return nil, err
	}

	rows := make([]entity.HistoryView, 0, len(apps))
	for _, app := range apps {
		detail := details[app.ID]
		last := latest[app.ID]

		if !matchesDetail(filter, app.Kind, detail) {
			continue
		}
		if filter.ApproverName != "" && (last == nil || !strings.Contains(last.ApproverName, filter.ApproverName)) {
			continue
		}

		deptName, err := names.deptName(ctx, app.DeptID)
		if err != nil {
			return nil, err
		}

		row := entity.HistoryView{
			AppID:         app.ID,
			AppNo:         app.AppNo,
			Kind:          app.Kind,
			Title:         app.Title,
			Status:        app.Status,
			ApplicantName: applicantName,
			DeptName:      deptName,
			CurrentNode:   app.CurrentNode,
			SubmitTime:    app.SubmitTime,
			FinishTime:    app.FinishTime,
		}
		if last != nil {
			action := last.Action
			approveTime := last.ApproveTime
			row.ApproverName = last.ApproverName
			row.Action = &action
			row.Comment = last.Comment
			row.ApproveTime = &approveTime
		}
		switch d := detail.(type) {
		case *entity.LeaveDetail:
			row.LeaveType = &d.LeaveType
			row.LeaveDays = &d.Days
		case *entity.ReimburseDetail:
			row.ExpenseType = &d.ExpenseType
			row.ExpenseAmount = &d.Amount
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// matchesDetail applies the type filters. A type filter excludes applications of other kinds.
func matchesDetail(filter HistoryFilter, kind entity.Kind, detail entity.Detail) bool {
	if filter.LeaveType != nil {
		leave, ok := detail.(*entity.LeaveDetail)
		if kind != entity.KindLeave || !ok || leave.LeaveType != *filter.LeaveType {
			return false
		}
	}
	if filter.ExpenseType != nil {
		claim, ok := detail.(*entity.ReimburseDetail)
		if kind != entity.KindReimburse || !ok || claim.ExpenseType != *filter.ExpenseType {
			return false
		}
	}
	return true
}

// detailsByApp loads the detail records of apps with one query per kind
func (s *historyServiceImpl) detailsByApp(ctx context.Context, apps []*entity.Application) (map[int64]entity.Detail, error) {
	idsByKind := make(map[entity.Kind][]int64)
	for _, app := range apps {
		idsByKind[app.Kind] = append(idsByKind[app.Kind], app.ID)
	}

	byApp := make(map[int64]entity.Detail, len(apps))
	for kind, ids := range idsByKind {
		details, err := s.detailRepo.QueryByAppIDs(ctx, kind, ids)
		if err != nil {
			return nil, apperr.Internal(err, "failed to load %s details", kind)
		}
		for _, d := range details {
			switch v := d.(type) {
			case *entity.LeaveDetail:
				byApp[v.AppID] = v
			case *entity.ReimburseDetail:
				byApp[v.AppID] = v
			}
		}
	}
	return byApp, nil
}

// Summarize counts and sums over every live application of userID regardless of status
func (s *historyServiceImpl) Summarize(ctx context.Context, userID int64) (*entity.Summary, error) {
	user, err := s.directory.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to load user", "error", err, "user_id", userID)
		return nil, apperr.Internal(err, "failed to load user %d", userID)
	}
	if user == nil {
		return nil, apperr.NotFound("user %d not found", userID)
	}

	apps, err := s.appRepo.Query(ctx, port.ApplicationFilter{ApplicantID: userID})
	if err != nil {
		s.logger.Error("Failed to query applications", "error", err, "user_id", userID)
		return nil, apperr.Internal(err, "failed to query applications")
	}

	summary := &entity.Summary{
		UserID:     userID,
		RealName:   user.RealName,
		TotalCount: int64(len(apps)),
	}

	for _, app := range apps {
		switch {
		case app.Status.IsAwaitingDecision():
			summary.PendingCount++
		case app.Status == entity.StatusApproved:
			summary.ApprovedCount++
		case app.Status == entity.StatusRejected:
			summary.RejectedCount++
		case app.Status == entity.StatusWithdrawn:
			summary.WithdrawnCount++
		}

		switch app.Kind {
		case entity.KindLeave:
			summary.LeaveCount++
		case entity.KindReimburse:
			summary.ReimburseCount++
		}

		if summary.LastSubmitTime == nil || app.SubmitTime.After(*summary.LastSubmitTime) {
			submitted := app.SubmitTime
			summary.LastSubmitTime = &submitted
		}
	}

	details, err := s.detailsByApp(ctx, apps)
	if err != nil {
		return nil, err
	}
	for _, detail := range details {
		switch d := detail.(type) {
		case *entity.LeaveDetail:
			summary.TotalLeaveDays += d.Days
		case *entity.ReimburseDetail:
			summary.TotalReimburseAmount += d.Amount
		}
	}

	summary.ApprovalRate = ApprovalRate(summary.ApprovedCount, summary.TotalCount)

	if summary.DeptName, err = s.deptName(ctx, user.DeptID); err != nil {
		return nil, err
	}
	if summary.PostName, err = s.postName(ctx, user.PostID); err != nil {
		return nil, err
	}

	return summary, nil
}

// ApprovalRate returns approved/total as a percentage rounded half-up to 2 decimals; 0 when total is 0
func ApprovalRate(approved, total int64) float64 {
	if total <= 0 {
		return 0
	}
	hundredths := (approved*10000*2 + total) / (2 * total)
	return float64(hundredths) / 100
}

func (s *historyServiceImpl) deptName(ctx context.Context, id int64) (string, error) {
	if id == 0 {
		return "", nil
	}
	dept, err := s.directory.GetDeptByID(ctx, id)
	if err != nil {
		return "", apperr.Internal(err, "failed to load department %d", id)
	}
	if dept == nil {
		return "", nil
	}
	return dept.Name, nil
}

func (s *historyServiceImpl) postName(ctx context.Context, id int64) (string, error) {
	if id == 0 {
		return "", nil
	}
	post, err := s.directory.GetPostByID(ctx, id)
	if err != nil {
		return "", apperr.Internal(err, "failed to load post %d", id)
	}
	if post == nil {
		return "", nil
	}
	return post.Name, nil
}
