package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/garyjia/approval-workflow/internal/application/dispatcher"
	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/application/workflow"
	"github.com/garyjia/approval-workflow/internal/domain/apperr"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/event"
)

const titleReasonRunes = 10

// ApplicationQuery filters application lists. Zero values mean "no constraint".
type ApplicationQuery struct {
	Kind   entity.Kind
	Status *entity.ApplicationStatus
	// AppNo matches any part of the application number
	AppNo string
	PageRequest
}

// ApplicationService drives the lifecycle of applications
type ApplicationService interface {
	// Submit creates a PENDING application with its detail and first task, returning its id
	Submit(ctx context.Context, applicantID int64, detail entity.Detail) (int64, error)

	// Withdraw retracts a PENDING application on behalf of its applicant
	Withdraw(ctx context.Context, appID, requesterID int64) error

	// GetApplicationDetail returns an application with its detail record and decisions
	GetApplicationDetail(ctx context.Context, appID int64) (*entity.ApplicationDetail, error)

	// ViewApplication is GetApplicationDetail for the applicant and the approvers
	// the application was assigned to; anyone else gets Forbidden
	ViewApplication(ctx context.Context, appID, viewerID int64) (*entity.ApplicationDetail, error)

	// ListMyApplications lists the applications submitted by userID
	ListMyApplications(ctx context.Context, userID int64, query ApplicationQuery) (*entity.Page[entity.ApplicationView], error)

	// ListAllApplications lists every application; read-only admin view
	ListAllApplications(ctx context.Context, query ApplicationQuery) (*entity.Page[entity.ApplicationView], error)
}

type applicationServiceImpl struct {
	appRepo     port.ApplicationRepository
	detailRepo  port.DetailRepository
	historyRepo port.HistoryRepository
	taskRepo    port.TaskRepository
	directory   port.DirectoryReader
	tasks       TaskService
	engine      workflow.WorkflowEngine
	appNo       AppNoGenerator
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
	logger      Logger
	now         clock
}

// NewApplicationService creates a new ApplicationService
func NewApplicationService(
	appRepo port.ApplicationRepository,
	detailRepo port.DetailRepository,
	historyRepo port.HistoryRepository,
	taskRepo port.TaskRepository,
	directory port.DirectoryReader,
	tasks TaskService,
	engine workflow.WorkflowEngine,
	appNo AppNoGenerator,
	txManager port.TransactionManager,
	events dispatcher.Dispatcher,
	logger Logger,
) ApplicationService {
	return &applicationServiceImpl{
		appRepo:     appRepo,
		detailRepo:  detailRepo,
		historyRepo: historyRepo,
		taskRepo:    taskRepo,
		directory:   directory,
		tasks:       tasks,
		engine:      engine,
		appNo:       appNo,
		txManager:   txManager,
		dispatcher:  events,
		logger:      logger,
		now:         time.Now,
	}
}

// BuildTitle derives an application title from its kind label and reason.
// Reasons longer than 10 characters are cut and get "..." appended.
func BuildTitle(kind entity.Kind, reason string) string {
	runes := []rune(reason)
	if len(runes) > titleReasonRunes {
		reason = string(runes[:titleReasonRunes]) + "..."
	}
	return kind.Label() + "-" + reason
}

// Submit creates the application, its detail record and the task of the first node atomically
func (s *applicationServiceImpl) Submit(ctx context.Context, applicantID int64, detail entity.Detail) (int64, error) {
	if detail == nil {
		return 0, apperr.Validation("application detail is required")
	}
	kind := detail.Kind()
	if !kind.IsValid() {
		return 0, apperr.Validation("unknown application type %q", kind)
	}
	if strings.TrimSpace(detail.Purpose()) == "" {
		return 0, apperr.Validation("reason is required")
	}

	now := s.now()
	app := &entity.Application{
		Kind:        kind,
		Title:       BuildTitle(kind, detail.Purpose()),
		ApplicantID: applicantID,
		Status:      entity.StatusDraft,
		SubmitTime:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var task *entity.Task
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		applicant, err := s.directory.GetUserByID(txCtx, applicantID)
		if err != nil {
			return apperr.Internal(err, "failed to load applicant %d", applicantID)
		}
		if applicant == nil || !applicant.IsActive() {
			return apperr.NotFound("applicant %d not found", applicantID)
		}
		app.DeptID = applicant.DeptID

		outcome, err := s.engine.Start(txCtx, app)
		if err != nil {
			return err
		}
		outcome.Apply(app, now)

		if app.AppNo, err = s.appNo.Next(txCtx, now); err != nil {
			return apperr.Internal(err, "failed to generate application number")
		}

		if err := s.appRepo.Create(txCtx, app); err != nil {
			return apperr.Internal(err, "failed to create application")
		}

		detail.BindApplication(app.ID, now)
		if err := s.detailRepo.Create(txCtx, detail); err != nil {
			return apperr.Internal(err, "failed to create %s detail", kind)
		}

		task, err = s.tasks.OpenTask(txCtx, app, outcome.NodeIndex)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to submit application", "error", err, "applicant_id", applicantID, "kind", kind)
		return 0, asAppErr(err, "failed to submit application")
	}

	s.logger.Info("Application submitted", "app_id", app.ID, "app_no", app.AppNo, "kind", kind, "applicant_id", applicantID)
	publish(ctx, s.dispatcher, s.logger,
		event.NewEventFromContext(ctx, event.TypeApplicationSubmitted, app.ID, applicantID, map[string]interface{}{
			"app_no": app.AppNo,
			"kind":   string(kind),
			"node":   app.CurrentNode,
		}),
		taskOpenedEvent(ctx, task, applicantID),
	)

	return app.ID, nil
}

// Withdraw moves a PENDING application to WITHDRAWN and deletes its open task.
// No history entry is written.
func (s *applicationServiceImpl) Withdraw(ctx context.Context, appID, requesterID int64) error {
	var deleted int64
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		app, err := s.appRepo.GetByID(txCtx, appID)
		if err != nil {
			return apperr.Internal(err, "failed to load application %d", appID)
		}
		if app == nil || app.DelFlag {
			return apperr.NotFound("application %d not found", appID)
		}
		if app.ApplicantID != requesterID {
			return apperr.Forbidden("only the applicant can withdraw application %d", appID)
		}
		if app.Status != entity.StatusPending {
			return apperr.InvalidState("application %d is %s, only PENDING applications can be withdrawn", appID, app.Status)
		}

		outcome, err := s.engine.Withdraw(txCtx, app)
		if err != nil {
			return err
		}

		now := s.now()
		expected := app.Status
		outcome.Apply(app, now)
		app.UpdatedAt = now

		if err := s.appRepo.Update(txCtx, app, expected); err != nil {
			if errors.Is(err, port.ErrStaleWrite) {
				return apperr.InvalidState("application %d changed while withdrawing", appID)
			}
			return apperr.Internal(err, "failed to update application %d", appID)
		}

		if deleted, err = s.taskRepo.DeleteOpenByAppID(txCtx, appID); err != nil {
			return apperr.Internal(err, "failed to delete open tasks of application %d", appID)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to withdraw application", "error", err, "app_id", appID, "requester_id", requesterID)
		return asAppErr(err, "failed to withdraw application")
	}

	s.logger.Info("Application withdrawn", "app_id", appID, "deleted_tasks", deleted)
	publish(ctx, s.dispatcher, s.logger,
		event.NewEventFromContext(ctx, event.TypeApplicationWithdrawn, appID, requesterID, map[string]interface{}{
			"deleted_tasks": deleted,
		}),
	)
	return nil
}

// GetApplicationDetail loads an application, its detail record and its decisions newest first
func (s *applicationServiceImpl) GetApplicationDetail(ctx context.Context, appID int64) (*entity.ApplicationDetail, error) {
	app, err := s.appRepo.GetByID(ctx, appID)
	if err != nil {
		s.logger.Error("Failed to get application", "error", err, "app_id", appID)
		return nil, apperr.Internal(err, "failed to load application %d", appID)
	}
	if app == nil || app.DelFlag {
		return nil, apperr.NotFound("application %d not found", appID)
	}

	detail, err := s.detailRepo.GetByAppID(ctx, app.Kind, appID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load detail of application %d", appID)
	}

	history, err := s.historyRepo.ListByAppID(ctx, appID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load history of application %d", appID)
	}
	if history == nil {
		history = []*entity.History{}
	}

	return &entity.ApplicationDetail{
		Application: app,
		Detail:      detail,
		History:     history,
	}, nil
}

// ViewApplication implements ApplicationService
func (s *applicationServiceImpl) ViewApplication(ctx context.Context, appID, viewerID int64) (*entity.ApplicationDetail, error) {
	detail, err := s.GetApplicationDetail(ctx, appID)
	if err != nil {
		return nil, err
	}
	if detail.Application.ApplicantID == viewerID {
		return detail, nil
	}
	for _, h := range detail.History {
		if h.ApproverID == viewerID {
			return detail, nil
		}
	}

	open, err := s.taskRepo.GetOpenByAppID(ctx, appID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load open task of application %d", appID)
	}
	if open != nil && open.AssigneeID == viewerID {
		return detail, nil
	}
	return nil, apperr.Forbidden("user %d may not view application %d", viewerID, appID)
}

// ListMyApplications pages the user's applications, newest submission first
func (s *applicationServiceImpl) ListMyApplications(ctx context.Context, userID int64, query ApplicationQuery) (*entity.Page[entity.ApplicationView], error) {
	filter := query.filter()
	filter.ApplicantID = userID
	return s.listApplications(ctx, filter, query.PageRequest)
}

// ListAllApplications pages every live application, newest submission first
func (s *applicationServiceImpl) ListAllApplications(ctx context.Context, query ApplicationQuery) (*entity.Page[entity.ApplicationView], error) {
	return s.listApplications(ctx, query.filter(), query.PageRequest)
}

func (q ApplicationQuery) filter() port.ApplicationFilter {
	filter := port.ApplicationFilter{
		Kind:      q.Kind,
		AppNoLike: strings.TrimSpace(q.AppNo),
	}
	if q.Status != nil {
		filter.Statuses = []entity.ApplicationStatus{*q.Status}
	}
	return filter
}

func (s *applicationServiceImpl) listApplications(ctx context.Context, filter port.ApplicationFilter, page PageRequest) (*entity.Page[entity.ApplicationView], error) {
	page = page.normalize()

	total, err := s.appRepo.Count(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to count applications", "error", err)
		return nil, apperr.Internal(err, "failed to count applications")
	}

	filter.Limit = page.PageSize
	filter.Offset = page.offset()
	apps, err := s.appRepo.Query(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list applications", "error", err)
		return nil, apperr.Internal(err, "failed to list applications")
	}

	names := newNameResolver(s.directory)
	records := make([]entity.ApplicationView, 0, len(apps))
	for _, app := range apps {
		applicantName, err := names.userName(ctx, app.ApplicantID)
		if err != nil {
			return nil, err
		}
		deptName, err := names.deptName(ctx, app.DeptID)
		if err != nil {
			return nil, err
		}

		records = append(records, entity.ApplicationView{
			ID:            app.ID,
			AppNo:         app.AppNo,
			Kind:          app.Kind,
			Title:         app.Title,
			ApplicantName: applicantName,
			DeptName:      deptName,
			Status:        app.Status,
			CurrentNode:   app.CurrentNode,
			SubmitTime:    app.SubmitTime,
			FinishTime:    app.FinishTime,
		})
	}

	return &entity.Page[entity.ApplicationView]{
		Records:  records,
		Total:    total,
		PageNum:  page.PageNum,
		PageSize: page.PageSize,
	}, nil
}

func taskOpenedEvent(ctx context.Context, task *entity.Task, actorID int64) *event.Event {
	return event.NewEventFromContext(ctx, event.TypeTaskOpened, task.AppID, actorID, map[string]interface{}{
		"task_id":     task.ID,
		"node":        task.NodeName,
		"assignee_id": task.AssigneeID,
	})
}
