package service

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/application/workflow"
	"github.com/garyjia/approval-workflow/internal/domain/apperr"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
)

// TaskService dispatches approval tasks.
// An application awaiting a decision has exactly one OPEN task.
type TaskService interface {
	// OpenTask assigns the node at nodeIndex to its resolved approver.
	// It must run inside the caller's transaction.
	OpenTask(ctx context.Context, app *entity.Application, nodeIndex int) (*entity.Task, error)

	// CloseTask marks an OPEN task CLOSED; losing a concurrent close is InvalidState
	CloseTask(ctx context.Context, task *entity.Task) (*entity.Task, error)

	// ListTodoTasks returns the user's OPEN tasks, newest first
	ListTodoTasks(ctx context.Context, userID int64, page PageRequest) (*entity.Page[entity.TaskView], error)

	// ListDoneTasks returns the user's CLOSED tasks with their decisions, most recently finished first
	ListDoneTasks(ctx context.Context, userID int64, page PageRequest) (*entity.Page[entity.TaskView], error)
}

type taskServiceImpl struct {
	taskRepo    port.TaskRepository
	appRepo     port.ApplicationRepository
	historyRepo port.HistoryRepository
	directory   port.DirectoryReader
	engine      workflow.WorkflowEngine
	logger      Logger
	now         clock
}

// NewTaskService creates a new TaskService
func NewTaskService(
	taskRepo port.TaskRepository,
	appRepo port.ApplicationRepository,
	historyRepo port.HistoryRepository,
	directory port.DirectoryReader,
	engine workflow.WorkflowEngine,
	logger Logger,
) TaskService {
	return &taskServiceImpl{
		taskRepo:    taskRepo,
		appRepo:     appRepo,
		historyRepo: historyRepo,
		directory:   directory,
		engine:      engine,
		logger:      logger,
		now:         time.Now,
	}
}

// OpenTask creates the single OPEN task of an application entering a node
func (s *taskServiceImpl) OpenTask(ctx context.Context, app *entity.Application, nodeIndex int) (*entity.Task, error) {
	node, ok := s.engine.Chain().Node(nodeIndex)
	if !ok {
		return nil, apperr.InvalidState("application %d has no node %d", app.ID, nodeIndex)
	}

	existing, err := s.taskRepo.GetOpenByAppID(ctx, app.ID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load open task of application %d", app.ID)
	}
	if existing != nil {
		return nil, apperr.InvalidState("application %d already has open task %d", app.ID, existing.ID)
	}

	approver, err := node.Resolver.Resolve(ctx, app)
	if err != nil {
		s.logger.Error("Failed to resolve approver", "error", err, "app_id", app.ID, "node", node.Name)
		return nil, asAppErr(err, "failed to resolve approver of node %s", node.Name)
	}

	task := &entity.Task{
		AppID:        app.ID,
		NodeName:     node.Name,
		NodeIndex:    nodeIndex,
		AssigneeID:   approver.ID,
		AssigneeName: approver.Name,
		Status:       entity.TaskStatusOpen,
		CreatedAt:    s.now(),
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		if errors.Is(err, port.ErrStaleWrite) {
			return nil, apperr.InvalidState("application %d already has an open task", app.ID)
		}
		s.logger.Error("Failed to create task", "error", err, "app_id", app.ID)
		return nil, apperr.Internal(err, "failed to create task")
	}

	s.logger.Info("Task opened", "task_id", task.ID, "app_id", app.ID, "node", node.Name, "assignee_id", approver.ID)
	return task, nil
}

// CloseTask closes an OPEN task with a compare-and-set on its status
func (s *taskServiceImpl) CloseTask(ctx context.Context, task *entity.Task) (*entity.Task, error) {
	if !task.IsOpen() {
		return nil, apperr.InvalidState("task %d already processed", task.ID)
	}

	finishedAt := s.now()
	if err := s.taskRepo.Close(ctx, task.ID, finishedAt); err != nil {
		if errors.Is(err, port.ErrStaleWrite) {
			return nil, apperr.InvalidState("task %d already processed", task.ID)
		}
		s.logger.Error("Failed to close task", "error", err, "task_id", task.ID)
		return nil, apperr.Internal(err, "failed to close task %d", task.ID)
	}

	closed := *task
	closed.Status = entity.TaskStatusClosed
	closed.FinishTime = &finishedAt
	return &closed, nil
}

// ListTodoTasks lists OPEN tasks assigned to userID
func (s *taskServiceImpl) ListTodoTasks(ctx context.Context, userID int64, page PageRequest) (*entity.Page[entity.TaskView], error) {
	return s.listTasks(ctx, userID, entity.TaskStatusOpen, page)
}

// ListDoneTasks lists CLOSED tasks assigned to userID
func (s *taskServiceImpl) ListDoneTasks(ctx context.Context, userID int64, page PageRequest) (*entity.Page[entity.TaskView], error) {
	return s.listTasks(ctx, userID, entity.TaskStatusClosed, page)
}

func (s *taskServiceImpl) listTasks(ctx context.Context, userID int64, status entity.TaskStatus, page PageRequest) (*entity.Page[entity.TaskView], error) {
	page = page.normalize()

	total, err := s.taskRepo.CountByAssignee(ctx, userID, status)
	if err != nil {
		s.logger.Error("Failed to count tasks", "error", err, "user_id", userID)
		return nil, apperr.Internal(err, "failed to count tasks")
	}

	tasks, err := s.taskRepo.QueryByAssignee(ctx, userID, status, page.PageSize, page.offset())
	if err != nil {
		s.logger.Error("Failed to list tasks", "error", err, "user_id", userID)
		return nil, apperr.Internal(err, "failed to list tasks")
	}

	names := newNameResolver(s.directory)
	records := make([]entity.TaskView, 0, len(tasks))
	for _, task := range tasks {
		view := entity.TaskView{
			TaskID:     task.ID,
			AppID:      task.AppID,
			NodeName:   task.NodeName,
			CreatedAt:  task.CreatedAt,
			FinishTime: task.FinishTime,
		}

		app, err := s.appRepo.GetByID(ctx, task.AppID)
		if err != nil {
			return nil, apperr.Internal(err, "failed to load application %d", task.AppID)
		}
		if app != nil {
			view.AppNo = app.AppNo
			view.Kind = app.Kind
			view.Title = app.Title
			if view.ApplicantName, err = names.userName(ctx, app.ApplicantID); err != nil {
				return nil, err
			}
		}

		if status == entity.TaskStatusClosed {
			history, err := s.historyRepo.GetLatestByTaskID(ctx, task.ID)
			if err != nil {
				return nil, apperr.Internal(err, "failed to load decision of task %d", task.ID)
			}
			if history != nil {
				action := history.Action
				view.Action = &action
				view.Comment = history.Comment
			}
		}

		records = append(records, view)
	}

	return &entity.Page[entity.TaskView]{
		Records:  records,
		Total:    total,
		PageNum:  page.PageNum,
		PageSize: page.PageSize,
	}, nil
}
