package service

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/approval-workflow/internal/application/dispatcher"
	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/application/workflow"
	"github.com/garyjia/approval-workflow/internal/domain/apperr"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/event"
)

// DecideCommand is an approver's decision on a task
type DecideCommand struct {
	TaskID     int64
	ApproverID int64
	Action     entity.Action
	Comment    string
}

// DecisionService applies approver decisions
type DecisionService interface {
	// Decide records the decision, advances or finishes the application and closes the task.
	// All writes commit together or not at all.
	Decide(ctx context.Context, cmd DecideCommand) error
}

type decisionServiceImpl struct {
	taskRepo    port.TaskRepository
	appRepo     port.ApplicationRepository
	historyRepo port.HistoryRepository
	directory   port.DirectoryReader
	tasks       TaskService
	engine      workflow.WorkflowEngine
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
	logger      Logger
	now         clock
}

// NewDecisionService creates a new DecisionService
func NewDecisionService(
	taskRepo port.TaskRepository,
	appRepo port.ApplicationRepository,
	historyRepo port.HistoryRepository,
	directory port.DirectoryReader,
	tasks TaskService,
	engine workflow.WorkflowEngine,
	txManager port.TransactionManager,
	events dispatcher.Dispatcher,
	logger Logger,
) DecisionService {
	return &decisionServiceImpl{
		taskRepo:    taskRepo,
		appRepo:     appRepo,
		historyRepo: historyRepo,
		directory:   directory,
		tasks:       tasks,
		engine:      engine,
		txManager:   txManager,
		dispatcher:  events,
		logger:      logger,
		now:         time.Now,
	}
}

// decisionResult carries what the committed transaction produced to the event publisher
type decisionResult struct {
	app      *entity.Application
	closed   *entity.Task
	history  *entity.History
	outcome  *workflow.Outcome
	nextTask *entity.Task
}

// Decide processes an approve or reject on a task
func (s *decisionServiceImpl) Decide(ctx context.Context, cmd DecideCommand) error {
	if !cmd.Action.IsValid() {
		return apperr.Validation("unknown action %d", cmd.Action)
	}

	var result decisionResult
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		result, err = s.decide(txCtx, cmd)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to decide task", "error", err, "task_id", cmd.TaskID, "approver_id", cmd.ApproverID)
		return asAppErr(err, "failed to decide task %d", cmd.TaskID)
	}

	s.logger.Info("Task decided",
		"task_id", cmd.TaskID,
		"app_id", result.app.ID,
		"action", cmd.Action,
		"status", result.app.Status,
		"next_node", result.history.NextNode)

	events := []*event.Event{
		event.NewEventFromContext(ctx, event.TypeTaskClosed, result.app.ID, cmd.ApproverID, map[string]interface{}{
			"task_id": result.closed.ID,
			"node":    result.closed.NodeName,
		}),
		event.NewEventFromContext(ctx, event.TypeApplicationDecided, result.app.ID, cmd.ApproverID, map[string]interface{}{
			"task_id":   result.closed.ID,
			"action":    cmd.Action.String(),
			"from":      result.outcome.From.String(),
			"to":        result.outcome.To.String(),
			"next_node": result.history.NextNode,
		}),
	}
	if result.nextTask != nil {
		events = append(events, taskOpenedEvent(ctx, result.nextTask, cmd.ApproverID))
	}
	publish(ctx, s.dispatcher, s.logger, events...)

	return nil
}

func (s *decisionServiceImpl) decide(ctx context.Context, cmd DecideCommand) (decisionResult, error) {
	var result decisionResult

	task, err := s.taskRepo.GetByID(ctx, cmd.TaskID)
	if err != nil {
		return result, apperr.Internal(err, "failed to load task %d", cmd.TaskID)
	}
	if task == nil {
		return result, apperr.NotFound("task %d not found", cmd.TaskID)
	}
	if task.AssigneeID != cmd.ApproverID {
		return result, apperr.Forbidden("user %d is not the assignee of task %d", cmd.ApproverID, cmd.TaskID)
	}
	if !task.IsOpen() {
		return result, apperr.InvalidState("task %d already processed", cmd.TaskID)
	}

	app, err := s.appRepo.GetByID(ctx, task.AppID)
	if err != nil {
		return result, apperr.Internal(err, "failed to load application %d", task.AppID)
	}
	if app == nil {
		return result, apperr.InvalidState("application %d of task %d is missing", task.AppID, task.ID)
	}

	outcome, err := s.engine.Decide(ctx, app, cmd.Action)
	if err != nil {
		return result, err
	}

	closed, err := s.tasks.CloseTask(ctx, task)
	if err != nil {
		return result, err
	}

	approverName, err := s.approverName(ctx, cmd.ApproverID, task)
	if err != nil {
		return result, err
	}

	now := s.now()
	history := &entity.History{
		AppID:        app.ID,
		TaskID:       task.ID,
		NodeName:     task.NodeName,
		ApproverID:   cmd.ApproverID,
		ApproverName: approverName,
		Action:       cmd.Action,
		Comment:      cmd.Comment,
		ApproveTime:  now,
		NextNode:     outcome.NextLabel,
		CreatedAt:    now,
	}
	if err := s.historyRepo.Create(ctx, history); err != nil {
		if errors.Is(err, port.ErrStaleWrite) {
			return result, apperr.InvalidState("task %d already processed", task.ID)
		}
		return result, apperr.Internal(err, "failed to record decision of task %d", task.ID)
	}

	expected := app.Status
	outcome.Apply(app, now)
	app.UpdatedAt = now
	if err := s.appRepo.Update(ctx, app, expected); err != nil {
		if errors.Is(err, port.ErrStaleWrite) {
			return result, apperr.InvalidState("application %d changed while deciding", app.ID)
		}
		return result, apperr.Internal(err, "failed to update application %d", app.ID)
	}

	result = decisionResult{app: app, closed: closed, history: history, outcome: outcome}
	if !outcome.Finished() {
		if result.nextTask, err = s.tasks.OpenTask(ctx, app, outcome.NodeIndex); err != nil {
			return result, err
		}
	}

	return result, nil
}

// approverName resolves the approver's current display name, falling back to the task snapshot
func (s *decisionServiceImpl) approverName(ctx context.Context, approverID int64, task *entity.Task) (string, error) {
	user, err := s.directory.GetUserByID(ctx, approverID)
	if err != nil {
		return "", apperr.Internal(err, "failed to load approver %d", approverID)
	}
	if user == nil || user.RealName == "" {
		return task.AssigneeName, nil
	}
	return user.RealName, nil
}
