package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/approval-workflow/internal/application/dispatcher"
	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/application/workflow"
	"github.com/garyjia/approval-workflow/internal/domain/apperr"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/event"
)

// Mock repositories

type mockTaskRepo struct {
	getByIDFunc        func(ctx context.Context, id int64) (*entity.Task, error)
	getOpenByAppIDFunc func(ctx context.Context, appID int64) (*entity.Task, error)
	createFunc         func(ctx context.Context, task *entity.Task) error
	closeFunc          func(ctx context.Context, id int64, finishedAt time.Time) error
}

func (m *mockTaskRepo) Create(ctx context.Context, task *entity.Task) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, task)
	}
	task.ID = 1
	return nil
}

func (m *mockTaskRepo) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockTaskRepo) GetOpenByAppID(ctx context.Context, appID int64) (*entity.Task, error) {
	if m.getOpenByAppIDFunc != nil {
		return m.getOpenByAppIDFunc(ctx, appID)
	}
	return nil, nil
}

func (m *mockTaskRepo) Close(ctx context.Context, id int64, finishedAt time.Time) error {
	if m.closeFunc != nil {
		return m.closeFunc(ctx, id, finishedAt)
	}
	return nil
}

func (m *mockTaskRepo) DeleteOpenByAppID(ctx context.Context, appID int64) (int64, error) {
	return 0, nil
}

func (m *mockTaskRepo) QueryByAssignee(ctx context.Context, assigneeID int64, status entity.TaskStatus, limit, offset int) ([]*entity.Task, error) {
	return nil, nil
}

func (m *mockTaskRepo) CountByAssignee(ctx context.Context, assigneeID int64, status entity.TaskStatus) (int64, error) {
	return 0, nil
}

type mockAppRepo struct {
	getByIDFunc func(ctx context.Context, id int64) (*entity.Application, error)
	updateFunc  func(ctx context.Context, app *entity.Application, expected entity.ApplicationStatus) error
	countFunc   func(ctx context.Context, filter port.ApplicationFilter) (int64, error)
}

func (m *mockAppRepo) Create(ctx context.Context, app *entity.Application) error {
	app.ID = 1
	return nil
}

func (m *mockAppRepo) GetByID(ctx context.Context, id int64) (*entity.Application, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockAppRepo) Update(ctx context.Context, app *entity.Application, expected entity.ApplicationStatus) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, app, expected)
	}
	return nil
}

func (m *mockAppRepo) Query(ctx context.Context, filter port.ApplicationFilter) ([]*entity.Application, error) {
	return nil, nil
}

func (m *mockAppRepo) Count(ctx context.Context, filter port.ApplicationFilter) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, filter)
	}
	return 0, nil
}

type mockHistoryRepo struct {
	createFunc func(ctx context.Context, history *entity.History) error
}

func (m *mockHistoryRepo) Create(ctx context.Context, history *entity.History) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, history)
	}
	return nil
}

func (m *mockHistoryRepo) ListByAppID(ctx context.Context, appID int64) ([]*entity.History, error) {
	return nil, nil
}

func (m *mockHistoryRepo) GetLatestByAppID(ctx context.Context, appID int64) (*entity.History, error) {
	return nil, nil
}

func (m *mockHistoryRepo) GetLatestByTaskID(ctx context.Context, taskID int64) (*entity.History, error) {
	return nil, nil
}

func (m *mockHistoryRepo) LatestByAppIDs(ctx context.Context, appIDs []int64) (map[int64]*entity.History, error) {
	return map[int64]*entity.History{}, nil
}

type mockDirectory struct {
	users map[int64]*entity.User
}

func (m *mockDirectory) GetUserByID(ctx context.Context, id int64) (*entity.User, error) {
	return m.users[id], nil
}

func (m *mockDirectory) GetDeptByID(ctx context.Context, id int64) (*entity.Dept, error) {
	return nil, nil
}

func (m *mockDirectory) GetPostByID(ctx context.Context, id int64) (*entity.Post, error) {
	return nil, nil
}

func (m *mockDirectory) FindUserByRole(ctx context.Context, roleCode string) (*entity.User, error) {
	return nil, nil
}

type mockSequenceRepo struct {
	nextFunc func(ctx context.Context, day string) (int64, error)
}

func (m *mockSequenceRepo) Next(ctx context.Context, day string) (int64, error) {
	return m.nextFunc(ctx, day)
}

type mockTxManager struct {
	calls int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type countingLogger struct {
	errors []string
}

func (l *countingLogger) Info(msg string, keysAndValues ...interface{}) {}
func (l *countingLogger) Error(msg string, keysAndValues ...interface{}) {
	l.errors = append(l.errors, msg)
}

func TestBuildTitle(t *testing.T) {
	tests := []struct {
		name   string
		kind   entity.Kind
		reason string
		want   string
	}{
		{"short reason kept", entity.KindLeave, "sick", "请假申请-sick"},
		{"exactly ten characters kept", entity.KindLeave, "0123456789", "请假申请-0123456789"},
		{"long reason truncated", entity.KindLeave, "annual leave request", "请假申请-annual lea..."},
		{"counts characters not bytes", entity.KindReimburse, "出差北京参加技术大会的交通费用", "报销申请-出差北京参加技术大会..."},
		{"unregistered kind uses tag", entity.Kind("travel"), "x", "travel-x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildTitle(tt.kind, tt.reason))
		})
	}
}

func TestApprovalRate(t *testing.T) {
	tests := []struct {
		approved, total int64
		want            float64
	}{
		{0, 0, 0},
		{0, 5, 0},
		{3, 3, 100},
		{1, 4, 25},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{1, 6, 16.67},
		{1, 8, 12.5},
		{1, 32, 3.13},
		{5, 7, 71.43},
	}

	for _, tt := range tests {
		got := ApprovalRate(tt.approved, tt.total)
		assert.Equal(t, tt.want, got, "%d/%d", tt.approved, tt.total)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 100.0)
	}
}

func TestPageRequest(t *testing.T) {
	p := PageRequest{}.normalize()
	assert.Equal(t, PageRequest{PageNum: 1, PageSize: 10}, p)
	assert.Equal(t, 0, p.offset())

	p = PageRequest{PageNum: 3, PageSize: 4}.normalize()
	assert.Equal(t, 8, p.offset())

	rows := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{1, 2}, slicePage(rows, PageRequest{PageNum: 1, PageSize: 2}))
	assert.Equal(t, []int{5}, slicePage(rows, PageRequest{PageNum: 3, PageSize: 2}))
	assert.Equal(t, []int{}, slicePage(rows, PageRequest{PageNum: 4, PageSize: 2}))
}

func TestAppNoGenerator(t *testing.T) {
	at := time.Date(2025, 6, 30, 23, 59, 0, 0, time.Local)
	ctx := context.Background()

	var day string
	sequences := &mockSequenceRepo{nextFunc: func(ctx context.Context, d string) (int64, error) {
		day = d
		return 42, nil
	}}
	apps := &mockAppRepo{countFunc: func(ctx context.Context, filter port.ApplicationFilter) (int64, error) {
		assert.True(t, filter.IncludeDeleted)
		return 1233, nil
	}}

	daily, err := NewAppNoGenerator("", sequences, apps)
	require.NoError(t, err)
	no, err := daily.Next(ctx, at)
	require.NoError(t, err)
	assert.Equal(t, "AP20250630000042", no)
	assert.Equal(t, "20250630", day)

	legacy, err := NewAppNoGenerator(AppNoStrategyLegacy, sequences, apps)
	require.NoError(t, err)
	no, err = legacy.Next(ctx, at)
	require.NoError(t, err)
	assert.Equal(t, "AP20250630001234", no)

	_, err = NewAppNoGenerator("random", sequences, apps)
	assert.Error(t, err)

	failing := &mockSequenceRepo{nextFunc: func(ctx context.Context, d string) (int64, error) {
		return 0, errors.New("locked")
	}}
	daily, _ = NewAppNoGenerator(AppNoStrategyDaily, failing, apps)
	_, err = daily.Next(ctx, at)
	assert.Error(t, err)
}

func TestAsAppErr(t *testing.T) {
	typed := apperr.Forbidden("nope")
	assert.Same(t, typed, asAppErr(typed, "ignored"))

	wrapped := asAppErr(errors.New("boom"), "failed to %s", "work")
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(wrapped))
	assert.Equal(t, "failed to work", apperr.MessageOf(wrapped))
}

func TestPublish_LogsHandlerFailures(t *testing.T) {
	d := dispatcher.NewDispatcher()
	d.Subscribe(event.TypeTaskOpened, "broken", func(ctx context.Context, evt *event.Event) error {
		return errors.New("handler down")
	})

	logger := &countingLogger{}
	publish(context.Background(), d, logger, event.NewEvent(event.TypeTaskOpened, 1, 2, nil))
	assert.Equal(t, []string{"Failed to dispatch event"}, logger.errors)

	publish(context.Background(), nil, logger, event.NewEvent(event.TypeTaskOpened, 1, 2, nil))
	assert.Len(t, logger.errors, 1)
}

func newDecisionUnderTest(t *testing.T, tasks *mockTaskRepo, apps *mockAppRepo, history *mockHistoryRepo) (*decisionServiceImpl, *mockTxManager) {
	t.Helper()

	chain, err := workflow.NewChain(workflow.DefaultNodes(), "", nil)
	require.NoError(t, err)
	engine := workflow.NewEngine(chain)

	directory := &mockDirectory{users: map[int64]*entity.User{
		2: {ID: 2, RealName: "技术部经理", Status: entity.UserStatusActive},
	}}
	tx := &mockTxManager{}
	logger := &mockLogger{}
	taskService := NewTaskService(tasks, apps, history, directory, engine, logger)
	svc := NewDecisionService(tasks, apps, history, directory, taskService, engine, tx, nil, logger)
	return svc.(*decisionServiceImpl), tx
}

func openTask() *entity.Task {
	return &entity.Task{ID: 7, AppID: 1, NodeName: "部门经理审批", AssigneeID: 2, AssigneeName: "经理快照", Status: entity.TaskStatusOpen}
}

func pendingApp() *entity.Application {
	return &entity.Application{ID: 1, Status: entity.StatusPending, CurrentNode: "部门经理审批"}
}

func TestDecisionService_Decide(t *testing.T) {
	tests := []struct {
		name      string
		task      func() *entity.Task
		app       func() *entity.Application
		closeErr  error
		createErr error
		updateErr error
		cmd       DecideCommand
		wantKind  apperr.Kind
		wantErr   bool
	}{
		{
			name: "approve finishes single node",
			task: openTask,
			app:  pendingApp,
			cmd:  DecideCommand{TaskID: 7, ApproverID: 2, Action: entity.ActionApprove},
		},
		{
			name:     "closed task",
			task:     func() *entity.Task { task := openTask(); task.Status = entity.TaskStatusClosed; return task },
			app:      pendingApp,
			cmd:      DecideCommand{TaskID: 7, ApproverID: 2, Action: entity.ActionApprove},
			wantErr:  true,
			wantKind: apperr.KindInvalidState,
		},
		{
			name:     "missing application",
			task:     openTask,
			app:      func() *entity.Application { return nil },
			cmd:      DecideCommand{TaskID: 7, ApproverID: 2, Action: entity.ActionReject},
			wantErr:  true,
			wantKind: apperr.KindInvalidState,
		},
		{
			name:     "lost close race",
			task:     openTask,
			app:      pendingApp,
			closeErr: port.ErrStaleWrite,
			cmd:      DecideCommand{TaskID: 7, ApproverID: 2, Action: entity.ActionApprove},
			wantErr:  true,
			wantKind: apperr.KindInvalidState,
		},
		{
			name:      "duplicate history",
			task:      openTask,
			app:       pendingApp,
			createErr: port.ErrStaleWrite,
			cmd:       DecideCommand{TaskID: 7, ApproverID: 2, Action: entity.ActionApprove},
			wantErr:   true,
			wantKind:  apperr.KindInvalidState,
		},
		{
			name:      "application changed concurrently",
			task:      openTask,
			app:       pendingApp,
			updateErr: port.ErrStaleWrite,
			cmd:       DecideCommand{TaskID: 7, ApproverID: 2, Action: entity.ActionReject},
			wantErr:   true,
			wantKind:  apperr.KindInvalidState,
		},
		{
			name:      "storage failure",
			task:      openTask,
			app:       pendingApp,
			updateErr: errors.New("disk I/O error"),
			cmd:       DecideCommand{TaskID: 7, ApproverID: 2, Action: entity.ActionReject},
			wantErr:   true,
			wantKind:  apperr.KindInternal,
		},
		{
			name:     "terminal application",
			task:     openTask,
			app:      func() *entity.Application { return &entity.Application{ID: 1, Status: entity.StatusApproved} },
			cmd:      DecideCommand{TaskID: 7, ApproverID: 2, Action: entity.ActionApprove},
			wantErr:  true,
			wantKind: apperr.KindInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var recorded *entity.History
			var updated *entity.Application
			var expected entity.ApplicationStatus

			tasks := &mockTaskRepo{
				getByIDFunc: func(ctx context.Context, id int64) (*entity.Task, error) { return tt.task(), nil },
				closeFunc:   func(ctx context.Context, id int64, at time.Time) error { return tt.closeErr },
			}
			apps := &mockAppRepo{
				getByIDFunc: func(ctx context.Context, id int64) (*entity.Application, error) { return tt.app(), nil },
				updateFunc: func(ctx context.Context, app *entity.Application, exp entity.ApplicationStatus) error {
					updated, expected = app, exp
					return tt.updateErr
				},
			}
			history := &mockHistoryRepo{createFunc: func(ctx context.Context, h *entity.History) error {
				recorded = h
				return tt.createErr
			}}

			svc, tx := newDecisionUnderTest(t, tasks, apps, history)
			err := svc.Decide(context.Background(), tt.cmd)
			assert.Equal(t, 1, tx.calls)

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, apperr.KindOf(err), "unexpected error: %v", err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, recorded)
			assert.Equal(t, "技术部经理", recorded.ApproverName)
			assert.Equal(t, "end", recorded.NextNode)
			assert.Equal(t, int64(7), recorded.TaskID)
			require.NotNil(t, updated)
			assert.Equal(t, entity.StatusPending, expected)
			assert.Equal(t, entity.StatusApproved, updated.Status)
			assert.NotNil(t, updated.FinishTime)
		})
	}
}

func TestDecisionService_ApproverNameFallsBackToSnapshot(t *testing.T) {
	var recorded *entity.History
	tasks := &mockTaskRepo{getByIDFunc: func(ctx context.Context, id int64) (*entity.Task, error) {
		task := openTask()
		task.AssigneeID = 9
		return task, nil
	}}
	apps := &mockAppRepo{getByIDFunc: func(ctx context.Context, id int64) (*entity.Application, error) { return pendingApp(), nil }}
	history := &mockHistoryRepo{createFunc: func(ctx context.Context, h *entity.History) error {
		recorded = h
		return nil
	}}

	svc, _ := newDecisionUnderTest(t, tasks, apps, history)
	require.NoError(t, svc.Decide(context.Background(), DecideCommand{TaskID: 7, ApproverID: 9, Action: entity.ActionApprove}))
	assert.Equal(t, "经理快照", recorded.ApproverName)
}

func TestTaskService_OpenTaskRefusesSecondOpenTask(t *testing.T) {
	chain, err := workflow.NewChain(workflow.DefaultNodes(), "", nil)
	require.NoError(t, err)

	created := false
	tasks := &mockTaskRepo{
		getOpenByAppIDFunc: func(ctx context.Context, appID int64) (*entity.Task, error) { return openTask(), nil },
		createFunc: func(ctx context.Context, task *entity.Task) error {
			created = true
			return nil
		},
	}
	svc := NewTaskService(tasks, &mockAppRepo{}, &mockHistoryRepo{}, &mockDirectory{}, workflow.NewEngine(chain), &mockLogger{})

	_, err = svc.OpenTask(context.Background(), pendingApp(), 0)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
	assert.False(t, created)

	_, err = svc.OpenTask(context.Background(), pendingApp(), 3)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	// The unique index still guards against a racing insert
	tasks.getOpenByAppIDFunc = nil
	tasks.createFunc = func(ctx context.Context, task *entity.Task) error { return port.ErrStaleWrite }
	_, err = svc.OpenTask(context.Background(), pendingApp(), 0)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
}
