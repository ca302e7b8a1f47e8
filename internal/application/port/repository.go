package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/approval-workflow/internal/domain/entity"
)

// ErrStaleWrite is returned by conditional updates whose precondition no longer holds
// (the row changed status since it was read, or a unique open-task slot is taken).
var ErrStaleWrite = errors.New("stale write")

// ApplicationFilter narrows application queries. Zero values mean "no constraint".
type ApplicationFilter struct {
	ApplicantID int64
	Kind        entity.Kind
	Statuses    []entity.ApplicationStatus
	AppNoLike   string
	SubmitFrom  *time.Time
	SubmitTo    *time.Time
	// IncludeDeleted also matches logically retired rows
	IncludeDeleted bool
	// Limit 0 returns every matching row
	Limit  int
	Offset int
}

// ApplicationRepository defines persistence operations for Application.
// Results are ordered by submit time then id, both descending.
type ApplicationRepository interface {
	Create(ctx context.Context, app *entity.Application) error
	GetByID(ctx context.Context, id int64) (*entity.Application, error)

	// Update writes status, current node, node index and finish time
	// only if the stored status still equals expected; otherwise ErrStaleWrite
	Update(ctx context.Context, app *entity.Application, expected entity.ApplicationStatus) error

	Query(ctx context.Context, filter ApplicationFilter) ([]*entity.Application, error)
	Count(ctx context.Context, filter ApplicationFilter) (int64, error)
}

// DetailRepository stores the type-specific detail record of an application
type DetailRepository interface {
	Create(ctx context.Context, detail entity.Detail) error
	GetByAppID(ctx context.Context, kind entity.Kind, appID int64) (entity.Detail, error)
	QueryByAppIDs(ctx context.Context, kind entity.Kind, appIDs []int64) ([]entity.Detail, error)
}

// TaskRepository defines persistence operations for Task
type TaskRepository interface {
	// Create fails with ErrStaleWrite if the application already has an OPEN task
	Create(ctx context.Context, task *entity.Task) error
	GetByID(ctx context.Context, id int64) (*entity.Task, error)
	GetOpenByAppID(ctx context.Context, appID int64) (*entity.Task, error)

	// Close moves an OPEN task to CLOSED; ErrStaleWrite if it was not OPEN
	Close(ctx context.Context, id int64, finishedAt time.Time) error

	DeleteOpenByAppID(ctx context.Context, appID int64) (int64, error)

	// QueryByAssignee orders OPEN tasks by create time, CLOSED ones by finish time, newest first
	QueryByAssignee(ctx context.Context, assigneeID int64, status entity.TaskStatus, limit, offset int) ([]*entity.Task, error)
	CountByAssignee(ctx context.Context, assigneeID int64, status entity.TaskStatus) (int64, error)
}

// HistoryRepository is the append-only decision log
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.History) error

	// ListByAppID returns entries ordered by decision time, newest first
	ListByAppID(ctx context.Context, appID int64) ([]*entity.History, error)
	GetLatestByAppID(ctx context.Context, appID int64) (*entity.History, error)
	GetLatestByTaskID(ctx context.Context, taskID int64) (*entity.History, error)

	// LatestByAppIDs returns the newest entry of each application that has one
	LatestByAppIDs(ctx context.Context, appIDs []int64) (map[int64]*entity.History, error)
}

// DirectoryReader resolves users, departments and posts. Missing records are (nil, nil).
type DirectoryReader interface {
	GetUserByID(ctx context.Context, id int64) (*entity.User, error)
	GetDeptByID(ctx context.Context, id int64) (*entity.Dept, error)
	GetPostByID(ctx context.Context, id int64) (*entity.Post, error)

	// FindUserByRole returns the lowest-id active user holding the role
	FindUserByRole(ctx context.Context, roleCode string) (*entity.User, error)
}

// SequenceRepository issues per-day application number sequences
type SequenceRepository interface {
	// Next atomically increments and returns the counter for day (yyyyMMdd)
	Next(ctx context.Context, day string) (int64, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
