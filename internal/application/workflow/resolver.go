package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/apperr"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
)

// Approver is the identity a task is assigned to
type Approver struct {
	ID   int64
	Name string
}

// ApproverResolver picks the approver of a node for an application
type ApproverResolver interface {
	Resolve(ctx context.Context, app *entity.Application) (Approver, error)
}

func newResolver(spec NodeSpec, directory port.DirectoryReader) (ApproverResolver, error) {
	switch spec.Strategy {
	case StrategyFixed, "":
		if spec.UserID <= 0 {
			return nil, fmt.Errorf("fixed strategy requires user_id")
		}
		return &fixedResolver{approver: Approver{ID: spec.UserID, Name: spec.UserName}}, nil
	case StrategyRole:
		if spec.Role == "" {
			return nil, fmt.Errorf("role strategy requires role")
		}
		if directory == nil {
			return nil, fmt.Errorf("role strategy requires a directory")
		}
		return &roleResolver{role: spec.Role, directory: directory}, nil
	case StrategyDeptLeader:
		if directory == nil {
			return nil, fmt.Errorf("dept_leader strategy requires a directory")
		}
		return &deptLeaderResolver{directory: directory}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", spec.Strategy)
	}
}

// fixedResolver always returns the configured identity
type fixedResolver struct {
	approver Approver
}

func (r *fixedResolver) Resolve(ctx context.Context, app *entity.Application) (Approver, error) {
	return r.approver, nil
}

// roleResolver returns the first active user holding a role
type roleResolver struct {
	role      string
	directory port.DirectoryReader
}

func (r *roleResolver) Resolve(ctx context.Context, app *entity.Application) (Approver, error) {
	user, err := r.directory.FindUserByRole(ctx, r.role)
	if err != nil {
		return Approver{}, apperr.Internal(err, "failed to resolve approver for role %s", r.role)
	}
	if user == nil {
		return Approver{}, apperr.NotFound("no active user holds role %s", r.role)
	}
	return Approver{ID: user.ID, Name: user.RealName}, nil
}

// deptLeaderResolver returns the leader of the applicant's department snapshot
type deptLeaderResolver struct {
	directory port.DirectoryReader
}

func (r *deptLeaderResolver) Resolve(ctx context.Context, app *entity.Application) (Approver, error) {
	dept, err := r.directory.GetDeptByID(ctx, app.DeptID)
	if err != nil {
		return Approver{}, apperr.Internal(err, "failed to load department %d", app.DeptID)
	}
	if dept == nil {
		return Approver{}, apperr.NotFound("department %d not found", app.DeptID)
	}
	if dept.LeaderID == 0 {
		return Approver{}, apperr.NotFound("department %s has no leader", dept.Name)
	}

	leader, err := r.directory.GetUserByID(ctx, dept.LeaderID)
	if err != nil {
		return Approver{}, apperr.Internal(err, "failed to load user %d", dept.LeaderID)
	}
	if leader == nil || !leader.IsActive() {
		return Approver{}, apperr.NotFound("leader %d of department %s not found", dept.LeaderID, dept.Name)
	}
	return Approver{ID: leader.ID, Name: leader.RealName}, nil
}
