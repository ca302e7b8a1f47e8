package service

import (
	"context"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/apperr"
)

// nameResolver memoizes directory display names for the lifetime of one list call.
// Missing entries resolve to "".
type nameResolver struct {
	directory port.DirectoryReader
	users     map[int64]string
	depts     map[int64]string
}

func newNameResolver(directory port.DirectoryReader) *nameResolver {
	return &nameResolver{
		directory: directory,
		users:     make(map[int64]string),
		depts:     make(map[int64]string),
	}
}

func (r *nameResolver) userName(ctx context.Context, id int64) (string, error) {
	if name, ok := r.users[id]; ok {
		return name, nil
	}
	user, err := r.directory.GetUserByID(ctx, id)
	if err != nil {
		return "", apperr.Internal(err, "failed to load user %d", id)
	}
	var name string
	if user != nil {
		name = user.RealName
	}
	r.users[id] = name
	return name, nil
}

func (r *nameResolver) deptName(ctx context.Context, id int64) (string, error) {
	if name, ok := r.depts[id]; ok {
		return name, nil
	}
	dept, err := r.directory.GetDeptByID(ctx, id)
	if err != nil {
		return "", apperr.Internal(err, "failed to load department %d", id)
	}
	var name string
	if dept != nil {
		name = dept.Name
	}
	r.depts[id] = name
	return name, nil
}
