package service

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/approval-workflow/internal/application/dispatcher"
	"github.com/garyjia/approval-workflow/internal/domain/apperr"
	"github.com/garyjia/approval-workflow/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Default paging
const (
	DefaultPageNum  = 1
	DefaultPageSize = 10
)

// PageRequest selects one page of a list; non-positive values fall back to the defaults
type PageRequest struct {
	PageNum  int
	PageSize int
}

func (p PageRequest) normalize() PageRequest {
	if p.PageNum <= 0 {
		p.PageNum = DefaultPageNum
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	return p
}

func (p PageRequest) offset() int {
	return (p.PageNum - 1) * p.PageSize
}

// slicePage cuts one page out of a fully materialized result
func slicePage[T any](rows []T, p PageRequest) []T {
	from := p.offset()
	if from >= len(rows) {
		return []T{}
	}
	to := from + p.PageSize
	if to > len(rows) {
		to = len(rows)
	}
	return rows[from:to]
}

// asAppErr keeps typed errors and turns everything else into an internal fault
func asAppErr(err error, format string, args ...interface{}) error {
	var typed *apperr.Error
	if errors.As(err, &typed) {
		return err
	}
	return apperr.Internal(err, format, args...)
}

// publish hands committed events to the dispatcher. Handler failures are logged only:
// the state change they describe is already durable.
func publish(ctx context.Context, d dispatcher.Dispatcher, logger Logger, events ...*event.Event) {
	if d == nil {
		return
	}
	for _, evt := range events {
		if err := d.Dispatch(ctx, evt); err != nil {
			logger.Error("Failed to dispatch event", "error", err, "event_type", evt.Type, "app_id", evt.AppID)
		}
	}
}

type clock func() time.Time
