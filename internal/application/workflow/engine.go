package workflow

import (
	"context"
	"time"

	"github.com/garyjia/approval-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// WorkflowEngine computes lifecycle transitions of applications against the approval chain.
// It does not persist anything.
type WorkflowEngine interface {
	// Chain returns the configured approval chain
	Chain() *Chain

	// Start submits a new application onto the first node
	Start(ctx context.Context, app *entity.Application) (*Outcome, error)

	// Decide applies an approver action at the application's current node
	Decide(ctx context.Context, app *entity.Application, action entity.Action) (*Outcome, error)

	// Withdraw retracts an application that has not been decided yet
	Withdraw(ctx context.Context, app *entity.Application) (*Outcome, error)
}

// Outcome is the result of one transition
type Outcome struct {
	From domainwf.State
	To   domainwf.State

	// NodeIndex and NodeName locate the application after the transition; -1 and "" once finished
	NodeIndex int
	NodeName  string

	// NextLabel is the next-node label recorded on a decision's history entry
	NextLabel string
}

// Finished reports whether the application reached a terminal state
func (o *Outcome) Finished() bool {
	return o.To.IsTerminal()
}

// Apply copies the outcome onto app
func (o *Outcome) Apply(app *entity.Application, at time.Time) {
	if o.Finished() {
		app.Finish(o.To.Status(), at)
		return
	}
	app.Status = o.To.Status()
	app.NodeIndex = o.NodeIndex
	app.CurrentNode = o.NodeName
}
