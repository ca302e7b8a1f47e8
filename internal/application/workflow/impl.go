package workflow

import (
	"context"
	"errors"

	"github.com/garyjia/approval-workflow/internal/domain/apperr"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// engineImpl is the concrete implementation of WorkflowEngine
type engineImpl struct {
	chain *Chain
}

// NewEngine creates a new workflow engine over chain
func NewEngine(chain *Chain) WorkflowEngine {
	return &engineImpl{chain: chain}
}

func (e *engineImpl) Chain() *Chain {
	return e.chain
}

// Start fires SUBMIT from DRAFT and places the application on node 0
func (e *engineImpl) Start(ctx context.Context, app *entity.Application) (*Outcome, error) {
	first, _ := e.chain.Node(0)

	to, err := lifecycle.Fire(domainwf.StateDraft, domainwf.TriggerSubmit, e.position(0))
	if err != nil {
		return nil, transitionError(err, app)
	}

	return &Outcome{
		From:      domainwf.StateDraft,
		To:        to,
		NodeIndex: 0,
		NodeName:  first.Name,
	}, nil
}

// Decide fires APPROVE or REJECT at the current node
func (e *engineImpl) Decide(ctx context.Context, app *entity.Application, action entity.Action) (*Outcome, error) {
	trigger, ok := domainwf.TriggerFor(action)
	if !ok {
		return nil, apperr.Validation("unknown action %d", action)
	}

	from, err := stateOf(app)
	if err != nil {
		return nil, err
	}

	to, err := lifecycle.Fire(from, trigger, e.position(app.NodeIndex))
	if err != nil {
		return nil, transitionError(err, app)
	}

	outcome := &Outcome{From: from, To: to, NodeIndex: -1, NextLabel: e.chain.EndLabel()}
	if !outcome.Finished() {
		next, ok := e.chain.Node(app.NodeIndex + 1)
		if !ok {
			return nil, apperr.InvalidState("application %d has no node after %d", app.ID, app.NodeIndex)
		}
		outcome.NodeIndex = app.NodeIndex + 1
		outcome.NodeName = next.Name
		outcome.NextLabel = next.Name
	}

	return outcome, nil
}

// Withdraw fires WITHDRAW; only PENDING applications accept it
func (e *engineImpl) Withdraw(ctx context.Context, app *entity.Application) (*Outcome, error) {
	from, err := stateOf(app)
	if err != nil {
		return nil, err
	}

	to, err := lifecycle.Fire(from, domainwf.TriggerWithdraw, e.position(app.NodeIndex))
	if err != nil {
		return nil, transitionError(err, app)
	}

	return &Outcome{From: from, To: to, NodeIndex: -1}, nil
}

func (e *engineImpl) position(nodeIndex int) domainwf.Position {
	return domainwf.Position{NodeIndex: nodeIndex, LastNode: e.chain.IsLast(nodeIndex)}
}

func stateOf(app *entity.Application) (domainwf.State, error) {
	state := domainwf.StateOf(app.Status)
	if !state.IsValid() {
		return "", apperr.InvalidState("application %d has unknown status %d", app.ID, app.Status)
	}
	return state, nil
}

func transitionError(err error, app *entity.Application) error {
	if errors.Is(err, domainwf.ErrInvalidTransition) {
		return apperr.Wrap(apperr.KindInvalidState, err, "application %d is %s", app.ID, app.Status)
	}
	return apperr.Internal(err, "failed to transition application %d", app.ID)
}
