package workflow

import (
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

func atLastNode(pos domainwf.Position) bool { return pos.LastNode }

func beforeLastNode(pos domainwf.Position) bool { return !pos.LastNode }

// lifecycle is the application state table shared by every engine
var lifecycle = newLifecycle()

func newLifecycle() *domainwf.Lifecycle {
	builder := domainwf.NewBuilder()

	builder.From(domainwf.StateDraft).
		Permit(domainwf.TriggerSubmit, domainwf.StatePending)

	builder.From(domainwf.StatePending).
		PermitIf(domainwf.TriggerApprove, domainwf.StateApproved, atLastNode).
		PermitIf(domainwf.TriggerApprove, domainwf.StateInProgress, beforeLastNode).
		Permit(domainwf.TriggerReject, domainwf.StateRejected).
		Permit(domainwf.TriggerWithdraw, domainwf.StateWithdrawn)

	// Withdrawal is only possible before the first decision
	builder.From(domainwf.StateInProgress).
		PermitIf(domainwf.TriggerApprove, domainwf.StateApproved, atLastNode).
		PermitIf(domainwf.TriggerApprove, domainwf.StateInProgress, beforeLastNode).
		Permit(domainwf.TriggerReject, domainwf.StateRejected)

	return builder.Build()
}
