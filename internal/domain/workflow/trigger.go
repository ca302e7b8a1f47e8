package workflow

import "github.com/garyjia/approval-workflow/internal/domain/entity"

// Trigger is an event that moves an application between states
type Trigger string

const (
	TriggerSubmit   Trigger = "SUBMIT"
	TriggerApprove  Trigger = "APPROVE"
	TriggerReject   Trigger = "REJECT"
	TriggerWithdraw Trigger = "WITHDRAW"
)

// TriggerFor maps an approver action to its trigger
func TriggerFor(action entity.Action) (Trigger, bool) {
	switch action {
	case entity.ActionApprove:
		return TriggerApprove, true
	case entity.ActionReject:
		return TriggerReject, true
	}
	return "", false
}

func (t Trigger) String() string {
	return string(t)
}
