package entity

// ApplicationStatus is the lifecycle status of an application.
// The numeric values are persisted and must not be renumbered.
type ApplicationStatus int

const (
	StatusDraft      ApplicationStatus = 0
	StatusPending    ApplicationStatus = 1
	StatusInProgress ApplicationStatus = 2
	StatusApproved   ApplicationStatus = 3
	StatusRejected   ApplicationStatus = 4
	StatusWithdrawn  ApplicationStatus = 5
)

var statusNames = map[ApplicationStatus]string{
	StatusDraft:      "DRAFT",
	StatusPending:    "PENDING",
	StatusInProgress: "IN_PROGRESS",
	StatusApproved:   "APPROVED",
	StatusRejected:   "REJECTED",
	StatusWithdrawn:  "WITHDRAWN",
}

// String returns the status name
func (s ApplicationStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsValid reports whether s is a known status
func (s ApplicationStatus) IsValid() bool {
	_, ok := statusNames[s]
	return ok
}

// IsTerminal reports whether no further transition can leave s
func (s ApplicationStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusWithdrawn
}

// IsAwaitingDecision reports whether s requires exactly one open task
func (s ApplicationStatus) IsAwaitingDecision() bool {
	return s == StatusPending || s == StatusInProgress
}

// FinishedStatuses is the default status set of the history view
var FinishedStatuses = []ApplicationStatus{StatusApproved, StatusRejected, StatusWithdrawn}

// TaskStatus is the status of a task
type TaskStatus int

const (
	TaskStatusOpen   TaskStatus = 0
	TaskStatusClosed TaskStatus = 1
)

// String returns the task status name
func (s TaskStatus) String() string {
	switch s {
	case TaskStatusOpen:
		return "OPEN"
	case TaskStatusClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Action is an approver's decision on a task
type Action int

const (
	ActionApprove Action = 1
	ActionReject  Action = 2
)

// String returns the action name
func (a Action) String() string {
	switch a {
	case ActionApprove:
		return "APPROVE"
	case ActionReject:
		return "REJECT"
	default:
		return "UNKNOWN"
	}
}

// IsValid reports whether a is a known action
func (a Action) IsValid() bool {
	return a == ActionApprove || a == ActionReject
}

// User status constants
const (
	UserStatusDisabled = 0
	UserStatusActive   = 1
)
