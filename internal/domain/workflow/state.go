package workflow

import "github.com/garyjia/approval-workflow/internal/domain/entity"

// State represents a state in the application lifecycle
type State string

const (
	StateDraft      State = "DRAFT"
	StatePending    State = "PENDING"
	StateInProgress State = "IN_PROGRESS"
	StateApproved   State = "APPROVED"
	StateRejected   State = "REJECTED"
	StateWithdrawn  State = "WITHDRAWN"
)

var stateByStatus = map[entity.ApplicationStatus]State{
	entity.StatusDraft:      StateDraft,
	entity.StatusPending:    StatePending,
	entity.StatusInProgress: StateInProgress,
	entity.StatusApproved:   StateApproved,
	entity.StatusRejected:   StateRejected,
	entity.StatusWithdrawn:  StateWithdrawn,
}

var statusByState = map[State]entity.ApplicationStatus{
	StateDraft:      entity.StatusDraft,
	StatePending:    entity.StatusPending,
	StateInProgress: entity.StatusInProgress,
	StateApproved:   entity.StatusApproved,
	StateRejected:   entity.StatusRejected,
	StateWithdrawn:  entity.StatusWithdrawn,
}

var terminalStates = map[State]bool{
	StateApproved:  true,
	StateRejected:  true,
	StateWithdrawn: true,
}

// StateOf maps a persisted application status to its lifecycle state.
// Unknown codes map to the empty (invalid) state.
func StateOf(status entity.ApplicationStatus) State {
	return stateByStatus[status]
}

// Status returns the persisted status code of the state
func (s State) Status() entity.ApplicationStatus {
	return statusByState[s]
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid lifecycle state
func (s State) IsValid() bool {
	_, ok := statusByState[s]
	return ok
}
