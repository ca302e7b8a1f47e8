package event

// Type identifies the type of domain event
type Type string

const (
	TypeApplicationSubmitted Type = "application.submitted"
	TypeApplicationWithdrawn Type = "application.withdrawn"
	TypeApplicationDecided   Type = "application.decided"
	TypeTaskOpened           Type = "task.opened"
	TypeTaskClosed           Type = "task.closed"
)

var allTypes = []Type{
	TypeApplicationSubmitted,
	TypeApplicationWithdrawn,
	TypeApplicationDecided,
	TypeTaskOpened,
	TypeTaskClosed,
}

// AllTypes lists every workflow event type
func AllTypes() []Type {
	return append([]Type(nil), allTypes...)
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	for _, known := range allTypes {
		if t == known {
			return true
		}
	}
	return false
}
