package workflow

import (
	"fmt"
)

// Position tells guards where the application stands in its approval chain
type Position struct {
	NodeIndex int
	LastNode  bool
}

// Guard decides whether a transition applies at a chain position
type Guard func(pos Position) bool

type rule struct {
	to    State
	guard Guard
}

// Builder collects the transition table of the application lifecycle
type Builder struct {
	rules map[State]map[Trigger][]rule
}

// Rules adds transitions leaving one state
type Rules struct {
	from  State
	table map[Trigger][]rule
}

// NewBuilder creates an empty lifecycle builder
func NewBuilder() *Builder {
	return &Builder{rules: make(map[State]map[Trigger][]rule)}
}

// From returns the rules leaving state. Terminal states accept no rules.
func (b *Builder) From(state State) *Rules {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}

	table, ok := b.rules[state]
	if !ok {
		table = make(map[Trigger][]rule)
		b.rules[state] = table
	}
	return &Rules{from: state, table: table}
}

// Permit moves to the target state unconditionally
func (r *Rules) Permit(trigger Trigger, to State) *Rules {
	return r.PermitIf(trigger, to, nil)
}

// PermitIf moves to the target state when guard passes.
// Rules for one trigger are tried in the order they were added.
func (r *Rules) PermitIf(trigger Trigger, to State, guard Guard) *Rules {
	if r.from.IsTerminal() {
		panic(fmt.Sprintf("terminal state %s cannot have transitions", r.from))
	}
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", to))
	}

	r.table[trigger] = append(r.table[trigger], rule{to: to, guard: guard})
	return r
}

// Build freezes the table. Later changes to the builder do not reach the Lifecycle.
func (b *Builder) Build() *Lifecycle {
	rules := make(map[State]map[Trigger][]rule, len(b.rules))
	for state, table := range b.rules {
		frozen := make(map[Trigger][]rule, len(table))
		for trigger, rs := range table {
			frozen[trigger] = append([]rule(nil), rs...)
		}
		rules[state] = frozen
	}
	return &Lifecycle{rules: rules}
}

// Lifecycle is an immutable transition table, safe for concurrent use
type Lifecycle struct {
	rules map[State]map[Trigger][]rule
}

// Fire returns the state reached from `from` by trigger at pos
func (l *Lifecycle) Fire(from State, trigger Trigger, pos Position) (State, error) {
	rs := l.rules[from][trigger]
	if len(rs) == 0 {
		return from, &TransitionError{From: from, Trigger: trigger}
	}

	for _, r := range rs {
		if r.guard == nil || r.guard(pos) {
			return r.to, nil
		}
	}
	return from, &TransitionError{From: from, Trigger: trigger, Guarded: true}
}
