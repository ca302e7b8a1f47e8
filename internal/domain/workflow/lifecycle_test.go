package workflow

import (
	"errors"
	"testing"

	"github.com/garyjia/approval-workflow/internal/domain/entity"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateDraft, false},
		{StatePending, false},
		{StateInProgress, false},
		{StateApproved, true},
		{StateRejected, true},
		{StateWithdrawn, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"valid state", StateDraft, true},
		{"valid state", StateWithdrawn, true},
		{"invalid state", State("INVALID"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestStateOf_RoundTripsStatusCodes(t *testing.T) {
	statuses := []entity.ApplicationStatus{
		entity.StatusDraft,
		entity.StatusPending,
		entity.StatusInProgress,
		entity.StatusApproved,
		entity.StatusRejected,
		entity.StatusWithdrawn,
	}

	for _, status := range statuses {
		state := StateOf(status)
		if !state.IsValid() {
			t.Fatalf("StateOf(%d) returned invalid state", status)
		}
		if state.Status() != status {
			t.Errorf("StateOf(%d).Status() = %d", status, state.Status())
		}
	}

	if StateOf(entity.ApplicationStatus(99)).IsValid() {
		t.Error("unknown status code should map to an invalid state")
	}
}

func lastNode(pos Position) bool  { return pos.LastNode }
func moreNodes(pos Position) bool { return !pos.LastNode }

func approvalLifecycle() *Lifecycle {
	b := NewBuilder()
	b.From(StateDraft).Permit(TriggerSubmit, StatePending)
	b.From(StatePending).
		PermitIf(TriggerApprove, StateApproved, lastNode).
		PermitIf(TriggerApprove, StateInProgress, moreNodes).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerWithdraw, StateWithdrawn)
	return b.Build()
}

func TestBuilder_FromPanicsOnInvalidState(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("From() should panic on invalid state")
		}
	}()

	NewBuilder().From(State("INVALID"))
}

func TestRules_TerminalStateRejectsTransitions(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("PermitIf() should panic on a terminal source state")
		}
	}()

	NewBuilder().From(StateApproved).Permit(TriggerWithdraw, StateWithdrawn)
}

func TestRules_PermitPanicsOnInvalidTarget(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Permit() should panic on an invalid target")
		}
	}()

	NewBuilder().From(StateDraft).Permit(TriggerSubmit, State("LOST"))
}

func TestBuilder_BuildFreezesTable(t *testing.T) {
	b := NewBuilder()
	b.From(StatePending).Permit(TriggerReject, StateRejected)

	lifecycle := b.Build()
	b.From(StatePending).Permit(TriggerWithdraw, StateWithdrawn)

	if _, err := lifecycle.Fire(StatePending, TriggerWithdraw, Position{}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("lifecycle should not see rules added after Build(), got %v", err)
	}
}

func TestLifecycle_Fire(t *testing.T) {
	lifecycle := approvalLifecycle()

	tests := []struct {
		name    string
		from    State
		trigger Trigger
		pos     Position
		want    State
		wantErr error
	}{
		{"submit", StateDraft, TriggerSubmit, Position{}, StatePending, nil},
		{"approve with more nodes", StatePending, TriggerApprove, Position{NodeIndex: 0}, StateInProgress, nil},
		{"approve at last node", StatePending, TriggerApprove, Position{LastNode: true}, StateApproved, nil},
		{"reject", StatePending, TriggerReject, Position{}, StateRejected, nil},
		{"withdraw", StatePending, TriggerWithdraw, Position{}, StateWithdrawn, nil},
		{"unconfigured trigger", StatePending, TriggerSubmit, Position{}, StatePending, ErrInvalidTransition},
		{"terminal state", StateApproved, TriggerApprove, Position{LastNode: true}, StateApproved, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := lifecycle.Fire(tt.from, tt.trigger, tt.pos)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Fire() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("Fire() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Fire() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLifecycle_FireGuardFailed(t *testing.T) {
	b := NewBuilder()
	b.From(StatePending).PermitIf(TriggerApprove, StateApproved, lastNode)

	got, err := b.Build().Fire(StatePending, TriggerApprove, Position{LastNode: false})
	if !errors.Is(err, ErrGuardFailed) || !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Fire() error = %v, want guard failure", err)
	}
	if got != StatePending {
		t.Errorf("state should stay %v, got %v", StatePending, got)
	}

	var te *TransitionError
	if !errors.As(err, &te) || te.Trigger != TriggerApprove || te.From != StatePending {
		t.Errorf("unexpected transition error %#v", err)
	}
}

func TestLifecycle_UnguardedRefusalIsNotGuardFailure(t *testing.T) {
	_, err := approvalLifecycle().Fire(StateRejected, TriggerWithdraw, Position{})
	if errors.Is(err, ErrGuardFailed) {
		t.Errorf("refusal without rules should not match ErrGuardFailed: %v", err)
	}
}

func TestTriggerFor(t *testing.T) {
	if tr, ok := TriggerFor(entity.ActionApprove); !ok || tr != TriggerApprove {
		t.Errorf("TriggerFor(approve) = %v, %v", tr, ok)
	}
	if tr, ok := TriggerFor(entity.ActionReject); !ok || tr != TriggerReject {
		t.Errorf("TriggerFor(reject) = %v, %v", tr, ok)
	}
	if _, ok := TriggerFor(entity.Action(9)); ok {
		t.Error("TriggerFor(9) should not map")
	}
}
