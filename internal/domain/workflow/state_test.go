package workflow

import "testing"

func TestKind_States(t *testing.T) {
	if got := len(KindRequest.States()); got != 18 {
		t.Errorf("KindRequest.States() returned %d states, want 18", got)
	}
	if got := len(KindReimbursement.States()); got != 7 {
		t.Errorf("KindReimbursement.States() returned %d states, want 7", got)
	}
}

func TestKind_IsTerminal(t *testing.T) {
	tests := []struct {
		kind     Kind
		state    State
		expected bool
	}{
		{KindRequest, StateDraft, false},
		{KindRequest, StateSubmitted, false},
		{KindRequest, StateUnderReview, false},
		{KindRequest, StateInDefault, false},
		{KindRequest, StateRegularized, false},
		{KindRequest, StateReportApproved, false},
		{KindRequest, StateRejected, true},
		{KindRequest, StateReportRejected, true},
		{KindRequest, StateArchived, true},
		{KindReimbursement, StatePending, false},
		{KindReimbursement, StateApproved, false},
		{KindReimbursement, StateRejected, true},
		{KindReimbursement, StateConcluded, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+string(tt.state), func(t *testing.T) {
			if got := tt.kind.IsTerminal(tt.state); got != tt.expected {
				t.Errorf("IsTerminal(%s) = %v, want %v", tt.state, got, tt.expected)
			}
		})
	}
}

func TestKind_IsValidState(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		state    State
		expected bool
	}{
		{"request state", KindRequest, StateAwaitingReport, true},
		{"reimbursement state not in request vocabulary", KindRequest, StateConcluded, false},
		{"shared draft state", KindReimbursement, StateDraft, true},
		{"request state not in reimbursement vocabulary", KindReimbursement, StateFundsReleased, false},
		{"unknown state", KindRequest, State("BOGUS"), false},
		{"empty state", KindReimbursement, State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.kind.IsValidState(tt.state); got != tt.expected {
				t.Errorf("IsValidState(%s) = %v, want %v", tt.state, got, tt.expected)
			}
		})
	}
}

func TestKind_RequiresReason(t *testing.T) {
	tests := []struct {
		kind     Kind
		state    State
		expected bool
	}{
		{KindRequest, StateReturnedForAdjustment, true},
		{KindRequest, StateRejected, true},
		{KindRequest, StateReportReturned, true},
		{KindRequest, StateReportRejected, true},
		{KindRequest, StateApprovedForGrant, false},
		{KindRequest, StateInDefault, false},
		{KindReimbursement, StateReturnedWithCorrection, true},
		{KindReimbursement, StateRejected, true},
		{KindReimbursement, StateApproved, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+string(tt.state), func(t *testing.T) {
			if got := tt.kind.RequiresReason(tt.state); got != tt.expected {
				t.Errorf("RequiresReason(%s) = %v, want %v", tt.state, got, tt.expected)
			}
		})
	}
}

func TestKind_Describe(t *testing.T) {
	for _, kind := range []Kind{KindRequest, KindReimbursement} {
		for _, state := range kind.States() {
			if kind.Describe(state) == "" {
				t.Errorf("Describe(%s, %s) returned empty description", kind, state)
			}
		}
	}

	if KindRequest.Describe(StateConcluded) != "" {
		t.Error("Describe() should be empty for a state outside the kind's vocabulary")
	}
}

func TestKind_Initial(t *testing.T) {
	if KindRequest.Initial() != StateDraft {
		t.Errorf("KindRequest.Initial() = %v, want %v", KindRequest.Initial(), StateDraft)
	}
	if KindReimbursement.Initial() != StateDraft {
		t.Errorf("KindReimbursement.Initial() = %v, want %v", KindReimbursement.Initial(), StateDraft)
	}
}

func TestRole_IsValid(t *testing.T) {
	for _, role := range []Role{RoleRequester, RoleAdministrator, RoleSystem} {
		if !role.IsValid() {
			t.Errorf("Role %s should be valid", role)
		}
	}
	if Role("funcionario").IsValid() {
		t.Error("legacy role strings must not validate")
	}
}
