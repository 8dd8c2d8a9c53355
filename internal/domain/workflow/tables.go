package workflow

// RequestTransitions builds the transition table for the fund-advance
// request lifecycle. No role may skip states; terminal states (REJECTED,
// REPORT_REJECTED, ARCHIVED) have no outgoing transitions.
func RequestTransitions() *TransitionTable {
	builder := NewTableBuilder(KindRequest)

	builder.Role(RoleRequester).
		Permit(StateDraft, StateSubmitted).
		Permit(StateReturnedForAdjustment, StateSubmitted).
		Permit(StateAwaitingReport, StateReportSubmitted).
		Permit(StateReportReturned, StateReportCorrected).
		Permit(StateRegularized, StateReportSubmitted)

	builder.Role(RoleAdministrator).
		Permit(StateSubmitted, StateUnderReview).
		Permit(StateUnderReview, StateApprovedForGrant, StateReturnedForAdjustment, StateRejected).
		Permit(StateApprovedForGrant, StateFundsReleased).
		Permit(StateReportSubmitted, StateReportUnderReview).
		Permit(StateReportCorrected, StateReportUnderReview).
		Permit(StateReportUnderReview, StateReportApproved, StateReportReturned, StateReportRejected).
		Permit(StateReportApproved, StateArchived).
		Permit(StateInDefault, StateRegularized)

	// Deadline-driven moves performed by the scheduler actor.
	builder.Role(RoleSystem).
		Permit(StateFundsReleased, StateInExecution).
		Permit(StateInExecution, StateAwaitingReport).
		Permit(StateAwaitingReport, StateInDefault)

	return builder.Build()
}

// ReimbursementTransitions builds the transition table for the standalone
// reimbursement (reembolso) lifecycle. It deliberately lacks the corrected
// intermediate state the request's reporting cycle has.
func ReimbursementTransitions() *TransitionTable {
	builder := NewTableBuilder(KindReimbursement)

	builder.Role(RoleRequester).
		Permit(StateDraft, StatePending).
		Permit(StateReturnedWithCorrection, StatePending)

	builder.Role(RoleAdministrator).
		Permit(StatePending, StateInReview).
		Permit(StateInReview, StateApproved, StateReturnedWithCorrection, StateRejected).
		Permit(StateApproved, StateConcluded)

	return builder.Build()
}

// TableFor returns the transition table governing the given kind.
func TableFor(kind Kind) *TransitionTable {
	switch kind {
	case KindRequest:
		return RequestTransitions()
	case KindReimbursement:
		return ReimbursementTransitions()
	}
	return nil
}
