package workflow

// Kind identifies which entity lifecycle a state or transition table belongs to.
type Kind string

const (
	// KindRequest is the fund-advance request lifecycle (suprimento de fundos).
	KindRequest Kind = "REQUEST"
	// KindReimbursement is the standalone reimbursement lifecycle (reembolso).
	KindReimbursement Kind = "REIMBURSEMENT"
)

// State represents a workflow state in one of the entity lifecycles
type State string

// Request lifecycle states, ordered submission → analysis → execution →
// reporting → reconciliation → archival.
const (
	StateDraft                 State = "DRAFT"
	StateSubmitted             State = "SUBMITTED"
	StateUnderReview           State = "UNDER_REVIEW"
	StateReturnedForAdjustment State = "RETURNED_FOR_ADJUSTMENT"
	StateRejected              State = "REJECTED"
	StateApprovedForGrant      State = "APPROVED_FOR_GRANT"
	StateFundsReleased         State = "FUNDS_RELEASED"
	StateInExecution           State = "IN_EXECUTION"
	StateAwaitingReport        State = "AWAITING_REPORT"
	StateReportSubmitted       State = "REPORT_SUBMITTED"
	StateReportUnderReview     State = "REPORT_UNDER_REVIEW"
	StateReportReturned        State = "REPORT_RETURNED"
	StateReportCorrected       State = "REPORT_CORRECTED"
	StateReportRejected        State = "REPORT_REJECTED"
	StateReportApproved        State = "REPORT_APPROVED"
	StateInDefault             State = "IN_DEFAULT"
	StateRegularized           State = "REGULARIZED"
	StateArchived              State = "ARCHIVED"
)

// Reimbursement lifecycle states. DRAFT and REJECTED are shared with the
// request vocabulary; validity is always checked per kind.
const (
	StatePending                State = "PENDING"
	StateInReview               State = "IN_REVIEW"
	StateApproved               State = "APPROVED"
	StateReturnedWithCorrection State = "RETURNED_WITH_CORRECTION"
	StateConcluded              State = "CONCLUDED"
)

var requestStates = []State{
	StateDraft,
	StateSubmitted,
	StateUnderReview,
	StateReturnedForAdjustment,
	StateRejected,
	StateApprovedForGrant,
	StateFundsReleased,
	StateInExecution,
	StateAwaitingReport,
	StateReportSubmitted,
	StateReportUnderReview,
	StateReportReturned,
	StateReportCorrected,
	StateReportRejected,
	StateReportApproved,
	StateInDefault,
	StateRegularized,
	StateArchived,
}

var reimbursementStates = []State{
	StateDraft,
	StatePending,
	StateInReview,
	StateApproved,
	StateReturnedWithCorrection,
	StateRejected,
	StateConcluded,
}

var terminalStates = map[Kind]map[State]bool{
	KindRequest: {
		StateRejected:       true,
		StateReportRejected: true,
		StateArchived:       true,
	},
	KindReimbursement: {
		StateRejected:  true,
		StateConcluded: true,
	},
}

// negativeStates are the targets that require a mandatory reason
// (return-for-correction and reject actions).
var negativeStates = map[Kind]map[State]bool{
	KindRequest: {
		StateReturnedForAdjustment: true,
		StateRejected:              true,
		StateReportReturned:        true,
		StateReportRejected:        true,
	},
	KindReimbursement: {
		StateReturnedWithCorrection: true,
		StateRejected:               true,
	},
}

var requestDescriptions = map[State]string{
	StateDraft:                 "Draft, not yet submitted by the requester",
	StateSubmitted:             "Submitted, awaiting administrative triage",
	StateUnderReview:           "Under review by the administration",
	StateReturnedForAdjustment: "Returned to the requester for adjustment",
	StateRejected:              "Rejected: request denied, no funds granted",
	StateApprovedForGrant:      "Approved: grant order (portaria) pending fund release",
	StateFundsReleased:         "Funds released to the supplied servant",
	StateInExecution:           "In execution: usage period running",
	StateAwaitingReport:        "Awaiting expense report (prestação de contas)",
	StateReportSubmitted:       "Expense report submitted, awaiting review",
	StateReportUnderReview:     "Expense report under review",
	StateReportReturned:        "Expense report returned with disallowances (glosa)",
	StateReportCorrected:       "Expense report corrected and resubmitted",
	StateReportRejected:        "Expense report rejected",
	StateReportApproved:        "Expense report approved",
	StateInDefault:             "In default (em alcance): reporting deadline expired",
	StateRegularized:           "Regularized: default lifted by the administration",
	StateArchived:              "Archived: lifecycle concluded",
}

var reimbursementDescriptions = map[State]string{
	StateDraft:                  "Draft, not yet submitted by the requester",
	StatePending:                "Pending, awaiting administrative triage",
	StateInReview:               "Under review by the administration",
	StateApproved:               "Approved: reimbursement authorized",
	StateReturnedWithCorrection: "Returned to the requester for correction",
	StateRejected:               "Rejected: reimbursement denied",
	StateConcluded:              "Concluded: reimbursement paid out",
}

// States returns the ordered state enumeration for the kind.
func (k Kind) States() []State {
	switch k {
	case KindRequest:
		return append([]State(nil), requestStates...)
	case KindReimbursement:
		return append([]State(nil), reimbursementStates...)
	}
	return nil
}

// IsValidState returns true if s belongs to the kind's vocabulary.
func (k Kind) IsValidState(s State) bool {
	for _, known := range k.states() {
		if known == s {
			return true
		}
	}
	return false
}

// IsTerminal returns true if s has no outgoing transitions for any role.
func (k Kind) IsTerminal(s State) bool {
	return terminalStates[k][s]
}

// RequiresReason returns true if transitions into s carry a mandatory reason.
func (k Kind) RequiresReason(s State) bool {
	return negativeStates[k][s]
}

// Describe returns the human-readable description used by the UI and the
// pre-transition confirmation dialog. Empty for states outside the kind.
func (k Kind) Describe(s State) string {
	switch k {
	case KindRequest:
		return requestDescriptions[s]
	case KindReimbursement:
		return reimbursementDescriptions[s]
	}
	return ""
}

// Initial returns the draft state every entity of the kind starts in.
func (k Kind) Initial() State {
	return StateDraft
}

func (k Kind) states() []State {
	switch k {
	case KindRequest:
		return requestStates
	case KindReimbursement:
		return reimbursementStates
	}
	return nil
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// String returns the string representation of the kind
func (k Kind) String() string {
	return string(k)
}
