package event

// Type identifies the type of domain event
type Type string

const (
	TypeStatusChanged   Type = "workflow.status_changed"
	TypeReportSubmitted Type = "report.submitted"
	TypeReportCorrected Type = "report.corrected"
	TypeMessageSent     Type = "message.sent"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeStatusChanged,
		TypeReportSubmitted,
		TypeReportCorrected,
		TypeMessageSent:
		return true
	default:
		return false
	}
}
