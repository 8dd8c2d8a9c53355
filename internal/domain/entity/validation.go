package entity

import "time"

// ValidationStatus tracks the advisory document check for one line item.
type ValidationStatus string

const (
	ValidationProcessing ValidationStatus = "PROCESSING"
	ValidationValidated  ValidationStatus = "VALIDATED"
	ValidationError      ValidationStatus = "ERROR"
)

// DiscrepancyFlag marks a field where the extracted receipt value differs
// from the declared one.
type DiscrepancyFlag string

const (
	DiscrepancyAmount DiscrepancyFlag = "AMOUNT"
	DiscrepancyDate   DiscrepancyFlag = "DATE"
)

// ValidationResult annotates one ExpenseLineItem with the outcome of the
// best-effort receipt extraction. Display-only; never blocks a transition.
type ValidationResult struct {
	ItemID          string            `json:"item_id"`
	Status          ValidationStatus  `json:"status"`
	ExtractedAmount *float64          `json:"extracted_amount,omitempty"`
	ExtractedDate   *time.Time        `json:"extracted_date,omitempty"`
	Discrepancies   []DiscrepancyFlag `json:"discrepancies"`
	Error           string            `json:"error,omitempty"`
}

// HasDiscrepancy reports whether the given flag was raised.
func (v *ValidationResult) HasDiscrepancy(flag DiscrepancyFlag) bool {
	for _, f := range v.Discrepancies {
		if f == flag {
			return true
		}
	}
	return false
}
