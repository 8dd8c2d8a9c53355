package entity

import "time"

// ExpenseReport is the prestação de contas reconciling an advance against
// receipts. Owned by its Request; its lifecycle is the REPORT_* segment of
// the request machine.
type ExpenseReport struct {
	RequestID     string             `json:"request_id"`
	DeclaredTotal float64            `json:"declared_total"`
	Notes         string             `json:"notes"`
	Items         []*ExpenseLineItem `json:"items"`
	SubmittedAt   time.Time          `json:"submitted_at"`
}

// ExpenseLineItem is a single receipted expense inside a report. Immutable
// once submitted; corrections replace the whole list.
type ExpenseLineItem struct {
	ID          string        `json:"id"`
	Date        time.Time     `json:"date"`
	Description string        `json:"description"`
	Amount      float64       `json:"amount"`
	Receipt     AttachmentRef `json:"receipt"`
}

// ItemTotal sums the line item amounts.
func (r *ExpenseReport) ItemTotal() float64 {
	var total float64
	for _, item := range r.Items {
		total += item.Amount
	}
	return total
}
