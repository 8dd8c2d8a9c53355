package entity

import (
	"time"

	"github.com/fpfinfo/sosfu/internal/domain/workflow"
)

// AttachmentRef is an opaque descriptor for a stored file. The core never
// inspects bytes; resolution goes through the attachment store collaborator.
type AttachmentRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Request is a fund-advance request (suprimento de fundos). It exclusively
// owns its history and its optional expense report.
type Request struct {
	ID            string         `json:"id"`
	RequesterID   string         `json:"requester_id"`
	Status        workflow.State `json:"status"`
	Version       int64          `json:"version"`
	Category      string         `json:"category"`
	CostCenter    string         `json:"cost_center"`
	Jurisdiction  string         `json:"jurisdiction"`
	Amount        float64        `json:"amount"`
	Justification string         `json:"justification"`
	PeriodStart   time.Time      `json:"period_start"`
	PeriodEnd     time.Time      `json:"period_end"`
	Attachment    *AttachmentRef `json:"attachment,omitempty"`
	Report        *ExpenseReport `json:"report,omitempty"`
	SubmittedAt   *time.Time     `json:"submitted_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Reimbursement is a standalone expense reimbursement (reembolso), the
// simpler of the two lifecycles.
type Reimbursement struct {
	ID          string         `json:"id"`
	RequesterID string         `json:"requester_id"`
	Status      workflow.State `json:"status"`
	Version     int64          `json:"version"`
	Description string         `json:"description"`
	Amount      float64        `json:"amount"`
	ExpenseDate time.Time      `json:"expense_date"`
	Receipt     *AttachmentRef `json:"receipt,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// RequestFilter narrows the read-side listing projection.
type RequestFilter struct {
	Status      workflow.State
	RequesterID string
	Category    string
	SortBy      string // submitted_at | amount | status
	Descending  bool
	Limit       int
	Offset      int
}
