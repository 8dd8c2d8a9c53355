package port

import (
	"context"

	"github.com/fpfinfo/sosfu/internal/domain/entity"
	"github.com/fpfinfo/sosfu/internal/domain/workflow"
)

// RequestRepository defines persistence operations for fund-advance requests.
// GetByID returns (nil, nil) when the id does not resolve; callers map that
// to the typed not-found error at their own boundary.
type RequestRepository interface {
	Create(ctx context.Context, req *entity.Request) error
	GetByID(ctx context.Context, id string) (*entity.Request, error)

	// UpdateStatus moves the request to status iff the stored version still
	// equals expectedVersion, incrementing it. A lost race returns
	// workflow.ErrVersionConflict.
	UpdateStatus(ctx context.Context, id string, status workflow.State, expectedVersion int64) error

	// SaveReport replaces the embedded expense report wholesale.
	SaveReport(ctx context.Context, id string, report *entity.ExpenseReport) error

	List(ctx context.Context, filter entity.RequestFilter) ([]*entity.Request, error)
	ListByStatus(ctx context.Context, status workflow.State) ([]*entity.Request, error)
}

// ReimbursementRepository defines persistence operations for reimbursements
type ReimbursementRepository interface {
	Create(ctx context.Context, reimb *entity.Reimbursement) error
	GetByID(ctx context.Context, id string) (*entity.Reimbursement, error)
	UpdateStatus(ctx context.Context, id string, status workflow.State, expectedVersion int64) error
	List(ctx context.Context, limit, offset int) ([]*entity.Reimbursement, error)
}

// HistoryRepository is the append-only audit trail. Append is called only
// by the status engine, never by interface code.
type HistoryRepository interface {
	Append(ctx context.Context, entry *entity.HistoryEntry) error
	ListFor(ctx context.Context, kind workflow.Kind, entityID string) ([]*entity.HistoryEntry, error)
}

// MessageRepository stores the flat message log the conversation views are
// rebuilt from.
type MessageRepository interface {
	Create(ctx context.Context, msg *entity.Message) error
	ListByConversation(ctx context.Context, conversationID string) ([]*entity.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID string) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// AfterCommit runs fn once the transaction carried by the context has
	// committed, or immediately when none is in flight. A rolled-back
	// transaction drops its hooks.
	AfterCommit(ctx context.Context, fn func())
}
