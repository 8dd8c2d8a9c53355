package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/fpfinfo/sosfu/internal/application/engine"
	"github.com/fpfinfo/sosfu/internal/application/port"
	"github.com/fpfinfo/sosfu/internal/domain/entity"
	"github.com/fpfinfo/sosfu/internal/domain/workflow"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateReimbursementInput carries the fields of a new reimbursement draft.
type CreateReimbursementInput struct {
	Description string                `json:"description"`
	Amount      float64               `json:"amount"`
	ExpenseDate string                `json:"expense_date"` // 2006-01-02
	Receipt     *entity.AttachmentRef `json:"receipt,omitempty"`
}

// ReimbursementService covers the standalone reimbursement lifecycle.
type ReimbursementService interface {
	CreateDraft(ctx context.Context, userID string, input CreateReimbursementInput) (*entity.Reimbursement, error)
	Get(ctx context.Context, reimbID string) (*entity.Reimbursement, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Reimbursement, error)

	// Submit moves the draft (or a corrected return) into PENDING.
	Submit(ctx context.Context, reimbID, userID string) (*entity.Reimbursement, error)
}

type reimbursementService struct {
	repo   port.ReimbursementRepository
	engine engine.Engine
	clock  port.Clock
	logger *zap.Logger
}

// NewReimbursementService creates the reimbursement service.
func NewReimbursementService(repo port.ReimbursementRepository, eng engine.Engine, clock port.Clock, logger *zap.Logger) ReimbursementService {
	return &reimbursementService{repo: repo, engine: eng, clock: clock, logger: logger}
}

func (s *reimbursementService) CreateDraft(ctx context.Context, userID string, input CreateReimbursementInput) (*entity.Reimbursement, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: requester id is required", workflow.ErrValidation)
	}
	if input.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than zero", workflow.ErrValidation)
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, fmt.Errorf("%w: description is required", workflow.ErrValidation)
	}

	expenseDate, err := parseDate(input.ExpenseDate)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid expense date: %v", workflow.ErrValidation, err)
	}
	if expenseDate.After(s.clock.Now()) {
		return nil, fmt.Errorf("%w: expense date cannot be in the future", workflow.ErrValidation)
	}

	now := s.clock.Now()
	reimb := &entity.Reimbursement{
		ID:          uuid.NewString(),
		RequesterID: userID,
		Status:      workflow.KindReimbursement.Initial(),
		Version:     1,
		Description: strings.TrimSpace(input.Description),
		Amount:      input.Amount,
		ExpenseDate: expenseDate,
		Receipt:     input.Receipt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, reimb); err != nil {
		return nil, fmt.Errorf("create reimbursement: %w", err)
	}

	s.logger.Info("Reimbursement draft created",
		zap.String("reimbursement_id", reimb.ID),
		zap.String("requester", userID),
		zap.Float64("amount", reimb.Amount))
	return reimb, nil
}

func (s *reimbursementService) Get(ctx context.Context, reimbID string) (*entity.Reimbursement, error) {
	reimb, err := s.repo.GetByID(ctx, reimbID)
	if err != nil {
		return nil, fmt.Errorf("load reimbursement: %w", err)
	}
	if reimb == nil {
		return nil, fmt.Errorf("%w: reimbursement %s", workflow.ErrNotFound, reimbID)
	}
	return reimb, nil
}

func (s *reimbursementService) List(ctx context.Context, limit, offset int) ([]*entity.Reimbursement, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	items, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list reimbursements: %w", err)
	}
	return items, nil
}

func (s *reimbursementService) Submit(ctx context.Context, reimbID, userID string) (*entity.Reimbursement, error) {
	reimb, err := s.Get(ctx, reimbID)
	if err != nil {
		return nil, err
	}
	if reimb.RequesterID != userID {
		return nil, fmt.Errorf("%w: reimbursement %s does not belong to user %s", workflow.ErrValidation, reimbID, userID)
	}
	return s.engine.TransitionReimbursement(ctx, reimbID, workflow.StatePending, userID, "")
}
