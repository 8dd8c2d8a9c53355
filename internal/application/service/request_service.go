package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/fpfinfo/sosfu/internal/application/dispatcher"
	"github.com/fpfinfo/sosfu/internal/application/engine"
	"github.com/fpfinfo/sosfu/internal/application/port"
	"github.com/fpfinfo/sosfu/internal/domain/entity"
	"github.com/fpfinfo/sosfu/internal/domain/event"
	"github.com/fpfinfo/sosfu/internal/domain/workflow"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateRequestInput carries the fields of a new fund-advance draft.
type CreateRequestInput struct {
	Category      string               `json:"category"`
	CostCenter    string               `json:"cost_center"`
	Jurisdiction  string               `json:"jurisdiction"`
	Amount        float64              `json:"amount"`
	Justification string               `json:"justification"`
	PeriodStart   string               `json:"period_start"` // 2006-01-02
	PeriodEnd     string               `json:"period_end"`
	Attachment    *entity.AttachmentRef `json:"attachment,omitempty"`
}

// ReportItemInput is one receipted expense in a report submission.
type ReportItemInput struct {
	Date        string               `json:"date"` // 2006-01-02
	Description string               `json:"description"`
	Amount      float64              `json:"amount"`
	Receipt     entity.AttachmentRef `json:"receipt"`
}

// ReportInput is a full expense-report submission or correction. Items
// always replace the stored list wholesale.
type ReportInput struct {
	DeclaredTotal float64           `json:"declared_total"`
	Notes         string            `json:"notes"`
	Items         []ReportItemInput `json:"items"`
}

// RequestService covers the request-side operations around the status
// engine: draft creation, report handling and the read-side views.
type RequestService interface {
	CreateDraft(ctx context.Context, userID string, input CreateRequestInput) (*entity.Request, error)
	Get(ctx context.Context, requestID string) (*entity.Request, error)
	List(ctx context.Context, filter entity.RequestFilter) ([]*entity.Request, error)

	// Submit moves the draft (or an adjusted return) into SUBMITTED.
	Submit(ctx context.Context, requestID, userID string) (*entity.Request, error)

	// SubmitReport stores the expense report and moves the request to
	// REPORT_SUBMITTED in one unit.
	SubmitReport(ctx context.Context, requestID, userID string, input ReportInput) (*entity.Request, error)

	// CorrectReport replaces the returned report and moves the request to
	// REPORT_CORRECTED in one unit.
	CorrectReport(ctx context.Context, requestID, userID string, input ReportInput) (*entity.Request, error)
}

type requestService struct {
	repo       port.RequestRepository
	engine     engine.Engine
	txManager  port.TransactionManager
	clock      port.Clock
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger
}

// NewRequestService creates the request service.
func NewRequestService(
	repo port.RequestRepository,
	eng engine.Engine,
	txManager port.TransactionManager,
	clock port.Clock,
	disp dispatcher.Dispatcher,
	logger *zap.Logger,
) RequestService {
	return &requestService{
		repo:       repo,
		engine:     eng,
		txManager:  txManager,
		clock:      clock,
		dispatcher: disp,
		logger:     logger,
	}
}

func (s *requestService) CreateDraft(ctx context.Context, userID string, input CreateRequestInput) (*entity.Request, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: requester id is required", workflow.ErrValidation)
	}
	if input.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than zero", workflow.ErrValidation)
	}
	if strings.TrimSpace(input.Category) == "" {
		return nil, fmt.Errorf("%w: category is required", workflow.ErrValidation)
	}
	if strings.TrimSpace(input.Justification) == "" {
		return nil, fmt.Errorf("%w: justification is required", workflow.ErrValidation)
	}

	periodStart, err := parseDate(input.PeriodStart)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid period start: %v", workflow.ErrValidation, err)
	}
	periodEnd, err := parseDate(input.PeriodEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid period end: %v", workflow.ErrValidation, err)
	}
	if !periodEnd.After(periodStart) {
		return nil, fmt.Errorf("%w: usage period must end after it starts", workflow.ErrValidation)
	}

	now := s.clock.Now()
	req := &entity.Request{
		ID:            uuid.NewString(),
		RequesterID:   userID,
		Status:        workflow.KindRequest.Initial(),
		Version:       1,
		Category:      strings.TrimSpace(input.Category),
		CostCenter:    strings.TrimSpace(input.CostCenter),
		Jurisdiction:  strings.TrimSpace(input.Jurisdiction),
		Amount:        input.Amount,
		Justification: strings.TrimSpace(input.Justification),
		PeriodStart:   periodStart,
		PeriodEnd:     periodEnd,
		Attachment:    input.Attachment,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	s.logger.Info("Request draft created",
		zap.String("request_id", req.ID),
		zap.String("requester", userID),
		zap.Float64("amount", req.Amount))
	return req, nil
}

func (s *requestService) Get(ctx context.Context, requestID string) (*entity.Request, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: request %s", workflow.ErrNotFound, requestID)
	}
	return req, nil
}

var listSortKeys = map[string]bool{
	"": true, "submitted_at": true, "amount": true, "status": true, "created_at": true,
}

func (s *requestService) List(ctx context.Context, filter entity.RequestFilter) ([]*entity.Request, error) {
	if !listSortKeys[filter.SortBy] {
		return nil, fmt.Errorf("%w: unknown sort key %q", workflow.ErrValidation, filter.SortBy)
	}
	if filter.Status != "" && !workflow.KindRequest.IsValidState(filter.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", workflow.ErrValidation, filter.Status)
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	requests, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return requests, nil
}

func (s *requestService) Submit(ctx context.Context, requestID, userID string) (*entity.Request, error) {
	if err := s.checkOwnership(ctx, requestID, userID); err != nil {
		return nil, err
	}
	return s.engine.TransitionRequest(ctx, requestID, workflow.StateSubmitted, userID, "")
}

func (s *requestService) SubmitReport(ctx context.Context, requestID, userID string, input ReportInput) (*entity.Request, error) {
	return s.storeReport(ctx, requestID, userID, input, workflow.StateReportSubmitted, event.TypeReportSubmitted)
}

func (s *requestService) CorrectReport(ctx context.Context, requestID, userID string, input ReportInput) (*entity.Request, error) {
	return s.storeReport(ctx, requestID, userID, input, workflow.StateReportCorrected, event.TypeReportCorrected)
}

// storeReport persists the (replacement) report and runs the status
// transition in one transaction; the engine's inner transaction joins the
// outer one through the context.
func (s *requestService) storeReport(ctx context.Context, requestID, userID string, input ReportInput, target workflow.State, evtType event.Type) (*entity.Request, error) {
	if err := s.checkOwnership(ctx, requestID, userID); err != nil {
		return nil, err
	}

	report, err := s.buildReport(requestID, input)
	if err != nil {
		return nil, err
	}

	var updated *entity.Request
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.SaveReport(txCtx, requestID, report); err != nil {
			return fmt.Errorf("save report: %w", err)
		}
		req, err := s.engine.TransitionRequest(txCtx, requestID, target, userID, "")
		if err != nil {
			return err
		}
		updated = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated.Report = report

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.New(evtType, workflow.KindRequest, requestID, map[string]interface{}{
			"requester_id":   updated.RequesterID,
			"declared_total": report.DeclaredTotal,
			"item_count":     len(report.Items),
		}))
	}

	s.logger.Info("Expense report stored",
		zap.String("request_id", requestID),
		zap.String("status", target.String()),
		zap.Float64("declared_total", report.DeclaredTotal),
		zap.Int("items", len(report.Items)))
	return updated, nil
}

func (s *requestService) buildReport(requestID string, input ReportInput) (*entity.ExpenseReport, error) {
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("%w: an expense report needs at least one item", workflow.ErrValidation)
	}

	items := make([]*entity.ExpenseLineItem, 0, len(input.Items))
	var sum float64
	for i, in := range input.Items {
		if in.Amount <= 0 {
			return nil, fmt.Errorf("%w: item %d amount must be greater than zero", workflow.ErrValidation, i+1)
		}
		date, err := parseDate(in.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d has an invalid date: %v", workflow.ErrValidation, i+1, err)
		}
		if strings.TrimSpace(in.Receipt.ID) == "" {
			return nil, fmt.Errorf("%w: item %d is missing its receipt", workflow.ErrValidation, i+1)
		}
		items = append(items, &entity.ExpenseLineItem{
			ID:          uuid.NewString(),
			Date:        date,
			Description: strings.TrimSpace(in.Description),
			Amount:      in.Amount,
			Receipt:     in.Receipt,
		})
		sum += in.Amount
	}

	// Compare at cent precision so float accumulation noise does not
	// reject an honest total.
	if math.Round(sum*100) != math.Round(input.DeclaredTotal*100) {
		return nil, fmt.Errorf("%w: declared total %.2f does not match item sum %.2f",
			workflow.ErrValidation, input.DeclaredTotal, sum)
	}

	return &entity.ExpenseReport{
		RequestID:     requestID,
		DeclaredTotal: input.DeclaredTotal,
		Notes:         strings.TrimSpace(input.Notes),
		Items:         items,
		SubmittedAt:   s.clock.Now(),
	}, nil
}

// checkOwnership rejects requester operations on someone else's request.
// The transition table already keeps administrators out of these moves.
func (s *requestService) checkOwnership(ctx context.Context, requestID, userID string) error {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("load request: %w", err)
	}
	if req == nil {
		return fmt.Errorf("%w: request %s", workflow.ErrNotFound, requestID)
	}
	if req.RequesterID != userID {
		return fmt.Errorf("%w: request %s does not belong to user %s", workflow.ErrValidation, requestID, userID)
	}
	return nil
}
