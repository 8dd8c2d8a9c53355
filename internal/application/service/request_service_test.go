package service

import (
	"context"
	"testing"
	"time"

	"github.com/fpfinfo/sosfu/internal/application/engine"
	"github.com/fpfinfo/sosfu/internal/domain/entity"
	"github.com/fpfinfo/sosfu/internal/domain/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockRequestRepo struct {
	created        []*entity.Request
	getByIDFunc    func(ctx context.Context, id string) (*entity.Request, error)
	saveReportFunc func(ctx context.Context, id string, report *entity.ExpenseReport) error
	listFunc       func(ctx context.Context, filter entity.RequestFilter) ([]*entity.Request, error)
}

func (m *mockRequestRepo) Create(ctx context.Context, req *entity.Request) error {
	m.created = append(m.created, req)
	return nil
}
func (m *mockRequestRepo) GetByID(ctx context.Context, id string) (*entity.Request, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}
func (m *mockRequestRepo) UpdateStatus(ctx context.Context, id string, status workflow.State, expectedVersion int64) error {
	return nil
}
func (m *mockRequestRepo) SaveReport(ctx context.Context, id string, report *entity.ExpenseReport) error {
	if m.saveReportFunc != nil {
		return m.saveReportFunc(ctx, id, report)
	}
	return nil
}
func (m *mockRequestRepo) List(ctx context.Context, filter entity.RequestFilter) ([]*entity.Request, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	return nil, nil
}
func (m *mockRequestRepo) ListByStatus(ctx context.Context, status workflow.State) ([]*entity.Request, error) {
	return nil, nil
}

type mockEngine struct {
	transitionRequestFunc func(ctx context.Context, requestID string, target workflow.State, userID, reason string) (*entity.Request, error)
	transitionReimbFunc   func(ctx context.Context, reimbID string, target workflow.State, userID, reason string) (*entity.Reimbursement, error)
}

func (m *mockEngine) TransitionRequest(ctx context.Context, requestID string, target workflow.State, userID, reason string) (*entity.Request, error) {
	if m.transitionRequestFunc != nil {
		return m.transitionRequestFunc(ctx, requestID, target, userID, reason)
	}
	return &entity.Request{ID: requestID, Status: target}, nil
}
func (m *mockEngine) TransitionReimbursement(ctx context.Context, reimbID string, target workflow.State, userID, reason string) (*entity.Reimbursement, error) {
	if m.transitionReimbFunc != nil {
		return m.transitionReimbFunc(ctx, reimbID, target, userID, reason)
	}
	return &entity.Reimbursement{ID: reimbID, Status: target}, nil
}
func (m *mockEngine) AvailableActions(ctx context.Context, kind workflow.Kind, entityID, userID string) ([]engine.Action, error) {
	return nil, nil
}
func (m *mockEngine) History(ctx context.Context, kind workflow.Kind, entityID string) ([]*entity.HistoryEntry, error) {
	return nil, nil
}

type mockTxManager struct{}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *mockTxManager) AfterCommit(ctx context.Context, fn func()) { fn() }

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func newRequestService(repo *mockRequestRepo, eng *mockEngine) RequestService {
	return NewRequestService(repo, eng, &mockTxManager{}, fixedClock{now: testNow}, nil, zap.NewNop())
}

func validDraftInput() CreateRequestInput {
	return CreateRequestInput{
		Category:      "material de consumo",
		CostCenter:    "CC-104",
		Jurisdiction:  "Belém",
		Amount:        1500.00,
		Justification: "urgent supplies for the district office",
		PeriodStart:   "2025-04-01",
		PeriodEnd:     "2025-04-30",
	}
}

func TestCreateDraft_Success(t *testing.T) {
	repo := &mockRequestRepo{}
	svc := newRequestService(repo, &mockEngine{})

	req, err := svc.CreateDraft(context.Background(), "maria", validDraftInput())
	require.NoError(t, err)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, "maria", req.RequesterID)
	assert.Equal(t, workflow.StateDraft, req.Status)
	assert.Equal(t, int64(1), req.Version)
	assert.Equal(t, 1500.00, req.Amount)
	assert.Equal(t, testNow, req.CreatedAt)
	assert.Nil(t, req.SubmittedAt)
	require.Len(t, repo.created, 1)
}

func TestCreateDraft_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *CreateRequestInput)
	}{
		{"zero amount", func(in *CreateRequestInput) { in.Amount = 0 }},
		{"negative amount", func(in *CreateRequestInput) { in.Amount = -10 }},
		{"blank category", func(in *CreateRequestInput) { in.Category = "  " }},
		{"blank justification", func(in *CreateRequestInput) { in.Justification = "" }},
		{"missing period start", func(in *CreateRequestInput) { in.PeriodStart = "" }},
		{"malformed period end", func(in *CreateRequestInput) { in.PeriodEnd = "30/04/2025" }},
		{"inverted period", func(in *CreateRequestInput) { in.PeriodStart, in.PeriodEnd = in.PeriodEnd, in.PeriodStart }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRequestRepo{}
			svc := newRequestService(repo, &mockEngine{})

			input := validDraftInput()
			tt.mutate(&input)

			_, err := svc.CreateDraft(context.Background(), "maria", input)
			assert.ErrorIs(t, err, workflow.ErrValidation)
			assert.Empty(t, repo.created)
		})
	}
}

func TestSubmit_DelegatesToEngine(t *testing.T) {
	repo := &mockRequestRepo{getByIDFunc: func(ctx context.Context, id string) (*entity.Request, error) {
		return &entity.Request{ID: id, RequesterID: "maria", Status: workflow.StateDraft}, nil
	}}

	var gotTarget workflow.State
	eng := &mockEngine{transitionRequestFunc: func(ctx context.Context, requestID string, target workflow.State, userID, reason string) (*entity.Request, error) {
		gotTarget = target
		return &entity.Request{ID: requestID, Status: target}, nil
	}}

	svc := newRequestService(repo, eng)
	req, err := svc.Submit(context.Background(), "req-001", "maria")
	require.NoError(t, err)
	assert.Equal(t, workflow.StateSubmitted, gotTarget)
	assert.Equal(t, workflow.StateSubmitted, req.Status)
}

func TestSubmit_RejectsForeignRequest(t *testing.T) {
	repo := &mockRequestRepo{getByIDFunc: func(ctx context.Context, id string) (*entity.Request, error) {
		return &entity.Request{ID: id, RequesterID: "someone-else", Status: workflow.StateDraft}, nil
	}}

	svc := newRequestService(repo, &mockEngine{})
	_, err := svc.Submit(context.Background(), "req-001", "maria")
	assert.ErrorIs(t, err, workflow.ErrValidation)
}

func validReportInput() ReportInput {
	items := []ReportItemInput{
		{Date: "2025-04-02", Description: "fuel", Amount: 85.50, Receipt: entity.AttachmentRef{ID: "att-1", Name: "fuel.pdf"}},
		{Date: "2025-04-05", Description: "toner", Amount: 60.00, Receipt: entity.AttachmentRef{ID: "att-2", Name: "toner.jpg"}},
		{Date: "2025-04-11", Description: "courier", Amount: 95.25, Receipt: entity.AttachmentRef{ID: "att-3", Name: "courier.pdf"}},
		{Date: "2025-04-15", Description: "cleaning supplies", Amount: 65.00, Receipt: entity.AttachmentRef{ID: "att-4", Name: "cleaning.png"}},
		{Date: "2025-04-22", Description: "printer repair", Amount: 850.00, Receipt: entity.AttachmentRef{ID: "att-5", Name: "repair.pdf"}},
	}
	return ReportInput{DeclaredTotal: 1155.75, Items: items}
}

func TestSubmitReport_Success(t *testing.T) {
	repo := &mockRequestRepo{getByIDFunc: func(ctx context.Context, id string) (*entity.Request, error) {
		return &entity.Request{ID: id, RequesterID: "maria", Status: workflow.StateAwaitingReport}, nil
	}}

	var savedReport *entity.ExpenseReport
	repo.saveReportFunc = func(ctx context.Context, id string, report *entity.ExpenseReport) error {
		savedReport = report
		return nil
	}

	var gotTarget workflow.State
	eng := &mockEngine{transitionRequestFunc: func(ctx context.Context, requestID string, target workflow.State, userID, reason string) (*entity.Request, error) {
		gotTarget = target
		return &entity.Request{ID: requestID, RequesterID: "maria", Status: target}, nil
	}}

	svc := newRequestService(repo, eng)
	req, err := svc.SubmitReport(context.Background(), "req-001", "maria", validReportInput())
	require.NoError(t, err)

	assert.Equal(t, workflow.StateReportSubmitted, gotTarget)
	require.NotNil(t, savedReport)
	assert.Equal(t, 1155.75, savedReport.DeclaredTotal)
	assert.Len(t, savedReport.Items, 5)
	assert.InDelta(t, 1155.75, savedReport.ItemTotal(), 0.001)
	for _, item := range savedReport.Items {
		assert.NotEmpty(t, item.ID)
	}
	require.NotNil(t, req.Report)
}

func TestSubmitReport_TotalMismatch(t *testing.T) {
	repo := &mockRequestRepo{getByIDFunc: func(ctx context.Context, id string) (*entity.Request, error) {
		return &entity.Request{ID: id, RequesterID: "maria", Status: workflow.StateAwaitingReport}, nil
	}}

	svc := newRequestService(repo, &mockEngine{})

	input := validReportInput()
	input.DeclaredTotal = 1200.00

	_, err := svc.SubmitReport(context.Background(), "req-001", "maria", input)
	require.Error(t, err)
	assert.ErrorIs(t, err, workflow.ErrValidation)
	assert.Contains(t, err.Error(), "does not match")
}

func TestSubmitReport_ItemValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *ReportInput)
	}{
		{"no items", func(in *ReportInput) { in.Items = nil; in.DeclaredTotal = 0 }},
		{"zero item amount", func(in *ReportInput) { in.Items[0].Amount = 0; in.DeclaredTotal = 1070.25 }},
		{"bad item date", func(in *ReportInput) { in.Items[1].Date = "05-04-2025" }},
		{"missing receipt", func(in *ReportInput) { in.Items[2].Receipt = entity.AttachmentRef{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRequestRepo{getByIDFunc: func(ctx context.Context, id string) (*entity.Request, error) {
				return &entity.Request{ID: id, RequesterID: "maria", Status: workflow.StateAwaitingReport}, nil
			}}

			saveCalled := false
			repo.saveReportFunc = func(ctx context.Context, id string, report *entity.ExpenseReport) error {
				saveCalled = true
				return nil
			}

			svc := newRequestService(repo, &mockEngine{})

			input := validReportInput()
			tt.mutate(&input)

			_, err := svc.SubmitReport(context.Background(), "req-001", "maria", input)
			assert.ErrorIs(t, err, workflow.ErrValidation)
			assert.False(t, saveCalled, "nothing may be stored on a rejected report")
		})
	}
}

func TestCorrectReport_TargetsCorrectedState(t *testing.T) {
	repo := &mockRequestRepo{getByIDFunc: func(ctx context.Context, id string) (*entity.Request, error) {
		return &entity.Request{ID: id, RequesterID: "maria", Status: workflow.StateReportReturned}, nil
	}}

	var gotTarget workflow.State
	eng := &mockEngine{transitionRequestFunc: func(ctx context.Context, requestID string, target workflow.State, userID, reason string) (*entity.Request, error) {
		gotTarget = target
		return &entity.Request{ID: requestID, RequesterID: "maria", Status: target}, nil
	}}

	svc := newRequestService(repo, eng)

	// Correction replaces the item list wholesale with a recomputed total.
	input := ReportInput{
		DeclaredTotal: 145.50,
		Items: []ReportItemInput{
			{Date: "2025-04-02", Description: "fuel", Amount: 85.50, Receipt: entity.AttachmentRef{ID: "att-1"}},
			{Date: "2025-04-05", Description: "toner", Amount: 60.00, Receipt: entity.AttachmentRef{ID: "att-2"}},
		},
	}

	req, err := svc.CorrectReport(context.Background(), "req-001", "maria", input)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateReportCorrected, gotTarget)
	assert.Len(t, req.Report.Items, 2)
}

func TestCorrectReport_IllegalStateBubblesFromEngine(t *testing.T) {
	repo := &mockRequestRepo{getByIDFunc: func(ctx context.Context, id string) (*entity.Request, error) {
		return &entity.Request{ID: id, RequesterID: "maria", Status: workflow.StateInExecution}, nil
	}}

	eng := &mockEngine{transitionRequestFunc: func(ctx context.Context, requestID string, target workflow.State, userID, reason string) (*entity.Request, error) {
		return nil, workflow.ErrIllegalTransition
	}}

	svc := newRequestService(repo, eng)
	_, err := svc.CorrectReport(context.Background(), "req-001", "maria", validReportInput())
	assert.ErrorIs(t, err, workflow.ErrIllegalTransition)
}

func TestList_FilterValidation(t *testing.T) {
	repo := &mockRequestRepo{}
	svc := newRequestService(repo, &mockEngine{})

	_, err := svc.List(context.Background(), entity.RequestFilter{SortBy: "password"})
	assert.ErrorIs(t, err, workflow.ErrValidation)

	_, err = svc.List(context.Background(), entity.RequestFilter{Status: "NOT_A_STATE"})
	assert.ErrorIs(t, err, workflow.ErrValidation)
}

func TestList_DefaultsLimit(t *testing.T) {
	var gotFilter entity.RequestFilter
	repo := &mockRequestRepo{listFunc: func(ctx context.Context, filter entity.RequestFilter) ([]*entity.Request, error) {
		gotFilter = filter
		return []*entity.Request{}, nil
	}}

	svc := newRequestService(repo, &mockEngine{})
	_, err := svc.List(context.Background(), entity.RequestFilter{Status: workflow.StateSubmitted, SortBy: "amount", Limit: -5, Offset: -1})
	require.NoError(t, err)
	assert.Equal(t, 50, gotFilter.Limit)
	assert.Equal(t, 0, gotFilter.Offset)
}

func TestGet_NotFound(t *testing.T) {
	svc := newRequestService(&mockRequestRepo{}, &mockEngine{})
	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}
