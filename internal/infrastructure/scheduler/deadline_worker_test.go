package scheduler

import (
	"context"
	"sync"
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
	byStatus map[workflow.State][]*entity.Request
}

func (m *mockRequestRepo) Create(ctx context.Context, req *entity.Request) error { return nil }
func (m *mockRequestRepo) GetByID(ctx context.Context, id string) (*entity.Request, error) {
	return nil, nil
}
func (m *mockRequestRepo) UpdateStatus(ctx context.Context, id string, status workflow.State, expectedVersion int64) error {
	return nil
}
func (m *mockRequestRepo) SaveReport(ctx context.Context, id string, report *entity.ExpenseReport) error {
	return nil
}
func (m *mockRequestRepo) List(ctx context.Context, filter entity.RequestFilter) ([]*entity.Request, error) {
	return nil, nil
}
func (m *mockRequestRepo) ListByStatus(ctx context.Context, status workflow.State) ([]*entity.Request, error) {
	return m.byStatus[status], nil
}

type transitionCall struct {
	requestID string
	target    workflow.State
	userID    string
}

type mockEngine struct {
	mu    sync.Mutex
	calls []transitionCall
}

func (m *mockEngine) TransitionRequest(ctx context.Context, requestID string, target workflow.State, userID, reason string) (*entity.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, transitionCall{requestID: requestID, target: target, userID: userID})
	return &entity.Request{ID: requestID, Status: target}, nil
}
func (m *mockEngine) TransitionReimbursement(ctx context.Context, reimbID string, target workflow.State, userID, reason string) (*entity.Reimbursement, error) {
	return nil, nil
}
func (m *mockEngine) AvailableActions(ctx context.Context, kind workflow.Kind, entityID, userID string) ([]engine.Action, error) {
	return nil, nil
}
func (m *mockEngine) History(ctx context.Context, kind workflow.Kind, entityID string) ([]*entity.HistoryEntry, error) {
	return nil, nil
}

func (m *mockEngine) snapshot() []transitionCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]transitionCall(nil), m.calls...)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func day(d string) time.Time {
	t, _ := time.Parse("2006-01-02", d)
	return t
}

func runSweep(t *testing.T, repo *mockRequestRepo, eng *mockEngine, now time.Time, grace time.Duration) {
	t.Helper()

	w := NewDeadlineWorker(DeadlineWorkerConfig{
		PollInterval: time.Hour, // only the startup sweep runs
		ReportGrace:  grace,
	}, repo, eng, fixedClock{now: now}, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
}

func TestDeadlineWorker_StartsExecutionAtPeriodStart(t *testing.T) {
	repo := &mockRequestRepo{byStatus: map[workflow.State][]*entity.Request{
		workflow.StateFundsReleased: {
			{ID: "due", Status: workflow.StateFundsReleased, PeriodStart: day("2025-04-01"), PeriodEnd: day("2025-04-30")},
			{ID: "not-yet", Status: workflow.StateFundsReleased, PeriodStart: day("2025-05-01"), PeriodEnd: day("2025-05-31")},
		},
	}}
	eng := &mockEngine{}

	runSweep(t, repo, eng, day("2025-04-10"), 30*24*time.Hour)

	calls := eng.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "due", calls[0].requestID)
	assert.Equal(t, workflow.StateInExecution, calls[0].target)
	assert.Equal(t, entity.SystemActor.ID, calls[0].userID)
}

func TestDeadlineWorker_ClosesExecutionAfterPeriodEnd(t *testing.T) {
	repo := &mockRequestRepo{byStatus: map[workflow.State][]*entity.Request{
		workflow.StateInExecution: {
			{ID: "over", Status: workflow.StateInExecution, PeriodStart: day("2025-03-01"), PeriodEnd: day("2025-03-31")},
			{ID: "running", Status: workflow.StateInExecution, PeriodStart: day("2025-04-01"), PeriodEnd: day("2025-04-30")},
		},
	}}
	eng := &mockEngine{}

	runSweep(t, repo, eng, day("2025-04-10"), 30*24*time.Hour)

	calls := eng.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "over", calls[0].requestID)
	assert.Equal(t, workflow.StateAwaitingReport, calls[0].target)
}

func TestDeadlineWorker_DefaultsPastReportingGrace(t *testing.T) {
	repo := &mockRequestRepo{byStatus: map[workflow.State][]*entity.Request{
		workflow.StateAwaitingReport: {
			{ID: "late", Status: workflow.StateAwaitingReport, PeriodEnd: day("2025-02-28")},
			{ID: "in-grace", Status: workflow.StateAwaitingReport, PeriodEnd: day("2025-04-05")},
		},
	}}
	eng := &mockEngine{}

	runSweep(t, repo, eng, day("2025-04-10"), 30*24*time.Hour)

	calls := eng.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "late", calls[0].requestID)
	assert.Equal(t, workflow.StateInDefault, calls[0].target)
}

func TestDeadlineWorker_StartTwice(t *testing.T) {
	w := NewDeadlineWorker(DefaultDeadlineWorkerConfig(), &mockRequestRepo{}, &mockEngine{}, fixedClock{now: day("2025-04-10")}, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
