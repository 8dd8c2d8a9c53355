package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/fpfinfo/sosfu/internal/application/port"
	"github.com/fpfinfo/sosfu/internal/domain/entity"
	"github.com/fpfinfo/sosfu/internal/domain/workflow"
	"github.com/fpfinfo/sosfu/internal/infrastructure/persistence/repository"
	"github.com/fpfinfo/sosfu/internal/infrastructure/persistence/sqlite"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const requestsDDL = `
	CREATE TABLE requests (
		id              TEXT PRIMARY KEY,
		requester_id    TEXT NOT NULL,
		status          TEXT NOT NULL,
		version         INTEGER NOT NULL DEFAULT 1,
		category        TEXT NOT NULL,
		cost_center     TEXT NOT NULL DEFAULT '',
		jurisdiction    TEXT NOT NULL DEFAULT '',
		amount          REAL NOT NULL,
		justification   TEXT NOT NULL DEFAULT '',
		period_start    DATETIME NOT NULL,
		period_end      DATETIME NOT NULL,
		attachment_json TEXT,
		report_json     TEXT,
		submitted_at    DATETIME,
		created_at      DATETIME NOT NULL,
		updated_at      DATETIME NOT NULL
	)
`

const historyDDL = `
	CREATE TABLE status_history (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_kind     TEXT NOT NULL,
		entity_id       TEXT NOT NULL,
		previous_status TEXT NOT NULL,
		new_status      TEXT NOT NULL,
		actor_id        TEXT NOT NULL,
		actor_role      TEXT NOT NULL,
		reason          TEXT NOT NULL DEFAULT '',
		timestamp       DATETIME NOT NULL
	)
`

type txFixture struct {
	manager  *sqlite.DB
	requests port.RequestRepository
	history  port.HistoryRepository
}

// newTxFixture opens an in-memory database. Passing false for withHistory
// leaves the status_history table out so an Append fails mid-transaction.
func newTxFixture(t *testing.T, withHistory bool) *txFixture {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(requestsDDL)
	require.NoError(t, err)
	if withHistory {
		_, err = db.Exec(historyDDL)
		require.NoError(t, err)
	}

	logger := zap.NewNop()
	return &txFixture{
		manager:  sqlite.NewDB(db, logger),
		requests: repository.NewRequestRepository(db, logger),
		history:  repository.NewHistoryRepository(db, logger),
	}
}

func (f *txFixture) seedRequest(t *testing.T) *entity.Request {
	t.Helper()

	now := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	req := &entity.Request{
		ID:            "req-001",
		RequesterID:   "maria",
		Status:        workflow.StateDraft,
		Version:       1,
		Category:      "material de consumo",
		Amount:        1500.00,
		Justification: "urgent supplies",
		PeriodStart:   time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:     time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, f.requests.Create(context.Background(), req))
	return req
}

func historyEntry(previous, next workflow.State) *entity.HistoryEntry {
	return &entity.HistoryEntry{
		EntityKind:     workflow.KindRequest,
		EntityID:       "req-001",
		PreviousStatus: previous,
		NewStatus:      next,
		ActorID:        "maria",
		ActorRole:      workflow.RoleRequester,
		Timestamp:      time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC),
	}
}

func TestWithTransaction_CommitPersistsBothWrites(t *testing.T) {
	f := newTxFixture(t, true)
	f.seedRequest(t)
	ctx := context.Background()

	err := f.manager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := f.requests.UpdateStatus(txCtx, "req-001", workflow.StateSubmitted, 1); err != nil {
			return err
		}
		return f.history.Append(txCtx, historyEntry(workflow.StateDraft, workflow.StateSubmitted))
	})
	require.NoError(t, err)

	req, err := f.requests.GetByID(ctx, "req-001")
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, workflow.StateSubmitted, req.Status)
	assert.Equal(t, int64(2), req.Version)

	entries, err := f.history.ListFor(ctx, workflow.KindRequest, "req-001")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, workflow.StateSubmitted, entries[0].NewStatus)
}

func TestWithTransaction_AppendFailureRevertsStatus(t *testing.T) {
	f := newTxFixture(t, false)
	f.seedRequest(t)
	ctx := context.Background()

	err := f.manager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := f.requests.UpdateStatus(txCtx, "req-001", workflow.StateSubmitted, 1); err != nil {
			return err
		}
		return f.history.Append(txCtx, historyEntry(workflow.StateDraft, workflow.StateSubmitted))
	})
	require.Error(t, err)

	// The status update succeeded inside the transaction; the failed
	// append must take it down too.
	req, err := f.requests.GetByID(ctx, "req-001")
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, workflow.StateDraft, req.Status)
	assert.Equal(t, int64(1), req.Version)
	assert.Nil(t, req.SubmittedAt)
}

func TestWithTransaction_NestedScopeJoinsOuter(t *testing.T) {
	f := newTxFixture(t, true)
	f.seedRequest(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := f.manager.WithTransaction(ctx, func(outerCtx context.Context) error {
		inner := f.manager.WithTransaction(outerCtx, func(txCtx context.Context) error {
			if err := f.requests.UpdateStatus(txCtx, "req-001", workflow.StateSubmitted, 1); err != nil {
				return err
			}
			return f.history.Append(txCtx, historyEntry(workflow.StateDraft, workflow.StateSubmitted))
		})
		require.NoError(t, inner)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// The inner scope joined the outer transaction, so its writes roll
	// back with it.
	req, err := f.requests.GetByID(ctx, "req-001")
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, workflow.StateDraft, req.Status)
	assert.Equal(t, int64(1), req.Version)

	entries, err := f.history.ListFor(ctx, workflow.KindRequest, "req-001")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAfterCommit_ImmediateWithoutTransaction(t *testing.T) {
	f := newTxFixture(t, true)

	ran := false
	f.manager.AfterCommit(context.Background(), func() { ran = true })
	assert.True(t, ran)
}

func TestAfterCommit_DeferredUntilOuterCommit(t *testing.T) {
	f := newTxFixture(t, true)

	ran := false
	err := f.manager.WithTransaction(context.Background(), func(outerCtx context.Context) error {
		inner := f.manager.WithTransaction(outerCtx, func(txCtx context.Context) error {
			f.manager.AfterCommit(txCtx, func() { ran = true })
			return nil
		})
		require.NoError(t, inner)
		assert.False(t, ran, "hook must wait for the outermost commit")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestAfterCommit_DroppedOnRollback(t *testing.T) {
	f := newTxFixture(t, true)
	boom := errors.New("boom")

	ran := false
	err := f.manager.WithTransaction(context.Background(), func(txCtx context.Context) error {
		f.manager.AfterCommit(txCtx, func() { ran = true })
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)
}
