package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fpfinfo/sosfu/internal/application/port"
	"github.com/fpfinfo/sosfu/internal/domain/entity"
	"github.com/fpfinfo/sosfu/internal/domain/workflow"
	"github.com/fpfinfo/sosfu/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Append writes one audit trail entry
func (r *HistoryRepository) Append(ctx context.Context, entry *entity.HistoryEntry) error {
	query := `
		INSERT INTO status_history (
			entity_kind, entity_id, previous_status, new_status,
			actor_id, actor_role, reason, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		entry.EntityKind.String(),
		entry.EntityID,
		entry.PreviousStatus.String(),
		entry.NewStatus.String(),
		entry.ActorID,
		entry.ActorRole.String(),
		entry.Reason,
		entry.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to append history entry",
			zap.String("entity_id", entry.EntityID), zap.Error(err))
		return fmt.Errorf("failed to append history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = id
	return nil
}

// ListFor retrieves the ordered audit trail for one entity. Insertion
// order breaks timestamp ties.
func (r *HistoryRepository) ListFor(ctx context.Context, kind workflow.Kind, entityID string) ([]*entity.HistoryEntry, error) {
	query := `
		SELECT id, entity_kind, entity_id, previous_status, new_status,
			actor_id, actor_role, reason, timestamp
		FROM status_history
		WHERE entity_kind = ? AND entity_id = ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, kind.String(), entityID)
	if err != nil {
		r.logger.Error("Failed to list history",
			zap.String("entity_id", entityID), zap.Error(err))
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []*entity.HistoryEntry
	for rows.Next() {
		var entry entity.HistoryEntry
		var kindStr, previous, next, role string
		err := rows.Scan(
			&entry.ID,
			&kindStr,
			&entry.EntityID,
			&previous,
			&next,
			&entry.ActorID,
			&role,
			&entry.Reason,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entry.EntityKind = workflow.Kind(kindStr)
		entry.PreviousStatus = workflow.State(previous)
		entry.NewStatus = workflow.State(next)
		entry.ActorRole = workflow.Role(role)
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
