package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/fpfinfo/sosfu/internal/application/port"
	"github.com/fpfinfo/sosfu/internal/domain/entity"
	"github.com/fpfinfo/sosfu/internal/domain/workflow"
	"github.com/fpfinfo/sosfu/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// ReimbursementRepository implements port.ReimbursementRepository
type ReimbursementRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReimbursementRepository creates a new reimbursement repository
func NewReimbursementRepository(db *sql.DB, logger *zap.Logger) port.ReimbursementRepository {
	return &ReimbursementRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new reimbursement draft
func (r *ReimbursementRepository) Create(ctx context.Context, reimb *entity.Reimbursement) error {
	receiptJSON, err := marshalNullable(reimb.Receipt)
	if err != nil {
		return fmt.Errorf("failed to encode receipt: %w", err)
	}

	query := `
		INSERT INTO reimbursements (
			id, requester_id, status, version, description, amount,
			expense_date, receipt_json, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		reimb.ID,
		reimb.RequesterID,
		reimb.Status.String(),
		reimb.Version,
		reimb.Description,
		reimb.Amount,
		reimb.ExpenseDate,
		receiptJSON,
		reimb.CreatedAt,
		reimb.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create reimbursement", zap.String("reimbursement_id", reimb.ID), zap.Error(err))
		return fmt.Errorf("failed to create reimbursement: %w", err)
	}

	return nil
}

// GetByID retrieves a reimbursement by ID; (nil, nil) when it does not exist
func (r *ReimbursementRepository) GetByID(ctx context.Context, id string) (*entity.Reimbursement, error) {
	query := `
		SELECT id, requester_id, status, version, description, amount,
			expense_date, receipt_json, created_at, updated_at
		FROM reimbursements
		WHERE id = ?
	`

	var reimb entity.Reimbursement
	var status string
	var receiptJSON sql.NullString

	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&reimb.ID,
		&reimb.RequesterID,
		&status,
		&reimb.Version,
		&reimb.Description,
		&reimb.Amount,
		&reimb.ExpenseDate,
		&receiptJSON,
		&reimb.CreatedAt,
		&reimb.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get reimbursement", zap.String("reimbursement_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get reimbursement: %w", err)
	}

	reimb.Status = workflow.State(status)
	if receiptJSON.Valid && receiptJSON.String != "" {
		var ref entity.AttachmentRef
		if err := json.Unmarshal([]byte(receiptJSON.String), &ref); err != nil {
			return nil, fmt.Errorf("failed to decode receipt: %w", err)
		}
		reimb.Receipt = &ref
	}

	return &reimb, nil
}

// UpdateStatus moves the reimbursement to status iff the stored version
// still matches, incrementing it
func (r *ReimbursementRepository) UpdateStatus(ctx context.Context, id string, status workflow.State, expectedVersion int64) error {
	query := `
		UPDATE reimbursements
		SET status = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query, status.String(), id, expectedVersion)
	if err != nil {
		r.logger.Error("Failed to update reimbursement status", zap.String("reimbursement_id", id), zap.Error(err))
		return fmt.Errorf("failed to update reimbursement status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		var exists int
		err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx,
			`SELECT 1 FROM reimbursements WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: reimbursement %s", workflow.ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("failed to check reimbursement existence: %w", err)
		}
		return fmt.Errorf("%w: reimbursement %s was modified concurrently", workflow.ErrVersionConflict, id)
	}
	return nil
}

// List pages through reimbursements newest first
func (r *ReimbursementRepository) List(ctx context.Context, limit, offset int) ([]*entity.Reimbursement, error) {
	query := `
		SELECT id, requester_id, status, version, description, amount,
			expense_date, receipt_json, created_at, updated_at
		FROM reimbursements
		ORDER BY created_at DESC, id ASC
		LIMIT ? OFFSET ?
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list reimbursements", zap.Error(err))
		return nil, fmt.Errorf("failed to list reimbursements: %w", err)
	}
	defer rows.Close()

	var items []*entity.Reimbursement
	for rows.Next() {
		var reimb entity.Reimbursement
		var status string
		var receiptJSON sql.NullString
		err := rows.Scan(
			&reimb.ID,
			&reimb.RequesterID,
			&status,
			&reimb.Version,
			&reimb.Description,
			&reimb.Amount,
			&reimb.ExpenseDate,
			&receiptJSON,
			&reimb.CreatedAt,
			&reimb.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reimbursement: %w", err)
		}
		reimb.Status = workflow.State(status)
		if receiptJSON.Valid && receiptJSON.String != "" {
			var ref entity.AttachmentRef
			if err := json.Unmarshal([]byte(receiptJSON.String), &ref); err != nil {
				return nil, fmt.Errorf("failed to decode receipt: %w", err)
			}
			reimb.Receipt = &ref
		}
		items = append(items, &reimb)
	}

	return items, rows.Err()
}

// Verify interface compliance
var _ port.ReimbursementRepository = (*ReimbursementRepository)(nil)
