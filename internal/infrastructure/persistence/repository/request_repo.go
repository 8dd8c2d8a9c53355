package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fpfinfo/sosfu/internal/application/port"
	"github.com/fpfinfo/sosfu/internal/domain/entity"
	"github.com/fpfinfo/sosfu/internal/domain/workflow"
	"github.com/fpfinfo/sosfu/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// RequestRepository implements port.RequestRepository
type RequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sql.DB, logger *zap.Logger) port.RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

const requestColumns = `
	id, requester_id, status, version, category, cost_center, jurisdiction,
	amount, justification, period_start, period_end, attachment_json,
	report_json, submitted_at, created_at, updated_at
`

// Create inserts a new request draft
func (r *RequestRepository) Create(ctx context.Context, req *entity.Request) error {
	attachmentJSON, err := marshalNullable(req.Attachment)
	if err != nil {
		return fmt.Errorf("failed to encode attachment: %w", err)
	}

	query := `
		INSERT INTO requests (
			id, requester_id, status, version, category, cost_center,
			jurisdiction, amount, justification, period_start, period_end,
			attachment_json, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		req.ID,
		req.RequesterID,
		req.Status.String(),
		req.Version,
		req.Category,
		req.CostCenter,
		req.Jurisdiction,
		req.Amount,
		req.Justification,
		req.PeriodStart,
		req.PeriodEnd,
		attachmentJSON,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create request", zap.String("request_id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}

	return nil
}

// GetByID retrieves a request by ID; (nil, nil) when it does not exist
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*entity.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = ?`

	req, err := r.scanRequest(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get request", zap.String("request_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// UpdateStatus moves the request to status iff the stored version still
// matches, incrementing it. SUBMITTED also stamps submitted_at once.
func (r *RequestRepository) UpdateStatus(ctx context.Context, id string, status workflow.State, expectedVersion int64) error {
	query := `
		UPDATE requests
		SET status = ?,
			version = version + 1,
			updated_at = CURRENT_TIMESTAMP,
			submitted_at = CASE
				WHEN ? = 'SUBMITTED' AND submitted_at IS NULL THEN CURRENT_TIMESTAMP
				ELSE submitted_at
			END
		WHERE id = ? AND version = ?
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		status.String(), status.String(), id, expectedVersion)
	if err != nil {
		r.logger.Error("Failed to update request status", zap.String("request_id", id), zap.Error(err))
		return fmt.Errorf("failed to update request status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

// SaveReport replaces the embedded expense report wholesale
func (r *RequestRepository) SaveReport(ctx context.Context, id string, report *entity.ExpenseReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	query := `UPDATE requests SET report_json = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query, string(reportJSON), id)
	if err != nil {
		r.logger.Error("Failed to save report", zap.String("request_id", id), zap.Error(err))
		return fmt.Errorf("failed to save report: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: request %s", workflow.ErrNotFound, id)
	}
	return nil
}

var sortColumns = map[string]string{
	"":             "created_at",
	"created_at":   "created_at",
	"submitted_at": "submitted_at",
	"amount":       "amount",
	"status":       "status",
}

// List applies the filtering/sorting view over the requests table
func (r *RequestRepository) List(ctx context.Context, filter entity.RequestFilter) ([]*entity.Request, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status.String())
	}
	if filter.RequesterID != "" {
		conditions = append(conditions, "requester_id = ?")
		args = append(args, filter.RequesterID)
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}

	query := `SELECT ` + requestColumns + ` FROM requests`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	sortColumn, ok := sortColumns[filter.SortBy]
	if !ok {
		return nil, fmt.Errorf("%w: unknown sort key %q", workflow.ErrValidation, filter.SortBy)
	}
	direction := "ASC"
	if filter.Descending {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, id ASC", sortColumn, direction)

	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	return r.collectRequests(rows)
}

// ListByStatus returns all requests currently in the given state, used by
// the deadline scheduler
func (r *RequestRepository) ListByStatus(ctx context.Context, status workflow.State) ([]*entity.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE status = ? ORDER BY created_at ASC`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, status.String())
	if err != nil {
		r.logger.Error("Failed to list requests by status", zap.String("status", status.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list requests by status: %w", err)
	}
	defer rows.Close()

	return r.collectRequests(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *RequestRepository) scanRequest(row rowScanner) (*entity.Request, error) {
	var req entity.Request
	var status string
	var attachmentJSON, reportJSON sql.NullString
	var submittedAt sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.RequesterID,
		&status,
		&req.Version,
		&req.Category,
		&req.CostCenter,
		&req.Jurisdiction,
		&req.Amount,
		&req.Justification,
		&req.PeriodStart,
		&req.PeriodEnd,
		&attachmentJSON,
		&reportJSON,
		&submittedAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Status = workflow.State(status)
	if submittedAt.Valid {
		req.SubmittedAt = &submittedAt.Time
	}
	if attachmentJSON.Valid && attachmentJSON.String != "" {
		var ref entity.AttachmentRef
		if err := json.Unmarshal([]byte(attachmentJSON.String), &ref); err != nil {
			return nil, fmt.Errorf("failed to decode attachment: %w", err)
		}
		req.Attachment = &ref
	}
	if reportJSON.Valid && reportJSON.String != "" {
		var report entity.ExpenseReport
		if err := json.Unmarshal([]byte(reportJSON.String), &report); err != nil {
			return nil, fmt.Errorf("failed to decode report: %w", err)
		}
		req.Report = &report
	}

	return &req, nil
}

func (r *RequestRepository) collectRequests(rows *sql.Rows) ([]*entity.Request, error) {
	var requests []*entity.Request
	for rows.Next() {
		req, err := r.scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// missOrConflict distinguishes a vanished row from a lost version race
func (r *RequestRepository) missOrConflict(ctx context.Context, id string) error {
	var exists int
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx,
		`SELECT 1 FROM requests WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: request %s", workflow.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to check request existence: %w", err)
	}
	return fmt.Errorf("%w: request %s was modified concurrently", workflow.ErrVersionConflict, id)
}

func marshalNullable(v interface{}) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	if ref, ok := v.(*entity.AttachmentRef); ok && ref == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// Verify interface compliance
var _ port.RequestRepository = (*RequestRepository)(nil)
