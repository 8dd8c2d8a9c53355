package identity

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

// Provider resolves acting users from the users table. It is the only
// source of roles; nothing downstream ever infers one.
type Provider struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProvider creates a database-backed identity provider
func NewProvider(db *sql.DB, logger *zap.Logger) *Provider {
	return &Provider{
		db:     db,
		logger: logger,
	}
}

// Resolve returns the actor for the user id; (nil, nil) for unknown users
func (p *Provider) Resolve(ctx context.Context, userID string) (*entity.Actor, error) {
	if userID == entity.SystemActor.ID {
		actor := entity.SystemActor
		return &actor, nil
	}

	query := `SELECT id, name, role FROM users WHERE id = ?`

	var actor entity.Actor
	var role string
	err := sqlite.ExecutorFor(ctx, p.db).QueryRowContext(ctx, query, userID).Scan(
		&actor.ID,
		&actor.Name,
		&role,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		p.logger.Error("Failed to resolve user", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	actor.Role = workflow.Role(role)
	if !actor.Role.IsValid() {
		p.logger.Warn("User carries an unknown role",
			zap.String("user_id", userID),
			zap.String("role", role))
		return nil, nil
	}

	return &actor, nil
}

// Verify interface compliance
var _ port.IdentityProvider = (*Provider)(nil)
