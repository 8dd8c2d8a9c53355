package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/fpfinfo/sosfu/internal/application/dispatcher"
	"github.com/fpfinfo/sosfu/internal/application/port"
	"github.com/fpfinfo/sosfu/internal/domain/entity"
	"github.com/fpfinfo/sosfu/internal/domain/event"
	"github.com/fpfinfo/sosfu/internal/domain/workflow"
	"go.uber.org/zap"
)

// Action is one transition the acting user may take from the current
// state, with the description shown in the confirmation dialog.
type Action struct {
	Target         workflow.State `json:"target"`
	Description    string         `json:"description"`
	RequiresReason bool           `json:"requires_reason"`
}

// Engine executes state transitions as a unit: legality check against the
// transition table, status persistence, history append and side effects,
// or nothing at all. Every transition in the system, including the
// messaging unlock and the scheduler's deadline moves, goes through here.
type Engine interface {
	// TransitionRequest moves a fund-advance request to the target state.
	TransitionRequest(ctx context.Context, requestID string, target workflow.State, userID, reason string) (*entity.Request, error)

	// TransitionReimbursement moves a reimbursement to the target state.
	TransitionReimbursement(ctx context.Context, reimbID string, target workflow.State, userID, reason string) (*entity.Reimbursement, error)

	// AvailableActions returns the transitions the acting user may take
	// from the entity's current state, for UI action/tab visibility.
	AvailableActions(ctx context.Context, kind workflow.Kind, entityID, userID string) ([]Action, error)

	// History returns the ordered audit trail for timeline display.
	History(ctx context.Context, kind workflow.Kind, entityID string) ([]*entity.HistoryEntry, error)
}

type engineImpl struct {
	requestRepo port.RequestRepository
	reimbRepo   port.ReimbursementRepository
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	identity    port.IdentityProvider
	clock       port.Clock
	dispatcher  dispatcher.Dispatcher
	tables      map[workflow.Kind]*workflow.TransitionTable
	logger      *zap.Logger
}

// New creates the status engine. The dispatcher may be nil; side-effect
// emission is then skipped.
func New(
	requestRepo port.RequestRepository,
	reimbRepo port.ReimbursementRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	identity port.IdentityProvider,
	clock port.Clock,
	disp dispatcher.Dispatcher,
	logger *zap.Logger,
) Engine {
	return &engineImpl{
		requestRepo: requestRepo,
		reimbRepo:   reimbRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		identity:    identity,
		clock:       clock,
		dispatcher:  disp,
		tables: map[workflow.Kind]*workflow.TransitionTable{
			workflow.KindRequest:       workflow.RequestTransitions(),
			workflow.KindReimbursement: workflow.ReimbursementTransitions(),
		},
		logger: logger,
	}
}

func (e *engineImpl) TransitionRequest(ctx context.Context, requestID string, target workflow.State, userID, reason string) (*entity.Request, error) {
	actor, err := e.resolveActor(ctx, userID)
	if err != nil {
		return nil, err
	}

	req, err := e.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: request %s", workflow.ErrNotFound, requestID)
	}

	if err := e.checkTransition(workflow.KindRequest, req.Status, target, actor, reason); err != nil {
		return nil, err
	}

	previous := req.Status
	now := e.clock.Now()

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.requestRepo.UpdateStatus(txCtx, requestID, target, req.Version); err != nil {
			return fmt.Errorf("update request status: %w", err)
		}
		return e.historyRepo.Append(txCtx, &entity.HistoryEntry{
			EntityKind:     workflow.KindRequest,
			EntityID:       requestID,
			PreviousStatus: previous,
			NewStatus:      target,
			ActorID:        actor.ID,
			ActorRole:      actor.Role,
			Reason:         strings.TrimSpace(reason),
			Timestamp:      now,
		})
	})
	if err != nil {
		return nil, err
	}

	req.Status = target
	req.Version++
	req.UpdatedAt = now
	if target == workflow.StateSubmitted && req.SubmittedAt == nil {
		req.SubmittedAt = &now
	}

	e.logger.Info("Request transitioned",
		zap.String("request_id", requestID),
		zap.String("from", previous.String()),
		zap.String("to", target.String()),
		zap.String("actor", actor.ID),
		zap.String("role", actor.Role.String()))

	e.txManager.AfterCommit(ctx, func() {
		e.emitStatusChanged(ctx, workflow.KindRequest, requestID, req.RequesterID, previous, target, actor, reason)
	})
	return req, nil
}

func (e *engineImpl) TransitionReimbursement(ctx context.Context, reimbID string, target workflow.State, userID, reason string) (*entity.Reimbursement, error) {
	actor, err := e.resolveActor(ctx, userID)
	if err != nil {
		return nil, err
	}

	reimb, err := e.reimbRepo.GetByID(ctx, reimbID)
	if err != nil {
		return nil, fmt.Errorf("load reimbursement: %w", err)
	}
	if reimb == nil {
		return nil, fmt.Errorf("%w: reimbursement %s", workflow.ErrNotFound, reimbID)
	}

	if err := e.checkTransition(workflow.KindReimbursement, reimb.Status, target, actor, reason); err != nil {
		return nil, err
	}

	previous := reimb.Status
	now := e.clock.Now()

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.reimbRepo.UpdateStatus(txCtx, reimbID, target, reimb.Version); err != nil {
			return fmt.Errorf("update reimbursement status: %w", err)
		}
		return e.historyRepo.Append(txCtx, &entity.HistoryEntry{
			EntityKind:     workflow.KindReimbursement,
			EntityID:       reimbID,
			PreviousStatus: previous,
			NewStatus:      target,
			ActorID:        actor.ID,
			ActorRole:      actor.Role,
			Reason:         strings.TrimSpace(reason),
			Timestamp:      now,
		})
	})
	if err != nil {
		return nil, err
	}

	reimb.Status = target
	reimb.Version++
	reimb.UpdatedAt = now

	e.logger.Info("Reimbursement transitioned",
		zap.String("reimbursement_id", reimbID),
		zap.String("from", previous.String()),
		zap.String("to", target.String()),
		zap.String("actor", actor.ID))

	e.txManager.AfterCommit(ctx, func() {
		e.emitStatusChanged(ctx, workflow.KindReimbursement, reimbID, reimb.RequesterID, previous, target, actor, reason)
	})
	return reimb, nil
}

func (e *engineImpl) AvailableActions(ctx context.Context, kind workflow.Kind, entityID, userID string) ([]Action, error) {
	actor, err := e.resolveActor(ctx, userID)
	if err != nil {
		return nil, err
	}

	current, err := e.currentState(ctx, kind, entityID)
	if err != nil {
		return nil, err
	}

	table := e.tables[kind]
	if table == nil {
		return nil, fmt.Errorf("%w: unknown entity kind %s", workflow.ErrValidation, kind)
	}

	targets := table.AvailableTransitions(actor.Role, current)
	actions := make([]Action, 0, len(targets))
	for _, target := range targets {
		actions = append(actions, Action{
			Target:         target,
			Description:    kind.Describe(target),
			RequiresReason: kind.RequiresReason(target),
		})
	}
	return actions, nil
}

func (e *engineImpl) History(ctx context.Context, kind workflow.Kind, entityID string) ([]*entity.HistoryEntry, error) {
	entries, err := e.historyRepo.ListFor(ctx, kind, entityID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

// checkTransition enforces legality and the mandatory-reason policy before
// anything is written. Failure messages distinguish "not allowed for your
// role/state" from "you must provide a reason".
func (e *engineImpl) checkTransition(kind workflow.Kind, current, target workflow.State, actor *entity.Actor, reason string) error {
	if target == current {
		return fmt.Errorf("%w: %s is already in state %s", workflow.ErrIllegalTransition, kind, current)
	}

	table := e.tables[kind]
	if table == nil || !table.CanTransition(actor.Role, current, target) {
		return fmt.Errorf("%w: role %s may not move a %s from %s to %s",
			workflow.ErrIllegalTransition, actor.Role, kind, current, target)
	}

	if kind.RequiresReason(target) && strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: a reason is required when moving to %s", workflow.ErrValidation, target)
	}

	return nil
}

func (e *engineImpl) resolveActor(ctx context.Context, userID string) (*entity.Actor, error) {
	actor, err := e.identity.Resolve(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve actor: %w", err)
	}
	if actor == nil || !actor.Role.IsValid() {
		return nil, fmt.Errorf("%w: unknown acting user %s", workflow.ErrValidation, userID)
	}
	return actor, nil
}

func (e *engineImpl) currentState(ctx context.Context, kind workflow.Kind, entityID string) (workflow.State, error) {
	switch kind {
	case workflow.KindRequest:
		req, err := e.requestRepo.GetByID(ctx, entityID)
		if err != nil {
			return "", fmt.Errorf("load request: %w", err)
		}
		if req == nil {
			return "", fmt.Errorf("%w: request %s", workflow.ErrNotFound, entityID)
		}
		return req.Status, nil
	case workflow.KindReimbursement:
		reimb, err := e.reimbRepo.GetByID(ctx, entityID)
		if err != nil {
			return "", fmt.Errorf("load reimbursement: %w", err)
		}
		if reimb == nil {
			return "", fmt.Errorf("%w: reimbursement %s", workflow.ErrNotFound, entityID)
		}
		return reimb.Status, nil
	}
	return "", fmt.Errorf("%w: unknown entity kind %s", workflow.ErrValidation, kind)
}

// emitStatusChanged publishes the committed transition for the
// notification sink and other listeners. Callers register it through
// AfterCommit so a transition joined to an enclosing transaction emits
// nothing until that transaction commits. Fire-and-forget: a failing
// listener never affects the transition.
func (e *engineImpl) emitStatusChanged(ctx context.Context, kind workflow.Kind, entityID, requesterID string, previous, target workflow.State, actor *entity.Actor, reason string) {
	if e.dispatcher == nil {
		return
	}
	e.dispatcher.DispatchAsync(ctx, event.New(event.TypeStatusChanged, kind, entityID, map[string]interface{}{
		"previous_status": previous.String(),
		"new_status":      target.String(),
		"requester_id":    requesterID,
		"actor_id":        actor.ID,
		"actor_role":      actor.Role.String(),
		"reason":          strings.TrimSpace(reason),
	}))
}
