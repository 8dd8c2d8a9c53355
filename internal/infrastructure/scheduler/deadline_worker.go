package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fpfinfo/sosfu/internal/application/engine"
	"github.com/fpfinfo/sosfu/internal/application/port"
	"github.com/fpfinfo/sosfu/internal/domain/entity"
	"github.com/fpfinfo/sosfu/internal/domain/workflow"
	"go.uber.org/zap"
)

// DeadlineWorkerConfig holds configuration for the deadline worker
type DeadlineWorkerConfig struct {
	PollInterval time.Duration
	// ReportGrace is how long after the usage period ends the requester
	// has to submit the expense report before the request defaults.
	ReportGrace time.Duration
}

// DefaultDeadlineWorkerConfig returns default configuration
func DefaultDeadlineWorkerConfig() DeadlineWorkerConfig {
	return DeadlineWorkerConfig{
		PollInterval: time.Minute,
		ReportGrace:  30 * 24 * time.Hour,
	}
}

// DeadlineWorker drives the calendar transitions of the request
// lifecycle as the system actor: execution start, execution end and the
// reporting deadline. Every move goes through the status engine so it is
// audited like any user action.
type DeadlineWorker struct {
	config DeadlineWorkerConfig

	requestRepo port.RequestRepository
	engine      engine.Engine
	clock       port.Clock
	logger      *zap.Logger

	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	isRunning bool
	done      chan struct{}
}

// NewDeadlineWorker creates a new deadline worker
func NewDeadlineWorker(
	config DeadlineWorkerConfig,
	requestRepo port.RequestRepository,
	eng engine.Engine,
	clock port.Clock,
	logger *zap.Logger,
) *DeadlineWorker {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultDeadlineWorkerConfig().PollInterval
	}
	if config.ReportGrace <= 0 {
		config.ReportGrace = DefaultDeadlineWorkerConfig().ReportGrace
	}
	return &DeadlineWorker{
		config:      config,
		requestRepo: requestRepo,
		engine:      eng,
		clock:       clock,
		logger:      logger,
	}
}

// Name returns the worker name
func (w *DeadlineWorker) Name() string {
	return "deadline-worker"
}

// Start begins the polling loop
func (w *DeadlineWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("deadline worker already running")
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.run()
	return nil
}

// Stop halts the polling loop and waits for the current sweep
func (w *DeadlineWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	cancel()
	<-done
	return nil
}

func (w *DeadlineWorker) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	// One sweep at startup so restarts do not wait a full interval.
	w.sweep()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

// sweep advances every request whose calendar deadline has passed
func (w *DeadlineWorker) sweep() {
	now := w.clock.Now()

	w.advance(workflow.StateFundsReleased, workflow.StateInExecution, func(req *entity.Request) bool {
		return !now.Before(req.PeriodStart)
	})
	w.advance(workflow.StateInExecution, workflow.StateAwaitingReport, func(req *entity.Request) bool {
		return now.After(req.PeriodEnd)
	})
	w.advance(workflow.StateAwaitingReport, workflow.StateInDefault, func(req *entity.Request) bool {
		return now.After(req.PeriodEnd.Add(w.config.ReportGrace))
	})
}

func (w *DeadlineWorker) advance(from, to workflow.State, due func(*entity.Request) bool) {
	requests, err := w.requestRepo.ListByStatus(w.ctx, from)
	if err != nil {
		w.logger.Error("Deadline sweep failed to list requests",
			zap.String("status", from.String()),
			zap.Error(err))
		return
	}

	for _, req := range requests {
		if !due(req) {
			continue
		}

		_, err := w.engine.TransitionRequest(w.ctx, req.ID, to, entity.SystemActor.ID, "")
		if err != nil {
			// A user or a parallel sweep may have raced us; that is fine.
			if errors.Is(err, workflow.ErrVersionConflict) || errors.Is(err, workflow.ErrIllegalTransition) {
				w.logger.Debug("Deadline transition skipped",
					zap.String("request_id", req.ID),
					zap.Error(err))
				continue
			}
			w.logger.Error("Deadline transition failed",
				zap.String("request_id", req.ID),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
				zap.Error(err))
			continue
		}

		w.logger.Info("Deadline transition applied",
			zap.String("request_id", req.ID),
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	}
}

// Verify interface compliance
var _ Worker = (*DeadlineWorker)(nil)
