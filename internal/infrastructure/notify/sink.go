package notify

import (
	"context"
	"fmt"

	"github.com/fpfinfo/sosfu/internal/application/dispatcher"
	"github.com/fpfinfo/sosfu/internal/application/port"
	"github.com/fpfinfo/sosfu/internal/domain/entity"
	"github.com/fpfinfo/sosfu/internal/domain/event"
	"github.com/fpfinfo/sosfu/internal/domain/workflow"
	"go.uber.org/zap"
)

// LogSink implements port.NotificationSink by writing the notification to
// the structured log. Stands in for the portal's push channel; swapping in
// a real transport only touches this package.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a log-backed notification sink
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Notify delivers one notification
func (s *LogSink) Notify(ctx context.Context, n entity.Notification) error {
	s.logger.Info("Notification",
		zap.String("recipient", n.RecipientID),
		zap.String("entity_kind", n.EntityKind.String()),
		zap.String("entity_id", n.EntityID),
		zap.String("status", n.Status.String()),
		zap.String("message", n.Message))
	return nil
}

// StatusChangedHandler builds the human-readable status-change message
// from a committed transition event and pushes it to the sink. Best
// effort: a sink failure is logged by the dispatcher and dropped.
func StatusChangedHandler(sink port.NotificationSink, clock port.Clock) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		recipient := evt.PayloadString("requester_id")
		if recipient == "" {
			return fmt.Errorf("status-changed event %s has no requester", evt.ID)
		}

		newStatus := evt.PayloadState("new_status")
		message := fmt.Sprintf("Your %s is now: %s",
			describeKind(evt.EntityKind),
			evt.EntityKind.Describe(newStatus))
		if reason := evt.PayloadString("reason"); reason != "" {
			message += fmt.Sprintf(" (reason: %s)", reason)
		}

		return sink.Notify(ctx, entity.Notification{
			EntityKind:  evt.EntityKind,
			EntityID:    evt.EntityID,
			RecipientID: recipient,
			Status:      newStatus,
			Message:     message,
			CreatedAt:   clock.Now(),
		})
	}
}

func describeKind(kind workflow.Kind) string {
	switch kind {
	case workflow.KindRequest:
		return "fund-advance request"
	case workflow.KindReimbursement:
		return "reimbursement"
	}
	return "record"
}

// Verify interface compliance
var _ port.NotificationSink = (*LogSink)(nil)
