package messaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/fpfinfo/sosfu/internal/application/dispatcher"
	"github.com/fpfinfo/sosfu/internal/application/engine"
	"github.com/fpfinfo/sosfu/internal/application/port"
	"github.com/fpfinfo/sosfu/internal/domain/entity"
	"github.com/fpfinfo/sosfu/internal/domain/event"
	"github.com/fpfinfo/sosfu/internal/domain/workflow"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SendInput carries one message into the side-channel.
type SendInput struct {
	RequestID   string `json:"request_id"`
	RecipientID string `json:"recipient_id"`
	Content     string `json:"content"`

	// Unlock marks an administrator message that additionally lifts a
	// defaulted request back to REGULARIZED. This is the single path
	// from messaging into the status machine.
	Unlock bool `json:"unlock"`
}

// Service is the conversation side-channel. Plain messages never touch
// entity state; the unlock flag routes through the status engine like any
// other audited transition.
type Service interface {
	Send(ctx context.Context, senderID string, input SendInput) (*entity.Message, error)

	// Conversation rebuilds the thread between the caller and the other
	// participant from the flat log, marking the caller's unread
	// messages as read.
	Conversation(ctx context.Context, userID, otherID string) (*entity.Conversation, error)
}

type messagingService struct {
	messages   port.MessageRepository
	identity   port.IdentityProvider
	engine     engine.Engine
	clock      port.Clock
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger
}

// New creates the messaging service.
func New(
	messages port.MessageRepository,
	identity port.IdentityProvider,
	eng engine.Engine,
	clock port.Clock,
	disp dispatcher.Dispatcher,
	logger *zap.Logger,
) Service {
	return &messagingService{
		messages:   messages,
		identity:   identity,
		engine:     eng,
		clock:      clock,
		dispatcher: disp,
		logger:     logger,
	}
}

func (s *messagingService) Send(ctx context.Context, senderID string, input SendInput) (*entity.Message, error) {
	if strings.TrimSpace(input.Content) == "" {
		return nil, fmt.Errorf("%w: message content is required", workflow.ErrValidation)
	}
	if strings.TrimSpace(input.RecipientID) == "" || input.RecipientID == senderID {
		return nil, fmt.Errorf("%w: a message needs a recipient other than the sender", workflow.ErrValidation)
	}

	sender, err := s.identity.Resolve(ctx, senderID)
	if err != nil {
		return nil, fmt.Errorf("resolve sender: %w", err)
	}
	if sender == nil {
		return nil, fmt.Errorf("%w: unknown sender %s", workflow.ErrValidation, senderID)
	}

	if input.Unlock {
		if sender.Role != workflow.RoleAdministrator {
			return nil, fmt.Errorf("%w: only an administrator may unlock a defaulted request", workflow.ErrValidation)
		}
		if strings.TrimSpace(input.RequestID) == "" {
			return nil, fmt.Errorf("%w: an unlock message must reference a request", workflow.ErrValidation)
		}
		// Unlock runs through the engine first: if the request is not
		// actually IN_DEFAULT the message is rejected wholesale.
		if _, err := s.engine.TransitionRequest(ctx, input.RequestID, workflow.StateRegularized, senderID, input.Content); err != nil {
			return nil, fmt.Errorf("unlock request: %w", err)
		}
	}

	msg := &entity.Message{
		ID:             uuid.NewString(),
		ConversationID: entity.ConversationID(senderID, input.RecipientID),
		RequestID:      strings.TrimSpace(input.RequestID),
		SenderID:       senderID,
		RecipientID:    input.RecipientID,
		Content:        strings.TrimSpace(input.Content),
		Unlock:         input.Unlock,
		Timestamp:      s.clock.Now(),
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.New(event.TypeMessageSent, workflow.KindRequest, msg.RequestID, map[string]interface{}{
			"message_id":   msg.ID,
			"sender_id":    senderID,
			"recipient_id": input.RecipientID,
			"unlock":       input.Unlock,
		}))
	}

	s.logger.Info("Message sent",
		zap.String("conversation", msg.ConversationID),
		zap.String("sender", senderID),
		zap.Bool("unlock", input.Unlock))
	return msg, nil
}

func (s *messagingService) Conversation(ctx context.Context, userID, otherID string) (*entity.Conversation, error) {
	if userID == otherID {
		return nil, fmt.Errorf("%w: a conversation needs two distinct participants", workflow.ErrValidation)
	}

	conversationID := entity.ConversationID(userID, otherID)
	messages, err := s.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	// Fetching the thread counts as reading it.
	if err := s.messages.MarkRead(ctx, conversationID, userID); err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	for _, msg := range messages {
		if msg.RecipientID == userID {
			msg.Read = true
		}
	}

	participants := [2]string{userID, otherID}
	if otherID < userID {
		participants = [2]string{otherID, userID}
	}

	return &entity.Conversation{
		ID:           conversationID,
		Participants: participants,
		Messages:     messages,
	}, nil
}
