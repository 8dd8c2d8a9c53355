package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fpfinfo/sosfu/internal/application/port"
	"github.com/fpfinfo/sosfu/internal/domain/entity"
	"github.com/fpfinfo/sosfu/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// MessageRepository implements port.MessageRepository over the flat
// message log
type MessageRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *sql.DB, logger *zap.Logger) port.MessageRepository {
	return &MessageRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends one message to the log
func (r *MessageRepository) Create(ctx context.Context, msg *entity.Message) error {
	query := `
		INSERT INTO messages (
			id, conversation_id, request_id, sender_id, recipient_id,
			content, unlock, read, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		msg.ID,
		msg.ConversationID,
		msg.RequestID,
		msg.SenderID,
		msg.RecipientID,
		msg.Content,
		msg.Unlock,
		msg.Read,
		msg.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to create message", zap.String("message_id", msg.ID), zap.Error(err))
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// ListByConversation returns the conversation's messages oldest first
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]*entity.Message, error) {
	query := `
		SELECT id, conversation_id, request_id, sender_id, recipient_id,
			content, unlock, read, timestamp
		FROM messages
		WHERE conversation_id = ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, conversationID)
	if err != nil {
		r.logger.Error("Failed to list messages", zap.String("conversation_id", conversationID), zap.Error(err))
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*entity.Message
	for rows.Next() {
		var msg entity.Message
		err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.RequestID,
			&msg.SenderID,
			&msg.RecipientID,
			&msg.Content,
			&msg.Unlock,
			&msg.Read,
			&msg.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}

// MarkRead flags every message addressed to the reader in the
// conversation as read
func (r *MessageRepository) MarkRead(ctx context.Context, conversationID, readerID string) error {
	query := `
		UPDATE messages
		SET read = 1
		WHERE conversation_id = ? AND recipient_id = ? AND read = 0
	`

	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query, conversationID, readerID)
	if err != nil {
		r.logger.Error("Failed to mark messages read",
			zap.String("conversation_id", conversationID), zap.Error(err))
		return fmt.Errorf("failed to mark messages read: %w", err)
	}

	return nil
}

// Verify interface compliance
var _ port.MessageRepository = (*MessageRepository)(nil)
