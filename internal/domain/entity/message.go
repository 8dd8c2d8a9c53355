package entity

import (
	"sort"
	"strings"
	"time"
)

// Message is one entry in the flat per-entity message log. Conversations
// are never stored; they are rebuilt from this log on every read.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	RequestID      string    `json:"request_id"`
	SenderID       string    `json:"sender_id"`
	RecipientID    string    `json:"recipient_id"`
	Content        string    `json:"content"`
	Unlock         bool      `json:"unlock"`
	Read           bool      `json:"read"`
	Timestamp      time.Time `json:"timestamp"`
}

// Conversation is a derived view over the message log for one participant
// pair.
type Conversation struct {
	ID           string     `json:"id"`
	Participants [2]string  `json:"participants"`
	Messages     []*Message `json:"messages"`
}

// ConversationID derives the deterministic conversation identity from the
// sorted participant pair, so both sides compute the same id.
func ConversationID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}
