package port

import (
	"context"
	"time"

	"github.com/fpfinfo/sosfu/internal/domain/entity"
)

// Clock is the injectable timestamp source
type Clock interface {
	Now() time.Time
}

// IdentityProvider resolves the acting user's identity and role for every
// transition call. The engine never infers a role from anything else.
type IdentityProvider interface {
	Resolve(ctx context.Context, userID string) (*entity.Actor, error)
}

// AttachmentStore resolves opaque attachment references. The core never
// touches file bytes outside of this interface.
type AttachmentStore interface {
	// Save stores the file under the given id and returns its reference.
	Save(ctx context.Context, id, name string, content []byte) (*entity.AttachmentRef, error)

	// Read returns the raw bytes and MIME type of the referenced file.
	Read(ctx context.Context, ref entity.AttachmentRef) ([]byte, string, error)

	// URL returns a retrieval URL for display purposes.
	URL(ctx context.Context, ref entity.AttachmentRef) (string, error)
}

// ReceiptExtraction is what the extraction provider could read off a
// receipt. Date uses the 2006-01-02 layout; empty when unreadable.
type ReceiptExtraction struct {
	Amount float64 `json:"amount"`
	Date   string  `json:"date"`
}

// ExtractionProvider performs the best-effort receipt field extraction.
// Replaceable; tests swap in a stub.
type ExtractionProvider interface {
	ExtractReceipt(ctx context.Context, data []byte, mimeType string) (*ReceiptExtraction, error)
}

// NotificationSink is the best-effort fire-and-forget channel for
// human-readable status-change messages. Failures never roll back a
// committed transition.
type NotificationSink interface {
	Notify(ctx context.Context, n entity.Notification) error
}
