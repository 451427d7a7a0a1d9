//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks

package store

import (
	"context"
	"iter"
	"time"
)

// TableName is the single append-only collection holding every chat message.
const TableName = "chat_messages"

// DefaultRoom is stored for rows that predate the room column.
const DefaultRoom = "public"

// Message represents a persisted chat message.
type Message struct {
	ID        int64
	Username  string
	Room      string
	Text      string
	CreatedAt time.Time
}

// MessageLog is the durable backing store for the message log.
// Implementations never update or delete rows.
type MessageLog interface {
	// EnsureSchema creates the message table and the room column if they are missing.
	// It must be safe to call on every startup.
	EnsureSchema(ctx context.Context) error

	// Insert durably writes msg and fills in the allocated ID and CreatedAt.
	// Either the row is committed and msg is populated, or an error is returned.
	Insert(ctx context.Context, msg *Message) error

	// Since yields messages of room with id > sinceID in ascending id order.
	// Rows are streamed while the caller ranges; every range re-runs the query.
	Since(ctx context.Context, room string, sinceID int64) iter.Seq2[*Message, error]

	// Close closes the underlying database connection.
	Close() error
}
