// Package store persists users, chats, messages and memories. Memories and
// messages are append-only: no implementation exposes update or delete, so
// concurrent writers for the same user race only on the ordering of
// independent appends.
package store

import (
	"context"

	"github.com/Protocol-Lattice/companion/pkg/model"
)

// DefaultScanCap bounds how many memories a recall scan loads per user.
const DefaultScanCap = 500

// Store is the persistence boundary of the conversation engine. Every
// append is a durable write visible to subsequent reads within the same
// process. Listings return records newest first.
type Store interface {
	// EnsureUser returns the user for the anonymous identifier, creating
	// it on first contact (upsert-on-read).
	EnsureUser(ctx context.Context, aid string) (model.User, error)

	// EnsureChat returns the user's single chat thread, creating it lazily.
	EnsureChat(ctx context.Context, userID int64) (model.Chat, error)

	AppendMessage(ctx context.Context, chatID int64, role model.Role, content string) (model.Message, error)
	CountMessages(ctx context.Context, chatID int64) (int, error)

	// RecentMessages returns the most recently created messages, newest
	// first, up to limit.
	RecentMessages(ctx context.Context, chatID int64, limit int) ([]model.Message, error)

	AppendMemory(ctx context.Context, userID int64, kind model.MemoryKind, text string, embedding []float32) (model.Memory, error)

	// RecentMemories returns the newest memories of one kind, newest first.
	RecentMemories(ctx context.Context, userID int64, kind model.MemoryKind, limit int) ([]model.Memory, error)

	// AllMemories returns up to cap most recent memories of any kind,
	// newest first, for recall scanning.
	AllMemories(ctx context.Context, userID int64, cap int) ([]model.Memory, error)
}

// SchemaInitializer is implemented by stores that manage their own schema.
// An empty schemaPath applies the store's built-in default schema.
type SchemaInitializer interface {
	CreateSchema(ctx context.Context, schemaPath string) error
}
