package model

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MemoryKind distinguishes heuristically extracted facts from periodic
// session summaries. Both share the same storage and recall path.
type MemoryKind string

const (
	MemoryFact    MemoryKind = "fact"
	MemorySummary MemoryKind = "summary"
)

// User is an anonymous caller identified by an opaque long-lived token.
type User struct {
	ID        int64     `json:"id"`
	AID       string    `json:"aid"`
	CreatedAt time.Time `json:"created_at"`
}

// Chat is the single conversation thread owned by a user. It is created
// lazily on the first chat request.
type Chat struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one conversational turn half. Messages are immutable once
// created; ordering is by creation time with insertion order breaking ties.
type Message struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Memory is an append-only long-term record about a user. The embedding may
// be empty when the embedding endpoint was unavailable at write time; such
// records score zero during recall but remain part of the grounding set.
// Duplicate or contradictory texts may coexist; nothing deduplicates them.
type Memory struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Kind      MemoryKind `json:"kind"`
	Text      string     `json:"text"`
	Embedding []float32  `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
}
