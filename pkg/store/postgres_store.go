package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Protocol-Lattice/companion/pkg/model"
)

// PostgresStore implements Store using Postgres + pgvector.
type PostgresStore struct {
	DB *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and returns a Postgres-backed Store.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	return &PostgresStore{DB: db}, nil
}

func (ps *PostgresStore) EnsureUser(ctx context.Context, aid string) (model.User, error) {
	var user model.User
	err := ps.DB.QueryRow(ctx, `
                INSERT INTO companion_users (aid)
                VALUES ($1)
                ON CONFLICT (aid) DO UPDATE SET aid = EXCLUDED.aid
                RETURNING id, aid, created_at;
        `, aid).Scan(&user.ID, &user.AID, &user.CreatedAt)
	if err != nil {
		return model.User{}, fmt.Errorf("ensure user: %w", err)
	}
	return user, nil
}

func (ps *PostgresStore) EnsureChat(ctx context.Context, userID int64) (model.Chat, error) {
	var chat model.Chat
	err := ps.DB.QueryRow(ctx, `
                INSERT INTO companion_chats (user_id)
                VALUES ($1)
                ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
                RETURNING id, user_id, created_at;
        `, userID).Scan(&chat.ID, &chat.UserID, &chat.CreatedAt)
	if err != nil {
		return model.Chat{}, fmt.Errorf("ensure chat: %w", err)
	}
	return chat, nil
}

func (ps *PostgresStore) AppendMessage(ctx context.Context, chatID int64, role model.Role, content string) (model.Message, error) {
	msg := model.Message{ChatID: chatID, Role: role, Content: content}
	err := ps.DB.QueryRow(ctx, `
                INSERT INTO companion_messages (chat_id, role, content)
                VALUES ($1, $2, $3)
                RETURNING id, created_at;
        `, chatID, string(role), content).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return model.Message{}, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

func (ps *PostgresStore) CountMessages(ctx context.Context, chatID int64) (int, error) {
	var count int
	err := ps.DB.QueryRow(ctx, `SELECT COUNT(*) FROM companion_messages WHERE chat_id = $1`, chatID).Scan(&count)
	return count, err
}

func (ps *PostgresStore) RecentMessages(ctx context.Context, chatID int64, limit int) ([]model.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := ps.DB.Query(ctx, `
                SELECT id, chat_id, role, content, created_at
                FROM companion_messages
                WHERE chat_id = $1
                ORDER BY created_at DESC, id DESC
                LIMIT $2;
        `, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var msg model.Message
		var role string
		if err := rows.Scan(&msg.ID, &msg.ChatID, &role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.Role = model.Role(role)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (ps *PostgresStore) AppendMemory(ctx context.Context, userID int64, kind model.MemoryKind, text string, embedding []float32) (model.Memory, error) {
	mem := model.Memory{UserID: userID, Kind: kind, Text: text, Embedding: embedding}
	var vec any
	if len(embedding) > 0 {
		jsonEmbed, _ := json.Marshal(embedding)
		vec = vectorFromJSON(jsonEmbed)
	}
	err := ps.DB.QueryRow(ctx, `
                INSERT INTO companion_memories (user_id, kind, text, embedding)
                VALUES ($1, $2, $3, $4::vector)
                RETURNING id, created_at;
        `, userID, string(kind), text, vec).Scan(&mem.ID, &mem.CreatedAt)
	if err != nil {
		return model.Memory{}, fmt.Errorf("append memory: %w", err)
	}
	return mem, nil
}

func (ps *PostgresStore) RecentMemories(ctx context.Context, userID int64, kind model.MemoryKind, limit int) ([]model.Memory, error) {
	return ps.queryMemories(ctx, `
                SELECT id, user_id, kind, text, COALESCE(embedding::text, ''), created_at
                FROM companion_memories
                WHERE user_id = $1 AND kind = $2
                ORDER BY created_at DESC, id DESC
                LIMIT $3;
        `, userID, string(kind), limit)
}

func (ps *PostgresStore) AllMemories(ctx context.Context, userID int64, cap int) ([]model.Memory, error) {
	return ps.queryMemories(ctx, `
                SELECT id, user_id, kind, text, COALESCE(embedding::text, ''), created_at
                FROM companion_memories
                WHERE user_id = $1
                ORDER BY created_at DESC, id DESC
                LIMIT $2;
        `, userID, cap)
}

func (ps *PostgresStore) queryMemories(ctx context.Context, query string, args ...any) ([]model.Memory, error) {
	rows, err := ps.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []model.Memory
	for rows.Next() {
		var mem model.Memory
		var kind, embeddingText string
		if err := rows.Scan(&mem.ID, &mem.UserID, &kind, &mem.Text, &embeddingText, &mem.CreatedAt); err != nil {
			return nil, err
		}
		mem.Kind = model.MemoryKind(kind)
		mem.Embedding = parseVector(embeddingText)
		memories = append(memories, mem)
	}
	return memories, rows.Err()
}

// CreateSchema ensures the pgvector extension and companion tables exist.
func (ps *PostgresStore) CreateSchema(ctx context.Context, schemaPath string) error {
	if ps == nil || ps.DB == nil {
		return nil
	}
	schema := defaultPostgresSchema
	if schemaPath != "" {
		data, err := os.ReadFile(schemaPath)
		if err != nil {
			return fmt.Errorf("failed to read schema file: %w", err)
		}
		schema = string(data)
	}
	if _, err := ps.DB.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Close releases the underlying Postgres connection pool.
func (ps *PostgresStore) Close() error {
	if ps == nil || ps.DB == nil {
		return nil
	}
	ps.DB.Close()
	return nil
}

const defaultPostgresSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS companion_users (
    id BIGSERIAL PRIMARY KEY,
    aid TEXT NOT NULL UNIQUE,
    created_at TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS companion_chats (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL UNIQUE REFERENCES companion_users(id),
    created_at TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS companion_messages (
    id BIGSERIAL PRIMARY KEY,
    chat_id BIGINT NOT NULL REFERENCES companion_chats(id),
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMPTZ DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS companion_messages_chat_idx ON companion_messages (chat_id, created_at DESC);

CREATE TABLE IF NOT EXISTS companion_memories (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES companion_users(id),
    kind TEXT NOT NULL,
    text TEXT NOT NULL,
    embedding vector(768),
    created_at TIMESTAMPTZ DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS companion_memories_user_idx ON companion_memories (user_id, created_at DESC);
`

func trimJSON(s string) string { return strings.Trim(s, "[]") }

func vectorFromJSON(jsonEmbed []byte) string {
	return fmt.Sprintf("[%s]", trimJSON(string(jsonEmbed)))
}

func parseVector(text string) []float32 {
	text = strings.Trim(text, "[]")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	parts := strings.Split(text, ",")
	vec := make([]float32, 0, len(parts))
	for _, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			continue
		}
		vec = append(vec, float32(f))
	}
	return vec
}
