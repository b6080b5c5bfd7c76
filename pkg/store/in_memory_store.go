package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Protocol-Lattice/companion/pkg/model"
)

// InMemoryStore implements Store for tests and lightweight deployments.
type InMemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	users    map[string]model.User
	chats    map[int64]model.Chat
	messages map[int64][]model.Message
	memories map[int64][]model.Memory
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:    make(map[string]model.User),
		chats:    make(map[int64]model.Chat),
		messages: make(map[int64][]model.Message),
		memories: make(map[int64][]model.Memory),
	}
}

func (s *InMemoryStore) EnsureUser(_ context.Context, aid string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[aid]; ok {
		return user, nil
	}
	s.nextID++
	user := model.User{ID: s.nextID, AID: aid, CreatedAt: time.Now().UTC()}
	s.users[aid] = user
	return user, nil
}

func (s *InMemoryStore) EnsureChat(_ context.Context, userID int64) (model.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chat, ok := s.chats[userID]; ok {
		return chat, nil
	}
	s.nextID++
	chat := model.Chat{ID: s.nextID, UserID: userID, CreatedAt: time.Now().UTC()}
	s.chats[userID] = chat
	return chat, nil
}

func (s *InMemoryStore) AppendMessage(_ context.Context, chatID int64, role model.Role, content string) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	msg := model.Message{
		ID:        s.nextID,
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	s.messages[chatID] = append(s.messages[chatID], msg)
	return msg, nil
}

func (s *InMemoryStore) CountMessages(_ context.Context, chatID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages[chatID]), nil
}

func (s *InMemoryStore) RecentMessages(_ context.Context, chatID int64, limit int) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.messages[chatID], limit, func(m model.Message) (time.Time, int64) {
		return m.CreatedAt, m.ID
	}), nil
}

func (s *InMemoryStore) AppendMemory(_ context.Context, userID int64, kind model.MemoryKind, text string, embedding []float32) (model.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	mem := model.Memory{
		ID:        s.nextID,
		UserID:    userID,
		Kind:      kind,
		Text:      text,
		Embedding: append([]float32(nil), embedding...),
		CreatedAt: time.Now().UTC(),
	}
	s.memories[userID] = append(s.memories[userID], mem)
	return mem, nil
}

func (s *InMemoryStore) RecentMemories(_ context.Context, userID int64, kind model.MemoryKind, limit int) ([]model.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var filtered []model.Memory
	for _, mem := range s.memories[userID] {
		if mem.Kind == kind {
			filtered = append(filtered, mem)
		}
	}
	return newestFirst(filtered, limit, func(m model.Memory) (time.Time, int64) {
		return m.CreatedAt, m.ID
	}), nil
}

func (s *InMemoryStore) AllMemories(_ context.Context, userID int64, cap int) ([]model.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.memories[userID], cap, func(m model.Memory) (time.Time, int64) {
		return m.CreatedAt, m.ID
	}), nil
}

// newestFirst orders records by creation time descending, breaking ties by
// insertion order (higher ID is newer), then truncates to limit.
func newestFirst[T any](records []T, limit int, key func(T) (time.Time, int64)) []T {
	if limit <= 0 {
		return nil
	}
	sorted := append([]T(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, idi := key(sorted[i])
		tj, idj := key(sorted[j])
		if ti.Equal(tj) {
			return idi > idj
		}
		return ti.After(tj)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
