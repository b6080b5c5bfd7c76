package companion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Protocol-Lattice/companion/pkg/embed"
	"github.com/Protocol-Lattice/companion/pkg/model"
	"github.com/Protocol-Lattice/companion/pkg/models"
	"github.com/Protocol-Lattice/companion/pkg/store"
	"github.com/Protocol-Lattice/companion/pkg/summary"
)

type recordingModel struct {
	reply   string
	err     error
	systems []string
	users   []string
}

func (m *recordingModel) Complete(_ context.Context, system, user string) (string, error) {
	m.systems = append(m.systems, system)
	m.users = append(m.users, user)
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func newTestEngine(t *testing.T, chatModel models.ChatModel) (*Engine, store.Store) {
	t.Helper()
	st := store.NewInMemoryStore()
	engine, err := New(Options{
		Store:    st,
		Model:    chatModel,
		Embedder: embed.NewDegrading(embed.DummyEmbedder{}),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return engine, st
}

func TestConverseRejectsEmptyMessage(t *testing.T) {
	engine, st := newTestEngine(t, &recordingModel{reply: "hi"})

	for _, msg := range []string{"", "   ", "\n\t"} {
		if _, err := engine.Converse(context.Background(), "aid-1", msg); !errors.Is(err, ErrEmptyMessage) {
			t.Fatalf("Converse(%q) error = %v, want ErrEmptyMessage", msg, err)
		}
	}

	// Rejection happens before any persistence.
	user, _ := st.EnsureUser(context.Background(), "aid-1")
	chat, _ := st.EnsureChat(context.Background(), user.ID)
	count, _ := st.CountMessages(context.Background(), chat.ID)
	if count != 0 {
		t.Fatalf("rejected turns must write nothing, found %d messages", count)
	}
}

func TestConversePersistsBothMessages(t *testing.T) {
	engine, st := newTestEngine(t, &recordingModel{reply: "nice to meet you"})
	ctx := context.Background()

	reply, err := engine.Converse(ctx, "aid-1", "hello there")
	if err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if reply != "nice to meet you" {
		t.Fatalf("unexpected reply %q", reply)
	}

	user, _ := st.EnsureUser(ctx, "aid-1")
	chat, _ := st.EnsureChat(ctx, user.ID)
	messages, err := st.RecentMessages(ctx, chat.ID, 10)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected user and assistant messages, got %d", len(messages))
	}
	if messages[1].Role != model.RoleUser || messages[1].Content != "hello there" {
		t.Fatalf("user message not persisted first: %+v", messages[1])
	}
	if messages[0].Role != model.RoleAssistant || messages[0].Content != "nice to meet you" {
		t.Fatalf("assistant message not persisted: %+v", messages[0])
	}
}

func TestConverseStoresExtractedFacts(t *testing.T) {
	engine, _ := newTestEngine(t, &recordingModel{reply: "hi Ada"})
	ctx := context.Background()

	if _, err := engine.Converse(ctx, "aid-1", "Hi! My name is Ada and I like tea."); err != nil {
		t.Fatalf("Converse: %v", err)
	}

	memories, err := engine.Memories(ctx, "aid-1")
	if err != nil {
		t.Fatalf("Memories: %v", err)
	}
	var texts []string
	for _, mem := range memories {
		if mem.Kind != model.MemoryFact {
			t.Fatalf("unexpected memory kind %q", mem.Kind)
		}
		texts = append(texts, mem.Text)
	}
	joined := strings.Join(texts, ";")
	if !strings.Contains(joined, "User name is Ada") || !strings.Contains(joined, "User likes tea") {
		t.Fatalf("expected both facts stored, got %v", texts)
	}
	for _, mem := range memories {
		if len(mem.Embedding) == 0 {
			t.Fatalf("fact %q stored without embedding", mem.Text)
		}
	}
}

func TestConverseGroundsPromptWithFacts(t *testing.T) {
	chatModel := &recordingModel{reply: "ok"}
	engine, _ := newTestEngine(t, chatModel)
	ctx := context.Background()

	if _, err := engine.Converse(ctx, "aid-1", "my name is Ada"); err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if _, err := engine.Converse(ctx, "aid-1", "what do you know about me?"); err != nil {
		t.Fatalf("Converse: %v", err)
	}

	lastSystem := chatModel.systems[len(chatModel.systems)-1]
	if !strings.Contains(lastSystem, "Known user facts: User name is Ada") {
		t.Fatalf("second turn prompt lacks the stored fact:\n%s", lastSystem)
	}
	if !strings.HasPrefix(lastSystem, "You are a warm") {
		t.Fatalf("persona must lead the prompt:\n%s", lastSystem)
	}
}

func TestConverseSameTurnFactVisibleToRecall(t *testing.T) {
	chatModel := &recordingModel{reply: "ok"}
	engine, _ := newTestEngine(t, chatModel)

	if _, err := engine.Converse(context.Background(), "aid-1", "I like tea"); err != nil {
		t.Fatalf("Converse: %v", err)
	}
	system := chatModel.systems[0]
	if !strings.Contains(system, "User likes tea") {
		t.Fatalf("fact stored this turn must already ground this turn's prompt:\n%s", system)
	}
}

func TestConverseCompletionFailureIsFatal(t *testing.T) {
	engine, st := newTestEngine(t, &recordingModel{err: errors.New("provider down")})
	ctx := context.Background()

	if _, err := engine.Converse(ctx, "aid-1", "hello"); err == nil {
		t.Fatal("expected completion failure to fail the turn")
	}

	// The user message stays persisted; no assistant message is written.
	user, _ := st.EnsureUser(ctx, "aid-1")
	chat, _ := st.EnsureChat(ctx, user.ID)
	messages, _ := st.RecentMessages(ctx, chat.ID, 10)
	if len(messages) != 1 || messages[0].Role != model.RoleUser {
		t.Fatalf("expected only the user message, got %+v", messages)
	}
}

func TestConverseTriggersSummarizationAtCadence(t *testing.T) {
	chatModel := &recordingModel{reply: "reply"}
	st := store.NewInMemoryStore()
	summarizer := summary.NewSummarizer(st, chatModel, embed.NewDegrading(nil))
	summarizer.Cadence = 4

	engine, err := New(Options{
		Store:      st,
		Model:      chatModel,
		Embedder:   embed.NewDegrading(nil),
		Summarizer: summarizer,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	// Two turns write four messages, hitting the cadence.
	if _, err := engine.Converse(ctx, "aid-1", "turn one"); err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if _, err := engine.Converse(ctx, "aid-1", "turn two"); err != nil {
		t.Fatalf("Converse: %v", err)
	}

	user, _ := st.EnsureUser(ctx, "aid-1")
	deadline := time.Now().Add(2 * time.Second)
	for {
		summaries, err := st.RecentMemories(ctx, user.ID, model.MemorySummary, 10)
		if err != nil {
			t.Fatalf("RecentMemories: %v", err)
		}
		if len(summaries) == 1 {
			if summaries[0].Text != "reply" {
				t.Fatalf("unexpected summary text %q", summaries[0].Text)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("summary never appeared")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestConverseSingleFactTurn(t *testing.T) {
	engine, st := newTestEngine(t, &recordingModel{reply: "hello Ava"})
	ctx := context.Background()

	if _, err := engine.Converse(ctx, "aid-1", "My name is Ava"); err != nil {
		t.Fatalf("Converse: %v", err)
	}

	memories, _ := engine.Memories(ctx, "aid-1")
	if len(memories) != 1 || memories[0].Text != "User name is Ava" || memories[0].Kind != model.MemoryFact {
		t.Fatalf("expected exactly one name fact, got %v", memories)
	}

	user, _ := st.EnsureUser(ctx, "aid-1")
	chat, _ := st.EnsureChat(ctx, user.ID)
	count, _ := st.CountMessages(ctx, chat.ID)
	if count != 2 {
		t.Fatalf("expected 2 messages after one turn, got %d", count)
	}
	summaries, _ := st.RecentMemories(ctx, user.ID, model.MemorySummary, 10)
	if len(summaries) != 0 {
		t.Fatalf("no summary expected below the cadence, got %v", summaries)
	}
}

type erroringEmbedder struct{}

func (erroringEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding endpoint down")
}

func TestConverseEmbeddingFailureDegrades(t *testing.T) {
	chatModel := &recordingModel{reply: "ok"}
	st := store.NewInMemoryStore()
	engine, err := New(Options{
		Store:    st,
		Model:    chatModel,
		Embedder: embed.NewDegrading(erroringEmbedder{}),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if _, err := engine.Converse(ctx, "aid-1", "I like tea"); err != nil {
		t.Fatalf("embedding failure must not fail the turn: %v", err)
	}

	memories, _ := engine.Memories(ctx, "aid-1")
	if len(memories) != 1 || memories[0].Text != "User likes tea" {
		t.Fatalf("fact must be stored despite the embedding failure, got %v", memories)
	}
	if len(memories[0].Embedding) != 0 {
		t.Fatal("degraded fact must carry an empty vector")
	}

	// Empty vectors score zero, so the recall section never appears.
	if _, err := engine.Converse(ctx, "aid-1", "what do I like?"); err != nil {
		t.Fatalf("Converse: %v", err)
	}
	lastSystem := chatModel.systems[len(chatModel.systems)-1]
	if strings.Contains(lastSystem, "Relevant memories:") {
		t.Fatalf("unembedded memories must not be recalled:\n%s", lastSystem)
	}
}

func TestMemoriesNewestFirst(t *testing.T) {
	engine, st := newTestEngine(t, &recordingModel{reply: "ok"})
	ctx := context.Background()

	user, _ := st.EnsureUser(ctx, "aid-1")
	for i := 0; i < 3; i++ {
		if _, err := st.AppendMemory(ctx, user.ID, model.MemoryFact, fmt.Sprintf("fact %d", i), nil); err != nil {
			t.Fatalf("AppendMemory: %v", err)
		}
	}
	memories, err := engine.Memories(ctx, "aid-1")
	if err != nil {
		t.Fatalf("Memories: %v", err)
	}
	if len(memories) != 3 {
		t.Fatalf("expected 3 memories, got %d", len(memories))
	}
	if memories[0].Text != "fact 2" || memories[2].Text != "fact 0" {
		t.Fatalf("memories not newest first: %v", memories)
	}
}

func TestConverseIsolatesUsers(t *testing.T) {
	engine, _ := newTestEngine(t, &recordingModel{reply: "ok"})
	ctx := context.Background()

	if _, err := engine.Converse(ctx, "aid-alice", "my name is Alice"); err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if _, err := engine.Converse(ctx, "aid-bob", "hello"); err != nil {
		t.Fatalf("Converse: %v", err)
	}

	bobMemories, err := engine.Memories(ctx, "aid-bob")
	if err != nil {
		t.Fatalf("Memories: %v", err)
	}
	if len(bobMemories) != 0 {
		t.Fatalf("memories leaked between identities: %v", bobMemories)
	}
}

func TestNewRequiresStoreAndModel(t *testing.T) {
	if _, err := New(Options{Model: &recordingModel{}}); err == nil {
		t.Fatal("expected error without store")
	}
	if _, err := New(Options{Store: store.NewInMemoryStore()}); err == nil {
		t.Fatal("expected error without model")
	}
}
