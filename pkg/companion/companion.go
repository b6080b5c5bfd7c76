// Package companion orchestrates one conversational turn: persist the user
// message, extract and store facts, recall similar memories, assemble the
// grounding prompt, generate a reply, persist it, and kick off background
// summarization when the chat hits its cadence.
package companion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/dgraph-io/ristretto"

	"github.com/Protocol-Lattice/companion/pkg/embed"
	"github.com/Protocol-Lattice/companion/pkg/facts"
	"github.com/Protocol-Lattice/companion/pkg/jobs"
	"github.com/Protocol-Lattice/companion/pkg/model"
	"github.com/Protocol-Lattice/companion/pkg/models"
	"github.com/Protocol-Lattice/companion/pkg/prompt"
	"github.com/Protocol-Lattice/companion/pkg/recall"
	"github.com/Protocol-Lattice/companion/pkg/store"
	"github.com/Protocol-Lattice/companion/pkg/summary"
)

// ErrEmptyMessage rejects a turn before any state is written.
var ErrEmptyMessage = errors.New("message must not be empty")

const (
	// DefaultFactCap bounds the grounding facts included in every prompt.
	DefaultFactCap = 50

	// DefaultSummaryCap bounds the grounding summaries in every prompt.
	DefaultSummaryCap = 10
)

// Options wires the engine's collaborators. Store and Model are required;
// everything else gets a sensible default.
type Options struct {
	Store      store.Store
	Model      models.ChatModel
	Embedder   *embed.Degrading
	Ranker     *recall.Ranker
	Assembler  *prompt.Assembler
	Summarizer *summary.Summarizer
	Jobs       *jobs.Queue

	FactCap    int
	SummaryCap int
	ScanCap    int
}

// Engine coordinates the per-turn conversation flow. Turns for different
// users (and even the same user) run concurrently with no cross-request
// locking; the store is append-only, so writers only race on ordering.
type Engine struct {
	store      store.Store
	model      models.ChatModel
	embedder   *embed.Degrading
	ranker     *recall.Ranker
	assembler  *prompt.Assembler
	summarizer *summary.Summarizer
	jobs       *jobs.Queue

	factCap    int
	summaryCap int
	scanCap    int

	// identities caches aid -> (user, chat) so repeat turns skip the
	// upsert round-trips. Purely an access-pattern optimization; a miss
	// just re-runs the upserts with identical observable behavior.
	identities *ristretto.Cache
}

type identityEntry struct {
	user model.User
	chat model.Chat
}

func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("companion engine requires a store")
	}
	if opts.Model == nil {
		return nil, errors.New("companion engine requires a chat model")
	}
	if opts.Embedder == nil {
		opts.Embedder = embed.NewDegrading(nil)
	}
	if opts.Ranker == nil {
		opts.Ranker = recall.NewRanker(recall.DefaultTopK, recall.DefaultMinScore)
	}
	if opts.Assembler == nil {
		opts.Assembler = prompt.NewAssembler("")
	}
	if opts.Summarizer == nil {
		opts.Summarizer = summary.NewSummarizer(opts.Store, opts.Model, opts.Embedder)
	}
	if opts.FactCap <= 0 {
		opts.FactCap = DefaultFactCap
	}
	if opts.SummaryCap <= 0 {
		opts.SummaryCap = DefaultSummaryCap
	}
	if opts.ScanCap <= 0 {
		opts.ScanCap = store.DefaultScanCap
	}

	identities, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("identity cache: %w", err)
	}

	return &Engine{
		store:      opts.Store,
		model:      opts.Model,
		embedder:   opts.Embedder,
		ranker:     opts.Ranker,
		assembler:  opts.Assembler,
		summarizer: opts.Summarizer,
		jobs:       opts.Jobs,
		factCap:    opts.FactCap,
		summaryCap: opts.SummaryCap,
		scanCap:    opts.ScanCap,
		identities: identities,
	}, nil
}

// Converse runs one turn for the anonymous identity aid and returns the
// assistant's reply. A completion failure fails the turn; embedding
// failures degrade silently; fact and grounding lookups are best-effort.
func (e *Engine) Converse(ctx context.Context, aid, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}

	user, chat, err := e.identity(ctx, aid)
	if err != nil {
		return "", err
	}

	if _, err := e.store.AppendMessage(ctx, chat.ID, model.RoleUser, message); err != nil {
		return "", fmt.Errorf("persist user message: %w", err)
	}

	e.storeFacts(ctx, user.ID, message)

	recalled := e.recallMemories(ctx, user.ID, message)
	system := e.assembler.Build(
		e.groundingTexts(ctx, user.ID, model.MemoryFact, e.factCap),
		e.groundingTexts(ctx, user.ID, model.MemorySummary, e.summaryCap),
		recall.Texts(recalled),
	)

	reply, err := e.model.Complete(ctx, system, message)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}

	if _, err := e.store.AppendMessage(ctx, chat.ID, model.RoleAssistant, reply); err != nil {
		return "", fmt.Errorf("persist assistant message: %w", err)
	}

	e.maybeSummarize(ctx, chat.ID, user.ID)
	return reply, nil
}

// Memories returns the caller's stored memories, newest first.
func (e *Engine) Memories(ctx context.Context, aid string) ([]model.Memory, error) {
	user, _, err := e.identity(ctx, aid)
	if err != nil {
		return nil, err
	}
	return e.store.AllMemories(ctx, user.ID, e.scanCap)
}

func (e *Engine) identity(ctx context.Context, aid string) (model.User, model.Chat, error) {
	if cached, ok := e.identities.Get(aid); ok {
		if entry, ok := cached.(identityEntry); ok {
			return entry.user, entry.chat, nil
		}
	}
	user, err := e.store.EnsureUser(ctx, aid)
	if err != nil {
		return model.User{}, model.Chat{}, fmt.Errorf("ensure user: %w", err)
	}
	chat, err := e.store.EnsureChat(ctx, user.ID)
	if err != nil {
		return model.User{}, model.Chat{}, fmt.Errorf("ensure chat: %w", err)
	}
	e.identities.Set(aid, identityEntry{user: user, chat: chat}, 1)
	return user, chat, nil
}

// storeFacts extracts facts from the utterance, embeds them in one batch
// and appends them. Fact storage is optional enrichment: failures are
// logged and the turn continues. Facts stored here are visible to this
// same turn's recall scan.
func (e *Engine) storeFacts(ctx context.Context, userID int64, message string) {
	extracted := facts.Extract(message)
	if len(extracted) == 0 {
		return
	}
	vectors := e.embedder.EmbedBatch(ctx, extracted)
	for i, text := range extracted {
		if _, err := e.store.AppendMemory(ctx, userID, model.MemoryFact, text, vectors[i]); err != nil {
			log.Printf("[MEMORY] failed to store fact: %v", err)
		}
	}
}

func (e *Engine) recallMemories(ctx context.Context, userID int64, message string) []recall.Scored {
	memories, err := e.store.AllMemories(ctx, userID, e.scanCap)
	if err != nil {
		log.Printf("[MEMORY] recall scan failed: %v", err)
		return nil
	}
	if len(memories) == 0 {
		return nil
	}
	query := e.embedder.EmbedBatch(ctx, []string{message})[0]
	return e.ranker.Rank(query, memories)
}

func (e *Engine) groundingTexts(ctx context.Context, userID int64, kind model.MemoryKind, limit int) []string {
	memories, err := e.store.RecentMemories(ctx, userID, kind, limit)
	if err != nil {
		log.Printf("[MEMORY] grounding lookup failed: %v", err)
		return nil
	}
	texts := make([]string, 0, len(memories))
	for _, mem := range memories {
		texts = append(texts, mem.Text)
	}
	return texts
}

// maybeSummarize enqueues a detached summarization job when the chat's
// message count hits the cadence. The triggering request never waits for
// it, and its outcome is invisible to the caller.
func (e *Engine) maybeSummarize(ctx context.Context, chatID, userID int64) {
	count, err := e.store.CountMessages(ctx, chatID)
	if err != nil {
		log.Printf("[SUMMARY] message count failed: %v", err)
		return
	}
	if !e.summarizer.ShouldRun(count) {
		return
	}
	run := func() error {
		return e.summarizer.Run(context.Background(), chatID, userID)
	}
	if e.jobs != nil {
		e.jobs.Enqueue(run)
		return
	}
	go func() {
		if err := run(); err != nil {
			log.Printf("[SUMMARY] %v", err)
		}
	}()
}
