// Package summary periodically condenses recent conversation into summary
// memories. Summarization is a side task of a conversational turn: its
// failures are logged and swallowed, never surfaced to the caller.
package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/Protocol-Lattice/companion/pkg/embed"
	"github.com/Protocol-Lattice/companion/pkg/model"
	"github.com/Protocol-Lattice/companion/pkg/models"
	"github.com/Protocol-Lattice/companion/pkg/store"
)

const (
	// DefaultCadence summarizes every six user/assistant exchange pairs.
	DefaultCadence = 12

	// DefaultWindow is how many recent messages feed one summary.
	DefaultWindow = 20

	instruction = "Summarize this conversation in 1-2 sentences, emphasizing stable facts and user preferences over transient content."
)

// Summarizer condenses the most recent messages of a chat into a single
// short summary memory.
type Summarizer struct {
	Store    store.Store
	Model    models.ChatModel
	Embedder *embed.Degrading
	Cadence  int
	Window   int
}

func NewSummarizer(st store.Store, chatModel models.ChatModel, embedder *embed.Degrading) *Summarizer {
	return &Summarizer{
		Store:    st,
		Model:    chatModel,
		Embedder: embedder,
		Cadence:  DefaultCadence,
		Window:   DefaultWindow,
	}
}

// ShouldRun reports whether a chat with messageCount messages is due for
// summarization: only at exact positive multiples of the cadence.
func (s *Summarizer) ShouldRun(messageCount int) bool {
	cadence := s.Cadence
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	return messageCount > 0 && messageCount%cadence == 0
}

// Run loads the window of most recent messages, restores chronological
// order, asks the model for a condensed summary, embeds it and appends it
// as a summary memory. The returned error is for logging only; callers run
// Run through a job queue and never fail a turn on it.
func (s *Summarizer) Run(ctx context.Context, chatID, userID int64) error {
	window := s.Window
	if window <= 0 {
		window = DefaultWindow
	}
	messages, err := s.Store.RecentMessages(ctx, chatID, window)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	if len(messages) == 0 {
		return nil
	}

	text, err := s.Model.Complete(ctx, instruction, Transcript(messages))
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	vectors := s.Embedder.EmbedBatch(ctx, []string{text})
	if _, err := s.Store.AppendMemory(ctx, userID, model.MemorySummary, text, vectors[0]); err != nil {
		return fmt.Errorf("store summary: %w", err)
	}
	return nil
}

// Transcript renders newest-first messages as a chronological
// "ROLE: content" transcript, oldest line first.
func Transcript(newestFirst []model.Message) string {
	lines := make([]string, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		msg := newestFirst[i]
		lines = append(lines, strings.ToUpper(string(msg.Role))+": "+msg.Content)
	}
	return strings.Join(lines, "\n")
}
