package embed

import (
	"context"
	"log"
)

// Degrading wraps an Embedder with the never-fail contract the conversation
// engine relies on: a total provider failure degrades every entry to an
// empty vector instead of surfacing an error, and a nil inner provider (no
// credential configured) short-circuits without any network call. Empty
// vectors score zero during recall, so degraded turns simply recall nothing.
type Degrading struct {
	inner Embedder
}

func NewDegrading(inner Embedder) *Degrading {
	return &Degrading{inner: inner}
}

// EmbedBatch returns exactly one vector per input text. Entries the
// provider failed to produce come back empty.
func (d *Degrading) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	if len(texts) == 0 {
		return nil
	}
	if d == nil || d.inner == nil {
		return make([][]float32, len(texts))
	}
	vectors, err := d.inner.EmbedBatch(ctx, texts)
	if err != nil {
		log.Printf("[EMBED] degraded to empty vectors: %v", err)
		return make([][]float32, len(texts))
	}
	out := make([][]float32, len(texts))
	copy(out, vectors)
	return out
}
