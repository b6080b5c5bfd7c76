// Package recall selects the stored memories most similar to the current
// turn's query embedding. Scoring is an exact linear scan over the user's
// memory set; no index is built because the per-user set is capped.
package recall

import (
	"sort"

	"github.com/Protocol-Lattice/companion/pkg/model"
)

const (
	DefaultTopK     = 8
	DefaultMinScore = 0.1
)

// Scored pairs a memory with its cosine similarity against the query.
type Scored struct {
	Memory model.Memory
	Score  float64
}

// Ranker orders memories by descending cosine similarity, keeps at most
// TopK of them and drops everything at or below MinScore. Memories with
// empty embeddings naturally score zero and never survive the threshold.
type Ranker struct {
	TopK     int
	MinScore float64
}

func NewRanker(topK int, minScore float64) *Ranker {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Ranker{TopK: topK, MinScore: minScore}
}

// Rank scores every memory against the query embedding. Ties keep the input
// order, which is newest first for store listings.
func (r *Ranker) Rank(query []float32, memories []model.Memory) []Scored {
	scored := make([]Scored, 0, len(memories))
	for _, mem := range memories {
		score := model.CosineSimilarity(query, mem.Embedding)
		if score <= r.MinScore {
			continue
		}
		scored = append(scored, Scored{Memory: mem, Score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > r.TopK {
		scored = scored[:r.TopK]
	}
	return scored
}

// Texts extracts the memory texts from a ranked result, preserving order.
func Texts(scored []Scored) []string {
	if len(scored) == 0 {
		return nil
	}
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.Memory.Text
	}
	return out
}
