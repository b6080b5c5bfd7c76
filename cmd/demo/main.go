// Command demo runs a scripted conversation against the companion engine
// with no external services: in-memory storage, deterministic embeddings
// and an echoing model.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/Protocol-Lattice/companion/pkg/companion"
	"github.com/Protocol-Lattice/companion/pkg/embed"
	"github.com/Protocol-Lattice/companion/pkg/models"
	"github.com/Protocol-Lattice/companion/pkg/store"
)

func main() {
	ctx := context.Background()

	engine, err := companion.New(companion.Options{
		Store:    store.NewInMemoryStore(),
		Model:    models.NewDummyLLM("Companion:"),
		Embedder: embed.NewDegrading(embed.DummyEmbedder{}),
	})
	if err != nil {
		log.Fatalf("[DEMO] engine: %v", err)
	}

	const aid = "demo-visitor"
	script := []string{
		"Hi there! My name is Robin.",
		"I really like hiking in the rain.",
		"I dislike crowded trains.",
		"What do you remember about me?",
	}

	for _, line := range script {
		fmt.Printf("> %s\n", line)
		reply, err := engine.Converse(ctx, aid, line)
		if err != nil {
			log.Fatalf("[DEMO] turn failed: %v", err)
		}
		fmt.Printf("%s\n\n", reply)
	}

	memories, err := engine.Memories(ctx, aid)
	if err != nil {
		log.Fatalf("[DEMO] memories: %v", err)
	}
	fmt.Println("Stored memories (newest first):")
	for _, mem := range memories {
		fmt.Printf("  [%s] %s\n", mem.Kind, mem.Text)
	}
}
