// Command companion runs the conversational companion HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Protocol-Lattice/companion/pkg/companion"
	"github.com/Protocol-Lattice/companion/pkg/config"
	"github.com/Protocol-Lattice/companion/pkg/embed"
	"github.com/Protocol-Lattice/companion/pkg/httpapi"
	"github.com/Protocol-Lattice/companion/pkg/jobs"
	"github.com/Protocol-Lattice/companion/pkg/models"
	"github.com/Protocol-Lattice/companion/pkg/prompt"
	"github.com/Protocol-Lattice/companion/pkg/recall"
	"github.com/Protocol-Lattice/companion/pkg/store"
	"github.com/Protocol-Lattice/companion/pkg/summary"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("[MAIN] %v", err)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	chatModel, err := models.AutoModel(ctx, cfg.Model.Provider, cfg.Model.BaseURL, cfg.Model.APIKey, cfg.Model.Name, cfg.Model.Headers)
	if err != nil {
		return fmt.Errorf("chat model: %w", err)
	}

	rawEmbedder, err := embed.AutoEmbedder(ctx, cfg.Embed.Provider, cfg.Embed.BaseURL, cfg.Embed.APIKey, cfg.Embed.Name, cfg.Embed.Headers)
	if err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	embedder := embed.NewDegrading(rawEmbedder)

	queue := jobs.NewQueue(nil)
	defer queue.Stop()

	summarizer := summary.NewSummarizer(st, chatModel, embedder)
	if cfg.Summary.Cadence > 0 {
		summarizer.Cadence = cfg.Summary.Cadence
	}
	if cfg.Summary.Window > 0 {
		summarizer.Window = cfg.Summary.Window
	}

	minScore := cfg.Recall.MinScore
	if minScore == 0 {
		minScore = recall.DefaultMinScore
	}
	ranker := recall.NewRanker(cfg.Recall.TopK, minScore)

	engine, err := companion.New(companion.Options{
		Store:      st,
		Model:      chatModel,
		Embedder:   embedder,
		Ranker:     ranker,
		Assembler:  prompt.NewAssembler(cfg.Persona),
		Summarizer: summarizer,
		Jobs:       queue,
		ScanCap:    cfg.Recall.ScanCap,
	})
	if err != nil {
		return err
	}

	api := httpapi.NewServer(engine, httpapi.Options{
		AllowOrigins:  cfg.AllowOrigins,
		CookieSecure:  cfg.CookieSecure,
		RatePerMinute: cfg.RatePerMinute,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[MAIN] listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		log.Printf("[MAIN] shut down cleanly")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// openStore picks the storage backend by DSN scheme and applies its schema.
func openStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	dsn := strings.TrimSpace(cfg.DSN)
	switch {
	case dsn == "":
		log.Printf("[MAIN] no DSN configured, using in-memory store")
		return store.NewInMemoryStore(), func() {}, nil

	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		pg, err := store.NewPostgresStore(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		if err := pg.CreateSchema(ctx, cfg.SchemaPath); err != nil {
			_ = pg.Close()
			return nil, nil, fmt.Errorf("postgres schema: %w", err)
		}
		return pg, func() { _ = pg.Close() }, nil

	case strings.HasPrefix(dsn, "mongodb://") || strings.HasPrefix(dsn, "mongodb+srv://"):
		mg, err := store.NewMongoStore(ctx, dsn, mongoDatabase(dsn))
		if err != nil {
			return nil, nil, fmt.Errorf("mongodb: %w", err)
		}
		if err := mg.CreateSchema(ctx, ""); err != nil {
			_ = mg.Close()
			return nil, nil, fmt.Errorf("mongodb schema: %w", err)
		}
		return mg, func() { _ = mg.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported DSN scheme in %q", dsn)
	}
}

// mongoDatabase extracts the database name from a Mongo connection string,
// falling back to "companion" when the URI names none.
func mongoDatabase(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "companion"
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return "companion"
}
