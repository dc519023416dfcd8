package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/coauthor-labs/knowledge-engine/internal/adapters/driven/ai/openai"
	"github.com/coauthor-labs/knowledge-engine/internal/adapters/driven/config/file"
	"github.com/coauthor-labs/knowledge-engine/internal/adapters/driven/storage/postgres"
	"github.com/coauthor-labs/knowledge-engine/internal/adapters/driven/storage/sqlite"
	"github.com/coauthor-labs/knowledge-engine/internal/adapters/driving/cli"
	"github.com/coauthor-labs/knowledge-engine/internal/core/ports/driven"
	"github.com/coauthor-labs/knowledge-engine/internal/core/services"
	"github.com/coauthor-labs/knowledge-engine/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	config, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("initializing config store: %w", err)
	}

	// Reload the config when it changes on disk for the lifetime of the
	// process. Long-running commands pick up edited settings.
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go func() {
		if err := config.Watch(watchCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Config watcher stopped: %v", err)
		}
	}()

	store, err := sqlite.NewStore("")
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	// The lexical index defaults to the embedded SQLite FTS5 tables and
	// switches to PostgreSQL when a backend is configured.
	index := store.TextIndex()
	if config.GetString("index.backend") == "postgres" {
		dsn := config.GetString("index.postgres_dsn")
		if dsn == "" {
			dsn = os.Getenv("KNOWLEDGE_POSTGRES_DSN")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pg, err := postgres.Connect(ctx, dsn)
		cancel()
		if err != nil {
			return fmt.Errorf("connecting index backend: %w", err)
		}
		defer pg.Close()
		index = pg
	}

	// The composer is optional: without an API key the engine runs every
	// pipeline stage on its deterministic fallback.
	var composer driven.Composer
	apiKey := config.GetString("openai.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey != "" {
		c, err := openai.NewComposer(openai.Config{
			APIKey:            apiKey,
			BaseURL:           config.GetString("openai.base_url"),
			Model:             config.GetString("openai.model"),
			RequestsPerMinute: config.GetInt("openai.requests_per_minute"),
		})
		if err != nil {
			return fmt.Errorf("initializing composer: %w", err)
		}
		composer = c
	} else {
		logger.Debug("no OpenAI API key configured; AI stages disabled")
	}

	entities := store.EntityStore()
	catalog := store.Catalog()
	querylog := store.QueryLogStore()

	cli.SetServices(&cli.Services{
		Harvester:  services.NewHarvestService(entities, catalog, index, config.GetInt("limits.max_entities_per_workspace")),
		Related:    services.NewRelatedService(entities, catalog, composer),
		Search:     services.NewSearchService(index, entities, catalog, composer, querylog),
		IndexAdmin: services.NewIndexService(catalog, entities, index),
		QueryLog:   querylog,
	})

	return cli.Execute()
}
