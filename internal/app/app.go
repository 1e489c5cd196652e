// -----------------------------------------------------------------------
// Last Modified: Tuesday, 18th August 2026 11:03:26 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoro/internal/common"
	"github.com/ternarybob/memoro/internal/handlers"
	"github.com/ternarybob/memoro/internal/interfaces"
	"github.com/ternarybob/memoro/internal/services/chunker"
	"github.com/ternarybob/memoro/internal/services/documents"
	"github.com/ternarybob/memoro/internal/services/embeddings"
	"github.com/ternarybob/memoro/internal/services/extraction"
	"github.com/ternarybob/memoro/internal/services/index"
	"github.com/ternarybob/memoro/internal/services/llm"
	"github.com/ternarybob/memoro/internal/services/maintenance"
	"github.com/ternarybob/memoro/internal/services/rag"
	"github.com/ternarybob/memoro/internal/services/router"
	"github.com/ternarybob/memoro/internal/services/status"
	"github.com/ternarybob/memoro/internal/services/transcription"
	badgerstorage "github.com/ternarybob/memoro/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	StorageManager interfaces.StorageManager

	// Core services
	LLMService       interfaces.LLMService
	EmbeddingService interfaces.EmbeddingService
	DocumentService  interfaces.DocumentService
	VectorIndex      interfaces.VectorIndex
	RAGService       interfaces.RAGService
	Router           interfaces.Router
	Transcriber      interfaces.Transcriber
	StatusService    *status.Service
	Maintenance      *maintenance.Service

	// HTTP handlers
	DocumentHandler *handlers.DocumentHandler
	QueryHandler    *handlers.QueryHandler
	StatusHandler   *handlers.StatusHandler
	VoiceHandler    *handlers.VoiceHandler
}

// New initializes the application with all dependencies. The vector
// index is loaded here: a corrupt index aborts startup rather than
// serving wrong retrieval results.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	if err := app.Maintenance.Start(); err != nil {
		return nil, fmt.Errorf("failed to start maintenance scheduler: %w", err)
	}

	logger.Info().
		Str("llm_mode", cfg.LLM.Mode).
		Int("index_size", app.VectorIndex.Size()).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage initializes the storage layer (Badger)
func (a *App) initStorage() error {
	manager, err := badgerstorage.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = manager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices wires the service graph bottom-up: LLM, embeddings,
// documents, index, RAG, routing, transcription.
func (a *App) initServices() error {
	llmService, err := llm.NewLLMService(a.Config, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create LLM service: %w", err)
	}
	a.LLMService = llmService

	a.EmbeddingService = embeddings.NewEmbeddingService(llmService, a.Logger)

	a.DocumentService = documents.NewService(
		a.StorageManager.DocumentStorage(),
		extraction.NewExtractor(a.Logger),
		chunker.NewSemanticChunker(&a.Config.Chunking, a.Logger),
		a.Logger,
	)

	vectorIndex, err := index.NewService(a.EmbeddingService, a.Config.Index.Dir, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	if err := vectorIndex.Load(); err != nil {
		return fmt.Errorf("failed to load vector index: %w", err)
	}
	a.VectorIndex = vectorIndex

	a.RAGService = rag.NewService(vectorIndex, a.DocumentService, llmService, a.Config.Index.DefaultTopK, a.Logger)
	a.Router = router.NewService(llmService, a.Logger)

	transcriber, err := transcription.NewWhisperService(&a.Config.Whisper, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create transcription service: %w", err)
	}
	a.Transcriber = transcriber

	a.StatusService = status.NewService(a.Config.Environment, vectorIndex, a.DocumentService, llmService, a.Logger)
	a.Maintenance = maintenance.NewService(a.StorageManager, vectorIndex, &a.Config.Maintenance, a.Logger)

	return nil
}

// initHandlers creates the HTTP and WebSocket handlers.
func (a *App) initHandlers() {
	a.DocumentHandler = handlers.NewDocumentHandler(a.DocumentService, a.VectorIndex, a.Logger)
	a.QueryHandler = handlers.NewQueryHandler(a.RAGService, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.StatusService, a.VectorIndex, a.Logger)
	a.VoiceHandler = handlers.NewVoiceHandler(a.Transcriber, a.Router, a.RAGService, a.LLMService, &a.Config.Voice, a.Logger)
}

// Reindex rebuilds the vector index from every stored chunk. The current
// index is discarded; the rebuilt index is saved before returning.
func (a *App) Reindex() error {
	ctx := context.Background()
	refs, texts, err := a.DocumentService.AllChunks(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect chunks for reindex: %w", err)
	}

	fresh, err := index.NewService(a.EmbeddingService, a.Config.Index.Dir, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create replacement index: %w", err)
	}

	// Group refs back into per-document chunk lists, preserving order.
	start := 0
	for start < len(refs) {
		end := start
		for end < len(refs) && refs[end].DocID == refs[start].DocID {
			end++
		}
		if err := fresh.AddChunks(ctx, refs[start].DocID, texts[start:end]); err != nil {
			return fmt.Errorf("failed to reindex document %s: %w", refs[start].DocID, err)
		}
		start = end
	}

	// An empty rebuild still needs persisting so stale artifacts are replaced.
	if err := fresh.Save(); err != nil {
		return fmt.Errorf("failed to save rebuilt index: %w", err)
	}

	a.VectorIndex = fresh
	a.RAGService = rag.NewService(fresh, a.DocumentService, a.LLMService, a.Config.Index.DefaultTopK, a.Logger)
	a.initHandlers()

	a.Logger.Info().
		Int("chunks", len(texts)).
		Msg("Vector index rebuilt")

	return nil
}

// Close shuts down all application components in reverse dependency order.
func (a *App) Close() error {
	a.Logger.Info().Msg("Shutting down application...")

	if a.Maintenance != nil {
		a.Maintenance.Stop()
	}

	if a.VectorIndex != nil {
		if err := a.VectorIndex.Save(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to save vector index on shutdown")
		}
	}

	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage manager")
			return err
		}
	}

	a.Logger.Info().Msg("Application shutdown complete")
	return nil
}
