package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minqi/snaplore/internal/api"
	"github.com/minqi/snaplore/internal/api/middleware"
	"github.com/minqi/snaplore/internal/config"
	"github.com/minqi/snaplore/internal/logger"
	"github.com/minqi/snaplore/internal/repository"
	"github.com/minqi/snaplore/internal/service"
	"github.com/minqi/snaplore/internal/storage"
)

func main() {
	// CONFIG_PATH overrides the default config lookup for deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	log := logger.NewDefault()
	logger.SetDefaultLogger(log)
	defer logger.Sync()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}

	shotRepo := repository.NewScreenshotRepository(db)
	queryRepo := repository.NewQueryRepository(db)

	index := buildIndex(cfg)

	objectStorage, err := storage.NewStorage(&storage.Config{
		Provider:  cfg.Storage.Provider,
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}

	ctx := context.Background()
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		logger.Fatal("Failed to ensure storage bucket: %v", err)
	}

	extractor := service.NewVLMExtractor(&service.VLMExtractorConfig{
		Model:   cfg.Extractor.Model,
		APIKey:  cfg.Extractor.APIKey,
		BaseURL: cfg.Extractor.BaseURL,
	})

	resolver := buildResolver(cfg)

	distiller := service.NewDistiller(&service.DistillerConfig{
		Model:   cfg.Distiller.Model,
		APIKey:  cfg.Distiller.APIKey,
		BaseURL: cfg.Distiller.BaseURL,
	})

	embedder := service.NewEmbeddingService(&service.EmbeddingServiceConfig{
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})

	reranker := service.NewReranker(&service.RerankerConfig{
		Model:   cfg.Rerank.Model,
		APIKey:  cfg.Rerank.APIKey,
		BaseURL: cfg.Rerank.BaseURL,
	})

	answerer := service.NewAnswerService(&service.AnswerServiceConfig{
		Model:   cfg.Answer.Model,
		APIKey:  cfg.Answer.APIKey,
		BaseURL: cfg.Answer.BaseURL,
	})

	enricher := service.NewEnrichmentService(
		shotRepo,
		index,
		objectStorage,
		extractor,
		resolver,
		distiller,
		embedder,
		&service.EnrichmentConfig{
			Workers:   cfg.Pipeline.Workers,
			QueueSize: cfg.Pipeline.QueueSize,
		},
	)
	enricher.Start(ctx)
	defer enricher.Stop()

	screenshots := service.NewScreenshotService(
		shotRepo,
		index,
		objectStorage,
		enricher,
		&service.ScreenshotServiceConfig{
			URLTTL: cfg.Storage.URLTTL(),
		},
	)

	retrieval := service.NewRetrievalService(
		shotRepo,
		queryRepo,
		index,
		embedder,
		reranker,
		answerer,
		&service.RetrievalConfig{
			DefaultLimit: cfg.Search.DefaultLimit,
			MaxLimit:     cfg.Search.MaxLimit,
		},
	)

	router := api.SetupRouter(&api.RouterDeps{
		DB:          db,
		Index:       index,
		Screenshots: screenshots,
		Retrieval:   retrieval,
		Enricher:    enricher,
		Mode:        cfg.Server.Mode,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting API server: port=%d, mode=%s", cfg.Server.Port, cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// buildIndex selects the vector index backend. Qdrant degrades to a
// disconnected index when unreachable; "memory" runs everything in-process.
func buildIndex(cfg *config.Config) repository.VectorIndex {
	if cfg.Index.Backend == "memory" {
		logger.Info("Using in-memory vector index")
		return repository.NewMemoryIndex()
	}

	idx, err := repository.NewQdrantIndex(&repository.QdrantConnectionConfig{
		Host:            cfg.Index.Host,
		Port:            cfg.Index.Port,
		Collection:      cfg.Index.Collection,
		APIKey:          cfg.Index.APIKey,
		UseTLS:          cfg.Index.UseTLS,
		VectorDimension: cfg.Embedding.Dimensions,
	})
	if err != nil {
		logger.Fatal("Failed to initialize Qdrant index: %v", err)
	}
	return idx
}

// buildResolver selects the source resolver implementation.
func buildResolver(cfg *config.Config) service.SourceResolver {
	if cfg.Resolver.Mode == "structured" {
		return service.NewStructuredResolver(&service.StructuredResolverConfig{
			Model:   cfg.Resolver.Model,
			APIKey:  cfg.Resolver.APIKey,
			BaseURL: cfg.Resolver.BaseURL,
		})
	}

	searcher := service.NewWebSearcher(&service.WebSearchConfig{
		APIKey:   cfg.Resolver.Search.APIKey,
		EngineID: cfg.Resolver.Search.EngineID,
		Endpoint: cfg.Resolver.Search.Endpoint,
	})

	return service.NewNarrativeResolver(&service.NarrativeResolverConfig{
		Model:     cfg.Resolver.Model,
		APIKey:    cfg.Resolver.APIKey,
		BaseURL:   cfg.Resolver.BaseURL,
		MaxRounds: cfg.Resolver.MaxRounds,
	}, searcher)
}
