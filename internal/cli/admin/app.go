package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/studybuddy/internal/config"
	"github.com/cloo-solutions/studybuddy/internal/database"
	"github.com/cloo-solutions/studybuddy/internal/extract"
	"github.com/cloo-solutions/studybuddy/internal/openai"
	"github.com/cloo-solutions/studybuddy/internal/repository"
	"github.com/cloo-solutions/studybuddy/internal/service"
	"github.com/cloo-solutions/studybuddy/internal/storage"
	"github.com/cloo-solutions/studybuddy/internal/telemetry"
	"github.com/cloo-solutions/studybuddy/internal/vectorstore"
	"github.com/jackc/pgx/v5/pgxpool"
)

// app holds the services shared by the HTTP server and the MCP server.
type app struct {
	cfg       *config.Config
	pool      *pgxpool.Pool
	auth      *service.AuthService
	documents *service.DocumentService
	web       *service.WebService
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	pool, err := database.NewPool(ctx, database.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DatabaseMaxConns,
	})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, pool: pool}
	if err := a.wire(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	userRepo := repository.NewUserRepository(a.pool)
	sessionRepo := repository.NewSessionRepository(a.pool)
	queryLogRepo := repository.NewQueryLogRepository(a.pool)

	a.auth = service.NewAuthService(userRepo, sessionRepo, &service.DefaultUUIDGenerator{}, cfg.SessionTTL)

	if !cfg.HasLLM() {
		return fmt.Errorf("an LLM endpoint is required: set STUDYBUDDY_LLM_BASE_URL")
	}
	llm := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.LLMAPIKey,
		BaseURL:             cfg.LLMBaseURL,
		EmbeddingModel:      cfg.EmbeddingModel,
		ChatModel:           cfg.ChatModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		Timeout:             cfg.UpstreamTimeout,
	})

	documentPipeline, err := a.newPipeline(service.DocumentPipelineConfig(), cfg.DocumentTopK, llm)
	if err != nil {
		return fmt.Errorf("failed to build document pipeline: %w", err)
	}
	webPipeline, err := a.newPipeline(service.WebPipelineConfig(), cfg.WebTopK, llm)
	if err != nil {
		return fmt.Errorf("failed to build web pipeline: %w", err)
	}
	documentPipeline.WithQueryLog(queryLogRepo)
	webPipeline.WithQueryLog(queryLogRepo)

	a.documents = service.NewDocumentService(documentPipeline, extract.NewPDF())
	a.web = service.NewWebService(webPipeline, extract.NewWebPage())

	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready, uploads will be archived", cfg.S3Bucket)
		a.documents.WithArchive(s3Client, storage.DocumentKey)
	}

	return nil
}

func (a *app) newPipeline(pcfg service.PipelineConfig, topK int, llm *openai.Client) (*service.RAGPipeline, error) {
	store, err := vectorstore.New(a.cfg.EmbeddingDimensions, vectorstore.WithMaxRows(a.cfg.StoreMaxRows))
	if err != nil {
		return nil, err
	}
	pcfg.TopK = topK
	pcfg.Chunking = service.ChunkConfig{MaxChars: a.cfg.ChunkSize, Overlap: a.cfg.ChunkOverlap}
	return service.NewRAGPipeline(pcfg, store, llm, llm)
}

func (a *app) Close() {
	a.pool.Close()
}

func initTelemetry(cfg *config.Config) func() {
	if !cfg.HasSentry() {
		return func() {}
	}

	// 10% sampling in production, everything elsewhere
	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
		return func() {}
	}
	return shutdown
}
