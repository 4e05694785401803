// Package cli wires the prometricd commands.
package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/prometric-ai/prometric/internal/api/handlers"
	"github.com/prometric-ai/prometric/internal/config"
	"github.com/prometric-ai/prometric/internal/jobs"
	"github.com/prometric-ai/prometric/internal/openai"
	"github.com/prometric-ai/prometric/internal/repository"
	"github.com/prometric-ai/prometric/internal/server"
	"github.com/prometric-ai/prometric/internal/service"
	"github.com/prometric-ai/prometric/internal/storage"
	"github.com/prometric-ai/prometric/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the prometric API server with the embedding and learning workers",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasOpenAI() {
		return errors.New("PROMETRIC_OPENAI_API_KEY is required")
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	docRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	jobRepo := repository.NewEmbeddingJobRepository(pool)
	convRepo := repository.NewConversationRepository(pool)
	learnRepo := repository.NewLearningRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	var fetcher service.ObjectFetcher
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
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		fetcher = s3Client
	}

	aiClient := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		RequestTimeout:      cfg.OpenAIRequestTimeout,
		RatePerSecond:       cfg.OpenAIRatePerSecond,
	})

	resolver := service.NewCompositeSourceResolver(fetcher)
	ingestionSvc := service.NewIngestionService(txRunner, docRepo, resolver, service.ChunkConfig{
		TargetSize: cfg.ChunkTargetSize,
		Overlap:    cfg.ChunkOverlap,
	})
	retrievalSvc := service.NewRetrievalService(aiClient, chunkRepo, service.RetrievalConfig{
		TopK:          cfg.SearchTopK,
		MinSimilarity: cfg.SearchMinSimilarity,
	})
	convSvc := service.NewConversationService(convRepo, cfg.AssistantName, cfg.ContextMaxMessages)
	learnSvc := service.NewLearningService(learnRepo, service.LearningConfig{
		BatchSize:   cfg.LearningBatchSize,
		Lookback:    cfg.InsightLookback,
		MinSample:   cfg.InsightMinSample,
		RatingFloor: cfg.InsightRatingFloor,
	})

	// Tool executors are deployment integrations; only backed tools are
	// exposed to the model.
	tools := service.DefaultToolRegistry(nil, nil, nil)

	orchestrator := service.NewOrchestratorService(
		convSvc, retrievalSvc, aiClient, tools, learnSvc,
		service.ModelProfiles{Fast: cfg.FastModel, Deep: cfg.DeepModel},
		cfg.AssistantName, cfg.AssistantPersona,
	)

	router := server.NewRouter(server.RouterConfig{
		KnowledgeHandler: handlers.NewKnowledgeHandler(ingestionSvc, retrievalSvc),
		ChatHandler:      handlers.NewChatHandler(orchestrator),
		FeedbackHandler:  handlers.NewFeedbackHandler(learnSvc),
	})

	embeddingWorker := jobs.NewWorker("embedding", cfg.EmbedPollInterval,
		jobs.Task(jobs.NewEmbeddingProcessor(jobRepo, chunkRepo, docRepo, aiClient).Process))
	learningWorker := jobs.NewWorker("learning", cfg.LearningInterval, jobs.NewLearningTask(learnSvc))
	insightWorker := jobs.NewWorker("insights", cfg.InsightInterval, jobs.NewInsightTask(learnSvc))

	embeddingWorker.Start(ctx)
	learningWorker.Start(ctx)
	insightWorker.Start(ctx)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	embeddingWorker.Stop()
	learningWorker.Stop()
	insightWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("migrations applied")
	return nil
}
