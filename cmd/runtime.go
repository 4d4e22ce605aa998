package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/cssci-tools/jonathan/db"
	"github.com/cssci-tools/jonathan/internal/assistant"
	"github.com/cssci-tools/jonathan/internal/chunker"
	"github.com/cssci-tools/jonathan/internal/config"
	"github.com/cssci-tools/jonathan/internal/database"
	"github.com/cssci-tools/jonathan/internal/googleai"
	"github.com/cssci-tools/jonathan/internal/index"
	"github.com/cssci-tools/jonathan/internal/ingest"
	"github.com/cssci-tools/jonathan/internal/log"
)

// Outbound Gemini API throttle shared by embedding and generation.
const (
	apiRateLimit = rate.Limit(2)
	apiRateBurst = 5
)

// runtime bundles the wired application: database pool, model client,
// vector index, assistant and ingest pipeline.
type runtime struct {
	cfg       *config.Config
	logger    log.Logger
	pool      *pgxpool.Pool
	closePool func()
	ai        *googleai.Client
	store     *index.Store
	assistant *assistant.Assistant
	chunker   *chunker.Chunker
	pipeline  *ingest.Pipeline
}

// newRuntime connects the database, runs pending migrations and wires
// every component. Callers must Close.
func newRuntime(ctx context.Context, cfg *config.Config, logger log.Logger) (*runtime, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, closePool, err := database.NewPool(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	ai, err := googleai.New(ctx, googleai.Config{
		APIKey:               cfg.GeminiAPIKey,
		ModelName:            cfg.ModelName,
		EmbedderModel:        cfg.EmbedderModel,
		Temperature:          cfg.Temperature,
		MaxTokens:            cfg.MaxTokens,
		OutputDimensionality: index.VectorDimension,
		RateLimiter:          rate.NewLimiter(apiRateLimit, apiRateBurst),
	}, logger)
	if err != nil {
		closePool()
		return nil, fmt.Errorf("creating model client: %w", err)
	}

	store := index.New(pool, ai, logger)

	asst, err := assistant.New(assistant.Config{
		Retriever: store,
		Generator: ai,
		Logger:    logger,
		TopK:      cfg.RetrievalTopK,
	})
	if err != nil {
		closePool()
		return nil, fmt.Errorf("creating assistant: %w", err)
	}

	ch, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		closePool()
		return nil, fmt.Errorf("creating chunker: %w", err)
	}

	pipeline, err := ingest.New(ingest.Config{
		Chunker: ch,
		Index:   store,
		Logger:  logger,
	})
	if err != nil {
		closePool()
		return nil, fmt.Errorf("creating ingest pipeline: %w", err)
	}

	return &runtime{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		closePool: closePool,
		ai:        ai,
		store:     store,
		assistant: asst,
		chunker:   ch,
		pipeline:  pipeline,
	}, nil
}

// Close releases the database pool.
func (r *runtime) Close() {
	if r.closePool != nil {
		r.closePool()
	}
}
