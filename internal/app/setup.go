package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studybuddy/biochem/db"
	"github.com/studybuddy/biochem/internal/chat"
	"github.com/studybuddy/biochem/internal/config"
	"github.com/studybuddy/biochem/internal/knowledge"
	"github.com/studybuddy/biochem/internal/log"
	"github.com/studybuddy/biochem/internal/rag"
	"github.com/studybuddy/biochem/internal/session"
	"github.com/studybuddy/biochem/internal/tools"
)

// RetrieverName is the knowledge base retriever's registered name in Genkit.
const RetrieverName = "studybuddy/documents"

// Setup initializes the application. On failure everything already
// initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}

	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := provideDBPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	a.Embedder = googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if a.Embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}

	a.Knowledge = knowledge.New(pool, a.Embedder, logger)
	a.Retriever = rag.NewRetriever(a.Knowledge).Define(g, RetrieverName)
	a.Indexer = rag.NewIndexer(a.Knowledge, cfg.ChunkSize, cfg.ChunkOverlap)

	a.Sessions, err = session.New(pool, logger)
	if err != nil {
		return nil, fmt.Errorf("creating session store: %w", err)
	}

	if err := provideTools(a); err != nil {
		return nil, err
	}

	a.Agent, err = chat.New(chat.Config{
		Genkit:        g,
		Retriever:     a.Retriever,
		SessionStore:  a.Sessions,
		Logger:        logger,
		Tools:         a.Tools,
		ModelName:     cfg.FullModelName(),
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
		MaxTurns:      cfg.MaxTurns,
		RetrievalTopK: cfg.RetrievalTopK,
		HistoryLimit:  cfg.MaxHistoryMessages,
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat agent: %w", err)
	}

	a.Flow, err = chat.InitFlow(g, a.Agent)
	if err != nil {
		return nil, fmt.Errorf("initializing chat flow: %w", err)
	}

	return a, nil
}

// provideDBPool runs migrations and opens a connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideGenkit initializes Genkit with the Google AI plugin and the prompt
// directory.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	promptDir := cfg.PromptDir
	if promptDir == "" {
		promptDir = "prompts"
	}

	g := genkit.Init(ctx,
		genkit.WithPlugins(&googlegenai.GoogleAI{}),
		genkit.WithPromptDir(promptDir),
	)
	if g == nil {
		return nil, errors.New("initializing genkit")
	}

	logger.Info("initialized Genkit", "model", cfg.ModelName, "prompt_dir", promptDir)
	return g, nil
}

// provideTools registers the calculator and knowledge tools with Genkit.
func provideTools(a *App) error {
	var allTools []ai.Tool

	calc, err := tools.NewCalculators(a.Logger)
	if err != nil {
		return fmt.Errorf("creating calculator tools: %w", err)
	}
	calcTools, err := tools.RegisterCalculators(a.Genkit, calc)
	if err != nil {
		return fmt.Errorf("registering calculator tools: %w", err)
	}
	allTools = append(allTools, calcTools...)

	kt, err := tools.NewKnowledge(a.Retriever, a.Logger)
	if err != nil {
		return fmt.Errorf("creating knowledge tools: %w", err)
	}
	knowledgeTools, err := tools.RegisterKnowledge(a.Genkit, kt)
	if err != nil {
		return fmt.Errorf("registering knowledge tools: %w", err)
	}
	allTools = append(allTools, knowledgeTools...)

	a.Tools = allTools
	a.Logger.Info("tools registered", "count", len(allTools))
	return nil
}
