// Package app provides application initialization and dependency wiring.
//
// App is the container that builds the full reply pipeline from
// configuration: the GenAI client, the knowledge store, the fusion
// engine, the tool registry with its MCP sessions, the generation loop,
// and the assistant itself.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/camilo-ai/camilo/internal/agent"
	"github.com/camilo-ai/camilo/internal/chat"
	"github.com/camilo-ai/camilo/internal/config"
	"github.com/camilo-ai/camilo/internal/events"
	"github.com/camilo-ai/camilo/internal/knowledge"
	"github.com/camilo-ai/camilo/internal/llm"
	"github.com/camilo-ai/camilo/internal/log"
	"github.com/camilo-ai/camilo/internal/observability"
	"github.com/camilo-ai/camilo/internal/prompt"
	"github.com/camilo-ai/camilo/internal/retrieval"
	"github.com/camilo-ai/camilo/internal/tools"
)

// observabilityShutdownTimeout bounds the final trace flush.
const observabilityShutdownTimeout = 5 * time.Second

// App is the core application container.
type App struct {
	Config    *config.Config
	Logger    log.Logger
	Pool      *pgxpool.Pool
	LLM       *llm.Client
	Knowledge *knowledge.Store
	Retrieval *retrieval.Engine
	Broker    *events.Broker
	Registry  *tools.Registry
	Assistant *chat.Assistant

	mcp            *tools.Manager
	shutdownTracer func(context.Context) error
}

// New builds the application from configuration. MCP servers that fail
// to connect are skipped; everything else is required.
func New(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if cfg.Datadog.Enabled {
		shutdown, err := observability.Setup(ctx, observability.Config{
			AgentHost:   cfg.Datadog.AgentHost,
			Environment: cfg.Datadog.Environment,
			ServiceName: cfg.Datadog.ServiceName,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("setting up tracing: %w", err)
		}
		a.shutdownTracer = shutdown
	}

	pool, err := pgxpool.New(ctx, cfg.ConnURL())
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}
	a.Pool = pool

	client, err := llm.NewClient(ctx, llm.Config{
		APIKey:        cfg.GeminiAPIKey,
		Model:         cfg.ModelName,
		EmbedderModel: cfg.EmbedderModel,
		Dimension:     cfg.EmbedderDimension,
		Logger:        logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating LLM client: %w", err)
	}
	a.LLM = client

	a.Knowledge = knowledge.NewStore(pool, logger)

	engine, err := retrieval.NewEngine(retrieval.Config{
		Embedder:      client,
		Searcher:      a.Knowledge,
		Logger:        logger,
		Threshold:     cfg.MatchThreshold,
		HistoryWindow: cfg.HistoryWindow,
		PerKindLimit:  cfg.MatchCount,
		TotalLimit:    cfg.ContextLimit,
		ShadowBanLow:  cfg.ShadowBanLow,
		ShadowBanHigh: cfg.ShadowBanHigh,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating retrieval engine: %w", err)
	}
	a.Retrieval = engine

	a.Broker = events.NewBroker(logger)

	a.Registry = tools.NewRegistry(logger)
	manager, err := tools.NewManager(ctx, cfg.MCPServers, a.Registry, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connecting MCP servers: %w", err)
	}
	a.mcp = manager

	loop, err := agent.NewLoop(agent.Config{
		Backend:           client,
		Tools:             a.Registry,
		Events:            a.Broker,
		Logger:            logger,
		MaxIterations:     cfg.MaxToolIterations,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating generation loop: %w", err)
	}

	assistant, err := chat.New(chat.Config{
		Retriever:     engine,
		Completer:     client,
		Loop:          loop,
		Tools:         a.Registry,
		Exchanges:     a.Knowledge,
		Logger:        logger,
		Persona:       prompt.DefaultPersona(cfg.PersonaName),
		PersonaName:   cfg.PersonaName,
		SafeMode:      cfg.SafeMode,
		HistoryWindow: cfg.HistoryWindow,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating assistant: %w", err)
	}
	a.Assistant = assistant

	return a, nil
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	var firstErr error
	if a.mcp != nil {
		if err := a.mcp.Close(); err != nil {
			a.Logger.Warn("closing MCP sessions", "error", err)
			firstErr = err
		}
	}
	if a.shutdownTracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), observabilityShutdownTimeout)
		defer cancel()
		if err := a.shutdownTracer(ctx); err != nil {
			a.Logger.Warn("flushing traces", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Info("database pool closed")
	}
	return firstErr
}
