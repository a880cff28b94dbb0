// Package agent drives the conversation with the tool-calling
// generation backend: it sends the assembled prompt, executes the tool
// calls the backend requests, feeds results back, and loops until the
// backend produces a turn with no tool calls.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/camilo-ai/camilo/internal/events"
	"github.com/camilo-ai/camilo/internal/llm"
)

// Backend is the generation capability the loop drives.
type Backend interface {
	Generate(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema) (*llm.Turn, error)
}

// Dispatcher executes tool calls and declares their schemas.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args map[string]any) (string, error)
	Schemas() []llm.ToolSchema
}

// Publisher receives status events during generation.
type Publisher interface {
	Publish(events.Event)
}

// Config holds construction parameters for Loop.
type Config struct {
	Backend Backend
	Tools   Dispatcher
	Events  Publisher
	Logger  *slog.Logger

	// MaxIterations bounds backend round-trips per request. A
	// misbehaving backend that keeps requesting tools hits this guard
	// instead of looping forever. Zero means the default of 10.
	MaxIterations int

	// RequestsPerSecond throttles backend calls. Zero disables
	// throttling.
	RequestsPerSecond float64
}

func (c *Config) validate() error {
	if c.Backend == nil {
		return fmt.Errorf("backend is required")
	}
	if c.Tools == nil {
		return fmt.Errorf("tool dispatcher is required")
	}
	if c.Events == nil {
		return fmt.Errorf("event publisher is required")
	}
	return nil
}

// Loop is the generation state machine. Safe for concurrent use; each
// Run call keeps its own message list.
type Loop struct {
	backend Backend
	tools   Dispatcher
	events  Publisher
	logger  *slog.Logger
	maxIter int
	limiter *rate.Limiter
}

// NewLoop creates a generation loop.
func NewLoop(cfg Config) (*Loop, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 10
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Loop{
		backend: cfg.Backend,
		tools:   cfg.Tools,
		events:  cfg.Events,
		logger:  logger,
		maxIter: maxIter,
		limiter: limiter,
	}, nil
}

// Run drives the backend from the assembled prompt to a final answer.
// Text blocks from every iteration are concatenated in emission order.
// Backend failures are fatal to the request; tool-execution failures
// are fed back to the backend and the loop continues.
func (l *Loop) Run(ctx context.Context, sessionID, prompt string) (string, error) {
	messages := []llm.Message{llm.UserText(prompt)}
	schemas := l.tools.Schemas()

	var texts []string
	for iteration := 0; ; iteration++ {
		if iteration >= l.maxIter {
			return "", fmt.Errorf("generation exceeded %d iterations without completing", l.maxIter)
		}
		if l.limiter != nil {
			if err := l.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("waiting for rate limiter: %w", err)
			}
		}

		turn, err := l.backend.Generate(ctx, messages, schemas)
		if err != nil {
			return "", err
		}

		// Record the model's turn before executing its tool calls so the
		// next request carries the calls the results answer.
		messages = append(messages, llm.Message{Role: llm.RoleModel, Blocks: turn.Blocks})

		var results []llm.Block
		for _, block := range turn.Blocks {
			switch {
			case block.Call != nil:
				results = append(results, l.executeCall(ctx, sessionID, *block.Call))
			case block.Text != "":
				texts = append(texts, block.Text)
				l.events.Publish(events.Event{
					Type:      events.TypeText,
					SessionID: sessionID,
					Content:   block.Text,
				})
			}
		}

		if len(results) == 0 {
			l.logger.Debug("generation complete",
				"session_id", sessionID, "iterations", iteration+1)
			return strings.Join(texts, ""), nil
		}
		messages = append(messages, llm.Message{Role: llm.RoleUser, Blocks: results})
	}
}

// executeCall runs one tool call and returns its result block. Failures
// are recovered: the error text goes back to the backend instead of
// aborting the request.
func (l *Loop) executeCall(ctx context.Context, sessionID string, call llm.ToolCall) llm.Block {
	l.events.Publish(events.Event{
		Type:      events.TypeToolCall,
		SessionID: sessionID,
		ToolName:  call.Name,
		ToolArgs:  call.Args,
	})
	l.logger.Info("executing tool", "session_id", sessionID, "tool", call.Name)

	result, err := l.tools.Dispatch(ctx, call.Name, call.Args)
	if err != nil {
		l.logger.Warn("tool execution failed",
			"session_id", sessionID, "tool", call.Name, "error", err)
		l.events.Publish(events.Event{
			Type:      events.TypeToolError,
			SessionID: sessionID,
			ToolName:  call.Name,
			Error:     err.Error(),
		})
		return llm.Block{Result: &llm.ToolResult{
			Name:    call.Name,
			Content: err.Error(),
			IsError: true,
		}}
	}

	l.events.Publish(events.Event{
		Type:      events.TypeToolSuccess,
		SessionID: sessionID,
		ToolName:  call.Name,
		Result:    result,
	})
	return llm.Block{Result: &llm.ToolResult{Name: call.Name, Content: result}}
}
