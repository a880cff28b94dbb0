// Package tools manages the external capabilities the generation
// backend may invoke: a validated registry of named invokers plus the
// MCP client plumbing that discovers and executes them.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/camilo-ai/camilo/internal/llm"
)

// ErrUnknownTool indicates the backend requested a tool that was never
// registered. Fail-closed: the dispatcher never guesses.
var ErrUnknownTool = errors.New("unknown tool")

// Invoker executes one tool call and returns its textual result.
type Invoker func(ctx context.Context, args map[string]any) (string, error)

// Registry maps tool names to invokers and holds their declared
// schemas. Safe for concurrent use after registration completes.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Invoker
	schemas []llm.ToolSchema
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]Invoker),
		logger: logger,
	}
}

// Register adds a tool. Names must be unique and non-empty.
func (r *Registry) Register(schema llm.ToolSchema, invoke Invoker) error {
	if schema.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if invoke == nil {
		return fmt.Errorf("tool %q: invoker is required", schema.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[schema.Name]; exists {
		return fmt.Errorf("tool %q already registered", schema.Name)
	}
	r.tools[schema.Name] = invoke
	r.schemas = append(r.schemas, schema)
	r.logger.Debug("tool registered", "name", schema.Name)
	return nil
}

// Dispatch executes the named tool. Unknown names fail with
// ErrUnknownTool.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) (string, error) {
	r.mu.RLock()
	invoke, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return invoke(ctx, args)
}

// Schemas returns the declared schemas of all registered tools.
func (r *Registry) Schemas() []llm.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]llm.ToolSchema, len(r.schemas))
	copy(out, r.schemas)
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.schemas))
	for _, s := range r.schemas {
		names = append(names, s.Name)
	}
	return names
}
