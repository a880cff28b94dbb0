package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/camilo-ai/camilo/internal/config"
	"github.com/camilo-ai/camilo/internal/llm"
)

// Manager owns the MCP client sessions behind the registry. Each
// configured server runs as a child process speaking MCP over stdio;
// its tools are discovered at connect time and registered under their
// advertised names.
type Manager struct {
	sessions []*mcp.ClientSession
	logger   *slog.Logger
}

// clientInfo identifies this process to MCP servers.
var clientInfo = &mcp.Implementation{Name: "camilo", Version: "1.0.0"}

// NewManager connects to every configured MCP server and registers the
// discovered tools. A server that fails to connect is logged and
// skipped; the assistant degrades to the tools that did come up.
func NewManager(ctx context.Context, configs []config.MCPServerConfig, registry *Registry, logger *slog.Logger) (*Manager, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{logger: logger}
	for _, cfg := range configs {
		session, err := connect(ctx, cfg)
		if err != nil {
			logger.Error("MCP server connection failed, skipping",
				"server", cfg.Name, "error", err)
			continue
		}
		m.sessions = append(m.sessions, session)

		if err := registerSessionTools(ctx, cfg.Name, session, registry, logger); err != nil {
			logger.Error("MCP tool discovery failed",
				"server", cfg.Name, "error", err)
		}
	}
	return m, nil
}

// connect launches the server process and performs the MCP handshake.
func connect(ctx context.Context, cfg config.MCPServerConfig) (*mcp.ClientSession, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = append(os.Environ(), cfg.EnvSlice()...)

	client := mcp.NewClient(clientInfo, nil)
	session, err := client.Connect(ctx, &mcp.CommandTransport{Command: cmd}, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Name, err)
	}
	return session, nil
}

// registerSessionTools lists the session's tools and registers an
// invoker for each.
func registerSessionTools(ctx context.Context, server string, session *mcp.ClientSession, registry *Registry, logger *slog.Logger) error {
	listed, err := session.ListTools(ctx, nil)
	if err != nil {
		return fmt.Errorf("listing tools: %w", err)
	}

	for _, tool := range listed.Tools {
		schema := llm.ToolSchema{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  schemaToMap(tool.InputSchema),
		}
		invoker := newInvoker(session, tool.Name)
		if err := registry.Register(schema, invoker); err != nil {
			logger.Warn("skipping MCP tool",
				"server", server, "tool", tool.Name, "error", err)
			continue
		}
		logger.Info("MCP tool registered", "server", server, "tool", tool.Name)
	}
	return nil
}

// newInvoker wraps one session tool as a registry invoker. An IsError
// result from the server is surfaced as a Go error so the generation
// loop records it as a tool failure.
func newInvoker(session *mcp.ClientSession, name string) Invoker {
	return func(ctx context.Context, args map[string]any) (string, error) {
		result, err := session.CallTool(ctx, &mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		})
		if err != nil {
			return "", fmt.Errorf("calling tool %q: %w", name, err)
		}

		text := textContent(result)
		if result.IsError {
			return "", fmt.Errorf("tool %q failed: %s", name, text)
		}
		return text, nil
	}
}

// textContent concatenates the text blocks of a tool result.
func textContent(result *mcp.CallToolResult) string {
	var parts []string
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// schemaToMap converts a tool's declared input schema to the raw
// JSON-schema map the generation backend expects.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object"}
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil || len(out) == 0 {
		return map[string]any{"type": "object"}
	}
	return out
}

// Close shuts down every MCP session and its child process.
func (m *Manager) Close() error {
	var firstErr error
	for _, session := range m.sessions {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
