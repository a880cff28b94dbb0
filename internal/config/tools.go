package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidMCPServer indicates a malformed MCP server definition.
var ErrInvalidMCPServer = errors.New("invalid MCP server config")

// MCPServerConfig describes one MCP tool server launched over stdio.
//
// Example (config.yaml):
//
//	mcp_servers:
//	  - name: calendar
//	    command: npx
//	    args: ["-y", "@gongrzhe/server-calendar-mcp"]
//	    env:
//	      GOOGLE_CLIENT_ID: "..."
type MCPServerConfig struct {
	Name    string            `mapstructure:"name" json:"name"`
	Command string            `mapstructure:"command" json:"command"`
	Args    []string          `mapstructure:"args" json:"args"`
	Env     map[string]string `mapstructure:"env" json:"env"`
}

// validateMCPServers rejects definitions that would fail at connect time.
func validateMCPServers(servers []MCPServerConfig) error {
	seen := make(map[string]struct{}, len(servers))
	for i, s := range servers {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("%w: server %d is missing a name", ErrInvalidMCPServer, i)
		}
		if strings.TrimSpace(s.Command) == "" {
			return fmt.Errorf("%w: server %q is missing a command", ErrInvalidMCPServer, s.Name)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("%w: duplicate server name %q", ErrInvalidMCPServer, s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

// EnvSlice converts the Env map to the KEY=VALUE slice form required by
// exec.Cmd.
func (s MCPServerConfig) EnvSlice() []string {
	if len(s.Env) == 0 {
		return nil
	}
	result := make([]string, 0, len(s.Env))
	for k, v := range s.Env {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}
