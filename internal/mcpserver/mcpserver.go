// Package mcpserver exposes the engine's tools over the Model Context
// Protocol, on stdio or streamable HTTP.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"taskline/internal/engine"
)

var emptyObjectSchema = json.RawMessage(`{"type":"object"}`)

type Config struct {
	Name    string
	Version string
	Log     zerolog.Logger
}

// New creates an MCP server with one MCP tool per registered engine tool.
func New(e engine.Engine, cfg Config) (*server.MCPServer, error) {
	if cfg.Name == "" {
		cfg.Name = "taskline"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	s := server.NewMCPServer(
		cfg.Name,
		cfg.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	tools, err := Tools(e)
	if err != nil {
		return nil, err
	}
	for _, tool := range tools {
		s.AddTool(tool, Handler(e, tool.Name, cfg.Log))
	}
	return s, nil
}

// Tools converts the engine's tool metadata into MCP tool definitions.
func Tools(e engine.Engine) ([]mcp.Tool, error) {
	md := e.Tools()
	out := make([]mcp.Tool, 0, len(md))
	for _, m := range md {
		raw := emptyObjectSchema
		if m.InputSchema != nil {
			data, err := json.Marshal(m.InputSchema)
			if err != nil {
				return nil, fmt.Errorf("tool %s: encode input schema: %w", m.Name, err)
			}
			raw = data
		}
		out = append(out, mcp.NewToolWithRawSchema(m.Name, m.Description, raw))
	}
	return out, nil
}

// Handler routes an MCP tools/call to engine.Call. Engine failures become
// isError results carrying the error message.
func Handler(e engine.Engine, name string, log zerolog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := e.Call(ctx, name, req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		text, err := Render(res)
		if err != nil {
			log.Error().Err(err).Str("tool", name).Msg("render tool result")
			return mcp.NewToolResultError(fmt.Sprintf("tool %s returned an unencodable result: %v", name, err)), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}

// Render formats a tool result as indented JSON.
func Render(res any) (string, error) {
	if s, ok := res.(string); ok {
		return s, nil
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ServeStdio blocks serving JSON-RPC on stdin/stdout.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// HTTPHandler serves the streamable HTTP transport.
func HTTPHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s)
}

const instructions = `Taskline manages task lists.
Call list_lists to see the existing lists, then get_tasks with a list name to see its tasks ordered by priority.
Use create_list and create_task to add entries, and complete_task or archive_task with a numeric task id to close them.
List names are matched ignoring case. Priorities are urgent, high, medium and low.`
