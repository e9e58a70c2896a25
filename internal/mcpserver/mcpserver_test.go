package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"taskline/internal/db"
	"taskline/internal/engine"
	"taskline/internal/migrate"
	"taskline/internal/registry"
	"taskline/internal/repo"
	"taskline/internal/tasks"
)

func newTestEngine(t *testing.T) engine.Engine {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	reg := registry.New()
	if err := tasks.Register(reg, tasks.NewService(repo.New(conn))); err != nil {
		t.Fatalf("register: %v", err)
	}
	return engine.New(reg, zerolog.Nop())
}

func callTool(t *testing.T, e engine.Engine, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := Handler(e, name, zerolog.Nop())(context.Background(), req)
	if err != nil {
		t.Fatalf("handler returned protocol error: %v", err)
	}
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatalf("empty content")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content %T", res.Content[0])
	}
	return tc.Text
}

func TestToolsCarryInputSchemas(t *testing.T) {
	e := newTestEngine(t)
	tools, err := Tools(e)
	if err != nil {
		t.Fatalf("tools: %v", err)
	}
	if len(tools) != 6 {
		t.Fatalf("expected 6 tools, got %d", len(tools))
	}
	for _, tool := range tools {
		if tool.Name == tasks.ToolCreateTask {
			if !strings.Contains(string(tool.RawInputSchema), "list_name") {
				t.Fatalf("create_task schema: %s", tool.RawInputSchema)
			}
			return
		}
	}
	t.Fatalf("create_task not exposed")
}

func TestNewBuildsServer(t *testing.T) {
	if _, err := New(newTestEngine(t), Config{}); err != nil {
		t.Fatalf("new: %v", err)
	}
}

func TestHandlerSuccess(t *testing.T) {
	e := newTestEngine(t)
	res := callTool(t, e, tasks.ToolCreateList, map[string]any{"name": "Work"})
	if res.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, res))
	}
	var created tasks.CreateListResult
	if err := json.Unmarshal([]byte(resultText(t, res)), &created); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if created.List.Name != "Work" {
		t.Fatalf("unexpected result %+v", created)
	}
}

func TestHandlerFailuresAreToolErrors(t *testing.T) {
	e := newTestEngine(t)
	res := callTool(t, e, "missing_tool", nil)
	if !res.IsError || !strings.Contains(resultText(t, res), "list_lists") {
		t.Fatalf("expected isError listing tools, got %+v", res)
	}
	res = callTool(t, e, tasks.ToolGetTasks, map[string]any{"list_name": "Nope"})
	if !res.IsError || !strings.Contains(resultText(t, res), "Nope") {
		t.Fatalf("expected list not found, got %+v", res)
	}
	res = callTool(t, e, tasks.ToolCreateTask, map[string]any{"list_name": "x"})
	if !res.IsError || !strings.Contains(resultText(t, res), "invalid parameters") {
		t.Fatalf("expected invalid parameters, got %+v", res)
	}
}

func TestRender(t *testing.T) {
	if s, _ := Render("plain"); s != "plain" {
		t.Fatalf("string result %q", s)
	}
	s, err := Render(map[string]int{"a": 1})
	if err != nil || !strings.Contains(s, `"a": 1`) {
		t.Fatalf("render %q %v", s, err)
	}
}
