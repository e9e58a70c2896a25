package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"taskline/internal/config"
	"taskline/internal/domain"
	"taskline/internal/tasks"
)

func TestOpenWiresEngine(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Tasks.DefaultPriority = "low"
	var logs bytes.Buffer
	a, err := Open(context.Background(), Options{Workspace: dir, Config: cfg, LogWriter: &logs})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close(context.Background())

	if len(a.Registry.Names()) != 6 {
		t.Fatalf("tools %v", a.Registry.Names())
	}
	ctx := context.Background()
	if _, err := a.Engine.Call(ctx, tasks.ToolCreateList, map[string]any{"name": "Inbox"}); err != nil {
		t.Fatalf("create list: %v", err)
	}
	res, err := a.Engine.Call(ctx, tasks.ToolCreateTask, map[string]any{"list_name": "inbox", "name": "Default priority"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if res.(tasks.TaskResult).Task.Priority != domain.PriorityLow {
		t.Fatalf("configured default priority not applied")
	}
	if _, err := os.Stat(filepath.Join(dir, ".taskline", "taskline.db")); err != nil {
		t.Fatalf("db file: %v", err)
	}
}

func TestHTTPHandlerServesRESTAndMCP(t *testing.T) {
	a, err := Open(context.Background(), Options{Workspace: t.TempDir(), LogWriter: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close(context.Background())
	h, err := a.HTTPHandler()
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v0/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health %d", rec.Code)
	}
	srv, err := a.HTTPServer()
	if err != nil || srv.Addr != "127.0.0.1:8080" {
		t.Fatalf("server: %+v %v", srv, err)
	}
}

func TestResolveConfig(t *testing.T) {
	dir := t.TempDir()
	cfg, err := ResolveConfig(dir, "")
	if err != nil || cfg.Server.Addr == "" {
		t.Fatalf("defaults: %+v %v", cfg, err)
	}
	if _, err := ResolveConfig(dir, filepath.Join(dir, "missing.yml")); err == nil {
		t.Fatalf("expected missing file error")
	}
	path := filepath.Join(dir, "custom.yml")
	if err := os.WriteFile(path, []byte("server:\n  addr: 0.0.0.0:7000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = ResolveConfig(dir, path)
	if err != nil || cfg.Server.Addr != "0.0.0.0:7000" {
		t.Fatalf("custom: %+v %v", cfg, err)
	}
}
