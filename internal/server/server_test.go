package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"taskline/internal/db"
	"taskline/internal/engine"
	"taskline/internal/migrate"
	"taskline/internal/registry"
	"taskline/internal/repo"
	"taskline/internal/tasks"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.New(conn)
	reg := registry.New()
	if err := tasks.Register(reg, tasks.NewService(r)); err != nil {
		t.Fatalf("register tools: %v", err)
	}
	e := engine.New(reg, zerolog.Nop())
	handler, err := New(Config{Engine: e, Repo: r, BasePath: "/v0", Log: zerolog.Nop()})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	reader := bytes.NewReader(nil)
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, data []byte) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error: %v (%s)", err, data)
	}
	return env
}

func TestHealthAndToolIndex(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "ok") {
		t.Fatalf("health %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tools", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("tools status %d: %s", res.StatusCode, data)
	}
	var list ToolListResponse
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("unmarshal tools: %v", err)
	}
	if list.Count != 6 || list.Tools[0].Name != tasks.ToolListLists {
		t.Fatalf("unexpected tools %+v", list)
	}
	if list.Tools[3].InputSchema["type"] != "object" {
		t.Fatalf("create_task schema missing: %+v", list.Tools[3])
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tools/get_tasks", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get tool status %d: %s", res.StatusCode, data)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tools/nope", nil)
	if res.StatusCode != http.StatusNotFound || decodeError(t, data).Error.Code != "tool_not_found" {
		t.Fatalf("missing tool %d: %s", res.StatusCode, data)
	}
}

func TestToolRoutesRoundTrip(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tools/create_list", map[string]any{"name": "Work"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create list %d: %s", res.StatusCode, data)
	}
	var created tasks.CreateListResult
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if created.List.ID == 0 || !strings.Contains(created.Message, "Work") {
		t.Fatalf("unexpected list %+v", created)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tools/create_task", map[string]any{
		"list_name": "work",
		"name":      "Write report",
		"priority":  "urgent",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create task %d: %s", res.StatusCode, data)
	}
	var task tasks.TaskResult
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if !strings.Contains(task.Message, "🔴") {
		t.Fatalf("missing glyph: %q", task.Message)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tools/complete_task", map[string]any{"task_id": task.Task.ID})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete %d: %s", res.StatusCode, data)
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tools/complete_task", map[string]any{"task_id": task.Task.ID})
	if res.StatusCode != http.StatusConflict || decodeError(t, data).Error.Code != "conflict" {
		t.Fatalf("second complete %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tools/list_lists", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list lists %d: %s", res.StatusCode, data)
	}
	var lists tasks.ListListsResult
	if err := json.Unmarshal(data, &lists); err != nil {
		t.Fatalf("unmarshal lists: %v", err)
	}
	if lists.Count != 1 || lists.Lists[0].TaskCounts.Completed != 1 {
		t.Fatalf("unexpected lists %+v", lists)
	}
}

func TestCallErrorsMapToStatus(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/call", map[string]any{"name": "nope"})
	env := decodeError(t, data)
	if res.StatusCode != http.StatusNotFound || env.Error.Code != "tool_not_found" || !strings.Contains(env.Error.Message, "list_lists") {
		t.Fatalf("unknown tool %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/call", map[string]any{
		"name":       "create_task",
		"parameters": map[string]any{"list_name": "Work", "name": "abc"},
	})
	if res.StatusCode != http.StatusBadRequest || decodeError(t, data).Error.Code != "invalid_parameters" {
		t.Fatalf("invalid params %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/call", map[string]any{
		"name":       "get_tasks",
		"parameters": map[string]any{"list_name": "Missing"},
	})
	if res.StatusCode != http.StatusNotFound || decodeError(t, data).Error.Code != "not_found" {
		t.Fatalf("missing list %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/call", map[string]any{
		"name":       "archive_task",
		"parameters": map[string]any{"task_id": 12345},
	})
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing task %d: %s", res.StatusCode, data)
	}
}

func TestBatchEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/batch", map[string]any{
		"calls": []map[string]any{
			{"name": "create_list", "parameters": map[string]any{"name": "Batch"}},
			{"name": "get_tasks", "parameters": map[string]any{"list_name": "Elsewhere"}},
			{"name": "create_task", "parameters": map[string]any{"list_name": "Batch", "name": "From batch"}},
		},
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("batch %d: %s", res.StatusCode, data)
	}
	var out BatchResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal batch: %v", err)
	}
	if len(out.Results) != 3 || out.Succeeded != 2 || out.Failed != 1 {
		t.Fatalf("unexpected batch %+v", out)
	}
	if out.Results[1].Success || !strings.Contains(out.Results[1].Error, "Elsewhere") {
		t.Fatalf("unexpected failure entry %+v", out.Results[1])
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/events?type=task.created", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events %d: %s", res.StatusCode, data)
	}
	var evts EventListResponse
	if err := json.Unmarshal(data, &evts); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(evts.Items) != 1 || evts.Items[0].Payload["name"] != "From batch" {
		t.Fatalf("unexpected events %+v", evts)
	}
}

func TestOpenAPIIncludesToolSchemas(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/openapi.json", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("openapi %d", res.StatusCode)
	}
	body := string(data)
	for _, want := range []string{"/v0/tools/create_task", "CreateTaskInput", "TaskResult", "ApiError"} {
		if !strings.Contains(body, want) {
			t.Fatalf("openapi missing %s", want)
		}
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/docs", nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "/v0/openapi.json") {
		t.Fatalf("docs %d", res.StatusCode)
	}
}

func TestToolRouteWithoutBody(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/tools/list_lists", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list lists without body %d: %s", res.StatusCode, data)
	}
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/tools/get_tasks", nil)
	if res.StatusCode != http.StatusBadRequest || decodeError(t, data).Error.Code != "invalid_parameters" {
		t.Fatalf("get_tasks without body %d: %s", res.StatusCode, data)
	}
}
