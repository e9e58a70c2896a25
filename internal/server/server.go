package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"taskline/internal/domain"
	"taskline/internal/engine"
	"taskline/internal/repo"
	"taskline/internal/tasks"
)

type Config struct {
	Engine   engine.Engine
	Repo     repo.Repo
	BasePath string
	// MCP, when set, is served at MCPPath on the same router.
	MCP     http.Handler
	MCPPath string
	Log     zerolog.Logger
	Version string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"tool_not_found"`
	Message string         `json:"message" example:"tool \"nope\" not found; available tools: list_lists"`
	Details map[string]any `json:"details,omitempty"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the tool API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, detailsFromErrors(errs))
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			// Malformed request envelopes are the caller's fault.
			status = http.StatusBadRequest
		}
		return newAPIError(status, "", msg, detailsFromErrors(errs))
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(hlog.NewHandler(cfg.Log))
	router.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))

	hcfg := huma.DefaultConfig("Taskline API", cfg.Version)
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerToolIndex(group, cfg.Engine)
	registerCall(group, cfg.Engine)
	registerBatch(group, cfg.Engine)
	bindings := registerToolRoutes(group, cfg.Engine)
	registerEvents(group, cfg.Repo)
	registerOpenAPI(router, api, basePath, bindings)

	if cfg.MCP != nil {
		mcpPath := cfg.MCPPath
		if mcpPath == "" {
			mcpPath = "/mcp"
		}
		router.Handle(mcpPath, cfg.MCP)
	}
	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func detailsFromErrors(errs []error) map[string]any {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return map[string]any{"errors": msgs}
}

// handleError maps engine and task errors onto the error envelope.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var (
		notFound   *engine.ToolNotFoundError
		badParams  *engine.InvalidParametersError
		noList     tasks.ListNotFoundError
		noTask     tasks.TaskNotFoundError
		completed  tasks.AlreadyCompletedError
		archived   tasks.AlreadyArchivedError
		constraint domain.ConstraintError
	)
	switch {
	case errors.As(err, &notFound):
		return newAPIError(http.StatusNotFound, engine.CodeToolNotFound, err.Error(), map[string]any{"available": notFound.Available})
	case errors.As(err, &badParams):
		return newAPIError(http.StatusBadRequest, engine.CodeInvalidParameters, err.Error(), map[string]any{"diagnostics": badParams.Diagnostics})
	case errors.As(err, &noList):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), map[string]any{"available": noList.Available})
	case errors.As(err, &noTask):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), map[string]any{"task_id": noTask.ID})
	case errors.As(err, &completed):
		return newAPIError(http.StatusConflict, "conflict", err.Error(), map[string]any{"task_id": completed.ID})
	case errors.As(err, &archived):
		return newAPIError(http.StatusConflict, "conflict", err.Error(), map[string]any{"task_id": archived.ID})
	case errors.As(err, &constraint):
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(), map[string]any{"field": constraint.Field})
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

// registerOpenAPI serves the generated document with the per-tool request
// schemas patched in. The document is built once, on first request, after
// every operation has been registered.
func registerOpenAPI(r chi.Router, api huma.API, basePath string, bindings []toolBinding) {
	var (
		once sync.Once
		doc  []byte
		err  error
	)
	r.Get(path.Join(basePath, "openapi.json"), func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			applyToolSchemas(oas, bindings)
			ensureDefaultErrorResponses(oas)
			doc, err = json.Marshal(oas)
		})
		if err != nil {
			http.Error(w, "openapi document unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	if oas.Components != nil && oas.Components.Schemas != nil {
		oas.Components.Schemas.Map()["ApiError"] = apiErrorSchema()
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func apiErrorSchema() *huma.Schema {
	return &huma.Schema{
		Type: huma.TypeObject,
		Properties: map[string]*huma.Schema{
			"error": {
				Type: huma.TypeObject,
				Properties: map[string]*huma.Schema{
					"code":    {Type: huma.TypeString},
					"message": {Type: huma.TypeString},
					"details": {Type: huma.TypeObject},
				},
				Required: []string{"code", "message"},
			},
		},
		Required: []string{"error"},
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Taskline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}
