package server

import (
	"context"
	"net/http"
	"path"

	"github.com/danielgtaylor/huma/v2"

	"taskline/internal/engine"
	"taskline/internal/registry"
	"taskline/internal/repo"
)

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerToolIndex(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tools",
		Method:      http.MethodGet,
		Path:        "/tools",
		Summary:     "List registered tools",
		Tags:        []string{"tools"},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ToolListResponse `json:"body"`
	}, error) {
		md := e.Tools()
		resp := ToolListResponse{Tools: make([]ToolResponse, 0, len(md)), Count: len(md)}
		for _, m := range md {
			resp.Tools = append(resp.Tools, toolResponse(m))
		}
		return &struct {
			Body ToolListResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tool",
		Method:      http.MethodGet,
		Path:        "/tools/{name}",
		Summary:     "Describe one tool",
		Tags:        []string{"tools"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Name string `path:"name"`
	}) (*struct {
		Body ToolResponse `json:"body"`
	}, error) {
		d, ok := e.Registry.Get(input.Name)
		if !ok {
			return nil, handleError(&engine.ToolNotFoundError{Name: input.Name, Available: e.Registry.Names()})
		}
		return &struct {
			Body ToolResponse `json:"body"`
		}{Body: toolResponse(registry.Metadata{
			Name:         d.Name,
			Description:  d.Description,
			InputSchema:  d.Input,
			OutputSchema: d.Output,
		})}, nil
	})
}

func registerCall(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "call-tool",
		Method:      http.MethodPost,
		Path:        "/call",
		Summary:     "Invoke a tool by name",
		Tags:        []string{"tools"},
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body CallRequest
	}) (*struct {
		Body CallResponse `json:"body"`
	}, error) {
		res, err := e.Call(ctx, input.Body.Name, input.Body.Parameters)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CallResponse `json:"body"`
		}{Body: CallResponse{Name: input.Body.Name, Result: res}}, nil
	})
}

func registerBatch(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "call-batch",
		Method:      http.MethodPost,
		Path:        "/batch",
		Summary:     "Invoke several tools sequentially",
		Description: "Each call runs in order. A failing call is reported in its own entry and never stops the remaining calls.",
		Tags:        []string{"tools"},
	}, func(ctx context.Context, input *struct {
		Body BatchRequest
	}) (*struct {
		Body BatchResponse `json:"body"`
	}, error) {
		return &struct {
			Body BatchResponse `json:"body"`
		}{Body: batchResponse(e.CallBatch(ctx, input.Body.Calls))}, nil
	})
}

// toolBinding ties a generated per-tool operation to its descriptor so the
// OpenAPI document can carry the real parameter schema.
type toolBinding struct {
	OperationID string
	Descriptor  registry.Descriptor
}

// registerToolRoutes adds POST /tools/<name> for every registered tool.
func registerToolRoutes(api huma.API, e engine.Engine) []toolBinding {
	var bindings []toolBinding
	for _, md := range e.Tools() {
		d, ok := e.Registry.Get(md.Name)
		if !ok {
			continue
		}
		name := d.Name
		opID := "tool-" + name
		huma.Register(api, huma.Operation{
			OperationID: opID,
			Method:      http.MethodPost,
			Path:        path.Join("/tools", name),
			Summary:     d.Description,
			Tags:        []string{"tool calls"},
			Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
		}, func(ctx context.Context, input *struct {
			// A pointer keeps the body optional for tools without parameters.
			Body *map[string]any
		}) (*struct {
			Body any `json:"body"`
		}, error) {
			params := map[string]any{}
			if input.Body != nil && *input.Body != nil {
				params = *input.Body
			}
			res, err := e.Call(ctx, name, params)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body any `json:"body"`
			}{Body: res}, nil
		})
		bindings = append(bindings, toolBinding{OperationID: opID, Descriptor: d})
	}
	return bindings
}

// applyToolSchemas swaps the generic request and response bodies of the
// per-tool operations for the tools' own schemas.
func applyToolSchemas(oas *huma.OpenAPI, bindings []toolBinding) {
	if oas == nil || oas.Components == nil || oas.Components.Schemas == nil {
		return
	}
	byID := map[string]registry.Descriptor{}
	for _, b := range bindings {
		byID[b.OperationID] = b.Descriptor
	}
	reg := oas.Components.Schemas
	for _, item := range oas.Paths {
		op := item.Post
		if op == nil {
			continue
		}
		d, ok := byID[op.OperationID]
		if !ok {
			continue
		}
		if d.Input != nil && op.RequestBody != nil {
			op.RequestBody.Content = map[string]*huma.MediaType{
				"application/json": {Schema: reg.Schema(d.Input.Type(), true, d.Name+"Input")},
			}
		}
		if d.Output != nil {
			if resp, ok := op.Responses["200"]; ok {
				resp.Content = map[string]*huma.MediaType{
					"application/json": {Schema: reg.Schema(d.Output.Type(), true, d.Name+"Output")},
				}
			}
		}
	}
}

func registerEvents(api huma.API, r repo.Repo) {
	if r.DB == nil {
		return
	}
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Tags:        []string{"events"},
	}, func(ctx context.Context, input *struct {
		Type  string `query:"type" enum:"list.created,task.created,task.completed,task.archived"`
		Limit int    `query:"limit" default:"50" minimum:"1" maximum:"500"`
	}) (*struct {
		Body EventListResponse `json:"body"`
	}, error) {
		items, err := r.LatestEvents(ctx, input.Limit, input.Type)
		if err != nil {
			return nil, handleError(err)
		}
		resp := EventListResponse{Items: make([]EventResponse, 0, len(items))}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body EventListResponse `json:"body"`
		}{Body: resp}, nil
	})
}
