package server

import (
	"encoding/json"

	"taskline/internal/domain"
	"taskline/internal/engine"
	"taskline/internal/registry"
)

// Request payloads

type CallRequest struct {
	Name       string         `json:"name" minLength:"1" doc:"Registered tool name"`
	Parameters map[string]any `json:"parameters,omitempty" doc:"Tool parameters; validated against the tool's input schema"`
}

type BatchRequest struct {
	Calls []engine.BatchCall `json:"calls" doc:"Calls executed sequentially, in order"`
}

// Response payloads

type ToolResponse struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	InputSchema  map[string]any `json:"input_schema,omitempty"`
	OutputSchema map[string]any `json:"output_schema,omitempty"`
}

type ToolListResponse struct {
	Tools []ToolResponse `json:"tools"`
	Count int            `json:"count"`
}

type CallResponse struct {
	Name   string `json:"name"`
	Result any    `json:"result"`
}

type BatchResponse struct {
	Results   []engine.BatchResult `json:"results"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	Payload    map[string]any `json:"payload"`
}

type EventListResponse struct {
	Items []EventResponse `json:"items"`
}

func toolResponse(md registry.Metadata) ToolResponse {
	resp := ToolResponse{Name: md.Name, Description: md.Description}
	if md.InputSchema != nil {
		resp.InputSchema, _ = md.InputSchema.Map()
	}
	if md.OutputSchema != nil {
		resp.OutputSchema, _ = md.OutputSchema.Map()
	}
	return resp
}

func batchResponse(results []engine.BatchResult) BatchResponse {
	resp := BatchResponse{Results: results}
	for _, r := range results {
		if r.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	return resp
}

func eventResponse(evt domain.Event) EventResponse {
	payload := map[string]any{}
	if evt.Payload != "" {
		_ = json.Unmarshal([]byte(evt.Payload), &payload)
	}
	return EventResponse{
		ID:         evt.ID,
		TS:         evt.TS,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		Payload:    payload,
	}
}
