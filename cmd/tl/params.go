package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"taskline/internal/engine"
	"taskline/internal/schema"
)

// buildParams merges a JSON object with key=value assignments. Assignments
// win over keys from the object. Keys in literal are kept as raw strings;
// other values are parsed as JSON when they can be.
func buildParams(raw string, assignments []string, literal map[string]bool) (map[string]any, error) {
	params := map[string]any{}
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return nil, fmt.Errorf("--params must be a JSON object: %w", err)
		}
		if params == nil {
			params = map[string]any{}
		}
	}
	for _, a := range assignments {
		key, value, ok := strings.Cut(a, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", a)
		}
		if literal[key] {
			params[key] = value
			continue
		}
		params[key] = parseValue(value)
	}
	return params, nil
}

// parseValue keeps JSON scalars, arrays and objects typed and falls back to
// the raw string.
func parseValue(s string) any {
	var v any
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil || dec.More() {
		return s
	}
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return v
}

// parseBatch accepts a bare array of calls or an object with a "calls" key.
func parseBatch(data []byte) ([]engine.BatchCall, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("batch input is empty")
	}
	var calls []engine.BatchCall
	if data[0] == '{' {
		var wrapped struct {
			Calls []engine.BatchCall `json:"calls"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("invalid batch: %w", err)
		}
		calls = wrapped.Calls
	} else if err := json.Unmarshal(data, &calls); err != nil {
		return nil, fmt.Errorf("invalid batch: %w", err)
	}
	for i, c := range calls {
		if c.Name == "" {
			return nil, fmt.Errorf("batch entry %d: name is required", i)
		}
	}
	return calls, nil
}

// stringFields lists the top-level properties an input schema declares as
// strings.
func stringFields(s *schema.Schema) map[string]bool {
	out := map[string]bool{}
	if s == nil || s.Huma() == nil {
		return out
	}
	for name, prop := range s.Huma().Properties {
		if prop != nil && prop.Type == "string" {
			out[name] = true
		}
	}
	return out
}
