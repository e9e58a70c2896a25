// Package schema derives JSON schemas from Go types and validates raw tool
// parameters against them.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

const defsPrefix = "#/$defs/"

// Schema is a JSON schema derived from a Go type. Nested named types are
// kept in a private registry and emitted under $defs.
type Schema struct {
	typ      reflect.Type
	registry huma.Registry
	root     *huma.Schema
}

// Of builds the schema for T. T should be a struct; its json, doc, enum,
// minLength and maxLength tags become schema keywords.
func Of[T any]() *Schema {
	return For(reflect.TypeOf((*T)(nil)).Elem(), "")
}

// For builds the schema for an arbitrary type. hint names anonymous types.
func For(t reflect.Type, hint string) *Schema {
	reg := huma.NewMapRegistry(defsPrefix, huma.DefaultSchemaNamer)
	root := reg.Schema(t, false, hint)
	root.PrecomputeMessages()
	for _, s := range reg.Map() {
		s.PrecomputeMessages()
	}
	return &Schema{typ: t, registry: reg, root: root}
}

// Type is the Go type the schema was derived from.
func (s *Schema) Type() reflect.Type { return s.typ }

// Huma exposes the underlying schema for transports that embed it in an
// OpenAPI document.
func (s *Schema) Huma() *huma.Schema { return s.root }

// Diagnostic is one validation failure.
type Diagnostic struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Path == "" {
		return d.Message
	}
	return d.Path + ": " + d.Message
}

// ValidationError collects every diagnostic reported for one value.
type ValidationError struct {
	Diagnostics []Diagnostic
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		parts = append(parts, d.String())
	}
	return strings.Join(parts, "; ")
}

// Validate checks params against the schema and returns a
// *ValidationError describing every failure.
func (s *Schema) Validate(params map[string]any) error {
	if params == nil {
		params = map[string]any{}
	}
	normalized, err := Normalize(params)
	if err != nil {
		return &ValidationError{Diagnostics: []Diagnostic{{Message: err.Error()}}}
	}
	res := &huma.ValidateResult{}
	pb := huma.NewPathBuffer([]byte(""), 0)
	huma.Validate(s.registry, s.root, pb, huma.ModeWriteToServer, normalized, res)
	if len(res.Errors) == 0 {
		return nil
	}
	diags := make([]Diagnostic, 0, len(res.Errors))
	for _, e := range res.Errors {
		if detail, ok := e.(*huma.ErrorDetail); ok {
			diags = append(diags, Diagnostic{Path: detail.Location, Message: detail.Message, Value: detail.Value})
			continue
		}
		diags = append(diags, Diagnostic{Message: e.Error()})
	}
	sort.SliceStable(diags, func(i, j int) bool { return diags[i].Path < diags[j].Path })
	return &ValidationError{Diagnostics: diags}
}

// MarshalJSON emits a self-contained JSON schema document.
func (s *Schema) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(s.root)
	if err != nil {
		return nil, err
	}
	defs := map[string]*huma.Schema{}
	for name, def := range s.registry.Map() {
		if def != s.root {
			defs[name] = def
		}
	}
	if len(defs) == 0 {
		return data, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	doc["$defs"] = defs
	return json.Marshal(doc)
}

// Map returns the schema as a generic JSON object.
func (s *Schema) Map() (map[string]any, error) {
	data, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Normalize converts v into plain JSON values (map[string]any, []any,
// float64, string, bool, nil).
func Normalize(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok && isPlain(m) {
		return m, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("parameters are not JSON-encodable: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parameters must be a JSON object: %w", err)
	}
	return out, nil
}

func isPlain(v any) bool {
	switch val := v.(type) {
	case nil, string, bool, float64:
		return true
	case map[string]any:
		for _, item := range val {
			if !isPlain(item) {
				return false
			}
		}
		return true
	case []any:
		for _, item := range val {
			if !isPlain(item) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Decode maps already-validated params onto T.
func Decode[T any](params map[string]any) (T, error) {
	var out T
	if params == nil {
		params = map[string]any{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return out, fmt.Errorf("encode parameters: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode parameters: %w", err)
	}
	return out, nil
}
