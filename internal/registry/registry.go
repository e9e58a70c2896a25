// Package registry holds the set of invocable tools.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"taskline/internal/schema"
)

var ErrDuplicate = errors.New("tool already registered")

// Call identifies one invocation. It is created by the engine and handed to
// the handler.
type Call struct {
	ID        string
	Tool      string
	StartedAt time.Time
}

// Handler executes a tool with parameters that already passed validation.
type Handler func(ctx context.Context, call Call, params map[string]any) (any, error)

type Descriptor struct {
	Name        string
	Description string
	// Input is nil for tools that accept any parameters.
	Input *schema.Schema
	// Output documents the result shape; it is never enforced.
	Output  *schema.Schema
	Handler Handler
}

// Metadata is the introspection view of a descriptor.
type Metadata struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	InputSchema  *schema.Schema `json:"input_schema,omitempty"`
	OutputSchema *schema.Schema `json:"output_schema,omitempty"`
}

func (d Descriptor) Metadata() Metadata {
	return Metadata{
		Name:         d.Name,
		Description:  d.Description,
		InputSchema:  d.Input,
		OutputSchema: d.Output,
	}
}

type Registry struct {
	mu    sync.RWMutex
	tools map[string]Descriptor
	order []string
}

func New() *Registry {
	return &Registry{tools: map[string]Descriptor{}}
}

func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return errors.New("tool name is required")
	}
	if d.Handler == nil {
		return fmt.Errorf("tool %s: handler is required", d.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[d.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, d.Name)
	}
	r.tools[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

// MustRegister panics on registration errors. Intended for startup wiring.
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[name]
	return d, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// List returns metadata for every tool in registration order.
func (r *Registry) List() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Metadata, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Metadata())
	}
	return out
}

// Bind adapts a typed handler. Parameters are decoded into In after the
// engine has validated them.
func Bind[In any](fn func(ctx context.Context, call Call, in In) (any, error)) Handler {
	return func(ctx context.Context, call Call, params map[string]any) (any, error) {
		in, err := schema.Decode[In](params)
		if err != nil {
			return nil, err
		}
		return fn(ctx, call, in)
	}
}
