package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"taskline/internal/registry"
	"taskline/internal/schema"
)

// CallObservation summarizes one finished invocation.
type CallObservation struct {
	CallID    string
	Tool      string
	StartedAt time.Time
	Duration  time.Duration
	Success   bool
	ErrorCode string
}

// Observer receives one observation per Call. Implementations must not block.
type Observer interface {
	ObserveCall(ctx context.Context, obs CallObservation)
}

type Engine struct {
	Registry *registry.Registry
	Log      zerolog.Logger
	Observer Observer
	Now      func() time.Time
}

func New(reg *registry.Registry, log zerolog.Logger) Engine {
	return Engine{
		Registry: reg,
		Log:      log,
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Tools returns the metadata of every registered tool.
func (e Engine) Tools() []registry.Metadata {
	return e.Registry.List()
}

// Call resolves, validates and runs one tool. The handler's result is
// returned as is.
func (e Engine) Call(ctx context.Context, name string, params map[string]any) (any, error) {
	call := registry.Call{ID: uuid.NewString(), Tool: name, StartedAt: e.now()}
	log := e.Log.With().Str("call_id", call.ID).Str("tool", name).Logger()

	result, err := e.call(ctx, call, params)

	elapsed := e.now().Sub(call.StartedAt)
	code := ErrorCode(err)
	if err != nil {
		log.Warn().Err(err).Str("error_code", code).Dur("duration", elapsed).Msg("tool call failed")
	} else {
		log.Debug().Dur("duration", elapsed).Msg("tool call succeeded")
	}
	if e.Observer != nil {
		e.Observer.ObserveCall(ctx, CallObservation{
			CallID:    call.ID,
			Tool:      name,
			StartedAt: call.StartedAt,
			Duration:  elapsed,
			Success:   err == nil,
			ErrorCode: code,
		})
	}
	return result, err
}

func (e Engine) call(ctx context.Context, call registry.Call, params map[string]any) (any, error) {
	d, ok := e.Registry.Get(call.Tool)
	if !ok {
		return nil, &ToolNotFoundError{Name: call.Tool, Available: e.Registry.Names()}
	}
	normalized, err := schema.Normalize(params)
	if err != nil {
		return nil, &InvalidParametersError{Tool: call.Tool, Diagnostics: []schema.Diagnostic{{Message: err.Error()}}}
	}
	if d.Input != nil {
		if err := d.Input.Validate(normalized); err != nil {
			var verr *schema.ValidationError
			if errors.As(err, &verr) {
				return nil, &InvalidParametersError{Tool: call.Tool, Diagnostics: verr.Diagnostics}
			}
			return nil, &InvalidParametersError{Tool: call.Tool, Diagnostics: []schema.Diagnostic{{Message: err.Error()}}}
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	return invoke(ctx, d, call, normalized)
}

func invoke(ctx context.Context, d registry.Descriptor, call registry.Call, params map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &ToolExecutionFailedError{Tool: call.Tool, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	result, err = d.Handler(ctx, call, params)
	if err != nil {
		return nil, &ToolExecutionFailedError{Tool: call.Tool, Err: err}
	}
	return result, nil
}

type BatchCall struct {
	Name       string         `json:"name" minLength:"1"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type BatchResult struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CallBatch runs calls sequentially in order. A failing entry never stops
// the ones after it.
func (e Engine) CallBatch(ctx context.Context, calls []BatchCall) []BatchResult {
	results := make([]BatchResult, 0, len(calls))
	for _, c := range calls {
		res, err := e.Call(ctx, c.Name, c.Parameters)
		if err != nil {
			results = append(results, BatchResult{Name: c.Name, Success: false, Error: err.Error()})
			continue
		}
		results = append(results, BatchResult{Name: c.Name, Success: true, Result: res})
	}
	return results
}
