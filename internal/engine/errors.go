package engine

import (
	"errors"
	"fmt"
	"strings"

	"taskline/internal/schema"
)

// Error codes reported to observers and mapped by transports.
const (
	CodeToolNotFound      = "tool_not_found"
	CodeInvalidParameters = "invalid_parameters"
	CodeExecutionFailed   = "execution_failed"
)

type ToolNotFoundError struct {
	Name      string
	Available []string
}

func (e *ToolNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("tool %q not found; no tools are registered", e.Name)
	}
	return fmt.Sprintf("tool %q not found; available tools: %s", e.Name, strings.Join(e.Available, ", "))
}

type InvalidParametersError struct {
	Tool        string
	Diagnostics []schema.Diagnostic
}

func (e *InvalidParametersError) Error() string {
	parts := make([]string, 0, len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		parts = append(parts, d.String())
	}
	return fmt.Sprintf("invalid parameters for tool %s: %s", e.Tool, strings.Join(parts, "; "))
}

// ToolExecutionFailedError wraps whatever the handler returned (or panicked
// with). Unwrap exposes the handler's error to errors.As.
type ToolExecutionFailedError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionFailedError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionFailedError) Unwrap() error { return e.Err }

// ErrorCode classifies an error returned by Call.
func ErrorCode(err error) string {
	var nf *ToolNotFoundError
	var ip *InvalidParametersError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &nf):
		return CodeToolNotFound
	case errors.As(err, &ip):
		return CodeInvalidParameters
	default:
		return CodeExecutionFailed
	}
}
