// Package tool implements the capability subsystem that lets agents invoke
// named synchronous functions (file access, code execution, MCP bridges) and
// react to their textual results.
//
// Tools never raise past the registry boundary: a failing tool is reported to
// the calling agent as an ERROR(tool_name)-shaped string so the model can see
// the failure and adjust on its next turn. Argument handling is tolerant by
// policy: missing keys default to empty values and extra keys are ignored.
package tool

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/miniagi/miniagi/logging"
)

// Tool is a named synchronous capability invoked with keyword arguments.
//
// Implementations should provide clear, descriptive names (snake_case) and
// descriptions; the description is rendered into the coordinator's tool menu
// so the model knows when to reach for the tool. Implementations must be safe
// for concurrent use.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a short usage hint shown to models, including the
	// expected argument keys.
	Description() string

	// Call executes the tool. Errors returned here are converted to
	// ERROR-shaped text at the registry boundary; they never propagate to
	// the orchestration loop.
	Call(ctx context.Context, args map[string]any) (string, error)
}

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`    // Name of the tool that failed
	Message string `json:"message"` // Error message
	Code    string `json:"code"`    // Error code for categorization
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}

// ErrorText renders a tool failure in the wire shape consumed by agents.
func ErrorText(name string, err error) string {
	return fmt.Sprintf("ERROR(%s): %v", name, err)
}

// Registry is a static, process-wide mapping from tool name to capability.
// It is read-only after construction and safe for concurrent use.
type Registry struct {
	tools  map[string]Tool
	names  []string
	logger logging.Logger
}

// NewRegistry builds an immutable registry from the given tools. Later tools
// with duplicate names replace earlier ones.
func NewRegistry(logger logging.Logger, tools ...Tool) *Registry {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	m := make(map[string]Tool, len(tools))
	for _, t := range tools {
		m[t.Name()] = t
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return &Registry{tools: m, names: names, logger: logger}
}

// Lookup returns the named tool. A missing name is not an error at this
// layer; the orchestration loop converts it into a corrective instruction.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Menu renders one "- name - description" line per tool for inclusion in
// agent role instructions.
func (r *Registry) Menu() string {
	var b strings.Builder
	for _, name := range r.names {
		fmt.Fprintf(&b, "- %s\n", r.tools[name].Description())
	}
	return strings.TrimRight(b.String(), "\n")
}

// Call executes the named tool and returns its textual result. Failures are
// encoded as ERROR(tool_name)-shaped text, never returned as errors, so the
// calling agent can observe and react to them.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) string {
	t, ok := r.tools[name]
	if !ok {
		return ErrorText(name, fmt.Errorf("unknown tool"))
	}
	if args == nil {
		args = map[string]any{}
	}

	start := time.Now()
	out, err := t.Call(ctx, args)
	if err != nil {
		r.logger.Warn("tool.call.error", "tool", name, "error", err.Error())
		return ErrorText(name, err)
	}
	r.logger.Info("tool.call.success", "tool", name, "duration_ms", time.Since(start).Milliseconds())
	return out
}

// StringArg extracts a string argument, defaulting to "" when the key is
// missing or null. Non-string scalars are stringified.
func StringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// MapArg extracts a nested object argument, defaulting to an empty map.
func MapArg(args map[string]any, key string) map[string]any {
	if m, ok := args[key].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
