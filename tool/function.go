package tool

import "context"

// FunctionTool is a generic adapter that exposes a plain Go function as a
// Tool. It has no internal mutable state after construction and is safe for
// concurrent use by multiple goroutines.
type FunctionTool struct {
	// Tool identifier (snake_case recommended)
	name string
	// Usage hint shown to models, including expected argument keys
	description string
	// User supplied implementation
	fn func(ctx context.Context, args map[string]any) (string, error)
}

// NewFunctionTool constructs a FunctionTool.
//
// Example:
//
//	echo := NewFunctionTool(
//	  "echo",
//	  "echo(text: str) - Return the given text",
//	  func(_ context.Context, args map[string]any) (string, error) {
//	    return StringArg(args, "text"), nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	fn func(ctx context.Context, args map[string]any) (string, error),
) *FunctionTool {
	return &FunctionTool{name: name, description: description, fn: fn}
}

// Name returns the unique tool name used in action records and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Call invokes the underlying function.
func (t *FunctionTool) Call(ctx context.Context, args map[string]any) (string, error) {
	return t.fn(ctx, args)
}
