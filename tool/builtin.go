package tool

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// DefaultPythonTimeout bounds run_python subprocess execution.
const DefaultPythonTimeout = 30 * time.Second

// NewReadFile returns the read_file tool.
func NewReadFile() *FunctionTool {
	return NewFunctionTool(
		"read_file",
		"read_file(path: str) - Read file contents",
		func(_ context.Context, args map[string]any) (string, error) {
			path := StringArg(args, "path")
			data, err := os.ReadFile(path)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	)
}

// NewWriteFile returns the write_file tool.
func NewWriteFile() *FunctionTool {
	return NewFunctionTool(
		"write_file",
		"write_file(path: str, content: str) - Write to file",
		func(_ context.Context, args map[string]any) (string, error) {
			path := StringArg(args, "path")
			content := StringArg(args, "content")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return "", err
			}
			return fmt.Sprintf("OK: Wrote %d chars to %s", len(content), path), nil
		},
	)
}

// NewRunPython returns the run_python tool. The supplied code runs in a
// python3 subprocess with a bounded timeout. WARNING: dev/local only - the
// subprocess is not sandboxed and must not receive untrusted code.
//
// Execution failures are encoded in-band as EXEC_ERROR text rather than
// returned as errors, so the agent sees interpreter output either way.
func NewRunPython(timeout time.Duration) *FunctionTool {
	if timeout <= 0 {
		timeout = DefaultPythonTimeout
	}
	return NewFunctionTool(
		"run_python",
		"run_python(code: str) - Execute Python code",
		func(ctx context.Context, args map[string]any) (string, error) {
			code := StringArg(args, "code")

			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			cmd := exec.CommandContext(ctx, "python3", "-c", code)
			out, err := cmd.CombinedOutput()
			if err != nil {
				return fmt.Sprintf("EXEC_ERROR: %v: %s", err, out), nil
			}
			return fmt.Sprintf("EXEC_OK: %s", out), nil
		},
	)
}
