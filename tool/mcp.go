package tool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultMCPTimeout bounds a single MCP server round trip.
const DefaultMCPTimeout = 30 * time.Second

// MCPTool is a generic bridge to an MCP server reachable over HTTP. The
// model supplies the inner tool name and its arguments:
//
//	{"tool": "list_files", "args": {"path": "."}}
//
// The request is posted to <serverURL>/invoke and the response body is
// returned verbatim. Transport failures surface as ERROR-shaped text via the
// registry boundary, like any other tool failure.
type MCPTool struct {
	name        string
	description string
	serverURL   string
	defaultTool string
	client      *http.Client
}

// MCPOptions configure an MCPTool.
type MCPOptions struct {
	// DefaultTool is invoked when the model omits the inner "tool" key.
	DefaultTool string
	// Timeout bounds the HTTP round trip.
	Timeout time.Duration
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// NewMCPTool constructs an MCP bridge tool for one server.
func NewMCPTool(name, description, serverURL string, optFns ...func(o *MCPOptions)) *MCPTool {
	opts := MCPOptions{Timeout: DefaultMCPTimeout}
	for _, fn := range optFns {
		fn(&opts)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &MCPTool{
		name:        name,
		description: description,
		serverURL:   strings.TrimRight(serverURL, "/"),
		defaultTool: opts.DefaultTool,
		client:      client,
	}
}

// Name returns the unique tool name.
func (t *MCPTool) Name() string { return t.name }

// Description returns the usage hint exposed to models.
func (t *MCPTool) Description() string { return t.description }

// Call posts {tool, args} to the MCP server's /invoke endpoint.
func (t *MCPTool) Call(ctx context.Context, args map[string]any) (string, error) {
	inner := StringArg(args, "tool")
	if inner == "" {
		inner = t.defaultTool
	}

	payload, err := json.Marshal(map[string]any{
		"tool": inner,
		"args": MapArg(args, "args"),
	})
	if err != nil {
		return "", fmt.Errorf("encode mcp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.serverURL+"/invoke", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build mcp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("mcp %s/%s: %w", t.serverURL, inner, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read mcp response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("mcp %s/%s: status %d: %s", t.serverURL, inner, resp.StatusCode, body)
	}
	return string(body), nil
}
