package tool

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMCPTool_Call(t *testing.T) {
	var gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		io.WriteString(w, "file1.txt\nfile2.txt")
	}))
	defer srv.Close()

	mcp := NewMCPTool("mcp_filesystem", "Filesystem via MCP", srv.URL)
	out, err := mcp.Call(context.Background(), map[string]any{
		"tool": "list_files",
		"args": map[string]any{"path": "."},
	})
	require.NoError(t, err)
	assert.Equal(t, "file1.txt\nfile2.txt", out)
	assert.Equal(t, "/invoke", gotPath)

	var payload struct {
		Tool string         `json:"tool"`
		Args map[string]any `json:"args"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "list_files", payload.Tool)
	assert.Equal(t, ".", payload.Args["path"])
}

func TestMCPTool_DefaultInnerTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Write(body)
	}))
	defer srv.Close()

	mcp := NewMCPTool("mcp_trader", "Trading via MCP", srv.URL, func(o *MCPOptions) {
		o.DefaultTool = "get_quote"
	})
	out, err := mcp.Call(context.Background(), map[string]any{"args": map[string]any{"symbol": "BTC"}})
	require.NoError(t, err)
	assert.Contains(t, out, `"tool":"get_quote"`)
}

func TestMCPTool_ServerErrorShapedByRegistry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	mcp := NewMCPTool("mcp_filesystem", "Filesystem via MCP", srv.URL)
	r := NewRegistry(nil, mcp)

	out := r.Call(context.Background(), "mcp_filesystem", map[string]any{"tool": "x"})
	assert.Contains(t, out, "ERROR(mcp_filesystem):")
	assert.Contains(t, out, "status 500")
}

func TestMCPTool_UnreachableServer(t *testing.T) {
	mcp := NewMCPTool("mcp_trader", "Trading via MCP", "http://127.0.0.1:1")

	_, err := mcp.Call(context.Background(), map[string]any{"tool": "get_quote"})
	assert.Error(t, err)
}
