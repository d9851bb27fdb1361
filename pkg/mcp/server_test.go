package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewServer(t *testing.T) {
	s := NewServer("test-server", "1.0.0", zap.NewNop())

	require.NotNil(t, s)
	require.NotNil(t, s.mcp)
	assert.Same(t, s.mcp, s.MCP())
}

func TestServer_RegisterTool(t *testing.T) {
	s := NewServer("test-server", "1.0.0", zap.NewNop())

	handlerCalled := false
	s.RegisterTool(mcp.NewTool("test-tool", mcp.WithDescription("A test tool")),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			handlerCalled = true
			return mcp.NewToolResultText("success"), nil
		})
	assert.False(t, handlerCalled, "handler should not be called during registration")

	raw := s.MCP().HandleMessage(context.Background(),
		[]byte(`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"test-tool"},"id":1}`))
	resultBytes, err := json.Marshal(raw)
	require.NoError(t, err)

	var response struct {
		Result struct {
			Content []mcp.TextContent `json:"content"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resultBytes, &response))
	require.Len(t, response.Result.Content, 1)
	assert.Equal(t, "success", response.Result.Content[0].Text)
	assert.True(t, handlerCalled)
}

func TestServer_NewStreamableHTTPServer(t *testing.T) {
	s := NewServer("test-server", "1.0.0", zap.NewNop())
	assert.NotNil(t, s.NewStreamableHTTPServer())
}

func TestServer_HandlerRejectsNonPOST(t *testing.T) {
	s := NewServer("test-server", "1.0.0", zap.NewNop())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, EndpointPath, nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "POST", rec.Header().Get("Allow"))
}

func TestServer_HandlerUnknownPath(t *testing.T) {
	s := NewServer("test-server", "1.0.0", zap.NewNop())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/other", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type pingRoute struct{}

func (pingRoute) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})
}

func TestServer_HandlerExtraRoutes(t *testing.T) {
	s := NewServer("test-server", "1.0.0", zap.NewNop())

	rec := httptest.NewRecorder()
	s.Handler(pingRoute{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestServer_HandlerServesToolsList(t *testing.T) {
	s := NewServer("test-server", "1.0.0", zap.NewNop())
	s.RegisterTool(mcp.NewTool("echo"), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("ok"), nil
	})

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
	req := httptest.NewRequest(http.MethodPost, EndpointPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"echo"`)
}
