package mcpcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/agentos-client/pkg/mcpconfig"
)

type echoInput struct {
	Text string `json:"text" jsonschema:"the text to echo"`
}

type echoOutput struct {
	Text string `json:"text"`
}

func echo(_ context.Context, _ *mcp.CallToolRequest, in echoInput) (*mcp.CallToolResult, echoOutput, error) {
	return nil, echoOutput(in), nil
}

// startServer serves an in-process MCP server over streamable HTTP and
// records the headers of the requests it receives.
func startServer(t *testing.T) (*httptest.Server, func() http.Header) {
	t.Helper()

	server := mcp.NewServer(&mcp.Implementation{Name: "test", Version: "1.0.0"}, nil)
	mcp.AddTool(server, &mcp.Tool{Name: "echo", Description: "Echo the input"}, echo)
	mcp.AddTool(server, &mcp.Tool{Name: "shout", Description: "Echo louder"}, echo)

	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)

	var (
		mu   sync.Mutex
		last http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		last = r.Header.Clone()
		mu.Unlock()
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	return srv, func() http.Header {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
}

func TestCheck_StreamableHTTP(t *testing.T) {
	t.Parallel()

	srv, headers := startServer(t)

	results := Check(t.Context(), []mcpconfig.ServerConfig{{
		ID:        "echo",
		Name:      "Echo",
		Transport: mcpconfig.TransportStreamableHTTP,
		URL:       srv.URL,
		Headers:   map[string]string{"X-Api-Key": "k1"},
	}}, Options{})

	require.Len(t, results, 1)
	r := results[0]
	require.NoError(t, r.Err)
	assert.True(t, r.OK())
	assert.Equal(t, "echo", r.ServerID)

	var names []string
	for _, tool := range r.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"echo", "shout"}, names)

	assert.Equal(t, "k1", headers().Get("X-Api-Key"))
	assert.Contains(t, headers().Get("User-Agent"), "agentos/")
}

func TestCheck_PerServerFailures(t *testing.T) {
	t.Parallel()

	srv, _ := startServer(t)
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(down.Close)

	disabled := false
	timeout := 5
	servers := []mcpconfig.ServerConfig{
		{ID: "broken", Name: "Broken", Transport: mcpconfig.TransportStreamableHTTP, URL: down.URL, Timeout: &timeout},
		{ID: "ok", Name: "OK", Transport: mcpconfig.TransportStreamableHTTP, URL: srv.URL},
		{ID: "off", Name: "Off", Transport: mcpconfig.TransportStreamableHTTP, URL: srv.URL, Enabled: &disabled},
		{ID: "missing", Name: "Missing", Transport: mcpconfig.TransportStdio, Command: "agentos-test-no-such-binary", Timeout: &timeout},
	}

	results := Check(t.Context(), servers, Options{Concurrency: 2})
	require.Len(t, results, 4)

	assert.Equal(t, "broken", results[0].ServerID)
	assert.Error(t, results[0].Err)

	assert.Equal(t, "ok", results[1].ServerID)
	require.NoError(t, results[1].Err)
	assert.Len(t, results[1].Tools, 2)

	assert.Equal(t, "off", results[2].ServerID)
	assert.True(t, results[2].Skipped)
	assert.False(t, results[2].OK())

	assert.Equal(t, "missing", results[3].ServerID)
	assert.Error(t, results[3].Err)
}

func TestCheck_InvalidTransport(t *testing.T) {
	t.Parallel()

	results := Check(t.Context(), []mcpconfig.ServerConfig{{ID: "x", Name: "X", Transport: "carrier-pigeon"}}, Options{})

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, mcpconfig.ErrInvalidTransport)
}

func TestCheck_CancelledContext(t *testing.T) {
	t.Parallel()

	srv, _ := startServer(t)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	results := Check(ctx, []mcpconfig.ServerConfig{{
		ID: "echo", Name: "Echo", Transport: mcpconfig.TransportStreamableHTTP, URL: srv.URL,
	}}, Options{})

	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
}

func TestMergeEnv(t *testing.T) {
	t.Parallel()

	env := mergeEnv([]string{"PATH=/bin", "HOME=/root"}, map[string]string{"B": "2", "A": "1"})
	assert.Equal(t, []string{"PATH=/bin", "HOME=/root", "A=1", "B=2"}, env)
}
