// Package mcpcheck connects to configured MCP servers and lists their tools.
package mcpcheck

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"os/exec"
	"slices"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/docker/agentos-client/pkg/httpclient"
	"github.com/docker/agentos-client/pkg/mcpconfig"
	"github.com/docker/agentos-client/pkg/version"
)

const defaultConcurrency = 4

type ToolInfo struct {
	Name        string
	Description string
}

// Result is the outcome of checking one server.
type Result struct {
	ServerID string
	Tools    []ToolInfo
	// Skipped is set for disabled servers, which are not contacted.
	Skipped  bool
	Duration time.Duration
	Err      error
}

func (r *Result) OK() bool {
	return !r.Skipped && r.Err == nil
}

type Options struct {
	// Concurrency bounds the number of servers checked at once.
	Concurrency int
	// Transport overrides the HTTP transport used for sse and
	// streamable-http servers.
	Transport http.RoundTripper
}

// Check connects to every enabled server and lists its tools. Results are
// returned in the order of servers; a failing server does not affect the
// others.
func Check(ctx context.Context, servers []mcpconfig.ServerConfig, opts Options) []Result {
	results := make([]Result, len(servers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cmp.Or(opts.Concurrency, defaultConcurrency))

	for i := range servers {
		server := servers[i]
		results[i].ServerID = server.ID

		if !server.IsEnabled() {
			results[i].Skipped = true
			continue
		}

		g.Go(func() error {
			start := time.Now()
			tools, err := checkServer(ctx, &server, opts)
			results[i].Tools = tools
			results[i].Err = err
			results[i].Duration = time.Since(start)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func checkServer(ctx context.Context, server *mcpconfig.ServerConfig, opts Options) ([]ToolInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(server.TimeoutSeconds())*time.Second)
	defer cancel()

	transport, err := newTransport(ctx, server, opts)
	if err != nil {
		return nil, err
	}

	slog.Debug("Connecting to MCP server", "id", server.ID, "transport", server.Transport)

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "agentos",
		Version: version.Version,
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MCP server %s: %w", server.ID, err)
	}
	defer session.Close()

	var tools []ToolInfo
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("failed to list tools of %s: %w", server.ID, err)
		}
		tools = append(tools, ToolInfo{Name: tool.Name, Description: tool.Description})
	}

	slog.Debug("MCP server responded", "id", server.ID, "tools", len(tools))
	return tools, nil
}

func newTransport(ctx context.Context, server *mcpconfig.ServerConfig, opts Options) (mcp.Transport, error) {
	switch server.Transport {
	case mcpconfig.TransportStdio:
		cmd := exec.CommandContext(ctx, server.Command, server.Args...)
		cmd.Env = mergeEnv(os.Environ(), server.Env)
		return &mcp.CommandTransport{Command: cmd}, nil
	case mcpconfig.TransportSSE:
		return &mcp.SSEClientTransport{
			Endpoint:   server.URL,
			HTTPClient: newHTTPClient(server, opts),
		}, nil
	case mcpconfig.TransportStreamableHTTP:
		return &mcp.StreamableClientTransport{
			Endpoint:   server.URL,
			HTTPClient: newHTTPClient(server, opts),
		}, nil
	default:
		return nil, fmt.Errorf("%w %q", mcpconfig.ErrInvalidTransport, server.Transport)
	}
}

func newHTTPClient(server *mcpconfig.ServerConfig, opts Options) *http.Client {
	headers := http.Header{}
	for k, v := range server.Headers {
		headers.Set(k, v)
	}

	httpOpts := []httpclient.Opt{httpclient.WithHeaders(headers)}
	if opts.Transport != nil {
		httpOpts = append(httpOpts, httpclient.WithTransport(opts.Transport))
	}
	return httpclient.NewHTTPClient(httpOpts...)
}

// mergeEnv returns base with the entries of extra added, in a stable order.
// Later entries override earlier ones when the command starts.
func mergeEnv(base []string, extra map[string]string) []string {
	env := slices.Clone(base)
	for _, k := range slices.Sorted(maps.Keys(extra)) {
		env = append(env, k+"="+extra[k])
	}
	return env
}
