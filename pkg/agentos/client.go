package agentos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/docker/agentos-client/pkg/api"
	"github.com/docker/agentos-client/pkg/chat"
	"github.com/docker/agentos-client/pkg/concurrent"
	"github.com/docker/agentos-client/pkg/httpclient"
)

const maxErrorBody = 1 << 20

// Connection describes the server a client talks to.
type Connection interface {
	BaseURL() string
	// AuthHeaders are sent verbatim with every request.
	AuthHeaders() http.Header
}

// StaticConnection is a Connection with fixed values.
type StaticConnection struct {
	URL     string
	Headers http.Header
}

func (c StaticConnection) BaseURL() string          { return c.URL }
func (c StaticConnection) AuthHeaders() http.Header { return c.Headers }

// APIError is returned when the server answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// Client is an HTTP client for AgentOS servers
type Client struct {
	conn       Connection
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	tracer     trace.Tracer
	runPath    func(id string, team bool) string

	// history holds the messages sent on each thread, keyed by thread id.
	history *concurrent.Map[string, []chat.Message]

	mu         sync.Mutex
	lastThread string
}

// ClientOption is a function for configuring the Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout bounds REST calls. Streaming runs are only bounded by the
// caller's context.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithTracer sets the tracer used for run spans
func WithTracer(tracer trace.Tracer) ClientOption {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// WithRunPath overrides the endpoint runs are posted to.
func WithRunPath(fn func(id string, team bool) string) ClientOption {
	return func(c *Client) {
		c.runPath = fn
	}
}

func defaultRunPath(id string, team bool) string {
	if team {
		return "/teams/" + id + "/runs"
	}
	return "/agents/" + id + "/runs"
}

// NewClient creates a new client for the server described by conn
func NewClient(conn Connection, opts ...ClientOption) (*Client, error) {
	raw := strings.TrimSpace(conn.BaseURL())
	if raw == "" {
		return nil, fmt.Errorf("invalid base URL: empty")
	}
	parsedURL, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", raw)
	}

	client := &Client{
		conn:       conn,
		baseURL:    parsedURL,
		httpClient: httpclient.NewHTTPClient(),
		timeout:    30 * time.Second,
		tracer:     otel.Tracer("agentos"),
		runPath:    defaultRunPath,
		history:    concurrent.NewMap[string, []chat.Message](),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// LastThreadID returns the thread the last accepted run belonged to.
func (c *Client) LastThreadID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastThread
}

// ResetThread forgets the remembered thread so the next run starts a new one.
func (c *Client) ResetThread() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastThread = ""
}

// History returns the rolling history recorded for a thread.
func (c *Client) History(threadID string) []chat.Message {
	msgs, _ := c.history.Load(threadID)
	return append([]chat.Message(nil), msgs...)
}

func (c *Client) setLastThread(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastThread = id
}

func (c *Client) appendHistory(threadID string, msg chat.Message) {
	c.history.Update(threadID, func(current []chat.Message, _ bool) []chat.Message {
		return append(current, msg)
	})
}

// moveHistory re-keys a thread's history when the server assigns its own
// session id.
func (c *Client) moveHistory(from, to string) {
	if from == to {
		return
	}
	msgs, ok := c.history.Load(from)
	if !ok {
		return
	}
	c.history.Update(to, func(current []chat.Message, _ bool) []chat.Message {
		return append(current, msgs...)
	})
	c.history.Delete(from)
}

func (c *Client) endpointURL(endpoint string, query url.Values) string {
	u := *c.baseURL
	u.Path = path.Join(u.Path, endpoint)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) setAuthHeaders(req *http.Request) {
	for k, values := range c.conn.AuthHeaders() {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
}

// doRequest performs an HTTP request and handles common response patterns
func (c *Client) doRequest(ctx context.Context, method, endpoint string, query url.Values, body, result any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpointURL(endpoint, query), reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return responseError(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if result != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response: %w", err)
		}
	}

	return nil
}

// responseError builds an APIError from a non-2xx response.
func responseError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    errorMessage(body, resp.StatusCode),
	}
}

// errorMessage extracts a message from detail, error or message, in that
// order, falling back to the status text.
func errorMessage(body []byte, status int) string {
	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		for _, v := range []any{errResp.Detail, errResp.Error, errResp.Message} {
			if msg := stringify(v); msg != "" {
				return msg
			}
		}
	}

	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP error %d", status)
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		buf, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(buf)
	}
}
