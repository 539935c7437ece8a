package agentos

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonHandler(t *testing.T, method, path, body string, check func(*http.Request)) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method || r.URL.Path != path {
			http.Error(w, `{"detail":"unexpected route"}`, http.StatusNotFound)
			return
		}
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
}

func TestGetAgents(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, jsonHandler(t, http.MethodGet, "/agents",
		`[{"id":"mcp-agent","name":"MCP Agent","description":"tools","model":{"name":"gpt-4o-mini","provider":"openai"},"storage":true},
		  {"agent_id":"legacy","name":"Legacy"}]`, nil))

	agents, err := client.GetAgents(t.Context())
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, "mcp-agent", agents[0].Identifier())
	assert.Equal(t, "openai", agents[0].Model.Provider)
	assert.True(t, agents[0].Storage)
	assert.Equal(t, "legacy", agents[1].Identifier())
}

func TestGetTeams_Empty(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, jsonHandler(t, http.MethodGet, "/teams", `[]`, nil))

	teams, err := client.GetTeams(t.Context())
	require.NoError(t, err)
	assert.Empty(t, teams)
}

func TestGetSessions(t *testing.T) {
	t.Parallel()

	var query map[string]string
	client := newTestClient(t, jsonHandler(t, http.MethodGet, "/sessions",
		`[{"session_id":"s1","session_name":"hello","created_at":1700000000,"agent_id":"mcp-agent"}]`,
		func(r *http.Request) {
			query = map[string]string{
				"user_id":  r.URL.Query().Get("user_id"),
				"agent_id": r.URL.Query().Get("agent_id"),
			}
		}))

	sessions, err := client.GetSessions(t.Context(), "u1", "mcp-agent")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "hello", sessions[0].SessionName)
	assert.Equal(t, int64(1700000000), sessions[0].CreatedAt)
	assert.Equal(t, map[string]string{"user_id": "u1", "agent_id": "mcp-agent"}, query)
}

func TestGetSessionRuns(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, jsonHandler(t, http.MethodGet, "/sessions/s1/runs",
		`[{"message":{"role":"user","content":"2+2?","created_at":1},"response":{"content":"4","tools":[],"created_at":2}}]`, nil))

	runs, err := client.GetSessionRuns(t.Context(), "s1", "")
	require.NoError(t, err)
	require.Len(t, runs, 1)

	msgs := runs[0].Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "2+2?", msgs[0].Content)
	assert.Equal(t, "4", msgs[1].Content)
	assert.Equal(t, int64(2), msgs[1].CreatedAt)
}

func TestDeleteSession(t *testing.T) {
	t.Parallel()

	var userID string
	client := newTestClient(t, jsonHandler(t, http.MethodDelete, "/sessions/s1",
		`{"message":"Session deleted","session_id":"s1"}`,
		func(r *http.Request) { userID = r.URL.Query().Get("user_id") }))

	require.NoError(t, client.DeleteSession(t.Context(), "s1", "u1"))
	assert.Equal(t, "u1", userID)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, jsonHandler(t, http.MethodGet, "/health",
		`{"status":"healthy","connected_servers":2,"agent_ready":true}`, nil))

	health, err := client.Health(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 2, health.ConnectedServers)
	assert.True(t, health.AgentReady)
}

func TestREST_BasePathAndErrors(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/agents", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"invalid token"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := NewClient(StaticConnection{URL: srv.URL + "/api/v1/"})
	require.NoError(t, err)

	_, err = client.GetAgents(t.Context())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "API error (401): invalid token", err.Error())
}

func TestREST_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	client, err := NewClient(StaticConnection{URL: srv.URL}, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = client.Health(t.Context())
	require.Error(t, err)
}
