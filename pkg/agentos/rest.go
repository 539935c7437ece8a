package agentos

import (
	"context"
	"net/http"
	"net/url"

	"github.com/docker/agentos-client/pkg/api"
)

// GetAgents retrieves all available agents
func (c *Client) GetAgents(ctx context.Context) ([]api.Agent, error) {
	var agents []api.Agent
	err := c.doRequest(ctx, http.MethodGet, "/agents", nil, nil, &agents)
	return agents, err
}

// GetTeams retrieves all available teams
func (c *Client) GetTeams(ctx context.Context) ([]api.Team, error) {
	var teams []api.Team
	err := c.doRequest(ctx, http.MethodGet, "/teams", nil, nil, &teams)
	return teams, err
}

// GetSessions lists the sessions of a user, optionally narrowed to an agent
func (c *Client) GetSessions(ctx context.Context, userID, agentID string) ([]api.SessionSummary, error) {
	query := url.Values{}
	if userID != "" {
		query.Set("user_id", userID)
	}
	if agentID != "" {
		query.Set("agent_id", agentID)
	}

	var sessions []api.SessionSummary
	err := c.doRequest(ctx, http.MethodGet, "/sessions", query, nil, &sessions)
	return sessions, err
}

// GetSessionRuns retrieves the runs recorded in a session
func (c *Client) GetSessionRuns(ctx context.Context, sessionID, userID string) ([]api.SessionRun, error) {
	var runs []api.SessionRun
	err := c.doRequest(ctx, http.MethodGet, "/sessions/"+sessionID+"/runs", userQuery(userID), nil, &runs)
	return runs, err
}

// DeleteSession deletes a session
func (c *Client) DeleteSession(ctx context.Context, sessionID, userID string) error {
	var resp api.DeleteSessionResponse
	return c.doRequest(ctx, http.MethodDelete, "/sessions/"+sessionID, userQuery(userID), nil, &resp)
}

// Health retrieves the server health report
func (c *Client) Health(ctx context.Context) (*api.Health, error) {
	var health api.Health
	if err := c.doRequest(ctx, http.MethodGet, "/health", nil, nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

func userQuery(userID string) url.Values {
	if userID == "" {
		return nil
	}
	return url.Values{"user_id": []string{userID}}
}
