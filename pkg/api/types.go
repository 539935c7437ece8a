package api

import (
	"github.com/docker/agentos-client/pkg/chat"
)

// ModelInfo describes the model backing an agent or team
type ModelInfo struct {
	Name     string `json:"name,omitempty"`
	Model    string `json:"model,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// Agent represents an agent exposed by an AgentOS server
type Agent struct {
	ID          string     `json:"id,omitempty"`
	AgentID     string     `json:"agent_id,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Model       *ModelInfo `json:"model,omitempty"`
	Storage     bool       `json:"storage,omitempty"`
}

// Identifier returns the agent id; older servers only send agent_id.
func (a *Agent) Identifier() string {
	if a.ID != "" {
		return a.ID
	}
	return a.AgentID
}

// Team represents a team of agents
type Team struct {
	ID          string     `json:"id,omitempty"`
	TeamID      string     `json:"team_id,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Mode        string     `json:"mode,omitempty"`
	Model       *ModelInfo `json:"model,omitempty"`
	Storage     bool       `json:"storage,omitempty"`
}

func (t *Team) Identifier() string {
	if t.ID != "" {
		return t.ID
	}
	return t.TeamID
}

// SessionSummary is one entry of the session list
type SessionSummary struct {
	SessionID   string `json:"session_id"`
	SessionName string `json:"session_name"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at,omitempty"`
	AgentID     string `json:"agent_id,omitempty"`
	AgentName   string `json:"agent_name,omitempty"`
}

// RunMessage is the user side of a stored run
type RunMessage struct {
	Role      chat.MessageRole `json:"role"`
	Content   string           `json:"content"`
	CreatedAt int64            `json:"created_at"`
}

// RunOutput is the agent side of a stored run
type RunOutput struct {
	Content   string          `json:"content"`
	Tools     []chat.ToolCall `json:"tools,omitempty"`
	CreatedAt int64           `json:"created_at"`
}

// SessionRun is one exchange in a session's history
type SessionRun struct {
	Message  RunMessage `json:"message"`
	Response RunOutput  `json:"response"`
}

// Messages converts the run into the user and agent messages it represents.
func (r *SessionRun) Messages() []chat.Message {
	return []chat.Message{
		{Role: chat.MessageRoleUser, Content: r.Message.Content, CreatedAt: r.Message.CreatedAt},
		{Role: chat.MessageRoleAgent, Content: r.Response.Content, ToolCalls: r.Response.Tools, CreatedAt: r.Response.CreatedAt},
	}
}

// DeleteSessionResponse is returned when a session is deleted
type DeleteSessionResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// Health is the server health report
type Health struct {
	Status           string `json:"status"`
	ConnectedServers int    `json:"connected_servers,omitempty"`
	AgentReady       bool   `json:"agent_ready,omitempty"`
}

// ErrorResponse covers the error bodies AgentOS-style servers return.
// FastAPI uses detail, which may be a string or a list of validation errors.
type ErrorResponse struct {
	Detail  any `json:"detail,omitempty"`
	Error   any `json:"error,omitempty"`
	Message any `json:"message,omitempty"`
}
