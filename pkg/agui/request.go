package agui

import (
	"maps"

	"github.com/google/uuid"

	"github.com/docker/agentos-client/pkg/chat"
)

// Envelope is the body of a run request. Every field is always present on
// the wire; empty collections are sent as [] or {}, never null.
type Envelope struct {
	ThreadID       string            `json:"threadId"`
	RunID          string            `json:"runId"`
	State          map[string]any    `json:"state"`
	Messages       []ProtocolMessage `json:"messages"`
	Tools          []Tool            `json:"tools"`
	Context        []ContextItem     `json:"context"`
	ForwardedProps map[string]any    `json:"forwardedProps"`
}

type ProtocolMessage struct {
	ID        string             `json:"id"`
	Role      chat.MessageRole   `json:"role"`
	Content   string             `json:"content"`
	ToolCalls []ProtocolToolCall `json:"toolCalls,omitzero"`
}

type ProtocolToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ProtocolFunction `json:"function"`
}

type ProtocolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool is a client-side tool advertised to the agent.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type ContextItem struct {
	Description string `json:"description"`
	Value       string `json:"value"`
}

type RequestParams struct {
	Message       string
	ThreadID      string
	PriorMessages []chat.Message
	State         map[string]any
	AgentID       string
	UserID        string
	Tools         []Tool
	Context       []ContextItem
}

// BuildRequest assembles the envelope for a new run. The thread id is
// generated when empty; the run id is always fresh. The outgoing message is
// appended after the translated history.
func BuildRequest(p RequestParams) Envelope {
	threadID := p.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	messages := make([]ProtocolMessage, 0, len(p.PriorMessages)+1)
	for i := range p.PriorMessages {
		if msg, ok := toProtocolMessage(&p.PriorMessages[i]); ok {
			messages = append(messages, msg)
		}
	}
	messages = append(messages, ProtocolMessage{
		ID:      uuid.NewString(),
		Role:    chat.MessageRoleUser,
		Content: p.Message,
	})

	state := make(map[string]any, len(p.State)+1)
	maps.Copy(state, p.State)
	if p.AgentID != "" {
		state["agent_id"] = p.AgentID
	}

	forwarded := map[string]any{}
	if p.UserID != "" {
		forwarded["user_id"] = p.UserID
	}

	tools := p.Tools
	if tools == nil {
		tools = []Tool{}
	}
	contextItems := p.Context
	if contextItems == nil {
		contextItems = []ContextItem{}
	}

	return Envelope{
		ThreadID:       threadID,
		RunID:          uuid.NewString(),
		State:          state,
		Messages:       messages,
		Tools:          tools,
		Context:        contextItems,
		ForwardedProps: forwarded,
	}
}

// toProtocolMessage translates a stored message. Only user and assistant
// turns are forwarded.
func toProtocolMessage(m *chat.Message) (ProtocolMessage, bool) {
	id := m.ID
	if id == "" {
		id = uuid.NewString()
	}

	switch {
	case m.Role == chat.MessageRoleUser:
		return ProtocolMessage{ID: id, Role: chat.MessageRoleUser, Content: m.Content}, true
	case m.Role.IsAssistant():
		msg := ProtocolMessage{
			ID:        id,
			Role:      chat.MessageRoleAssistant,
			Content:   m.Content,
			ToolCalls: make([]ProtocolToolCall, 0, len(m.ToolCalls)),
		}
		for i := range m.ToolCalls {
			tc := &m.ToolCalls[i]
			msg.ToolCalls = append(msg.ToolCalls, ProtocolToolCall{
				ID:   tc.Key(),
				Type: "function",
				Function: ProtocolFunction{
					Name:      tc.ToolName,
					Arguments: tc.Arguments(),
				},
			})
		}
		return msg, true
	default:
		return ProtocolMessage{}, false
	}
}
