package chat

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAgent     MessageRole = "agent"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
	MessageRoleTool      MessageRole = "tool"
	MessageRoleDeveloper MessageRole = "developer"
)

// IsAssistant reports whether the role is the model side of the conversation.
// AgentOS UIs call it "agent", the AG-UI protocol calls it "assistant".
func (r MessageRole) IsAssistant() bool {
	return r == MessageRoleAgent || r == MessageRoleAssistant
}

// Message is one turn of a conversation.
type Message struct {
	ID             string         `json:"id,omitempty"`
	Role           MessageRole    `json:"role"`
	Content        string         `json:"content"`
	ToolCalls      []ToolCall     `json:"tool_calls,omitempty"`
	CreatedAt      int64          `json:"created_at"`
	StreamingError bool           `json:"streamingError,omitempty"`
	Images         []Image        `json:"images,omitempty"`
	Videos         []Video        `json:"videos,omitempty"`
	Audio          []Audio        `json:"audio,omitempty"`
	ResponseAudio  *ResponseAudio `json:"response_audio,omitempty"`
	ExtraData      *ExtraData     `json:"extra_data,omitempty"`
}

// NewUserMessage creates a user message stamped with the current time.
func NewUserMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      MessageRoleUser,
		Content:   content,
		CreatedAt: time.Now().Unix(),
	}
}

// NewAgentPlaceholder creates the empty agent message a run streams into.
func NewAgentPlaceholder(createdAt int64) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      MessageRoleAgent,
		ToolCalls: []ToolCall{},
		CreatedAt: createdAt,
	}
}

// ReasoningSteps returns the reasoning steps attached to the message, if any.
func (m Message) ReasoningSteps() []ReasoningStep {
	if m.ExtraData == nil {
		return nil
	}
	return m.ExtraData.ReasoningSteps
}

// Clone returns a copy of the message that shares no slices with the original.
func (m Message) Clone() Message {
	c := m
	if m.ToolCalls != nil {
		c.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i := range m.ToolCalls {
			c.ToolCalls[i] = m.ToolCalls[i].Clone()
		}
	}
	c.Images = append([]Image(nil), m.Images...)
	c.Videos = append([]Video(nil), m.Videos...)
	c.Audio = append([]Audio(nil), m.Audio...)
	if m.ResponseAudio != nil {
		ra := *m.ResponseAudio
		c.ResponseAudio = &ra
	}
	if m.ExtraData != nil {
		ed := ExtraData{
			ReasoningSteps: append([]ReasoningStep(nil), m.ExtraData.ReasoningSteps...),
			References:     append([]ReferenceData(nil), m.ExtraData.References...),
		}
		c.ExtraData = &ed
	}
	return c
}

type ToolCallMetrics struct {
	Time float64 `json:"time"`
}

// ToolCall is a single tool invocation observed during a run.
type ToolCall struct {
	Role          string           `json:"role,omitempty"`
	ToolCallID    string           `json:"tool_call_id,omitempty"`
	ToolName      string           `json:"tool_name"`
	ToolArgs      map[string]any   `json:"tool_args,omitempty"`
	Content       *string          `json:"content,omitempty"`
	ToolCallError bool             `json:"tool_call_error,omitempty"`
	Metrics       *ToolCallMetrics `json:"metrics,omitempty"`
	CreatedAt     int64            `json:"created_at,omitempty"`
}

// Key identifies the tool call within a message. Servers that omit the
// call id are matched on tool name and start time instead.
func (tc *ToolCall) Key() string {
	if tc.ToolCallID != "" {
		return tc.ToolCallID
	}
	return tc.ToolName + "-" + strconv.FormatInt(tc.CreatedAt, 10)
}

// Arguments returns the tool arguments JSON encoded.
func (tc *ToolCall) Arguments() string {
	if len(tc.ToolArgs) == 0 {
		return "{}"
	}
	buf, err := json.Marshal(tc.ToolArgs)
	if err != nil {
		return "{}"
	}
	return string(buf)
}

// Merge overlays the fields set on other onto tc.
func (tc *ToolCall) Merge(other *ToolCall) {
	if other.Role != "" {
		tc.Role = other.Role
	}
	if other.ToolCallID != "" {
		tc.ToolCallID = other.ToolCallID
	}
	if other.ToolName != "" {
		tc.ToolName = other.ToolName
	}
	if other.ToolArgs != nil {
		tc.ToolArgs = other.ToolArgs
	}
	if other.Content != nil {
		tc.Content = other.Content
	}
	if other.ToolCallError {
		tc.ToolCallError = true
	}
	if other.Metrics != nil {
		m := *other.Metrics
		tc.Metrics = &m
	}
	if other.CreatedAt != 0 {
		tc.CreatedAt = other.CreatedAt
	}
}

func (tc ToolCall) Clone() ToolCall {
	c := tc
	if tc.ToolArgs != nil {
		c.ToolArgs = make(map[string]any, len(tc.ToolArgs))
		for k, v := range tc.ToolArgs {
			c.ToolArgs[k] = v
		}
	}
	if tc.Content != nil {
		s := *tc.Content
		c.Content = &s
	}
	if tc.Metrics != nil {
		m := *tc.Metrics
		c.Metrics = &m
	}
	return c
}

// matches reports whether incoming refers to the same invocation as tc:
// same call id, or, for entries without an id, same name and start time.
func (tc *ToolCall) matches(incoming *ToolCall) bool {
	if tc.ToolCallID != "" {
		return tc.ToolCallID == incoming.ToolCallID
	}
	if incoming.ToolName == "" || incoming.CreatedAt == 0 {
		return false
	}
	return tc.Key() == incoming.Key()
}

// MergeToolCalls folds incoming tool calls into existing. A call that matches
// an existing entry updates it in place, anything else is appended, so each
// invocation appears at most once.
func MergeToolCalls(existing []ToolCall, incoming ...ToolCall) []ToolCall {
	merged := existing
	for i := range incoming {
		in := &incoming[i]
		found := false
		for j := range merged {
			if merged[j].matches(in) {
				merged[j].Merge(in)
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, in.Clone())
		}
	}
	return merged
}

type ReasoningStep struct {
	Title      string  `json:"title,omitempty"`
	Action     string  `json:"action,omitempty"`
	Result     string  `json:"result,omitempty"`
	Reasoning  string  `json:"reasoning,omitempty"`
	NextAction string  `json:"next_action,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

type Reference struct {
	Content  string         `json:"content"`
	Name     string         `json:"name"`
	MetaData map[string]any `json:"meta_data,omitempty"`
}

type ReferenceData struct {
	Query      string      `json:"query"`
	References []Reference `json:"references"`
	Time       float64     `json:"time,omitempty"`
}

type ExtraData struct {
	ReasoningSteps []ReasoningStep `json:"reasoning_steps,omitempty"`
	References     []ReferenceData `json:"references,omitempty"`
}

type Image struct {
	URL           string `json:"url"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
	Content       string `json:"content,omitempty"`
}

type Video struct {
	ID      any    `json:"id,omitempty"`
	URL     string `json:"url,omitempty"`
	ETA     any    `json:"eta,omitempty"`
	Content string `json:"content,omitempty"`
}

type Audio struct {
	ID          string `json:"id,omitempty"`
	URL         string `json:"url,omitempty"`
	Base64Audio string `json:"base64_audio,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
	Content     string `json:"content,omitempty"`
	Channels    int    `json:"channels,omitempty"`
	SampleRate  int    `json:"sample_rate,omitempty"`
}

type ResponseAudio struct {
	ID         string `json:"id,omitempty"`
	Content    string `json:"content,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

// SessionEntry is the lightweight index record kept in the session list.
type SessionEntry struct {
	SessionID   string `json:"session_id"`
	SessionName string `json:"session_name"`
	CreatedAt   int64  `json:"created_at"`
}
