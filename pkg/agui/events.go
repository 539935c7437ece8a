package agui

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/docker/agentos-client/pkg/chat"
)

// EventName is a run event name as spelled by AgentOS servers.
type EventName string

const (
	RunStarted            EventName = "RunStarted"
	RunContent            EventName = "RunContent"
	RunCompleted          EventName = "RunCompleted"
	RunError              EventName = "RunError"
	RunCancelled          EventName = "RunCancelled"
	RunPaused             EventName = "RunPaused"
	RunContinued          EventName = "RunContinued"
	ToolCallStarted       EventName = "ToolCallStarted"
	ToolCallCompleted     EventName = "ToolCallCompleted"
	ReasoningStarted      EventName = "ReasoningStarted"
	ReasoningStep         EventName = "ReasoningStep"
	ReasoningCompleted    EventName = "ReasoningCompleted"
	MemoryUpdateStarted   EventName = "MemoryUpdateStarted"
	MemoryUpdateCompleted EventName = "MemoryUpdateCompleted"
)

const teamPrefix = "Team"

// Team returns the team variant of the name, e.g. TeamRunStarted.
func (n EventName) Team() EventName {
	return teamPrefix + n
}

// splitTeam strips the team prefix from known team event names.
func splitTeam(name string) (EventName, bool) {
	if base, ok := strings.CutPrefix(name, teamPrefix); ok {
		if _, known := knownEvents[EventName(base)]; known {
			return EventName(base), true
		}
	}
	return EventName(name), false
}

var knownEvents = map[EventName]struct{}{
	RunStarted: {}, RunContent: {}, RunCompleted: {}, RunError: {}, RunCancelled: {},
	RunPaused: {}, RunContinued: {}, ToolCallStarted: {}, ToolCallCompleted: {},
	ReasoningStarted: {}, ReasoningStep: {}, ReasoningCompleted: {},
	MemoryUpdateStarted: {}, MemoryUpdateCompleted: {},
}

// RunResponse is the payload shared by every run event. Fields absent from
// the wire stay at their zero value.
type RunResponse struct {
	Content       json.RawMessage     `json:"content,omitempty"`
	ContentType   string              `json:"content_type,omitempty"`
	SessionID     string              `json:"session_id,omitempty"`
	RunID         string              `json:"run_id,omitempty"`
	AgentID       string              `json:"agent_id,omitempty"`
	TeamID        string              `json:"team_id,omitempty"`
	CreatedAt     *int64              `json:"created_at,omitempty"`
	Tool          *chat.ToolCall      `json:"tool,omitempty"`
	Tools         []chat.ToolCall     `json:"tools,omitempty"`
	ExtraData     *chat.ExtraData     `json:"extra_data,omitempty"`
	Images        []chat.Image        `json:"images,omitempty"`
	Videos        []chat.Video        `json:"videos,omitempty"`
	Audio         []chat.Audio        `json:"audio,omitempty"`
	ResponseAudio *chat.ResponseAudio `json:"response_audio,omitempty"`
}

// HasContent reports whether the payload carried a non-null content field.
func (r *RunResponse) HasContent() bool {
	return len(r.Content) > 0
}

// ContentString returns the content when it is a JSON string.
func (r *RunResponse) ContentString() (string, bool) {
	if len(r.Content) == 0 || r.Content[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(r.Content, &s); err != nil {
		return "", false
	}
	return s, true
}

// ContentJSON returns non-string content as compact JSON.
func (r *RunResponse) ContentJSON() (string, bool) {
	if len(r.Content) == 0 {
		return "", false
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, r.Content); err != nil {
		return "", false
	}
	return buf.String(), true
}

// ToolCalls returns the single tool followed by the tool list.
func (r *RunResponse) ToolCalls() []chat.ToolCall {
	var calls []chat.ToolCall
	if r.Tool != nil {
		calls = append(calls, *r.Tool)
	}
	return append(calls, r.Tools...)
}

// ReasoningSteps returns the reasoning steps carried in extra_data.
func (r *RunResponse) ReasoningSteps() []chat.ReasoningStep {
	if r.ExtraData == nil {
		return nil
	}
	return r.ExtraData.ReasoningSteps
}

// References returns the knowledge references carried in extra_data.
func (r *RunResponse) References() []chat.ReferenceData {
	if r.ExtraData == nil {
		return nil
	}
	return r.ExtraData.References
}

// Event is a decoded run event.
type Event interface {
	isEvent()
	// Name is the event name as received, after wire name mapping.
	Name() string
	// IsTeam reports a Team-prefixed variant.
	IsTeam() bool
	Response() *RunResponse
}

// eventBase carries what every event shares.
type eventBase struct {
	name string
	team bool
	resp RunResponse
}

func (e *eventBase) Name() string           { return e.name }
func (e *eventBase) IsTeam() bool           { return e.team }
func (e *eventBase) Response() *RunResponse { return &e.resp }

type RunStartedEvent struct{ eventBase }

func (e *RunStartedEvent) isEvent() {}

type RunContentEvent struct{ eventBase }

func (e *RunContentEvent) isEvent() {}

type RunCompletedEvent struct{ eventBase }

func (e *RunCompletedEvent) isEvent() {}

type RunErrorEvent struct{ eventBase }

func (e *RunErrorEvent) isEvent() {}

type RunCancelledEvent struct{ eventBase }

func (e *RunCancelledEvent) isEvent() {}

type RunPausedEvent struct{ eventBase }

func (e *RunPausedEvent) isEvent() {}

type RunContinuedEvent struct{ eventBase }

func (e *RunContinuedEvent) isEvent() {}

type ToolCallStartedEvent struct{ eventBase }

func (e *ToolCallStartedEvent) isEvent() {}

type ToolCallCompletedEvent struct{ eventBase }

func (e *ToolCallCompletedEvent) isEvent() {}

type ReasoningStartedEvent struct{ eventBase }

func (e *ReasoningStartedEvent) isEvent() {}

type ReasoningStepEvent struct{ eventBase }

func (e *ReasoningStepEvent) isEvent() {}

type ReasoningCompletedEvent struct{ eventBase }

func (e *ReasoningCompletedEvent) isEvent() {}

type MemoryUpdateStartedEvent struct{ eventBase }

func (e *MemoryUpdateStartedEvent) isEvent() {}

type MemoryUpdateCompletedEvent struct{ eventBase }

func (e *MemoryUpdateCompletedEvent) isEvent() {}

// UnknownEvent wraps names this client does not handle. The raw payload is
// kept for callers that want to inspect it.
type UnknownEvent struct {
	eventBase
	Data map[string]any
}

func (e *UnknownEvent) isEvent() {}

// Decode turns a normalized event into its typed form.
func Decode(raw RawEvent) Event {
	name, team := splitTeam(raw.Event)
	base := eventBase{name: raw.Event, team: team, resp: decodeResponse(raw.Data)}

	switch name {
	case RunStarted:
		return &RunStartedEvent{base}
	case RunContent:
		return &RunContentEvent{base}
	case RunCompleted:
		return &RunCompletedEvent{base}
	case RunError:
		return &RunErrorEvent{base}
	case RunCancelled:
		return &RunCancelledEvent{base}
	case RunPaused:
		return &RunPausedEvent{base}
	case RunContinued:
		return &RunContinuedEvent{base}
	case ToolCallStarted:
		return &ToolCallStartedEvent{base}
	case ToolCallCompleted:
		return &ToolCallCompletedEvent{base}
	case ReasoningStarted:
		return &ReasoningStartedEvent{base}
	case ReasoningStep:
		return &ReasoningStepEvent{base}
	case ReasoningCompleted:
		return &ReasoningCompletedEvent{base}
	case MemoryUpdateStarted:
		return &MemoryUpdateStartedEvent{base}
	case MemoryUpdateCompleted:
		return &MemoryUpdateCompletedEvent{base}
	default:
		return &UnknownEvent{eventBase: base, Data: raw.Data}
	}
}

// decodeResponse decodes each field on its own so that one field of the
// wrong shape does not cost the rest of the event.
func decodeResponse(data map[string]any) RunResponse {
	var resp RunResponse

	if v, ok := data["content"]; ok && v != nil {
		if buf, err := json.Marshal(v); err == nil {
			resp.Content = buf
		}
	}

	resp.ContentType, _ = decodeField[string](data, "content_type")
	resp.SessionID, _ = decodeField[string](data, "session_id")
	resp.RunID, _ = decodeField[string](data, "run_id")
	resp.AgentID, _ = decodeField[string](data, "agent_id")
	resp.TeamID, _ = decodeField[string](data, "team_id")
	resp.Tool, _ = decodeField[*chat.ToolCall](data, "tool")
	resp.Tools, _ = decodeField[[]chat.ToolCall](data, "tools")
	resp.ExtraData, _ = decodeField[*chat.ExtraData](data, "extra_data")
	resp.Images, _ = decodeField[[]chat.Image](data, "images")
	resp.Videos, _ = decodeField[[]chat.Video](data, "videos")
	resp.Audio, _ = decodeField[[]chat.Audio](data, "audio")
	resp.ResponseAudio, _ = decodeField[*chat.ResponseAudio](data, "response_audio")

	if createdAt, ok := decodeField[float64](data, "created_at"); ok {
		ts := int64(createdAt)
		resp.CreatedAt = &ts
	}

	return resp
}

func decodeField[T any](data map[string]any, key string) (T, bool) {
	var dst T

	v, ok := data[key]
	if !ok || v == nil {
		return dst, false
	}

	buf, err := json.Marshal(v)
	if err != nil {
		return dst, false
	}
	if err := json.Unmarshal(buf, &dst); err != nil {
		slog.Debug("Dropping malformed event field", "field", key, "error", err)
		var zero T
		return zero, false
	}
	return dst, true
}

// Parse normalizes and decodes a stream object in one step.
func Parse(obj map[string]any) (Event, bool) {
	raw, ok := Normalize(obj)
	if !ok {
		return nil, false
	}
	return Decode(raw), true
}
