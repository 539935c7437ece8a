package stream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/agentos-client/pkg/agui"
	"github.com/docker/agentos-client/pkg/chat"
	"github.com/docker/agentos-client/pkg/chatstore"
)

func event(name string, data map[string]any) agui.Event {
	if data == nil {
		data = map[string]any{}
	}
	return agui.Decode(agui.RawEvent{Event: name, Data: data})
}

func newRun(t *testing.T, userMessage string) (*chatstore.Memory, *Reducer) {
	t.Helper()

	store := chatstore.NewMemory()
	store.AppendMessage(chat.NewUserMessage(userMessage))
	store.AppendMessage(chat.NewAgentPlaceholder(100))
	return store, NewReducer(store, userMessage)
}

func lastMessage(t *testing.T, store chatstore.Store) chat.Message {
	t.Helper()

	m, ok := store.LastMessage()
	require.True(t, ok)
	return m
}

func TestReducer_CumulativeContent(t *testing.T) {
	t.Parallel()

	store, r := newRun(t, "hi")
	for _, content := range []string{"Hel", "Hello", "Hello, wor", "Hello, world"} {
		r.Apply(event("RunContent", map[string]any{"content": content}))
	}

	assert.Equal(t, "Hello, world", lastMessage(t, store).Content)
}

func TestReducer_DeltaContent(t *testing.T) {
	t.Parallel()

	store, r := newRun(t, "hi")
	for _, content := range []string{"a", "b", "c"} {
		r.Apply(event("RunContent", map[string]any{"content": content}))
	}

	assert.Equal(t, "abc", lastMessage(t, store).Content)
}

func TestReducer_StructuredContentBecomesJSONBlock(t *testing.T) {
	t.Parallel()

	store, r := newRun(t, "hi")
	r.Apply(event("RunContent", map[string]any{"content": map[string]any{"answer": float64(4)}}))

	assert.Equal(t, "```json\n{\n  \"answer\": 4\n}\n```", lastMessage(t, store).Content)
}

func TestReducer_AudioTranscript(t *testing.T) {
	t.Parallel()

	store, r := newRun(t, "hi")
	r.Apply(event("RunContent", map[string]any{"response_audio": map[string]any{"transcript": "hel"}}))
	r.Apply(event("RunContent", map[string]any{"response_audio": map[string]any{"transcript": "lo"}}))

	m := lastMessage(t, store)
	require.NotNil(t, m.ResponseAudio)
	assert.Equal(t, "hello", m.ResponseAudio.Transcript)
	assert.Empty(t, m.Content)
}

func TestReducer_ToolCallMerge(t *testing.T) {
	t.Parallel()

	store, r := newRun(t, "weather?")
	r.Apply(event("ToolCallStarted", map[string]any{
		"tool": map[string]any{"tool_call_id": "X", "tool_name": "weather", "tool_args": map[string]any{"city": "Paris"}},
	}))
	r.Apply(event("ToolCallCompleted", map[string]any{
		"tool": map[string]any{"tool_call_id": "X", "tool_name": "weather", "content": "sunny", "metrics": map[string]any{"time": 1.5}},
	}))
	r.Apply(event("RunContent", map[string]any{
		"content": "It is sunny",
		"tools":   []any{map[string]any{"tool_call_id": "X", "tool_name": "weather"}},
	}))

	m := lastMessage(t, store)
	require.Len(t, m.ToolCalls, 1)
	tc := m.ToolCalls[0]
	assert.Equal(t, "weather", tc.ToolName)
	assert.Equal(t, map[string]any{"city": "Paris"}, tc.ToolArgs)
	require.NotNil(t, tc.Content)
	assert.Equal(t, "sunny", *tc.Content)
	assert.InDelta(t, 1.5, tc.Metrics.Time, 0.001)
}

func TestReducer_SessionRecorded(t *testing.T) {
	t.Parallel()

	store, r := newRun(t, "2+2?")
	r.Apply(event("RunStarted", map[string]any{"session_id": "sX", "created_at": float64(42)}))

	assert.Equal(t, "sX", store.SessionID())
	assert.Equal(t, "sX", r.SessionID())
	assert.Equal(t, []chat.SessionEntry{{SessionID: "sX", SessionName: "2+2?", CreatedAt: 42}}, store.Sessions())

	r.Apply(event("ReasoningStarted", map[string]any{"session_id": "sX"}))
	assert.Len(t, store.Sessions(), 1)
}

func TestReducer_ErrorRollsBackSession(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		event    string
		data     map[string]any
		expected string
	}{
		{"error with message", "RunError", map[string]any{"content": "model overloaded"}, "model overloaded"},
		{"error without message", "RunError", nil, "Error during run"},
		{"team error", "TeamRunError", nil, "Error during run"},
		{"cancelled", "RunCancelled", nil, "Run cancelled"},
		{"team cancelled", "TeamRunCancelled", nil, "Run cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store, r := newRun(t, "hi")
			r.Apply(event("RunStarted", map[string]any{"session_id": "s1"}))
			require.Len(t, store.Sessions(), 1)

			r.Apply(event(tt.event, tt.data))

			assert.Empty(t, store.Sessions())
			assert.True(t, lastMessage(t, store).StreamingError)
			assert.Equal(t, tt.expected, store.StreamingError())
			assert.True(t, r.Terminated())
		})
	}
}

func TestReducer_ErrorKeepsExistingSession(t *testing.T) {
	t.Parallel()

	store, r := newRun(t, "again")
	store.AddSession(chat.SessionEntry{SessionID: "s1", SessionName: "earlier"})

	r.Apply(event("RunStarted", map[string]any{"session_id": "s1"}))
	r.Apply(event("RunError", nil))

	assert.Len(t, store.Sessions(), 1)
}

func TestReducer_Completed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		data     map[string]any
		expected string
	}{
		{"string replaces", map[string]any{"content": "final"}, "final"},
		{"object is stringified", map[string]any{"content": map[string]any{"a": float64(1)}}, `{"a":1}`},
		{"absent keeps streamed text", map[string]any{}, "streamed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store, r := newRun(t, "hi")
			r.Apply(event("RunContent", map[string]any{"content": "streamed"}))
			r.Apply(event("RunCompleted", tt.data))

			assert.Equal(t, tt.expected, lastMessage(t, store).Content)
			assert.True(t, r.Terminated())
		})
	}
}

func TestReducer_CompletedMergesExtras(t *testing.T) {
	t.Parallel()

	store, r := newRun(t, "hi")
	r.Apply(event("RunCompleted", map[string]any{
		"content":    "done",
		"created_at": float64(200),
		"images":     []any{map[string]any{"url": "https://example.com/a.png"}},
		"extra_data": map[string]any{
			"reasoning_steps": []any{map[string]any{"title": "final"}},
			"references":      []any{map[string]any{"query": "q", "references": []any{}}},
		},
		"tools": []any{map[string]any{"tool_call_id": "t1", "tool_name": "search"}},
	}))

	m := lastMessage(t, store)
	assert.Equal(t, int64(200), m.CreatedAt)
	require.Len(t, m.Images, 1)
	assert.Equal(t, "https://example.com/a.png", m.Images[0].URL)
	require.Len(t, m.ReasoningSteps(), 1)
	require.Len(t, m.ExtraData.References, 1)
	require.Len(t, m.ToolCalls, 1)
}

func TestReducer_Reasoning(t *testing.T) {
	t.Parallel()

	store, r := newRun(t, "hi")
	step := func(title string) map[string]any {
		return map[string]any{"extra_data": map[string]any{"reasoning_steps": []any{map[string]any{"title": title}}}}
	}

	r.Apply(event("ReasoningStep", step("one")))
	r.Apply(event("ReasoningStep", step("two")))
	require.Len(t, lastMessage(t, store).ReasoningSteps(), 2)

	r.Apply(event("ReasoningCompleted", step("summary")))
	steps := lastMessage(t, store).ReasoningSteps()
	require.Len(t, steps, 1)
	assert.Equal(t, "summary", steps[0].Title)

	r.Apply(event("ReasoningCompleted", nil))
	assert.Len(t, lastMessage(t, store).ReasoningSteps(), 1)
}

func TestReducer_IgnoresEventsAfterTerminal(t *testing.T) {
	t.Parallel()

	store, r := newRun(t, "hi")
	r.Apply(event("RunCompleted", map[string]any{"content": "final"}))
	r.Apply(event("RunContent", map[string]any{"content": "late"}))
	r.Apply(event("RunError", map[string]any{"content": "late error"}))
	r.Fail(errors.New("transport"))

	m := lastMessage(t, store)
	assert.Equal(t, "final", m.Content)
	assert.False(t, m.StreamingError)
	assert.Empty(t, store.StreamingError())
}

func TestReducer_NoOpEvents(t *testing.T) {
	t.Parallel()

	store, r := newRun(t, "hi")
	before := lastMessage(t, store)

	for _, name := range []string{"RunPaused", "RunContinued", "MemoryUpdateStarted", "TeamMemoryUpdateCompleted", "SomethingNew"} {
		r.Apply(event(name, map[string]any{"content": "ignored"}))
	}

	assert.Equal(t, before, lastMessage(t, store))
	assert.False(t, r.Terminated())
}

func TestReducer_NonAgentLastMessage(t *testing.T) {
	t.Parallel()

	store := chatstore.NewMemory()
	store.AppendMessage(chat.NewUserMessage("hi"))
	r := NewReducer(store, "hi")

	r.Apply(event("RunContent", map[string]any{"content": "x"}))
	r.Apply(event("RunCompleted", map[string]any{"content": "x"}))

	m := lastMessage(t, store)
	assert.Equal(t, "hi", m.Content)
	assert.Equal(t, chat.MessageRoleUser, m.Role)

	empty := NewReducer(chatstore.NewMemory(), "hi")
	empty.Apply(event("RunContent", map[string]any{"content": "x"}))
	empty.Apply(event("ToolCallStarted", map[string]any{"tool": map[string]any{"tool_name": "a"}}))
}

func TestReducer_FailRecordsTransportError(t *testing.T) {
	t.Parallel()

	store, r := newRun(t, "hi")
	r.Apply(event("RunStarted", map[string]any{"session_id": "s1"}))
	r.Fail(errors.New("connection reset"))

	assert.Equal(t, "connection reset", store.StreamingError())
	assert.True(t, lastMessage(t, store).StreamingError)
	assert.Empty(t, store.Sessions())
}

func TestReducer_ToleratesOddPayloads(t *testing.T) {
	t.Parallel()

	store, r := newRun(t, "hi")
	assert.NotPanics(t, func() {
		r.Apply(event("RunContent", map[string]any{"content": nil, "tools": "nope", "tool": float64(1)}))
		r.Apply(event("ToolCallStarted", map[string]any{"tool": []any{}}))
		r.Apply(event("RunStarted", map[string]any{"session_id": []any{"x"}}))
		r.Apply(event("RunCompleted", map[string]any{"content": []any{float64(1), "two"}}))
	})

	assert.Equal(t, `[1,"two"]`, lastMessage(t, store).Content)
}
