package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestMessageRole_IsAssistant(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role     MessageRole
		expected bool
	}{
		{MessageRoleAgent, true},
		{MessageRoleAssistant, true},
		{MessageRoleUser, false},
		{MessageRoleSystem, false},
		{MessageRoleTool, false},
		{MessageRoleDeveloper, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.role.IsAssistant())
		})
	}
}

func TestToolCall_Key(t *testing.T) {
	t.Parallel()

	withID := ToolCall{ToolCallID: "abc", ToolName: "search", CreatedAt: 10}
	assert.Equal(t, "abc", withID.Key())

	withoutID := ToolCall{ToolName: "search", CreatedAt: 10}
	assert.Equal(t, "search-10", withoutID.Key())
}

func TestMergeToolCalls_SameIDUpdatesInPlace(t *testing.T) {
	t.Parallel()

	started := ToolCall{ToolCallID: "abc", ToolName: "search", ToolArgs: map[string]any{"q": "go"}, CreatedAt: 100}
	completed := ToolCall{ToolCallID: "abc", Content: strPtr("result"), Metrics: &ToolCallMetrics{Time: 2}}

	merged := MergeToolCalls(nil, started)
	merged = MergeToolCalls(merged, completed)

	require.Len(t, merged, 1)
	assert.Equal(t, "search", merged[0].ToolName)
	assert.Equal(t, map[string]any{"q": "go"}, merged[0].ToolArgs)
	require.NotNil(t, merged[0].Content)
	assert.Equal(t, "result", *merged[0].Content)
	assert.InDelta(t, 2.0, merged[0].Metrics.Time, 0.001)
	assert.Equal(t, int64(100), merged[0].CreatedAt)
}

func TestMergeToolCalls_FallbackKey(t *testing.T) {
	t.Parallel()

	merged := MergeToolCalls(nil, ToolCall{ToolName: "weather", CreatedAt: 5})
	merged = MergeToolCalls(merged, ToolCall{ToolName: "weather", CreatedAt: 5, Content: strPtr("sunny")})
	merged = MergeToolCalls(merged, ToolCall{ToolName: "weather", CreatedAt: 6})

	require.Len(t, merged, 2)
	require.NotNil(t, merged[0].Content)
	assert.Equal(t, "sunny", *merged[0].Content)
	assert.Nil(t, merged[1].Content)
}

func TestMergeToolCalls_DifferentIDsAppend(t *testing.T) {
	t.Parallel()

	merged := MergeToolCalls(nil,
		ToolCall{ToolCallID: "a", ToolName: "one"},
		ToolCall{ToolCallID: "b", ToolName: "two"},
		ToolCall{ToolCallID: "a", ToolCallError: true},
	)

	require.Len(t, merged, 2)
	assert.True(t, merged[0].ToolCallError)
	assert.Equal(t, "one", merged[0].ToolName)
	assert.Equal(t, "two", merged[1].ToolName)
}

func TestMergeToolCalls_DoesNotAliasIncoming(t *testing.T) {
	t.Parallel()

	incoming := ToolCall{ToolCallID: "a", ToolArgs: map[string]any{"k": "v"}}
	merged := MergeToolCalls(nil, incoming)
	merged[0].ToolArgs["k"] = "changed"

	assert.Equal(t, "v", incoming.ToolArgs["k"])
}

func TestToolCall_Arguments(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "{}", (&ToolCall{}).Arguments())
	assert.JSONEq(t, `{"city":"Paris"}`, (&ToolCall{ToolArgs: map[string]any{"city": "Paris"}}).Arguments())
}

func TestMessage_Clone(t *testing.T) {
	t.Parallel()

	original := Message{
		Role:      MessageRoleAgent,
		ToolCalls: []ToolCall{{ToolCallID: "a", ToolArgs: map[string]any{"x": 1}}},
		ExtraData: &ExtraData{ReasoningSteps: []ReasoningStep{{Title: "think"}}},
	}

	c := original.Clone()
	c.ToolCalls[0].ToolArgs["x"] = 2
	c.ExtraData.ReasoningSteps[0].Title = "changed"

	assert.Equal(t, 1, original.ToolCalls[0].ToolArgs["x"])
	assert.Equal(t, "think", original.ExtraData.ReasoningSteps[0].Title)
}

func TestNewAgentPlaceholder(t *testing.T) {
	t.Parallel()

	m := NewAgentPlaceholder(42)
	assert.Equal(t, MessageRoleAgent, m.Role)
	assert.Empty(t, m.Content)
	assert.NotNil(t, m.ToolCalls)
	assert.Equal(t, int64(42), m.CreatedAt)
	assert.NotEmpty(t, m.ID)
}
