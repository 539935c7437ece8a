package cli

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/agentos-client/pkg/agentos"
	"github.com/docker/agentos-client/pkg/agui"
	"github.com/docker/agentos-client/pkg/chat"
	"github.com/docker/agentos-client/pkg/stream"
)

func event(name string, data map[string]any) agui.Event {
	return agui.Decode(agui.RawEvent{Event: name, Data: data})
}

// scriptedClient answers every message with the same events.
type scriptedClient struct {
	events   []agui.Event
	err      error
	requests []agentos.SendRequest
	resets   int
}

func (c *scriptedClient) SendMessage(_ context.Context, req agentos.SendRequest, h agentos.Handlers) {
	c.requests = append(c.requests, req)
	for _, ev := range c.events {
		h.OnChunk(ev)
	}
	if c.err != nil {
		h.OnError(c.err)
		return
	}
	if h.OnComplete != nil {
		h.OnComplete()
	}
}

func (c *scriptedClient) ResetThread() {
	c.resets++
}

func answer(text string) []agui.Event {
	return []agui.Event{
		event("RunStarted", map[string]any{"session_id": "s1"}),
		event("RunContent", map[string]any{"content": text[:len(text)/2]}),
		event("RunContent", map[string]any{"content": text}),
		event("RunCompleted", map[string]any{"content": text}),
	}
}

func TestRun_OneShot(t *testing.T) {
	t.Parallel()

	p, out := plainPrinter()
	client := &scriptedClient{events: answer("The answer is 4")}

	cfg := Config{TargetName: "math-agent", Target: stream.Target{AgentID: "math-agent"}}
	require.NoError(t, Run(t.Context(), p, cfg, client, strings.NewReader(""), "2+2?"))

	assert.Equal(t, "\n--- Agent: math-agent ---\nThe answer is 4\n", out.String())
	require.Len(t, client.requests, 1)
	assert.Equal(t, "2+2?", client.requests[0].Message)
	assert.Equal(t, "math-agent", client.requests[0].AgentID)
}

func TestRun_OneShotFromStdin(t *testing.T) {
	t.Parallel()

	p, _ := plainPrinter()
	client := &scriptedClient{events: answer("ok")}

	require.NoError(t, Run(t.Context(), p, Config{}, client, strings.NewReader("  piped question\n"), "-"))
	require.Len(t, client.requests, 1)
	assert.Equal(t, "piped question", client.requests[0].Message)
}

func TestRun_OneShotFailure(t *testing.T) {
	t.Parallel()

	p, out := plainPrinter()
	client := &scriptedClient{err: &agentos.APIError{StatusCode: 404, Message: "Agent not found"}}

	err := Run(t.Context(), p, Config{}, client, strings.NewReader(""), "hi")

	var runtimeErr RuntimeError
	require.ErrorAs(t, err, &runtimeErr)
	assert.Contains(t, out.String(), "API error (404): Agent not found")
}

func TestRun_ResumesSession(t *testing.T) {
	t.Parallel()

	p, _ := plainPrinter()
	client := &scriptedClient{events: answer("ok")}

	require.NoError(t, Run(t.Context(), p, Config{SessionID: "old-session"}, client, strings.NewReader(""), "hi"))
	assert.Equal(t, "old-session", client.requests[0].ThreadID)
}

func TestRun_JSONOutput(t *testing.T) {
	t.Parallel()

	p, out := plainPrinter()
	client := &scriptedClient{events: append(answer("4"), event("SomethingNew", map[string]any{"x": float64(1)}))}

	require.NoError(t, Run(t.Context(), p, Config{OutputJSON: true}, client, strings.NewReader(""), "2+2?"))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "RunStarted", first["event"])
	assert.Equal(t, "s1", first["data"].(map[string]any)["session_id"])

	var last map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[4]), &last))
	assert.Equal(t, "SomethingNew", last["event"])
	assert.Equal(t, map[string]any{"x": float64(1)}, last["raw"])
}

func TestRun_Interactive(t *testing.T) {
	t.Parallel()

	p, out := plainPrinter()
	client := &scriptedClient{events: answer("hello there")}

	in := strings.NewReader("hi\n/history\n/sessions\n/new\n/bogus\nagain\n/exit\nnever sent\n")
	require.NoError(t, Run(t.Context(), p, Config{AppName: "agentos", TargetName: "helper"}, client, in, ""))

	require.Len(t, client.requests, 2)
	assert.Equal(t, "hi", client.requests[0].Message)
	assert.Empty(t, client.requests[1].ThreadID, "a new conversation starts without a thread")
	assert.Equal(t, 1, client.resets)

	text := out.String()
	assert.Contains(t, text, "Welcome to agentos!")
	assert.Contains(t, text, "user: hi")
	assert.Contains(t, text, "agent: hello there")
	assert.Contains(t, text, "* s1")
	assert.Contains(t, text, "Started a new conversation.")
	assert.Contains(t, text, "Unknown command /bogus")
}

func TestRun_InteractiveKeepsGoingAfterFailure(t *testing.T) {
	t.Parallel()

	p, out := plainPrinter()
	client := &scriptedClient{err: errors.New("connection refused")}

	require.NoError(t, Run(t.Context(), p, Config{}, client, strings.NewReader("one\ntwo\n"), ""))

	assert.Len(t, client.requests, 2)
	assert.Equal(t, 2, strings.Count(out.String(), "connection refused"))
}

func TestRun_InteractiveCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	p, _ := plainPrinter()
	require.NoError(t, Run(ctx, p, Config{}, &scriptedClient{}, strings.NewReader("hi\n"), ""))
}

func TestStreamRenderer(t *testing.T) {
	t.Parallel()

	p, out := plainPrinter()
	r := newStreamRenderer(p, false)

	content := "sunny"
	msg := chat.Message{Role: chat.MessageRoleAgent}
	r.render(msg)

	msg.ExtraData = &chat.ExtraData{ReasoningSteps: []chat.ReasoningStep{{Title: "check weather"}}}
	msg.ToolCalls = []chat.ToolCall{{ToolCallID: "t1", ToolName: "weather"}}
	r.render(msg)

	msg.ToolCalls[0].Content = &content
	msg.Content = "It is"
	r.render(msg)

	msg.Content = "It is sunny"
	r.render(msg)
	r.render(msg)

	assert.Equal(t, "\n💭 check weather\n\nCalling weather()\n\nweather response → \"sunny\"\nIt is sunny", out.String())

	out.Reset()
	msg.Content = "Replaced"
	r.render(msg)
	assert.Equal(t, "\nReplaced", out.String())

	out.Reset()
	r.render(chat.Message{Role: chat.MessageRoleUser, Content: "ignored"})
	assert.Empty(t, out.String())
}

func TestStreamRenderer_HideToolCalls(t *testing.T) {
	t.Parallel()

	p, out := plainPrinter()
	r := newStreamRenderer(p, true)

	r.render(chat.Message{Role: chat.MessageRoleAgent, Content: "done", ToolCalls: []chat.ToolCall{{ToolName: "search"}}})
	assert.Equal(t, "done", out.String())
}
