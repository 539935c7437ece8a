package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"

	"github.com/docker/agentos-client/pkg/chat"
)

func plainPrinter() (*Printer, *bytes.Buffer) {
	var buf bytes.Buffer
	return newPrinter(&buf, false), &buf
}

func TestFormatToolCallResponse(t *testing.T) {
	t.Parallel()

	p, _ := plainPrinter()

	tests := []struct {
		name     string
		response string
		expected string
	}{
		{"empty", ``, ` → ()`},
		{"map", `{"text": "hello"}`, ` → (text: "hello")`},
		{"empty map", `{}`, ` → ()`},
		{"map of empty array", `{"array": []}`, ` → (array: [])`},
		{"map of array", `{"array": [1,2,3]}`, " → (\n  array: [\n  1,\n  2,\n  3\n]\n)"},
		{"keeps key order", `{"b": 1, "a": 2}`, " → (\n  b: 1\n  a: 2\n)"},
		{"plain text", `Plain Text`, ` → "Plain Text"`},
		{"short multiline", "one\ntwo", ` → "one\ntwo"`},
		{"long multiline", "a\nb\n\n\n\nc\nd", " → (\na\nb\n\nc\nd\n)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, p.formatToolCallResponse(tt.response))
		})
	}
}

func TestFormatToolCallArguments(t *testing.T) {
	t.Parallel()

	p, _ := plainPrinter()

	tests := []struct {
		name      string
		arguments string
		expected  string
	}{
		{"empty", ``, `()`},
		{"empty object", `{}`, `()`},
		{"map", `{"first": "hello", "second": 42}`, "(\n  first: \"hello\"\n  second: 42\n)"},
		{"map of array", `{"array": [1,2,3]}`, "(\n  array: [\n  1,\n  2,\n  3\n]\n)"},
		{"map of empty array", `{"array": []}`, `(array: [])`},
		{"map of single item array", `{"array": ["value"]}`, `(array: ["value"])`},
		{"non object json", `[1]`, "([\n  1\n])"},
		{"plain text", `Plain Text`, `(Plain Text)`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, p.formatToolCallArguments(tt.arguments))
		})
	}
}

func TestPrinter_ToolCalls(t *testing.T) {
	t.Parallel()

	p, buf := plainPrinter()
	content := "sunny"
	tc := chat.ToolCall{ToolName: "weather", ToolArgs: map[string]any{"city": "Paris"}, Content: &content}

	p.PrintToolCall(tc)
	p.PrintToolCallResponse(tc)

	assert.Equal(t, "\nCalling weather(city: \"Paris\")\n\nweather response → \"sunny\"\n", buf.String())

	buf.Reset()
	tc.ToolCallError = true
	p.PrintToolCallResponse(tc)
	assert.Contains(t, buf.String(), "weather failed")
}

func TestPrinter_NoColorWithoutTerminal(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.PrintAgentName("math-agent")
	p.PrintError(errors.New("boom"))

	assert.Equal(t, "\n--- Agent: math-agent ---\n✗ boom\n", buf.String())
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "two words", truncate("two\n\t words"))

	long := strings.Repeat("a", 100)
	assert.Equal(t, strings.Repeat("a", 57)+"...", truncate(long))

	// Wide runes take two columns.
	wide := strings.Repeat("界", 40)
	got := truncate(wide)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, runewidth.StringWidth(got), maxCellWidth)
}
