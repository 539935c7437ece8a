package cli

import (
	"encoding/json"
	"strings"

	"github.com/docker/agentos-client/pkg/agui"
	"github.com/docker/agentos-client/pkg/chat"
)

// streamRenderer prints the part of the streamed agent message that has not
// been printed yet.
type streamRenderer struct {
	out           *Printer
	hideToolCalls bool

	printed   string
	started   map[string]bool
	completed map[string]bool
	steps     int
}

func newStreamRenderer(out *Printer, hideToolCalls bool) *streamRenderer {
	return &streamRenderer{
		out:           out,
		hideToolCalls: hideToolCalls,
		started:       map[string]bool{},
		completed:     map[string]bool{},
	}
}

func (r *streamRenderer) render(msg chat.Message) {
	if !msg.Role.IsAssistant() {
		return
	}

	steps := msg.ReasoningSteps()
	if len(steps) < r.steps {
		// Replaced by a summary.
		r.steps = 0
	}
	for _, step := range steps[r.steps:] {
		r.out.PrintReasoningStep(step)
	}
	r.steps = len(steps)

	if !r.hideToolCalls {
		for _, tc := range msg.ToolCalls {
			key := tc.Key()
			if !r.started[key] {
				r.started[key] = true
				r.out.PrintToolCall(tc)
			}
			if tc.Content != nil && !r.completed[key] {
				r.completed[key] = true
				r.out.PrintToolCallResponse(tc)
			}
		}
	}

	switch {
	case msg.Content == r.printed:
	case strings.HasPrefix(msg.Content, r.printed):
		r.out.Print(msg.Content[len(r.printed):])
	default:
		// The final content replaced what was streamed.
		r.out.Print("\n" + msg.Content)
	}
	r.printed = msg.Content
}

// jsonEvent is the line printed per event with --json.
type jsonEvent struct {
	Event string            `json:"event"`
	Data  *agui.RunResponse `json:"data,omitempty"`
	Raw   map[string]any    `json:"raw,omitempty"`
}

func marshalEvent(ev agui.Event) ([]byte, error) {
	line := jsonEvent{Event: ev.Name()}
	if unknown, ok := ev.(*agui.UnknownEvent); ok {
		line.Raw = unknown.Data
	} else {
		line.Data = ev.Response()
	}
	return json.Marshal(line)
}
