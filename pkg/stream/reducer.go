package stream

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/agentos-client/pkg/agui"
	"github.com/docker/agentos-client/pkg/chat"
	"github.com/docker/agentos-client/pkg/chatstore"
)

const (
	errDuringRun       = "Error during run"
	errRunCancelled    = "Run cancelled"
	errParsingResponse = "Error parsing response"
)

// Reducer folds the events of a single run into a conversation store. It
// assumes the store's last message is the agent placeholder for this run.
type Reducer struct {
	store       chatstore.Store
	userMessage string

	lastContent string
	provisional string
	sessionID   string
	terminated  bool
}

func NewReducer(store chatstore.Store, userMessage string) *Reducer {
	return &Reducer{
		store:       store,
		userMessage: userMessage,
	}
}

// Terminated reports whether the run has completed, failed or been cancelled.
func (r *Reducer) Terminated() bool {
	return r.terminated
}

// SessionID returns the session id announced by the server for this run.
func (r *Reducer) SessionID() string {
	return r.sessionID
}

// Apply folds one event into the store. Events after a terminal event are
// ignored.
func (r *Reducer) Apply(ev agui.Event) {
	if r.terminated {
		slog.Debug("Ignoring event after end of run", "event", ev.Name())
		return
	}

	resp := ev.Response()

	switch ev.(type) {
	case *agui.RunStartedEvent, *agui.ReasoningStartedEvent:
		r.started(resp)
	case *agui.ToolCallStartedEvent, *agui.ToolCallCompletedEvent:
		r.updateAgentMessage(func(m *chat.Message) {
			m.ToolCalls = chat.MergeToolCalls(m.ToolCalls, resp.ToolCalls()...)
		})
	case *agui.RunContentEvent:
		r.content(resp)
	case *agui.ReasoningStepEvent:
		r.updateAgentMessage(func(m *chat.Message) {
			steps := resp.ReasoningSteps()
			if len(steps) == 0 {
				return
			}
			extra := ensureExtraData(m)
			extra.ReasoningSteps = append(extra.ReasoningSteps, steps...)
		})
	case *agui.ReasoningCompletedEvent:
		r.updateAgentMessage(func(m *chat.Message) {
			if steps := resp.ReasoningSteps(); len(steps) > 0 {
				ensureExtraData(m).ReasoningSteps = steps
			}
		})
	case *agui.RunErrorEvent:
		r.fail(errorText(resp, errDuringRun))
	case *agui.RunCancelledEvent:
		r.fail(errorText(resp, errRunCancelled))
	case *agui.RunCompletedEvent:
		r.completed(resp)
	default:
		slog.Debug("Ignoring run event", "event", ev.Name())
	}
}

// Fail records a transport failure the same way as a run error event.
func (r *Reducer) Fail(err error) {
	if r.terminated {
		return
	}
	msg := errDuringRun
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	r.fail(msg)
}

func (r *Reducer) started(resp *agui.RunResponse) {
	sid := resp.SessionID
	if sid == "" {
		return
	}
	r.sessionID = sid

	if sid == r.store.SessionID() {
		return
	}

	entry := chat.SessionEntry{
		SessionID:   sid,
		SessionName: r.userMessage,
		CreatedAt:   createdAtOrNow(resp),
	}
	if r.store.AddSession(entry) {
		r.provisional = sid
	}
	r.store.SetSessionID(sid)
}

func (r *Reducer) content(resp *agui.RunResponse) {
	r.updateAgentMessage(func(m *chat.Message) {
		if s, ok := resp.ContentString(); ok {
			// Servers resend the whole text so far; only the new suffix is kept.
			m.Content += strings.Replace(s, r.lastContent, "", 1)
			r.lastContent = s
		} else if resp.HasContent() {
			m.Content += jsonBlock(resp.Content)
		} else if resp.ResponseAudio != nil && resp.ResponseAudio.Transcript != "" {
			if m.ResponseAudio == nil {
				m.ResponseAudio = &chat.ResponseAudio{}
			}
			m.ResponseAudio.Transcript += resp.ResponseAudio.Transcript
		}

		m.ToolCalls = chat.MergeToolCalls(m.ToolCalls, resp.ToolCalls()...)
		mergeExtras(m, resp)
	})
}

func (r *Reducer) completed(resp *agui.RunResponse) {
	r.updateAgentMessage(func(m *chat.Message) {
		if s, ok := resp.ContentString(); ok {
			m.Content = s
		} else if resp.HasContent() {
			if js, ok := resp.ContentJSON(); ok {
				m.Content = js
			} else {
				m.Content = errParsingResponse
			}
		}

		m.ToolCalls = chat.MergeToolCalls(m.ToolCalls, resp.ToolCalls()...)
		mergeExtras(m, resp)
		if resp.ResponseAudio != nil {
			ra := *resp.ResponseAudio
			m.ResponseAudio = &ra
		}
	})
	r.terminated = true
}

func (r *Reducer) fail(msg string) {
	r.updateAgentMessage(func(m *chat.Message) {
		m.StreamingError = true
	})
	r.store.SetStreamingError(msg)

	if r.provisional != "" {
		r.store.RemoveSession(r.provisional)
		r.provisional = ""
	}
	r.terminated = true
}

// updateAgentMessage applies fn to the last message when it belongs to the
// agent. Anything else means the store no longer holds this run's
// placeholder, and the event is dropped.
func (r *Reducer) updateAgentMessage(fn func(*chat.Message)) {
	last, ok := r.store.LastMessage()
	if !ok || !last.Role.IsAssistant() {
		slog.Debug("No agent message to update")
		return
	}
	r.store.UpdateLastMessage(func(m *chat.Message) {
		if m.Role.IsAssistant() {
			fn(m)
		}
	})
}

func mergeExtras(m *chat.Message, resp *agui.RunResponse) {
	if steps := resp.ReasoningSteps(); len(steps) > 0 {
		ensureExtraData(m).ReasoningSteps = steps
	}
	if refs := resp.References(); len(refs) > 0 {
		ensureExtraData(m).References = refs
	}
	if len(resp.Images) > 0 {
		m.Images = resp.Images
	}
	if len(resp.Videos) > 0 {
		m.Videos = resp.Videos
	}
	if len(resp.Audio) > 0 {
		m.Audio = resp.Audio
	}
	if resp.CreatedAt != nil {
		m.CreatedAt = *resp.CreatedAt
	}
}

func ensureExtraData(m *chat.Message) *chat.ExtraData {
	if m.ExtraData == nil {
		m.ExtraData = &chat.ExtraData{}
	}
	return m.ExtraData
}

func errorText(resp *agui.RunResponse, fallback string) string {
	if s, ok := resp.ContentString(); ok && s != "" {
		return s
	}
	return fallback
}

func jsonBlock(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return "```json\n" + string(raw) + "\n```"
	}
	return "```json\n" + buf.String() + "\n```"
}

func createdAtOrNow(resp *agui.RunResponse) int64 {
	if resp.CreatedAt != nil {
		return *resp.CreatedAt
	}
	return time.Now().Unix()
}
