package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/docker/agentos-client/pkg/agentos"
	"github.com/docker/agentos-client/pkg/agui"
	"github.com/docker/agentos-client/pkg/chat"
	"github.com/docker/agentos-client/pkg/chatstore"
)

var (
	// ErrBusy is returned when a run is already streaming into the store.
	ErrBusy = errors.New("a run is already in progress")
	// ErrRunFailed wraps errors reported by the server inside the stream.
	ErrRunFailed = errors.New("run failed")
)

// Sender posts runs. *agentos.Client implements it.
type Sender interface {
	SendMessage(ctx context.Context, req agentos.SendRequest, h agentos.Handlers)
}

// Target selects what a Handler talks to.
type Target struct {
	AgentID string
	TeamID  string
	UserID  string
}

type HandlerOption func(*Handler)

// WithObserver is called with every event after it has been applied to the
// store.
func WithObserver(fn func(agui.Event)) HandlerOption {
	return func(h *Handler) {
		h.observer = fn
	}
}

// WithState sets the session state sent with every run.
func WithState(state map[string]any) HandlerOption {
	return func(h *Handler) {
		h.state = state
	}
}

// Handler drives runs for one conversation: it prepares the store, sends the
// message and routes the streamed events into a Reducer.
type Handler struct {
	store    chatstore.Store
	sender   Sender
	target   Target
	observer func(agui.Event)
	state    map[string]any
}

func NewHandler(store chatstore.Store, sender Sender, target Target, opts ...HandlerOption) *Handler {
	h := &Handler{
		store:  store,
		sender: sender,
		target: target,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Send runs message against the target and blocks until the stream ends.
// Failures are recorded in the store and also returned.
func (h *Handler) Send(ctx context.Context, message string) error {
	if h.store.IsStreaming() {
		return ErrBusy
	}

	history := h.store.Messages()

	h.store.SetStreamingError("")
	h.store.AppendMessage(chat.NewUserMessage(message))
	h.store.AppendMessage(chat.NewAgentPlaceholder(time.Now().Unix()))
	h.store.SetStreaming(true)
	defer h.store.SetStreaming(false)

	reducer := NewReducer(h.store, message)

	var transportErr error
	h.sender.SendMessage(ctx, agentos.SendRequest{
		Message:  message,
		ThreadID: h.store.SessionID(),
		History:  conversation(history),
		State:    h.state,
		AgentID:  h.target.AgentID,
		TeamID:   h.target.TeamID,
		UserID:   h.target.UserID,
	}, agentos.Handlers{
		OnChunk: func(ev agui.Event) {
			reducer.Apply(ev)
			if h.observer != nil {
				h.observer(ev)
			}
		},
		OnError: func(err error) {
			slog.Debug("Run failed", "error", err)
			transportErr = err
			reducer.Fail(err)
		},
		OnComplete: func() {
			slog.Debug("Run stream ended", "session_id", reducer.SessionID(), "terminated", reducer.Terminated())
		},
	})

	switch {
	case transportErr != nil:
		return transportErr
	case h.store.StreamingError() != "":
		return fmt.Errorf("%w: %s", ErrRunFailed, h.store.StreamingError())
	case ctx.Err() != nil:
		return ctx.Err()
	}
	return nil
}

// conversation drops messages that failed or never received content, so
// they are not replayed to the agent.
func conversation(msgs []chat.Message) []chat.Message {
	out := make([]chat.Message, 0, len(msgs))
	for i := range msgs {
		m := &msgs[i]
		if m.StreamingError {
			continue
		}
		if m.Role.IsAssistant() && m.Content == "" && len(m.ToolCalls) == 0 {
			continue
		}
		out = append(out, *m)
	}
	return out
}
