package agentos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/docker/agentos-client/pkg/agui"
	"github.com/docker/agentos-client/pkg/chat"
)

const readChunkSize = 32 * 1024

// SendRequest describes a single run.
type SendRequest struct {
	Message string
	// ThreadID continues an existing thread. When empty the client reuses
	// the thread of the last accepted run, or starts a new one.
	ThreadID string
	// History replaces the client's rolling history when non-nil.
	History []chat.Message
	State   map[string]any
	Tools   []agui.Tool
	Context []agui.ContextItem
	AgentID string
	// TeamID targets a team instead of an agent.
	TeamID string
	UserID string
}

// Handlers receive the outcome of a run. Exactly one of OnError or
// OnComplete is called, after every OnChunk. Nil handlers are skipped.
type Handlers struct {
	OnChunk    func(agui.Event)
	OnError    func(error)
	OnComplete func()
}

// ErrNoTarget is returned when a request names neither an agent nor a team.
var ErrNoTarget = errors.New("an agent or team id is required")

// SendMessage posts a run and streams its events to h. It returns once the
// stream has ended; cancelling ctx ends the stream and counts as completion.
func (c *Client) SendMessage(ctx context.Context, req SendRequest, h Handlers) {
	ctx, span := c.tracer.Start(ctx, "agentos.send_message", trace.WithAttributes(
		attribute.String("agent.id", req.AgentID),
		attribute.String("team.id", req.TeamID),
	))
	defer span.End()

	var finished bool
	fail := func(err error) {
		if finished {
			return
		}
		finished = true
		span.RecordError(err)
		span.SetStatus(codes.Error, "run failed")
		if h.OnError != nil {
			h.OnError(err)
		}
	}
	complete := func() {
		if finished {
			return
		}
		finished = true
		span.SetStatus(codes.Ok, "run completed")
		if h.OnComplete != nil {
			h.OnComplete()
		}
	}

	id, team := req.AgentID, false
	if req.TeamID != "" {
		id, team = req.TeamID, true
	}
	if id == "" {
		fail(ErrNoTarget)
		return
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID = c.LastThreadID()
	}

	history := req.History
	if history == nil && threadID != "" {
		history = c.History(threadID)
	}

	env := agui.BuildRequest(agui.RequestParams{
		Message:       req.Message,
		ThreadID:      threadID,
		PriorMessages: history,
		State:         req.State,
		AgentID:       id,
		UserID:        req.UserID,
		Tools:         req.Tools,
		Context:       req.Context,
	})
	span.SetAttributes(
		attribute.String("thread.id", env.ThreadID),
		attribute.String("run.id", env.RunID),
	)

	body, err := json.Marshal(env)
	if err != nil {
		fail(fmt.Errorf("marshaling run request: %w", err))
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL(c.runPath(id, team), nil), bytes.NewReader(body))
	if err != nil {
		fail(fmt.Errorf("creating request: %w", err))
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")
	c.setAuthHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		fail(fmt.Errorf("performing request: %w", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fail(responseError(resp))
		return
	}

	run := &runState{client: c, threadID: env.ThreadID, handler: h.OnChunk}
	c.appendHistory(env.ThreadID, chat.NewUserMessage(req.Message))
	c.setLastThread(env.ThreadID)

	var scanner agui.Scanner
	buf := make([]byte, readChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			run.dispatch(scanner.Feed(buf[:n]))
		}
		if readErr == nil {
			continue
		}

		run.dispatch(scanner.Flush())
		span.SetAttributes(attribute.Int("events", run.events))

		if isStreamEnd(ctx, readErr) {
			slog.Debug("Run stream ended", "thread_id", run.threadID, "events", run.events)
			complete()
		} else {
			fail(fmt.Errorf("reading run stream: %w", readErr))
		}
		return
	}
}

// isStreamEnd reports read errors that mean the stream is over rather than
// broken.
func isStreamEnd(ctx context.Context, err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, http.ErrBodyReadAfterClose) ||
		errors.Is(err, context.Canceled) ||
		ctx.Err() != nil
}

// runState tracks one streaming run.
type runState struct {
	client   *Client
	threadID string
	handler  func(agui.Event)
	events   int
}

func (r *runState) dispatch(objects []map[string]any) {
	for _, obj := range objects {
		ev, ok := agui.Parse(obj)
		if !ok {
			slog.Debug("Skipping stream object without event name")
			continue
		}
		r.events++
		r.observe(ev)

		if r.handler != nil {
			r.handler(ev)
		}
	}
}

// observe keeps the client's thread memory and rolling history in step with
// the run.
func (r *runState) observe(ev agui.Event) {
	resp := ev.Response()

	switch ev.(type) {
	case *agui.RunStartedEvent:
		if sid := resp.SessionID; sid != "" && sid != r.threadID {
			r.client.moveHistory(r.threadID, sid)
			r.threadID = sid
			r.client.setLastThread(sid)
		}
	case *agui.RunCompletedEvent:
		content, ok := resp.ContentString()
		if !ok {
			content, ok = resp.ContentJSON()
		}
		if !ok {
			return
		}
		r.client.appendHistory(r.threadID, chat.Message{
			Role:      chat.MessageRoleAgent,
			Content:   content,
			ToolCalls: resp.ToolCalls(),
			CreatedAt: time.Now().Unix(),
		})
	}
}
