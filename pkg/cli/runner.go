package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/docker/agentos-client/pkg/agui"
	"github.com/docker/agentos-client/pkg/chatstore"
	"github.com/docker/agentos-client/pkg/input"
	"github.com/docker/agentos-client/pkg/stream"
)

// RuntimeError wraps run failures that were already shown to the user, to
// distinguish them from usage errors
type RuntimeError struct {
	Err error
}

func (e RuntimeError) Error() string {
	return e.Err.Error()
}

func (e RuntimeError) Unwrap() error {
	return e.Err
}

// Client is what a chat needs from the AgentOS client.
type Client interface {
	stream.Sender
	// ResetThread forgets the remembered thread so the next run starts a
	// new session.
	ResetThread()
}

// Config holds configuration for running a chat in the terminal
type Config struct {
	AppName string
	// TargetName is shown in the banner and answer headers.
	TargetName    string
	Target        stream.Target
	State         map[string]any
	SessionID     string
	HideToolCalls bool
	OutputJSON    bool
}

type chatSession struct {
	out      *Printer
	cfg      Config
	client   Client
	store    *chatstore.Memory
	handler  *stream.Handler
	renderer *streamRenderer
	jsonErr  error
}

// Run chats with an agent or team. With a message it runs once ("-" reads
// the message from in); without one it starts an interactive loop reading
// from in.
func Run(ctx context.Context, out *Printer, cfg Config, client Client, in io.Reader, message string) error {
	c := &chatSession{
		out:    out,
		cfg:    cfg,
		client: client,
		store:  chatstore.NewMemory(),
	}
	if cfg.SessionID != "" {
		c.store.SetSessionID(cfg.SessionID)
	}

	opts := []stream.HandlerOption{stream.WithObserver(c.observe)}
	if cfg.State != nil {
		opts = append(opts, stream.WithState(cfg.State))
	}
	c.handler = stream.NewHandler(c.store, client, cfg.Target, opts...)

	if message != "" {
		if message == "-" {
			buf, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("failed to read from stdin: %w", err)
			}
			message = string(buf)
		}
		return c.send(ctx, message)
	}

	return c.loop(ctx, in)
}

func (c *chatSession) observe(ev agui.Event) {
	if c.cfg.OutputJSON {
		buf, err := marshalEvent(ev)
		if err != nil {
			c.jsonErr = err
			return
		}
		c.out.Println(string(buf))
		return
	}

	if last, ok := c.store.LastMessage(); ok {
		c.renderer.render(last)
	}
}

// send runs one message. Errors are printed and returned wrapped in a
// RuntimeError.
func (c *chatSession) send(ctx context.Context, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil
	}

	c.jsonErr = nil
	c.renderer = newStreamRenderer(c.out, c.cfg.HideToolCalls)
	if !c.cfg.OutputJSON {
		c.out.PrintAgentName(c.cfg.TargetName)
	}

	err := c.handler.Send(ctx, message)
	if !c.cfg.OutputJSON {
		c.out.Println()
	}

	switch {
	case err == nil:
		return c.jsonErr
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		// Ctrl+C is not a failure.
		return nil
	default:
		if !c.cfg.OutputJSON {
			c.out.PrintError(err)
		}
		return RuntimeError{Err: err}
	}
}

func (c *chatSession) loop(ctx context.Context, in io.Reader) error {
	c.out.PrintWelcomeMessage(c.cfg.AppName, c.cfg.TargetName)

	lines := input.NewLineReader(in)
	for {
		c.out.Print("> ")

		line, err := lines.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				c.out.Println()
				return nil
			}
			return err
		}

		text := strings.TrimSpace(line)
		if strings.HasPrefix(text, "/") {
			if done := c.command(text); done {
				return nil
			}
			continue
		}

		// Failures are printed and the conversation goes on.
		var runtimeErr RuntimeError
		if err := c.send(ctx, text); err != nil && !errors.As(err, &runtimeErr) {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		c.out.Println()
	}
}

// command handles the built-in chat commands. It reports whether the chat
// should end.
func (c *chatSession) command(text string) bool {
	switch strings.Fields(text)[0] {
	case "/exit", "/quit":
		return true
	case "/new":
		c.store.Reset()
		c.client.ResetThread()
		c.out.Println("Started a new conversation.")
	case "/sessions":
		sessions := c.store.Sessions()
		if len(sessions) == 0 {
			c.out.Println("No sessions yet.")
			break
		}
		current := c.store.SessionID()
		for _, s := range sessions {
			marker := " "
			if s.SessionID == current {
				marker = "*"
			}
			c.out.Printf("%s %s  %s  %s\n", marker, s.SessionID, formatTime(s.CreatedAt), s.SessionName)
		}
	case "/history":
		msgs := c.store.Messages()
		if len(msgs) == 0 {
			c.out.Println("No messages yet.")
			break
		}
		for _, m := range msgs {
			content := m.Content
			if m.StreamingError {
				content += " " + c.out.red("(failed)")
			}
			c.out.Printf("%s %s\n", c.out.bold("%s:", m.Role), content)
		}
	case "/help":
		c.out.Println("Commands:")
		c.out.Println("  /new       start a new conversation")
		c.out.Println("  /sessions  list the sessions of this chat")
		c.out.Println("  /history   show the conversation so far")
		c.out.Println("  /exit      leave the chat")
	default:
		c.out.Printf("Unknown command %s, type /help for the list of commands.\n", text)
	}
	return false
}
