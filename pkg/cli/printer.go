package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/docker/agentos-client/pkg/chat"
)

type Printer struct {
	out   io.Writer
	color bool
	bold  func(format string, a ...any) string
	faint func(format string, a ...any) string
	red   func(format string, a ...any) string
}

// NewPrinter returns a printer writing to out. Colors are only used when out
// is a terminal.
func NewPrinter(out io.Writer) *Printer {
	return newPrinter(out, isTerminal(out))
}

func newPrinter(out io.Writer, useColor bool) *Printer {
	styled := func(attrs ...color.Attribute) func(string, ...any) string {
		c := color.New(attrs...)
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.SprintfFunc()
	}

	return &Printer{
		out:   out,
		color: useColor,
		bold:  styled(color.Bold),
		faint: styled(color.Faint),
		red:   styled(color.FgRed),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *Printer) Println(a ...any) {
	fmt.Fprintln(p.out, a...)
}

func (p *Printer) Print(a ...any) {
	fmt.Fprint(p.out, a...)
}

func (p *Printer) Printf(format string, a ...any) {
	fmt.Fprintf(p.out, format, a...)
}

// PrintWelcomeMessage prints the banner of an interactive chat
func (p *Printer) PrintWelcomeMessage(appName, target string) {
	p.Printf("\n------- Welcome to %s! -------\nChatting with %s. Type /help for commands, Ctrl+C to exit.\n\n", p.bold("%s", appName), p.bold("%s", target))
}

func (p *Printer) PrintError(err error) {
	p.Printf("%s %s\n", p.red("✗"), err)
}

// PrintAgentName prints the header shown before an agent's answer
func (p *Printer) PrintAgentName(agentName string) {
	p.Printf("\n--- Agent: %s ---\n", p.bold("%s", agentName))
}

func (p *Printer) PrintToolCall(tc chat.ToolCall) {
	p.Printf("\nCalling %s%s\n", p.bold("%s", tc.ToolName), p.formatToolCallArguments(tc.Arguments()))
}

func (p *Printer) PrintToolCallResponse(tc chat.ToolCall) {
	var response string
	if tc.Content != nil {
		response = *tc.Content
	}
	label := "response"
	if tc.ToolCallError {
		label = p.red("failed")
	}
	p.Printf("\n%s %s%s\n", p.bold("%s", tc.ToolName), label, p.formatToolCallResponse(response))
}

func (p *Printer) PrintReasoningStep(step chat.ReasoningStep) {
	title := step.Title
	if title == "" {
		title = step.Action
	}
	p.Printf("\n%s\n", p.faint("💭 %s", title))
}

func (p *Printer) formatToolCallArguments(arguments string) string {
	if arguments == "" {
		return "()"
	}

	kv := orderedmap.New[string, any]()
	if err := json.Unmarshal([]byte(arguments), &kv); err == nil {
		if kv.Len() == 0 {
			return "()"
		}

		var (
			parts     []string
			multiline bool
		)
		for key, value := range kv.FromOldest() {
			formatted := p.formatJSONValue(key, value)
			parts = append(parts, formatted)
			multiline = multiline || strings.Contains(formatted, "\n")
		}
		return joinParts(parts, multiline)
	}

	var parsed any
	if err := json.Unmarshal([]byte(arguments), &parsed); err == nil {
		formatted, _ := json.MarshalIndent(parsed, "", "  ")
		return fmt.Sprintf("(%s)", formatted)
	}

	return fmt.Sprintf("(%s)", arguments)
}

func joinParts(parts []string, multiline bool) string {
	if len(parts) == 1 && !multiline {
		return fmt.Sprintf("(%s)", parts[0])
	}
	return fmt.Sprintf("(\n  %s\n)", strings.Join(parts, "\n  "))
}

func (p *Printer) formatToolCallResponse(response string) string {
	if response == "" {
		return " → ()"
	}

	kv := orderedmap.New[string, any]()
	if err := json.Unmarshal([]byte(response), &kv); err == nil {
		if kv.Len() == 0 {
			return " → ()"
		}
		var (
			parts     []string
			multiline bool
		)
		for key, value := range kv.FromOldest() {
			formatted := p.formatJSONValue(key, value)
			parts = append(parts, formatted)
			multiline = multiline || strings.Contains(formatted, "\n")
		}
		return " → " + joinParts(parts, multiline)
	}

	var parsed any
	if err := json.Unmarshal([]byte(response), &parsed); err == nil {
		formatted, _ := json.MarshalIndent(parsed, "", "  ")
		return fmt.Sprintf(" → (%s)", formatted)
	}

	lines := strings.Split(strings.TrimSpace(response), "\n")
	if len(lines) <= 3 {
		return fmt.Sprintf(" → %q", response)
	}

	// Long text keeps its line breaks, with runs of blank lines collapsed.
	var (
		formatted []string
		lastEmpty bool
	)
	for _, line := range lines {
		empty := strings.TrimSpace(line) == ""
		if empty && lastEmpty {
			continue
		}
		if empty {
			line = ""
		}
		formatted = append(formatted, line)
		lastEmpty = empty
	}
	return fmt.Sprintf(" → (\n%s\n)", strings.Join(formatted, "\n"))
}

func (p *Printer) formatJSONValue(key string, value any) string {
	name := p.bold("%s", key)

	switch v := value.(type) {
	case string:
		return fmt.Sprintf("%s: %q", name, v)
	case []any:
		if len(v) <= 1 {
			buf, _ := json.Marshal(v)
			return fmt.Sprintf("%s: %s", name, buf)
		}
		buf, _ := json.MarshalIndent(v, "", "  ")
		return fmt.Sprintf("%s: %s", name, buf)
	case map[string]any, *orderedmap.OrderedMap[string, any]:
		buf, _ := json.MarshalIndent(v, "", "  ")
		return fmt.Sprintf("%s: %s", name, buf)
	default:
		buf, _ := json.Marshal(v)
		return fmt.Sprintf("%s: %s", name, buf)
	}
}
