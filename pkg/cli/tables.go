package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-runewidth"

	"github.com/docker/agentos-client/pkg/api"
	"github.com/docker/agentos-client/pkg/mcpcheck"
	"github.com/docker/agentos-client/pkg/mcpconfig"
	"github.com/docker/agentos-client/pkg/userconfig"
)

const maxCellWidth = 60

func (p *Printer) newTable(headers ...string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetStyle(table.StyleRounded)

	row := make(table.Row, len(headers))
	for i, h := range headers {
		row[i] = p.colorize(text.FgHiCyan, h)
	}
	t.AppendHeader(row)
	return t
}

func (p *Printer) colorize(c text.Color, s string) string {
	if !p.color {
		return s
	}
	return c.Sprint(s)
}

func (p *Printer) printEmpty(message string) {
	p.Println(p.colorize(text.FgYellow, message))
}

// truncate collapses whitespace and cuts s to maxCellWidth terminal columns.
func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if runewidth.StringWidth(s) <= maxCellWidth {
		return s
	}
	return runewidth.Truncate(s, maxCellWidth, "...")
}

func modelName(m *api.ModelInfo) string {
	if m == nil {
		return ""
	}
	name := m.Model
	if name == "" {
		name = m.Name
	}
	if m.Provider != "" && name != "" {
		return m.Provider + "/" + name
	}
	return name
}

func formatTime(unix int64) string {
	if unix <= 0 {
		return ""
	}
	return time.Unix(unix, 0).Local().Format("2006-01-02 15:04")
}

func (p *Printer) PrintAgents(agents []api.Agent) {
	if len(agents) == 0 {
		p.printEmpty("No agents found")
		return
	}

	t := p.newTable("ID", "NAME", "MODEL", "DESCRIPTION")
	for i := range agents {
		a := &agents[i]
		t.AppendRow(table.Row{a.Identifier(), a.Name, modelName(a.Model), truncate(a.Description)})
	}
	t.Render()
}

func (p *Printer) PrintTeams(teams []api.Team) {
	if len(teams) == 0 {
		p.printEmpty("No teams found")
		return
	}

	t := p.newTable("ID", "NAME", "MODE", "MODEL", "DESCRIPTION")
	for i := range teams {
		tm := &teams[i]
		t.AppendRow(table.Row{tm.Identifier(), tm.Name, tm.Mode, modelName(tm.Model), truncate(tm.Description)})
	}
	t.Render()
}

func (p *Printer) PrintSessions(sessions []api.SessionSummary) {
	if len(sessions) == 0 {
		p.printEmpty("No sessions found")
		return
	}

	t := p.newTable("SESSION", "NAME", "AGENT", "CREATED")
	for _, s := range sessions {
		t.AppendRow(table.Row{s.SessionID, truncate(s.SessionName), s.AgentID, formatTime(s.CreatedAt)})
	}
	t.Render()
}

// PrintRuns prints the stored exchanges of a session as a transcript.
func (p *Printer) PrintRuns(runs []api.SessionRun) {
	if len(runs) == 0 {
		p.printEmpty("No runs found")
		return
	}

	for i := range runs {
		for _, m := range runs[i].Messages() {
			if m.Content == "" {
				continue
			}
			p.Printf("%s %s\n", p.bold("%s:", m.Role), m.Content)
		}
		p.Println()
	}
}

func (p *Printer) PrintServers(servers []mcpconfig.ServerConfig) {
	if len(servers) == 0 {
		p.printEmpty("No MCP servers configured")
		return
	}

	t := p.newTable("ID", "NAME", "TRANSPORT", "ENDPOINT", "ENABLED")
	for i := range servers {
		s := &servers[i]
		endpoint := s.URL
		if s.Transport == mcpconfig.TransportStdio {
			endpoint = strings.Join(append([]string{s.Command}, s.Args...), " ")
		}

		enabled := p.colorize(text.FgGreen, "yes")
		if !s.IsEnabled() {
			enabled = p.colorize(text.FgHiBlack, "no")
		}
		t.AppendRow(table.Row{s.ID, s.Name, string(s.Transport), truncate(endpoint), enabled})
	}
	t.Render()
}

func (p *Printer) PrintCheckResults(results []mcpcheck.Result) {
	if len(results) == 0 {
		p.printEmpty("No MCP servers to test")
		return
	}

	t := p.newTable("SERVER", "STATUS", "TOOLS", "TIME")
	for i := range results {
		r := &results[i]
		var status, tools, elapsed string
		switch {
		case r.Skipped:
			status = p.colorize(text.FgHiBlack, "disabled")
		case r.Err != nil:
			status = p.colorize(text.FgRed, "failed: "+truncate(r.Err.Error()))
			elapsed = r.Duration.Round(time.Millisecond).String()
		default:
			status = p.colorize(text.FgGreen, "connected")
			names := make([]string, len(r.Tools))
			for j, tool := range r.Tools {
				names[j] = tool.Name
			}
			tools = fmt.Sprintf("%d (%s)", len(r.Tools), truncate(strings.Join(names, ", ")))
			elapsed = r.Duration.Round(time.Millisecond).String()
		}
		t.AppendRow(table.Row{r.ServerID, status, tools, elapsed})
	}
	t.Render()
}

func (p *Printer) PrintModel(m *mcpconfig.ModelConfig) {
	t := p.newTable("SETTING", "VALUE")
	t.AppendRow(table.Row{"provider", m.Provider})
	t.AppendRow(table.Row{"model_id", m.ModelID})
	t.AppendRow(table.Row{"temperature", m.Temperature})
	if m.APIKeyEnv != nil {
		t.AppendRow(table.Row{"api_key_env", *m.APIKeyEnv})
	}
	if m.BaseURL != nil {
		t.AppendRow(table.Row{"base_url", *m.BaseURL})
	}
	if m.MaxTokens != nil {
		t.AppendRow(table.Row{"max_tokens", *m.MaxTokens})
	}
	t.Render()
}

func (p *Printer) PrintProfiles(cfg *userconfig.Config) {
	names := cfg.ProfileNames()
	if len(names) == 0 {
		p.printEmpty("No profiles configured, using " + userconfig.DefaultBaseURL)
		return
	}

	current := cfg.Current()
	t := p.newTable("", "PROFILE", "BASE URL", "AGENT", "TEAM", "AUTH")
	for _, name := range names {
		prof, _ := cfg.GetProfile(name)
		marker := ""
		if name == current {
			marker = "*"
		}
		auth := ""
		switch {
		case prof.AuthToken != "":
			auth = "token"
		case prof.AuthTokenEnv != "":
			auth = "$" + prof.AuthTokenEnv
		}
		t.AppendRow(table.Row{marker, name, prof.BaseURL, prof.DefaultAgent, prof.DefaultTeam, auth})
	}
	t.Render()
}
