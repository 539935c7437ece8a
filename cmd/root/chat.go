package root

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/docker/agentos-client/pkg/cli"
	"github.com/docker/agentos-client/pkg/stream"
)

type chatFlags struct {
	agentID       string
	teamID        string
	userID        string
	sessionID     string
	state         string
	outputJSON    bool
	hideToolCalls bool
}

func newChatCmd(root *rootFlags) *cobra.Command {
	var flags chatFlags

	cmd := &cobra.Command{
		Use:   "chat [message|-]",
		Short: "Chat with an agent or a team",
		Long: `Chat with an agent or a team of an AgentOS server.

Without a message, an interactive chat starts. With a message, or when stdin
is not a terminal, the message is sent once and the answer is printed.`,
		Example: `  agentos chat
  agentos chat --agent math-agent "What is 2+2?"
  agentos chat --team research --session 6f1c... "Go on"
  echo "Summarize this" | agentos chat --json`,
		GroupID: "core",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.runChatCommand(cmd, root, args)
		},
	}

	cmd.Flags().StringVar(&flags.agentID, "agent", "", "Agent to chat with")
	cmd.Flags().StringVar(&flags.teamID, "team", "", "Team to chat with (wins over --agent)")
	cmd.Flags().StringVar(&flags.userID, "user", "", "User id sent with every run")
	cmd.Flags().StringVar(&flags.sessionID, "session", "", "Continue an existing session")
	cmd.Flags().StringVar(&flags.state, "state", "", "Session state sent with every run, as a JSON object")
	cmd.Flags().BoolVar(&flags.outputJSON, "json", false, "Print the stream events as JSON lines")
	cmd.Flags().BoolVar(&flags.hideToolCalls, "hide-tool-calls", false, "Don't print tool calls")

	return cmd
}

func (f *chatFlags) runChatCommand(cmd *cobra.Command, root *rootFlags, args []string) error {
	ctx := cmd.Context()
	out := cli.NewPrinter(cmd.OutOrStdout())

	var state map[string]any
	if f.state != "" {
		if err := json.Unmarshal([]byte(f.state), &state); err != nil {
			return fmt.Errorf("invalid --state: %w", err)
		}
	}

	client, profile, err := root.newClient()
	if err != nil {
		return err
	}

	target := stream.Target{
		TeamID:  f.teamID,
		AgentID: f.agentID,
		UserID:  cmp.Or(f.userID, profile.UserID),
	}
	if target.TeamID == "" && target.AgentID == "" {
		target.TeamID = profile.DefaultTeam
		target.AgentID = profile.DefaultAgent
	}
	if target.TeamID == "" && target.AgentID == "" {
		agents, err := client.GetAgents(ctx)
		if err != nil {
			return fmt.Errorf("listing agents: %w", err)
		}
		if len(agents) == 0 {
			return errors.New("the server has no agents, use --agent or --team")
		}
		target.AgentID = agents[0].Identifier()
	}

	var message string
	if len(args) > 0 {
		message = args[0]
	} else if !isTerminal(cmd) {
		message = "-"
	}

	return cli.Run(ctx, out, cli.Config{
		AppName:       AppName,
		TargetName:    cmp.Or(target.TeamID, target.AgentID),
		Target:        target,
		State:         state,
		SessionID:     strings.TrimSpace(f.sessionID),
		HideToolCalls: f.hideToolCalls,
		OutputJSON:    f.outputJSON,
	}, client, cmd.InOrStdin(), message)
}

// isTerminal reports whether the command reads from an interactive terminal.
func isTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok {
		// Readers set by tests or callers are read line by line.
		return true
	}
	return term.IsTerminal(int(f.Fd()))
}
