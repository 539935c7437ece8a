package root

import (
	"cmp"

	"github.com/spf13/cobra"

	"github.com/docker/agentos-client/pkg/api"
	"github.com/docker/agentos-client/pkg/cli"
)

type sessionsFlags struct {
	userID  string
	agentID string
	limit   int
	before  string
}

func newSessionsCmd(root *rootFlags) *cobra.Command {
	var flags sessionsFlags

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Browse and delete stored sessions",
		Example: `  agentos sessions list --agent math-agent
  agentos sessions runs 6f1c...
  agentos sessions delete 6f1c...`,
		GroupID: "server",
	}

	cmd.PersistentFlags().StringVar(&flags.userID, "user", "", "Only sessions of this user")

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sessions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, profile, err := root.newClient()
			if err != nil {
				return err
			}

			agentID := cmp.Or(flags.agentID, profile.DefaultAgent)
			sessions, err := client.GetSessions(cmd.Context(), cmp.Or(flags.userID, profile.UserID), agentID)
			if err != nil {
				return err
			}

			cli.NewPrinter(cmd.OutOrStdout()).PrintSessions(sessions)
			return nil
		},
	}
	list.Flags().StringVar(&flags.agentID, "agent", "", "Only sessions of this agent")

	runs := &cobra.Command{
		Use:   "runs <session-id>",
		Short: "Show the conversation of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, profile, err := root.newClient()
			if err != nil {
				return err
			}

			sessionRuns, err := client.GetSessionRuns(cmd.Context(), args[0], cmp.Or(flags.userID, profile.UserID))
			if err != nil {
				return err
			}

			page, meta, err := api.Paginate(sessionRuns, api.PaginationParams{Limit: flags.limit, Before: flags.before})
			if err != nil {
				return err
			}

			out := cli.NewPrinter(cmd.OutOrStdout())
			out.PrintRuns(page)
			if meta.PrevCursor != "" {
				out.Printf("Showing %d of %d runs. Older runs: %s sessions runs %s --before %s\n", meta.Limit, meta.Total, AppName, args[0], meta.PrevCursor)
			}
			return nil
		},
	}
	runs.Flags().IntVar(&flags.limit, "limit", 10, "Number of runs to show")
	runs.Flags().StringVar(&flags.before, "before", "", "Show the runs before this cursor")

	remove := &cobra.Command{
		Use:     "delete <session-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a session",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, profile, err := root.newClient()
			if err != nil {
				return err
			}

			if err := client.DeleteSession(cmd.Context(), args[0], cmp.Or(flags.userID, profile.UserID)); err != nil {
				return err
			}

			cli.NewPrinter(cmd.OutOrStdout()).Printf("Session %s deleted\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, runs, remove)
	return cmd
}
