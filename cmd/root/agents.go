package root

import (
	"github.com/spf13/cobra"

	"github.com/docker/agentos-client/pkg/cli"
)

func newAgentsCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "agents",
		Short:   "List the agents of the server",
		GroupID: "server",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, _, err := root.newClient()
			if err != nil {
				return err
			}

			agents, err := client.GetAgents(cmd.Context())
			if err != nil {
				return err
			}

			cli.NewPrinter(cmd.OutOrStdout()).PrintAgents(agents)
			return nil
		},
	}
}

func newTeamsCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "teams",
		Short:   "List the teams of the server",
		GroupID: "server",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, _, err := root.newClient()
			if err != nil {
				return err
			}

			teams, err := client.GetTeams(cmd.Context())
			if err != nil {
				return err
			}

			cli.NewPrinter(cmd.OutOrStdout()).PrintTeams(teams)
			return nil
		},
	}
}
