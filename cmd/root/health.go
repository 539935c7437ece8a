package root

import (
	"github.com/spf13/cobra"

	"github.com/docker/agentos-client/pkg/cli"
)

func newHealthCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "health",
		Short:   "Check that the server is up",
		GroupID: "server",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, profile, err := root.newClient()
			if err != nil {
				return err
			}

			health, err := client.Health(cmd.Context())
			if err != nil {
				return err
			}

			out := cli.NewPrinter(cmd.OutOrStdout())
			out.Printf("%s: %s\n", profile.Connection().URL, health.Status)
			if health.ConnectedServers > 0 {
				out.Printf("Connected MCP servers: %d\n", health.ConnectedServers)
			}
			return nil
		},
	}
}
