package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docker/agentos-client/pkg/cli"
	"github.com/docker/agentos-client/pkg/userconfig"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage connection profiles",
		Long:  "A profile holds the URL and credentials of an AgentOS server, plus the agent or team to chat with by default.",
		Example: `  agentos profile set prod --url https://agents.example.com --token-env PROD_TOKEN --agent support
  agentos profile use prod
  agentos profile list`,
		GroupID: "config",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List profiles",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := userconfig.Load()
			if err != nil {
				return err
			}

			cli.NewPrinter(cmd.OutOrStdout()).PrintProfiles(cfg)
			return nil
		},
	})
	cmd.AddCommand(newProfileSetCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "use <name>",
		Short: "Make a profile the current one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := userconfig.Load()
			if err != nil {
				return err
			}
			if err := cfg.Use(args[0]); err != nil {
				return err
			}
			if err := cfg.Save(); err != nil {
				return err
			}

			cli.NewPrinter(cmd.OutOrStdout()).Printf("Now using profile '%s'\n", args[0])
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a profile",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := userconfig.Load()
			if err != nil {
				return err
			}
			if !cfg.DeleteProfile(args[0]) {
				return fmt.Errorf("%w: %s", userconfig.ErrProfileNotFound, args[0])
			}
			if err := cfg.Save(); err != nil {
				return err
			}

			cli.NewPrinter(cmd.OutOrStdout()).Printf("Profile '%s' removed\n", args[0])
			return nil
		},
	})

	return cmd
}

type profileSetFlags struct {
	url      string
	token    string
	tokenEnv string
	headers  map[string]string
	agent    string
	team     string
	user     string
}

func newProfileSetCmd() *cobra.Command {
	var flags profileSetFlags

	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Create or update a profile",
		Long:  "Create or update a profile. When the profile exists, only the given settings are changed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.runProfileSetCommand(cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&flags.url, "url", "", "Server URL (default: "+userconfig.DefaultBaseURL+")")
	cmd.Flags().StringVar(&flags.token, "token", "", "Bearer token")
	cmd.Flags().StringVar(&flags.tokenEnv, "token-env", "", "Environment variable holding the bearer token")
	cmd.Flags().StringToStringVar(&flags.headers, "header", nil, "Extra HTTP header as key=value (repeatable)")
	cmd.Flags().StringVar(&flags.agent, "agent", "", "Default agent")
	cmd.Flags().StringVar(&flags.team, "team", "", "Default team")
	cmd.Flags().StringVar(&flags.user, "user", "", "User id sent with runs")

	return cmd
}

func (f *profileSetFlags) runProfileSetCommand(cmd *cobra.Command, name string) error {
	cfg, err := userconfig.Load()
	if err != nil {
		return err
	}

	profile, exists := cfg.GetProfile(name)
	if !exists {
		profile = &userconfig.Profile{BaseURL: userconfig.DefaultBaseURL}
	}

	changed := cmd.Flags().Changed
	if changed("url") {
		profile.BaseURL = f.url
	}
	if changed("token") {
		profile.AuthToken = f.token
	}
	if changed("token-env") {
		profile.AuthTokenEnv = f.tokenEnv
	}
	if changed("header") {
		profile.Headers = f.headers
	}
	if changed("agent") {
		profile.DefaultAgent = f.agent
	}
	if changed("team") {
		profile.DefaultTeam = f.team
	}
	if changed("user") {
		profile.UserID = f.user
	}

	if err := cfg.SetProfile(name, profile); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return err
	}

	verb := "created"
	if exists {
		verb = "updated"
	}
	cli.NewPrinter(cmd.OutOrStdout()).Printf("Profile '%s' %s\n", name, verb)
	return nil
}
