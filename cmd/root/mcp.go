package root

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/docker/go-units"
	"github.com/goccy/go-yaml"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/docker/agentos-client/pkg/cli"
	"github.com/docker/agentos-client/pkg/mcpcheck"
	"github.com/docker/agentos-client/pkg/mcpconfig"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Manage the MCP servers of the backend",
		Long:  "Add, edit and test the MCP servers the AgentOS backend connects to. They are stored in mcp_servers.json in the config directory.",
		Example: `  # Add a stdio server
  agentos mcp add fs --command npx --arg -y --arg @modelcontextprotocol/server-filesystem --arg /tmp

  # Add a remote server, the key is read from the environment when the file is loaded
  agentos mcp add search --transport streamable-http --url https://example.com/mcp --header 'Authorization=Bearer ${SEARCH_KEY}'

  # Check that every enabled server answers
  agentos mcp test`,
		GroupID: "config",
	}

	cmd.AddCommand(newMCPListCmd())
	cmd.AddCommand(newMCPAddCmd())
	cmd.AddCommand(newMCPRemoveCmd())
	cmd.AddCommand(newMCPToggleCmd())
	cmd.AddCommand(newMCPShowCmd())
	cmd.AddCommand(newMCPExportCmd())
	cmd.AddCommand(newMCPImportCmd())
	cmd.AddCommand(newMCPTestCmd())

	return cmd
}

func newMCPListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the configured MCP servers",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := mcpconfig.NewManager("").Raw()
			if err != nil {
				return err
			}

			cli.NewPrinter(cmd.OutOrStdout()).PrintServers(cfg.Servers)
			return nil
		},
	}
}

type mcpAddFlags struct {
	name           string
	description    string
	transport      string
	command        string
	args           []string
	url            string
	headers        map[string]string
	env            map[string]string
	timeout        int
	sseReadTimeout int
	disabled       bool
}

func newMCPAddCmd() *cobra.Command {
	var flags mcpAddFlags

	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Add an MCP server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.runMCPAddCommand(cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&flags.name, "name", "", "Display name (default: the id)")
	cmd.Flags().StringVar(&flags.description, "description", "", "Description")
	cmd.Flags().StringVar(&flags.transport, "transport", string(mcpconfig.TransportStdio), "Transport: stdio, sse or streamable-http")
	cmd.Flags().StringVar(&flags.command, "command", "", "Command to run (stdio)")
	cmd.Flags().StringArrayVar(&flags.args, "arg", nil, "Command argument (stdio, repeatable)")
	cmd.Flags().StringVar(&flags.url, "url", "", "Server URL (sse, streamable-http)")
	cmd.Flags().StringToStringVar(&flags.headers, "header", nil, "HTTP header as key=value (repeatable)")
	cmd.Flags().StringToStringVar(&flags.env, "env", nil, "Environment variable as key=value (repeatable)")
	cmd.Flags().IntVar(&flags.timeout, "timeout", mcpconfig.DefaultTimeout, "Connection timeout in seconds")
	cmd.Flags().IntVar(&flags.sseReadTimeout, "sse-read-timeout", mcpconfig.DefaultSSEReadTimeout, "SSE read timeout in seconds")
	cmd.Flags().BoolVar(&flags.disabled, "disabled", false, "Add the server disabled")

	return cmd
}

func (f *mcpAddFlags) runMCPAddCommand(cmd *cobra.Command, id string) error {
	server := mcpconfig.ServerConfig{
		ID:             id,
		Name:           f.name,
		Description:    f.description,
		Transport:      mcpconfig.Transport(f.transport),
		Command:        f.command,
		Args:           f.args,
		URL:            f.url,
		Headers:        f.headers,
		Env:            f.env,
		Timeout:        &f.timeout,
		SSEReadTimeout: &f.sseReadTimeout,
	}
	if server.Name == "" {
		server.Name = id
	}
	server.SetEnabled(!f.disabled)

	if err := mcpconfig.NewManager("").AddServer(server); err != nil {
		return err
	}

	cli.NewPrinter(cmd.OutOrStdout()).Printf("MCP server '%s' added\n", id)
	return nil
}

func newMCPRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove an MCP server",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted, err := mcpconfig.NewManager("").DeleteServer(args[0])
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("%w: %s", mcpconfig.ErrServerNotFound, args[0])
			}

			cli.NewPrinter(cmd.OutOrStdout()).Printf("MCP server '%s' removed\n", args[0])
			return nil
		},
	}
}

func newMCPToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "toggle <id> [on|off]",
		Short:     "Enable or disable an MCP server",
		Long:      "Enable or disable an MCP server. Without on or off, the current state is flipped.",
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := mcpconfig.NewManager("")

			server, err := mgr.Server(args[0])
			if err != nil {
				return err
			}

			enabled := !server.IsEnabled()
			if len(args) == 2 {
				switch args[1] {
				case "on":
					enabled = true
				case "off":
					enabled = false
				default:
					return fmt.Errorf("invalid state %q, expected on or off", args[1])
				}
			}

			if _, err := mgr.ToggleServer(args[0], enabled); err != nil {
				return err
			}

			state := "disabled"
			if enabled {
				state = "enabled"
			}
			cli.NewPrinter(cmd.OutOrStdout()).Printf("MCP server '%s' %s\n", args[0], state)
			return nil
		},
	}
}

func newMCPShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show the configuration of an MCP server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Show what is stored, so ${VAR} references are not expanded
			// into secrets on screen.
			cfg, err := mcpconfig.NewManager("").Raw()
			if err != nil {
				return err
			}

			i := slices.IndexFunc(cfg.Servers, func(s mcpconfig.ServerConfig) bool { return s.ID == args[0] })
			if i < 0 {
				return fmt.Errorf("%w: %s", mcpconfig.ErrServerNotFound, args[0])
			}

			buf, err := yaml.Marshal(cfg.Servers[i])
			if err != nil {
				return err
			}

			cli.NewPrinter(cmd.OutOrStdout()).Print(string(buf))
			return nil
		},
	}
}

func newMCPExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export the MCP configuration as JSON",
		Long:  "Export the MCP configuration as JSON, to a file or to stdout.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := mcpconfig.NewManager("").Export()
			if err != nil {
				return err
			}

			out := cli.NewPrinter(cmd.OutOrStdout())
			if len(args) == 0 || args[0] == "-" {
				out.Println(data)
				return nil
			}

			if err := atomic.WriteFile(args[0], strings.NewReader(data+"\n")); err != nil {
				return fmt.Errorf("writing %s: %w", args[0], err)
			}
			out.Printf("MCP configuration exported to %s (%s)\n", args[0], units.HumanSize(float64(len(data))))
			return nil
		},
	}
}

func newMCPImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace the MCP configuration with a JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}

			if err := mcpconfig.NewManager("").Import(string(data)); err != nil {
				return err
			}

			cli.NewPrinter(cmd.OutOrStdout()).Println("MCP configuration imported")
			return nil
		},
	}
}

func newMCPTestCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "test [id...]",
		Short: "Connect to MCP servers and list their tools",
		Long:  "Connect to the given MCP servers, or to all of them, and list the tools each one offers. Disabled servers are skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := mcpconfig.NewManager("").Config()
			if err != nil {
				return err
			}

			servers := cfg.Servers
			if len(args) > 0 {
				servers = nil
				for _, id := range args {
					i := slices.IndexFunc(cfg.Servers, func(s mcpconfig.ServerConfig) bool { return s.ID == id })
					if i < 0 {
						return fmt.Errorf("%w: %s", mcpconfig.ErrServerNotFound, id)
					}
					servers = append(servers, cfg.Servers[i])
				}
			}

			results := mcpcheck.Check(cmd.Context(), servers, mcpcheck.Options{Concurrency: concurrency})
			cli.NewPrinter(cmd.OutOrStdout()).PrintCheckResults(results)

			failed := 0
			for i := range results {
				if results[i].Err != nil {
					failed++
				}
			}
			if failed > 0 {
				return cli.RuntimeError{Err: fmt.Errorf("%d MCP server(s) failed", failed)}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Number of servers tested at once")

	return cmd
}
