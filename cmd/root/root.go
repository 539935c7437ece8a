package root

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/docker/agentos-client/pkg/cli"
	"github.com/docker/agentos-client/pkg/logging"
	"github.com/docker/agentos-client/pkg/paths"
)

type rootFlags struct {
	enableOtel  bool
	debugMode   bool
	logFilePath string
	logFile     io.Closer

	profile   string
	baseURL   string
	configDir string
}

func NewRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   AppName,
		Short: "agentos - chat with AgentOS agents and teams",
		Long:  "agentos is a command-line client for AgentOS servers: it streams agent runs, browses sessions and manages MCP server configuration.",
		Example: `  agentos chat
  agentos chat --agent math-agent "What is 2+2?"
  agentos mcp list`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flags.configDir != "" {
				paths.SetConfigDir(flags.configDir)
			}

			// Initialize logging before anything else so logs don't end up in the chat
			if err := flags.setupLogging(); err != nil {
				// If logging setup fails, fall back to stderr so we still get logs
				slog.SetDefault(slog.New(logging.NewHandler(cmd.ErrOrStderr(), slog.LevelDebug)))
				slog.Warn("Failed to open log file", "error", err)
			}

			if flags.enableOtel {
				if err := initOTelSDK(cmd.Context()); err != nil {
					slog.Warn("Failed to initialize OpenTelemetry SDK", "error", err)
				} else {
					slog.Debug("OpenTelemetry SDK initialized successfully")
				}
			}

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if flags.logFile != nil {
				if err := flags.logFile.Close(); err != nil {
					slog.Error("Failed to close log file", "error", err)
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().BoolVarP(&flags.debugMode, "debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flags.enableOtel, "otel", "o", false, "Enable OpenTelemetry tracing")
	cmd.PersistentFlags().StringVar(&flags.logFilePath, "log-file", "", "Path to debug log file (default: ~/.agentos/agentos.debug.log; only used with --debug)")
	cmd.PersistentFlags().StringVar(&flags.profile, "profile", "", "Connection profile to use (default: the current profile)")
	cmd.PersistentFlags().StringVar(&flags.baseURL, "base-url", "", "AgentOS server URL, overrides the profile")
	cmd.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "Configuration directory (default: ~/.config/agentos)")

	cmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands:"})
	cmd.AddGroup(&cobra.Group{ID: "server", Title: "Server Commands:"})
	cmd.AddGroup(&cobra.Group{ID: "config", Title: "Configuration Commands:"})

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newChatCmd(&flags))
	cmd.AddCommand(newAgentsCmd(&flags))
	cmd.AddCommand(newTeamsCmd(&flags))
	cmd.AddCommand(newSessionsCmd(&flags))
	cmd.AddCommand(newHealthCmd(&flags))
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newModelCmd())
	cmd.AddCommand(newProfileCmd())

	return cmd
}

func Execute(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args ...string) error {
	rootCmd := NewRootCmd()
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetContext(ctx)

	// When no subcommand is given, default to "chat".
	rootCmd.SetArgs(defaultToChat(rootCmd, args))

	if err := rootCmd.Execute(); err != nil {
		return processErr(ctx, err, stderr, rootCmd)
	}
	return nil
}

// defaultToChat prepends "chat" to the argument list when no subcommand is
// specified so that bare "agentos" (or "agentos --debug", etc.) opens a
// chat. Help flags (--help / -h) are left alone.
func defaultToChat(rootCmd *cobra.Command, args []string) []string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			return append([]string{"chat"}, args...)
		case arg == "--help" || arg == "-h":
			return args
		case strings.HasPrefix(arg, "-"):
			if takesValue(rootCmd, arg) {
				i++
			}
			continue
		case isSubcommand(rootCmd, arg):
			return args
		default:
			return append([]string{"chat"}, args...)
		}
	}

	return append([]string{"chat"}, args...)
}

// takesValue reports whether arg is a persistent flag whose value is the
// next argument, as in "--profile prod".
func takesValue(cmd *cobra.Command, arg string) bool {
	if strings.Contains(arg, "=") {
		return false
	}
	var f *pflag.Flag
	if name, ok := strings.CutPrefix(arg, "--"); ok {
		f = cmd.PersistentFlags().Lookup(name)
	} else if len(arg) == 2 {
		f = cmd.PersistentFlags().ShorthandLookup(arg[1:])
	}
	return f != nil && f.NoOptDefVal == ""
}

// isSubcommand reports whether name matches a registered subcommand or alias.
func isSubcommand(cmd *cobra.Command, name string) bool {
	switch name {
	case "help", "completion", "__complete", "__completeNoDesc":
		return true
	}
	for _, sub := range cmd.Commands() {
		if sub.Name() == name || sub.HasAlias(name) {
			return true
		}
	}
	return false
}

func processErr(ctx context.Context, err error, stderr io.Writer, rootCmd *cobra.Command) error {
	if ctx.Err() != nil {
		return ctx.Err()
	} else if _, ok := errors.AsType[cli.RuntimeError](err); ok {
		// Runtime errors have already been printed by the command itself
		// Don't print them again or show usage
	} else {
		// Command line usage errors - show the error and usage
		fmt.Fprintln(stderr, err)
		fmt.Fprintln(stderr)
		if strings.HasPrefix(err.Error(), "unknown command ") || strings.HasPrefix(err.Error(), "accepts ") {
			_ = rootCmd.Usage()
		}
	}

	return err
}

// setupLogging configures slog logging behavior.
// When --debug is enabled, logs are written to a rotating file <dataDir>/agentos.debug.log,
// or to the file specified by --log-file.
func (f *rootFlags) setupLogging() error {
	if !f.debugMode {
		slog.SetDefault(slog.New(slog.DiscardHandler))
		return nil
	}

	path := cmp.Or(strings.TrimSpace(f.logFilePath), filepath.Join(paths.GetDataDir(), AppName+".debug.log"))

	logFile, err := logging.NewRotatingFile(path)
	if err != nil {
		return err
	}
	f.logFile = logFile

	slog.SetDefault(slog.New(logging.NewHandler(logFile, slog.LevelDebug)))
	slog.Debug("Debug logging enabled", "log_file", logFile.Path())

	return nil
}
