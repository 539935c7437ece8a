package root

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/docker/agentos-client/pkg/cli"
	"github.com/docker/agentos-client/pkg/mcpconfig"
)

func newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Show or change the default model of the backend",
		Example: `  agentos model show
  agentos model set --provider anthropic --model claude-sonnet-4-5 --api-key-env ANTHROPIC_API_KEY`,
		GroupID: "config",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the default model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := mcpconfig.NewManager("").Raw()
			if err != nil {
				return err
			}

			cli.NewPrinter(cmd.OutOrStdout()).PrintModel(&cfg.DefaultModel)
			return nil
		},
	})
	cmd.AddCommand(newModelSetCmd())

	return cmd
}

type modelSetFlags struct {
	provider    string
	modelID     string
	apiKeyEnv   string
	baseURL     string
	temperature float64
	maxTokens   int
}

func newModelSetCmd() *cobra.Command {
	var flags modelSetFlags

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change the default model",
		Long:  "Change the default model. Only the given settings are changed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return flags.runModelSetCommand(cmd)
		},
	}

	cmd.Flags().StringVar(&flags.provider, "provider", "", "Model provider")
	cmd.Flags().StringVar(&flags.modelID, "model", "", "Model id")
	cmd.Flags().StringVar(&flags.apiKeyEnv, "api-key-env", "", "Environment variable holding the API key")
	cmd.Flags().StringVar(&flags.baseURL, "provider-url", "", "Base URL of the provider API")
	cmd.Flags().Float64Var(&flags.temperature, "temperature", 0, "Sampling temperature, between 0 and 2")
	cmd.Flags().IntVar(&flags.maxTokens, "max-tokens", 0, "Maximum number of output tokens")

	return cmd
}

func (f *modelSetFlags) runModelSetCommand(cmd *cobra.Command) error {
	changed := cmd.Flags().Changed

	var update mcpconfig.ModelUpdate
	if changed("provider") {
		update.Provider = &f.provider
	}
	if changed("model") {
		update.ModelID = &f.modelID
	}
	if changed("api-key-env") {
		update.APIKeyEnv = &f.apiKeyEnv
	}
	if changed("provider-url") {
		update.BaseURL = &f.baseURL
	}
	if changed("temperature") {
		update.Temperature = &f.temperature
	}
	if changed("max-tokens") {
		update.MaxTokens = &f.maxTokens
	}
	if update == (mcpconfig.ModelUpdate{}) {
		return errors.New("nothing to change, pass at least one flag")
	}

	model, err := mcpconfig.NewManager("").UpdateModel(update)
	if err != nil {
		return err
	}

	cli.NewPrinter(cmd.OutOrStdout()).PrintModel(&model)
	return nil
}
