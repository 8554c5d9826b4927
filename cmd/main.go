package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ochronus/goneocities/internal/app"
	"github.com/ochronus/goneocities/internal/config"
	"github.com/ochronus/goneocities/internal/http"
	"github.com/ochronus/goneocities/internal/services/neocities"
	"github.com/ochronus/goneocities/internal/utils"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var configPath string

func main() {
	// Get default config path
	defaultConfigPath, err := config.DefaultConfigPath()
	if err != nil {
		defaultConfigPath = "./config.toml"
	}

	rootCmd := &cobra.Command{
		Use:           "goneocities",
		Short:         "Neocities site client",
		Long:          "Client for the Neocities static hosting API. Pushes a local directory to a site, uploading only the files whose content changed.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to config file")

	rootCmd.AddCommand(
		newInfoCmd(),
		newListCmd(),
		newUploadCmd(),
		newDeleteCmd(),
		newKeyCmd(),
		newDiffCmd(),
		newPushCmd(),
		newGenerateConfigCmd(),
		newMockServerCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadContainer loads and validates the config and builds shared dependencies
func loadContainer(opts ...app.Option) (*app.Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	container, err := app.NewContainer(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build container: %w", err)
	}
	return container, nil
}

func newGenerateConfigCmd() *cobra.Command {
	var username, password, baseURL string

	cmd := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate config with a fresh API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || password == "" {
				return fmt.Errorf("--username and --password are required")
			}
			client := neocities.NewClient(username, password, neocities.WithBaseURL(baseURL))
			return utils.GenerateConfig(client, configPath, username, baseURL)
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Neocities username")
	cmd.Flags().StringVarP(&password, "password", "p", os.Getenv("NEOCITIES_PASSWORD"), "Neocities password (default $NEOCITIES_PASSWORD)")
	cmd.Flags().StringVar(&baseURL, "base-url", neocities.DefaultBaseURL, "API base URL")
	return cmd
}

func newMockServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mock-server",
		Short: "Run a local stand-in for the Neocities API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			container, err := loadContainer()
			if err != nil {
				return err
			}

			container.Logger.Infof("Starting goneocities mock server, version %s", version)
			server := http.NewServer(container)
			return server.StartWithContext(ctx)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "goneocities version %s\n", version)
		},
	}
}
