package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"aigateway/config"
	"aigateway/internal/logging"
	"aigateway/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "aigateway",
	Short:         "AI gateway for a local Ollama server and Google Gemini",
	Version:       version.Info(),
	SilenceUsage:  true,
	SilenceErrors: true,
	// Running the bare binary starts the server.
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	config.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(serveCmd, versionCmd)
	rootCmd.AddCommand(newChatCmd(), newAnalyzeImageCmd(), newEstimateAgeCmd())
}

// loadConfig loads configuration, honoring cmd's config flags, and installs
// the configured slog handler writing to logOut.
func loadConfig(cmd *cobra.Command, logOut io.Writer) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logging.Setup(cfg.Logging.Format, cfg.Logging.Level, logOut); err != nil {
		return nil, err
	}
	slog.Debug("configuration loaded", "port", cfg.Server.Port, "storage_type", cfg.Storage.Type)
	return cfg, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Info())
	},
}
