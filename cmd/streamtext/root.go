package main

import (
	"fmt"
	"os"

	"github.com/agent-racer/streamtext/internal/config"
	"github.com/agent-racer/streamtext/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "streamtext",
	Short: "Serve and follow streaming text generations",
	Long: `streamtext publishes streaming text generations over a WebSocket and
renders them in a terminal viewer that reveals text at a steady pace.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "config.yaml", "Path to config file (defaults apply when missing)")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// viewerLogger logs to path for commands whose terminal belongs to the UI.
// A log file that cannot be opened is reported once, before the UI starts,
// and logging is then disabled.
func viewerLogger(cmd *cobra.Command, cfg config.LogConfig, path string) *zap.Logger {
	logger, err := logging.New(cfg, path)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: logging disabled: %v\n", err)
	}
	return logger
}
