package main

import (
	"fmt"

	"github.com/agent-racer/streamtext/internal/app"
	"github.com/agent-racer/streamtext/internal/client"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Follow a stream server in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if url, _ := cmd.Flags().GetString("url"); url != "" {
			cfg.Viewer.URL = url
		}
		if token, _ := cmd.Flags().GetString("token"); token != "" {
			cfg.Viewer.Token = token
		}

		// The terminal belongs to the UI, so logs go to a file.
		logger := viewerLogger(cmd, cfg.Log, cfg.Viewer.LogFile)
		defer func() { _ = logger.Sync() }()

		base, err := client.BaseURLFromWS(cfg.Viewer.URL)
		if err != nil {
			return err
		}
		ws := client.NewWSClient(cfg.Viewer.URL, cfg.Viewer.Token, logger)
		httpClient := client.NewHTTPClient(base, cfg.Viewer.Token)

		m := app.New(ws, httpClient, app.Options{
			Reveal:   cfg.Viewer.RevealOptions(),
			Grace:    cfg.Viewer.Grace,
			Markdown: cfg.Viewer.Markdown,
			Logger:   logger,
		})
		p := tea.NewProgram(m, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			logger.Error("viewer exited", zap.Error(err))
			return fmt.Errorf("run viewer: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(viewCmd)
	viewCmd.Flags().String("url", "", "WebSocket URL of the stream server (overrides viewer.url)")
	viewCmd.Flags().String("token", "", "Auth token, if the server requires one")
}
