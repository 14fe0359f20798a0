package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/agent-racer/streamtext/internal/app"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var pipeCmd = &cobra.Command{
	Use:   "pipe [file]",
	Short: "Reveal text from a file or stdin as it arrives",
	Long: `Reads text from the named file, or from stdin when no file is given,
and reveals it with the same pacing the viewer uses for remote streams.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := viewerLogger(cmd, cfg.Log, cfg.Viewer.LogFile)
		defer func() { _ = logger.Sync() }()

		var (
			r     io.Reader = os.Stdin
			title           = "stdin"
			opts            = []tea.ProgramOption{tea.WithAltScreen()}
		)
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r, title = f, filepath.Base(args[0])
		} else {
			// stdin carries the text, so keys come from the terminal.
			opts = append(opts, tea.WithInputTTY())
		}

		m := app.NewPipe(r, title, app.Options{
			Reveal:   cfg.Viewer.RevealOptions(),
			Grace:    cfg.Viewer.Grace,
			Markdown: cfg.Viewer.Markdown,
			Logger:   logger,
		})
		final, err := tea.NewProgram(m, opts...).Run()
		if err != nil {
			return fmt.Errorf("run pipe: %w", err)
		}
		if pm, ok := final.(app.PipeModel); ok && pm.Err() != nil {
			return pm.Err()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pipeCmd)
}
