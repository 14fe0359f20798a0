package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/agent-racer/streamtext/internal/logging"
	"github.com/agent-racer/streamtext/internal/metrics"
	"github.com/agent-racer/streamtext/internal/mock"
	"github.com/agent-racer/streamtext/internal/stream"
	"github.com/agent-racer/streamtext/internal/ws"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the stream server",
	Long: `Starts the HTTP and WebSocket server. Streams are produced by the mock
generator; POST /api/streams launches a new one and --mock seeds a demo set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.Server.Port = port
		}
		seed, _ := cmd.Flags().GetBool("mock")

		logger, err := logging.New(cfg.Log)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		m := metrics.New()
		store := stream.NewStore()
		broadcaster := ws.NewBroadcaster(store, cfg.Broadcast, logger, m)
		defer broadcaster.Stop()

		server := ws.NewServer(cfg.Server, store, broadcaster, logger, m)

		gen := mock.NewGenerator(store, broadcaster, cfg.Mock, logger, m)
		gen.Start(ctx)
		server.SetLauncher(gen)
		if seed {
			logger.Info("seeding demo streams")
			if err := gen.Seed(); err != nil {
				return err
			}
		}

		mux := http.NewServeMux()
		server.SetupRoutes(mux)

		err = ws.ListenAndServe(ctx, cfg.Server.Host, cfg.Server.Port, mux, logger)
		stop()
		gen.Wait()
		if err != nil {
			logger.Error("server stopped", zap.Error(err))
			return err
		}
		logger.Info("server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("mock", false, "Seed the demo streams on startup")
	serveCmd.Flags().IntP("port", "p", 0, "Override server port")
}
