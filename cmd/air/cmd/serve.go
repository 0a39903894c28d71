package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/retrovue/air/internal/config"
	"github.com/retrovue/air/internal/httpapi"
	"github.com/retrovue/air/internal/model"
	"github.com/retrovue/air/internal/observability"
	"github.com/retrovue/air/internal/pipeline"
	"github.com/retrovue/air/internal/sink"
	"github.com/retrovue/air/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the air playout engine",
	Long: `Start the air playout engine and its admin HTTP surface.

This wires configuration into a Pipeline Manager instance and serves
GET /health and GET /metrics. Driving the pipeline itself (StartChannel,
SubmitBlock, attaching output sinks) happens through internal/control.Plane,
which is this process's embedding contract, not a network RPC surface this
command exposes.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Admin HTTP host to bind to")
	serveCmd.Flags().Int("port", 8080, "Admin HTTP port to listen on")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func runServe(_ *cobra.Command, _ []string) error {
	logger := slog.Default()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger = observability.NewLogger(cfg.Logging)
	slog.SetDefault(logger)

	format := model.ProgramFormat{
		Video: model.VideoFormat{
			Width:  cfg.Session.VideoWidth,
			Height: cfg.Session.VideoHeight,
			FPS:    model.Rational{Num: int64(cfg.Session.FPSNum), Den: int64(cfg.Session.FPSDen)},
		},
		Audio: model.AudioFormat{
			SampleRate:   cfg.Session.SampleRate,
			Channels:     cfg.Session.Channels,
			SampleFormat: model.SampleFormat(cfg.Session.SampleFormat),
		},
	}

	sinkOut := sink.NewFanOut()
	plane := pipeline.New(cfg, format, sinkOut, logger)

	adminCfg := httpapi.Config{
		Host:            viper.GetString("server.host"),
		Port:            viper.GetInt("server.port"),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	adminServer := httpapi.New(adminCfg, plane, version.Version, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		_ = plane.StopChannel()
		cancel()
	}()

	logger.Info("starting air playout engine",
		slog.String("admin_host", adminCfg.Host),
		slog.Int("admin_port", adminCfg.Port),
		slog.String("version", version.Version),
	)

	return adminServer.ListenAndServe(ctx)
}
