package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/potooio/sentinel/internal/api"
	"github.com/potooio/sentinel/internal/config"
	"github.com/potooio/sentinel/internal/pipeline"
	"github.com/potooio/sentinel/internal/stream"
)

func runCmd(root *rootOptions) *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Consume the live event stream and detect in real time",
		Long: `Connect to the store's event stream server and process envelopes as
they arrive. Global rules run on a wall-clock timer. The JSON API serves
the live dashboard snapshot unless disabled.

Examples:
  # Default stream at localhost:8765, API on :8080
  sentinel run

  # Another stream server, no API
  sentinel run --stream-address 10.0.0.5:8765 --no-api`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root, v)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runLive(ctx, cfg, logger)
		},
	}

	flags := cmd.Flags()
	flags.String("stream-address", "", "Event stream server host:port")
	flags.String("api-addr", "", "Listen address for the JSON API")
	flags.Bool("no-api", false, "Do not serve the JSON API")
	flags.Duration("global-interval", 0, "How often store-wide rules run")
	flags.String("events-path", "", "JSONL file the numbered events are written to")
	bindFlags(v, cmd, map[string]string{
		"stream.address":            "stream-address",
		"api.addr":                  "api-addr",
		"detection.global_interval": "global-interval",
		"data.events_path":          "events-path",
	})
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		if noAPI, _ := cmd.Flags().GetBool("no-api"); noAPI {
			v.Set("api.enabled", false)
		}
	}
	return cmd
}

func runLive(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting sentinel",
		zap.String("version", version),
		zap.String("stream_address", cfg.Stream.Address),
		zap.Bool("api_enabled", cfg.API.Enabled),
		zap.Duration("global_interval", cfg.Detection.GlobalInterval))

	sys, err := pipeline.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		if err := sys.Close(); err != nil {
			logger.Error("Failed to close pipeline", zap.Error(err))
		}
	}()
	sys.Start(ctx)

	client, err := stream.NewClient(ctx, stream.ClientOptions{
		Address:              cfg.Stream.Address,
		ReconnectInterval:    cfg.Stream.ReconnectInterval,
		MaxReconnectInterval: cfg.Stream.MaxReconnectInterval,
		BufferSize:           cfg.Stream.BufferSize,
		Logger:               logger,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	apiErr := make(chan error, 1)
	if cfg.API.Enabled {
		srv := newAPIServer(cfg, sys, logger)
		go func() { apiErr <- srv.Start(ctx) }()
	}

	liveErr := make(chan error, 1)
	go func() { liveErr <- sys.RunLive(ctx, client.Envelopes()) }()

	select {
	case err := <-apiErr:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	case err := <-liveErr:
		if errors.Is(err, context.Canceled) {
			logger.Info("Shutting down", zap.Any("stats", sys.Stats()))
			return nil
		}
		return err
	}
}

func newAPIServer(cfg *config.Config, sys *pipeline.System, logger *zap.Logger) *api.Server {
	return api.NewServer(api.ServerOptions{
		Addr: cfg.API.Addr,
		Handlers: api.HandlersOptions{
			Stations: sys.Store(),
			Events:   sys.Events(),
			Stats:    sys.Stats,
		},
		Logger: logger,
	})
}

// bindFlags maps config keys to flags so a set flag overrides file and env.
func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for key, name := range keys {
		if f := cmd.Flags().Lookup(name); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}
