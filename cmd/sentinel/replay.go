package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/potooio/sentinel/internal/config"
	"github.com/potooio/sentinel/internal/pipeline"
	"github.com/potooio/sentinel/internal/stream"
)

func replayCmd(root *rootOptions) *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Process recorded dataset files in timestamp order",
		Long: `Read the five JSONL dataset files from a directory, merge them by
timestamp and run detection over them. Global rules run every
detection.global_interval of record time. Prints a summary when done.

Examples:
  # Replay data/input and print a table summary
  sentinel replay --dir data/input

  # JSON summary, events to a custom file
  sentinel replay --dir ./recordings --events-path /tmp/events.jsonl -o json`,
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

			res, err := runReplay(ctx, cfg, logger)
			if err != nil {
				return err
			}
			return outputResult(cmd.OutOrStdout(), res, root.outputFmt)
		},
	}

	flags := cmd.Flags()
	flags.String("dir", "", "Directory holding the dataset JSONL files")
	flags.String("events-path", "", "JSONL file the numbered events are written to")
	flags.Duration("global-interval", 0, "Record-time spacing of store-wide rule passes")
	flags.Bool("success-operations", true, "Log a Success Operation for every active POS transaction")
	bindFlags(v, cmd, map[string]string{
		"data.replay_dir":                   "dir",
		"data.events_path":                  "events-path",
		"detection.global_interval":         "global-interval",
		"detection.emit_success_operations": "success-operations",
	})
	return cmd
}

func runReplay(ctx context.Context, cfg *config.Config, logger *zap.Logger) (pipeline.ReplayResult, error) {
	envs, err := stream.LoadReplay(cfg.Data.ReplayDir, logger)
	if err != nil {
		return pipeline.ReplayResult{}, err
	}

	sys, err := pipeline.Build(ctx, cfg, logger)
	if err != nil {
		return pipeline.ReplayResult{}, err
	}
	ctx, cancel := context.WithCancel(ctx)
	sys.Start(ctx)

	res, runErr := sys.RunReplay(ctx, envs)
	cancel()
	if err := sys.Close(); err != nil {
		logger.Error("Failed to close pipeline", zap.Error(err))
	}
	return res, runErr
}
