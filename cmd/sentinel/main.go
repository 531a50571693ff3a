// sentinel detects shrinkage and checkout issues from retail store sensor
// streams.
//
// Usage:
//
//	sentinel replay --dir data/input
//	sentinel run --stream-address localhost:8765
//	sentinel status --server http://localhost:8080
//	sentinel version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/potooio/sentinel/internal/config"
)

var version = "dev"

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath string
	envFiles   []string
	dev        bool
	logLevel   string
	outputFmt  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "sentinel",
		Short: "Retail checkout loss and operations detector",
		Long: `sentinel correlates point-of-sale, RFID, queue camera, product
recognition and inventory feeds per checkout station and reports
suspected shrinkage and operational problems as numbered events.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")
	flags.StringSliceVar(&opts.envFiles, "env-file", nil, "Env files to load before reading config (default ./.env if present)")
	flags.BoolVar(&opts.dev, "dev", false, "Human-readable development logging")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVarP(&opts.outputFmt, "output", "o", "table", "Output format: table, json, yaml")

	rootCmd.AddCommand(runCmd(opts))
	rootCmd.AddCommand(replayCmd(opts))
	rootCmd.AddCommand(statusCmd(opts))
	rootCmd.AddCommand(versionCmd(opts))
	return rootCmd
}

// loadConfig reads env files, the config file and the environment into v,
// with flags already bound to v taking precedence.
func loadConfig(opts *rootOptions, v *viper.Viper) (*config.Config, error) {
	if err := config.LoadDotEnv(opts.envFiles...); err != nil {
		return nil, err
	}
	cfg, err := config.LoadWith(v, opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.dev {
		cfg.Log.Development = true
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger: JSON with ISO8601 times in
// production, console output in development.
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	logConfig := zap.NewProductionConfig()
	if cfg.Development {
		logConfig = zap.NewDevelopmentConfig()
	}
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		logConfig.Level = zap.NewAtomicLevelAt(level)
	}
	return logConfig.Build()
}
