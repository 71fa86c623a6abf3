package main

import (
	"context"
	"fmt"
	"os"

	app "github.com/okian/scout/internal/app"
	"github.com/okian/scout/internal/config"
	"github.com/okian/scout/pkg/logger"
	"github.com/spf13/cobra"
)

const appName = "scout"

type rootFlags struct {
	cfgFile string
	debug   bool
	json    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:          appName,
		Short:        "scout learns which job postings you like and ranks new ones for you",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.cfgFile, "config", "", "a YAML config file (default is $SCOUT_CONFIG)")
	root.PersistentFlags().BoolVarP(&flags.debug, "debug", "d", false, "verbose/debug output")
	root.PersistentFlags().BoolVarP(&flags.json, "json", "j", false, "json format for logging")

	root.AddCommand(
		newServeCmd(flags),
		newReviewCmd(flags, promptDecider),
		newImportCmd(flags),
		newStatsCmd(flags),
	)
	return root
}

// setup initializes logging and loads configuration (defaults -> file -> env).
func setup(ctx context.Context, cmd *cobra.Command, flags *rootFlags) (*config.Config, error) {
	if err := logger.Init(logger.WithWriter(cmd.ErrOrStderr()), logger.WithJSON(flags.json)); err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}

	cfg, err := config.Load(ctx, flags.cfgFile)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if flags.debug {
		level = "debug"
	}
	if err := logger.SetLevelString(level); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", level), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

// startOffline starts a service for one-shot commands: no scheduled discovery.
func startOffline(ctx context.Context, cfg *config.Config) (*app.Service, error) {
	offline := *cfg
	offline.AutoDiscovery = false
	svc := app.New(app.WithConfig(&offline), app.WithLogger(logger.Named("service")))
	if err := svc.Start(ctx); err != nil {
		return nil, fmt.Errorf("start service: %w", err)
	}
	return svc, nil
}
