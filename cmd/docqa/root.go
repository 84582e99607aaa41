package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/docqa-client/internal/bootstrap"
	"github.com/kirillkom/docqa-client/internal/config"
	"github.com/kirillkom/docqa-client/internal/observability/logging"
)

type rootFlags struct {
	configFile    string
	baseURL       string
	logLevel      string
	pollInterval  time.Duration
	requireTarget bool
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:          "docqa",
		Short:        "Upload PDFs to a document QA backend and ask questions about them",
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "YAML config file (overrides DOCQA_CONFIG_FILE)")
	pf.StringVar(&flags.baseURL, "base-url", "", "backend base URL (overrides DOCQA_BASE_URL)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.DurationVar(&flags.pollInterval, "poll-interval", 0, "ingestion status poll interval")
	pf.BoolVar(&flags.requireTarget, "require-target", false, "wait for a reported chunk target before treating a document as ready")

	cmd.AddCommand(
		newUploadCommand(flags),
		newStatusCommand(flags),
		newAskCommand(flags),
		newChatCommand(flags),
		newWatchCommand(flags),
		newServeCommand(flags),
		newEventsCommand(flags),
	)
	return cmd
}

func (f *rootFlags) load(cmd *cobra.Command) (config.Config, error) {
	if f.configFile != "" {
		if err := os.Setenv("DOCQA_CONFIG_FILE", f.configFile); err != nil {
			return config.Config{}, fmt.Errorf("set config file: %w", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}

	pf := cmd.Flags()
	if pf.Changed("base-url") {
		cfg.BaseURL = f.baseURL
	}
	if pf.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if pf.Changed("poll-interval") {
		cfg.PollInterval = f.pollInterval
	}
	if pf.Changed("require-target") {
		cfg.RequireTargetCount = f.requireTarget
	}
	return cfg, nil
}

// app loads config, installs the JSON logger as default and wires the client.
func (f *rootFlags) app(cmd *cobra.Command) (*bootstrap.App, error) {
	cfg, err := f.load(cmd)
	if err != nil {
		return nil, err
	}
	logger := logging.NewJSONLogger("docqa", cfg.LogLevel)
	slog.SetDefault(logger)

	app, err := bootstrap.New(cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		return nil, err
	}
	return app, nil
}
