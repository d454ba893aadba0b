package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/taskextract/internal/config"
	"github.com/fyrsmithlabs/taskextract/internal/embeddings"
	"github.com/fyrsmithlabs/taskextract/internal/logging"
	"github.com/fyrsmithlabs/taskextract/internal/secrets"
	"github.com/fyrsmithlabs/taskextract/internal/telemetry"
	"github.com/fyrsmithlabs/taskextract/pkg/extractor"
)

type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	pretty     bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "taskextract",
		Short: "Extract structured tasks from communication text",
		Long: `taskextract turns emails, chat messages and meeting transcripts into
structured task records with a title, assignee, due date hint, tags and a
confidence score.

Configuration is read from an optional YAML file (--config) and
TASKEXTRACT_* environment variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override log level (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "override log format (json, console)")
	root.PersistentFlags().BoolVar(&g.pretty, "pretty", false, "indent JSON output")

	root.AddCommand(
		newExtractCmd(g),
		newBatchCmd(g),
		newClassifyCmd(g),
		newEvalCmd(g),
		newStreamCmd(g),
		newVersionCmd(),
	)
	return root
}

// app holds everything a command needs. Close releases it in reverse
// order of construction.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	extractor *extractor.Extractor
}

func newApp(ctx context.Context, g *globalFlags) (*app, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		lvl, err := logging.LevelFromString(g.logLevel)
		if err != nil {
			return nil, err
		}
		cfg.Logging.Level = lvl
	}
	if g.logFormat != "" {
		cfg.Logging.Format = g.logFormat
	}
	// stdout carries command output.
	cfg.Logging.Output.Stdout = false
	cfg.Logging.Output.Stderr = true
	cfg.Telemetry.ServiceVersion = version

	tel, err := telemetry.New(ctx, &cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	var lp log.LoggerProvider
	if cfg.Logging.Output.OTEL {
		lp = tel.LoggerProvider()
	}
	logger, err := logging.NewLogger(&cfg.Logging, lp)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if derr := tel.Degraded(); derr != nil {
		logger.Warn(ctx, "telemetry degraded", zap.Error(derr))
	}

	scrubber, err := secrets.New(nil)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize secret scrubber: %w", err)
	}

	ex, err := extractor.New(ctx, cfg,
		extractor.WithLogger(logger),
		extractor.WithTracer(tel.Tracer("github.com/fyrsmithlabs/taskextract/pkg/extractor")),
		extractor.WithScrubber(scrubber),
		extractor.WithEmbeddingMetrics(embeddings.NewMetrics(logger.Underlying())),
	)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, telemetry: tel, extractor: ex}, nil
}

func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.extractor.Close(); err != nil {
		a.logger.Warn(ctx, "closing extractor", zap.Error(err))
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn(ctx, "shutting down telemetry", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// writeJSON writes v followed by a newline.
func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "taskextract by Fyrsmith Labs\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}
