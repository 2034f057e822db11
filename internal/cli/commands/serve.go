package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/conduit-lang/graphql-lsp/internal/cli/config"
	"github.com/conduit-lang/graphql-lsp/internal/lsp"
	"github.com/conduit-lang/graphql-lsp/internal/telemetry"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"lsp"},
		Short:   "Start the Language Server Protocol server",
		Long: `Start the GraphQL Language Server Protocol (LSP) server.

The server provides:
  • Diagnostics (syntax errors and schema validation)
  • Completion with documentation on resolve
  • Go-to-definition for fragments and named types

The server communicates via JSON-RPC over stdin/stdout and logs to stderr.
It is typically started automatically by your editor/IDE. The project
configuration (.graphqlrc.yml) is read from the workspace root the editor
sends on initialize.`,
		RunE: runServe,
	}

	cmd.Flags().String("log-level", "", "Log level: debug, info, warn or error (default from log.level)")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics and health on this address, e.g. localhost:9464")
	cmd.Flags().Bool("pprof", false, "Also serve pprof profiles on the metrics address")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	levelFlag, _ := cmd.Flags().GetString("log-level")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	profiling, _ := cmd.Flags().GetBool("pprof")

	level, err := serveLogLevel(levelFlag)
	if err != nil {
		return err
	}
	logger, err := newLogger(level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	server := lsp.NewServer(lsp.Options{
		Logger:      logger,
		LoadProject: config.LoadProject,
		Registerer:  registry,
		Version:     Version,
	})

	// Handle signals for graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		metrics, err := telemetry.New(telemetry.Config{
			Address:   metricsAddr,
			Gatherer:  registry,
			Profiling: profiling,
			Logger:    logger.Named("telemetry"),
			Health: func() telemetry.Health {
				return telemetry.Health{
					Session:       server.SessionID(),
					OpenDocuments: server.OpenDocuments(),
				}
			},
		})
		if err != nil {
			return err
		}
		if err := metrics.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metrics.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Telemetry shutdown failed", zap.Error(err))
			}
		}()
	}

	return server.Run(ctx)
}

// serveLogLevel picks the flag level, falling back to the configuration of
// the project around the working directory.
func serveLogLevel(flag string) (zapcore.Level, error) {
	if flag != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(flag)); err != nil {
			return level, fmt.Errorf("invalid --log-level %q: %w", flag, err)
		}
		return level, nil
	}

	root, err := config.FindRoot(".")
	if err != nil {
		root = "."
	}
	cfg, err := config.Load(root)
	if err != nil {
		return zapcore.InfoLevel, nil
	}
	return cfg.LogLevel(), nil
}

// newLogger builds a development-style logger that writes to stderr, since
// stdout carries the protocol.
func newLogger(level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Development = false
	return cfg.Build()
}
