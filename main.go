// codeclass encodes source files as typed hypergraphs and classifies them
// with a heterogeneous hypergraph attention network.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/codeclass/internal/config"
	"github.com/phobologic/codeclass/internal/corpus"
	"github.com/phobologic/codeclass/internal/encode"
	"github.com/phobologic/codeclass/internal/lang"
	"github.com/phobologic/codeclass/internal/metrics"
	"github.com/phobologic/codeclass/internal/store"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := rootCmd(&app{stdout: stdout, stderr: stderr})
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}

// app holds the state shared by every subcommand.
type app struct {
	stdout, stderr io.Writer

	configPath  string
	logLevel    string
	metricsPath string
	cachePath   string

	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func rootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codeclass",
		Short: "Classify source files with a hypergraph attention network",
		Long: `codeclass turns source files into typed directed hypergraphs (one
hyperedge per syntax-tree field) and classifies them with a heterogeneous
hypergraph attention network.

A labelled corpus is laid out as ROOT/<label>/<file>.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return a.setup() },
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.metrics.WriteTextfile(a.metricsPath)
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file path (YAML)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&a.metricsPath, "metrics-textfile", "", "write Prometheus metrics to this file on exit")
	cmd.PersistentFlags().StringVar(&a.cachePath, "cache", "", "SQLite cache of encoded graphs")

	cmd.AddCommand(
		encodeCmd(a),
		vocabCmd(a),
		modelCmd(a),
		predictCmd(a),
		initCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				_, err := fmt.Fprintf(a.stdout, "codeclass %s\n", version)
				return err
			},
		},
	)
	return cmd
}

// setup loads the configuration and builds the logger and metrics. Flags
// override the config file.
func (a *app) setup() error {
	level := slog.LevelWarn
	switch strings.ToLower(a.logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q", a.logLevel)
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	if a.cachePath == "" {
		a.cachePath = cfg.Cache.Path
	}
	if a.metricsPath == "" {
		a.metricsPath = cfg.Metrics.Textfile
	}
	a.metrics = metrics.New()
	return nil
}

// encoder returns a corpus encoder configured from the loaded config. The
// returned function closes the cache, if one was opened.
func (a *app) encoder(ctx context.Context) (*corpus.Encoder, func(), error) {
	e := &corpus.Encoder{
		Options: corpus.Options{
			MaxFileSize: a.cfg.Encode.MaxFileSize,
			Timeout:     a.cfg.Encode.Timeout,
			Workers:     a.cfg.Encode.Workers,
			Limits: encode.Options{
				MaxDepth: a.cfg.Encode.MaxDepth,
				MaxNodes: a.cfg.Encode.MaxNodes,
			},
		},
		Metrics: a.metrics,
		Logger:  a.logger,
	}
	if a.cachePath == "" {
		return e, func() {}, nil
	}

	cache, err := store.Open(ctx, a.cachePath)
	if err != nil {
		return nil, nil, err
	}
	e.Cache = cache
	return e, func() {
		if err := cache.Close(); err != nil {
			a.logger.Warn("closing cache", "error", err)
		}
	}, nil
}

// languages resolves a comma-separated --langs value, falling back to the
// config file.
func (a *app) languages(flag string) ([]string, error) {
	if flag == "" {
		return a.cfg.Encode.Languages, nil
	}
	var out []string
	for _, name := range strings.Split(flag, ",") {
		name = strings.TrimSpace(name)
		if _, ok := lang.Languages[name]; !ok {
			return nil, fmt.Errorf("unsupported language %q (supported: %s)", name, strings.Join(lang.Names(), ", "))
		}
		out = append(out, name)
	}
	return out, nil
}
