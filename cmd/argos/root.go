// Package argos wires the pipeline jobs into a command-line interface.
package argos

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/argos-kg/argos/pkg/config"
	"github.com/argos-kg/argos/pkg/graph"
	"github.com/argos-kg/argos/pkg/logger"
	"github.com/argos-kg/argos/pkg/metrics"
)

var rootCmd = &cobra.Command{
	Use:   "argos",
	Short: "Knowledge-graph construction pipeline",
	Long: `Argos builds and maintains a property graph of articles, chunks,
persons, concepts and places, enriched against external knowledge bases.

Each subcommand runs one pipeline job: ingesting chunked articles,
importing a gazetteer, linking place mentions, rebuilding the concept
layer, enriching from Wikidata, or pruning extracted persons.

Configuration comes from environment variables (a .env file is honored),
with credentials like NEO4J_PASSWORD never read from flags.`,
	SilenceUsage: true,
}

var (
	logLevelFlag    string
	metricsAddrFlag string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&metricsAddrFlag, "metrics-addr", "", "Expose Prometheus metrics on this address while the job runs (e.g. :9090)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setup loads configuration, builds the logger and connects the graph
// store. Every subcommand that touches the graph starts here.
func setup(ctx context.Context) (*config.Config, *slog.Logger, graph.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevelFlag != "" {
		cfg.Log.Level = logLevelFlag
	}

	log := logger.NewDefaultLogger(parseLevel(cfg.Log.Level))

	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}

	store, err := graph.NewNeo4jStore(cfg.Database.URI, cfg.Database.Username, cfg.Database.Password, cfg.Database.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create graph store: %w", err)
	}
	if err := store.VerifyConnectivity(ctx); err != nil {
		store.Close(ctx)
		return nil, nil, nil, fmt.Errorf("graph store unreachable at %s: %w", cfg.Database.URI, err)
	}

	return cfg, log, store, nil
}

// newCollector builds the job's metrics collector. With --metrics-addr the
// registry is scraped over HTTP for the lifetime of the process; jobs are
// short-lived, so the listener is never torn down explicitly.
func newCollector(log *slog.Logger) *metrics.PrometheusCollector {
	collector := metrics.NewCollector()
	if metricsAddrFlag != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(metricsAddrFlag, mux); err != nil {
				log.Warn("metrics endpoint failed", "addr", metricsAddrFlag, "error", err)
			}
		}()
		log.Info("serving metrics", "addr", metricsAddrFlag)
	}
	return collector
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
