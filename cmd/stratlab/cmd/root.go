package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/stratlab/config"
	"github.com/rustyeddy/stratlab/internal/logging"
	"github.com/rustyeddy/stratlab/telemetry"
)

var rootCmd = &cobra.Command{
	Use:   "stratlab",
	Short: "Backtest, optimize and stress-test trading strategies",
	Long: `Stratlab simulates trading strategies bar by bar over historical OHLCV data.

It provides tools for:
  - Backtesting with volatility-scaled stops and a trailing exit policy
  - Kelly, fixed-fraction and risk-based position sizing
  - Grid-search parameter optimization
  - Monte Carlo resampling and walk-forward validation
  - Journaling runs to SQLite, Postgres or CSV`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

var (
	cfgFile     string
	logLevel    string
	logFormat   string
	metricsFile string

	cfg      *config.Config
	logger   = zerolog.Nop()
	registry *prometheus.Registry
	recorder *telemetry.Metrics
)

// Execute runs the command tree. SIGINT and SIGTERM cancel the context so
// long sweeps return their partial results.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: auto|console|json")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
}

func setup(cmd *cobra.Command, args []string) error {
	cfg = config.Default()
	if cfgFile != "" {
		c, err := config.LoadFromFile(cfgFile)
		if err != nil {
			return err
		}
		cfg = c
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	l, err := logging.New(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	logger = l

	registry = prometheus.NewRegistry()
	recorder, err = telemetry.New(registry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if metricsFile == "" || registry == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(metricsFile, registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	logger.Debug().Str("path", metricsFile).Msg("metrics written")
	return nil
}
