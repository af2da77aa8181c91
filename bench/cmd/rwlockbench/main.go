package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/rogov-ks/rwlock/bench"
	"github.com/rogov-ks/rwlock/locklog"
	"github.com/rogov-ks/rwlock/lockmetrics"
	"github.com/rogov-ks/rwlock/rwlock"
)

type options struct {
	configPath  string
	impl        string
	readers     int
	writers     int
	ops         int
	metricsAddr string
	logLevel    string
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "rwlockbench",
		Short:         "Run a reader/writer workload against a lock implementation",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd, opts, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "path to a .yaml workload config")
	flags.StringVar(&opts.impl, "impl", bench.ImplMonitor, "lock implementation: monitor, channel or stdlib")
	flags.IntVar(&opts.readers, "readers", 0, "number of reader goroutines")
	flags.IntVar(&opts.writers, "writers", 0, "number of writer goroutines")
	flags.IntVar(&opts.ops, "ops", 0, "operations per participant")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics on this address after the run")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level")
	return cmd
}

// config loads the workload file and applies explicitly set flags on top.
func (o options) config(flags *pflag.FlagSet) (bench.Config, error) {
	cfg := bench.DefaultConfig()
	if o.configPath != "" {
		loaded, err := bench.LoadConfig(o.configPath)
		if err != nil {
			return bench.Config{}, err
		}
		cfg = *loaded
	}

	if flags.Changed("impl") {
		cfg.Impl = o.impl
	}
	if flags.Changed("readers") {
		cfg.Readers = o.readers
	}
	if flags.Changed("writers") {
		cfg.Writers = o.writers
	}
	if flags.Changed("ops") {
		cfg.OpsPerReader = o.ops
		cfg.OpsPerWriter = o.ops
	}
	return cfg, cfg.Validate()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}

func newMetricsRouter(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return r
}

// newObservedLocker builds the configured lock with metrics in reg and
// slow-acquisition logging attached.
func newObservedLocker(reg prometheus.Registerer, logger *zap.Logger, cfg bench.Config) (bench.Locker, func() error, error) {
	metrics, err := lockmetrics.New(reg, cfg.Impl)
	if err != nil {
		return nil, nil, err
	}
	observer := rwlock.MultiObserver(metrics, locklog.New(logger, cfg.SlowThreshold))
	return bench.NewLocker(cfg.Impl, observer)
}

func run(cmd *cobra.Command, opts options, cfg bench.Config) error {
	logger, err := newLogger(opts.logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("failed to generate run id: %w", err)
	}
	logger = logger.With(zap.String("run_id", id.String()), zap.String("impl", cfg.Impl))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	locker, closeLock, err := newObservedLocker(reg, logger, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting run",
		zap.Int("readers", cfg.Readers),
		zap.Int("writers", cfg.Writers),
		zap.Int("ops_per_reader", cfg.OpsPerReader),
		zap.Int("ops_per_writer", cfg.OpsPerWriter),
	)
	res, err := bench.Runner{}.Run(ctx, cfg, locker)
	if cerr := closeLock(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		logger.Error("run failed", zap.Error(err))
		return err
	}

	logger.Info("run finished",
		zap.Int64("reads", res.Reads),
		zap.Int64("writes", res.Writes),
		zap.Duration("elapsed", res.Elapsed),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "%s\treads=%d\twrites=%d\telapsed=%s\n", cfg.Impl, res.Reads, res.Writes, res.Elapsed)

	if opts.metricsAddr == "" {
		return nil
	}
	return serveMetrics(ctx, logger, opts.metricsAddr, reg)
}

func serveMetrics(ctx context.Context, logger *zap.Logger, addr string, reg *prometheus.Registry) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      newMetricsRouter(reg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down metrics server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
