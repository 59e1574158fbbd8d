// Command aegis runs a standalone policy enforcement agent: it caches
// policies from local bundles (and, in embedding services, from the
// distribution channel), exposes enforcement metrics, and spools
// violation reports for the governance authority.
//
// Most deployments embed the enforce.Agent directly; this binary is
// the reference wiring.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meridian-hq/aegis/pkg/audit"
	"meridian-hq/aegis/pkg/config"
	"meridian-hq/aegis/pkg/distribution"
	"meridian-hq/aegis/pkg/enforce"
	"meridian-hq/aegis/pkg/policy/store"
	"meridian-hq/aegis/pkg/telemetry/health"
	"meridian-hq/aegis/pkg/telemetry/logging"
	"meridian-hq/aegis/pkg/telemetry/metrics"
)

func main() {
	configPath := flag.String("config", "aegis.yaml", "path to the agent configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "aegis: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.New(store.Config{TTL: cfg.Store.TTL.Std()})
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(metrics.Config{
		Enabled:   cfg.Metrics.Enabled,
		Namespace: cfg.Metrics.Namespace,
		Subsystem: cfg.Metrics.Subsystem,
	}, registry)

	// Violation reports go to the sqlite spool when configured, else to
	// the structured log; either way delivery is decoupled from the
	// evaluation hot path by the async reporter.
	checker := health.New(0)

	var sink audit.Reporter
	if cfg.Audit.SpoolPath != "" {
		spool, err := audit.NewSQLiteSpool(audit.SQLiteSpoolConfig{Path: cfg.Audit.SpoolPath})
		if err != nil {
			return err
		}
		defer spool.Close()
		sink = spool
		checker.Register("audit_spool", func(ctx context.Context) error {
			_, err := spool.Count(ctx)
			return err
		})
	} else {
		sink = audit.NewLogReporter(logger)
	}

	reporter := audit.NewAsyncReporter(sink, audit.AsyncConfig{
		Buffer: cfg.Audit.Buffer,
		OnDrop: collector.RecordReportDropped,
	}, logger)
	defer reporter.Close()

	agent, err := enforce.New(&enforce.Config{
		Service:           cfg.Service,
		StrictConstraints: cfg.Enforcement.StrictConstraints,
	}, st, reporter, collector, logger)
	if err != nil {
		return err
	}
	_ = agent // evaluated by the embedding service's guarded operations

	consumer, err := distribution.NewConsumer(cfg.Service, st, collector, logger)
	if err != nil {
		return err
	}

	if cfg.Bundle.Dir != "" {
		checker.Register("bundle_dir", func(ctx context.Context) error {
			_, err := os.Stat(cfg.Bundle.Dir)
			return err
		})
		watcher, err := distribution.NewBundleWatcher(distribution.BundleWatcherConfig{
			Dir: cfg.Bundle.Dir,
		}, consumer, logger)
		if err != nil {
			return err
		}
		if cfg.Bundle.Watch {
			go func() {
				if err := watcher.Watch(ctx); err != nil {
					logger.Error("bundle watcher stopped", "error", err)
				}
			}()
		} else if err := watcher.Load(); err != nil {
			return err
		}
	}

	sweeper := store.NewSweeper(st, cfg.Store.SweepSchedule, logger)
	if err := sweeper.Start(ctx); err != nil {
		return err
	}
	defer sweeper.Stop()

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		checker.Mount(mux)
		server := &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}

		go func() {
			<-ctx.Done()
			server.Shutdown(context.Background())
		}()
		go func() {
			logger.Info("metrics endpoint listening", "addr", cfg.Metrics.ListenAddr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	logger.Info("enforcement agent started",
		"service", cfg.Service,
		"ttl", cfg.Store.TTL.Std(),
		"strict_constraints", cfg.Enforcement.StrictConstraints,
	)

	<-ctx.Done()
	logger.Info("enforcement agent shutting down")
	return nil
}
