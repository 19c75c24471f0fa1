package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/alert"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/api"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/chain/ratelimit"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/circuitbreaker"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/config"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/history"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/metadata"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/metrics"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/store/postgres"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/tracing"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName     = "yoroi-tx-history"
	shutdownTimeout = 5 * time.Second
	alertTimeout    = 10 * time.Second
)

type dbStatsProvider interface {
	Stats() sql.DBStats
}

type dbPoolStatsGauges struct {
	open         prometheus.Gauge
	inUse        prometheus.Gauge
	idle         prometheus.Gauge
	waitCount    prometheus.Gauge
	waitDuration prometheus.Gauge
}

func collectDBPoolStats(db dbStatsProvider, gauges dbPoolStatsGauges) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("db pool stats collection panicked: %v", r)
		}
	}()
	if db == nil {
		return fmt.Errorf("db stats provider is nil")
	}

	stats := db.Stats()
	gauges.open.Set(float64(stats.OpenConnections))
	gauges.inUse.Set(float64(stats.InUse))
	gauges.idle.Set(float64(stats.Idle))
	gauges.waitCount.Set(float64(stats.WaitCount))
	gauges.waitDuration.Set(stats.WaitDuration.Seconds())
	return nil
}

func startDBPoolStatsPump(ctx context.Context, db dbStatsProvider, intervalMS int, logger *slog.Logger) {
	if db == nil || intervalMS <= 0 {
		return
	}

	gauges := dbPoolStatsGauges{
		open:         metrics.DBPoolOpen,
		inUse:        metrics.DBPoolInUse,
		idle:         metrics.DBPoolIdle,
		waitCount:    metrics.DBPoolWaitCount,
		waitDuration: metrics.DBPoolWaitDurationSeconds,
	}

	ticker := time.NewTicker(time.Duration(intervalMS) * time.Millisecond)

	go func() {
		defer ticker.Stop()

		if err := collectDBPoolStats(db, gauges); err != nil {
			logger.Warn("failed to collect initial db pool stats", "error", err)
		}

		for {
			select {
			case <-ctx.Done():
				logger.Info("db pool stats sampler stopped", "cause", "context_done")
				return
			case <-ticker.C:
				if err := collectDBPoolStats(db, gauges); err != nil {
					logger.Warn("failed to collect db pool stats", "error", err)
				}
			}
		}
	}()
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// breakerAlertHook turns breaker transitions into upstream alerts. It runs
// under the breaker's lock, so delivery happens on its own goroutine.
func breakerAlertHook(service string, alerter alert.Alerter, logger *slog.Logger) func(from, to circuitbreaker.State) {
	return func(from, to circuitbreaker.State) {
		logger.Warn("circuit breaker state changed", "service", service, "from", from.String(), "to", to.String())

		var a alert.Alert
		switch to {
		case circuitbreaker.StateOpen:
			a = alert.Alert{
				Type:    alert.AlertTypeUpstreamDown,
				Title:   "circuit breaker opened",
				Message: "block lookups fail fast until the upstream recovers",
			}
		case circuitbreaker.StateClosed:
			a = alert.Alert{
				Type:    alert.AlertTypeUpstreamRecovered,
				Title:   "circuit breaker closed",
				Message: "block lookups are being served again",
			}
		default:
			return
		}
		a.Service = service
		a.Fields = map[string]string{"from": from.String(), "to": to.String()}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
			defer cancel()
			if err := alerter.Send(ctx, a); err != nil {
				logger.Warn("failed to deliver alert", "type", a.Type, "error", err)
			}
		}()
	}
}

// newMetadataClient wires the outbound limiter and breaker around the
// GraphQL client.
func newMetadataClient(cfg config.GraphQLConfig, alerter alert.Alerter, logger *slog.Logger) *metadata.Client {
	client := metadata.NewClient(cfg.URL, cfg.Timeout, logger)
	if cfg.RPS > 0 {
		client.SetRateLimiter(ratelimit.NewLimiter(cfg.RPS, cfg.Burst, "graphql"))
	}
	client.SetCircuitBreaker(circuitbreaker.New(circuitbreaker.Config{
		Name:             "graphql",
		FailureThreshold: cfg.BreakerFailures,
		OpenTimeout:      cfg.BreakerOpenTimeout,
		OnStateChange:    breakerAlertHook("graphql", alerter, logger),
	}))
	return client
}

// newAPIHandler returns the public handler and a cleanup func for the
// rate limiter's background sweep.
func newAPIHandler(cfg *config.Config, asker api.HistoryAsker, lookups metadata.Lookups, logger *slog.Logger) (http.Handler, func()) {
	srv := api.NewServer(asker, lookups, logger,
		api.WithAddressRequestLimit(cfg.History.AddressRequestLimit),
		api.WithResponseLimit(cfg.History.ResponseLimit),
	)

	var rl *api.RateLimitMiddleware
	stop := func() {}
	if cfg.Server.RateLimitRPS > 0 {
		rl = api.NewRateLimitMiddleware(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, logger)
		stop = rl.Stop
	}
	return api.Chain(srv.Handler(), logger, rl), stop
}

func healthHandler(logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func runHTTPServer(ctx context.Context, name string, port int, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("server shutdown error", "server", name, "error", err)
		}
	}()

	logger.Info("server started", "server", name, "port", port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}

// runMigrations uses its own short-lived connection because the serving
// pool is opened read-only.
func runMigrations(ctx context.Context, cfg config.DBConfig, logger *slog.Logger) error {
	db, err := postgres.New(postgres.Config{
		URL:                cfg.URL,
		MaxOpenConns:       1,
		MaxIdleConns:       1,
		StatementTimeoutMS: cfg.StatementTimeoutMS,
	})
	if err != nil {
		return fmt.Errorf("connect for migrations: %w", err)
	}
	defer db.Close()
	return db.RunMigrations(ctx, cfg.MigrationsDir, logger)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}))
	slog.SetDefault(logger)

	logger.Info("starting "+serviceName,
		"graphql_url", cfg.GraphQL.URL,
		"api_port", cfg.Server.APIPort,
		"health_port", cfg.Server.HealthPort,
		"address_request_limit", cfg.History.AddressRequestLimit,
		"response_limit", cfg.History.ResponseLimit,
	)

	tracingEndpoint := ""
	if cfg.Tracing.Enabled {
		tracingEndpoint = cfg.Tracing.Endpoint
	}
	shutdownTracing, err := tracing.Init(context.Background(), serviceName, tracingEndpoint, cfg.Tracing.Insecure, cfg.Tracing.SampleRatio)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()
	if cfg.Tracing.Enabled {
		logger.Info("tracing enabled", "endpoint", cfg.Tracing.Endpoint)
	}

	if cfg.DB.MigrationsDir != "" {
		if err := runMigrations(context.Background(), cfg.DB, logger); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
	}

	db, err := postgres.New(postgres.Config{
		URL:                cfg.DB.URL,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetime:    cfg.DB.ConnMaxLifetime,
		StatementTimeoutMS: cfg.DB.StatementTimeoutMS,
		ReadOnly:           true,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	svc := history.NewService(postgres.NewHistoryRepo(db), logger)
	alerter := alert.FromConfig(cfg.Alert.SlackWebhookURL, cfg.Alert.WebhookURL, cfg.Alert.Cooldown, logger)
	lookups := newMetadataClient(cfg.GraphQL, alerter, logger)
	apiHandler, stopRateLimiter := newAPIHandler(cfg, svc, lookups, logger)
	defer stopRateLimiter()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runHTTPServer(gCtx, "health", cfg.Server.HealthPort, healthHandler(logger), logger)
	})
	g.Go(func() error {
		return runHTTPServer(gCtx, "api", cfg.Server.APIPort, apiHandler, logger)
	})

	startDBPoolStatsPump(gCtx, db.DB, cfg.DB.PoolStatsIntervalMS, logger)

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error(serviceName+" exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info(serviceName + " shut down gracefully")
}
