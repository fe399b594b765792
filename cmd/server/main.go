package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"kycproxy/internal/platform/config"
	"kycproxy/internal/platform/database"
	"kycproxy/internal/platform/health"
	"kycproxy/internal/platform/kafka/producer"
	"kycproxy/internal/platform/logger"
	"kycproxy/internal/platform/metrics"
	"kycproxy/internal/platform/redis"
	"kycproxy/internal/platform/tracer"
	ratelimit "kycproxy/internal/ratelimit/middleware"
	"kycproxy/internal/ratelimit/store/bucket"
	httptransport "kycproxy/internal/transport/http"
	"kycproxy/internal/verification/handler"
	verificationMetrics "kycproxy/internal/verification/metrics"
	"kycproxy/internal/verification/providers/quickscan"
	"kycproxy/internal/verification/providers/sessions"
	"kycproxy/internal/verification/service"
	"kycproxy/internal/verification/store"
	"kycproxy/internal/verification/upload"
	"kycproxy/internal/verification/workers/sweeper"
	"kycproxy/migrations"
	"kycproxy/pkg/platform/audit"
	auditmetrics "kycproxy/pkg/platform/audit/metrics"
	"kycproxy/pkg/platform/audit/publisher"
	kafkastore "kycproxy/pkg/platform/audit/store/kafka"
	"kycproxy/pkg/platform/circuit"
	"kycproxy/pkg/platform/middleware/request"
)

const (
	serviceName       = "kycproxy"
	statsInterval     = 15 * time.Second
	auditBufferSize   = 1024
	cacheFailureLimit = 5
	cacheCooldown     = 30 * time.Second
	dbConnectAttempts = 5
	dbRetryDelay      = 2 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("kycproxy stopped with error", "error", err)
		os.Exit(1)
	}
}

// run wires dependencies and blocks until SIGINT/SIGTERM or a fatal
// background error, then shuts down in reverse order.
func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Server.LogLevel,
		logger.WithText(cfg.Server.Environment == "development"),
		logger.WithAttrs("version", health.Version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing kycproxy",
		"addr", cfg.Server.Addr,
		"environment", cfg.Server.Environment,
		"version", health.Version,
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	platformMetrics := metrics.New(registry)
	platformMetrics.SetBuildInfo(health.Version, cfg.Server.Environment)
	pipelineMetrics := verificationMetrics.New(registry)
	probes := health.New(cfg.Server.Environment, health.WithLogger(log))

	g, gctx := errgroup.WithContext(ctx)

	// Record storage: Postgres when configured, otherwise in-memory.
	var records store.Store = store.NewInMemoryStore()
	pool, err := database.Open(ctx, database.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: dbConnectAttempts,
		RetryDelay:      dbRetryDelay,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if pool != nil {
		defer pool.Close() //nolint:errcheck // process is exiting
		if err := database.Migrate(migrations.FS, cfg.Database.URL, log); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		records = store.NewPostgres(pool.DB())
		probes.RegisterCheck("postgres", pool.Health)
		g.Go(func() error { return platformMetrics.RunDBStats(gctx, pool, statsInterval) })
		log.Info("using postgres record store")
	} else {
		log.Warn("DATABASE_URL not set, records are kept in memory")
	}

	// Lookup cache and shared rate-limit counters.
	var limitStore ratelimit.Store
	redisClient, err := redis.New(ctx, cfg.Redis, registry)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck // process is exiting
		breaker := circuit.New("record-cache",
			circuit.WithFailureThreshold(cacheFailureLimit),
			circuit.WithCooldown(cacheCooldown),
			circuit.WithListener(func(name string, from, to circuit.State) {
				log.Warn("circuit state changed", "breaker", name, "from", from.String(), "to", to.String())
			}),
		)
		records = store.NewCachedStore(records, redisClient, cfg.Verification.LookupCacheTTL, pipelineMetrics, log,
			store.WithBreaker(breaker))
		probes.RegisterCheck("redis", redisClient.Health)
		g.Go(func() error { return redisClient.RunPoolStats(gctx, statsInterval) })
		limitStore = bucket.NewRedisBucketStore(redisClient)
		log.Info("record lookup cache enabled", "ttl", cfg.Verification.LookupCacheTTL)
	} else {
		buckets := bucket.NewInMemoryBucketStore()
		limitStore = buckets
		g.Go(func() error { return buckets.RunPruner(gctx, cfg.RateLimit.Window) })
	}

	// Audit: Kafka sink when brokers are configured, otherwise the log line only.
	var emitter audit.Emitter
	if cfg.Kafka.Brokers != "" {
		prod, err := producer.New(cfg.Kafka, log)
		if err != nil {
			return fmt.Errorf("create kafka producer: %w", err)
		}
		pub := publisher.NewPublisher(kafkastore.New(prod, cfg.Kafka.Topic),
			publisher.WithAsyncBuffer(auditBufferSize),
			publisher.WithPublisherLogger(log),
			publisher.WithMetrics(auditmetrics.New(registry)),
		)
		defer func() {
			pub.Close()
			closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := prod.Close(closeCtx); err != nil {
				log.Error("kafka producer close failed", "error", err)
			}
		}()
		emitter = pub
		probes.RegisterCheck("kafka", prod.Health)
		log.Info("audit events published to kafka", "topic", cfg.Kafka.Topic)
	}
	auditor := audit.NewLogger(log, emitter)

	tr := tracer.Noop()
	if cfg.Server.TracingEnabled {
		tp, err := tracer.NewProvider(ctx, serviceName, health.Version, cfg.Server.OTLPEndpoint)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.Error("tracer shutdown failed", "error", err)
			}
		}()
		tr = tracer.New(tp)
	}

	svc := service.New(
		quickscan.New(cfg.Quickscan.BaseURL, cfg.Quickscan.APIKey, cfg.Quickscan.Timeout),
		records,
		service.Config{
			MinAge:             cfg.Verification.MinAge,
			ImageBaseURL:       cfg.Verification.ImageBaseURL,
			HandleMaxAttempts:  cfg.Verification.HandleMaxAttempts,
			DefaultCallbackURL: cfg.Sessions.CallbackURL,
		},
		service.WithSessionProvider(sessions.New(cfg.Sessions.BaseURL, cfg.Sessions.APIKey, cfg.Sessions.Timeout)),
		service.WithLogger(log),
		service.WithTracer(tr),
		service.WithMetrics(pipelineMetrics),
		service.WithAuditor(auditor),
	)

	intake := upload.New(cfg.Uploads.Dir, cfg.Uploads.MaxBytes, log)
	if err := intake.EnsureDir(); err != nil {
		return fmt.Errorf("prepare upload directory: %w", err)
	}
	orphans, err := sweeper.New(intake.Dir(), cfg.Uploads.OrphanTTL,
		sweeper.WithInterval(cfg.Uploads.SweepInterval),
		sweeper.WithLogger(log),
		sweeper.WithMetrics(pipelineMetrics),
	)
	if err != nil {
		return fmt.Errorf("create upload sweeper: %w", err)
	}
	g.Go(func() error { return ignoreCanceled(orphans.Start(gctx)) })

	limiter := ratelimit.New(limitStore, cfg.RateLimit.Requests, cfg.RateLimit.Window, log)
	verifications := handler.New(svc, intake, log,
		handler.WithRateLimits(limiter.RateLimit("document"), limiter.RateLimit("sessions")))

	// Two document images plus multipart framing.
	maxBody := 2*cfg.Uploads.MaxBytes + 1<<20
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:         log,
		Gatherer:       registry,
		HTTPMetrics:    request.NewMetrics(registry),
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   maxBody,
		TrustProxy:     cfg.Server.TrustProxyHeaders,
		Probes:         probes,
		APIs:           []httptransport.RouteRegistrar{verifications},
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		probes.Drain()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
