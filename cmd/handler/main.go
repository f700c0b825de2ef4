package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/ahrav/streambatch/internal/app/batch"
	"github.com/ahrav/streambatch/internal/config"
	"github.com/ahrav/streambatch/internal/domain/employee"
	"github.com/ahrav/streambatch/internal/infra/eventbus/kafka"
	"github.com/ahrav/streambatch/internal/infra/storage"
	employeeStore "github.com/ahrav/streambatch/internal/infra/storage/employee/postgres"
	"github.com/ahrav/streambatch/pkg/common"
	"github.com/ahrav/streambatch/pkg/common/logger"
	"github.com/ahrav/streambatch/pkg/common/otel"
)

const serviceType = "employee-handler"

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "handler: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	_, _ = maxprocs.Set()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	hostname, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("getting hostname: %w", err)
	}

	logEvents := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			errorAttrs := map[string]any{
				"error_message": r.Message,
				"error_time":    r.Time.UTC().Format(time.RFC3339),
				"trace_id":      otel.GetTraceID(ctx),
			}
			for k, v := range r.Attributes {
				errorAttrs[k] = v
			}

			errorAttrsJSON, err := json.Marshal(errorAttrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal error attributes: %v\n", err)
				return
			}
			fmt.Fprintf(os.Stderr, "Error event: %s, details: %s\n", r.Message, errorAttrsJSON)
		},
	}

	metadata := map[string]string{
		"hostname":  hostname,
		"pod":       os.Getenv("POD_NAME"),
		"namespace": os.Getenv("POD_NAMESPACE"),
		"app":       serviceType,
	}
	log := logger.NewWithMetadata(
		os.Stdout,
		logger.ParseLevel(cfg.LogLevel),
		cfg.ServiceName,
		otel.GetTraceID,
		logEvents,
		metadata,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, telemetryTeardown, err := otel.InitTelemetry(log, otel.Config{
		ServiceName:      cfg.ServiceName,
		ExporterEndpoint: cfg.Telemetry.Endpoint,
		ExcludedRoutes: map[string]struct{}{
			"/v1/health":    {},
			"/v1/readiness": {},
		},
		Probability: cfg.Telemetry.SamplingRatio,
		ResourceAttributes: map[string]string{
			"library.language": "go",
			"k8s.pod.name":     os.Getenv("POD_NAME"),
			"k8s.namespace":    os.Getenv("POD_NAMESPACE"),
			"k8s.container.id": hostname,
		},
		InsecureExporter: cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer telemetryTeardown(context.Background())

	tracer := tp.Tracer(cfg.ServiceName)

	ready := new(atomic.Bool)
	healthServer, err := common.NewHealthServer(cfg.HealthAddr, ready)
	if err != nil {
		return fmt.Errorf("creating health server: %w", err)
	}
	go func() {
		log.Info(ctx, "Health server listening", "addr", cfg.HealthAddr)
		if err := healthServer.Server().ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "Health server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := healthServer.Server().Shutdown(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "Error shutting down health server", "error", err)
		}
	}()

	pool, err := connectPostgres(ctx, log, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	mp := otel.GetMeterProvider()
	handlerMetrics, err := batch.NewMetrics(mp)
	if err != nil {
		return fmt.Errorf("creating handler metrics: %w", err)
	}
	brokerMetrics, err := kafka.NewBrokerMetrics(mp)
	if err != nil {
		return fmt.Errorf("creating broker metrics: %w", err)
	}

	limiter := common.NewRateLimiter(cfg.Handler.RateLimitRPS, cfg.Handler.RateLimitBurst)
	recorder := employee.NewRecorder(employeeStore.NewStore(pool, tracer))

	handler := batch.NewHandler[employee.Employee](
		employee.NewCodec(),
		employee.NewValidator(),
		batch.RateLimited[employee.Employee](recorder, limiter),
		batch.WithConcurrency(cfg.Handler.Concurrency),
		batch.WithLogger(log),
		batch.WithTracer(tracer),
		batch.WithMetrics(handlerMetrics),
	)

	consumer, err := kafka.Connect(ctx, kafka.Config{
		Brokers:         cfg.Kafka.Brokers,
		SourceTopic:     cfg.Kafka.SourceTopic,
		RetryTopic:      cfg.Kafka.RetryTopic,
		DeadLetterTopic: cfg.Kafka.DeadLetterTopic,
		GroupID:         cfg.Kafka.GroupID,
		ClientID:        fmt.Sprintf("%s-%s", cfg.Kafka.ClientID, hostname),
		MaxBatchSize:    cfg.Kafka.MaxBatchSize,
		FlushInterval:   cfg.Kafka.FlushInterval,
		MaxAttempts:     cfg.Kafka.MaxAttempts,
	}, handler, log, brokerMetrics, tracer)
	if err != nil {
		return err
	}
	defer consumer.Close()

	ready.Store(true)
	log.Info(ctx, "Employee handler started",
		"source_topic", cfg.Kafka.SourceTopic,
		"concurrency", cfg.Handler.Concurrency,
		"max_batch_size", cfg.Kafka.MaxBatchSize,
	)

	err = consumer.Run(ctx)
	ready.Store(false)
	log.Info(context.Background(), "Shutting down employee handler")

	return err
}

func connectPostgres(ctx context.Context, log *logger.Logger, cfg config.PostgresSettings) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing db config: %w", err)
	}
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := common.ConnectWithRetry(ctx, log, "postgres", common.DefaultRetryConfig(),
		func() (*pgxpool.Pool, error) {
			pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
			if err != nil {
				return nil, err
			}
			if err := pool.Ping(ctx); err != nil {
				pool.Close()
				return nil, err
			}
			return pool, nil
		})
	if err != nil {
		return nil, err
	}

	if err := storage.RunMigrations(pool, cfg.MigrationsURL); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info(ctx, "Migrations applied successfully")

	return pool, nil
}
