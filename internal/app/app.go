// Package app собирает зависимости и запускает сервис заказов.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/orders/internal/health"
	"github.com/vladislavdragonenkov/orders/internal/httpx"
	"github.com/vladislavdragonenkov/orders/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orders/internal/metrics"
	idemsvc "github.com/vladislavdragonenkov/orders/internal/service/idempotency"
	ordersvc "github.com/vladislavdragonenkov/orders/internal/service/orders"
	outboxsvc "github.com/vladislavdragonenkov/orders/internal/service/outbox"
	"github.com/vladislavdragonenkov/orders/internal/version"
)

// Run запускает HTTP API, metrics-сервер и фоновые воркеры
// и блокируется до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	orderMetrics := metrics.NewOrderMetrics()
	svc := ordersvc.NewService(deps.repo, deps.validator, ordersvc.Options{
		Outbox:  deps.outboxRepo,
		History: deps.historyRepo,
		Metrics: orderMetrics,
		Logger:  logger.WithField("component", "orders-service"),
	})

	router := httpx.NewRouter()
	handler := httpx.NewOrdersHandler(svc, deps.idempotencyRepo, logger.WithField("component", "orders-http"))
	handler.Register(router)

	// Фоновая публикация outbox доступна только при настроенной Kafka.
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	if kafkaProducer != nil {
		publisher := kafka.NewOutboxPublisher(kafkaProducer, cfg.OutboxTopic)
		dlqPublisher := kafka.NewOutboxPublisher(kafkaProducer, cfg.DLQTopic)
		worker := outboxsvc.NewWorker(
			deps.outboxRepo,
			publisher,
			outboxsvc.WithLogger(logger.WithField("component", "outbox-worker")),
			outboxsvc.WithDLQPublisher(dlqPublisher),
			outboxsvc.WithPollInterval(cfg.OutboxPollInterval),
			outboxsvc.WithBatchSize(cfg.OutboxBatchSize),
			outboxsvc.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outboxsvc.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		go worker.Run(workerCtx)
	} else {
		logger.Warn("KAFKA_BROKERS is empty, outbox events are not published")
	}

	cleanupWorker := idemsvc.NewCleanupWorker(
		deps.idempotencyRepo,
		idemsvc.WithLogger(logger.WithField("component", "idempotency-cleanup")),
		idemsvc.WithInterval(cfg.IdempotencyCleanupInterval),
	)
	go cleanupWorker.Run(workerCtx)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if deps.store != nil {
		store := deps.store
		healthHandler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return store.Ping(pingCtx)
		}))
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		stopWorkers()
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		return nil
	case err := <-errCh:
		stopWorkers()
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
