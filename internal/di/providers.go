package di

import (
	"context"
	"fmt"
	"time"

	"SigPulse/internal/domain/repository"
	"SigPulse/internal/handler/api"
	mid "SigPulse/internal/middleware"
	internalrepo "SigPulse/internal/repository"
	"SigPulse/internal/service/accuracy"
	"SigPulse/internal/service/connectors"
	"SigPulse/internal/service/hub"
	"SigPulse/internal/service/ratelimit"
	"SigPulse/internal/usecase"
	"SigPulse/pkg/cache"
	pkgch "SigPulse/pkg/clickhouse"
	"SigPulse/pkg/config"
	xhttp "SigPulse/pkg/http"
	pkgkafka "SigPulse/pkg/kafka"
	applogger "SigPulse/pkg/logger"
	"SigPulse/pkg/metrics"
	"SigPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCache creates the cache backend: Redis when enabled, in-process
// memory otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideClickHouseClient creates a ClickHouse client and initializes the
// signal schema. Returns nil when the memory store is configured.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Storage.Type != "clickhouse" {
		return nil, nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.SignalSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideSignalStore creates the configured signal store.
func ProvideSignalStore(cfg *config.Config, chClient *pkgch.Client) (repository.SignalStore, error) {
	switch cfg.Storage.Type {
	case "memory":
		return internalrepo.NewMemorySignalStore(), nil
	case "clickhouse":
		if chClient == nil {
			return nil, fmt.Errorf("clickhouse storage configured but client missing")
		}
		return internalrepo.NewClickHouseSignalStore(chClient.DB(), cfg.ClickHouse.Database+".signals"), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}
}

// ProvidePublisher creates the egress publisher, a no-op when Kafka is off.
func ProvidePublisher(cfg *config.Config) (repository.Publisher, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.EgressTopic == "" {
		return internalrepo.NopPublisher{}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.EgressTopic), nil
}

// ProvideKafkaConsumer creates the ingest-topic consumer, nil when Kafka
// ingestion is not configured.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.IngestTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideConnectors assembles the enabled feed connectors.
func ProvideConnectors(cfg *config.Config, logger *applogger.Logger) []repository.Connector {
	timeout := cfg.Connectors.Timeout
	var conns []repository.Connector
	if cfg.Connectors.Seismic.Enabled {
		conns = append(conns, connectors.NewSeismicConnector(cfg.Connectors.Seismic.URL, cfg.Connectors.Seismic.MinMagnitude, timeout, logger))
	}
	if cfg.Connectors.Health.Enabled {
		conns = append(conns, connectors.NewHealthConnector(cfg.Connectors.Health.URL, cfg.Connectors.Health.MinNewCases, timeout, logger))
	}
	if cfg.Connectors.Solar.Enabled {
		conns = append(conns, connectors.NewSolarConnector(cfg.Connectors.Solar.URL, cfg.Connectors.Solar.MinKp, timeout, logger))
	}
	if cfg.Connectors.News.Enabled {
		topics := connectors.ParseNewsTopics(cfg.Connectors.News.Topics)
		conns = append(conns, connectors.NewNewsConnector(cfg.Connectors.News.URL, topics, cfg.Connectors.News.MinArticles, timeout, logger))
	}
	return conns
}

// ProvideHub creates the broadcast hub.
func ProvideHub(cfg *config.Config, m repository.Metrics, logger *applogger.Logger) *hub.Hub {
	return hub.New(cfg.Hub.HeartbeatInterval, cfg.Hub.SendBuffer, m, logger)
}

// ProvideTracker creates the per-category accuracy tracker.
func ProvideTracker() *accuracy.Tracker {
	return accuracy.NewTracker()
}

// ProvideRateWindow creates the daily quota windows.
func ProvideRateWindow(c cache.Service, cfg *config.Config) *ratelimit.DailyWindow {
	return ratelimit.NewDailyWindow(c, cfg.Gateway.StandardDailyQuota)
}

// ProvideSignalProcessor creates the shared signal write path.
func ProvideSignalProcessor(
	store repository.SignalStore,
	h *hub.Hub,
	pub repository.Publisher,
	m repository.Metrics,
	logger *applogger.Logger,
) *usecase.SignalProcessor {
	return usecase.NewSignalProcessor(store, h, pub, m, logger)
}

// ProvideIngestPipeline builds the validation/throttle/buffer stage in
// front of the processor for externally submitted signals.
func ProvideIngestPipeline(proc *usecase.SignalProcessor, m repository.Metrics) *mid.IngestPipeline {
	return mid.NewIngestPipeline(proc, m,
		mid.WithMaxRPS(20),
		mid.WithBufferSize(1000),
	)
}

// ProvideScheduler creates the fetch-cycle scheduler.
func ProvideScheduler(
	conns []repository.Connector,
	proc *usecase.SignalProcessor,
	store repository.SignalStore,
	m repository.Metrics,
	logger *applogger.Logger,
	cfg *config.Config,
) *usecase.Scheduler {
	return usecase.NewScheduler(conns, proc, store, m, logger, cfg.Scheduler.Interval, cfg.Scheduler.CycleTimeout)
}

// ProvideKafkaSignalsHandler registers the ingest-topic handler.
func ProvideKafkaSignalsHandler(cfg *config.Config, pipe *mid.IngestPipeline, m repository.Metrics) *usecase.KafkaSignalsHandler {
	if cfg.Kafka.IngestTopic == "" {
		return nil
	}
	return usecase.NewKafkaSignalsHandler(cfg.Kafka.IngestTopic, pipe, m)
}

// ProvideSignalService creates the read-side service.
func ProvideSignalService(
	store repository.SignalStore,
	tracker *accuracy.Tracker,
	window *ratelimit.DailyWindow,
	h *hub.Hub,
	sched *usecase.Scheduler,
	c cache.Service,
	logger *applogger.Logger,
) *usecase.SignalService {
	return usecase.NewSignalService(store, tracker, window, h, sched, c, logger)
}

// ProvideEntitlements creates the config-backed credential resolver.
func ProvideEntitlements(cfg *config.Config) repository.Entitlements {
	return internalrepo.NewStaticEntitlements(cfg)
}

// ProvideGateway creates the query gateway guard.
func ProvideGateway(ents repository.Entitlements, window *ratelimit.DailyWindow, m repository.Metrics, logger *applogger.Logger) *api.Gateway {
	return api.NewGateway(ents, window, m, logger)
}

// ProvideWebSocketHandler creates the /ws handler.
func ProvideWebSocketHandler(h *hub.Hub, cfg *config.Config, logger *applogger.Logger) *api.WebSocketHandler {
	return api.NewWebSocketHandler(h, cfg.Hub.HeartbeatInterval, logger)
}

// ProvideHTTPHandler assembles the Echo route handler.
func ProvideHTTPHandler(
	logger *applogger.Logger,
	svc *usecase.SignalService,
	sched *usecase.Scheduler,
	pipe *mid.IngestPipeline,
	store repository.SignalStore,
	gateway *api.Gateway,
	ws *api.WebSocketHandler,
	cfg *config.Config,
) xhttp.Handler {
	return api.NewSignalsEchoHandler(logger, svc, sched, pipe, store, gateway, ws, cfg.Ingest.Secret)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	handler xhttp.Handler,
	h *hub.Hub,
	sched *usecase.Scheduler,
	pipe *mid.IngestPipeline,
	proc *usecase.SignalProcessor,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSignalsHandler,
	chClient *pkgch.Client,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	return server.New(cfg, logger, handler, h, sched, pipe, proc, consumer, kh, chClient)
}
