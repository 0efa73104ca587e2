package di

import (
	"context"
	"fmt"
	"time"

	"ZoneScan/internal/domain/repository"
	"ZoneScan/internal/handler/api"
	internalrepo "ZoneScan/internal/repository"
	"ZoneScan/internal/scheduler"
	"ZoneScan/internal/service/ratelimit"
	"ZoneScan/internal/service/yahoo"
	"ZoneScan/internal/usecase"
	"ZoneScan/pkg/cache"
	pkgch "ZoneScan/pkg/clickhouse"
	"ZoneScan/pkg/config"
	xhttp "ZoneScan/pkg/http"
	"ZoneScan/pkg/http/middleware"
	pkgkafka "ZoneScan/pkg/kafka"
	applogger "ZoneScan/pkg/logger"
	"ZoneScan/pkg/metrics"
	"ZoneScan/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCache creates the candle cache: Redis behind an in-process L1 when
// Redis is enabled, otherwise memory only.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		l.Info("redis disabled, using in-memory cache")
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemorySize)), nil
	}
	remote, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdle, cfg.Redis.Timeout),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(remote, cache.WithLayeredMemorySize(cfg.Cache.MemorySize)), nil
}

// ProvideMarketData creates the Yahoo Finance chart client.
func ProvideMarketData(cfg *config.Config) repository.MarketData {
	return yahoo.New(cfg.Provider.BaseURL, cfg.Provider.Timeout)
}

// ProvideCandleSource wraps the provider with validation, retries and caching.
func ProvideCandleSource(md repository.MarketData, c cache.Service, m repository.Metrics, l *applogger.Logger, cfg *config.Config) repository.CandleSource {
	return usecase.NewCandleFetcher(md, c, m, l, usecase.CandleSourceConfig{
		MaxAttempts:  cfg.Provider.MaxAttempts,
		RetryDelay:   cfg.Provider.RetryDelay,
		FetchTimeout: cfg.Provider.FetchTimeout,
		CacheTTL:     cfg.Cache.CandleTTL,
	})
}

// ProvideFreshness creates the freshness evaluator.
func ProvideFreshness(src repository.CandleSource, l *applogger.Logger) usecase.Freshness {
	return usecase.NewFreshnessEvaluator(src, l)
}

// ProvideClickHouseClient connects to ClickHouse and creates the zones table.
// It returns nil when the memory store is configured.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Store.Backend != "clickhouse" {
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
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := append([]string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database},
		internalrepo.ZoneSchema(zoneTable(cfg))...)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

func zoneTable(cfg *config.Config) string {
	return cfg.ClickHouse.Database + "." + cfg.Store.Table
}

// ProvideZoneStore selects the zone store backend.
func ProvideZoneStore(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) repository.ZoneStore {
	if ch == nil {
		l.Info("using in-memory zone store")
		return internalrepo.NewMemoryZoneStore()
	}
	return internalrepo.NewCHZoneStore(ch, zoneTable(cfg), l)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatch(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideZonePublisher publishes accepted zones when Kafka is enabled.
func ProvideZonePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.ZonePublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaZonePublisher(producer, cfg.Kafka.ZonesTopic)
}

// ProvideZoneDetector creates the single-ticker detector.
func ProvideZoneDetector(
	src repository.CandleSource,
	fresh usecase.Freshness,
	store repository.ZoneStore,
	pub repository.ZonePublisher,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.ZoneDetector {
	return usecase.NewZoneDetector(src, fresh, store, pub, m, l, usecase.DetectorConfig{
		LookbackDays: cfg.Detector.LookbackDays,
		MinCandles:   cfg.Detector.MinCandles,
		CacheMode:    cfg.Cache.Mode,
		CacheMaxAge:  cfg.Cache.ZoneMaxAge,
		Timeout:      cfg.Detector.Timeout,
	})
}

// ProvideDailyScanner creates the batch scanner over the configured universe.
func ProvideDailyScanner(
	src repository.CandleSource,
	fresh usecase.Freshness,
	store repository.ZoneStore,
	pub repository.ZonePublisher,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) usecase.DayScanner {
	return usecase.NewDailyScanner(src, fresh, store, pub, m, l, usecase.ScannerConfig{
		BatchSize:    cfg.Scanner.BatchSize,
		BatchDelay:   cfg.Scanner.BatchDelay,
		LookbackDays: cfg.Scanner.LookbackDays,
		MinCandles:   cfg.Scanner.MinCandles,
		CacheMode:    cfg.Cache.Mode,
	}, cfg.Scanner.Tickers)
}

// ProvideScanCommandHandler handles scan commands from the commands topic.
func ProvideScanCommandHandler(scanner usecase.DayScanner, m repository.Metrics, l *applogger.Logger, cfg *config.Config) pkgkafka.MessageHandler {
	return usecase.NewScanCommandHandler(cfg.Kafka.CommandsTopic, scanner, m, l)
}

// ProvideKafkaConsumer creates the command consumer, or nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideScheduler creates the end-of-day scheduler, or nil when disabled.
// The cache doubles as the cross-replica lock.
func ProvideScheduler(scanner usecase.DayScanner, c cache.Service, m repository.Metrics, l *applogger.Logger, cfg *config.Config) *scheduler.Scheduler {
	if !cfg.Scheduler.Enabled {
		return nil
	}
	tfs := make([]repository.TimeFrame, 0, len(cfg.Scheduler.TimeFrames))
	for _, tf := range cfg.Scheduler.TimeFrames {
		tfs = append(tfs, repository.TimeFrame(tf))
	}
	return scheduler.New(scanner, c, m, l, tfs, cfg.Scheduler.LockTTL)
}

// ProvideZonesHandler creates the zones HTTP handler.
func ProvideZonesHandler(
	detector *usecase.ZoneDetector,
	scanner usecase.DayScanner,
	store repository.ZoneStore,
	l *applogger.Logger,
	cfg *config.Config,
) *api.ZonesEchoHandler {
	var limiter middleware.Allower
	if rl := cfg.Server.ScanRateLimit; rl.Burst > 0 {
		limiter = ratelimit.New(rl.Burst, rl.PerSecond)
	}
	return api.NewZonesEchoHandler(l, detector, scanner, store, limiter)
}

// ProvideHTTPServer creates the Echo server with health checks.
func ProvideHTTPServer(h *api.ZonesEchoHandler, store repository.ZoneStore, l *applogger.Logger, cfg *config.Config) *xhttp.Server {
	return xhttp.NewServer(l, []xhttp.Handler{h},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithHealthCheck("zone_store", store.Health),
	)
}

// ProvideClosers lists the resources released on shutdown, publishers first.
func ProvideClosers(pub repository.ZonePublisher, store repository.ZoneStore, ch *pkgch.Client, c cache.Service) server.Closers {
	closers := server.Closers{}
	if pub != nil {
		closers = append(closers, pub)
	}
	closers = append(closers, store)
	if ch != nil {
		closers = append(closers, ch)
	}
	return append(closers, c)
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	commands pkgkafka.MessageHandler,
	sched *scheduler.Scheduler,
	closers server.Closers,
) *server.App {
	return server.New(cfg, l, httpServer, consumer, commands, sched, closers)
}
