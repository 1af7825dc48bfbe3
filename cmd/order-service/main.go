// cmd/order-service/main.go
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"orderflow/internal/pkg/bootstrap"
	"orderflow/internal/pkg/config"
	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/metrics"
	"orderflow/internal/pkg/mq"
	"orderflow/internal/service/order/application"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
	"orderflow/internal/service/order/infrastructure"
	"orderflow/internal/service/order/infrastructure/adapter"
	"orderflow/internal/service/order/infrastructure/rule"
	"orderflow/internal/service/order/interfaces"
	"orderflow/internal/tracing"
)

// main 是应用的组装根：读取配置、创建所有依赖，然后把 HTTP 服务和 Kafka 消费者交给 bootstrap.App 运行。
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootstrap.Exit(err)
	}
	logger.Init(logger.Options{ServiceName: cfg.Service.Name, Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	app, err := build(context.Background(), cfg)
	if err != nil {
		bootstrap.Exit(err)
	}
	if err := app.Run(context.Background()); err != nil {
		bootstrap.Exit(err)
	}
}

func build(ctx context.Context, cfg *config.Config) (*bootstrap.App, error) {
	app := &bootstrap.App{Name: cfg.Service.Name, ShutdownTimeout: cfg.Service.ShutdownTimeout}

	// 1. 可观测性
	shutdownTracing, err := tracing.InitTracerProvider(cfg.Service.Name, cfg.Tracing.JaegerEndpoint, cfg.Tracing.Enabled)
	if err != nil {
		return nil, err
	}
	app.OnShutdown(bootstrap.Closer(shutdownTracing))
	tracer := otel.Tracer(cfg.Service.Name)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsCfg := metrics.DefaultConfig()
	metricsCfg.Registry = registry
	sagaMetrics := metrics.NewPrometheus(metricsCfg)

	// 2. 存储
	var redisClient *goredis.Client
	if cfg.NeedsRedis() {
		redisClient, err = infrastructure.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		app.OnShutdown(bootstrap.CloseFunc(redisClient.Close))
	}

	var orders domain.OrderRepository
	switch cfg.Storage.Driver {
	case config.StorageRedis:
		orders = infrastructure.NewRedisOrderRepository(redisClient)
	default:
		db, err := infrastructure.NewMySQL(cfg.MySQL)
		if err != nil {
			return nil, err
		}
		app.OnShutdown(closeGorm(db))
		orders = infrastructure.NewGormOrderRepository(db)
	}

	// 3. 出站适配器
	client := httpclient.NewClient(tracer, cfg.Upstream.RequestTimeout)
	products := adapter.NewProductHTTPAdapter(client, cfg.Upstream.ProductURL)
	payments := adapter.NewPaymentHTTPAdapter(client, cfg.Upstream.PaymentURL)

	var stock port.StockService = products
	if cfg.Stock.Backend == config.StockRedis {
		stock = adapter.NewStockRedisAdapter(redisClient)
	}

	var admission port.AdmissionPolicy
	policy, err := rule.NewCELAdmissionPolicy(cfg.Rules.Admission)
	if err != nil {
		return nil, err
	}
	if policy != nil {
		admission = policy
	}

	orderWriter := mq.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.OrderCreatedTopic)
	notificationWriter := mq.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.NotificationTopic)
	app.OnShutdown(bootstrap.CloseFunc(orderWriter.Close))
	app.OnShutdown(bootstrap.CloseFunc(notificationWriter.Close))

	// 4. 应用层
	orchestrator := application.NewOrderSagaOrchestrator(application.OrchestratorConfig{
		Orders:    orders,
		Catalog:   products,
		Payments:  payments,
		Stock:     stock,
		Admission: admission,
		Metrics:   sagaMetrics,
		Tracer:    tracer,
	})
	service := application.NewOrderApplicationService(
		orders,
		orchestrator,
		infrastructure.NewOrderProducerAdapter(orderWriter),
		adapter.NewNotificationKafkaAdapter(notificationWriter),
		cfg.Service.ProcessingTimeout,
		tracer,
	)

	// 5. 入站适配器
	mux := http.NewServeMux()
	interfaces.NewOrderHandler(service, registry).RegisterRoutes(mux)
	app.Server = &http.Server{
		Addr:              cfg.Service.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	var failureHandler *mq.FailureHandler
	if cfg.Kafka.DeadLetterTopic != "" {
		dltWriter := mq.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.DeadLetterTopic)
		app.OnShutdown(bootstrap.CloseFunc(dltWriter.Close))
		failureHandler = mq.NewFailureHandler(dltWriter)
	} else {
		failureHandler = mq.NewFailureHandler(nil)
	}

	consumer := interfaces.NewOrderConsumerAdapter(
		mq.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.OrderCreatedTopic),
		cfg.Kafka.OrderCreatedTopic,
		service,
		failureHandler,
	)
	app.Go(consumer.Run)
	app.OnShutdown(bootstrap.CloseFunc(consumer.Close))

	if cfg.Kafka.WatchDeadLetters && cfg.Kafka.DeadLetterTopic != "" {
		dlt := interfaces.NewDltConsumerAdapter(
			mq.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.GroupID+"-dlt", cfg.Kafka.DeadLetterTopic),
			cfg.Kafka.DeadLetterTopic,
		)
		app.Go(dlt.Run)
		app.OnShutdown(bootstrap.CloseFunc(dlt.Close))
	}

	logger.L().Info().
		Str("storage", cfg.Storage.Driver).
		Str("stock", cfg.Stock.Backend).
		Bool("admission_rule", admission != nil).
		Msg("order service assembled")
	return app, nil
}

func closeGorm(db *gorm.DB) bootstrap.Closer {
	return func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return errors.Wrap(err, "get sql.DB from gorm")
		}
		return sqlDB.Close()
	}
}
