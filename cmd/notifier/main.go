package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-notification-service/internal/application/notification"
	"github.com/go-notification-service/internal/application/ownership"
	"github.com/go-notification-service/internal/config"
	"github.com/go-notification-service/internal/domain"
	"github.com/go-notification-service/internal/infrastructure/awscfg"
	"github.com/go-notification-service/internal/infrastructure/cache"
	"github.com/go-notification-service/internal/infrastructure/delivery"
	"github.com/go-notification-service/internal/infrastructure/directory"
	"github.com/go-notification-service/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-notification-service/internal/infrastructure/jwt"
	"github.com/go-notification-service/internal/infrastructure/mq/kafka"
	s3infra "github.com/go-notification-service/internal/infrastructure/s3"
	"github.com/go-notification-service/internal/infrastructure/smtp"
	"github.com/go-notification-service/internal/infrastructure/sns"
	"github.com/go-notification-service/internal/infrastructure/sqlite"
	"github.com/go-notification-service/internal/pkg/logger"
	"github.com/go-notification-service/internal/pkg/metrics"
	"github.com/go-notification-service/internal/pkg/telemetry"
	"github.com/go-notification-service/internal/transport/event"
	transporthttp "github.com/go-notification-service/internal/transport/http"
	appmiddleware "github.com/go-notification-service/internal/transport/http/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type notificationStore interface {
	Put(ctx context.Context, n *domain.Notification) error
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Notification, error)
	ListUnread(ctx context.Context, userID string) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
}

type deliveryChannel interface {
	Send(ctx context.Context, recipientID, subject, body string) error
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	zlog, err := logger.New(logger.Options{Env: cfg.AppEnv, Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zlog); err != nil {
		zlog.Error("service stopped with error", zap.Error(err))
		_ = zlog.Sync()
		os.Exit(1)
	}
	zlog.Info("service stopped")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Env:         cfg.AppEnv,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	proxies, err := appmiddleware.ParseProxyList(cfg.TrustedProxies)
	if err != nil {
		return err
	}

	awsCfg, err := awscfg.Load(ctx, cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store, closeStore, err := buildStore(ctx, cfg, awsCfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	channel, err := buildChannel(cfg, awsCfg, log)
	if err != nil {
		return err
	}

	// JWT provider (verify-only when the private key is absent).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Warn("JWT provider not available, protected routes will reject every request", zap.Error(err))
	}

	dirOpts := directory.Options{
		BaseURL:  cfg.DirectoryURL,
		PageSize: cfg.DirectoryPageSize,
		Timeout:  cfg.DirectoryTimeout,
		PageRPS:  cfg.DirectoryPageRPS,
	}
	if jwtProvider != nil && jwtProvider.CanSign() {
		dirOpts.Token = jwtProvider.ServiceToken(cfg.ServiceName)
	}

	svc := notification.NewService(notification.ServiceDeps{
		Repo:             store,
		Channel:          channel,
		Directory:        directory.New(dirOpts),
		Observer:         m,
		Logger:           log,
		DeliveryTimeout:  cfg.DeliveryTimeout,
		BroadcastWorkers: cfg.BroadcastWorkers,
	})

	dispDeps := event.DispatcherDeps{
		Service:     svc,
		Observer:    m,
		Logger:      log,
		TopicPrefix: cfg.KafkaTopicPrefix,
	}
	if cfg.DeadLetterBucket != "" {
		dispDeps.DeadLetters = s3infra.NewDeadLetters(s3infra.NewClient(awsCfg, cfg.AWSEndpointURL), cfg.DeadLetterBucket)
	}
	dispatcher := event.NewDispatcher(dispDeps)

	if cfg.KafkaEnsureTopics {
		err := kafka.EnsureTopics(kafka.TopicAdminConfig{
			Brokers:           cfg.KafkaBrokers,
			ClientID:          cfg.KafkaClientID,
			Partitions:        int32(cfg.KafkaPartitions),
			ReplicationFactor: int16(cfg.KafkaReplication),
		}, dispatcher.Topics())
		if err != nil {
			return fmt.Errorf("ensure topics: %w", err)
		}
	}

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaGroupID,
		Topics:   dispatcher.Topics(),
		ClientID: cfg.KafkaClientID,
	}, log)
	if err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}
	defer func() { _ = consumer.Close() }()

	srv := &http.Server{
		Addr: fmt.Sprintf(":%s", cfg.AppPort),
		Handler: transporthttp.NewRouter(ctx, cfg, &transporthttp.Deps{
			Notifications:  svc,
			Guard:          ownership.NewGuard(store),
			JWTProvider:    jwtProvider,
			Gatherer:       reg,
			TrustedProxies: proxies,
			Logger:         log,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("consuming events", zap.Strings("topics", dispatcher.Topics()), zap.String("group", cfg.KafkaGroupID))
		return consumer.Run(gctx, dispatcher)
	})
	g.Go(func() error {
		log.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// buildStore selects the notification store and wraps it with the unread-count cache
// when Redis is configured. The returned func releases store resources.
func buildStore(ctx context.Context, cfg *config.Config, awsCfg aws.Config, log *zap.Logger) (notificationStore, func(), error) {
	var (
		store   notificationStore
		closers []func()
	)
	switch cfg.StoreDriver {
	case "sqlite":
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		store = s
		closers = append(closers, func() { _ = s.Close() })
	default:
		client := dynamo.NewClient(awsCfg, cfg.AWSEndpointURL)
		if err := dynamo.Bootstrap(ctx, client, cfg.NotificationsTable, log); err != nil {
			return nil, nil, err
		}
		store = dynamo.NewNotificationStore(client, cfg.NotificationsTable)
	}

	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn("redis unavailable, unread counts read from the store", zap.Error(err))
		} else {
			store = cache.NewUnreadCountStore(store, cache.NewRedisCounters(rdb), cfg.UnreadTTL, log)
			closers = append(closers, func() { _ = rdb.Close() })
		}
	}

	return store, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}, nil
}

func buildChannel(cfg *config.Config, awsCfg aws.Config, log *zap.Logger) (deliveryChannel, error) {
	switch cfg.DeliveryDriver {
	case "smtp":
		return smtp.NewMailer(cfg), nil
	case "sns":
		return sns.NewPublisher(sns.NewClient(awsCfg, cfg.AWSEndpointURL), cfg.SNSTopicARN), nil
	case "log":
		return delivery.NewLogChannel(log), nil
	default:
		return nil, fmt.Errorf("unknown delivery driver %q", cfg.DeliveryDriver)
	}
}
