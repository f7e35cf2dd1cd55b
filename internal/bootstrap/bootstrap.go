// Package bootstrap builds the job store, queue and engine selected by configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/voice-jobs/internal/config"
	"github.com/cuongbtq/voice-jobs/internal/engine"
	"github.com/cuongbtq/voice-jobs/internal/queue"
	"github.com/cuongbtq/voice-jobs/internal/storage"
	"github.com/cuongbtq/voice-jobs/shared/logger"
	"github.com/cuongbtq/voice-jobs/shared/postgresql"
	"github.com/cuongbtq/voice-jobs/shared/rabbitmq"
	"github.com/cuongbtq/voice-jobs/shared/redis"
	"github.com/nats-io/nats.go"
)

// Cleanup releases whatever an Open function acquired
type Cleanup func()

func noop() {}

// NewLogger builds the service logger from the logging section
func NewLogger(cfg *config.LoggingConfig, service string) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
		Service:      service,
	})
}

// Store is an opened job store together with its readiness check
type Store struct {
	storage.JobStore
	ping  func(ctx context.Context) error
	close Cleanup
}

// Ping reports whether the backing store can currently serve requests
func (s *Store) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

// Close releases the connection behind the store
func (s *Store) Close() {
	s.close()
}

// OpenJobStore connects the job store named by storage.job_store
func OpenJobStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	switch cfg.Storage.JobStore {
	case config.StoreFile:
		store, err := storage.NewFileStore(cfg.Storage.JobsDir)
		if err != nil {
			return nil, err
		}
		logger.Info("Using file job store", slog.String("dir", cfg.Storage.JobsDir))
		return &Store{JobStore: store, ping: store.Ping, close: noop}, nil

	case config.StorePostgres:
		client, err := postgresql.NewClient(ctx, postgresConfig(&cfg.Database), logger)
		if err != nil {
			return nil, err
		}
		store := storage.NewPostgresStore(client.GetDB(), logger)
		if cfg.Database.AutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				client.Close()
				return nil, err
			}
		}
		return &Store{JobStore: store, ping: client.HealthCheck, close: func() { client.Close() }}, nil

	case config.StoreRedis:
		client, err := redis.NewClient(ctx, redisConfig(&cfg.Redis), logger)
		if err != nil {
			return nil, err
		}
		store := storage.NewRedisStore(client.Universal(), cfg.Redis.KeyPrefix, cfg.Redis.TTL)
		return &Store{JobStore: store, ping: client.Ping, close: func() { client.Close() }}, nil

	case config.StoreNATS:
		conn, err := nats.Connect(cfg.NATS.URL,
			nats.Name(cfg.App.Name),
			nats.Timeout(natsTimeout(cfg.NATS.ConnectTimeout)),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
		}
		js, err := conn.JetStream()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to get JetStream context: %w", err)
		}
		store, err := storage.NewNatsStore(js, cfg.NATS.Bucket)
		if err != nil {
			conn.Close()
			return nil, err
		}
		logger.Info("Using NATS job store",
			slog.String("url", cfg.NATS.URL),
			slog.String("bucket", cfg.NATS.Bucket),
		)
		return &Store{JobStore: store, ping: natsPing(conn), close: conn.Close}, nil
	}

	return nil, fmt.Errorf("unknown job store %q", cfg.Storage.JobStore)
}

func natsPing(conn *nats.Conn) func(context.Context) error {
	return func(context.Context) error {
		if status := conn.Status(); status != nats.CONNECTED {
			return fmt.Errorf("nats connection is %s", status)
		}
		return nil
	}
}

// OpenQueue connects the queue named by queue.driver
func OpenQueue(cfg *config.Config, consumerTag string, logger *slog.Logger) (queue.Queue, Cleanup, error) {
	switch cfg.Queue.Driver {
	case config.QueueMemory:
		q := queue.NewMemoryQueue()
		return q, func() { q.Close() }, nil

	case config.QueueRabbitMQ:
		client, err := rabbitmq.NewClient(rabbitConfig(&cfg.RabbitMQ), logger)
		if err != nil {
			return nil, nil, err
		}
		if tag := cfg.RabbitMQ.Consumer.Tag; tag != "" {
			consumerTag = tag
		}
		return queue.NewRabbitMQQueue(client, consumerTag, logger), func() { client.Close() }, nil
	}

	return nil, nil, fmt.Errorf("unknown queue driver %q", cfg.Queue.Driver)
}

// OpenEngine creates the synthesis engine and waits for it to report healthy
func OpenEngine(ctx context.Context, cfg *config.EngineConfig, logger *slog.Logger) (engine.Engine, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("engine base_url is required")
	}

	e := engine.NewHTTPEngine(engine.HTTPConfig{
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.Timeout,
		Temperature: cfg.Temperature,
	}, logger)

	if err := e.Open(ctx); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func natsTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return nats.DefaultTimeout
	}
	return d
}

func postgresConfig(cfg *config.DatabaseConfig) *postgresql.Config {
	return &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
}

func redisConfig(cfg *config.RedisConfig) *redis.Config {
	return &redis.Config{
		Addrs:        cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

func rabbitConfig(cfg *config.RabbitMQConfig) *rabbitmq.Config {
	return &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		DeadLetterExchange: cfg.Queue.DeadLetterExchange,
		RoutingKey:         cfg.RoutingKey,
		PrefetchCount:      cfg.Consumer.PrefetchCount,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}
}
