package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addrs        []string
	Username     string
	Password     string
	DB           int
	PoolSize     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Client wraps a UniversalClient so standalone and cluster deployments look the same
type Client struct {
	client goredis.UniversalClient
	logger *slog.Logger
}

// NewClient connects to Redis and verifies the connection with a ping
func NewClient(ctx context.Context, config *Config, logger *slog.Logger) (*Client, error) {
	readTimeout := config.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 5 * time.Second
	}
	writeTimeout := config.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	poolSize := config.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	client := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:        config.Addrs,
		Username:     config.Username,
		Password:     config.Password,
		DB:           config.DB,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		PoolSize:     poolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	logger.Info("Successfully connected to Redis",
		slog.Any("addrs", config.Addrs),
		slog.Int("db", config.DB),
	)

	return &Client{client: client, logger: logger}, nil
}

// Universal exposes the underlying client
func (c *Client) Universal() goredis.UniversalClient {
	return c.client
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	c.logger.Info("Closing Redis connection")
	return c.client.Close()
}
