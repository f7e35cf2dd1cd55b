package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Job store drivers
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreNATS     = "nats"
)

// Queue drivers
const (
	QueueMemory   = "memory"
	QueueRabbitMQ = "rabbitmq"
)

// Config represents the complete application configuration
type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Database   DatabaseConfig   `yaml:"database"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Redis      RedisConfig      `yaml:"redis"`
	NATS       NATSConfig       `yaml:"nats"`
	Storage    StorageConfig    `yaml:"storage"`
	Queue      QueueDriver      `yaml:"queue"`
	Engine     EngineConfig     `yaml:"engine"`
	Submission SubmissionConfig `yaml:"submission"`
	Worker     WorkerConfig     `yaml:"worker"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// PublicBaseURL prefixes audio_url in status responses, e.g. http://host:8080/outputs
	PublicBaseURL string `yaml:"public_base_url"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name               string `yaml:"name"`
	Durable            bool   `yaml:"durable"`
	AutoDelete         bool   `yaml:"auto_delete"`
	Exclusive          bool   `yaml:"exclusive"`
	DeadLetterExchange string `yaml:"dead_letter_exchange"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	Tag           string `yaml:"tag"`
	PrefetchCount int    `yaml:"prefetch_count"`
}

// RedisConfig holds Redis job store settings
type RedisConfig struct {
	Addrs        []string      `yaml:"addrs"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	KeyPrefix    string        `yaml:"key_prefix"`
	TTL          time.Duration `yaml:"ttl"`
}

// NATSConfig holds NATS JetStream key-value job store settings
type NATSConfig struct {
	URL            string        `yaml:"url"`
	Bucket         string        `yaml:"bucket"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// StorageConfig selects the job store and the filesystem layout
type StorageConfig struct {
	JobStore   string `yaml:"job_store"`
	JobsDir    string `yaml:"jobs_dir"`
	VoicesDir  string `yaml:"voices_dir"`
	OutputsDir string `yaml:"outputs_dir"`
}

// QueueDriver selects the job queue implementation
type QueueDriver struct {
	Driver string `yaml:"driver"`
}

// EngineConfig holds synthesis backend settings
type EngineConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float64       `yaml:"temperature"`
}

// SubmissionConfig holds request policy
type SubmissionConfig struct {
	MaxTextLength      int      `yaml:"max_text_length"`
	DefaultLanguage    string   `yaml:"default_language"`
	SupportedLanguages []string `yaml:"supported_languages"`
}

// WorkerConfig holds worker configuration
type WorkerConfig struct {
	ID              string        `yaml:"id"`
	Concurrency     int           `yaml:"concurrency"`
	ChunkSize       int           `yaml:"chunk_size"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Load reads the configuration file, expands ${VAR} references from the environment
// and fills in defaults
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Storage.JobStore == "" {
		c.Storage.JobStore = StoreFile
	}
	if c.Storage.JobsDir == "" {
		c.Storage.JobsDir = "data/jobs"
	}
	if c.Storage.VoicesDir == "" {
		c.Storage.VoicesDir = "data/voices"
	}
	if c.Storage.OutputsDir == "" {
		c.Storage.OutputsDir = "data/outputs"
	}
	if c.Queue.Driver == "" {
		c.Queue.Driver = QueueMemory
	}
	if c.NATS.Bucket == "" {
		c.NATS.Bucket = "tts_jobs"
	}
	if c.Engine.Timeout <= 0 {
		c.Engine.Timeout = 5 * time.Minute
	}
	if c.Submission.MaxTextLength <= 0 {
		c.Submission.MaxTextLength = 50000
	}
	if c.Submission.DefaultLanguage == "" {
		c.Submission.DefaultLanguage = "en"
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 1
	}
	if c.Worker.ChunkSize <= 0 {
		c.Worker.ChunkSize = 1000
	}
	if c.Worker.ShutdownTimeout <= 0 {
		c.Worker.ShutdownTimeout = 10 * time.Minute
	}
}

// Validate checks the sections shared by both services: storage layout, the selected
// job store and the selected queue
func (c *Config) Validate() error {
	switch c.Logging.Format {
	case "", "console", "text", "json":
	default:
		return fmt.Errorf("unknown logging format %q (want console, text or json)", c.Logging.Format)
	}

	if c.Storage.VoicesDir == "" || c.Storage.OutputsDir == "" {
		return errors.New("storage voices_dir and outputs_dir are required")
	}

	switch c.Storage.JobStore {
	case StoreFile:
		if c.Storage.JobsDir == "" {
			return errors.New("storage jobs_dir is required for the file job store")
		}
	case StorePostgres:
		if err := c.validateDatabase(); err != nil {
			return err
		}
	case StoreRedis:
		if len(c.Redis.Addrs) == 0 {
			return errors.New("redis addrs are required for the redis job store")
		}
	case StoreNATS:
		if c.NATS.URL == "" {
			return errors.New("nats url is required for the nats job store")
		}
	default:
		return fmt.Errorf("unknown job store %q (want %s, %s, %s or %s)", c.Storage.JobStore, StoreFile, StorePostgres, StoreRedis, StoreNATS)
	}

	switch c.Queue.Driver {
	case QueueMemory:
	case QueueRabbitMQ:
		if err := c.validateRabbitMQ(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown queue driver %q (want %s or %s)", c.Queue.Driver, QueueMemory, QueueRabbitMQ)
	}

	if c.Submission.DefaultLanguage != "" && len(c.Submission.SupportedLanguages) > 0 &&
		!slices.Contains(c.Submission.SupportedLanguages, c.Submission.DefaultLanguage) {
		return fmt.Errorf("default language %q is not in supported_languages", c.Submission.DefaultLanguage)
	}

	return nil
}

// ValidateAPIConfig checks the configuration of the API service. With the in-memory
// queue the API process also runs the worker, so the worker sections are checked too.
func (c *Config) ValidateAPIConfig() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Queue.Driver == QueueMemory {
		return c.validateWorker()
	}
	return nil
}

// ValidateWorkerConfig checks the configuration of the standalone worker service,
// which only makes sense with a shared queue
func (c *Config) ValidateWorkerConfig() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Queue.Driver != QueueRabbitMQ {
		return fmt.Errorf("worker service requires the %s queue driver, got %q", QueueRabbitMQ, c.Queue.Driver)
	}
	return c.validateWorker()
}

func (c *Config) validateWorker() error {
	if c.Engine.BaseURL == "" {
		return errors.New("engine base_url is required")
	}
	if c.Worker.Concurrency <= 0 {
		return errors.New("worker concurrency must be greater than 0")
	}
	if c.Worker.ChunkSize <= 0 {
		return errors.New("worker chunk_size must be greater than 0")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Host == "" {
		return errors.New("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return errors.New("database name is required")
	}

	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Host == "" {
		return errors.New("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return errors.New("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return errors.New("rabbitmq queue name is required")
	}

	return nil
}
