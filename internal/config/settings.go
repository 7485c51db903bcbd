package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Compile time variables are set by -ldflags.
var (
	ServiceVersion string
	CommitSHA      string
)

const (
	BackendSysV     = "sysv"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendAMQP     = "amqp"
)

type (
	ServiceConfig struct {
		AppConfig      AppConfig            `json:"app_config"`
		Logging        LoggingConfig        `json:"logging"`
		Telemetry      Telemetry            `json:"telemetry"`
		SecretStorage  SecretStorageConfig  `json:"secret_storage"`
		HTTPServer     HTTPServerConfig     `json:"http_server"`
		Queue          QueueConfig          `json:"queue"`
		SysV           SysVConfig           `json:"sysv"`
		Cache          CacheConfig          `json:"cache"`
		Storage        StorageConfig        `json:"storage"`
		AMQP           AMQPConfig           `json:"amqp"`
		Backoff        BackoffConfig        `json:"backoff"`
		CircuitBreaker CircuitBreakerConfig `envconfig:"CIRCUIT_BREAKER" json:"circuit_breaker"`
		Sweeper        SweeperConfig        `json:"sweeper"`

		ThrottledRateLimiting ThrottledRateLimitingConfig `json:"throttled_rate_limiting"`
	}

	AppConfig struct {
		ServiceName    string `envconfig:"APP_SERVICE_NAME" default:"svc-msg-queue" json:"service_name"`
		ServiceVersion string `envconfig:"APP_SERVICE_VERSION" default:"0.0.0" json:"service_version"`
		CommitSHA      string `envconfig:"APP_COMMIT_SHA" default:"unknown" json:"commit_sha"`
		Env            string `envconfig:"APP_ENVIRONMENT" default:"unknown" json:"env"`
	}

	LoggingConfig struct {
		Level     string          `envconfig:"LOGGING_LEVEL" default:"info" json:"level"`
		Format    string          `envconfig:"LOGGING_FORMAT" default:"json" json:"format"`
		AccessLog AccessLogConfig `json:"access_log"`
	}

	AccessLogConfig struct {
		Enabled         bool `envconfig:"LOGGING_ACCESS_LOG_ENABLED" default:"true" json:"enabled"`
		LogHealthChecks bool `envconfig:"LOGGING_ACCESS_LOG_HEALTH_CHECKS" default:"false" json:"log_health_checks"`
	}

	Telemetry struct {
		ExporterType string `envconfig:"OTEL_EXPORTER" default:"grpc" json:"exporter_type"`

		OtelGRPCHost       string `envconfig:"OTEL_HOST" json:"otel_grpc_host"`
		OtelGRPCPort       string `envconfig:"OTEL_PORT" default:"4317" json:"otel_grpc_port"`
		OtelProductCluster string `envconfig:"OTEL_PRODUCT_CLUSTER" json:"otel_product_cluster"`

		Metrics Metrics `json:"metrics"`
		Traces  Traces  `json:"traces"`
	}

	Metrics struct {
		Enabled bool `envconfig:"METRICS_ENABLED" default:"false" json:"enabled"`
	}

	Traces struct {
		Enabled      bool    `envconfig:"TRACES_ENABLED" default:"false" json:"enabled"`
		SamplerRatio float64 `envconfig:"TRACES_SAMPLER_RATIO" default:"1" json:"sampler_ratio"`
	}

	SecretStorageConfig struct {
		Enabled       bool          `envconfig:"VAULT_ENABLED" default:"false" json:"enabled"`
		Address       string        `envconfig:"VAULT_ADDRESS" default:"http://vault:8200" json:"address"`
		Token         string        `envconfig:"VAULT_TOKEN" default:"" json:"token,omitempty"`
		RoleID        string        `envconfig:"VAULT_ROLE_ID" default:"" json:"role_id,omitempty"`
		SecretID      string        `envconfig:"VAULT_SECRET_ID" default:"" json:"secret_id,omitempty"`
		AuthMethod    string        `envconfig:"VAULT_AUTH_METHOD" default:"token" json:"auth_method"`
		MountPath     string        `envconfig:"VAULT_MOUNT_PATH" default:"svc-msg-queue" json:"mount_path"`
		Namespace     string        `envconfig:"VAULT_NAMESPACE" default:"" json:"namespace,omitempty"`
		Timeout       time.Duration `envconfig:"VAULT_TIMEOUT" default:"30s" json:"timeout"`
		MaxRetries    int           `envconfig:"VAULT_MAX_RETRIES" default:"3" json:"max_retries"`
		TLSSkipVerify bool          `envconfig:"VAULT_TLS_SKIP_VERIFY" default:"false" json:"tls_skip_verify"`
		PollInterval  time.Duration `envconfig:"VAULT_POLL_INTERVAL" default:"24h" json:"poll_interval"`
	}

	HTTPServerConfig struct {
		Port            int           `envconfig:"HTTP_SERVER_PORT" default:"8088" json:"port"`
		Host            string        `envconfig:"HTTP_SERVER_HOST" default:"0.0.0.0" json:"host"`
		ReadTimeout     time.Duration `envconfig:"HTTP_SERVER_READ_TIMEOUT" default:"30s" json:"read_timeout"`
		WriteTimeout    time.Duration `envconfig:"HTTP_SERVER_WRITE_TIMEOUT" default:"30s" json:"write_timeout"`
		IdleTimeout     time.Duration `envconfig:"HTTP_SERVER_IDLE_TIMEOUT" default:"120s" json:"idle_timeout"`
		ShutdownTimeout time.Duration `envconfig:"HTTP_SERVER_SHUTDOWN_TIMEOUT" default:"30s" json:"shutdown_timeout"`
	}

	// QueueConfig selects the backend and names the queue.
	QueueConfig struct {
		Backend  string `envconfig:"QUEUE_BACKEND" default:"sysv" json:"backend"`
		ID       string `envconfig:"QUEUE_ID" default:"a" json:"id"`
		Label    string `envconfig:"QUEUE_LABEL" default:"default" json:"label"`
		Category string `envconfig:"QUEUE_CATEGORY" default:"" json:"category,omitempty"`
		// SenderID stamps puts that carry no sender of their own.
		SenderID string `envconfig:"QUEUE_SENDER_ID" default:"" json:"sender_id,omitempty"`
	}

	SysVConfig struct {
		KeyPath        string      `envconfig:"SYSV_KEY_PATH" default:"/tmp" json:"key_path"`
		Permissions    Permissions `envconfig:"SYSV_PERMISSIONS" default:"0666" json:"permissions"`
		MaxMessageSize int         `envconfig:"SYSV_MAX_MESSAGE_SIZE" default:"8192" json:"max_message_size"`
	}

	CacheConfig struct {
		Addr         string        `envconfig:"REDIS_ADDR" default:"redis:6379" json:"addr"`
		Password     string        `envconfig:"REDIS_PASSWORD" default:"" json:"password,omitempty"`
		DB           int           `envconfig:"REDIS_DB" default:"0" json:"db"`
		KeyPrefix    string        `envconfig:"REDIS_KEY_PREFIX" default:"queue:" json:"key_prefix"`
		PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10" json:"pool_size"`
		MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"3" json:"min_idle_conns"`
		DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s" json:"dial_timeout"`
		ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s" json:"read_timeout"`
		WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s" json:"write_timeout"`
		PoolTimeout  time.Duration `envconfig:"REDIS_POOL_TIMEOUT" default:"5s" json:"pool_timeout"`
		MaxRetries   int           `envconfig:"REDIS_MAX_RETRIES" default:"3" json:"max_retries"`
	}

	StorageConfig struct {
		Host            string        `envconfig:"POSTGRES_HOST" default:"postgres" json:"host"`
		Port            int           `envconfig:"POSTGRES_PORT" default:"5432" json:"port"`
		Database        string        `envconfig:"POSTGRES_DATABASE" default:"msg_queue" json:"database"`
		Username        string        `envconfig:"POSTGRES_USERNAME" default:"postgres" json:"username"`
		Password        string        `envconfig:"POSTGRES_PASSWORD" default:"" json:"password,omitempty"`
		SSLMode         string        `envconfig:"POSTGRES_SSL_MODE" default:"disable" json:"ssl_mode"`
		MaxOpenConns    int           `envconfig:"POSTGRES_MAX_OPEN_CONNS" default:"25" json:"max_open_conns"`
		MaxIdleConns    int           `envconfig:"POSTGRES_MAX_IDLE_CONNS" default:"5" json:"max_idle_conns"`
		ConnMaxLifetime time.Duration `envconfig:"POSTGRES_CONN_MAX_LIFETIME" default:"5m" json:"conn_max_lifetime"`
		ConnMaxIdleTime time.Duration `envconfig:"POSTGRES_CONN_MAX_IDLE_TIME" default:"5m" json:"conn_max_idle_time"`
		ConnectTimeout  time.Duration `envconfig:"POSTGRES_CONNECT_TIMEOUT" default:"10s" json:"connect_timeout"`
		QueryTimeout    time.Duration `envconfig:"POSTGRES_QUERY_TIMEOUT" default:"30s" json:"query_timeout"`
		AutoMigrate     bool          `envconfig:"POSTGRES_AUTO_MIGRATE" default:"true" json:"auto_migrate"`
	}

	AMQPConfig struct {
		Host              string        `envconfig:"RABBITMQ_HOST" default:"rabbitmq" json:"host"`
		Port              int           `envconfig:"RABBITMQ_PORT" default:"5672" json:"port"`
		Username          string        `envconfig:"RABBITMQ_USERNAME" default:"guest" json:"username"`
		Password          string        `envconfig:"RABBITMQ_PASSWORD" default:"" json:"password,omitempty"`
		VirtualHost       string        `envconfig:"RABBITMQ_VIRTUAL_HOST" default:"/" json:"virtual_host"`
		QueuePrefix       string        `envconfig:"RABBITMQ_QUEUE_PREFIX" default:"queue." json:"queue_prefix"`
		PublishingTimeout time.Duration `envconfig:"RABBITMQ_PUBLISHING_TIMEOUT" default:"3s" json:"publishing_timeout"`
	}

	BackoffConfig struct {
		// BaseDelay is the amount of time to backoff after the first failure.
		BaseDelay time.Duration `envconfig:"BACKOFF_BASE_DELAY" default:"50ms" json:"base_delay"`
		// Multiplier is the factor with which to multiply backoffs after a
		// failed retry. Should ideally be greater than 1.
		Multiplier float64 `envconfig:"BACKOFF_MULTIPLIER" default:"1.6" json:"multiplier"`
		// Jitter is the factor with which backoffs are randomized.
		Jitter float64 `envconfig:"BACKOFF_JITTER" default:"0.2" json:"jitter"`
		// MaxDelay is the upper bound of backoff delay.
		MaxDelay time.Duration `envconfig:"BACKOFF_MAX_DELAY" default:"1s" json:"max_delay"`
	}

	CircuitBreakerConfig struct {
		Enabled     bool          `envconfig:"ENABLED" default:"true" json:"enabled"`
		MaxRequests uint32        `envconfig:"MAX_REQUESTS" default:"3" json:"max_requests"`
		Interval    time.Duration `envconfig:"INTERVAL" default:"10s" json:"interval"`
		Timeout     time.Duration `envconfig:"TIMEOUT" default:"60s" json:"timeout"`
		// FailureThreshold is the number of consecutive failures opening the breaker.
		FailureThreshold uint32 `envconfig:"FAILURE_THRESHOLD" default:"5" json:"failure_threshold"`
	}

	SweeperConfig struct {
		Enabled  bool          `envconfig:"SWEEPER_ENABLED" default:"true" json:"enabled"`
		Interval time.Duration `envconfig:"SWEEPER_INTERVAL" default:"30s" json:"interval"`
	}

	ThrottledRateLimitingConfig struct {
		Enabled           bool `envconfig:"RATE_LIMITING_ENABLED" default:"true" json:"enabled"`
		RequestsPerSecond int  `envconfig:"RATE_LIMITING_REQUESTS_PER_SECOND" default:"50" json:"requests_per_second"`
		BurstSize         int  `envconfig:"RATE_LIMITING_BURST_SIZE" default:"100" json:"burst_size"`
		EnableIPLimiting  bool `envconfig:"RATE_LIMITING_ENABLE_IP_LIMITING" default:"true" json:"enable_ip_limiting"`
		// EnableSenderLimiting keys the quota on the X-Sender-ID header as well.
		EnableSenderLimiting bool     `envconfig:"RATE_LIMITING_ENABLE_SENDER_LIMITING" default:"true" json:"enable_sender_limiting"`
		MaxKeys              int      `envconfig:"RATE_LIMITING_MAX_KEYS" default:"1000" json:"max_keys"`
		SkipPaths            []string `envconfig:"RATE_LIMITING_SKIP_PATHS" default:"/health,/readyz,/livez,/metrics" json:"skip_paths"`
	}
)

// Permissions are file permission bits written as an octal string, e.g. "0666".
type Permissions os.FileMode

// Decode implements envconfig.Decoder.
func (p *Permissions) Decode(value string) error {
	bits, err := strconv.ParseUint(value, 8, 32)
	if err != nil {
		return fmt.Errorf("invalid permissions %q: %w", value, err)
	}

	if os.FileMode(bits)&^os.ModePerm != 0 {
		return fmt.Errorf("invalid permissions %q: only permission bits are allowed", value)
	}

	*p = Permissions(bits)

	return nil
}

func (p Permissions) String() string {
	return fmt.Sprintf("%#o", uint32(p))
}

// FileMode returns the permissions as os.FileMode.
func (p Permissions) FileMode() os.FileMode {
	return os.FileMode(p)
}
