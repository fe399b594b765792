package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	dErrors "kycproxy/pkg/domain-errors"
	"kycproxy/pkg/validation"
)

// Config is read once in main and passed to constructors.
type Config struct {
	Server       Server
	Database     Database
	Redis        Redis
	Kafka        Kafka
	Quickscan    Quickscan
	Sessions     Sessions
	Verification Verification
	Uploads      Uploads
	RateLimit    RateLimit
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string        `validate:"required"`
	Environment       string        `validate:"oneof=development staging production"`
	LogLevel          slog.Level    `validate:"-"`
	ReadHeaderTimeout time.Duration `validate:"gt=0"`
	RequestTimeout    time.Duration `validate:"gt=0"`
	ShutdownTimeout   time.Duration `validate:"gt=0"`
	TracingEnabled    bool
	TrustProxyHeaders bool

	// OTLPEndpoint is the gRPC collector address; empty keeps spans in-process.
	OTLPEndpoint string
}

// Database is optional; an empty URL selects the in-memory record store.
type Database struct {
	URL             string
	MaxOpenConns    int           `validate:"gte=1"`
	MaxIdleConns    int           `validate:"gte=0"`
	ConnMaxLifetime time.Duration `validate:"gte=0"`
}

// Redis is optional; an empty URL disables the lookup cache.
type Redis struct {
	URL          string
	PoolSize     int           `validate:"gte=1"`
	MinIdleConns int           `validate:"gte=0"`
	DialTimeout  time.Duration `validate:"gt=0"`
	ReadTimeout  time.Duration `validate:"gt=0"`
	WriteTimeout time.Duration `validate:"gt=0"`
}

// Kafka is optional; empty brokers route audit events to the log only.
type Kafka struct {
	Brokers         string
	Topic           string `validate:"required_with=Brokers"`
	Acks            string `validate:"oneof=0 1 all"`
	Retries         int    `validate:"gte=0"`
	DeliveryTimeout time.Duration
}

// Quickscan configures the document-scan provider.
type Quickscan struct {
	BaseURL string        `validate:"required,http_url"`
	APIKey  string        `validate:"required"`
	Timeout time.Duration `validate:"gt=0"`
}

// Sessions configures the hosted verification-session provider.
type Sessions struct {
	BaseURL     string        `validate:"required,http_url"`
	APIKey      string        `validate:"required"`
	Timeout     time.Duration `validate:"gt=0"`
	CallbackURL string        `validate:"omitempty,http_url"`
}

// Verification holds pipeline policy.
type Verification struct {
	MinAge            int           `validate:"gte=0"`
	ImageBaseURL      string        `validate:"required"`
	HandleMaxAttempts int           `validate:"gte=1"`
	LookupCacheTTL    time.Duration `validate:"gte=0"`
}

// Uploads controls where multipart documents are staged.
type Uploads struct {
	Dir           string        `validate:"required"`
	MaxBytes      int64         `validate:"gt=0"`
	OrphanTTL     time.Duration `validate:"gt=0"`
	SweepInterval time.Duration `validate:"gt=0"`
}

// RateLimit caps vendor-backed requests per client IP. Requests <= 0 disables it.
// Counters live in Redis when it is configured.
type RateLimit struct {
	Requests int           `validate:"gte=0"`
	Window   time.Duration `validate:"gt=0"`
}

// Default returns the configuration used when no environment overrides are set.
func Default() Config {
	return Config{
		Server: Server{
			Addr:              ":8080",
			Environment:       "development",
			LogLevel:          slog.LevelInfo,
			ReadHeaderTimeout: 10 * time.Second,
			RequestTimeout:    60 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		Database: Database{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: Redis{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: Kafka{
			Topic:           "kycproxy.audit",
			Acks:            "all",
			Retries:         3,
			DeliveryTimeout: 30 * time.Second,
		},
		Quickscan: Quickscan{
			Timeout: 30 * time.Second,
		},
		Sessions: Sessions{
			Timeout: 15 * time.Second,
		},
		Verification: Verification{
			MinAge:            19,
			ImageBaseURL:      "/static/images",
			HandleMaxAttempts: 3,
			LookupCacheTTL:    5 * time.Minute,
		},
		Uploads: Uploads{
			Dir:           filepath.Join(os.TempDir(), "kycproxy-uploads"),
			MaxBytes:      20 << 20,
			OrphanTTL:     15 * time.Minute,
			SweepInterval: 5 * time.Minute,
		},
		RateLimit: RateLimit{
			Requests: 30,
			Window:   time.Minute,
		},
	}
}

// FromEnv builds a Config from environment variables over Default and validates it.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	e := env{lookup: lookup}

	e.str("KYCPROXY_ADDR", &cfg.Server.Addr)
	e.str("ENVIRONMENT", &cfg.Server.Environment)
	e.level("LOG_LEVEL", &cfg.Server.LogLevel)
	e.duration("SERVER_READ_HEADER_TIMEOUT", &cfg.Server.ReadHeaderTimeout)
	e.duration("REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)
	e.duration("SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	e.boolean("TRACING_ENABLED", &cfg.Server.TracingEnabled)
	e.boolean("TRUST_PROXY_HEADERS", &cfg.Server.TrustProxyHeaders)
	e.str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Server.OTLPEndpoint)

	e.str("DATABASE_URL", &cfg.Database.URL)
	e.integer("DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)
	e.integer("DB_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns)
	e.duration("DB_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime)

	e.str("REDIS_URL", &cfg.Redis.URL)
	e.integer("REDIS_POOL_SIZE", &cfg.Redis.PoolSize)
	e.integer("REDIS_MIN_IDLE_CONNS", &cfg.Redis.MinIdleConns)

	e.str("KAFKA_BROKERS", &cfg.Kafka.Brokers)
	e.str("KAFKA_AUDIT_TOPIC", &cfg.Kafka.Topic)
	e.str("KAFKA_ACKS", &cfg.Kafka.Acks)
	e.integer("KAFKA_RETRIES", &cfg.Kafka.Retries)
	e.duration("KAFKA_DELIVERY_TIMEOUT", &cfg.Kafka.DeliveryTimeout)

	e.str("QUICKSCAN_BASE_URL", &cfg.Quickscan.BaseURL)
	e.str("QUICKSCAN_API_KEY", &cfg.Quickscan.APIKey)
	e.duration("QUICKSCAN_TIMEOUT", &cfg.Quickscan.Timeout)

	e.str("SESSIONS_BASE_URL", &cfg.Sessions.BaseURL)
	e.str("SESSIONS_API_KEY", &cfg.Sessions.APIKey)
	e.duration("SESSIONS_TIMEOUT", &cfg.Sessions.Timeout)
	e.str("SESSIONS_CALLBACK_URL", &cfg.Sessions.CallbackURL)

	e.integer("DOC_VERIFY_MIN_AGE", &cfg.Verification.MinAge)
	e.str("IMAGE_BASE_URL", &cfg.Verification.ImageBaseURL)
	e.integer("HANDLE_MAX_ATTEMPTS", &cfg.Verification.HandleMaxAttempts)
	e.duration("LOOKUP_CACHE_TTL", &cfg.Verification.LookupCacheTTL)

	e.str("UPLOAD_DIR", &cfg.Uploads.Dir)
	e.int64("MAX_UPLOAD_BYTES", &cfg.Uploads.MaxBytes)
	e.duration("UPLOAD_ORPHAN_TTL", &cfg.Uploads.OrphanTTL)
	e.duration("UPLOAD_SWEEP_INTERVAL", &cfg.Uploads.SweepInterval)

	e.integer("RATE_LIMIT_REQUESTS", &cfg.RateLimit.Requests)
	e.duration("RATE_LIMIT_WINDOW", &cfg.RateLimit.Window)

	if err := errors.Join(e.errs...); err != nil {
		return Config{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid environment: "+err.Error())
	}
	cfg.Verification.ImageBaseURL = strings.TrimRight(cfg.Verification.ImageBaseURL, "/")
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section and reports the first failure with its section name.
func (c Config) Validate() error {
	sections := []struct {
		name string
		v    any
	}{
		{"server", c.Server},
		{"database", c.Database},
		{"redis", c.Redis},
		{"kafka", c.Kafka},
		{"quickscan", c.Quickscan},
		{"sessions", c.Sessions},
		{"verification", c.Verification},
		{"uploads", c.Uploads},
		{"rate_limit", c.RateLimit},
	}
	for _, s := range sections {
		if err := validation.Validate(s.v); err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("%s config: %s", s.name, err.Error()))
		}
	}
	return nil
}

type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *env) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *env) duration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
}

func (e *env) integer(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (e *env) int64(key string, dst *int64) {
	if v, ok := e.get(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (e *env) boolean(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}
}

func (e *env) level(key string, dst *slog.Level) {
	if v, ok := e.get(key); ok {
		if err := dst.UnmarshalText([]byte(v)); err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		}
	}
}
