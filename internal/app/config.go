package app

import (
	"time"

	"github.com/yungbote/coursegate-backend/internal/data/db"
	"github.com/yungbote/coursegate-backend/internal/observability"
	"github.com/yungbote/coursegate-backend/internal/platform/envutil"
	"github.com/yungbote/coursegate-backend/internal/platform/gcp"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
	"github.com/yungbote/coursegate-backend/internal/platform/sendgrid"
	"github.com/yungbote/coursegate-backend/internal/platform/validate"
	"github.com/yungbote/coursegate-backend/internal/realtime/bus"
	"github.com/yungbote/coursegate-backend/internal/services"
)

type Config struct {
	Env             string
	Version         string
	Address         string
	ShutdownTimeout time.Duration
	AllowedOrigins  []string

	JWTSecretKey string
	JWTIssuer    string

	Postgres db.PostgresConfig
	Redis    bus.RedisConfig
	Storage  gcp.ObjectStorageConfig
	SendGrid sendgrid.Config

	PhonePattern string
	PaymentProof services.PaymentProofConfig

	MetricsEnabled         bool
	MetricsAddr            string
	MetricsCollectInterval time.Duration
	Otel                   observability.OtelConfig
}

func LoadConfig(log *logger.Logger) Config {
	env := envutil.String("APP_ENV", "development")
	version := envutil.String("APP_VERSION", "dev")

	cfg := Config{
		Env:             env,
		Version:         version,
		Address:         ":" + envutil.String("PORT", "8080"),
		ShutdownTimeout: envutil.Duration("SHUTDOWN_TIMEOUT", 15*time.Second),
		AllowedOrigins:  envutil.List("CORS_ALLOWED_ORIGINS", nil),

		JWTSecretKey: envutil.String("JWT_SECRET_KEY", ""),
		JWTIssuer:    envutil.String("JWT_ISSUER", ""),

		Postgres: db.PostgresConfig{
			Host:            envutil.String("POSTGRES_HOST", "localhost"),
			Port:            envutil.String("POSTGRES_PORT", "5432"),
			User:            envutil.String("POSTGRES_USER", "postgres"),
			Password:        envutil.String("POSTGRES_PASSWORD", ""),
			Name:            envutil.String("POSTGRES_NAME", "coursegate"),
			SSLMode:         envutil.String("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    envutil.Int("POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envutil.Int("POSTGRES_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: envutil.Duration("POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: bus.RedisConfig{
			Addr:     envutil.String("REDIS_ADDR", ""),
			Password: envutil.String("REDIS_PASSWORD", ""),
			DB:       envutil.Int("REDIS_DB", 0),
			Channel:  envutil.String("REDIS_SSE_CHANNEL", "coursegate:sse"),
		},
		Storage: gcp.ObjectStorageConfig{
			Mode:            gcp.ObjectStorageMode(envutil.String("OBJECT_STORAGE_MODE", string(gcp.ObjectStorageModeGCS))),
			EmulatorHost:    envutil.String("STORAGE_EMULATOR_HOST", ""),
			Bucket:          envutil.String("PROOF_BUCKET_NAME", ""),
			PublicBaseURL:   envutil.String("OBJECT_STORAGE_PUBLIC_BASE_URL", ""),
			CredentialsJSON: envutil.String("GOOGLE_APPLICATION_CREDENTIALS_JSON", ""),
			CredentialsFile: envutil.String("GOOGLE_APPLICATION_CREDENTIALS", ""),
		},
		SendGrid: sendgrid.Config{
			APIKey:           envutil.String("SENDGRID_API_KEY", ""),
			BaseURL:          envutil.String("SENDGRID_BASE_URL", ""),
			DefaultFromEmail: envutil.String("SENDGRID_FROM_EMAIL", ""),
			DefaultFromName:  envutil.String("SENDGRID_FROM_NAME", "CourseGate"),
			Timeout:          envutil.Duration("SENDGRID_TIMEOUT", 30*time.Second),
			MaxRetries:       envutil.Int("SENDGRID_MAX_RETRIES", 2),
			RetryBackoff:     envutil.Duration("SENDGRID_RETRY_BACKOFF", time.Second),
		},

		PhonePattern: envutil.String("PHONE_PATTERN", validate.DefaultPhonePattern),
		PaymentProof: services.PaymentProofConfig{
			ImagePolicy: services.ProofImagePolicy{
				MaxBytes:     envutil.Int64("PROOF_MAX_IMAGE_BYTES", services.DefaultMaxProofImageBytes),
				AllowedTypes: envutil.List("PROOF_ALLOWED_TYPES", nil),
			},
			BulkConcurrency: envutil.Int("BULK_APPROVE_CONCURRENCY", 4),
			ImageURLTTL:     envutil.Duration("PROOF_IMAGE_URL_TTL", 15*time.Minute),
			Currency:        envutil.String("PAYMENT_CURRENCY", "EGP"),
		},

		MetricsEnabled:         envutil.Bool("METRICS_ENABLED", true),
		MetricsAddr:            envutil.String("METRICS_ADDR", ""),
		MetricsCollectInterval: envutil.Duration("METRICS_COLLECT_INTERVAL", 15*time.Second),
		Otel: observability.OtelConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", false),
			ServiceName: envutil.String("OTEL_SERVICE_NAME", "coursegate-api"),
			Environment: env,
			Version:     version,
			Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:     observability.ParseHeaders(envutil.String("OTEL_EXPORTER_OTLP_HEADERS", "")),
			Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRatio: envutil.Float("OTEL_TRACES_SAMPLER_ARG", 0.1),
		},
	}

	if cfg.JWTSecretKey == "" {
		log.Warn("JWT_SECRET_KEY is not set; every authenticated request will be rejected")
	}
	if cfg.Redis.Addr == "" {
		log.Info("REDIS_ADDR not set; SSE fan-out is limited to this replica")
	}
	if cfg.SendGrid.APIKey == "" {
		log.Info("SENDGRID_API_KEY not set; enrollment e-mails are disabled")
	}
	return cfg
}
