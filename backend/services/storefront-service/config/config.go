package config

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	aws_pkg "github.com/bloomsisters/storefront/backend/pkg/aws"
	"github.com/bloomsisters/storefront/backend/services/common/auth"
	"github.com/joho/godotenv"
)

// SecretName is the Secrets Manager entry that overrides sensitive settings.
const SecretName = "storefront/APP_SECRETS"

// Config holds all configuration for the storefront service.
type Config struct {
	Env  string
	Port string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	RedisURL string
	CartTTL  time.Duration

	JWTSecret      string
	JWTTTL         time.Duration
	GoogleClientID string
	AllowedOrigins string

	MidtransServerKey    string
	MidtransClientKey    string
	MidtransProduction   bool
	MidtransSnapURL      string
	MidtransAPIURL       string
	MidtransFinishURL    string
	PaymentSyncInterval  time.Duration
	PaymentSyncBatchSize int
	PaymentSyncDelay     time.Duration

	// Domain events
	EventsSNSTopicARN string
	KafkaBrokers      []string
	KafkaEventsTopic  string

	// SQS queue fed by the gateway notification topic
	PaymentNotificationQueueURL string

	CloudWatchMetrics  bool
	MetricsNamespace   string
	CloudWatchLogGroup string
}

// Load reads .env (when present) and the environment, applies the Secrets
// Manager override when AWS_USE_SECRETS=true, then validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := FromEnv()

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		awsCfg, err := aws_pkg.LoadAWSConfig(context.Background())
		if err != nil {
			return nil, fmt.Errorf("load aws config for secrets: %w", err)
		}
		if err := cfg.ApplySecrets(context.Background(), aws_pkg.NewSecretsClient(awsCfg)); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables only.
func FromEnv() *Config {
	return &Config{
		Env:  getEnv("APP_ENV", "development"),
		Port: getEnv("PORT", "8080"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "Asia/Jakarta"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		CartTTL:  getDuration("CART_TTL", 7*24*time.Hour),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTTTL:         getDuration("JWT_TTL", auth.DefaultTTL),
		GoogleClientID: os.Getenv("GOOGLE_CLIENT_ID"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),

		MidtransServerKey:    os.Getenv("MIDTRANS_SERVER_KEY"),
		MidtransClientKey:    os.Getenv("MIDTRANS_CLIENT_KEY"),
		MidtransProduction:   os.Getenv("MIDTRANS_IS_PRODUCTION") == "true",
		MidtransSnapURL:      os.Getenv("MIDTRANS_SNAP_URL"),
		MidtransAPIURL:       os.Getenv("MIDTRANS_API_URL"),
		MidtransFinishURL:    os.Getenv("MIDTRANS_FINISH_URL"),
		PaymentSyncInterval:  getDuration("PAYMENT_SYNC_INTERVAL", 5*time.Minute),
		PaymentSyncBatchSize: getInt("PAYMENT_SYNC_BATCH_SIZE", 5),
		PaymentSyncDelay:     getDuration("PAYMENT_SYNC_DELAY", time.Second),

		EventsSNSTopicARN: os.Getenv("EVENTS_SNS_TOPIC_ARN"),
		KafkaBrokers:      splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaEventsTopic:  getEnv("KAFKA_EVENTS_TOPIC", "storefront.events"),

		PaymentNotificationQueueURL: os.Getenv("PAYMENT_NOTIFICATION_QUEUE_URL"),

		CloudWatchMetrics:  os.Getenv("CLOUDWATCH_METRICS_ENABLED") == "true",
		MetricsNamespace:   getEnv("CLOUDWATCH_NAMESPACE", "BloomSisters"),
		CloudWatchLogGroup: os.Getenv("CLOUDWATCH_LOG_GROUP"),
	}
}

// ApplySecrets overrides credentials with values from the JSON secret.
// Missing or empty keys keep the environment value.
func (c *Config) ApplySecrets(ctx context.Context, getter aws_pkg.SecretGetter) error {
	m, err := aws_pkg.GetSecretMap(ctx, getter, SecretName)
	if err != nil {
		return fmt.Errorf("load %s: %w", SecretName, err)
	}

	overrides := map[string]*string{
		"POSTGRES_USER":       &c.PostgresUser,
		"POSTGRES_PASSWORD":   &c.PostgresPassword,
		"POSTGRES_DB":         &c.PostgresDB,
		"POSTGRES_HOST":       &c.PostgresHost,
		"POSTGRES_PORT":       &c.PostgresPort,
		"REDIS_URL":           &c.RedisURL,
		"JWT_SECRET":          &c.JWTSecret,
		"GOOGLE_CLIENT_ID":    &c.GoogleClientID,
		"MIDTRANS_SERVER_KEY": &c.MidtransServerKey,
		"MIDTRANS_CLIENT_KEY": &c.MidtransClientKey,
	}
	for key, dst := range overrides {
		if v, ok := m[key]; ok && v != "" {
			*dst = v
		}
	}
	return nil
}

// Validate reports every missing mandatory setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.PostgresUser == "" || c.PostgresPassword == "" || c.PostgresDB == "" || c.PostgresHost == "" {
		errs = append(errs, errors.New("database config incomplete"))
	}
	if len(strings.TrimSpace(c.JWTSecret)) < auth.MinSecretLength {
		errs = append(errs, auth.ErrSecretTooShort)
	}
	if c.MidtransServerKey == "" {
		errs = append(errs, errors.New("MIDTRANS_SERVER_KEY is required"))
	}
	if c.PaymentSyncBatchSize < 1 {
		errs = append(errs, errors.New("PAYMENT_SYNC_BATCH_SIZE must be positive"))
	}
	return errors.Join(errs...)
}

// PostgresDSN renders the libpq keyword/value connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
