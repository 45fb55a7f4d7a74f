package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	AllowedOrigins []string // CORS allowed origins
	TrustedProxies []string // IPs or CIDRs whose forwarding headers are believed
	LogLevel       string
	LogFile        string // empty logs to stderr only

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string

	StoreDriver        string // "dynamo" | "sqlite"
	NotificationsTable string
	SQLitePath         string

	RedisAddr     string // empty disables the unread-count cache
	RedisPassword string
	RedisDB       int
	UnreadTTL     time.Duration

	KafkaBrokers       []string
	KafkaGroupID       string
	KafkaClientID      string
	KafkaTopicPrefix   string
	KafkaEnsureTopics  bool
	KafkaPartitions    int
	KafkaReplication   int
	DeadLetterBucket   string // empty disables the S3 dead-letter archive

	DeliveryDriver   string // "log" | "smtp" | "sns"
	DeliveryTimeout  time.Duration
	SMTPHost         string
	SMTPPort         string
	SMTPFrom         string
	SMTPUsername     string
	SMTPPassword     string
	EmailAddressTmpl string // fmt template receiving the user id
	SNSTopicARN      string

	DirectoryURL      string
	DirectoryPageSize int
	DirectoryTimeout  time.Duration
	DirectoryPageRPS  float64

	BroadcastWorkers int

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	OTLPEndpoint string
	ServiceName  string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "8085"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", ""),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),

		StoreDriver:        getEnv("STORE_DRIVER", "dynamo"),
		NotificationsTable: getEnv("DYNAMO_TABLE_NOTIFICATIONS", "notifications"),
		SQLitePath:         getEnv("SQLITE_PATH", "./notifications.db"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		UnreadTTL:     getEnvDuration("UNREAD_COUNT_TTL", 5*time.Minute),

		KafkaBrokers:      splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "notification-service"),
		KafkaClientID:     getEnv("KAFKA_CLIENT_ID", "notification-service"),
		KafkaTopicPrefix:  getEnv("KAFKA_TOPIC_PREFIX", ""),
		KafkaEnsureTopics: getEnvBool("KAFKA_ENSURE_TOPICS", false),
		KafkaPartitions:   getEnvInt("KAFKA_PARTITIONS", 3),
		KafkaReplication:  getEnvInt("KAFKA_REPLICATION", 1),
		DeadLetterBucket:  getEnv("DEAD_LETTER_BUCKET", ""),

		DeliveryDriver:   getEnv("DELIVERY_DRIVER", "log"),
		DeliveryTimeout:  getEnvDuration("DELIVERY_TIMEOUT", 10*time.Second),
		SMTPHost:         getEnv("SMTP_HOST", "localhost"),
		SMTPPort:         getEnv("SMTP_PORT", "1025"),
		SMTPFrom:         getEnv("SMTP_FROM", "noreply@library-system.edu"),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		EmailAddressTmpl: getEnv("EMAIL_ADDRESS_TEMPLATE", "user%s@university.edu"),
		SNSTopicARN:      getEnv("SNS_TOPIC_ARN", ""),

		DirectoryURL:      getEnv("USER_SERVICE_URL", "http://localhost:8081"),
		DirectoryPageSize: getEnvInt("USER_DIRECTORY_PAGE_SIZE", 200),
		DirectoryTimeout:  getEnvDuration("USER_DIRECTORY_TIMEOUT", 5*time.Second),
		DirectoryPageRPS:  getEnvFloat("USER_DIRECTORY_PAGE_RPS", 20),

		BroadcastWorkers: clamp(getEnvInt("BROADCAST_WORKERS", 8), 1, 64),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         getEnvDuration("JWT_EXPIRY", 24*time.Hour),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:  getEnv("OTEL_SERVICE_NAME", "notification-service"),
	}
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "dynamo", "sqlite":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.DeliveryDriver {
	case "log", "smtp":
	case "sns":
		if c.SNSTopicARN == "" {
			return fmt.Errorf("SNS_TOPIC_ARN is required when DELIVERY_DRIVER=sns")
		}
	default:
		return fmt.Errorf("unknown DELIVERY_DRIVER %q", c.DeliveryDriver)
	}
	if c.DeliveryTimeout <= 0 || c.DirectoryTimeout <= 0 {
		return fmt.Errorf("delivery and directory timeouts must be positive")
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is empty")
	}
	return nil
}

// Topic returns the bus topic carrying events of the given kind.
func (c *Config) Topic(kind string) string {
	return c.KafkaTopicPrefix + kind
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
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

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
