package config

import (
	"fmt"
	"strings"
	"time"

	env "github.com/caarlos0/env/v11"
)

const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"

	VerifierRegistry = "registry"
	VerifierS3       = "s3"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env      string `env:"APP_ENV" envDefault:"dev"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"memory"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDB       string `env:"MONGO_DB" envDefault:"glampstay"`
	PostgresURL   string `env:"POSTGRES_URL"`

	IdempotencyDriver string        `env:"IDEMP_DRIVER" envDefault:"memory"`
	IdempotencyTTL    time.Duration `env:"IDEMP_TTL" envDefault:"168h"`
	RedisAddr         string        `env:"REDIS_ADDR"`
	RedisPassword     string        `env:"REDIS_PASSWORD"`
	RedisDB           int           `env:"REDIS_DB" envDefault:"0"`

	KafkaBrokers       []string        `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopicPrefix   string          `env:"KAFKA_TOPIC_PREFIX"`
	ReceiptTopic       string          `env:"RECEIPT_TOPIC" envDefault:"receipts.events.v1"`
	ReceiptGroup       string          `env:"RECEIPT_CONSUMER_GROUP" envDefault:"glampstay-settlement"`
	OutboxPollInterval time.Duration   `env:"OUTBOX_POLL_INTERVAL" envDefault:"500ms"`
	RetryBackoff       []time.Duration `env:"RETRY_BACKOFF" envSeparator:"," envDefault:"1s,5s,30s"`

	CancellationCutoff time.Duration `env:"CANCELLATION_CUTOFF" envDefault:"48h"`
	AgentRates         string        `env:"AGENT_RATES"`
	FinanceActors      []string      `env:"FINANCE_ACTORS" envSeparator:","`
	OperatorActors     []string      `env:"OPERATOR_ACTORS" envSeparator:","`

	ProofVerifier string `env:"PROOF_VERIFIER" envDefault:"registry"`
	S3Endpoint    string `env:"S3_ENDPOINT" envDefault:"http://localhost:9000"`
	S3AccessKey   string `env:"S3_ACCESS_KEY" envDefault:"minioadmin"`
	S3SecretKey   string `env:"S3_SECRET_KEY" envDefault:"minioadmin"`
	S3Bucket      string `env:"S3_BUCKET" envDefault:"glampstay-receipts"`
	S3UseSSL      bool   `env:"S3_USE_SSL" envDefault:"false"`
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

func parse(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	cfg.IdempotencyDriver = strings.ToLower(strings.TrimSpace(cfg.IdempotencyDriver))
	cfg.ProofVerifier = strings.ToLower(strings.TrimSpace(cfg.ProofVerifier))
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StorageDriver {
	case DriverMemory:
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("config: MONGO_URI is required for the mongo driver")
		}
	case DriverPostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("config: POSTGRES_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	switch c.IdempotencyDriver {
	case DriverMemory:
	case DriverMongo:
		if c.StorageDriver != DriverMongo {
			return fmt.Errorf("config: IDEMP_DRIVER=mongo requires STORAGE_DRIVER=mongo")
		}
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("config: REDIS_ADDR is required for the redis idempotency store")
		}
	default:
		return fmt.Errorf("config: unknown IDEMP_DRIVER %q", c.IdempotencyDriver)
	}
	switch c.ProofVerifier {
	case VerifierRegistry:
		if len(c.KafkaBrokers) == 0 && !c.IsDev() {
			return fmt.Errorf("config: KAFKA_BROKERS is required to receive receipt reviews")
		}
	case VerifierS3:
	default:
		return fmt.Errorf("config: unknown PROOF_VERIFIER %q", c.ProofVerifier)
	}
	if c.CancellationCutoff < 0 {
		return fmt.Errorf("config: CANCELLATION_CUTOFF must not be negative")
	}
	return nil
}

func (c Config) IsDev() bool {
	return c.Env == "dev" || c.Env == "local"
}
