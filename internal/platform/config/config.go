// Package config builds runtime configuration from environment variables so
// main stays lean.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full server configuration.
type Config struct {
	Addr          string `env:"GATEPASS_ADDR" envDefault:":8080"`
	JWTSigningKey string `env:"GATEPASS_JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`

	// DatabaseURL empty means in-memory stores (dev mode, tests).
	DatabaseURL string `env:"GATEPASS_DATABASE_URL"`

	// SequenceBackend selects the atomic counter implementation:
	// "postgres" (default), "redis", or "memory".
	SequenceBackend string `env:"GATEPASS_SEQUENCE_BACKEND" envDefault:"postgres"`

	// SequenceWidth is the zero-pad width of the printed sequence number.
	SequenceWidth int `env:"GATEPASS_SEQUENCE_WIDTH" envDefault:"4"`

	ShutdownTimeout time.Duration `env:"GATEPASS_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Redis    RedisConfig    `envPrefix:"GATEPASS_REDIS_"`
	Kafka    KafkaConfig    `envPrefix:"GATEPASS_KAFKA_"`
	Operator OperatorConfig `envPrefix:"GATEPASS_OPERATOR_"`
}

// OperatorConfig configures the operator login for the admin surface.
// PasswordHash is a bcrypt hash; empty email or hash disables the token
// endpoint and tokens must be minted out of band.
type OperatorConfig struct {
	Email        string        `env:"EMAIL"`
	PasswordHash string        `env:"PASSWORD_HASH"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
}

// RedisConfig configures the optional Redis client (sequence backend and
// exhibition count cache). Empty URL disables Redis.
type RedisConfig struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
}

// KafkaConfig configures the audit outbox relay and consumer. Empty broker
// list disables Kafka; audit events then stay in the outbox table.
type KafkaConfig struct {
	Brokers       []string `env:"BROKERS" envSeparator:","`
	ConsumerGroup string   `env:"CONSUMER_GROUP" envDefault:"gatepass-audit"`
}

// FromEnv parses configuration from the environment.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	switch cfg.SequenceBackend {
	case "postgres", "redis", "memory":
	default:
		return Config{}, fmt.Errorf("unknown sequence backend %q", cfg.SequenceBackend)
	}
	return cfg, nil
}
