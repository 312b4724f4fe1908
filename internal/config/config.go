package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

type Config struct {
	Env             string        `env:"ENV" envDefault:"development"`
	HTTPPort        string        `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`

	// InventoryURL is the storefront API serving stock/{id} and products/{id}.
	// When empty the catalog fixture at InventoryCatalog is served from memory.
	InventoryURL     string        `env:"INVENTORY_URL"`
	InventoryCatalog string        `env:"INVENTORY_CATALOG" envDefault:"server.json"`
	InventoryTimeout time.Duration `env:"INVENTORY_TIMEOUT" envDefault:"5s"`

	CartKey        string        `env:"CART_KEY" envDefault:"cart-storage"`
	StorageBackend string        `env:"STORAGE_BACKEND" envDefault:"sqlite"`
	SQLitePath     string        `env:"SQLITE_PATH" envDefault:"cart.db"`
	RedisAddr      string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisTTL       time.Duration `env:"REDIS_TTL" envDefault:"0s"`
	MongoURI       string        `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDBName    string        `env:"MONGO_DB_NAME" envDefault:"cartdb"`

	// Sessions idle for SessionIdleTimeout are dropped from memory
	SessionIdleTimeout   time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`

	// Notifications are published to Kafka only when brokers are set
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"cart-notifications"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendMemory, BackendSQLite, BackendRedis, BackendMongo:
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	if c.CartKey == "" {
		return fmt.Errorf("CART_KEY must not be empty")
	}
	if c.InventoryTimeout <= 0 {
		return fmt.Errorf("INVENTORY_TIMEOUT must be positive")
	}
	if c.SessionIdleTimeout <= 0 || c.SessionSweepInterval <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT and SESSION_SWEEP_INTERVAL must be positive")
	}
	return nil
}
