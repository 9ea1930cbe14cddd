package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppName  string `mapstructure:"APP_NAME"`
	AppEnv   string `mapstructure:"APP_ENV"`
	Port     string `mapstructure:"PORT"`
	Timezone string `mapstructure:"APP_TIMEZONE"`

	// PostgreSQL. DATABASE_URL wins over the discrete fields when set.
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBHost            string        `mapstructure:"DB_HOST"`
	DBPort            int           `mapstructure:"DB_PORT"`
	DBUser            string        `mapstructure:"DB_USER"`
	DBPassword        string        `mapstructure:"DB_PASSWORD"`
	DBName            string        `mapstructure:"DB_NAME"`
	DBSSLMode         string        `mapstructure:"DB_SSL_MODE"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`

	JWTSecret          string        `mapstructure:"JWT_SECRET"`
	JWTTTL             time.Duration `mapstructure:"JWT_TTL"`
	SessionIdleTimeout time.Duration `mapstructure:"SESSION_IDLE_TIMEOUT"`

	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogEncoding string `mapstructure:"LOG_ENCODING"`

	CheckoutLockTimeout time.Duration `mapstructure:"CHECKOUT_LOCK_TIMEOUT"`
	IdempotencyTTL      time.Duration `mapstructure:"IDEMPOTENCY_TTL"`
	LowStockThreshold   int           `mapstructure:"LOW_STOCK_THRESHOLD"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	KafkaBrokers    []string `mapstructure:"KAFKA_BROKERS"`
	KafkaSalesTopic string   `mapstructure:"KAFKA_SALES_TOPIC"`

	RabbitMQURL      string `mapstructure:"RABBITMQ_URL"`
	RabbitMQExchange string `mapstructure:"RABBITMQ_EXCHANGE"`

	SeedAdminEmail    string `mapstructure:"SEED_ADMIN_EMAIL"`
	SeedAdminPassword string `mapstructure:"SEED_ADMIN_PASSWORD"`
}

var defaults = map[string]interface{}{
	"APP_NAME":     "Retail POS v1.0",
	"APP_ENV":      "development",
	"PORT":         "3000",
	"APP_TIMEZONE": "Asia/Jakarta",

	"DATABASE_URL":         "",
	"DB_HOST":              "localhost",
	"DB_PORT":              5432,
	"DB_USER":              "postgres",
	"DB_PASSWORD":          "postgres",
	"DB_NAME":              "retail_pos",
	"DB_SSL_MODE":          "disable",
	"DB_MAX_OPEN_CONNS":    100,
	"DB_MAX_IDLE_CONNS":    10,
	"DB_CONN_MAX_LIFETIME": "1h",

	"JWT_SECRET":           "your-super-secret-key-change-in-production",
	"JWT_TTL":              "24h",
	"SESSION_IDLE_TIMEOUT": "5m",

	"LOG_LEVEL":    "info",
	"LOG_ENCODING": "console",

	"CHECKOUT_LOCK_TIMEOUT": "3s",
	"IDEMPOTENCY_TTL":       "24h",
	"LOW_STOCK_THRESHOLD":   10,

	"REDIS_ADDR":     "",
	"REDIS_PASSWORD": "",
	"REDIS_DB":       0,

	"KAFKA_BROKERS":     "",
	"KAFKA_SALES_TOPIC": "pos.sales",

	"RABBITMQ_URL":      "",
	"RABBITMQ_EXCHANGE": "pos.events",

	"SEED_ADMIN_EMAIL":    "admin@example.com",
	"SEED_ADMIN_PASSWORD": "admin123",
}

// LoadConfig reads app.env from path (optional) and overlays the environment.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	cfg.KafkaBrokers = compact(cfg.KafkaBrokers)
	return cfg, nil
}

func (c Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode, c.Timezone,
	)
}

// Location resolves APP_TIMEZONE, falling back to UTC+7 when tzdata is missing.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.FixedZone("WIB", 7*60*60)
	}
	return loc
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
