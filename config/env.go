package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Redis    RedisConfig
	DB       DBConfig
	Auth     AuthConfig
	HTTP     HTTPConfig
	Worker   WorkerConfig
	Payments PaymentsConfig
	Log      LogConfig
}

type DBConfig struct {
	DSN string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type HTTPConfig struct {
	Port      string
	RateLimit string
}

type WorkerConfig struct {
	GRPCAddr      string
	QueueKey      string
	RelayInterval time.Duration
}

type PaymentsConfig struct {
	CaptureURL string
	Currency   string
}

type LogConfig struct {
	Level  string
	Format string
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	return Config{
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		DB: DBConfig{
			DSN: getEnv("ORDERING_DSN", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			TokenTTL:  getDuration("JWT_TTL", 24*time.Hour),
		},
		HTTP: HTTPConfig{
			Port:      getEnv("HTTP_PORT", "8080"),
			RateLimit: getEnv("HTTP_RATE_LIMIT", "60-M"),
		},
		Worker: WorkerConfig{
			GRPCAddr:      getEnv("WORKER_GRPC_ADDR", "localhost:50061"),
			QueueKey:      getEnv("WORKER_QUEUE_KEY", "lunch:jobs"),
			RelayInterval: getDuration("WORKER_RELAY_INTERVAL", 5*time.Second),
		},
		Payments: PaymentsConfig{
			CaptureURL: getEnv("PAYMENTS_CAPTURE_URL", ""),
			Currency:   getEnv("PAYMENTS_CURRENCY", "EUR"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		logrus.WithField("key", key).Warnf("invalid duration %q, using default %s", value, defaultValue)
		return defaultValue
	}
	return d
}
