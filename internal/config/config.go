package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Libre     LibreConfig
	Refresh   RefreshConfig
	Session   SessionConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	MinIO     MinIOConfig
	RateLimit RateLimitConfig
	LogLevel  string
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// LibreConfig describes the remote LibreLinkUp API.
type LibreConfig struct {
	BaseURL string
	Version string
	Product string
	Timeout time.Duration
}

type RefreshConfig struct {
	Interval time.Duration
}

// Session backends
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendMinIO  = "minio"
)

type SessionConfig struct {
	Backend string
	Dir     string
	Key     string
}

type MongoDBConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "3000")
	viper.SetDefault("SERVER_HOST", "127.0.0.1")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LIBRE_API_URL", "https://api.libreview.io")
	viper.SetDefault("LIBRE_API_VERSION", "4.7")
	viper.SetDefault("LIBRE_PRODUCT", "llu.android")
	viper.SetDefault("LIBRE_TIMEOUT", 10)
	viper.SetDefault("REFRESH_INTERVAL_MS", 60000)
	viper.SetDefault("SESSION_BACKEND", BackendFile)
	viper.SetDefault("SESSION_DIR", "data")
	viper.SetDefault("SESSION_KEY", "authData")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("MONGODB_DATABASE", "glucoview")
	viper.SetDefault("MONGODB_COLLECTION", "sessions")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("MINIO_BUCKET", "glucoview")
	viper.SetDefault("RATE_LIMIT_RPS", 5)
	viper.SetDefault("RATE_LIMIT_BURST", 10)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Libre: LibreConfig{
			BaseURL: strings.TrimRight(viper.GetString("LIBRE_API_URL"), "/"),
			Version: viper.GetString("LIBRE_API_VERSION"),
			Product: viper.GetString("LIBRE_PRODUCT"),
			Timeout: time.Duration(viper.GetInt("LIBRE_TIMEOUT")) * time.Second,
		},
		Refresh: RefreshConfig{
			Interval: time.Duration(viper.GetInt("REFRESH_INTERVAL_MS")) * time.Millisecond,
		},
		Session: SessionConfig{
			Backend: strings.ToLower(strings.TrimSpace(viper.GetString("SESSION_BACKEND"))),
			Dir:     viper.GetString("SESSION_DIR"),
			Key:     viper.GetString("SESSION_KEY"),
		},
		MongoDB: MongoDBConfig{
			URI:        viper.GetString("MONGODB_URI"),
			Database:   viper.GetString("MONGODB_DATABASE"),
			Collection: viper.GetString("MONGODB_COLLECTION"),
			Timeout:    time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		MinIO: MinIOConfig{
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey: viper.GetString("MINIO_SECRET_KEY"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
			Bucket:    viper.GetString("MINIO_BUCKET"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Session.Backend {
	case BackendFile:
		if c.Session.Dir == "" {
			return fmt.Errorf("SESSION_DIR is required for the file session backend")
		}
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Host == "" {
			return fmt.Errorf("REDIS_HOST is required for the redis session backend")
		}
	case BackendMongo:
		if c.MongoDB.URI == "" {
			return fmt.Errorf("MONGODB_URI is required for the mongo session backend")
		}
	case BackendMinIO:
		if c.MinIO.Endpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT is required for the minio session backend")
		}
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q", c.Session.Backend)
	}
	if c.Session.Key == "" {
		return fmt.Errorf("SESSION_KEY must not be empty")
	}
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL_MS must be positive")
	}
	if c.Libre.Timeout <= 0 {
		return fmt.Errorf("LIBRE_TIMEOUT must be positive")
	}
	return nil
}
