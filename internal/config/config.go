package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Auth      AuthConfig
	MinIO     MinIOConfig
	LogLevel  string
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// MongoDBConfig describes the person store. An empty URI selects the
// in-memory store.
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

func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

type CacheConfig struct {
	Enabled bool
	Prefix  string
	TTL     time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

// AuthConfig guards mutating routes. JWTSecret enables HS256 bearer tokens;
// OIDCIssuer with OIDCClientID enables ID-token verification instead.
type AuthConfig struct {
	JWTSecret    string
	TokenTTL     time.Duration
	OIDCIssuer   string
	OIDCClientID string
}

func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != "" || (a.OIDCIssuer != "" && a.OIDCClientID != "")
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// LoadConfig loads configuration from environment variables and an optional .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "5001")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("MONGODB_DATABASE", "peoplebook")
	v.SetDefault("MONGODB_COLLECTION", "people")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("CACHE_PREFIX", "person:")
	v.SetDefault("CACHE_TTL_SECONDS", 60)
	v.SetDefault("RATE_LIMIT_RPS", 10.0)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	v.SetDefault("JWT_TOKEN_TTL", 60)
	v.SetDefault("MINIO_BUCKET", "peoplebook")
	v.SetDefault("LOG_LEVEL", "info")

	// MONGO_URI is the documented name; MONGODB_URI is accepted as well.
	uri := v.GetString("MONGO_URI")
	if uri == "" {
		uri = v.GetString("MONGODB_URI")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:        uri,
			Database:   v.GetString("MONGODB_DATABASE"),
			Collection: v.GetString("MONGODB_COLLECTION"),
			Timeout:    time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Cache: CacheConfig{
			Enabled: v.GetBool("CACHE_ENABLED"),
			Prefix:  v.GetString("CACHE_PREFIX"),
			TTL:     time.Duration(v.GetInt("CACHE_TTL_SECONDS")) * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Auth: AuthConfig{
			JWTSecret:    v.GetString("JWT_SECRET"),
			TokenTTL:     time.Duration(v.GetInt("JWT_TOKEN_TTL")) * time.Minute,
			OIDCIssuer:   v.GetString("OIDC_ISSUER"),
			OIDCClientID: v.GetString("OIDC_CLIENT_ID"),
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			Bucket:    v.GetString("MINIO_BUCKET"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}

	return cfg, nil
}
