package config

import (
	"fmt"
	"time"

	"talkbridge-backend/pkg/env"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	MinIO     MinIOConfig
	JWT       JWTConfig
	Google    GoogleConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Gateway   GatewayConfig
	Log       LogConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port        int
	Environment string // development, staging, production
	ServiceName string
}

// DatabaseConfig holds CockroachDB configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

// MinIOConfig holds profile image storage configuration
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	// PublicURL is the externally reachable base used to build profile URLs.
	PublicURL string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// GoogleConfig holds the OAuth client used to verify Google ID tokens
type GoogleConfig struct {
	ClientID string
}

// CORSConfig holds allowed browser origins (also used for WebSocket upgrades)
type CORSConfig struct {
	AllowedOrigins []string
}

// RateLimitConfig holds HTTP and signaling throttles
type RateLimitConfig struct {
	Requests         int
	Window           time.Duration
	SignalPerSecond  int
	SignalBurst      int
	MaxWebSocketConn int
}

// GatewayConfig holds upstream addresses for the API gateway
type GatewayConfig struct {
	AuthServiceURL      string
	SignalingServiceURL string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level    string // debug, info, warn, error
	Format   string // json, text
	Output   string // stdout, file
	FilePath string
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        env.GetInt("PORT", 8080),
			Environment: env.GetString("ENV", "development"),
			ServiceName: env.GetString("SERVICE_NAME", serviceName),
		},
		Database: DatabaseConfig{
			Host:     env.GetString("DB_HOST", "localhost"),
			Port:     env.GetInt("DB_PORT", 26257),
			User:     env.GetString("DB_USER", "root"),
			Password: env.GetStringFromFile("DB_PASSWORD", ""),
			Database: env.GetString("DB_NAME", "talkbridge"),
			SSLMode:  env.GetString("DB_SSL_MODE", "disable"),
			MaxConns: env.GetInt("DB_MAX_CONNS", 25),
			MinConns: env.GetInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     env.GetString("REDIS_HOST", "localhost"),
			Port:     env.GetInt("REDIS_PORT", 6379),
			Password: env.GetStringFromFile("REDIS_PASSWORD", ""),
			DB:       env.GetInt("REDIS_DB", 0),
			PoolSize: env.GetInt("REDIS_POOL_SIZE", 10),
			Timeout:  env.GetDuration("REDIS_TIMEOUT", 5*time.Second),
		},
		MinIO: MinIOConfig{
			Endpoint:  env.GetString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: env.GetStringFromFile("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: env.GetStringFromFile("MINIO_SECRET_KEY", "minioadmin"),
			UseSSL:    env.GetBool("MINIO_USE_SSL", false),
			Bucket:    env.GetString("MINIO_BUCKET", "talkbridge-profiles"),
			PublicURL: env.GetString("MINIO_PUBLIC_URL", "http://localhost:9000"),
		},
		JWT: JWTConfig{
			Secret:             env.GetStringFromFile("JWT_SECRET", ""),
			AccessTokenExpiry:  env.GetDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			RefreshTokenExpiry: env.GetDuration("JWT_REFRESH_EXPIRY", 7*24*time.Hour),
		},
		Google: GoogleConfig{
			ClientID: env.GetString("GOOGLE_CLIENT_ID", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: env.GetStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		},
		RateLimit: RateLimitConfig{
			Requests:         env.GetInt("RATE_LIMIT_REQUESTS", 100),
			Window:           env.GetDuration("RATE_LIMIT_WINDOW", time.Minute),
			SignalPerSecond:  env.GetInt("SIGNAL_RATE_PER_SECOND", 50),
			SignalBurst:      env.GetInt("SIGNAL_RATE_BURST", 100),
			MaxWebSocketConn: env.GetInt("WS_MAX_CONNECTIONS", 10000),
		},
		Gateway: GatewayConfig{
			AuthServiceURL:      env.GetString("AUTH_SERVICE_URL", "http://localhost:8081"),
			SignalingServiceURL: env.GetString("SIGNALING_SERVICE_URL", "http://localhost:8082"),
		},
		Log: LogConfig{
			Level:    env.GetString("LOG_LEVEL", "info"),
			Format:   env.GetString("LOG_FORMAT", "json"),
			Output:   env.GetString("LOG_OUTPUT", "stdout"),
			FilePath: env.GetString("LOG_FILE_PATH", "/logs/app.log"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsProduction reports whether the service runs with production settings
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.IsProduction() {
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
		if c.Google.ClientID == "" {
			return fmt.Errorf("GOOGLE_CLIENT_ID must be set in production")
		}
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.JWT.AccessTokenExpiry <= 0 || c.JWT.RefreshTokenExpiry <= c.JWT.AccessTokenExpiry {
		return fmt.Errorf("refresh token expiry must exceed access token expiry")
	}
	return nil
}
