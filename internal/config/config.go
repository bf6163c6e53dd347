package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Admin     AdminConfig
	JWT       JWTConfig
	Uploads   UploadsConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// StorageConfig selects the backend: when DatabaseURL is set the Postgres
// backend is used, otherwise the flat file at DataFile.
type StorageConfig struct {
	DatabaseURL string
	DataFile    string
}

// AdminConfig describes the seed admin created on first bootstrap.
type AdminConfig struct {
	Username string
	Password string
}

type JWTConfig struct {
	Secret   string
	TokenTTL time.Duration
}

type UploadsConfig struct {
	Dir     string
	BaseURL string

	// Optional MinIO object storage. When Endpoint is set, uploads go to
	// the bucket instead of the local Dir.
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOUseSSL    bool
	MinIOBucket    string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

type RateLimitConfig struct {
	Enabled       bool
	RPS           float64
	Burst         int
	UseRedis      bool
	WindowSeconds int
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("DATA_FILE", "data.json")
	viper.SetDefault("TOKEN_TTL_HOURS", 12)
	viper.SetDefault("ADMIN_USERNAME", "admin")
	viper.SetDefault("ADMIN_PASSWORD", "admin123")
	viper.SetDefault("UPLOAD_DIR", "public/uploads")
	viper.SetDefault("UPLOAD_BASE_URL", "/uploads")
	viper.SetDefault("RATE_LIMIT_RPS", 1.0)
	viper.SetDefault("RATE_LIMIT_BURST", 5)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	viper.SetDefault("MINIO_BUCKET", "ciata-uploads")

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			DatabaseURL: viper.GetString("DATABASE_URL"),
			DataFile:    viper.GetString("DATA_FILE"),
		},
		Admin: AdminConfig{
			Username: viper.GetString("ADMIN_USERNAME"),
			Password: viper.GetString("ADMIN_PASSWORD"),
		},
		JWT: JWTConfig{
			Secret:   os.Getenv("JWT_SECRET"),
			TokenTTL: time.Duration(viper.GetInt("TOKEN_TTL_HOURS")) * time.Hour,
		},
		Uploads: UploadsConfig{
			Dir:            viper.GetString("UPLOAD_DIR"),
			BaseURL:        viper.GetString("UPLOAD_BASE_URL"),
			MinIOEndpoint:  viper.GetString("MINIO_ENDPOINT"),
			MinIOAccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			MinIOSecretKey: os.Getenv("MINIO_SECRET_KEY"),
			MinIOUseSSL:    viper.GetBool("MINIO_USE_SSL"),
			MinIOBucket:    viper.GetString("MINIO_BUCKET"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}

	// Basic validation
	if cfg.JWT.Secret == "" {
		log.Println("WARNING: JWT_SECRET is not set; set a secure value in production")
		cfg.JWT.Secret = "dev-insecure-secret"
	}

	return cfg, nil
}
