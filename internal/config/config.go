// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

type Config struct {
	Environment    string
	Server         ServerConfig
	Database       DatabaseConfig
	Store          StoreConfig
	Catalog        CatalogConfig
	Archive        ArchiveConfig
	Kafka          KafkaConfig
	JWT            JWTConfig
	Log            LogConfig
	CORS           CORSConfig
	StaleAfterDays int
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
	RateLimit    float64 // requests per second per client
	RateBurst    int
}

type DatabaseConfig struct {
	Driver       string // postgres or sqlite
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	SQLitePath   string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
	AutoMigrate  bool
}

// StoreConfig selects the history backend used by the crawler.
type StoreConfig struct {
	Driver          string // sql or mongo
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
}

type CatalogConfig struct {
	APIURL           string
	StorefrontURL    string
	CategoryFile     string
	CategorySelector string
	UserAgent        string
	PageSize         int
	MaxAttempts      int
	RetryDelay       time.Duration
	RequestTimeout   time.Duration
	PageInterval     time.Duration
	CategoryInterval time.Duration
	TimeZone         string
	OrderBy          string
	Direction        string
}

type ArchiveConfig struct {
	Enabled         bool
	LocalDir        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	Prefix          string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type JWTConfig struct {
	SecretKey string
	TTL       int // in hours
}

type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type CORSConfig struct {
	AllowedOrigins []string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			RateLimit:    getEnvAsFloat("SERVER_RATE_LIMIT", 10),
			RateBurst:    getEnvAsInt("SERVER_RATE_BURST", 20),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "postgres"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "catalog_tracker"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			SQLitePath:   getEnv("DB_SQLITE_PATH", "catalog_tracker.db"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "warn"),
			AutoMigrate:  getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Store: StoreConfig{
			Driver:          getEnv("STORE_DRIVER", "sql"),
			MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
			MongoDatabase:   getEnv("MONGO_DATABASE", "db_kf"),
			MongoCollection: getEnv("MONGO_COLLECTION", "kf_new"),
		},
		Catalog: CatalogConfig{
			APIURL:           getEnv("CATALOG_API_URL", "https://api.kingfoodmart.com/v1/graphql"),
			StorefrontURL:    getEnv("CATALOG_STOREFRONT_URL", "https://kingfoodmart.com"),
			CategoryFile:     getEnv("CATALOG_CATEGORY_FILE", "category_url.txt"),
			CategorySelector: getEnv("CATALOG_CATEGORY_SELECTOR", "a[href]"),
			UserAgent:        getEnv("CATALOG_USER_AGENT", "Mozilla/5.0 (compatible; catalog-tracker/1.0)"),
			PageSize:         getEnvAsInt("CATALOG_PAGE_SIZE", 102),
			MaxAttempts:      getEnvAsInt("CATALOG_MAX_ATTEMPTS", 3),
			RetryDelay:       getEnvAsDuration("CATALOG_RETRY_DELAY", 2*time.Second),
			RequestTimeout:   getEnvAsDuration("CATALOG_REQUEST_TIMEOUT", 30*time.Second),
			PageInterval:     getEnvAsDuration("CATALOG_PAGE_INTERVAL", time.Second),
			CategoryInterval: getEnvAsDuration("CATALOG_CATEGORY_INTERVAL", 3*time.Second),
			TimeZone:         getEnv("CATALOG_TIMEZONE", "Asia/Ho_Chi_Minh"),
			OrderBy:          getEnv("CATALOG_ORDER", "SALE_PRICE"),
			Direction:        getEnv("CATALOG_DIRECTION", "ASC"),
		},
		Archive: ArchiveConfig{
			Enabled:         getEnvAsBool("ARCHIVE_ENABLED", false),
			LocalDir:        getEnv("ARCHIVE_DIR", "./archive"),
			Region:          getEnv("AWS_REGION", "ap-southeast-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", "catalog-tracker-raw"),
			Prefix:          getEnv("ARCHIVE_PREFIX", "responses"),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsSlice("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_TOPIC", "catalog.product-reconciled"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET", defaultJWTSecret),
			TTL:       getEnvAsInt("JWT_TTL", 24), // 24 hours
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "text"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 30),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		StaleAfterDays: getEnvAsInt("STALE_AFTER_DAYS", 3),
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == defaultJWTSecret && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.Password == "" && c.Environment == "production" {
			return fmt.Errorf("database password is required in production")
		}
	case "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Store.Driver != "sql" && c.Store.Driver != "mongo" {
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}

	if c.Catalog.PageSize < 1 {
		return fmt.Errorf("catalog page size must be positive")
	}
	if c.Catalog.MaxAttempts < 1 {
		return fmt.Errorf("catalog max attempts must be at least 1")
	}

	if _, err := c.Catalog.Location(); err != nil {
		return fmt.Errorf("invalid catalog time zone: %w", err)
	}

	return nil
}

// Location resolves the zone used to compute calendar-day keys.
func (c CatalogConfig) Location() (*time.Location, error) {
	if c.TimeZone == "" || strings.EqualFold(c.TimeZone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.TimeZone)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
