package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageMongo    = "mongodb"

	// IndexRedis keeps driver locations in a Redis GEO set
	IndexRedis = "redis"
)

// Geocoding providers
const (
	ProviderORS    = "ors"
	ProviderGoogle = "google"
)

const defaultJWTSecret = "your_jwt_secret_key_here"

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	NewRelic  NewRelicConfig
	JWT       JWTConfig
	Pricing   PricingConfig
	Matching  MatchingConfig
	Geocoding GeocodingConfig
	WebSocket WebSocketConfig
	Kafka     KafkaConfig
	Log       LogConfig
	CORS      CORSConfig
	Features  FeatureFlags
}

type ServerConfig struct {
	Port            string
	Env             string
	Host            string
	ShutdownTimeout time.Duration
}

type StorageConfig struct {
	// Backend holds rides and the driver index: memory, postgres or mongodb
	Backend string
	// DriverIndex overrides where driver locations live: memory, redis or mongodb.
	// Empty follows Backend, with postgres using redis.
	DriverIndex string
}

type DatabaseConfig struct {
	Host           string
	Port           string
	Name           string
	User           string
	Password       string
	SSLMode        string
	MaxConnections int
	MaxIdleConns   int
	MaxLifetime    time.Duration
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

type RedisConfig struct {
	Enabled     bool
	Host        string
	Port        string
	Password    string
	DB          int
	MaxRetries  int
	PoolSize    int
	MinIdleConn int
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

type NewRelicConfig struct {
	LicenseKey string
	AppName    string
	Enabled    bool
	LogLevel   string
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

// Rate is the tariff of one vehicle type
type Rate struct {
	BaseFare  float64
	PerKMRate float64
}

type PricingConfig struct {
	Auto Rate
	Car  Rate
	Moto Rate
}

type MatchingConfig struct {
	RadiusKM float64
}

type GeocodingConfig struct {
	Provider      string
	APIKey        string
	ORSEndpoint   string
	Country       string
	Timeout       time.Duration
	CacheTTL      time.Duration
	RouteFallback bool
}

type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type FeatureFlags struct {
	EnableRealTimeUpdates bool
	EnableEventStream     bool
	EnableGeocodeCache    bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Env:             getEnv("SERVER_ENV", "development"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ShutdownTimeout: parseDuration(getEnv("SERVER_SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
		},
		Storage: StorageConfig{
			Backend:     strings.ToLower(getEnv("STORAGE_BACKEND", StorageMemory)),
			DriverIndex: strings.ToLower(getEnv("DRIVER_INDEX_BACKEND", "")),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			Name:           getEnv("DB_NAME", "rides"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxConnections: getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MaxIdleConns:   getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 5),
			MaxLifetime:    time.Duration(getEnvAsInt("DB_MAX_LIFETIME_MINUTES", 30)) * time.Minute,
		},
		Mongo: MongoConfig{
			URI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGO_DATABASE", "rides"),
			ConnectTimeout: parseDuration(getEnv("MONGO_CONNECT_TIMEOUT", "10s"), 10*time.Second),
		},
		Redis: RedisConfig{
			Enabled:     getEnvAsBool("REDIS_ENABLED", false),
			Host:        getEnv("REDIS_HOST", "localhost"),
			Port:        getEnv("REDIS_PORT", "6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvAsInt("REDIS_DB", 0),
			MaxRetries:  getEnvAsInt("REDIS_MAX_RETRIES", 3),
			PoolSize:    getEnvAsInt("REDIS_POOL_SIZE", 100),
			MinIdleConn: 10,
			DialTimeout: 5 * time.Second,
			ReadTimeout: 3 * time.Second,
		},
		NewRelic: NewRelicConfig{
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			AppName:    getEnv("NEW_RELIC_APP_NAME", "Ride-Lifecycle"),
			Enabled:    getEnvAsBool("NEW_RELIC_ENABLED", false),
			LogLevel:   getEnv("NEW_RELIC_LOG_LEVEL", "info"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", defaultJWTSecret),
			Expiry: parseDuration(getEnv("JWT_EXPIRY", "24h"), 24*time.Hour),
		},
		Pricing: PricingConfig{
			Auto: Rate{
				BaseFare:  getEnvAsFloat64("BASE_FARE_AUTO", 30),
				PerKMRate: getEnvAsFloat64("PER_KM_RATE_AUTO", 10),
			},
			Car: Rate{
				BaseFare:  getEnvAsFloat64("BASE_FARE_CAR", 50),
				PerKMRate: getEnvAsFloat64("PER_KM_RATE_CAR", 15),
			},
			Moto: Rate{
				BaseFare:  getEnvAsFloat64("BASE_FARE_MOTO", 20),
				PerKMRate: getEnvAsFloat64("PER_KM_RATE_MOTO", 7),
			},
		},
		Matching: MatchingConfig{
			RadiusKM: getEnvAsFloat64("DEFAULT_MATCHING_RADIUS_KM", 2.0),
		},
		Geocoding: GeocodingConfig{
			Provider:      strings.ToLower(getEnv("GEOCODING_PROVIDER", ProviderORS)),
			APIKey:        getEnv("GEOCODING_API_KEY", ""),
			ORSEndpoint:   getEnv("ORS_ENDPOINT", "https://api.openrouteservice.org"),
			Country:       getEnv("GEOCODING_COUNTRY", "IN"),
			Timeout:       parseDuration(getEnv("GEOCODING_TIMEOUT", "5s"), 5*time.Second),
			CacheTTL:      parseDuration(getEnv("GEOCODE_CACHE_TTL", "24h"), 24*time.Hour),
			RouteFallback: getEnvAsBool("ROUTE_FALLBACK_ENABLED", true),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  getEnvAsInt("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize: getEnvAsInt("WS_WRITE_BUFFER_SIZE", 1024),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsSlice("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_RIDE_EVENTS_TOPIC", "ride-events"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Authorization"}),
		},
		Features: FeatureFlags{
			EnableRealTimeUpdates: getEnvAsBool("ENABLE_REAL_TIME_UPDATES", true),
			EnableEventStream:     getEnvAsBool("ENABLE_EVENT_STREAM", false),
			EnableGeocodeCache:    getEnvAsBool("ENABLE_GEOCODE_CACHE", true),
		},
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	switch c.Storage.Backend {
	case StorageMemory:
	case StoragePostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("DB_HOST and DB_NAME are required for the postgres backend")
		}
	case StorageMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			return fmt.Errorf("MONGO_URI and MONGO_DATABASE are required for the mongodb backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}

	switch c.DriverIndexBackend() {
	case StorageMemory, StorageMongo:
	case IndexRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("REDIS_ENABLED is required for the redis driver index")
		}
	default:
		return fmt.Errorf("unknown DRIVER_INDEX_BACKEND %q", c.Storage.DriverIndex)
	}

	switch c.Geocoding.Provider {
	case ProviderORS, ProviderGoogle:
	default:
		return fmt.Errorf("unknown GEOCODING_PROVIDER %q", c.Geocoding.Provider)
	}
	if c.Geocoding.APIKey == "" && c.Server.Env == "production" {
		return fmt.Errorf("GEOCODING_API_KEY must be set in production")
	}

	if c.Matching.RadiusKM <= 0 {
		return fmt.Errorf("DEFAULT_MATCHING_RADIUS_KM must be positive")
	}
	for name, r := range map[string]Rate{"auto": c.Pricing.Auto, "car": c.Pricing.Car, "moto": c.Pricing.Moto} {
		if r.BaseFare < 0 || r.PerKMRate < 0 {
			return fmt.Errorf("pricing for %s must not be negative", name)
		}
	}

	if c.Features.EnableEventStream && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when ENABLE_EVENT_STREAM is set")
	}
	if c.JWT.Secret == defaultJWTSecret && c.Server.Env == "production" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	return nil
}

// DriverIndexBackend resolves where driver locations are kept
func (c *Config) DriverIndexBackend() string {
	if c.Storage.DriverIndex != "" {
		return c.Storage.DriverIndex
	}
	switch c.Storage.Backend {
	case StorageMongo:
		return StorageMongo
	case StoragePostgres:
		return IndexRedis
	default:
		return StorageMemory
	}
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}
