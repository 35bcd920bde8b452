package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage drivers understood by the persistence layer.
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Check-in submission strategies.
const (
	StrategyConfirm    = "confirm"
	StrategyOptimistic = "optimistic"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Backend  BackendConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Log      LogConfig
	Network  NetworkConfig
	Sync     SyncConfig
	Checkin  CheckinConfig
	Reports  ReportsConfig
}

// BackendConfig points the agent at the remote check-in API.
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// StorageConfig selects where the state snapshot is persisted.
type StorageConfig struct {
	Driver   string
	FilePath string
	Key      string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type LogConfig struct {
	Level  string
	Format string
}

// NetworkConfig drives the connectivity probe. An empty ProbeURL disables probing
// and leaves connectivity to PUT /connectivity.
type NetworkConfig struct {
	ProbeURL      string
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
	AssumeOnline  bool
}

// SyncConfig maps onto the sync engine retry policy. MaxAttempts 0 means unbounded.
type SyncConfig struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// CheckinConfig tunes the interactive check-in handler.
type CheckinConfig struct {
	Strategy string
}

// ReportsConfig toggles roster exports.
type ReportsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Backend = BackendConfig{
		BaseURL: strings.TrimRight(v.GetString("BACKEND_BASE_URL"), "/"),
		Timeout: parseDuration(v.GetString("BACKEND_TIMEOUT"), 15*time.Second),
	}

	cfg.Storage = StorageConfig{
		Driver:   normalizeChoice(v.GetString("STORAGE_DRIVER"), StorageFile, StorageMemory, StorageFile, StorageRedis, StoragePostgres),
		FilePath: v.GetString("STORAGE_FILE_PATH"),
		Key:      v.GetString("STORAGE_KEY"),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Network = NetworkConfig{
		ProbeURL:      v.GetString("NETWORK_PROBE_URL"),
		ProbeInterval: parseDuration(v.GetString("NETWORK_PROBE_INTERVAL"), 10*time.Second),
		ProbeTimeout:  parseDuration(v.GetString("NETWORK_PROBE_TIMEOUT"), 3*time.Second),
		AssumeOnline:  v.GetBool("NETWORK_ASSUME_ONLINE"),
	}

	maxAttempts := v.GetInt("SYNC_MAX_ATTEMPTS")
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	cfg.Sync = SyncConfig{
		MaxAttempts: maxAttempts,
		BackoffBase: parseDuration(v.GetString("SYNC_BACKOFF_BASE"), 0),
		BackoffMax:  parseDuration(v.GetString("SYNC_BACKOFF_MAX"), 5*time.Minute),
	}

	cfg.Checkin = CheckinConfig{
		Strategy: normalizeChoice(v.GetString("CHECKIN_STRATEGY"), StrategyConfirm, StrategyConfirm, StrategyOptimistic),
	}

	cfg.Reports = ReportsConfig{
		Enabled: v.GetBool("ENABLE_REPORTS"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("BACKEND_BASE_URL", "http://localhost:3000")
	v.SetDefault("BACKEND_TIMEOUT", "15s")

	v.SetDefault("STORAGE_DRIVER", StorageFile)
	v.SetDefault("STORAGE_FILE_PATH", "./data/state.json")
	v.SetDefault("STORAGE_KEY", "checkin:state")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "checkin_agent")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 4)
	v.SetDefault("DB_MAX_IDLE_CONNS", 2)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")
	v.SetDefault("JWT_ISSUER", "checkin-agent")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("NETWORK_PROBE_URL", "")
	v.SetDefault("NETWORK_PROBE_INTERVAL", "10s")
	v.SetDefault("NETWORK_PROBE_TIMEOUT", "3s")
	v.SetDefault("NETWORK_ASSUME_ONLINE", true)

	v.SetDefault("SYNC_MAX_ATTEMPTS", 0)
	v.SetDefault("SYNC_BACKOFF_BASE", "0s")
	v.SetDefault("SYNC_BACKOFF_MAX", "5m")

	v.SetDefault("CHECKIN_STRATEGY", StrategyConfirm)
	v.SetDefault("ENABLE_REPORTS", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

// normalizeChoice lower-cases raw and returns it when it is one of allowed, otherwise fallback.
func normalizeChoice(raw, fallback string, allowed ...string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	for _, candidate := range allowed {
		if value == candidate {
			return value
		}
	}
	return fallback
}
