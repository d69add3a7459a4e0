package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rbutdayev/xpos-sub008/internal/adapters/backend"
	"github.com/rbutdayev/xpos-sub008/internal/models"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds all configuration for the kiosk agent
type Config struct {
	Environment string
	Log         LogConfig
	Backend     BackendConfig
	Sync        models.SyncConfig
	Database    DatabaseConfig
	API         APIConfig
	Fiscal      FiscalConfig
	Kiosk       KioskConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string
	Format     string // "text" or "json"; empty picks by environment
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// BackendConfig holds central backend connection configuration
type BackendConfig struct {
	URL            string
	Token          string
	Timeout        time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RetryMaxJitter time.Duration
}

// APIConfig holds the local control API configuration
type APIConfig struct {
	Host          string
	Port          int
	RateLimit     float64
	RateBurst     int
	AllowOrigins  []string
	SessionSecret string // empty generates a per-process secret
	SessionTTL    time.Duration
}

// FiscalConfig holds fiscal device transport configuration
type FiscalConfig struct {
	Timeout time.Duration
}

// KioskConfig identifies this device to the backend
type KioskConfig struct {
	DeviceID   string
	DeviceName string
	BranchID   int64
	Version    string
}

// Load loads configuration from environment variables and an optional .env file
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	config := &Config{
		Environment: v.GetString("APP_ENV"),
		Log: LogConfig{
			Level:      v.GetString("LOG_LEVEL"),
			Format:     v.GetString("LOG_FORMAT"),
			File:       v.GetString("LOG_FILE"),
			MaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
			MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
			MaxAgeDays: v.GetInt("LOG_MAX_AGE_DAYS"),
		},
		Backend: BackendConfig{
			URL:            strings.TrimRight(v.GetString("BACKEND_URL"), "/"),
			Token:          v.GetString("BACKEND_TOKEN"),
			Timeout:        v.GetDuration("BACKEND_TIMEOUT"),
			RetryAttempts:  v.GetInt("BACKEND_RETRY_ATTEMPTS"),
			RetryBaseDelay: v.GetDuration("BACKEND_RETRY_BASE_DELAY"),
			RetryMaxDelay:  v.GetDuration("BACKEND_RETRY_MAX_DELAY"),
			RetryMaxJitter: v.GetDuration("BACKEND_RETRY_MAX_JITTER"),
		},
		Sync: models.SyncConfig{
			SyncIntervalSeconds:      v.GetInt("SYNC_INTERVAL_SECONDS"),
			HeartbeatIntervalSeconds: v.GetInt("HEARTBEAT_INTERVAL_SECONDS"),
			MaxRetryAttempts:         v.GetInt("SYNC_MAX_RETRY_ATTEMPTS"),
		},
		Database: DatabaseConfig{
			Path:            v.GetString("DB_PATH"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			BusyTimeout:     v.GetDuration("DB_BUSY_TIMEOUT"),
			AutoMigrate:     v.GetBool("DB_AUTO_MIGRATE"),
			BackupEnabled:   v.GetBool("DB_BACKUP_ENABLED"),
		},
		API: APIConfig{
			Host:          v.GetString("API_HOST"),
			Port:          v.GetInt("API_PORT"),
			RateLimit:     v.GetFloat64("API_RATE_LIMIT"),
			RateBurst:     v.GetInt("API_RATE_BURST"),
			AllowOrigins:  splitList(v.GetString("API_ALLOW_ORIGINS")),
			SessionSecret: v.GetString("API_SESSION_SECRET"),
			SessionTTL:    v.GetDuration("API_SESSION_TTL"),
		},
		Fiscal: FiscalConfig{
			Timeout: v.GetDuration("FISCAL_TIMEOUT"),
		},
		Kiosk: KioskConfig{
			DeviceID:   v.GetString("KIOSK_DEVICE_ID"),
			DeviceName: v.GetString("KIOSK_DEVICE_NAME"),
			BranchID:   v.GetInt64("KIOSK_BRANCH_ID"),
			Version:    v.GetString("KIOSK_VERSION"),
		},
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_MAX_SIZE_MB", 50)
	v.SetDefault("LOG_MAX_BACKUPS", 5)
	v.SetDefault("LOG_MAX_AGE_DAYS", 30)

	v.SetDefault("BACKEND_TIMEOUT", "30s")
	v.SetDefault("BACKEND_RETRY_ATTEMPTS", 3)
	v.SetDefault("BACKEND_RETRY_BASE_DELAY", "1s")
	v.SetDefault("BACKEND_RETRY_MAX_DELAY", "30s")
	v.SetDefault("BACKEND_RETRY_MAX_JITTER", "1s")

	v.SetDefault("SYNC_INTERVAL_SECONDS", models.DefaultSyncIntervalSeconds)
	v.SetDefault("HEARTBEAT_INTERVAL_SECONDS", models.DefaultHeartbeatIntervalSeconds)
	v.SetDefault("SYNC_MAX_RETRY_ATTEMPTS", models.DefaultMaxRetryAttempts)

	v.SetDefault("DB_PATH", "./data/kiosk.db")
	v.SetDefault("DB_MAX_OPEN_CONNS", 1)
	v.SetDefault("DB_MAX_IDLE_CONNS", 1)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "1h")
	v.SetDefault("DB_BUSY_TIMEOUT", "5s")
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("DB_BACKUP_ENABLED", true)

	v.SetDefault("API_HOST", "127.0.0.1")
	v.SetDefault("API_PORT", 8765)
	v.SetDefault("API_RATE_LIMIT", 5)
	v.SetDefault("API_RATE_BURST", 10)
	v.SetDefault("API_ALLOW_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")
	v.SetDefault("API_SESSION_TTL", "12h")

	v.SetDefault("FISCAL_TIMEOUT", "15s")

	v.SetDefault("KIOSK_DEVICE_NAME", "kiosk")
	v.SetDefault("KIOSK_VERSION", "dev")
}

// IsProduction reports whether the agent runs in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Validate validates every section needed to run the sync agent
func (c *Config) Validate() error {
	if err := c.Backend.Validate(); err != nil {
		return err
	}
	if err := c.Sync.Validate(); err != nil {
		return fmt.Errorf("invalid sync configuration: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.API.Validate(); err != nil {
		return err
	}
	if c.Fiscal.Timeout <= 0 {
		return fmt.Errorf("fiscal timeout must be positive")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return nil
}

// Validate validates the backend configuration
func (c *BackendConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}

	u, err := url.Parse(c.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BACKEND_URL must be an absolute URL, got %q", c.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("BACKEND_URL scheme must be http or https, got %q", u.Scheme)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be positive")
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("backend retry attempts cannot be negative")
	}
	if c.RetryMaxDelay < c.RetryBaseDelay {
		return fmt.Errorf("backend retry max delay must not be below base delay")
	}
	return nil
}

// ToClientConfig converts BackendConfig to backend.Config
func (c *BackendConfig) ToClientConfig(userAgent string, logger *logrus.Logger) *backend.Config {
	return &backend.Config{
		BaseURL:   c.URL,
		Token:     c.Token,
		Timeout:   c.Timeout,
		UserAgent: userAgent,
		Retry: backend.RetryConfig{
			MaxAttempts: c.RetryAttempts,
			BaseDelay:   c.RetryBaseDelay,
			MaxDelay:    c.RetryMaxDelay,
			MaxJitter:   c.RetryMaxJitter,
		},
		Logger: logger,
	}
}

// Validate validates the local API configuration
func (c *APIConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("API port must be between 1 and 65535, got %d", c.Port)
	}
	if c.RateLimit <= 0 || c.RateBurst < 1 {
		return fmt.Errorf("API rate limit and burst must be positive")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("API session TTL must be positive")
	}
	return nil
}

// Address returns host:port for the local API listener
func (c *APIConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
