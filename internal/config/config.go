package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/urielssan/subite/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Pricing    PricingConfig    `yaml:"pricing"`
	Slots      SlotsConfig      `yaml:"slots"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	AMQP       AMQPConfig       `yaml:"amqp"`
	Google     GoogleConfig     `yaml:"google"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	Timezone    string `yaml:"timezone"`
}

type DatabaseConfig struct {
	Path        string `yaml:"path"`
	PricesSeed  string `yaml:"prices_seed"`
	BusyTimeout int    `yaml:"busy_timeout_ms"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
	CORS      APICORSConfig      `yaml:"cors"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
	// BookingsPerMinute caps booking requests per client IP. Zero disables it.
	BookingsPerMinute int `yaml:"bookings_per_minute"`
}

type APICORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// PricingConfig configures the external pricing service and local fallbacks.
type PricingConfig struct {
	SurchargeURL      string        `yaml:"surcharge_url"`
	KmURL             string        `yaml:"km_url"`
	DistanceURL       string        `yaml:"distance_url"`
	APIKey            string        `yaml:"api_key"`
	Timeout           time.Duration `yaml:"timeout"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	FallbackSurcharge float64       `yaml:"fallback_surcharge"`
}

// SlotsConfig holds the canonical departure times per route.
// Keys of Weekday/Sunday are route codes, values are HH:MM strings.
type SlotsConfig struct {
	DefaultCapacity int                 `yaml:"default_capacity"`
	Weekday         map[string][]string `yaml:"weekday"`
	Sunday          map[string][]string `yaml:"sunday"`
	CleanupDays     int                 `yaml:"cleanup_days"`
}

type TelegramConfig struct {
	BotToken     string  `yaml:"bot_token"`
	ManagerChats []int64 `yaml:"manager_chats"`
	Debug        bool    `yaml:"debug"`
}

type AMQPConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

type GoogleConfig struct {
	CredentialsFile      string `yaml:"credentials_file"`
	BookingSpreadSheetID string `yaml:"bookings_spreadsheet_id"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; a missing file is not an error.
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("invalid app.timezone %q: %w", c.App.Timezone, err)
	}

	if c.Slots.DefaultCapacity < 1 {
		return fmt.Errorf("slots.default_capacity must be positive, got %d", c.Slots.DefaultCapacity)
	}

	if err := validateSlotLists("weekday", c.Slots.Weekday); err != nil {
		return err
	}
	if err := validateSlotLists("sunday", c.Slots.Sunday); err != nil {
		return err
	}

	if c.Pricing.FallbackSurcharge < 0 {
		return errors.New("pricing.fallback_surcharge must not be negative")
	}

	if c.Telegram.BotToken != "" && len(c.Telegram.ManagerChats) == 0 {
		return errors.New("telegram.manager_chats is required when bot_token is set")
	}

	return nil
}

func validateSlotLists(name string, lists map[string][]string) error {
	for route, times := range lists {
		if _, err := models.ParseRoute(route); err != nil {
			return fmt.Errorf("slots.%s: %w", name, err)
		}
		seen := make(map[string]bool, len(times))
		for _, raw := range times {
			if _, err := models.ParseTimeOfDay(raw); err != nil {
				return fmt.Errorf("slots.%s.%s: %w", name, route, err)
			}
			if seen[raw] {
				return fmt.Errorf("slots.%s.%s: duplicate time %s", name, route, raw)
			}
			seen[raw] = true
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "subite"
	}
	if c.App.Timezone == "" {
		c.App.Timezone = "America/Argentina/Cordoba"
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = 5000
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Pricing.Timeout == 0 {
		c.Pricing.Timeout = 6 * time.Second
	}
	if c.Pricing.CacheTTL == 0 {
		c.Pricing.CacheTTL = 10 * time.Minute
	}
	if c.Pricing.FallbackSurcharge == 0 {
		c.Pricing.FallbackSurcharge = models.DefaultPickupSurcharge
	}

	if c.Slots.DefaultCapacity == 0 {
		c.Slots.DefaultCapacity = models.DefaultCapacity
	}
	if c.Slots.CleanupDays == 0 {
		c.Slots.CleanupDays = models.DefaultCleanupDays
	}
	if c.Slots.Weekday == nil {
		c.Slots.Weekday = defaultSlotLists()
	}
	if c.Slots.Sunday == nil {
		c.Slots.Sunday = defaultSlotLists()
	}

	if c.AMQP.Queue == "" {
		c.AMQP.Queue = "subite.bookings"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "./exports"
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "./data/backups"
	}
}

func defaultSlotLists() map[string][]string {
	lists := make(map[string][]string, len(models.Routes))
	for _, r := range models.Routes {
		lists[string(r)] = append([]string(nil), models.DefaultSlotTimes...)
	}
	return lists
}

// Location returns the configured timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
