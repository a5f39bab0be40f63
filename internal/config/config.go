package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Data     DataConfig
	Rings    RingsConfig
	Redis    RedisConfig
	Forecast ForecastConfig
	Logger   LoggerConfig
	Security SecurityConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DataConfig struct {
	CSVFile string
	// HolidaysFile empty means the embedded US calendar.
	HolidaysFile string
	// CacheDir empty disables the normalized-row cache.
	CacheDir string
}

// Ring hand-off backends.
const (
	HandoffMemory = "memory"
	HandoffFile   = "file"
	HandoffRedis  = "redis"
	HandoffNone   = "none"
)

type RingsConfig struct {
	Handoff       string
	HandoffDir    string
	HandoffTTL    time.Duration
	DefaultPeriod string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ForecastConfig struct {
	IntervalWidth float64
	Months        float64
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SecurityConfig struct {
	EnableCSRF      bool
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	AllowedOrigins  []string
	TrustedProxies  []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "localhost"),
			Port:            getEnvInt("SERVER_PORT", 8050),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Data: DataConfig{
			CSVFile:      getEnvString("CSV_FILE", "data/iowa_liquor_sales.csv"),
			HolidaysFile: os.Getenv("HOLIDAYS_FILE"),
			CacheDir:     getEnvString("CACHE_DIR", ".cache"),
		},
		Rings: RingsConfig{
			Handoff:       getEnvString("RING_HANDOFF", HandoffMemory),
			HandoffDir:    getEnvString("RING_HANDOFF_DIR", "data/rings"),
			HandoffTTL:    getEnvDuration("RING_HANDOFF_TTL", time.Hour),
			DefaultPeriod: getEnvString("RING_DEFAULT_PERIOD", "week"),
		},
		Redis: RedisConfig{
			Addr:     getEnvString("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Forecast: ForecastConfig{
			IntervalWidth: getEnvFloat("FORECAST_INTERVAL_WIDTH", 0.95),
			Months:        getEnvFloat("FORECAST_MONTHS", 3),
		},
		Logger: LoggerConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			EnableCSRF:      getEnvBool("SECURITY_CSRF_ENABLED", true),
			EnableRateLimit: getEnvBool("SECURITY_RATE_LIMIT_ENABLED", true),
			RateLimitRPS:    getEnvInt("SECURITY_RATE_LIMIT_RPS", 100),
			RateLimitBurst:  getEnvInt("SECURITY_RATE_LIMIT_BURST", 10),
			AllowedOrigins:  getEnvStringSlice("SECURITY_ALLOWED_ORIGINS", []string{"http://localhost:8050"}),
			TrustedProxies:  getEnvStringSlice("SECURITY_TRUSTED_PROXIES", []string{"127.0.0.1"}),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Data.CSVFile == "" {
		return fmt.Errorf("CSV file path cannot be empty")
	}

	if err := oneOf("log level", c.Logger.Level, "debug", "info", "warn", "error"); err != nil {
		return err
	}

	if err := oneOf("log format", c.Logger.Format, "json", "text"); err != nil {
		return err
	}

	if err := oneOf("ring hand-off", c.Rings.Handoff, HandoffMemory, HandoffFile, HandoffRedis, HandoffNone); err != nil {
		return err
	}

	if c.Rings.Handoff == HandoffFile && c.Rings.HandoffDir == "" {
		return fmt.Errorf("RING_HANDOFF_DIR is required for the file hand-off")
	}

	if c.Rings.Handoff == HandoffRedis && c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required for the redis hand-off")
	}

	if c.Rings.HandoffTTL < 0 {
		return fmt.Errorf("ring hand-off TTL cannot be negative")
	}

	if err := oneOf("default ring period", c.Rings.DefaultPeriod, "week", "month"); err != nil {
		return err
	}

	if c.Forecast.IntervalWidth <= 0 || c.Forecast.IntervalWidth >= 1 {
		return fmt.Errorf("forecast interval width must be between 0 and 1, got %v", c.Forecast.IntervalWidth)
	}

	if c.Forecast.Months <= 0 {
		return fmt.Errorf("forecast months must be positive")
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	return nil
}

func oneOf(name, value string, valid ...string) error {
	if !slices.Contains(valid, value) {
		return fmt.Errorf("invalid %s %q, must be one of: %s", name, value, strings.Join(valid, ", "))
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

// LogValue lets the whole config be logged at startup with secrets masked.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("Server", c.Server),
		slog.Any("Data", c.Data),
		slog.Any("Rings", c.Rings),
		slog.Any("Redis", c.Redis),
		slog.Any("Forecast", c.Forecast),
		slog.Any("Logger", c.Logger),
		slog.Any("Security", c.Security),
	)
}

func (r RedisConfig) LogValue() slog.Value {
	password := ""
	if r.Password != "" {
		password = "***"
	}
	return slog.GroupValue(
		slog.String("Addr", r.Addr),
		slog.String("Password", password),
		slog.Int("DB", r.DB),
	)
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
