package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Matcher   MatcherConfig   `mapstructure:"matcher"`
	Capture   CaptureConfig   `mapstructure:"capture"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// ServerConfig defines server ports and addresses
type ServerConfig struct {
	MetricsPort int    `mapstructure:"metrics_port"`
	BindAddress string `mapstructure:"bind_address"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type          string      `mapstructure:"type"`
	Path          string      `mapstructure:"path"`
	RetentionDays int         `mapstructure:"retention_days"`
	Redis         RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EngineConfig defines attendance decision settings
type EngineConfig struct {
	Cooldown             string `mapstructure:"cooldown"`
	DayBoundaryPolicy    string `mapstructure:"day_boundary_policy"`
	ClockSkewTolerance   string `mapstructure:"clock_skew_tolerance"`
	MaxTrackedIdentities int    `mapstructure:"max_tracked_identities"`
	DailyResetTime       string `mapstructure:"daily_reset_time"`
}

// MatcherConfig defines face matching settings
type MatcherConfig struct {
	Tolerance     float64 `mapstructure:"tolerance"`
	MinConfidence float64 `mapstructure:"min_confidence"`
}

// CaptureConfig defines the recognition loop settings
type CaptureConfig struct {
	Source         string `mapstructure:"source"`
	ReplayFile     string `mapstructure:"replay_file"`
	SampleInterval string `mapstructure:"sample_interval"`
	QueueSize      int    `mapstructure:"queue_size"`
	AppendRetries  int    `mapstructure:"append_retries"`
}

// DashboardConfig defines the read-only HTTP API settings
type DashboardConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Port        int    `mapstructure:"port"`
	BindAddress string `mapstructure:"bind_address"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("STES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.bind_address", "0.0.0.0")

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "/var/lib/stes/stes.bolt")
	v.SetDefault("storage.retention_days", 90)
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 5)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Engine defaults
	v.SetDefault("engine.cooldown", "10m")
	v.SetDefault("engine.day_boundary_policy", "reset")
	v.SetDefault("engine.clock_skew_tolerance", "5m")
	v.SetDefault("engine.max_tracked_identities", 10000)
	v.SetDefault("engine.daily_reset_time", "00:00")

	// Matcher defaults
	v.SetDefault("matcher.tolerance", 0.6)
	v.SetDefault("matcher.min_confidence", 0.4)

	// Capture defaults
	v.SetDefault("capture.source", "none")
	v.SetDefault("capture.sample_interval", "500ms")
	v.SetDefault("capture.queue_size", 256)
	v.SetDefault("capture.append_retries", 3)

	// Dashboard defaults
	v.SetDefault("dashboard.enabled", true)
	v.SetDefault("dashboard.port", 8080)
	v.SetDefault("dashboard.bind_address", "0.0.0.0")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}
	if cfg.Dashboard.Enabled && (cfg.Dashboard.Port <= 0 || cfg.Dashboard.Port > 65535) {
		return fmt.Errorf("invalid dashboard port: %d", cfg.Dashboard.Port)
	}

	switch cfg.Storage.Type {
	case "bolt":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required")
		}
		// Ensure storage directory exists
		storageDir := filepath.Dir(cfg.Storage.Path)
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("redis host is required")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}

	if cfg.Storage.RetentionDays < 0 {
		return fmt.Errorf("retention days must not be negative: %d", cfg.Storage.RetentionDays)
	}

	for _, d := range []struct {
		name  string
		value string
	}{
		{"engine.cooldown", cfg.Engine.Cooldown},
		{"engine.clock_skew_tolerance", cfg.Engine.ClockSkewTolerance},
		{"capture.sample_interval", cfg.Capture.SampleInterval},
	} {
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
	}

	switch cfg.Engine.DayBoundaryPolicy {
	case "reset", "carry_over":
	default:
		return fmt.Errorf("unknown day boundary policy: %s", cfg.Engine.DayBoundaryPolicy)
	}

	if cfg.Engine.MaxTrackedIdentities <= 0 {
		return fmt.Errorf("max tracked identities must be positive: %d", cfg.Engine.MaxTrackedIdentities)
	}

	if cfg.Matcher.Tolerance <= 0 || cfg.Matcher.Tolerance > 2 {
		return fmt.Errorf("matcher tolerance out of range: %f", cfg.Matcher.Tolerance)
	}
	if cfg.Matcher.MinConfidence < 0 || cfg.Matcher.MinConfidence > 1 {
		return fmt.Errorf("matcher min_confidence out of range: %f", cfg.Matcher.MinConfidence)
	}

	switch cfg.Capture.Source {
	case "none":
	case "replay":
		if cfg.Capture.ReplayFile == "" {
			return fmt.Errorf("capture source %q requires replay_file", cfg.Capture.Source)
		}
	default:
		return fmt.Errorf("unknown capture source: %s", cfg.Capture.Source)
	}

	if _, err := time.Parse("15:04", cfg.Engine.DailyResetTime); err != nil {
		return fmt.Errorf("invalid daily reset time %q: expected HH:MM", cfg.Engine.DailyResetTime)
	}

	return nil
}
