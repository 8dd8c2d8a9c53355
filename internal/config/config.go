package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Validation ValidationConfig `mapstructure:"validation"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// ExtractionConfig holds the receipt extraction provider configuration
type ExtractionConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`

	// Enabled gates the vision provider; off, validation degrades to
	// error results instead of calling out.
	Enabled bool `mapstructure:"enabled"`
}

// ValidationConfig holds document validation configuration
type ValidationConfig struct {
	ItemTimeout time.Duration `mapstructure:"item_timeout"`
}

// SchedulerConfig holds deadline scheduler configuration
type SchedulerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	ReportGrace  time.Duration `mapstructure:"report_grace"`
}

// StorageConfig holds attachment storage configuration
type StorageConfig struct {
	AttachmentDir string `mapstructure:"attachment_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables. A .env
// file in the working directory is applied first, so local overrides work
// without exporting anything.
func Load(configPath string) (*Config, error) {
	_ = gotenv.Load()

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/sosfu.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Extraction defaults
	viper.SetDefault("extraction.model", "gpt-4o")
	viper.SetDefault("extraction.enabled", true)

	// Validation defaults
	viper.SetDefault("validation.item_timeout", 10*time.Second)

	// Scheduler defaults
	viper.SetDefault("scheduler.poll_interval", time.Minute)
	viper.SetDefault("scheduler.report_grace", 30*24*time.Hour)

	// Storage defaults
	viper.SetDefault("storage.attachment_dir", "attachments")

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("extraction.api_key", "OPENAI_API_KEY")
	viper.BindEnv("database.path", "DATABASE_PATH")
	viper.BindEnv("server.port", "SERVER_PORT")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Extraction.Enabled && c.Extraction.APIKey == "" {
		return fmt.Errorf("extraction api key is required when extraction is enabled (set OPENAI_API_KEY)")
	}
	if c.Validation.ItemTimeout <= 0 {
		return fmt.Errorf("validation item timeout must be positive")
	}
	if c.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("scheduler poll interval must be positive")
	}
	return nil
}
