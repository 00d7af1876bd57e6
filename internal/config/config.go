package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Mail         MailConfig         `yaml:"mail"`
	JWT          JWTConfig          `yaml:"jwt"`
	Log          LogConfig          `yaml:"log"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Notification NotificationConfig `yaml:"notification"`
	Redis        RedisConfig        `yaml:"redis"`
	Bootstrap    BootstrapConfig    `yaml:"bootstrap"`
}

// ServerConfig contains HTTP and gRPC health listener settings
type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// DatabaseConfig contains PostgreSQL connection settings.
// Driver "memory" keeps everything in process (development only).
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// MailConfig contains mail transport settings
type MailConfig struct {
	Provider   string `yaml:"provider"` // "sendgrid" or "log"
	APIKey     string `yaml:"api_key"`
	From       string `yaml:"from"`
	FromName   string `yaml:"from_name"`
	AdminEmail string `yaml:"admin_email"`
}

// JWTConfig contains JWT token settings
type JWTConfig struct {
	Secret            string `yaml:"secret"`
	AccessTokenExpiry int    `yaml:"access_token_expiry_minutes"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// SchedulerConfig contains cron schedule settings. Specs accept the
// seconds-precision cron syntax as well as "@every <duration>".
type SchedulerConfig struct {
	Enabled                bool   `yaml:"enabled"`
	DueReminders           string `yaml:"due_reminders"`
	OverdueCheck           string `yaml:"overdue_check"`
	RunOnStart             *bool  `yaml:"run_on_start"`
	PassTimeoutSeconds     int    `yaml:"pass_timeout_seconds"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
}

// NotificationConfig sizes the asynchronous notification dispatcher
type NotificationConfig struct {
	Workers            int `yaml:"workers"`
	QueueSize          int `yaml:"queue_size"`
	SendTimeoutSeconds int `yaml:"send_timeout_seconds"`
}

// RedisConfig is used for the scheduler pass lock. Empty Addr disables it.
type RedisConfig struct {
	Addr           string `yaml:"addr"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
}

// BootstrapConfig seeds an admin account at server start when set
type BootstrapConfig struct {
	AdminName     string `yaml:"admin_name"`
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies environment overrides and validates.
func Parse(data []byte) (*Config, error) {
	cfg := Config{Scheduler: SchedulerConfig{Enabled: true}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_DRIVER"); val != "" {
		c.Database.Driver = val
	}
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Mail
	if val := os.Getenv("MAIL_PROVIDER"); val != "" {
		c.Mail.Provider = val
	}
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.Mail.APIKey = val
	}
	if val := os.Getenv("MAIL_FROM"); val != "" {
		c.Mail.From = val
	}
	if val := os.Getenv("ADMIN_EMAIL"); val != "" {
		c.Mail.AdminEmail = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Redis
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		c.Redis.Addr = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Set defaults for log if not configured
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills defaults
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc port: %d", c.Server.GRPCPort)
	}

	// Database validation
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	// Mail validation
	if c.Mail.Provider == "" {
		c.Mail.Provider = "log"
	}
	switch c.Mail.Provider {
	case "sendgrid":
		if c.Mail.APIKey == "" {
			return fmt.Errorf("sendgrid api key is required")
		}
		if c.Mail.From == "" {
			return fmt.Errorf("mail from address is required")
		}
	case "log":
	default:
		return fmt.Errorf("unsupported mail provider: %s", c.Mail.Provider)
	}
	if c.Mail.FromName == "" {
		c.Mail.FromName = "Lab Inventory"
	}

	// JWT validation
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.JWT.AccessTokenExpiry == 0 {
		c.JWT.AccessTokenExpiry = 24 * 60
	}

	// Scheduler defaults
	if c.Scheduler.DueReminders == "" {
		c.Scheduler.DueReminders = "@every 24h"
	}
	if c.Scheduler.OverdueCheck == "" {
		c.Scheduler.OverdueCheck = "@every 24h"
	}
	if c.Scheduler.RunOnStart == nil {
		runOnStart := true
		c.Scheduler.RunOnStart = &runOnStart
	}
	if c.Scheduler.PassTimeoutSeconds == 0 {
		c.Scheduler.PassTimeoutSeconds = 300
	}
	if c.Scheduler.ShutdownTimeoutSeconds == 0 {
		c.Scheduler.ShutdownTimeoutSeconds = 30
	}

	// Notification defaults
	if c.Notification.Workers == 0 {
		c.Notification.Workers = 4
	}
	if c.Notification.QueueSize == 0 {
		c.Notification.QueueSize = 256
	}
	if c.Notification.SendTimeoutSeconds == 0 {
		c.Notification.SendTimeoutSeconds = 10
	}

	// Redis defaults
	if c.Redis.LockTTLSeconds == 0 {
		c.Redis.LockTTLSeconds = 600
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetGRPCAddress returns the gRPC health server address, empty when disabled
func (c *Config) GetGRPCAddress() string {
	if c.Server.GRPCPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}

func (s SchedulerConfig) PassTimeout() time.Duration {
	return time.Duration(s.PassTimeoutSeconds) * time.Second
}

func (s SchedulerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

func (n NotificationConfig) SendTimeout() time.Duration {
	return time.Duration(n.SendTimeoutSeconds) * time.Second
}

func (r RedisConfig) LockTTL() time.Duration {
	return time.Duration(r.LockTTLSeconds) * time.Second
}
