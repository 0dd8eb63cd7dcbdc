package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds all configuration for the account gate service
type Config struct {
	Telegram ReceiverConfig
	Bot      BotConfig
	Database DatabaseConfig
	Audit    AuditConfig
	Sweep    SweepConfig
	Kafka    KafkaConfig
	S3       S3Config
	Logging  LoggingConfig
	Service  ServiceConfig
}

// ReceiverConfig holds MTProto defaults used when the credential pool is empty
type ReceiverConfig struct {
	DefaultAPIID   int
	DefaultAPIHash string
	SessionsDir    string
	ProbeTimeout   time.Duration
}

// BotConfig holds the bot transport configuration
type BotConfig struct {
	Token string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN builds the postgres connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// AuditConfig holds audit forwarding configuration
type AuditConfig struct {
	Enabled   bool
	ChannelID int64
}

// SweepConfig holds reconciliation scheduling configuration
type SweepConfig struct {
	Interval            time.Duration
	PendingGrace        time.Duration
	RecheckInterval     time.Duration
	MaxConcurrentJobs   int
	RevokeOtherSessions bool
}

// KafkaConfig holds event publishing configuration; empty brokers disable it
type KafkaConfig struct {
	Brokers []string
}

// S3Config holds the optional artifact vault configuration
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether the vault is configured
func (c S3Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// ServiceConfig holds service configuration
type ServiceConfig struct {
	Name string
	Port string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	defaultAPIID, err := strconv.Atoi(getEnv("TELEGRAM_API_ID", "2040"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_API_ID: %w", err)
	}

	auditChannelID, err := strconv.ParseInt(getEnv("AUDIT_CHANNEL_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid AUDIT_CHANNEL_ID: %w", err)
	}

	sweepInterval, err := time.ParseDuration(getEnv("SWEEP_INTERVAL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
	}
	pendingGrace, err := time.ParseDuration(getEnv("PENDING_GRACE", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid PENDING_GRACE: %w", err)
	}
	recheckInterval, err := time.ParseDuration(getEnv("RECHECK_INTERVAL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid RECHECK_INTERVAL: %w", err)
	}
	probeTimeout, err := time.ParseDuration(getEnv("PROBE_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROBE_TIMEOUT: %w", err)
	}

	maxJobs, err := strconv.Atoi(getEnv("SWEEP_MAX_CONCURRENT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_MAX_CONCURRENT: %w", err)
	}

	brokers := []string{}
	if brokersStr := getEnv("KAFKA_BROKERS", ""); brokersStr != "" {
		brokers = strings.Split(brokersStr, ",")
	}

	cfg := &Config{
		Telegram: ReceiverConfig{
			DefaultAPIID:   defaultAPIID,
			DefaultAPIHash: getEnv("TELEGRAM_API_HASH", "b18441a1ff607e10a989891a5462e627"),
			SessionsDir:    getEnv("SESSIONS_DIR", "./sessions"),
			ProbeTimeout:   probeTimeout,
		},
		Bot: BotConfig{
			Token: getEnv("BOT_TOKEN", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "accountgate"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Audit: AuditConfig{
			Enabled:   getEnv("ENABLE_AUDIT_FORWARDING", "false") == "true",
			ChannelID: auditChannelID,
		},
		Sweep: SweepConfig{
			Interval:            sweepInterval,
			PendingGrace:        pendingGrace,
			RecheckInterval:     recheckInterval,
			MaxConcurrentJobs:   maxJobs,
			RevokeOtherSessions: getEnv("REVOKE_OTHER_SESSIONS", "true") == "true",
		},
		Kafka: KafkaConfig{
			Brokers: brokers,
		},
		S3: S3Config{
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
			Bucket:    getEnv("S3_BUCKET", ""),
			UseSSL:    getEnv("S3_USE_SSL", "false") == "true",
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Service: ServiceConfig{
			Name: getEnv("SERVICE_NAME", "accountgate"),
			Port: getEnv("SERVICE_PORT", "8080"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	if c.Telegram.DefaultAPIHash == "" {
		return fmt.Errorf("TELEGRAM_API_HASH is required")
	}
	if c.Audit.Enabled && c.Audit.ChannelID == 0 {
		return fmt.Errorf("AUDIT_CHANNEL_ID is required when audit forwarding is enabled")
	}
	if c.Sweep.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("SWEEP_MAX_CONCURRENT must be positive")
	}
	return nil
}

// Result exposes config sections as individual fx outputs
type Result struct {
	fx.Out

	Config   *Config
	Telegram *ReceiverConfig
	Bot      *BotConfig
	Database *DatabaseConfig
	Audit    *AuditConfig
	Sweep    *SweepConfig
	Kafka    *KafkaConfig
	S3       *S3Config
	Logging  *LoggingConfig
	Service  *ServiceConfig
}

// Out loads the configuration and fans it out for fx dependency injection
func Out() (Result, error) {
	cfg, err := Load()
	if err != nil {
		return Result{}, err
	}
	return Result{
		Config:   cfg,
		Telegram: &cfg.Telegram,
		Bot:      &cfg.Bot,
		Database: &cfg.Database,
		Audit:    &cfg.Audit,
		Sweep:    &cfg.Sweep,
		Kafka:    &cfg.Kafka,
		S3:       &cfg.S3,
		Logging:  &cfg.Logging,
		Service:  &cfg.Service,
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
