package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort             = 8080
	defaultEnv              = "development"
	defaultBaseURL          = "http://localhost:8080"
	defaultDataDir          = "./data"
	defaultLogsDir          = "./logs"
	defaultRotateSizeMB     = 10
	defaultRotateKeep       = 5
	defaultReminderInterval = time.Hour
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port             int         `yaml:"port"`
	Env              string      `yaml:"env"` // "development" | "production"
	BaseURL          string      `yaml:"base_url"`
	DataDir          string      `yaml:"data_dir"`
	Paths            PathsConfig `yaml:"paths"`
	LogRotateSize    *int        `yaml:"log_rotate_size_mb"`
	LogRotateKeep    *int        `yaml:"log_rotate_keep"`
	ReminderInterval string      `yaml:"reminder_interval"`
	AllowedOrigins   []string    `yaml:"allowed_origins"`
	Mail             MailConfig  `yaml:"mail"`
}

type PathsConfig struct {
	Logs string `yaml:"logs"`
}

type MailConfig struct {
	Enable  bool         `yaml:"enable"`
	From    string       `yaml:"from"`
	ReplyTo string       `yaml:"reply_to"`
	SMTP    SMTPConfig   `yaml:"smtp"`
	Resend  ResendConfig `yaml:"resend"`
}

type SMTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
}

type ResendConfig struct {
	APIKey string `yaml:"api_key"`
}

// smtpEnv carries environment overrides for mail credentials so secrets can
// stay out of the config file.
type smtpEnv struct {
	Host string `env:"SMTP_HOST"`
	Port int    `env:"SMTP_PORT"`
	User string `env:"SMTP_USERNAME"`
	Pass string `env:"SMTP_PASSWORD"`
	From string `env:"SMTP_FROM"`
}

// Load reads the YAML config at path. A missing file is not an error: the
// defaults describe a working development setup.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// defaults only
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.Env == "" {
		c.Env = defaultEnv
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}
	if c.Paths.Logs == "" {
		c.Paths.Logs = defaultLogsDir
	}
}

func (c *AppConfig) applyEnv() error {
	overrides, err := env.ParseAs[smtpEnv]()
	if err != nil {
		return fmt.Errorf("config: parse environment: %w", err)
	}
	if overrides.Host != "" {
		c.Mail.SMTP.Host = overrides.Host
	}
	if overrides.Port != 0 {
		c.Mail.SMTP.Port = overrides.Port
	}
	if overrides.User != "" {
		c.Mail.SMTP.User = overrides.User
	}
	if overrides.Pass != "" {
		c.Mail.SMTP.Pass = overrides.Pass
	}
	if overrides.From != "" {
		c.Mail.From = overrides.From
	}
	return nil
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool {
	return c.Env != "production"
}

// RotateSize returns the log rotation threshold in bytes.
func (c *AppConfig) RotateSize() int64 {
	mb := defaultRotateSizeMB
	if c.LogRotateSize != nil && *c.LogRotateSize > 0 {
		mb = *c.LogRotateSize
	}
	return int64(mb) * 1024 * 1024
}

// RotateKeep returns how many rotated log generations to retain.
func (c *AppConfig) RotateKeep() int {
	if c.LogRotateKeep != nil && *c.LogRotateKeep > 0 {
		return *c.LogRotateKeep
	}
	return defaultRotateKeep
}

// Interval returns the reminder dispatch cadence.
func (c *AppConfig) Interval() time.Duration {
	if c.ReminderInterval == "" {
		return defaultReminderInterval
	}
	d, err := time.ParseDuration(c.ReminderInterval)
	if err != nil || d <= 0 {
		return defaultReminderInterval
	}
	return d
}
