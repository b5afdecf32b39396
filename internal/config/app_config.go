package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/shaharia-lab/knockknock/internal/notification"
)

const (
	defaultSMTPHost       = "smtp.gmail.com"
	defaultSMTPPort       = 587
	defaultSMTPEncryption = "starttls"
	defaultSendTimeout    = 30 * time.Second
)

// SMTPSettings holds the mail server connection parameters.
type SMTPSettings struct {
	Host string `envconfig:"HOST" yaml:"host"`
	Port int    `envconfig:"PORT" yaml:"port"`

	// Username defaults to the sender address when empty.
	Username string `envconfig:"USERNAME" yaml:"username"`
	Password string `envconfig:"PASSWORD" yaml:"password"`

	// Encryption is one of "none", "starttls" or "ssl_tls". Defaults to starttls.
	Encryption string `envconfig:"ENCRYPTION" yaml:"encryption"`
}

// AppConfig holds all application-level configuration. Values come from an
// optional YAML file named by KNOCK_CONFIG_FILE, overridden by environment
// variables.
type AppConfig struct {
	// Recipient receives every lifecycle notification.
	Recipient string `envconfig:"KNOCK_RECIPIENT" yaml:"recipient"`

	// Sender is the From address and SMTP identity. Defaults to Recipient.
	Sender string `envconfig:"KNOCK_SENDER" yaml:"sender"`

	// DataDir is the root data directory. Defaults to ~/.knockknock.
	DataDir string `envconfig:"KNOCK_DATA_DIR" yaml:"data_dir"`

	// LogLevel sets the minimum log level (debug, info, warn, error). Defaults to info.
	LogLevel string `envconfig:"LOG_LEVEL" yaml:"log_level"`

	// SendTimeout bounds each notification send. Defaults to 30s.
	SendTimeout time.Duration `envconfig:"KNOCK_SEND_TIMEOUT" yaml:"send_timeout"`

	SMTP SMTPSettings `envconfig:"SMTP" yaml:"smtp"`
}

// Load reads AppConfig from the optional config file and the environment.
// Environment variables win over file values; unset fields get defaults.
func Load() (*AppConfig, error) {
	var c AppConfig
	if path := os.Getenv("KNOCK_CONFIG_FILE"); path != "" {
		if err := c.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := c.applyDefaults(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFile decodes the YAML file at path into c.
func (c *AppConfig) LoadFile(path string) error {
	//nolint:gosec // path is operator-supplied
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %q: %w", path, err)
	}
	return nil
}

func (c *AppConfig) applyDefaults() error {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolving home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".knockknock")
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = defaultSendTimeout
	}
	if c.SMTP.Host == "" {
		c.SMTP.Host = defaultSMTPHost
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = defaultSMTPPort
	}
	if c.SMTP.Encryption == "" {
		c.SMTP.Encryption = defaultSMTPEncryption
	}
	return c.Transport().Validate()
}

// SlogLevel converts the LogLevel string to a slog.Level.
// Unknown values default to slog.LevelInfo.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogDir returns the path to the log directory (~/.knockknock/logs).
func (c *AppConfig) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// DBPath returns the path to the delivery log database.
func (c *AppConfig) DBPath() string {
	return filepath.Join(c.DataDir, "knock.db")
}

// Transport converts the SMTP settings into the transport configuration.
func (c *AppConfig) Transport() notification.SMTPConfig {
	return notification.SMTPConfig{
		Host:       c.SMTP.Host,
		Port:       c.SMTP.Port,
		Username:   c.SMTP.Username,
		Password:   c.SMTP.Password,
		Encryption: c.SMTP.Encryption,
	}
}
