package notification

import (
	"fmt"
	"strings"
)

// Encryption modes accepted in SMTPConfig.Encryption.
const (
	EncryptionNone     = "none"
	EncryptionSTARTTLS = "starttls"
	EncryptionSSLTLS   = "ssl_tls"
)

// SMTPConfig holds connection parameters for the SMTP transport.
type SMTPConfig struct {
	Host       string `json:"host" yaml:"host"`
	Port       int    `json:"port" yaml:"port"`
	Username   string `json:"username" yaml:"username"`
	Password   string `json:"password" yaml:"password"`
	Encryption string `json:"encryption" yaml:"encryption"` // "none", "starttls", "ssl_tls"
}

// Validate rejects encryption modes other than none, starttls and ssl_tls.
// An empty mode means none.
func (c SMTPConfig) Validate() error {
	switch c.Encryption {
	case "", EncryptionNone, EncryptionSTARTTLS, EncryptionSSLTLS:
		return nil
	}
	return &ConfigError{
		Field:   "encryption",
		Message: fmt.Sprintf("unknown mode %q (want %s, %s or %s)", c.Encryption, EncryptionNone, EncryptionSTARTTLS, EncryptionSSLTLS),
	}
}

// Config is the recipient/sender pair of a Notifier. It is immutable once
// built and shared by every invocation of the wrapped callables.
type Config struct {
	recipient string
	sender    string
}

// NewConfig builds a Config. An empty sender resolves to the recipient.
func NewConfig(recipient, sender string) (Config, error) {
	recipient = strings.TrimSpace(recipient)
	sender = strings.TrimSpace(sender)
	if recipient == "" {
		return Config{}, &ConfigError{Field: "recipient", Message: "recipient address is required"}
	}
	if sender == "" {
		sender = recipient
	}
	return Config{recipient: recipient, sender: sender}, nil
}

// Recipient returns the destination of every notification.
func (c Config) Recipient() string { return c.recipient }

// Sender returns the From address and SMTP identity.
func (c Config) Sender() string { return c.sender }
