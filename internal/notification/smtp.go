package notification

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"strings"
	"sync"

	"github.com/wneessen/go-mail"

	"github.com/shaharia-lab/knockknock/internal/build"
)

var _ Transport = (*SMTPTransport)(nil)

// SMTPTransport delivers notifications over one SMTP session using the
// go-mail library. The session is opened and authenticated at construction
// and reused by every send; Send is safe for concurrent use.
type SMTPTransport struct {
	client *mail.Client
	from   string

	mu        sync.Mutex
	connected bool
}

// NewSMTPTransport creates a go-mail client for cfg, bound to sender, and
// dials it immediately so bad credentials fail here rather than on the first
// notification. Username defaults to sender.
func NewSMTPTransport(ctx context.Context, cfg SMTPConfig, sender string) (*SMTPTransport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	username := cfg.Username
	if username == "" {
		username = sender
	}

	opts := []mail.Option{mail.WithPort(cfg.Port)}
	opts = append(opts, encryptionOptions(cfg.Encryption)...)
	if cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(username),
			mail.WithPassword(cfg.Password),
		)
	}

	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, &TransportInitError{Host: cfg.Host, Err: err}
	}

	t := &SMTPTransport{client: c, from: sender}
	if err := c.DialWithContext(ctx); err != nil {
		if isAuthFailure(err) {
			return nil, &AuthenticationError{Username: username, Err: err}
		}
		return nil, &TransportInitError{Host: cfg.Host, Err: err}
	}
	t.connected = true
	return t, nil
}

// Name returns the transport identifier.
func (t *SMTPTransport) Name() string { return "smtp" }

// Send delivers one plain-text message over the held session. A session the
// server closed while idle is redialled once before the message goes out. A
// failed send drops the session; the next Send opens a new one. The failed
// message is not resent.
func (t *SMTPTransport) Send(ctx context.Context, to, subject string, lines []string) error {
	m := mail.NewMsg()
	if err := m.From(t.from); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(to); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	m.Subject(subject)
	m.SetGenHeader(mail.HeaderXMailer, build.Mailer())
	m.SetBodyString(mail.TypeTextPlain, strings.Join(lines, "\n"))

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		if err := t.client.DialWithContext(ctx); err != nil {
			return fmt.Errorf("reconnecting to mail server: %w", err)
		}
		t.connected = true
	}

	err := t.client.Send(m)
	if isConnCheckFailure(err) {
		// The server dropped the idle session before any data was sent.
		_ = t.client.Close()
		if derr := t.client.DialWithContext(ctx); derr != nil {
			t.connected = false
			return fmt.Errorf("reconnecting to mail server: %w", errors.Join(err, derr))
		}
		err = t.client.Send(m)
	}
	if err != nil {
		t.connected = false
		if cerr := t.client.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return err
	}
	return nil
}

// Close ends the SMTP session.
func (t *SMTPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return nil
	}
	t.connected = false
	return t.client.Close()
}

// encryptionOptions converts the encryption setting to go-mail options.
func encryptionOptions(enc string) []mail.Option {
	switch enc {
	case EncryptionSSLTLS:
		return []mail.Option{mail.WithSSL()}
	case EncryptionSTARTTLS:
		return []mail.Option{mail.WithTLSPolicy(mail.TLSOpportunistic)}
	default:
		return []mail.Option{mail.WithTLSPolicy(mail.NoTLS)}
	}
}

// isConnCheckFailure reports whether go-mail refused to send because the
// session failed its pre-send check, before any message data was written.
func isConnCheckFailure(err error) bool {
	var sendErr *mail.SendError
	return errors.As(err, &sendErr) && sendErr.Reason == mail.ErrConnCheck
}

// isAuthFailure reports whether a dial error came from the AUTH exchange.
func isAuthFailure(err error) bool {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch protoErr.Code {
		case 530, 534, 535:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "auth")
}
