package notification

import "fmt"

// ConfigError is returned when notifier parameters are invalid.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return e.Message
}

// AuthenticationError is returned at construction when the mail server
// rejects the sender's credentials.
type AuthenticationError struct {
	Username string
	Err      error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authenticating %q with mail server: %v", e.Username, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// TransportInitError is returned at construction when the mail transport
// session cannot be established for any reason other than credentials.
type TransportInitError struct {
	Host string
	Err  error
}

func (e *TransportInitError) Error() string {
	return fmt.Sprintf("connecting to mail server %s: %v", e.Host, e.Err)
}

func (e *TransportInitError) Unwrap() error { return e.Err }

// SendError is returned when the transport fails to deliver a lifecycle
// notification.
type SendError struct {
	Event Event
	Err   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("sending %s notification: %v", e.Event, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
