package notification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shaharia-lab/knockknock/internal/storage"
)

const tracerName = "github.com/shaharia-lab/knockknock/internal/notification"

// Notifier emails lifecycle notifications around wrapped calls. Its fields
// are set at construction and read-only afterwards, so one Notifier may be
// shared by concurrent invocations as long as its Transport is safe for
// concurrent use (SMTPTransport is).
type Notifier struct {
	config      Config
	transport   Transport
	store       storage.NotificationStore
	metrics     *Metrics
	tracer      trace.Tracer
	logger      *slog.Logger
	hostname    func() (string, error)
	now         func() time.Time
	sendTimeout time.Duration
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithStore records every send attempt in store.
func WithStore(store storage.NotificationStore) Option {
	return func(n *Notifier) { n.store = store }
}

// WithMetrics updates m on every invocation and send.
func WithMetrics(m *Metrics) Option {
	return func(n *Notifier) { n.metrics = m }
}

// WithTracerProvider traces each invocation with a span from tp.
// Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(n *Notifier) { n.tracer = tp.Tracer(tracerName) }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) { n.logger = l }
}

// WithHostname replaces os.Hostname as the machine name resolver.
func WithHostname(fn func() (string, error)) Option {
	return func(n *Notifier) { n.hostname = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

// WithSendTimeout bounds every send. Zero, the default, means no bound.
func WithSendTimeout(d time.Duration) Option {
	return func(n *Notifier) { n.sendTimeout = d }
}

// New creates a Notifier that delivers through transport.
func New(cfg Config, transport Transport, opts ...Option) *Notifier {
	n := &Notifier{
		config:    cfg,
		transport: transport,
		tracer:    otel.GetTracerProvider().Tracer(tracerName),
		logger:    slog.Default(),
		hostname:  os.Hostname,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Dial resolves the sender, opens an SMTP session bound to it and returns a
// Notifier using that session. Credential and connection failures surface
// here as *AuthenticationError or *TransportInitError.
func Dial(ctx context.Context, recipient, sender string, smtpCfg SMTPConfig, opts ...Option) (*Notifier, error) {
	cfg, err := NewConfig(recipient, sender)
	if err != nil {
		return nil, err
	}
	transport, err := NewSMTPTransport(ctx, smtpCfg, cfg.Sender())
	if err != nil {
		return nil, err
	}
	return New(cfg, transport, opts...), nil
}

// Config returns the notifier's recipient/sender pair.
func (n *Notifier) Config() Config { return n.config }

// Close releases the transport session if the transport holds one.
func (n *Notifier) Close() error {
	if c, ok := n.transport.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Wrap returns a callable with fn's signature and results that sends the
// lifecycle notifications around each call. The notifications name the call
// after fn's declared function name.
func Wrap[T any](n *Notifier, fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	return WrapNamed(n, FuncName(fn), fn)
}

// WrapNamed is Wrap with an explicit call name.
func WrapNamed[T any](n *Notifier, name string, fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		var value T
		err := n.Run(ctx, name, func(ctx context.Context) error {
			var callErr error
			value, callErr = fn(ctx)
			return callErr
		})
		return value, err
	}
}

// Run invokes fn once, synchronously, between a start notification and a
// success or crash notification.
//
// If the start notification fails its *SendError is returned and fn is not
// called. An error returned by fn is returned unchanged after the crash
// notification, and a panic in fn is re-raised with its original value; a
// failing crash notification is logged but never replaces fn's outcome. When
// fn succeeds, a failing success notification is returned as *SendError.
func (n *Notifier) Run(ctx context.Context, name string, fn func(context.Context) error) error {
	rec, err := n.begin(name)
	if err != nil {
		return err
	}

	ctx, span := n.tracer.Start(ctx, "knock.invoke", trace.WithAttributes(
		attribute.String("knock.invocation_id", rec.ID),
		attribute.String("knock.function", rec.FunctionName),
		attribute.String("knock.host", rec.HostName),
	))
	defer span.End()

	if err := n.notify(ctx, rec, EventStart, startMessage(rec)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "start notification failed")
		return err
	}

	returned := false
	defer func() {
		r := recover()
		if r == nil {
			if !returned {
				// runtime.Goexit: fn neither returned nor panicked.
				span.SetStatus(codes.Error, "call exited without returning")
				n.logger.Warn("wrapped call exited without returning, no outcome notification sent",
					"invocation_id", rec.ID, "function", rec.FunctionName)
			}
			return
		}
		rec.EndTime = n.now()
		n.metrics.observeInvocation(outcomePanic, rec.Elapsed())
		span.SetStatus(codes.Error, fmt.Sprint(r))
		n.reportCrash(ctx, rec, fmt.Sprint(r), string(debug.Stack()))
		panic(r)
	}()

	callErr := fn(ctx)
	returned = true
	rec.EndTime = n.now()

	if callErr != nil {
		n.metrics.observeInvocation(outcomeFailure, rec.Elapsed())
		span.RecordError(callErr)
		span.SetStatus(codes.Error, callErr.Error())
		n.reportCrash(ctx, rec, callErr.Error(), traceOf(callErr))
		return callErr
	}

	n.metrics.observeInvocation(outcomeSuccess, rec.Elapsed())
	span.SetStatus(codes.Ok, "")
	return n.notify(ctx, rec, EventSuccess, successMessage(rec))
}

func (n *Notifier) begin(name string) (*InvocationRecord, error) {
	start := n.now()
	host, err := n.hostname()
	if err != nil {
		return nil, fmt.Errorf("resolving host name: %w", err)
	}
	return &InvocationRecord{
		ID:           uuid.NewString(),
		FunctionName: name,
		HostName:     host,
		StartTime:    start,
	}, nil
}

// reportCrash sends the crash notification. A delivery failure is logged
// and recorded; the caller still returns the original outcome.
func (n *Notifier) reportCrash(ctx context.Context, rec *InvocationRecord, errText, stack string) {
	if err := n.notify(ctx, rec, EventFailure, failureMessage(rec, errText, stack)); err != nil {
		n.logger.Error("crash notification not delivered, returning original error",
			"invocation_id", rec.ID, "function", rec.FunctionName,
			"original_error", errText, "error", err)
	}
}

// notify makes exactly one delivery attempt for event. Sends are detached
// from ctx cancellation so a cancelled call can still report its crash.
func (n *Notifier) notify(ctx context.Context, rec *InvocationRecord, event Event, msg Message) error {
	sendCtx := context.WithoutCancel(ctx)
	if n.sendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(sendCtx, n.sendTimeout)
		defer cancel()
	}

	sendErr := n.transport.Send(sendCtx, n.config.Recipient(), msg.Subject, msg.Lines)

	status := storage.StatusSent
	if sendErr != nil {
		status = storage.StatusFailed
	}
	n.metrics.observeNotification(event, status)
	n.record(sendCtx, rec, event, msg, sendErr)

	if sendErr != nil {
		n.logger.Error("notification failed",
			"invocation_id", rec.ID, "event", event, "error", sendErr)
		return &SendError{Event: event, Err: sendErr}
	}
	n.logger.Info("notification sent",
		"invocation_id", rec.ID, "event", event,
		"function", rec.FunctionName, "recipient", n.config.Recipient())
	return nil
}

func (n *Notifier) record(ctx context.Context, rec *InvocationRecord, event Event, msg Message, sendErr error) {
	if n.store == nil {
		return
	}
	entry := storage.NotificationLogEntry{
		InvocationID: rec.ID,
		FunctionName: rec.FunctionName,
		Event:        string(event),
		Recipient:    n.config.Recipient(),
		Provider:     n.transport.Name(),
		Subject:      msg.Subject,
		Status:       storage.StatusSent,
		CreatedAt:    n.now().UTC(),
	}
	if sendErr != nil {
		entry.Status = storage.StatusFailed
		entry.ErrorMsg = sendErr.Error()
	}
	if err := n.store.LogNotification(ctx, entry); err != nil {
		n.logger.Warn("failed to log notification delivery",
			"invocation_id", rec.ID, "event", event, "error", err)
	}
}

// traceOf returns the error's own traceback when it carries one, otherwise
// the current goroutine stack.
func traceOf(err error) string {
	var tb Traceback
	if errors.As(err, &tb) {
		if s := tb.Traceback(); s != "" {
			return s
		}
	}
	return string(debug.Stack())
}

// FuncName returns the declared name of fn without its package path, e.g.
// "train" or "(*Trainer).Fit". Closures get the runtime's "outer.funcN" form.
func FuncName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return "unknown"
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return "unknown"
	}
	name := f.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}
