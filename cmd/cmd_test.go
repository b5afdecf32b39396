package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/knockknock/internal/build"
	"github.com/shaharia-lab/knockknock/internal/config"
	"github.com/shaharia-lab/knockknock/internal/notification"
	"github.com/shaharia-lab/knockknock/internal/notification/mocks"
	"github.com/shaharia-lab/knockknock/internal/storage"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	return &config.AppConfig{
		Recipient:   "a@x.com",
		DataDir:     t.TempDir(),
		LogLevel:    "info",
		SendTimeout: 5 * time.Second,
		SMTP:        config.SMTPSettings{Host: "smtp.example.com", Port: 587, Encryption: "starttls"},
	}
}

func execute(t *testing.T, cfg *config.AppConfig, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd(cfg)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func stubDial(t *testing.T, tr notification.Transport) {
	t.Helper()
	orig := dialNotifier
	dialNotifier = func(_ context.Context, recipient, sender string, _ notification.SMTPConfig, opts ...notification.Option) (*notification.Notifier, error) {
		nc, err := notification.NewConfig(recipient, sender)
		if err != nil {
			return nil, err
		}
		return notification.New(nc, tr, opts...), nil
	}
	t.Cleanup(func() { dialNotifier = orig })
}

func newMockTransport() *mocks.MockTransport {
	tr := new(mocks.MockTransport)
	tr.On("Name").Return("mock").Maybe()
	return tr
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, testConfig(t), "version")
	require.NoError(t, err)
	assert.Contains(t, out, build.Version)
}

func TestRunCmd_PassesExitCodeThrough(t *testing.T) {
	requireShell(t)
	cfg := testConfig(t)
	tr := newMockTransport()
	tr.On("Send", mock.Anything, "a@x.com", notification.SubjectStart, mock.Anything).Return(nil).Once()
	tr.On("Send", mock.Anything, "a@x.com", notification.SubjectFailure, mock.MatchedBy(func(lines []string) bool {
		body := strings.Join(lines, "\n")
		return strings.Contains(body, "Main call: step") && strings.Contains(body, "boom on stderr")
	})).Return(nil).Once()
	stubDial(t, tr)

	_, err := execute(t, cfg, "run", "--name", "step", "--", "sh", "-c", "echo 'boom on stderr' >&2; exit 3")

	var exitErr *ExitCodeError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
	tr.AssertExpectations(t)
}

func TestRunCmd_SuccessWritesMetricsAndHistory(t *testing.T) {
	requireShell(t)
	cfg := testConfig(t)
	tr := newMockTransport()
	tr.On("Send", mock.Anything, "b@x.com", notification.SubjectStart, mock.Anything).Return(nil).Once()
	tr.On("Send", mock.Anything, "b@x.com", notification.SubjectSuccess, mock.Anything).Return(nil).Once()
	stubDial(t, tr)

	metricsFile := filepath.Join(t.TempDir(), "knock.prom")
	_, err := execute(t, cfg, "run", "-r", "b@x.com", "--metrics-file", metricsFile, "--", "sh", "-c", "exit 0")
	require.NoError(t, err)
	tr.AssertExpectations(t)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `knock_invocations_total{outcome="success"} 1`)
	assert.Contains(t, string(data), `knock_notifications_total{event="start",status="sent"} 1`)

	out, err := execute(t, cfg, "history", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "sh")
	assert.Contains(t, out, "start")
	assert.Contains(t, out, "success")
	assert.Contains(t, out, "b@x.com")
}

func TestRunCmd_StartFailureSkipsProgram(t *testing.T) {
	requireShell(t)
	cfg := testConfig(t)
	tr := newMockTransport()
	tr.On("Send", mock.Anything, "a@x.com", notification.SubjectStart, mock.Anything).
		Return(errors.New("421 service not available")).Once()
	stubDial(t, tr)

	marker := filepath.Join(t.TempDir(), "ran")
	_, err := execute(t, cfg, "run", "--", "sh", "-c", "touch "+marker)

	var sendErr *notification.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, notification.EventStart, sendErr.Event)
	assert.NoFileExists(t, marker)
	tr.AssertExpectations(t)
}

func TestRunCmd_MissingRecipient(t *testing.T) {
	cfg := testConfig(t)
	cfg.Recipient = ""

	_, err := execute(t, cfg, "run", "--", "true")
	var cfgErr *notification.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestRunCmd_RequiresProgram(t *testing.T) {
	_, err := execute(t, testConfig(t), "run")
	require.Error(t, err)
}

func TestTestCmd_SendsOneMessage(t *testing.T) {
	cfg := testConfig(t)
	tr := newMockTransport()
	tr.On("Send", mock.Anything, "c@x.com", testSubject, mock.MatchedBy(func(lines []string) bool {
		return len(lines) == 3 && strings.HasPrefix(lines[1], "Machine name: ")
	})).Return(nil).Once()

	var gotSender string
	orig := openTransport
	openTransport = func(_ context.Context, _ notification.SMTPConfig, sender string) (notification.Transport, error) {
		gotSender = sender
		return tr, nil
	}
	t.Cleanup(func() { openTransport = orig })

	out, err := execute(t, cfg, "test", "-r", "c@x.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Test notification sent to c@x.com")
	assert.Equal(t, "c@x.com", gotSender)
	tr.AssertExpectations(t)
}

func TestTestCmd_TransportError(t *testing.T) {
	cfg := testConfig(t)
	orig := openTransport
	openTransport = func(context.Context, notification.SMTPConfig, string) (notification.Transport, error) {
		return nil, &notification.AuthenticationError{Username: "a@x.com", Err: errors.New("535 bad credentials")}
	}
	t.Cleanup(func() { openTransport = orig })

	_, err := execute(t, cfg, "test")
	var authErr *notification.AuthenticationError
	require.ErrorAs(t, err, &authErr)
}

func TestHistoryCmd_Empty(t *testing.T) {
	out, err := execute(t, testConfig(t), "history")
	require.NoError(t, err)
	assert.Equal(t, "No notifications recorded yet.\n", out)
}

func TestHistoryCmd_ShowsFailures(t *testing.T) {
	cfg := testConfig(t)
	store, closeStore, err := openStore(cfg)
	require.NoError(t, err)
	require.NoError(t, store.LogNotification(context.Background(), storage.NotificationLogEntry{
		InvocationID: "0123456789abcdef",
		FunctionName: "train",
		Event:        "failure",
		Recipient:    "a@x.com",
		Provider:     "smtp",
		Subject:      notification.SubjectFailure,
		Status:       storage.StatusFailed,
		ErrorMsg:     "connection reset by peer",
		CreatedAt:    time.Now().UTC(),
	}))
	require.NoError(t, closeStore())

	out, err := execute(t, cfg, "history", "--no-color", "-n", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "connection reset by peer")
	assert.NotContains(t, out, "\x1b[")
}

func TestExitStatus(t *testing.T) {
	assert.NoError(t, exitStatus(nil))

	plain := errors.New("boom")
	assert.Same(t, plain, exitStatus(plain))

	var exitErr *ExitCodeError
	require.ErrorAs(t, exitStatus(context.Canceled), &exitErr)
	assert.Equal(t, 130, exitErr.Code)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
