package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/vitality/internal/core/config"
	"github.com/vietddude/vitality/internal/core/domain"
)

// =============================================================================
// Mocks
// =============================================================================

type stubProvider struct {
	name  string
	err   error
	delay time.Duration
	panic bool
	calls atomic.Int32
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Send(ctx context.Context, ev domain.Event) error {
	s.calls.Add(1)
	if s.panic {
		panic("provider exploded")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

type feedProvider struct {
	*stubProvider
}

func (feedProvider) Feed() bool { return true }

var logMu sync.Mutex

// captureLogs redirects the default logger for the duration of fn.
func captureLogs(t *testing.T, fn func()) string {
	t.Helper()
	logMu.Lock()
	defer logMu.Unlock()

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(prev)

	fn()
	return buf.String()
}

func testEvent() domain.Event {
	now := time.Now()
	return domain.NewEvent(domain.EventTypeIssueOpened, &domain.Issue{
		Key:             "800x1x0",
		Kind:            domain.KindChannelDown,
		FirstDetectedAt: now,
	}, now)
}

// =============================================================================
// Tests
// =============================================================================

func TestNotify_FailureIsolated(t *testing.T) {
	bad := &stubProvider{name: "bad", err: errors.New("bad credentials")}
	good := &stubProvider{name: "good"}
	d := NewDispatcher(Config{Timeout: time.Second}, bad, good)

	results := d.Notify(context.Background(), testEvent())
	require.Len(t, results, 2)

	assert.Equal(t, "bad", results[0].Provider)
	var derr *DeliveryError
	require.ErrorAs(t, results[0].Err, &derr)
	assert.Equal(t, "bad", derr.Provider)

	assert.Equal(t, "good", results[1].Provider)
	assert.NoError(t, results[1].Err)
	assert.True(t, domain.Delivered(results))
	assert.EqualValues(t, 1, good.calls.Load())
}

func TestNotify_SlowProviderDoesNotDelayOthers(t *testing.T) {
	slow := &stubProvider{name: "slow", delay: time.Minute}
	fast := &stubProvider{name: "fast"}
	d := NewDispatcher(Config{Timeout: 100 * time.Millisecond}, slow, fast)

	start := time.Now()
	results := d.Notify(context.Background(), testEvent())
	elapsed := time.Since(start)

	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
	assert.NoError(t, results[1].Err)
	assert.Less(t, elapsed, 5*time.Second)
}

func TestNotify_PanicIsContained(t *testing.T) {
	boom := &stubProvider{name: "boom", panic: true}
	ok := &stubProvider{name: "ok"}
	d := NewDispatcher(Config{Timeout: time.Second}, boom, ok)

	results := d.Notify(context.Background(), testEvent())
	require.Len(t, results, 2)
	assert.Error(t, results[0].Err)
	assert.NoError(t, results[1].Err)
}

func TestNotify_AllFailedNotDelivered(t *testing.T) {
	d := NewDispatcher(Config{Timeout: time.Second},
		&stubProvider{name: "a", err: errors.New("x")},
		&stubProvider{name: "b", err: errors.New("y")},
	)
	assert.False(t, domain.Delivered(d.Notify(context.Background(), testEvent())))
}

func TestNotify_FeedAloneIsNotDelivery(t *testing.T) {
	feed := feedProvider{&stubProvider{name: "redis"}}
	tg := &stubProvider{name: "telegram", err: errors.New("unauthorized")}
	d := NewDispatcher(Config{Timeout: time.Second}, feed, tg)

	results := d.Notify(context.Background(), testEvent())
	require.Len(t, results, 2)
	assert.True(t, results[0].Feed)
	assert.NoError(t, results[0].Err)
	assert.False(t, results[1].Feed)
	assert.False(t, domain.Delivered(results), "the operator was not reached")
}

func TestNotify_OnlyFeedsCountAsDelivered(t *testing.T) {
	d := NewDispatcher(Config{Timeout: time.Second}, feedProvider{&stubProvider{name: "redis", err: errors.New("down")}})
	assert.True(t, domain.Delivered(d.Notify(context.Background(), testEvent())),
		"without an operator facing provider there is nothing to retry")
}

func TestNotify_CancelledContextStillDelivers(t *testing.T) {
	p := &stubProvider{name: "p", delay: 10 * time.Millisecond}
	d := NewDispatcher(Config{Timeout: time.Second}, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := d.Notify(ctx, testEvent())
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
}

func TestConfigure_TelegramRecipientsLogged(t *testing.T) {
	d := NewDispatcher(Config{})
	opts, err := config.ParseOptions(map[string]string{
		config.OptTelegramToken:     "123:abc",
		config.OptTelegramUsernames: " 936723718 ,936723717 ",
	})
	require.NoError(t, err)

	logs := captureLogs(t, func() { d.Configure(opts) })

	assert.Contains(t, logs, "Will try to notify 936723718, 936723717 via telegram")
	assert.Equal(t, []string{"telegram"}, d.Providers())
}

func TestConfigure_EmailActivation(t *testing.T) {
	full := map[string]string{
		config.OptSMTPUsername: "user",
		config.OptSMTPPassword: "pass",
		config.OptSMTPServer:   "smtp.example.com",
		config.OptSMTPPort:     "587",
		config.OptEmailFrom:    "node@example.com",
		config.OptEmailTo:      "ops@example.com, oncall@example.com",
	}

	opts, err := config.ParseOptions(full)
	require.NoError(t, err)
	d := NewDispatcher(Config{})
	logs := captureLogs(t, func() { d.Configure(opts) })
	assert.Contains(t, logs, "Will try to send notifications via email")
	assert.Equal(t, []string{"email"}, d.Providers())

	delete(full, config.OptSMTPPassword)
	partial, err := config.ParseOptions(full)
	require.NoError(t, err)
	d = NewDispatcher(Config{})
	logs = captureLogs(t, func() { d.Configure(partial) })
	assert.NotContains(t, logs, "Will try to send notifications via email")
	assert.Contains(t, logs, "Insufficient config for email notifications. Will not send emails")
	assert.Empty(t, d.Providers())
}

func TestConfigure_KeepsStaticProviders(t *testing.T) {
	static := &stubProvider{name: "redis"}
	d := NewDispatcher(Config{}, static)

	captureLogs(t, func() { d.Configure(&config.Options{}) })
	assert.Equal(t, []string{"redis"}, d.Providers())
}

func TestTest_NoProviders(t *testing.T) {
	d := NewDispatcher(Config{})
	_, err := d.Test(context.Background())
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestFormatMessage_Truncates(t *testing.T) {
	ev := testEvent()
	ev.Detail = strings.Repeat("x", 5000)

	msg := FormatMessage(ev)
	assert.Len(t, []rune(msg), maxMessageLen)
	assert.True(t, strings.HasPrefix(msg, ev.Subject()+"\n"))
}
