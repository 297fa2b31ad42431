package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/vitality/internal/core/config"
	"github.com/vietddude/vitality/internal/core/domain"
	"github.com/vietddude/vitality/internal/monitoring/metrics"
)

// ErrNoProviders is returned by Test when nothing is configured.
var ErrNoProviders = errors.New("no notification provider configured")

// Config holds dispatcher settings.
type Config struct {
	Timeout     time.Duration // per provider send
	HTTPClient  *http.Client  // used by http based providers
	TelegramAPI string        // Bot API base url, empty = api.telegram.org
}

// Dispatcher fans every event out to all active providers. Each send runs in
// its own goroutine under its own timeout; one provider failing never
// affects the others.
type Dispatcher struct {
	cfg    Config
	static []Provider

	mu        sync.RWMutex
	providers []Provider
}

// NewDispatcher creates a dispatcher. Static providers are always active;
// option based providers are added by Configure.
func NewDispatcher(cfg Config, static ...Provider) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultNotifyTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Dispatcher{
		cfg:       cfg,
		static:    static,
		providers: append([]Provider(nil), static...),
	}
}

// Configure rebuilds the option based providers from o and logs which ones
// are active.
func (d *Dispatcher) Configure(o *config.Options) {
	providers := append([]Provider(nil), d.static...)

	if o.TelegramActive() {
		slog.Info(fmt.Sprintf("Will try to notify %s via telegram", strings.Join(o.TelegramUsernames, ", ")))
		tg := NewTelegramProvider(o.TelegramToken, o.TelegramUsernames, d.cfg.HTTPClient)
		if d.cfg.TelegramAPI != "" {
			tg.baseURL = strings.TrimRight(d.cfg.TelegramAPI, "/")
		}
		providers = append(providers, tg)
	} else {
		slog.Info("Insufficient config for telegram notifications. Will not send telegrams.")
	}

	if o.EmailActive() {
		slog.Info("Will try to send notifications via email")
		providers = append(providers, NewEmailProvider(EmailConfig{
			Server:   o.SMTPServer,
			Port:     o.SMTPPort,
			Username: o.SMTPUsername,
			Password: o.SMTPPassword,
			From:     o.EmailFrom,
			To:       o.EmailRecipients(),
			Timeout:  d.cfg.Timeout,
		}))
	} else {
		slog.Info("Insufficient config for email notifications. Will not send emails")
	}

	d.mu.Lock()
	d.providers = providers
	d.mu.Unlock()
}

// Providers returns the names of the active providers.
func (d *Dispatcher) Providers() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.providers))
	for _, p := range d.providers {
		names = append(names, p.Name())
	}
	return names
}

// Notify sends ev through every active provider and returns one result per
// provider, in provider order. Sends outlive ctx cancellation up to the
// per-provider timeout so shutdown does not cut a delivery in half.
func (d *Dispatcher) Notify(ctx context.Context, ev domain.Event) []domain.DeliveryResult {
	d.mu.RLock()
	providers := d.providers
	d.mu.RUnlock()

	if len(providers) == 0 {
		slog.Info("No notification provider active", "subject", ev.Subject())
		return nil
	}

	base := context.WithoutCancel(ctx)
	results := make([]domain.DeliveryResult, len(providers))

	var g errgroup.Group
	for i, p := range providers {
		g.Go(func() error {
			results[i] = d.send(base, p, ev)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (d *Dispatcher) send(ctx context.Context, p Provider, ev domain.Event) (res domain.DeliveryResult) {
	res.Provider = p.Name()
	res.Feed = isFeed(p)

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			res.Err = &DeliveryError{Provider: p.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
		d.record(res, ev)
	}()

	if err := p.Send(ctx, ev); err != nil {
		res.Err = &DeliveryError{Provider: p.Name(), Err: err}
	}
	return res
}

func (d *Dispatcher) record(res domain.DeliveryResult, ev domain.Event) {
	if res.Err != nil {
		slog.Warn("Notification delivery failed",
			"provider", res.Provider, "event", ev.EventType, "key", ev.Key, "error", res.Err)
		metrics.NotificationsTotal.WithLabelValues(res.Provider, string(ev.EventType), "failed").Inc()
		return
	}
	slog.Debug("Notification delivered", "provider", res.Provider, "event", ev.EventType, "key", ev.Key)
	metrics.NotificationsTotal.WithLabelValues(res.Provider, string(ev.EventType), "sent").Inc()
}

// Test sends the test notification through every active provider.
func (d *Dispatcher) Test(ctx context.Context) ([]domain.DeliveryResult, error) {
	if len(d.Providers()) == 0 {
		return nil, ErrNoProviders
	}
	return d.Notify(ctx, domain.NewTestEvent(time.Now())), nil
}
