// Package notify delivers issue events to the operator through every
// configured provider.
package notify

import (
	"context"
	"fmt"

	"github.com/vietddude/vitality/internal/core/domain"
)

// Provider sends one event through one channel.
type Provider interface {
	Name() string
	Send(ctx context.Context, ev domain.Event) error
}

// Feed is implemented by providers that publish for other programs rather
// than for the operator. Their deliveries never mark an issue as notified.
type Feed interface {
	Feed() bool
}

func isFeed(p Provider) bool {
	f, ok := p.(Feed)
	return ok && f.Feed()
}

// DeliveryError reports a failed send through one provider.
type DeliveryError struct {
	Provider string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("send via %s: %v", e.Provider, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// maxMessageLen is the telegram limit, applied to every text message.
const maxMessageLen = 4000

// FormatMessage renders an event as "subject\nbody", truncated to the
// telegram message limit.
func FormatMessage(ev domain.Event) string {
	msg := ev.Subject() + "\n" + ev.Body()
	runes := []rune(msg)
	if len(runes) > maxMessageLen {
		return string(runes[:maxMessageLen])
	}
	return msg
}
