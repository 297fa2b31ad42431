package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vietddude/vitality/internal/core/domain"
)

// Publisher publishes a payload on a pub/sub channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisProvider publishes every event as JSON for downstream tooling.
type RedisProvider struct {
	pub     Publisher
	channel string
}

func NewRedisProvider(pub Publisher, channel string) *RedisProvider {
	return &RedisProvider{pub: pub, channel: channel}
}

func (p *RedisProvider) Name() string { return "redis" }

// Feed marks redis as a machine feed: publishing there does not tell the
// operator anything.
func (p *RedisProvider) Feed() bool { return true }

func (p *RedisProvider) Send(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.pub.Publish(ctx, p.channel, payload)
}
