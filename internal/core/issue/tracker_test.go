package issue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/vitality/internal/core/domain"
)

// =============================================================================
// Mocks
// =============================================================================

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
	fail   bool
}

func (r *recordingNotifier) Notify(ctx context.Context, ev domain.Event) []domain.DeliveryResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if r.fail {
		return []domain.DeliveryResult{{Provider: "telegram", Err: errors.New("boom")}}
	}
	return []domain.DeliveryResult{{Provider: "telegram"}}
}

// reset returns the recorded events ordered by key; events of one tick are
// sent concurrently.
func (r *recordingNotifier) reset() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

type slowNotifier struct {
	delay time.Duration
	calls atomic.Int32
}

func (s *slowNotifier) Notify(ctx context.Context, ev domain.Event) []domain.DeliveryResult {
	s.calls.Add(1)
	time.Sleep(s.delay)
	return []domain.DeliveryResult{{Provider: "email", Err: context.DeadlineExceeded}}
}

func channelDown(keys ...string) []domain.Finding {
	out := make([]domain.Finding, 0, len(keys))
	for _, k := range keys {
		out = append(out, domain.Finding{Kind: domain.KindChannelDown, Key: k})
	}
	return out
}

// =============================================================================
// Tests
// =============================================================================

func TestProcess_OpenOnceThenSilent(t *testing.T) {
	n := &recordingNotifier{}
	tr := NewTracker(n)
	ctx := context.Background()

	sum := tr.Process(ctx, domain.KindChannelDown, channelDown("800x1x0", "800x2x1"))
	assert.Equal(t, 2, sum.Opened)
	assert.Equal(t, 2, sum.Notified)

	events := n.reset()
	require.Len(t, events, 2)
	assert.Equal(t, "800x1x0", events[0].Key)
	assert.Equal(t, domain.EventTypeIssueOpened, events[0].EventType)

	sum = tr.Process(ctx, domain.KindChannelDown, channelDown("800x1x0", "800x2x1"))
	assert.Equal(t, 0, sum.Opened)
	assert.Equal(t, 2, sum.Ongoing)
	assert.Empty(t, n.reset(), "persisting issues must not notify again")
	assert.Equal(t, 2, tr.ActiveCount(domain.KindChannelDown))
}

func TestProcess_ResolutionFiresOnce(t *testing.T) {
	n := &recordingNotifier{}
	tr := NewTracker(n)
	ctx := context.Background()

	tr.Process(ctx, domain.KindChannelDown, channelDown("800x1x0", "800x2x1"))
	n.reset()

	sum := tr.Process(ctx, domain.KindChannelDown, channelDown("800x2x1"))
	assert.Equal(t, 1, sum.Resolved)

	events := n.reset()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeIssueResolved, events[0].EventType)
	assert.Equal(t, "800x1x0", events[0].Key)

	active := tr.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "800x2x1", active[0].Key)

	tr.Process(ctx, domain.KindChannelDown, channelDown("800x2x1"))
	assert.Empty(t, n.reset())
}

func TestProcess_ReappearingIsNewOccurrence(t *testing.T) {
	n := &recordingNotifier{}
	tr := NewTracker(n)
	ctx := context.Background()

	tr.Process(ctx, domain.KindChannelDown, channelDown("800x1x0"))
	tr.Process(ctx, domain.KindChannelDown, nil)
	n.reset()

	sum := tr.Process(ctx, domain.KindChannelDown, channelDown("800x1x0"))
	assert.Equal(t, 1, sum.Opened)
	assert.Len(t, n.reset(), 1)
}

func TestProcess_KindsAreIndependent(t *testing.T) {
	n := &recordingNotifier{}
	tr := NewTracker(n)
	ctx := context.Background()

	tr.Process(ctx, domain.KindChannelDown, channelDown("800x1x0"))
	tr.Process(ctx, domain.KindGossipUnreachable, []domain.Finding{
		{Kind: domain.KindGossipUnreachable, Key: domain.GossipKey},
	})
	n.reset()

	// An empty htlc tick must not resolve issues of other kinds.
	sum := tr.Process(ctx, domain.KindHtlcExpiring, nil)
	assert.Equal(t, 0, sum.Resolved)
	assert.Len(t, tr.Active(), 2)
	assert.Empty(t, n.reset())
}

func TestProcess_FailedDeliveryRetriedNextTick(t *testing.T) {
	n := &recordingNotifier{fail: true}
	tr := NewTracker(n)
	ctx := context.Background()

	sum := tr.Process(ctx, domain.KindHtlcExpiring, []domain.Finding{
		{Kind: domain.KindHtlcExpiring, Key: domain.HtlcKey("abcd", 3)},
	})
	assert.Equal(t, 0, sum.Notified)
	assert.Len(t, n.reset(), 1)

	n.fail = false
	sum = tr.Process(ctx, domain.KindHtlcExpiring, []domain.Finding{
		{Kind: domain.KindHtlcExpiring, Key: domain.HtlcKey("abcd", 3)},
	})
	assert.Equal(t, 1, sum.Notified)
	assert.Len(t, n.reset(), 1)

	tr.Process(ctx, domain.KindHtlcExpiring, []domain.Finding{
		{Kind: domain.KindHtlcExpiring, Key: domain.HtlcKey("abcd", 3)},
	})
	assert.Empty(t, n.reset())
}

func TestProcess_DuplicateKeysCollapse(t *testing.T) {
	n := &recordingNotifier{}
	tr := NewTracker(n)

	sum := tr.Process(context.Background(), domain.KindChannelDown, channelDown("800x1x0", "800x1x0"))
	assert.Equal(t, 1, sum.Opened)
	assert.Len(t, n.reset(), 1)
}

func TestProcess_LastSeenRefreshed(t *testing.T) {
	n := &recordingNotifier{}
	tr := NewTracker(n)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return base }
	tr.Process(context.Background(), domain.KindChannelDown, channelDown("800x1x0"))

	tr.now = func() time.Time { return base.Add(time.Hour) }
	tr.Process(context.Background(), domain.KindChannelDown, channelDown("800x1x0"))

	active := tr.Active()
	require.Len(t, active, 1)
	assert.Equal(t, base, active[0].FirstDetectedAt)
	assert.Equal(t, base.Add(time.Hour), active[0].LastSeenAt)
	assert.True(t, active[0].Notified)
}

func TestProcess_ConcurrentKinds(t *testing.T) {
	n := &recordingNotifier{}
	tr := NewTracker(n)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tr.Process(ctx, domain.KindChannelDown, channelDown("800x1x0"))
		}()
		go func() {
			defer wg.Done()
			tr.Process(ctx, domain.KindGossipUnreachable, []domain.Finding{
				{Kind: domain.KindGossipUnreachable, Key: domain.GossipKey},
			})
		}()
	}
	wg.Wait()

	// One opening per kind, regardless of interleaving.
	assert.Len(t, n.reset(), 2)
}

func TestProcess_EventsOfOneTickSentTogether(t *testing.T) {
	n := &slowNotifier{delay: 200 * time.Millisecond}
	tr := NewTracker(n)
	ctx := context.Background()

	keys := make([]string, 5)
	for i := range keys {
		keys[i] = fmt.Sprintf("800x%dx0", i)
	}
	tr.Process(ctx, domain.KindChannelDown, channelDown(keys...))
	n.calls.Store(0)

	// Two resolved, three still pending after the failed first attempt.
	start := time.Now()
	sum := tr.Process(ctx, domain.KindChannelDown, channelDown(keys[2:]...))
	elapsed := time.Since(start)

	assert.Equal(t, 2, sum.Resolved)
	assert.Equal(t, 0, sum.Notified)
	assert.EqualValues(t, 5, n.calls.Load())
	assert.Less(t, elapsed, 600*time.Millisecond, "a hanging provider must cost one timeout per tick, not one per issue")
}
