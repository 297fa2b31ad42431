// Package issue turns per-tick findings into edge-triggered notifications.
package issue

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/vitality/internal/core/domain"
	"github.com/vietddude/vitality/internal/monitoring/metrics"
)

// Notifier delivers events. Implemented by notify.Dispatcher.
type Notifier interface {
	Notify(ctx context.Context, ev domain.Event) []domain.DeliveryResult
}

// Summary reports what one Process call did.
type Summary struct {
	Opened   int
	Ongoing  int
	Resolved int
	Notified int
}

type kindState struct {
	mu     sync.Mutex // held for the whole Process call of this kind
	issues map[string]*domain.Issue
}

// Tracker owns every open Issue. Each kind is processed under its own lock,
// so different checkers never wait on each other.
type Tracker struct {
	notifier Notifier
	now      func() time.Time

	kinds map[domain.Kind]*kindState

	snapMu sync.RWMutex
	snap   map[domain.Kind][]domain.Issue
}

// NewTracker creates a tracker delivering through n.
func NewTracker(n Notifier) *Tracker {
	t := &Tracker{
		notifier: n,
		now:      time.Now,
		kinds:    make(map[domain.Kind]*kindState, len(domain.Kinds)),
		snap:     make(map[domain.Kind][]domain.Issue, len(domain.Kinds)),
	}
	for _, k := range domain.Kinds {
		t.kinds[k] = &kindState{issues: make(map[string]*domain.Issue)}
	}
	return t
}

// Process applies one tick's findings for kind:
// new keys open an Issue, known keys are refreshed, missing keys are
// resolved and dropped. Opened and still unnotified Issues are sent to the
// notifier; resolutions are sent exactly once.
func (t *Tracker) Process(ctx context.Context, kind domain.Kind, findings []domain.Finding) Summary {
	ks, ok := t.kinds[kind]
	if !ok {
		slog.Error("Unknown issue kind", "kind", kind)
		return Summary{}
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()

	now := t.now()
	var sum Summary

	present := make(map[string]domain.Finding, len(findings))
	for _, f := range findings {
		if f.Kind != kind {
			slog.Debug("Ignoring finding of another kind", "kind", kind, "finding_kind", f.Kind, "key", f.Key)
			continue
		}
		if _, dup := present[f.Key]; !dup {
			present[f.Key] = f
		}
	}

	for key, f := range present {
		if iss, ok := ks.issues[key]; ok {
			iss.LastSeenAt = now
			iss.Detail = f.Detail
			sum.Ongoing++
			continue
		}
		ks.issues[key] = &domain.Issue{
			Key:             key,
			Kind:            kind,
			Detail:          f.Detail,
			FirstDetectedAt: now,
			LastSeenAt:      now,
		}
		sum.Opened++
		slog.Warn("Issue opened", "kind", kind, "key", key, "detail", f.Detail)
	}

	var resolved []*domain.Issue
	for key, iss := range ks.issues {
		if _, ok := present[key]; ok {
			continue
		}
		iss.Resolved = true
		resolved = append(resolved, iss)
		delete(ks.issues, key)
	}
	t.publish(kind, ks)

	sortIssues(resolved)
	for _, iss := range resolved {
		slog.Info("Issue resolved", "kind", kind, "key", iss.Key, "open_for", now.Sub(iss.FirstDetectedAt).Round(time.Second))
	}

	pending := make([]*domain.Issue, 0, len(ks.issues))
	for _, iss := range ks.issues {
		if !iss.Notified {
			pending = append(pending, iss)
		}
	}
	sortIssues(pending)

	// All events of this tick go out together, so the tick waits for at most
	// one provider timeout however many issues changed.
	delivered := make([]bool, len(pending))
	var g errgroup.Group
	for _, iss := range resolved {
		ev := domain.NewEvent(domain.EventTypeIssueResolved, iss, now)
		g.Go(func() error {
			t.notifier.Notify(ctx, ev)
			return nil
		})
	}
	for i, iss := range pending {
		ev := domain.NewEvent(domain.EventTypeIssueOpened, iss, now)
		g.Go(func() error {
			delivered[i] = domain.Delivered(t.notifier.Notify(ctx, ev))
			return nil
		})
	}
	_ = g.Wait()
	sum.Resolved = len(resolved)

	for i, iss := range pending {
		if delivered[i] {
			iss.Notified = true
			sum.Notified++
		} else {
			slog.Warn("Notification not delivered, will retry next tick", "kind", kind, "key", iss.Key)
		}
	}

	t.publish(kind, ks)
	metrics.ActiveIssues.WithLabelValues(string(kind)).Set(float64(len(ks.issues)))
	metrics.FindingsTotal.WithLabelValues(string(kind)).Add(float64(len(present)))

	return sum
}

// Active returns a copy of every open Issue, ordered by kind then key.
func (t *Tracker) Active() []domain.Issue {
	t.snapMu.RLock()
	defer t.snapMu.RUnlock()

	var out []domain.Issue
	for _, k := range domain.Kinds {
		out = append(out, t.snap[k]...)
	}
	return out
}

// ActiveCount returns the number of open Issues of kind.
func (t *Tracker) ActiveCount(kind domain.Kind) int {
	t.snapMu.RLock()
	defer t.snapMu.RUnlock()
	return len(t.snap[kind])
}

// publish copies the kind's issues for lock-free readers. Caller holds ks.mu.
func (t *Tracker) publish(kind domain.Kind, ks *kindState) {
	issues := make([]domain.Issue, 0, len(ks.issues))
	for _, iss := range ks.issues {
		issues = append(issues, *iss)
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].Key < issues[j].Key })

	t.snapMu.Lock()
	t.snap[kind] = issues
	t.snapMu.Unlock()
}

func sortIssues(issues []*domain.Issue) {
	sort.Slice(issues, func(i, j int) bool { return issues[i].Key < issues[j].Key })
}
