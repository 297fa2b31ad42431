// Package worker runs the periodic checkers under a capataz supervisor.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/capatazlib/go-capataz/cap"

	"github.com/vietddude/vitality/internal/core/config"
	"github.com/vietddude/vitality/internal/core/domain"
	"github.com/vietddude/vitality/internal/core/issue"
	"github.com/vietddude/vitality/internal/monitoring/check"
	"github.com/vietddude/vitality/internal/monitoring/metrics"
)

// Tick outcomes, also used as metric labels.
const (
	OutcomeOK       = "ok"
	OutcomeFindings = "findings"
	OutcomeError    = "error"
	OutcomeDisabled = "disabled"
)

var ErrNoCheckers = errors.New("no checkers registered")

// restartTolerance is the number of restarts a checker may use within its
// restart window. A restarted loop waits one interval before it ticks, so
// at most restartWindow/interval+1 restarts fit in a window.
const restartTolerance = 10

func restartWindow(interval time.Duration) time.Duration {
	return 5 * interval
}

// Tracker receives the findings of every successful tick.
type Tracker interface {
	Process(ctx context.Context, kind domain.Kind, findings []domain.Finding) issue.Summary
}

// CheckStatus is the last known state of one registered checker.
type CheckStatus struct {
	Name     string        `json:"name"`
	Kind     domain.Kind   `json:"kind"`
	Interval time.Duration `json:"interval"`
	LastRun  time.Time     `json:"last_run,omitempty"`
	Outcome  string        `json:"outcome,omitempty"`
	Error    string        `json:"error,omitempty"`
	Findings int           `json:"findings"`
	Runs     uint64        `json:"runs"`
}

type job struct {
	checker      check.Checker
	interval     time.Duration
	initialDelay time.Duration
	started      atomic.Bool // initial delay only applies to the first start

	mu     sync.Mutex
	status CheckStatus
}

// Scheduler owns one ticker goroutine per checker.
type Scheduler struct {
	store   *config.Store
	tracker Tracker

	mu   sync.Mutex
	jobs []*job
}

// NewScheduler creates a scheduler reading options from store.
func NewScheduler(store *config.Store, tracker Tracker) *Scheduler {
	return &Scheduler{store: store, tracker: tracker}
}

// Register adds a checker. It must be called before Run.
func (s *Scheduler) Register(c check.Checker, interval, initialDelay time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &job{
		checker:      c,
		interval:     interval,
		initialDelay: initialDelay,
		status:       CheckStatus{Name: c.Name(), Kind: c.Kind(), Interval: interval},
	})
}

// Run supervises the checker loops until ctx is cancelled. In-flight ticks
// are allowed to complete before it returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	jobs := append([]*job(nil), s.jobs...)
	s.mu.Unlock()

	if len(jobs) == 0 {
		return ErrNoCheckers
	}

	// Every checker lives in its own subtree, so one that keeps failing can
	// only exhaust its own restart budget.
	nodes := make([]cap.Node, 0, len(jobs))
	for _, j := range jobs {
		name := "check-" + j.checker.Name()
		worker := cap.NewWorker(
			name,
			s.loop(j),
			cap.WithRestart(cap.Permanent),
			cap.WithShutdown(cap.Indefinitely),
		)
		nodes = append(nodes, cap.Subtree(cap.NewSupervisorSpec(
			name,
			cap.WithNodes(worker),
			cap.WithRestartTolerance(restartTolerance, restartWindow(j.interval)),
		)))
	}

	spec := cap.NewSupervisorSpec(
		"scheduler",
		cap.WithNodes(nodes...),
		cap.WithNotifier(logEvent),
		cap.WithRestartTolerance(restartTolerance, time.Minute),
	)

	sup, err := spec.Start(ctx)
	if err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	slog.Info("Scheduler started", "checkers", len(jobs))

	// The supervisor shares ctx, so cancellation stops every loop and Wait
	// returns once the in-flight ticks are done.
	err = sup.Wait()
	if ctx.Err() != nil {
		if err != nil {
			return fmt.Errorf("terminate scheduler: %w", err)
		}
		slog.Info("Scheduler stopped")
		return nil
	}
	return fmt.Errorf("scheduler failed: %w", err)
}

// Status returns the last state of every checker, sorted by name.
func (s *Scheduler) Status() []CheckStatus {
	s.mu.Lock()
	jobs := append([]*job(nil), s.jobs...)
	s.mu.Unlock()

	out := make([]CheckStatus, 0, len(jobs))
	for _, j := range jobs {
		j.mu.Lock()
		out = append(out, j.status)
		j.mu.Unlock()
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

func (s *Scheduler) loop(j *job) func(context.Context) error {
	return func(ctx context.Context) error {
		delay := j.initialDelay
		if j.started.Swap(true) {
			// Restarted after a failure: resume on the regular schedule.
			delay = j.interval
		}
		if delay > 0 {
			slog.Debug("Delaying check", "check", j.checker.Name(), "delay", delay)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}

		if err := s.safeTick(ctx, j); err != nil {
			return err
		}

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := s.safeTick(ctx, j); err != nil {
					return err
				}
				// Drop ticks that fired while the cycle was running.
				select {
				case <-ticker.C:
					slog.Debug("Check overran its interval, skipping tick", "check", j.checker.Name())
				default:
				}
			}
		}
	}
}

// safeTick turns a panic inside a checker into a worker error so the
// supervisor restarts the loop.
func (s *Scheduler) safeTick(ctx context.Context, j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("check %s panicked: %v", j.checker.Name(), r)
			j.record(OutcomeError, err, 0)
			metrics.ChecksTotal.WithLabelValues(j.checker.Name(), OutcomeError).Inc()
		}
	}()
	s.tick(ctx, j)
	return nil
}

// tick runs one cycle of j against the options snapshot taken now.
func (s *Scheduler) tick(ctx context.Context, j *job) {
	name := j.checker.Name()
	opts := s.store.Snapshot()

	if !j.checker.Enabled(opts) {
		slog.Debug("Check disabled, skipping", "check", name, "options_version", opts.Version)
		j.record(OutcomeDisabled, nil, 0)
		metrics.ChecksTotal.WithLabelValues(name, OutcomeDisabled).Inc()
		return
	}

	start := time.Now()
	findings, err := j.checker.Check(ctx, opts)
	metrics.CheckDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Check interrupted by shutdown", "check", name)
			return
		}
		slog.Error("Check failed", "check", name, "error", err)
		j.record(OutcomeError, err, 0)
		metrics.ChecksTotal.WithLabelValues(name, OutcomeError).Inc()
		return
	}

	outcome := OutcomeOK
	if len(findings) > 0 {
		outcome = OutcomeFindings
	}
	j.record(outcome, nil, len(findings))
	metrics.ChecksTotal.WithLabelValues(name, outcome).Inc()

	sum := s.tracker.Process(ctx, j.checker.Kind(), findings)
	if sum.Opened > 0 || sum.Resolved > 0 {
		slog.Info("Issues updated",
			"check", name,
			"opened", sum.Opened,
			"ongoing", sum.Ongoing,
			"resolved", sum.Resolved,
			"notified", sum.Notified,
		)
	}
}

func (j *job) record(outcome string, err error, findings int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status.LastRun = time.Now()
	j.status.Outcome = outcome
	j.status.Findings = findings
	j.status.Runs++
	j.status.Error = ""
	if err != nil {
		j.status.Error = err.Error()
	}
}

func logEvent(ev cap.Event) {
	attrs := []any{"process", ev.GetProcessRuntimeName(), "event", ev.GetTag().String()}
	if err := ev.Err(); err != nil {
		slog.Warn("Supervisor event", append(attrs, "error", err)...)
		return
	}
	slog.Debug("Supervisor event", attrs...)
}
