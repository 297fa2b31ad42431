package health

import (
	"time"

	"github.com/vietddude/vitality/internal/core/config"
	"github.com/vietddude/vitality/internal/core/domain"
	"github.com/vietddude/vitality/internal/core/worker"
	"github.com/vietddude/vitality/internal/infra/lightning"
)

// IssueSource lists the currently open issues.
type IssueSource interface {
	Active() []domain.Issue
}

// CheckSource reports the last run of every checker.
type CheckSource interface {
	Status() []worker.CheckStatus
}

// NodeSource reports the health of the node connection.
type NodeSource interface {
	GetHealth() lightning.HealthStatus
}

// Monitor aggregates health status from the tracker, the scheduler and the
// node client.
type Monitor struct {
	issues IssueSource
	checks CheckSource
	node   NodeSource
	store  *config.Store
	now    func() time.Time
}

// NewMonitor creates a new health monitor.
func NewMonitor(issues IssueSource, checks CheckSource, node NodeSource, store *config.Store) *Monitor {
	return &Monitor{
		issues: issues,
		checks: checks,
		node:   node,
		store:  store,
		now:    time.Now,
	}
}

// Report builds the current health report.
//
// The node being unreachable is critical; open issues or a failing check
// degrade the status.
func (m *Monitor) Report() HealthReport {
	report := HealthReport{
		SystemStatus: StatusHealthy,
		GeneratedAt:  m.now(),
		Kinds:        make(map[domain.Kind]KindHealth, len(domain.Kinds)),
		Issues:       m.issues.Active(),
	}
	if m.store != nil {
		report.OptionsVersion = m.store.Snapshot().Version
	}
	if m.checks != nil {
		report.Checks = m.checks.Status()
	}

	for _, k := range domain.Kinds {
		report.Kinds[k] = KindHealth{Kind: k, Status: StatusHealthy}
	}
	for _, iss := range report.Issues {
		kh := report.Kinds[iss.Kind]
		kh.Kind = iss.Kind
		kh.Open++
		kh.Status = StatusDegraded
		report.Kinds[iss.Kind] = kh
	}

	if len(report.Issues) > 0 {
		report.SystemStatus = StatusDegraded
	}
	for _, c := range report.Checks {
		if c.Outcome == worker.OutcomeError {
			report.SystemStatus = StatusDegraded
		}
	}

	if m.node != nil {
		report.Node = m.node.GetHealth()
		if !report.Node.Available {
			report.SystemStatus = StatusCritical
		}
	}
	return report
}
