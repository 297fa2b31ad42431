// Package health provides node watchdog status reporting over HTTP and gRPC.
package health

import (
	"time"

	"github.com/vietddude/vitality/internal/core/domain"
	"github.com/vietddude/vitality/internal/core/worker"
	"github.com/vietddude/vitality/internal/infra/lightning"
)

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// KindHealth summarizes the open issues of one kind.
type KindHealth struct {
	Kind   domain.Kind  `json:"kind"`
	Status SystemStatus `json:"status"`
	Open   int          `json:"open"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus   SystemStatus               `json:"system_status"`
	GeneratedAt    time.Time                  `json:"generated_at"`
	OptionsVersion uint64                     `json:"options_version"`
	Node           lightning.HealthStatus     `json:"node"`
	Kinds          map[domain.Kind]KindHealth `json:"kinds"`
	Checks         []worker.CheckStatus       `json:"checks"`
	Issues         []domain.Issue             `json:"issues"`
}
