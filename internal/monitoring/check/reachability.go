package check

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vietddude/vitality/internal/core/config"
	"github.com/vietddude/vitality/internal/core/domain"
	"github.com/vietddude/vitality/internal/monitoring/metrics"
)

// Pinger is an external reachability probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReachabilityChecker verifies that the node is visible to the network: via
// the Amboss health check when `amboss` is on, and via our own node
// announcement in gossip when `watch-gossip` is on.
type ReachabilityChecker struct {
	node    Node
	amboss  Pinger
	timeout time.Duration
}

func NewReachabilityChecker(node Node, amboss Pinger, timeout time.Duration) *ReachabilityChecker {
	return &ReachabilityChecker{node: node, amboss: amboss, timeout: timeout}
}

func (r *ReachabilityChecker) Name() string      { return "reachability" }
func (r *ReachabilityChecker) Kind() domain.Kind { return domain.KindGossipUnreachable }

func (r *ReachabilityChecker) Enabled(o *config.Options) bool { return o.ProbeEnabled() }

func (r *ReachabilityChecker) Check(ctx context.Context, o *config.Options) ([]domain.Finding, error) {
	var problems []string

	if o.Amboss && r.amboss != nil {
		if err := r.ping(ctx); err != nil {
			perr := &TransientProbeError{Probe: "amboss", Err: err}
			slog.Warn("Error in amboss_ping", "error", perr)
			metrics.ProbeSuccess.Set(0)
			problems = append(problems, perr.Error())
		} else {
			metrics.ProbeSuccess.Set(1)
		}
	}

	if o.WatchGossip {
		problem, err := r.gossip(ctx)
		if err != nil {
			qerr := &HostQueryError{Check: r.Name(), Err: err}
			if len(problems) == 0 {
				return nil, qerr
			}
			// The probe already failed; report it rather than skip the tick.
			slog.Warn("Gossip query failed, reporting probe failure only", "error", qerr)
		} else if problem != "" {
			problems = append(problems, problem)
		}
	}

	if len(problems) == 0 {
		return nil, nil
	}
	return []domain.Finding{{
		Kind:   domain.KindGossipUnreachable,
		Key:    domain.GossipKey,
		Detail: strings.Join(problems, "; "),
	}}, nil
}

// gossip looks for our own node announcement. It returns a problem
// description when the announcement is missing.
func (r *ReachabilityChecker) gossip(ctx context.Context) (string, error) {
	info, err := r.node.GetInfo(ctx)
	if err != nil {
		return "", err
	}
	nodes, err := r.node.ListNodes(ctx, info.ID)
	if err != nil {
		return "", err
	}
	if len(nodes) == 0 {
		slog.Warn("Own node announcement missing from gossip", "id", info.ID)
		return fmt.Sprintf("node announcement for %s not found in gossip", info.ID), nil
	}
	return "", nil
}

func (r *ReachabilityChecker) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.amboss.Ping(ctx)
}
