// Package check holds the periodic health checks run against the node.
package check

import (
	"context"
	"fmt"

	"github.com/vietddude/vitality/internal/core/config"
	"github.com/vietddude/vitality/internal/core/domain"
	"github.com/vietddude/vitality/internal/infra/lightning"
)

// Checker is one periodic health check. Check receives the options snapshot
// taken at tick start and must not retain it.
type Checker interface {
	Name() string
	Kind() domain.Kind
	Enabled(o *config.Options) bool
	Check(ctx context.Context, o *config.Options) ([]domain.Finding, error)
}

// Node is the read-only subset of the node API used by the checkers.
type Node interface {
	GetInfo(ctx context.Context) (*lightning.GetInfo, error)
	ListPeerChannels(ctx context.Context) ([]lightning.PeerChannel, error)
	ListChannelsBySource(ctx context.Context, id string) ([]lightning.GossipChannel, error)
	ListChannelsByDestination(ctx context.Context, id string) ([]lightning.GossipChannel, error)
	ListNodes(ctx context.Context, id string) ([]lightning.Node, error)
}

// HostQueryError means the node state could not be read. The tick produced
// no findings and must not be mistaken for an all clear.
type HostQueryError struct {
	Check string
	Err   error
}

func (e *HostQueryError) Error() string {
	return fmt.Sprintf("%s: query node: %v", e.Check, e.Err)
}

func (e *HostQueryError) Unwrap() error { return e.Err }

// TransientProbeError is a failed external reachability probe.
type TransientProbeError struct {
	Probe string
	Err   error
}

func (e *TransientProbeError) Error() string {
	return fmt.Sprintf("%s probe failed: %v", e.Probe, e.Err)
}

func (e *TransientProbeError) Unwrap() error { return e.Err }

// relevantState reports whether a channel in state is expected to be usable.
func relevantState(state string) bool {
	return state == domain.ChannelStateNormal || state == domain.ChannelStateAwaitingSplice
}
