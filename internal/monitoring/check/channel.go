package check

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/vietddude/vitality/internal/core/config"
	"github.com/vietddude/vitality/internal/core/domain"
	"github.com/vietddude/vitality/internal/infra/lightning"
)

// ChannelChecker reports every relevant channel that is not active, or not
// public when it was meant to be announced.
type ChannelChecker struct {
	node Node
}

func NewChannelChecker(node Node) *ChannelChecker {
	return &ChannelChecker{node: node}
}

func (c *ChannelChecker) Name() string      { return "channels" }
func (c *ChannelChecker) Kind() domain.Kind { return domain.KindChannelDown }

func (c *ChannelChecker) Enabled(o *config.Options) bool { return o.WatchChannels }

func (c *ChannelChecker) Check(ctx context.Context, o *config.Options) ([]domain.Finding, error) {
	start := time.Now()
	slog.Debug("check_channel: Starting")

	info, err := c.node.GetInfo(ctx)
	if err != nil {
		return nil, &HostQueryError{Check: c.Name(), Err: err}
	}

	channels, err := c.node.ListPeerChannels(ctx)
	if err != nil {
		return nil, &HostQueryError{Check: c.Name(), Err: err}
	}

	var gossip map[string][]lightning.GossipChannel
	if o.WatchGossip {
		gossip, err = c.gossipMap(ctx, info.ID)
		if err != nil {
			return nil, &HostQueryError{Check: c.Name(), Err: err}
		}
	}

	var findings []domain.Finding
	for _, snap := range EvaluateChannels(channels, gossip) {
		if snap.Healthy() {
			continue
		}
		snap.PeerAlias = c.alias(ctx, snap.PeerID)
		slog.Warn("check_channel: Found unhealthy channel",
			"channel", snap.Key(), "peer", snap.PeerID, "reasons", strings.Join(snap.Reasons, "; "))
		findings = append(findings, domain.Finding{
			Kind:   domain.KindChannelDown,
			Key:    snap.Key(),
			Detail: describeChannel(snap),
		})
	}

	if len(findings) == 0 {
		slog.Info("check_channel: All good.", "duration", time.Since(start).Round(time.Millisecond))
	}
	return findings, nil
}

// gossipMap groups both directions of our channels by short channel id.
func (c *ChannelChecker) gossipMap(ctx context.Context, self string) (map[string][]lightning.GossipChannel, error) {
	out, err := c.node.ListChannelsBySource(ctx, self)
	if err != nil {
		return nil, err
	}
	in, err := c.node.ListChannelsByDestination(ctx, self)
	if err != nil {
		return nil, err
	}

	m := make(map[string][]lightning.GossipChannel, len(out))
	for _, g := range append(out, in...) {
		m[g.ShortChannelID] = append(m[g.ShortChannelID], g)
	}
	return m, nil
}

// alias looks up the peer's announced alias; the peer id is used when the
// lookup fails or the node is unknown.
func (c *ChannelChecker) alias(ctx context.Context, peerID string) string {
	nodes, err := c.node.ListNodes(ctx, peerID)
	if err != nil || len(nodes) == 0 || nodes[0].Alias == "" {
		return peerID
	}
	return nodes[0].Alias
}

// EvaluateChannels builds the snapshot of every relevant channel. A nil
// gossip map skips the gossip based checks.
func EvaluateChannels(channels []lightning.PeerChannel, gossip map[string][]lightning.GossipChannel) []domain.ChannelSnapshot {
	useGossip := gossip != nil
	if useGossip {
		announced := 0
		for _, ch := range channels {
			if !ch.Private {
				announced++
			}
		}
		if len(gossip) < announced/2 {
			slog.Warn("check_channel: gossip_store still too empty, skipping gossip checks",
				"gossip", len(gossip), "public_channels", announced)
			useGossip = false
		}
	}

	var out []domain.ChannelSnapshot
	for _, ch := range channels {
		if !relevantState(ch.State) {
			continue
		}

		snap := domain.ChannelSnapshot{
			ShortChannelID: ch.ShortChannelID,
			ChannelID:      ch.ChannelID,
			PeerID:         ch.PeerID,
			State:          ch.State,
			IsPublic:       !ch.Private,
			IsActive:       true,
			Private:        ch.Private,
		}

		inactive := func(reason string) {
			snap.IsActive = false
			snap.Reasons = append(snap.Reasons, reason)
		}
		unannounced := func(reason string) {
			snap.IsPublic = false
			snap.Reasons = append(snap.Reasons, reason)
		}

		reconnecting := false
		specific := false
		for _, status := range ch.Status {
			s := strings.ToLower(status)
			switch {
			case strings.Contains(s, "error"):
				inactive("error in status: " + status)
				specific = true
			case strings.Contains(s, "update_fee"):
				inactive("can't agree on fee: " + status)
				specific = true
			case strings.Contains(s, "htlc"):
				inactive("htlc problem: " + status)
				specific = true
			}
			if strings.Contains(s, "will attempt reconnect") {
				reconnecting = true
			}
		}
		if ch.LostState {
			inactive("lost state: peer says we have fallen behind")
			specific = true
		}
		if !ch.PeerConnected && !reconnecting && !specific {
			inactive("disconnected and not reconnecting: " + strings.Join(ch.Status, "; "))
		}

		// Private channels are never announced, so gossip says nothing about them.
		if useGossip && ch.PeerConnected && !ch.Private {
			evaluateGossip(gossip[ch.ShortChannelID], inactive, unannounced)
		}

		out = append(out, snap)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

func evaluateGossip(sides []lightning.GossipChannel, inactive, unannounced func(string)) {
	switch len(sides) {
	case 0:
		unannounced("no gossip")
		return
	case 1:
		unannounced("one-sided gossip")
	}

	for _, side := range sides {
		if !side.Active {
			inactive(fmt.Sprintf("inactive gossip from %s", shortID(side.Source)))
		}
		if !side.Public {
			unannounced(fmt.Sprintf("non-public gossip from %s", shortID(side.Source)))
		}
	}
}

func describeChannel(s domain.ChannelSnapshot) string {
	peer := s.PeerID
	if s.PeerAlias != "" && s.PeerAlias != s.PeerID {
		peer = fmt.Sprintf("%s (%s)", s.PeerAlias, s.PeerID)
	}
	return fmt.Sprintf("Channel %s with %s: %s", s.Key(), peer, strings.Join(s.Reasons, "; "))
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
