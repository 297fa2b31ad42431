package domain

import (
	"fmt"
	"time"
)

// Kind identifies which checker owns an Issue.
type Kind string

const (
	KindChannelDown       Kind = "channel_down"
	KindGossipUnreachable Kind = "gossip_unreachable"
	KindHtlcExpiring      Kind = "htlc_expiring"
)

// Kinds lists every check kind in a stable order.
var Kinds = []Kind{KindChannelDown, KindHtlcExpiring, KindGossipUnreachable}

func (k Kind) Title() string {
	switch k {
	case KindChannelDown:
		return "Channel down"
	case KindGossipUnreachable:
		return "Gossip unreachable"
	case KindHtlcExpiring:
		return "HTLC expiring"
	default:
		return string(k)
	}
}

// GossipKey is the key of the singleton reachability issue.
const GossipKey = "gossip"

// HtlcKey builds the issue key of an in-flight HTLC.
func HtlcKey(channelID string, htlcIndex uint64) string {
	return fmt.Sprintf("%s:%d", channelID, htlcIndex)
}

// Finding is a single problem reported by a checker on one tick.
type Finding struct {
	Kind   Kind
	Key    string
	Detail string
}

// Issue is the tracked lifecycle of a Finding across ticks.
type Issue struct {
	Key             string    `json:"key"`
	Kind            Kind      `json:"kind"`
	Detail          string    `json:"detail,omitempty"`
	FirstDetectedAt time.Time `json:"first_detected_at"`
	LastSeenAt      time.Time `json:"last_seen_at"`
	Notified        bool      `json:"notified"`
	Resolved        bool      `json:"resolved"`
}
