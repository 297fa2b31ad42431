package domain

// Channel states that are evaluated by the channel checker.
const (
	ChannelStateNormal         = "CHANNELD_NORMAL"
	ChannelStateAwaitingSplice = "CHANNELD_AWAITING_SPLICE"
)

// ChannelSnapshot is the evaluated state of one channel on one tick.
type ChannelSnapshot struct {
	ShortChannelID string
	ChannelID      string
	PeerID         string
	PeerAlias      string
	State          string
	IsPublic       bool
	IsActive       bool
	Private        bool // unannounced by choice, only liveness applies
	Reasons        []string
}

// Key returns the stable issue key of the channel.
func (c ChannelSnapshot) Key() string {
	if c.ShortChannelID != "" {
		return c.ShortChannelID
	}
	return c.ChannelID
}

// Healthy reports whether the channel is active and, unless it was opened
// private, public.
func (c ChannelSnapshot) Healthy() bool {
	return c.IsActive && (c.IsPublic || c.Private)
}

// PendingHtlc is an in-flight HTLC on one of our channels.
type PendingHtlc struct {
	ChannelID    string
	ShortChannel string
	HtlcIndex    uint64
	ExpiryHeight uint32
	Direction    string
	AmountMsat   uint64
}
