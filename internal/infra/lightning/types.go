package lightning

// GetInfo is the subset of `getinfo` used by the checkers.
type GetInfo struct {
	ID          string `json:"id"`
	Alias       string `json:"alias"`
	BlockHeight uint32 `json:"blockheight"`
	Network     string `json:"network"`
	Version     string `json:"version"`
}

// PeerChannel is one entry of `listpeerchannels`.
type PeerChannel struct {
	PeerID         string   `json:"peer_id"`
	PeerConnected  bool     `json:"peer_connected"`
	State          string   `json:"state"`
	ShortChannelID string   `json:"short_channel_id,omitempty"`
	ChannelID      string   `json:"channel_id,omitempty"`
	Private        bool     `json:"private"`
	Opener         string   `json:"opener"`
	LostState      bool     `json:"lost_state"`
	Status         []string `json:"status"`
	Htlcs          []Htlc   `json:"htlcs"`
}

// Htlc is an in-flight HTLC as reported inside a PeerChannel.
type Htlc struct {
	Direction  string `json:"direction"`
	ID         uint64 `json:"id"`
	AmountMsat uint64 `json:"amount_msat"`
	Expiry     uint32 `json:"expiry"`
	State      string `json:"state"`
}

// GossipChannel is one direction of a channel in `listchannels`.
type GossipChannel struct {
	Source         string `json:"source"`
	Destination    string `json:"destination"`
	ShortChannelID string `json:"short_channel_id"`
	Public         bool   `json:"public"`
	Active         bool   `json:"active"`
	LastUpdate     int64  `json:"last_update"`
}

// Node is one entry of `listnodes`.
type Node struct {
	NodeID     string `json:"nodeid"`
	Alias      string `json:"alias,omitempty"`
	LastUpdate int64  `json:"last_timestamp,omitempty"`
}

// SignMessage is the result of `signmessage`.
type SignMessage struct {
	Signature string `json:"signature"`
	Recid     string `json:"recid"`
	Zbase     string `json:"zbase"`
}
