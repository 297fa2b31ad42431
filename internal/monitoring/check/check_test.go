package check

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/vietddude/vitality/internal/infra/lightning"
)

// =============================================================================
// Mocks
// =============================================================================

type stubNode struct {
	info     *lightning.GetInfo
	infoErr  error
	channels []lightning.PeerChannel
	chanErr  error
	out      []lightning.GossipChannel
	in       []lightning.GossipChannel
	nodes    map[string][]lightning.Node
	nodesErr error
}

func (s *stubNode) GetInfo(ctx context.Context) (*lightning.GetInfo, error) {
	return s.info, s.infoErr
}

func (s *stubNode) ListPeerChannels(ctx context.Context) ([]lightning.PeerChannel, error) {
	return s.channels, s.chanErr
}

func (s *stubNode) ListChannelsBySource(ctx context.Context, id string) ([]lightning.GossipChannel, error) {
	return s.out, nil
}

func (s *stubNode) ListChannelsByDestination(ctx context.Context, id string) ([]lightning.GossipChannel, error) {
	return s.in, nil
}

func (s *stubNode) ListNodes(ctx context.Context, id string) ([]lightning.Node, error) {
	return s.nodes[id], s.nodesErr
}

const (
	selfID = "02self000000000000000000000000000000000000000000000000000000000000"
	peerA  = "03peera00000000000000000000000000000000000000000000000000000000000"
	peerB  = "03peerb00000000000000000000000000000000000000000000000000000000000"
)

func healthyChannel(scid, peer string) lightning.PeerChannel {
	return lightning.PeerChannel{
		PeerID:         peer,
		PeerConnected:  true,
		State:          "CHANNELD_NORMAL",
		ShortChannelID: scid,
		ChannelID:      "cid-" + scid,
		Status:         []string{"CHANNELD_NORMAL:Channel ready for use."},
	}
}

func bothSides(scid, peer string) []lightning.GossipChannel {
	return []lightning.GossipChannel{
		{Source: selfID, Destination: peer, ShortChannelID: scid, Public: true, Active: true},
		{Source: peer, Destination: selfID, ShortChannelID: scid, Public: true, Active: true},
	}
}

var logMu sync.Mutex

func captureLogs(t *testing.T, fn func()) string {
	t.Helper()
	logMu.Lock()
	defer logMu.Unlock()

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	fn()
	return buf.String()
}
