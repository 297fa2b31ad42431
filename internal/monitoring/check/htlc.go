package check

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/vitality/internal/core/config"
	"github.com/vietddude/vitality/internal/core/domain"
	"github.com/vietddude/vitality/internal/infra/lightning"
	"github.com/vietddude/vitality/internal/monitoring/metrics"
)

// HtlcChecker reports in-flight HTLCs that expire within the configured
// number of blocks.
type HtlcChecker struct {
	node Node
}

func NewHtlcChecker(node Node) *HtlcChecker {
	return &HtlcChecker{node: node}
}

func (h *HtlcChecker) Name() string      { return "htlcs" }
func (h *HtlcChecker) Kind() domain.Kind { return domain.KindHtlcExpiring }

func (h *HtlcChecker) Enabled(o *config.Options) bool { return o.ExpiringHtlcs != nil }

func (h *HtlcChecker) Check(ctx context.Context, o *config.Options) ([]domain.Finding, error) {
	if o.ExpiringHtlcs == nil {
		return nil, nil
	}
	threshold := *o.ExpiringHtlcs

	info, err := h.node.GetInfo(ctx)
	if err != nil {
		return nil, &HostQueryError{Check: h.Name(), Err: err}
	}
	metrics.NodeBlockHeight.Set(float64(info.BlockHeight))

	channels, err := h.node.ListPeerChannels(ctx)
	if err != nil {
		return nil, &HostQueryError{Check: h.Name(), Err: err}
	}

	var findings []domain.Finding
	for _, htlc := range ExpiringHtlcs(PendingHtlcs(channels), info.BlockHeight, threshold) {
		left := int64(htlc.ExpiryHeight) - int64(info.BlockHeight)
		slog.Warn("Found channel with close to expiry htlc",
			"channel", htlc.ChannelID, "htlc", htlc.HtlcIndex, "blocks_left", left)
		findings = append(findings, domain.Finding{
			Kind: domain.KindHtlcExpiring,
			Key:  domain.HtlcKey(htlc.ChannelID, htlc.HtlcIndex),
			Detail: fmt.Sprintf("%s HTLC %d on channel %s (%d msat) expires at block %d, %d blocks from height %d",
				htlc.Direction, htlc.HtlcIndex, channelLabel(htlc), htlc.AmountMsat,
				htlc.ExpiryHeight, left, info.BlockHeight),
		})
	}
	return findings, nil
}

// PendingHtlcs flattens the in-flight HTLCs of every relevant channel.
func PendingHtlcs(channels []lightning.PeerChannel) []domain.PendingHtlc {
	var out []domain.PendingHtlc
	for _, ch := range channels {
		if !relevantState(ch.State) {
			continue
		}
		id := ch.ChannelID
		if id == "" {
			id = ch.ShortChannelID
		}
		for _, htlc := range ch.Htlcs {
			out = append(out, domain.PendingHtlc{
				ChannelID:    id,
				ShortChannel: ch.ShortChannelID,
				HtlcIndex:    htlc.ID,
				ExpiryHeight: htlc.Expiry,
				Direction:    htlc.Direction,
				AmountMsat:   htlc.AmountMsat,
			})
		}
	}
	return out
}

// ExpiringHtlcs keeps the HTLCs with expiry - height <= threshold. Already
// expired HTLCs are included.
func ExpiringHtlcs(htlcs []domain.PendingHtlc, height, threshold uint32) []domain.PendingHtlc {
	var out []domain.PendingHtlc
	for _, h := range htlcs {
		if int64(h.ExpiryHeight)-int64(height) <= int64(threshold) {
			out = append(out, h)
		}
	}
	return out
}

func channelLabel(h domain.PendingHtlc) string {
	if h.ShortChannel != "" {
		return h.ShortChannel
	}
	return h.ChannelID
}
