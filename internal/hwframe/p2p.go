package hwframe

import (
	"fmt"
	"os"

	"github.com/netint/go-xcoder/internal/status"
)

// netintDevicePath is the character device the Netint kernel driver
// exposes for peer-to-peer DMA mapping (spec.md §4.8).
const netintDevicePath = "/dev/netint"

// DDR configuration codes reported by the identify payload (spec.md
// §4.8: "the range depends on the device's DDR configuration
// (single-rank vs dual-rank)").
const (
	ddrConfigSingleRank = 0
	ddrConfigDualRank   = 1
)

// frameBinSize is the fixed per-frame P2P address stride.
const frameBinSize = 32 << 20 // 32 MiB

// P2P ranges by DDR configuration: (minP2PID, maxP2PID].
var p2pRanges = map[uint8]struct{ min, max uint64 }{
	ddrConfigSingleRank: {min: 0, max: 64},
	ddrConfigDualRank:   {min: 0, max: 128},
}

// P2PContext exposes the Netint kernel driver's peer-to-peer memory
// mapping: a hardware frame's buffer can be addressed directly by
// another process without a round trip through the accelerator, by
// offset within the driver's mapped DMA window.
type P2PContext struct {
	devicePath   string
	minP2PID     uint64
	maxP2PID     uint64
	frameBinSize uint64
}

// OpenP2P opens the Netint kernel driver and derives the valid
// frame-index range from the device's DDR configuration as reported
// by identify. It returns an error if the driver is not present on
// this host; P2P is an optional fast path, not a requirement for
// normal operation.
func OpenP2P(id status.Identify) (*P2PContext, error) {
	f, err := os.OpenFile(netintDevicePath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("hwframe: open %s: %w", netintDevicePath, err)
	}
	defer f.Close()

	rng, ok := p2pRanges[id.DDRConfig]
	if !ok {
		return nil, fmt.Errorf("hwframe: unrecognized ddr config %d", id.DDRConfig)
	}
	return &P2PContext{
		devicePath:   netintDevicePath,
		minP2PID:     rng.min,
		maxP2PID:     rng.max,
		frameBinSize: frameBinSize,
	}, nil
}

// GetMemoryOffset computes the P2P DMA window byte offset for a
// hardware frame's index: (frame_index - min_p2p_id) * frame_bin_size
// (spec.md §4.8). It returns an error if frameIndex falls outside the
// (minP2PID, maxP2PID] range this device's DDR configuration allows.
func (p *P2PContext) GetMemoryOffset(frameIndex uint32) (uint64, error) {
	idx := uint64(frameIndex)
	if idx <= p.minP2PID || idx > p.maxP2PID {
		return 0, fmt.Errorf("hwframe: frame index %d out of p2p range (%d, %d]", frameIndex, p.minP2PID, p.maxP2PID)
	}
	return (idx - p.minP2PID) * p.frameBinSize, nil
}
