// Package hwframe models the HW-frame descriptor handed back by a
// decoder or scaler read when the session is in hardware-frame mode,
// and the explicit release/P2P paths that go with it (spec.md §4.8,
// C10).
package hwframe

import (
	"github.com/netint/go-xcoder/internal/block"
	"github.com/netint/go-xcoder/internal/constants"
	"github.com/netint/go-xcoder/internal/lba"
)

// Descriptor is the 64-byte inline, non-owning, copyable handle to one
// hardware-resident frame buffer (spec.md §4.7 Frame, §4.8). FrameIndex
// 0 is the null value; any other value represents exclusive ownership
// until Release is acknowledged.
type Descriptor struct {
	FrameIndex   uint32
	SessionID    uint16
	DeviceHandle uint64
	BitDepth     uint8
	SrcCPU       uint8
	OutputIdx    uint8
	EncodingType uint8
	NodeAddress  uint64
}

// IsNull reports whether the descriptor carries no live buffer.
func (d Descriptor) IsNull() bool {
	return d.FrameIndex == 0
}

// FillHostFields stamps the fields the accelerator does not itself
// know — the host-side handle, owning session id, and source cpu
// type — onto a descriptor the accelerator returned with only
// frame_index/output_idx/encoding_type populated.
func FillHostFields(d *Descriptor, sessionID uint16, handle uint64, srcCPU uint8) {
	d.SessionID = sessionID
	d.DeviceHandle = handle
	d.SrcCPU = srcCPU
}

// Set indexes up to NMaxOutputs sub-descriptors by their output_idx,
// the metadata a hardware-frame decoder/scaler read yields when the
// pass produces more than one crop/scale output (spec.md §4.8).
type Set struct {
	descriptors [constants.NMaxOutputs]Descriptor
	present      [constants.NMaxOutputs]bool
}

// Put records d at its own OutputIdx. A request to index the
// descriptor at an output beyond NMaxOutputs-1 is a programmer error
// on the caller's part (the accelerator never reports one), so it
// simply drops the descriptor rather than panicking.
func (s *Set) Put(d Descriptor) {
	if int(d.OutputIdx) >= constants.NMaxOutputs {
		return
	}
	s.descriptors[d.OutputIdx] = d
	s.present[d.OutputIdx] = true
}

// Get returns the sub-descriptor at outputIdx, if one was recorded.
func (s *Set) Get(outputIdx uint8) (Descriptor, bool) {
	if int(outputIdx) >= constants.NMaxOutputs || !s.present[outputIdx] {
		return Descriptor{}, false
	}
	return s.descriptors[outputIdx], true
}

// Release asks the accelerator to free the hardware buffer a
// descriptor references via an explicit clear-instance-buf LBA write
// keyed on frame_index alone, with a zeroed page payload (spec.md
// §4.8). Releasing a null descriptor, or one already cleared, is a
// no-op: clear-instance-buf is idempotent on the accelerator side, and
// a zero frame_index was never a live buffer to begin with.
func Release(dev block.Interface, d Descriptor, hwChannel uint8) error {
	if d.IsNull() {
		return nil
	}
	addr := lba.ClearInstanceBuf(uint16(d.FrameIndex), hwChannel)
	return dev.WriteAt(addr, block.AlignedBuffer(constants.PageSize))
}
